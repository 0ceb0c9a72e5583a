// Foam
// Copyright (C) 2024+ the Foam contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package builtins implements the command registry and the built-in and
// coreutils-bridge commands described in spec §4.2: everything a command
// name in a shell simple command can resolve to besides a user-defined
// function.
package builtins

import (
	"sync"

	"github.com/foam/foam/internal/shell/exec"
)

// Registry is a plain name-to-Handler map, the command-lookup table spec
// §4.5 places after function lookup and before "command not found".
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]exec.Handler
	aliases  map[string]string
}

// New returns a Registry pre-populated with every built-in and coreutils
// command this package implements.
func New() *Registry {
	r := &Registry{handlers: map[string]exec.Handler{}, aliases: map[string]string{}}
	r.registerCore()
	r.registerCoreutils()
	r.registerFacades()
	return r
}

// Register adds or replaces the handler for name.
func (obj *Registry) Register(name string, h exec.Handler) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.handlers[name] = h
}

// Lookup implements exec.Registry, resolving aliases first.
func (obj *Registry) Lookup(name string) (exec.Handler, bool) {
	obj.mu.RLock()
	if target, ok := obj.aliases[name]; ok {
		name = target
	}
	h, ok := obj.handlers[name]
	obj.mu.RUnlock()
	return h, ok
}

// Has reports whether name resolves to anything, for `type`/`which`.
func (obj *Registry) Has(name string) bool {
	_, ok := obj.Lookup(name)
	return ok
}

// SetAlias implements the `alias` builtin's storage.
func (obj *Registry) SetAlias(name, target string) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.aliases[name] = target
}

// Unalias implements `unalias`.
func (obj *Registry) Unalias(name string) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	delete(obj.aliases, name)
}

// Aliases returns a snapshot of the alias table for `alias` with no args.
func (obj *Registry) Aliases() map[string]string {
	obj.mu.RLock()
	defer obj.mu.RUnlock()
	out := make(map[string]string, len(obj.aliases))
	for k, v := range obj.aliases {
		out[k] = v
	}
	return out
}

// Names returns every registered command name, sorted by caller.
func (obj *Registry) Names() []string {
	obj.mu.RLock()
	defer obj.mu.RUnlock()
	out := make([]string, 0, len(obj.handlers))
	for k := range obj.handlers {
		out = append(out, k)
	}
	return out
}
