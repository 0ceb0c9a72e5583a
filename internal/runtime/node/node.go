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

// Package node defines the contract the `node` command runs against: a
// module-resolution algorithm over the VFS and a Sandbox interface an
// actual JavaScript engine implements. Foam's example corpus has no
// embeddable JS engine (the host is expected to supply one, exactly the
// way spec §4.9 treats its own heavyweight collaborators as "injected, not
// part of" the core system); this package carries everything that can be
// decided without one: require() resolution order, globals shape, and
// stdio rebinding.
package node

import (
	"strings"

	"github.com/foam/foam/internal/vfs"
)

// Sandbox is the contract a host-supplied JavaScript engine implements to
// back the `node` command. Foam constructs the module environment and
// feeds it to Sandbox.Run; the engine itself is injected by whatever binds
// Foam into a browser or other host (spec §4.9).
type Sandbox interface {
	// Run evaluates src as the entry module's body with the given globals
	// bound, returning the process exit code node would report.
	Run(src string, globals Globals) (int, error)
}

// Globals is what require()'d and entry-point code sees bound in scope:
// the subset of Node's global object Foam can meaningfully emulate without
// a real V8/QuickJS underneath it.
type Globals struct {
	Require func(specifier, fromDir string) (string, error)
	Console Console
	Argv    []string
	Env     map[string]string
	Cwd     string
}

// Console mirrors the two streams Node's console object writes to.
type Console struct {
	Log   func(string)
	Error func(string)
}

// Resolver implements Node's CommonJS require() resolution algorithm
// (spec §4.9) against a vfs.Promises-backed tree: relative/absolute
// specifiers resolve straight to a file (trying .js/.json/index.js
// fallbacks); bare specifiers walk up through node_modules directories.
type Resolver struct {
	VFS vfs.Promises
}

// NewResolver returns a Resolver bound to v.
func NewResolver(v vfs.Promises) *Resolver {
	return &Resolver{VFS: v}
}

// Resolve returns the absolute path specifier resolves to when required
// from a module at fromDir.
func (obj *Resolver) Resolve(specifier, fromDir string) (string, error) {
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || strings.HasPrefix(specifier, "/") {
		return obj.resolveFile(joinCandidate(fromDir, specifier))
	}
	return obj.resolveNodeModules(specifier, fromDir)
}

func joinCandidate(dir, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	segments := strings.Split(dir+"/"+rel, "/")
	var out []string
	for _, s := range segments {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	return "/" + strings.Join(out, "/")
}

// resolveFile tries path, path.js, path.json and path/index.js in turn,
// the same fallback order Node's resolver uses for file specifiers.
func (obj *Resolver) resolveFile(path string) (string, error) {
	candidates := []string{path, path + ".js", path + ".json", path + "/index.js"}
	for _, c := range candidates {
		if inode, err := obj.VFS.Stat(c); err == nil && !inode.IsDir() {
			return c, nil
		}
	}
	return "", vfs.ENOENT("require", path)
}

// resolveNodeModules walks fromDir upward looking for
// <dir>/node_modules/<specifier> at each level, matching Node's bare
// specifier resolution.
func (obj *Resolver) resolveNodeModules(specifier, fromDir string) (string, error) {
	dir := fromDir
	for {
		candidate := dir + "/node_modules/" + specifier
		if dir == "/" {
			candidate = "/node_modules/" + specifier
		}
		if path, err := obj.resolvePackageEntry(candidate); err == nil {
			return path, nil
		}
		if dir == "/" || dir == "" {
			break
		}
		idx := strings.LastIndex(dir, "/")
		if idx <= 0 {
			dir = "/"
		} else {
			dir = dir[:idx]
		}
	}
	return "", vfs.ENOENT("require", specifier)
}

// resolvePackageEntry resolves a node_modules/<name> directory to its
// index.js, or, failing that, treats dir itself as a file specifier.
// package.json's "main" field is not consulted here.
func (obj *Resolver) resolvePackageEntry(dir string) (string, error) {
	if inode, err := obj.VFS.Stat(dir); err == nil && inode.IsDir() {
		if path, err := obj.resolveFile(dir + "/index.js"); err == nil {
			return path, nil
		}
	}
	return obj.resolveFile(dir)
}
