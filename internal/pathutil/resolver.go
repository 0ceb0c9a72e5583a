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

// Package pathutil implements PathResolver (spec §4.1): turning any path
// string plus an optional cwd into a canonical, root-anchored absolute
// path. This operates purely on strings - it never touches the inode tree,
// so it works even for paths that don't exist yet (needed by e.g. mkdir).
//
// Symlink-aware traversal (following links while walking down a path to an
// existing inode) is a separate, inode-level concern handled by
// internal/vfs.followSymlinks, not here: that resolution happens entirely
// over in-memory vfs.Inode records with no backing OS directory, so it
// can't delegate to github.com/cyphar/filepath-securejoin the way the
// teacher's http.go resource does (SecureJoin resolves real symlinks via
// os.Lstat/os.Readlink against a disk root). internal/vfs instead bounds
// the same kind of containment/loop problem with maxSymlinkDepth.
package pathutil

import (
	"strings"

	"github.com/foam/foam/internal/env"
)

// Resolver resolves path strings against a shared Environment.
type Resolver struct {
	Env *env.Env
}

// New returns a Resolver bound to e.
func New(e *env.Env) *Resolver {
	return &Resolver{Env: e}
}

// Resolve canonicalizes p relative to the environment's current PWD,
// applying the four rules from spec §4.1 in order. If PWD is unset or
// empty, "/" is used as the cwd.
func (obj *Resolver) Resolve(p string) string {
	cwd, _ := obj.Env.Get(env.Pwd)
	if cwd == "" {
		cwd = "/"
	}
	return obj.ResolveFrom(p, cwd)
}

// ResolveFrom is Resolve but with an explicit cwd, useful for resolving
// paths without mutating or depending on the live PWD (e.g. `cd OLDPWD`
// bookkeeping, or glob base directories).
func (obj *Resolver) ResolveFrom(p, cwd string) string {
	// Rule 1: leading ~ expands to $HOME.
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := obj.Env.Get(env.Home)
		if home == "" {
			home = "/"
		}
		p = home + strings.TrimPrefix(p, "~")
	}

	// Rule 2: relative paths are prepended with cwd.
	if !strings.HasPrefix(p, "/") {
		if !strings.HasPrefix(cwd, "/") {
			cwd = "/" + cwd
		}
		if p == "" {
			p = cwd
		} else {
			p = cwd + "/" + p
		}
	}

	// Rule 3 + 4: split, discard "" and ".", pop on "..", rejoin rooted.
	return Clean(p)
}

// Clean applies rule 3+4 to an already-absolute-looking path string: split
// on '/', discard empty segments and ".", pop one segment per ".." (never
// ascending above "/"), then rejoin with a leading "/".
func Clean(p string) string {
	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, seg := range parts {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	if len(stack) == 0 {
		return "/"
	}
	return "/" + strings.Join(stack, "/")
}

// Parent returns the canonical parent directory of p (p must already be
// canonical). Parent("/") == "/".
func Parent(p string) string {
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// Base returns the last path segment of p (p must already be canonical).
func Base(p string) string {
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndex(p, "/")
	return p[idx+1:]
}

// Join joins canonical path elements and re-cleans the result.
func Join(elems ...string) string {
	return Clean(strings.Join(elems, "/"))
}

// Ancestors returns every canonical ancestor of p, from "/" down to (but not
// including) p itself, in root-to-leaf order - used by mkdir -p and by the
// stat(q).type == 'dir' invariant check in spec §8.
func Ancestors(p string) []string {
	if p == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	out := make([]string, 0, len(parts))
	cur := ""
	for _, seg := range parts[:len(parts)-1] {
		cur += "/" + seg
		out = append(out, cur)
	}
	return append([]string{"/"}, out...)
}
