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

package vfs

import (
	"sort"
	"strings"

	"github.com/foam/foam/internal/pathutil"
)

// Glob matches pattern (supporting *, ?, [...] and **) against the
// canonical tree rooted at baseDir (spec §4.3). baseDir defaults to the
// resolved current directory when empty.
func (obj *VFS) Glob(pattern, baseDir string) ([]string, error) {
	if baseDir == "" {
		baseDir = obj.resolve(".")
	} else {
		baseDir = obj.resolve(baseDir)
	}

	absolute := strings.HasPrefix(pattern, "/")
	full := pattern
	if !absolute {
		full = pathutil.Join(baseDir, pattern)
	} else {
		full = pathutil.Clean(pattern)
	}

	paths, err := obj.Store.List("/")
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range paths {
		if globMatch(full, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// globMatch reports whether path matches pattern, where pattern may contain
// *, ?, [...] (single segment) and ** (any number of segments, including
// zero).
func globMatch(pattern, path string) bool {
	pSegs := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	sSegs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return matchSegs(pSegs, sSegs)
}

func matchSegs(pat, seg []string) bool {
	if len(pat) == 0 {
		return len(seg) == 0
	}
	if pat[0] == "**" {
		if matchSegs(pat[1:], seg) {
			return true
		}
		if len(seg) == 0 {
			return false
		}
		return matchSegs(pat, seg[1:])
	}
	if len(seg) == 0 {
		return false
	}
	if !matchSegment(pat[0], seg[0]) {
		return false
	}
	return matchSegs(pat[1:], seg[1:])
}

// matchSegment matches one path component against a glob segment supporting
// *, ? and [...] character classes (no cross-"/" matching - callers split
// on "/" first).
func matchSegment(pattern, name string) bool {
	return matchHere(pattern, name)
}

func matchHere(pattern, name string) bool {
	for {
		if pattern == "" {
			return name == ""
		}
		switch pattern[0] {
		case '*':
			// try every possible split, including matching zero chars
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchHere(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if name == "" {
				return false
			}
			pattern, name = pattern[1:], name[1:]
			continue
		case '[':
			if name == "" {
				return false
			}
			end := strings.IndexByte(pattern, ']')
			if end < 0 {
				// malformed class, treat '[' literally
				if name[0] != '[' {
					return false
				}
				pattern, name = pattern[1:], name[1:]
				continue
			}
			class := pattern[1:end]
			if !matchClass(class, name[0]) {
				return false
			}
			pattern, name = pattern[end+1:], name[1:]
			continue
		default:
			if name == "" || pattern[0] != name[0] {
				return false
			}
			pattern, name = pattern[1:], name[1:]
			continue
		}
	}
}

func matchClass(class string, c byte) bool {
	negate := false
	if strings.HasPrefix(class, "!") || strings.HasPrefix(class, "^") {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != negate
}
