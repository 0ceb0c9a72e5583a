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

// Package vfs implements the POSIX-shaped operations from spec §4.3 on top
// of internal/store and internal/pathutil, and publishes the two adapter
// surfaces (Promises and BillyFS) that git/npm/node consume.
package vfs

import (
	"sort"
	"strings"

	"github.com/foam/foam/internal/env"
	"github.com/foam/foam/internal/errwrap"
	"github.com/foam/foam/internal/pathutil"
)

// storeLike is the subset of *store.Store that vfs depends on. It is
// expressed as an interface (rather than importing internal/store
// directly) so that internal/store, which imports internal/vfs for the
// Inode/Error types, doesn't form an import cycle with this package.
type storeLike interface {
	Get(path string) (*Inode, error)
	Put(inode *Inode) error
	Delete(path string) error
	List(prefix string) ([]string, error)
	Clear() error
}

// Clock lets tests and the host substitute a deterministic time source;
// production code passes a closure over time.Now().UnixMilli().
type Clock func() int64

// VFS is the facade described in spec §4.3, built atop Store and
// PathResolver.
type VFS struct {
	Store    storeLike
	Resolver *pathutil.Resolver
	Env      *env.Env
	Now      Clock

	// Logf mirrors the teacher's injected-closure logging convention
	// (spec "Ambient Stack"); nil is a valid no-op logger.
	Logf func(string, ...interface{})
}

// New builds a VFS over the given store, resolver and environment.
func New(s storeLike, resolver *pathutil.Resolver, e *env.Env, now Clock) *VFS {
	return &VFS{Store: s, Resolver: resolver, Env: e, Now: now}
}

func (obj *VFS) logf(format string, v ...interface{}) {
	if obj.Logf != nil {
		obj.Logf(format, v...)
	}
}

func (obj *VFS) now() int64 {
	if obj.Now != nil {
		return obj.Now()
	}
	return 0
}

func (obj *VFS) resolve(p string) string {
	return obj.Resolver.Resolve(p)
}

// maxSymlinkDepth bounds lazy symlink resolution per spec §3 ("cycles
// shorter than a fixed depth (e.g., 40) yield ELOOP").
const maxSymlinkDepth = 40

// followSymlinks resolves p to the inode it ultimately refers to when the
// inode stored at p is itself a symlink, following the chain of link
// targets. Symlinks in intermediate path components are not resolved: a
// path that only exists through a symlinked parent directory is ENOENT.
// It returns the final canonical path and its inode.
func (obj *VFS) followSymlinks(p string) (string, *Inode, error) {
	cur := p
	for i := 0; i < maxSymlinkDepth; i++ {
		inode, err := obj.Store.Get(cur)
		if err != nil {
			return cur, nil, err
		}
		if !inode.IsSymlink() {
			return cur, inode, nil
		}
		target := inode.Target()
		if !strings.HasPrefix(target, "/") {
			target = pathutil.Join(pathutil.Parent(cur), target)
		} else {
			target = pathutil.Clean(target)
		}
		cur = target
	}
	return cur, nil, ELOOP("stat", p)
}

// checkParentDir verifies parent(p) exists and is a directory, per the
// invariant in spec §3 ("For any inode at path p != /, the inode at
// parent(p) exists and has type = dir").
func (obj *VFS) checkParentDir(op, p string) (*Inode, error) {
	if p == "/" {
		return nil, nil
	}
	parent := pathutil.Parent(p)
	pInode, err := obj.Store.Get(parent)
	if err != nil {
		return nil, ENOENT(op, p)
	}
	if !pInode.IsDir() {
		return nil, ENOTDIR(op, p)
	}
	return pInode, nil
}

// Stat follows symlinks (spec §4.3).
func (obj *VFS) Stat(p string) (*Inode, error) {
	p = obj.resolve(p)
	_, inode, err := obj.followSymlinks(p)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Op = "stat"
			return nil, e
		}
		return nil, ENOENT("stat", p)
	}
	return inode, nil
}

// Lstat does not follow the final symlink component; it must not delegate
// to Stat (spec §4.3).
func (obj *VFS) Lstat(p string) (*Inode, error) {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return nil, ENOENT("lstat", p)
	}
	return inode, nil
}

// Exists is a thin existence check (spec §4.3).
func (obj *VFS) Exists(p string) bool {
	_, err := obj.Lstat(p)
	return err == nil
}

// ReadFileOptions configures ReadFile.
type ReadFileOptions struct {
	Encoding string // accepted for adapter-shape compatibility; ReadFile ignores it and returns raw bytes
}

// ReadFile returns file content, following symlinks.
func (obj *VFS) ReadFile(p string, _ ReadFileOptions) ([]byte, error) {
	p = obj.resolve(p)
	_, inode, err := obj.followSymlinks(p)
	if err != nil {
		return nil, remapOp("readFile", err)
	}
	if inode.IsDir() {
		return nil, EISDIR("readFile", p)
	}
	return append([]byte(nil), inode.Content...), nil
}

// WriteFileOptions configures WriteFile.
type WriteFileOptions struct {
	Append   bool
	Mode     uint32
	Encoding string
}

// WriteFile creates or overwrites (or appends to) a file, per spec §4.3:
// parents are not auto-created (callers must mkdir -p first).
func (obj *VFS) WriteFile(p string, data []byte, opts WriteFileOptions) error {
	p = obj.resolve(p)
	if _, err := obj.checkParentDir("writeFile", p); err != nil {
		return err
	}

	existing, err := obj.Store.Get(p)
	now := obj.now()
	if err == nil {
		if existing.IsDir() {
			return EISDIR("writeFile", p)
		}
		content := data
		if opts.Append {
			content = append(append([]byte(nil), existing.Content...), data...)
		}
		existing.Content = content
		existing.Size = int64(len(content))
		existing.Mtime = now
		if opts.Mode != 0 {
			existing.Mode = opts.Mode
		}
		return obj.Store.Put(existing)
	}

	mode := opts.Mode
	if mode == 0 {
		mode = 0o644
	}
	inode := &Inode{
		Path:    p,
		Type:    TypeFile,
		Mode:    mode,
		Content: append([]byte(nil), data...),
		Size:    int64(len(data)),
		Mtime:   now,
		Ctime:   now,
		Atime:   now,
	}
	return obj.Store.Put(inode)
}

// MkdirOptions configures Mkdir.
type MkdirOptions struct {
	Recursive bool
	Mode      uint32
}

// Mkdir creates a directory, per spec §4.3.
func (obj *VFS) Mkdir(p string, opts MkdirOptions) error {
	p = obj.resolve(p)
	mode := opts.Mode
	if mode == 0 {
		mode = 0o755
	}
	now := obj.now()

	if opts.Recursive {
		for _, ancestor := range append(pathutil.Ancestors(p), p) {
			if existing, err := obj.Store.Get(ancestor); err == nil {
				if !existing.IsDir() {
					return EEXIST("mkdir", ancestor)
				}
				continue
			}
			inode := &Inode{Path: ancestor, Type: TypeDir, Mode: mode, Mtime: now, Ctime: now, Atime: now}
			if err := obj.Store.Put(inode); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := obj.checkParentDir("mkdir", p); err != nil {
		return err
	}
	if existing, err := obj.Store.Get(p); err == nil {
		if existing.IsDir() {
			return EEXIST("mkdir", p)
		}
		return EEXIST("mkdir", p)
	}
	inode := &Inode{Path: p, Type: TypeDir, Mode: mode, Mtime: now, Ctime: now, Atime: now}
	return obj.Store.Put(inode)
}

// ReaddirOptions configures Readdir.
type ReaddirOptions struct {
	WithFileTypes bool
}

// Readdir lists the immediate children of p (spec §4.3).
func (obj *VFS) Readdir(p string, _ ReaddirOptions) ([]DirEntry, error) {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return nil, ENOENT("readdir", p)
	}
	if !inode.IsDir() {
		return nil, ENOTDIR("readdir", p)
	}

	paths, err := obj.Store.List(p)
	if err != nil {
		return nil, errwrap.Wrapf(err, "readdir %s", p)
	}

	seen := map[string]bool{}
	var entries []DirEntry
	prefix := p
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}
	for _, child := range paths {
		if child == p {
			continue
		}
		rel := strings.TrimPrefix(child, prefix)
		if rel == child || rel == "" {
			continue
		}
		name := rel
		if idx := strings.Index(rel, "/"); idx >= 0 {
			name = rel[:idx] // only direct children
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		childPath := pathutil.Join(p, name)
		childInode, err := obj.Store.Get(childPath)
		typ := TypeFile
		if err == nil {
			typ = childInode.Type
		}
		entries = append(entries, DirEntry{Name: name, Type: typ})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Unlink removes a file (spec §4.3).
func (obj *VFS) Unlink(p string) error {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return ENOENT("unlink", p)
	}
	if inode.IsDir() {
		return EISDIR("unlink", p)
	}
	return obj.Store.Delete(p)
}

// RmdirOptions configures Rmdir.
type RmdirOptions struct {
	Recursive bool
}

// Rmdir removes a directory, per spec §4.3.
func (obj *VFS) Rmdir(p string, opts RmdirOptions) error {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return ENOENT("rmdir", p)
	}
	if !inode.IsDir() {
		return ENOTDIR("rmdir", p)
	}

	children, err := obj.Store.List(p)
	if err != nil {
		return err
	}
	hasChildren := false
	for _, c := range children {
		if c != p {
			hasChildren = true
			break
		}
	}
	if hasChildren && !opts.Recursive {
		return ENOTEMPTY("rmdir", p)
	}

	if opts.Recursive {
		sort.Sort(sort.Reverse(sort.StringSlice(children)))
		for _, c := range children {
			if c == p {
				continue
			}
			if err := obj.Store.Delete(c); err != nil {
				return err
			}
		}
	}
	return obj.Store.Delete(p)
}

// Rename implements spec §4.3's rename semantics.
func (obj *VFS) Rename(a, b string) error {
	a = obj.resolve(a)
	b = obj.resolve(b)

	srcInode, err := obj.Store.Get(a)
	if err != nil {
		return ENOENT("rename", a)
	}
	if _, err := obj.checkParentDir("rename", b); err != nil {
		return err
	}

	if dst, err := obj.Store.Get(b); err == nil {
		if dst.IsDir() {
			if !srcInode.IsDir() {
				return EISDIR("rename", b)
			}
			children, _ := obj.Store.List(b)
			for _, c := range children {
				if c != b {
					return ENOTEMPTY("rename", b)
				}
			}
		} else if srcInode.IsDir() {
			return ENOTDIR("rename", b)
		}
	}

	if srcInode.IsDir() {
		paths, err := obj.Store.List(a)
		if err != nil {
			return err
		}
		for _, old := range paths {
			rel := strings.TrimPrefix(old, a)
			newPath := b + rel
			child, err := obj.Store.Get(old)
			if err != nil {
				continue
			}
			child.Path = newPath
			child.Mtime = obj.now()
			if err := obj.Store.Put(child); err != nil {
				return err
			}
			if err := obj.Store.Delete(old); err != nil {
				return err
			}
		}
		return nil
	}

	srcInode.Path = b
	srcInode.Mtime = obj.now()
	if err := obj.Store.Put(srcInode); err != nil {
		return err
	}
	return obj.Store.Delete(a)
}

// CopyOptions configures Copy.
type CopyOptions struct {
	Recursive bool
}

// Copy implements spec §4.3's copy operation.
func (obj *VFS) Copy(a, b string, opts CopyOptions) error {
	a = obj.resolve(a)
	b = obj.resolve(b)

	srcInode, err := obj.Store.Get(a)
	if err != nil {
		return ENOENT("copy", a)
	}
	if srcInode.IsDir() && !opts.Recursive {
		return EISDIR("copy", a)
	}
	if _, err := obj.checkParentDir("copy", b); err != nil {
		return err
	}

	now := obj.now()
	if !srcInode.IsDir() {
		dst := srcInode.Clone()
		dst.Path = b
		dst.Mtime, dst.Ctime, dst.Atime = now, now, now
		return obj.Store.Put(dst)
	}

	paths, err := obj.Store.List(a)
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, old := range paths {
		rel := strings.TrimPrefix(old, a)
		newPath := b + rel
		child, err := obj.Store.Get(old)
		if err != nil {
			continue
		}
		dst := child.Clone()
		dst.Path = newPath
		dst.Mtime, dst.Ctime, dst.Atime = now, now, now
		if err := obj.Store.Put(dst); err != nil {
			return err
		}
	}
	return nil
}

// Symlink creates a symlink inode whose content is the raw target string.
func (obj *VFS) Symlink(target, linkPath string) error {
	linkPath = obj.resolve(linkPath)
	if _, err := obj.checkParentDir("symlink", linkPath); err != nil {
		return err
	}
	if _, err := obj.Store.Get(linkPath); err == nil {
		return EEXIST("symlink", linkPath)
	}
	now := obj.now()
	inode := &Inode{
		Path:    linkPath,
		Type:    TypeSymlink,
		Mode:    0o777,
		Content: []byte(target),
		Size:    int64(len(target)),
		Mtime:   now,
		Ctime:   now,
		Atime:   now,
	}
	return obj.Store.Put(inode)
}

// Readlink returns the raw stored target of a symlink.
func (obj *VFS) Readlink(p string) (string, error) {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return "", ENOENT("readlink", p)
	}
	if !inode.IsSymlink() {
		return "", NewError("readlink", CodeEINVAL, p)
	}
	return inode.Target(), nil
}

// Chmod updates mode bits (advisory only, spec §4.3).
func (obj *VFS) Chmod(p string, mode uint32) error {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return ENOENT("chmod", p)
	}
	inode.Mode = mode
	return obj.Store.Put(inode)
}

// Utimes updates the access/modification times.
func (obj *VFS) Utimes(p string, atime, mtime int64) error {
	p = obj.resolve(p)
	inode, err := obj.Store.Get(p)
	if err != nil {
		return ENOENT("utimes", p)
	}
	inode.Atime = atime
	inode.Mtime = mtime
	return obj.Store.Put(inode)
}

// remapOp re-tags a *Error's Op field for errors surfaced through a
// different public operation than the one that generated them (e.g.
// followSymlinks always tags "stat").
func remapOp(op string, err error) error {
	if e, ok := err.(*Error); ok {
		e.Op = op
		return e
	}
	return err
}
