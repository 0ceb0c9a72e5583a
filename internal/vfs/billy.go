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
	"bytes"
	"io"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/foam/foam/internal/pathutil"
)

// BillyFS adapts a *VFS to billy.Filesystem, the interface go-git expects
// for all of its filesystem access. This is Foam's literal answer to spec
// §4.3's "adapter contract compatible with third-party filesystem-consuming
// libraries": go-git is that library, and billy.Filesystem is its contract.
//
// All paths BillyFS receives are treated as relative to root (Chroot
// support); Foam's git façade always roots a BillyFS at the repository
// working directory before handing it to go-git.
type BillyFS struct {
	vfs  *VFS
	root string
}

// NewBillyFS roots a BillyFS at root (an already-resolved canonical path).
func NewBillyFS(v *VFS, root string) *BillyFS {
	return &BillyFS{vfs: v, root: root}
}

var _ billy.Filesystem = (*BillyFS)(nil)

func (obj *BillyFS) abs(filename string) string {
	return pathutil.Join(obj.root, filename)
}

// Create truncates or creates filename for writing, per billy.Basic.
func (obj *BillyFS) Create(filename string) (billy.File, error) {
	return obj.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

// Open opens filename for reading.
func (obj *BillyFS) Open(filename string) (billy.File, error) {
	return obj.OpenFile(filename, os.O_RDONLY, 0)
}

// OpenFile implements billy.Basic.
func (obj *BillyFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	abs := obj.abs(filename)

	var content []byte
	if inode, err := obj.vfs.Stat(abs); err == nil {
		if inode.IsDir() {
			return nil, EISDIR("open", filename)
		}
		if flag&os.O_TRUNC == 0 {
			content = append([]byte(nil), inode.Content...)
		}
	} else if flag&os.O_CREATE == 0 {
		return nil, ENOENT("open", filename)
	}

	f := &billyFile{
		vfs:      obj.vfs,
		name:     filename,
		abs:      abs,
		buf:      bytes.NewBuffer(content),
		readOnly: flag == os.O_RDONLY,
		perm:     uint32(perm),
	}
	if flag&os.O_APPEND != 0 {
		f.appendMode = true
	}
	if flag&os.O_CREATE != 0 {
		if _, err := obj.vfs.Stat(abs); err != nil {
			if err := obj.vfs.WriteFile(abs, content, WriteFileOptions{Mode: uint32(perm)}); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// Stat implements billy.Basic.
func (obj *BillyFS) Stat(filename string) (os.FileInfo, error) {
	inode, err := obj.vfs.Stat(obj.abs(filename))
	if err != nil {
		return nil, err
	}
	return &fileInfo{inode: inode, name: pathutil.Base(obj.abs(filename))}, nil
}

// Lstat implements billy.Symlink.
func (obj *BillyFS) Lstat(filename string) (os.FileInfo, error) {
	inode, err := obj.vfs.Lstat(obj.abs(filename))
	if err != nil {
		return nil, err
	}
	return &fileInfo{inode: inode, name: pathutil.Base(obj.abs(filename))}, nil
}

// Rename implements billy.Basic.
func (obj *BillyFS) Rename(oldpath, newpath string) error {
	return obj.vfs.Rename(obj.abs(oldpath), obj.abs(newpath))
}

// Remove implements billy.Basic.
func (obj *BillyFS) Remove(filename string) error {
	abs := obj.abs(filename)
	if inode, err := obj.vfs.Lstat(abs); err == nil && inode.IsDir() {
		return obj.vfs.Rmdir(abs, RmdirOptions{})
	}
	return obj.vfs.Unlink(abs)
}

// Join implements billy.Basic.
func (obj *BillyFS) Join(elem ...string) string {
	return pathutil.Join(elem...)
}

// TempFile implements billy.TempFile.
func (obj *BillyFS) TempFile(dir, prefix string) (billy.File, error) {
	name := pathutil.Join(dir, prefix+randSuffix())
	return obj.Create(name)
}

// ReadDir implements billy.Dir.
func (obj *BillyFS) ReadDir(path string) ([]os.FileInfo, error) {
	entries, err := obj.vfs.Readdir(obj.abs(path), ReaddirOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		childAbs := pathutil.Join(obj.abs(path), e.Name)
		inode, err := obj.vfs.Lstat(childAbs)
		if err != nil {
			continue
		}
		out = append(out, &fileInfo{inode: inode, name: e.Name})
	}
	return out, nil
}

// MkdirAll implements billy.Dir.
func (obj *BillyFS) MkdirAll(filename string, perm os.FileMode) error {
	return obj.vfs.Mkdir(obj.abs(filename), MkdirOptions{Recursive: true, Mode: uint32(perm)})
}

// Symlink implements billy.Symlink.
func (obj *BillyFS) Symlink(target, link string) error {
	return obj.vfs.Symlink(target, obj.abs(link))
}

// Readlink implements billy.Symlink.
func (obj *BillyFS) Readlink(link string) (string, error) {
	return obj.vfs.Readlink(obj.abs(link))
}

// Chroot implements billy.Chroot: it returns a new BillyFS rooted deeper
// into the same VFS, matching go-git's expectation that Chroot returns an
// independently-rooted filesystem view rather than a copy of the data.
func (obj *BillyFS) Chroot(path string) (billy.Filesystem, error) {
	return &BillyFS{vfs: obj.vfs, root: obj.abs(path)}, nil
}

// Root implements billy.Chroot.
func (obj *BillyFS) Root() string {
	return obj.root
}

// fileInfo adapts *Inode to os.FileInfo.
type fileInfo struct {
	inode *Inode
	name  string
}

func (f *fileInfo) Name() string { return f.name }
func (f *fileInfo) Size() int64  { return f.inode.Size }
func (f *fileInfo) Mode() os.FileMode {
	m := os.FileMode(f.inode.Mode)
	if f.inode.IsDir() {
		m |= os.ModeDir
	}
	if f.inode.IsSymlink() {
		m |= os.ModeSymlink
	}
	return m
}
func (f *fileInfo) ModTime() time.Time { return time.UnixMilli(f.inode.Mtime) }
func (f *fileInfo) IsDir() bool        { return f.inode.IsDir() }
func (f *fileInfo) Sys() interface{}   { return f.inode }

// billyFile adapts an in-memory buffer, flushed to the VFS on Close, to
// billy.File. Foam's VFS stores whole-file content rather than byte
// ranges, so every File is buffered entirely in memory between Open and
// Close - acceptable for the repository-sized trees go-git manipulates in
// a browser sandbox.
type billyFile struct {
	vfs        *VFS
	name       string
	abs        string
	buf        *bytes.Buffer
	pos        int64
	readOnly   bool
	appendMode bool
	perm       uint32
	closed     bool
	dirty      bool
}

func (f *billyFile) Name() string { return f.name }

func (f *billyFile) Write(p []byte) (int, error) {
	if f.readOnly {
		return 0, billy.ErrReadOnly
	}
	data := f.buf.Bytes()
	if f.appendMode {
		f.pos = int64(len(data))
	}
	if int64(len(data)) < f.pos {
		data = append(data, make([]byte, f.pos-int64(len(data)))...)
	}
	head := data[:f.pos]
	var tail []byte
	if f.pos+int64(len(p)) < int64(len(data)) {
		tail = data[f.pos+int64(len(p)):]
	}
	newData := append(append(append([]byte(nil), head...), p...), tail...)
	f.buf = bytes.NewBuffer(newData)
	f.pos += int64(len(p))
	f.dirty = true
	return len(p), nil
}

func (f *billyFile) Read(p []byte) (int, error) {
	data := f.buf.Bytes()
	if f.pos >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *billyFile) ReadAt(p []byte, off int64) (int, error) {
	data := f.buf.Bytes()
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *billyFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(f.buf.Len()) + offset
	}
	return f.pos, nil
}

func (f *billyFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.readOnly || !f.dirty {
		return nil
	}
	return f.vfs.WriteFile(f.abs, f.buf.Bytes(), WriteFileOptions{Mode: f.perm})
}

func (f *billyFile) Lock() error   { return nil } // no concurrent writers, see spec §5
func (f *billyFile) Unlock() error { return nil }

func (f *billyFile) Truncate(size int64) error {
	data := f.buf.Bytes()
	if int64(len(data)) <= size {
		data = append(data, make([]byte, size-int64(len(data)))...)
	} else {
		data = data[:size]
	}
	f.buf = bytes.NewBuffer(data)
	f.dirty = true
	return nil
}

var randCounter uint64

// randSuffix generates a short, collision-resistant-enough suffix for
// TempFile without pulling in math/rand's seeding ritual for what's a
// best-effort uniqueness requirement only go-git's packfile writer relies
// on transiently.
func randSuffix() string {
	randCounter++
	return itoa(randCounter)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
