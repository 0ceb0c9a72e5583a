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

// Package store implements the Store component from spec §4.2: an
// inode-keyed persistence layer with a hot in-memory cache, backed by a
// github.com/spf13/afero filesystem. afero.NewMemMapFs stands in for the
// browser's IndexedDB (spec §1): callers reach it only through
// Get/Put/Delete/List. Internally Store keeps one JSON blob per canonical
// inode path in a directory tree that mirrors the VFS tree (see blobRoot),
// and relies on the afero.Fs's own directories (MkdirAll, Walk) to list by
// prefix.
package store

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/foam/foam/internal/errwrap"
	"github.com/foam/foam/internal/vfs"
)

// Store is the durable inode store plus hot cache described in spec §4.2.
type Store struct {
	backend afero.Fs

	mu  sync.RWMutex
	hot map[string]*vfs.Inode
}

// blobRoot is the directory, within the afero backend, under which every
// inode blob lives. Blobs mirror the VFS path tree 1:1 (so "/a/b" is stored
// at blobRoot+"/a/b.inode.json") rather than being flattened into a single
// directory: this lets List(prefix) reuse afero.Walk instead of inventing a
// lossy path-encoding scheme, and keeps the backend's own directories (which
// the spec never asks Store to expose) entirely an implementation detail.
const blobRoot = "/inodes"

func blobPath(p string) string {
	if p == "/" {
		return blobRoot + "/_root_.inode.json"
	}
	return blobRoot + p + ".inode.json"
}

// New returns a Store over the given afero backend. Pass afero.NewMemMapFs()
// for the default in-memory behavior (spec §1's browser-zero-backend
// stand-in); any other afero.Fs implementation (e.g. a durable on-disk one
// for local development/testing) works unchanged.
func New(backend afero.Fs) *Store {
	return &Store{
		backend: backend,
		hot:     map[string]*vfs.Inode{},
	}
}

// Init ensures the root directory tree exists with sensible defaults on
// first open, per spec §4.2: "/", "/home", "/home/<user>", "/tmp", "/bin",
// "/etc", "/var", "/dev".
func (obj *Store) Init(now int64, user string) error {
	dirs := []string{"/", "/home", "/home/" + user, "/tmp", "/bin", "/etc", "/var", "/dev"}
	for _, d := range dirs {
		if _, err := obj.Get(d); err == nil {
			continue // already initialized (e.g. reopening a persisted store)
		}
		inode := &vfs.Inode{
			Path:  d,
			Type:  vfs.TypeDir,
			Mode:  0o755,
			Mtime: now,
			Ctime: now,
			Atime: now,
		}
		if err := obj.Put(inode); err != nil {
			return errwrap.Wrapf(err, "store: init %s", d)
		}
	}
	return nil
}

// Get fetches the inode at path, consulting the hot cache first.
func (obj *Store) Get(path string) (*vfs.Inode, error) {
	obj.mu.RLock()
	if cached, ok := obj.hot[path]; ok {
		defer obj.mu.RUnlock()
		return cached.Clone(), nil
	}
	obj.mu.RUnlock()

	f, err := obj.backend.Open(blobPath(path))
	if err != nil {
		return nil, vfs.ENOENT("stat", path)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errwrap.Wrapf(err, "store: read %s", path)
	}
	var inode vfs.Inode
	if err := json.Unmarshal(data, &inode); err != nil {
		return nil, errwrap.Wrapf(err, "store: decode %s", path)
	}

	obj.mu.Lock()
	obj.hot[path] = inode.Clone()
	obj.mu.Unlock()

	return &inode, nil
}

// Put writes inode through to the backend and updates the hot cache before
// the backend write is observed by any other reader in the same task, per
// spec §5 ("the hot cache is updated before the backend write resolves to
// keep reads consistent within the same task").
func (obj *Store) Put(inode *vfs.Inode) error {
	data, err := json.Marshal(inode)
	if err != nil {
		return errwrap.Wrapf(err, "store: encode %s", inode.Path)
	}

	obj.mu.Lock()
	obj.hot[inode.Path] = inode.Clone()
	obj.mu.Unlock()

	bp := blobPath(inode.Path)
	if err := obj.backend.MkdirAll(parentDir(bp), 0o755); err != nil {
		return errwrap.Wrapf(err, "store: mkdir for %s", inode.Path)
	}
	if err := afero.WriteFile(obj.backend, bp, data, 0o644); err != nil {
		return errwrap.Wrapf(err, "store: write %s", inode.Path)
	}
	return nil
}

func parentDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// Delete removes the inode at path from both the cache and the backend.
func (obj *Store) Delete(path string) error {
	obj.mu.Lock()
	delete(obj.hot, path)
	obj.mu.Unlock()

	err := obj.backend.Remove(blobPath(path))
	if err != nil && !isNotExistErr(err) {
		return errwrap.Wrapf(err, "store: delete %s", path)
	}
	return nil
}

// List returns every stored canonical path that has prefix as a path
// prefix (prefix itself included if it names a stored inode), used by
// Readdir and glob to avoid requiring the backend to understand directory
// listing itself.
func (obj *Store) List(prefix string) ([]string, error) {
	start := blobRoot
	if prefix != "/" {
		start = blobRoot + prefix
	}

	var out []string
	if prefix != "/" {
		if ok, _ := afero.Exists(obj.backend, blobPath(prefix)); ok {
			out = append(out, prefix)
		}
	}
	err := afero.Walk(obj.backend, start, func(name string, info os.FileInfo, werr error) error {
		if werr != nil {
			if isNotExistErr(werr) {
				return nil // prefix names nothing yet; empty result
			}
			return werr
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(name, ".inode.json") {
			return nil
		}
		rel := strings.TrimPrefix(name, blobRoot)
		p := strings.TrimSuffix(rel, ".inode.json")
		if p == "/_root_" || p == "" {
			p = "/"
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errwrap.Wrapf(err, "store: list %s", prefix)
	}
	sort.Strings(out)
	return out, nil
}

// Clear wipes every stored inode, used by tests and by a "reset this
// sandbox" host action.
func (obj *Store) Clear() error {
	obj.mu.Lock()
	obj.hot = map[string]*vfs.Inode{}
	obj.mu.Unlock()

	if err := obj.backend.RemoveAll(blobRoot); err != nil {
		return errwrap.Wrapf(err, "store: clear")
	}
	return nil
}

func isNotExistErr(err error) bool {
	return err != nil && (os.IsNotExist(err) || strings.Contains(err.Error(), "no such file"))
}
