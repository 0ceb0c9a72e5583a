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

// Promises is the Go-idiomatic equivalent of the `fs.promises`-shaped
// adapter demanded by spec §4.3 and §6: Go has no promise type, so a
// blocking call on the caller's goroutine (consistent with the
// single-threaded cooperative model of spec §5) is the faithful
// translation of "await fs.promises.readFile(...)". The node runtime's
// `require` resolver and config.LoadFromVFS consume the VFS through this
// interface, so either can be pointed at a test double; npmfacade and
// gitfacade hold a *VFS directly.
type Promises interface {
	Stat(path string) (*Inode, error)
	Lstat(path string) (*Inode, error)
	ReadFile(path string, opts ReadFileOptions) ([]byte, error)
	WriteFile(path string, data []byte, opts WriteFileOptions) error
	Unlink(path string) error
	Readdir(path string, opts ReaddirOptions) ([]DirEntry, error)
	Mkdir(path string, opts MkdirOptions) error
	Rmdir(path string, opts RmdirOptions) error
	Rename(oldPath, newPath string) error
	Copy(src, dst string, opts CopyOptions) error
	Symlink(target, linkPath string) error
	Readlink(path string) (string, error)
	Chmod(path string, mode uint32) error
	Utimes(path string, atime, mtime int64) error
	Exists(path string) bool
	Glob(pattern, baseDir string) ([]string, error)
}

// Compile-time assertion that *VFS satisfies Promises.
var _ Promises = (*VFS)(nil)
