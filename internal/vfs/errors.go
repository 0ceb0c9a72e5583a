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
	"errors"
	"fmt"
	"os"
)

// Error is the single concrete error kind used by every VFS operation. It
// carries both a Node.js-compatible symbolic Code and numeric Errno, because
// the git library foam binds (go-git) dispatches on errno and otherwise
// misbehaves (spec §4.3: "this is load-bearing").
type Error struct {
	Op    string // "stat", "readFile", "mkdir", ...
	Path  string
	Code  string
	Errno int

	// sentinel is returned by Unwrap so that stdlib/ecosystem helpers like
	// os.IsNotExist and errors.Is(err, os.ErrExist) work transparently on
	// a *vfs.Error, which matters because vfs.Error is also what
	// BillyFS (see billy.go) returns to go-git.
	sentinel error
}

// Error codes and errno values, per spec §4.3. -1 is reserved for
// unspecified/unknown errors.
const (
	CodeENOENT    = "ENOENT"
	CodeEEXIST    = "EEXIST"
	CodeEISDIR    = "EISDIR"
	CodeENOTDIR   = "ENOTDIR"
	CodeENOTEMPTY = "ENOTEMPTY"
	CodeELOOP     = "ELOOP"
	CodeEINVAL    = "EINVAL"
	CodeUnknown   = ""

	ErrnoENOENT    = -2
	ErrnoEEXIST    = -17
	ErrnoEISDIR    = -21
	ErrnoENOTDIR   = -20
	ErrnoENOTEMPTY = -39
	ErrnoELOOP     = -40
	ErrnoEINVAL    = -22
	ErrnoUnknown   = -1
)

// action describes, in Node's own vocabulary, what verb to print in the
// message for a given op, e.g. readFile -> "open", mkdir -> "mkdir".
var action = map[string]string{
	"stat":     "stat",
	"lstat":    "lstat",
	"readFile": "open",
	"writeFile": "open",
	"mkdir":    "mkdir",
	"readdir":  "scandir",
	"unlink":   "unlink",
	"rmdir":    "rmdir",
	"rename":   "rename",
	"copy":     "copyfile",
	"symlink":  "symlink",
	"readlink": "readlink",
	"chmod":    "chmod",
	"utimes":   "utimes",
	"open":     "open",
}

var reason = map[string]string{
	CodeENOENT:    "no such file or directory",
	CodeEEXIST:    "file already exists",
	CodeEISDIR:    "illegal operation on a directory",
	CodeENOTDIR:   "not a directory",
	CodeENOTEMPTY: "directory not empty",
	CodeELOOP:     "too many symbolic links encountered",
	CodeEINVAL:    "invalid argument",
}

var sentinelFor = map[string]error{
	CodeENOENT:  os.ErrNotExist,
	CodeEEXIST:  os.ErrExist,
	CodeEINVAL:  os.ErrInvalid,
	CodeEISDIR:  errIsDir,
	CodeENOTDIR: errNotDir,
}

// errIsDir and errNotDir are local sentinels: the stdlib os package doesn't
// define ErrIsDir/ErrNotDir equivalents usable with errors.Is, so foam
// defines its own for the Unwrap contract.
var (
	errIsDir  = fmt.Errorf("is a directory")
	errNotDir = fmt.Errorf("not a directory")
)

// NewError builds a *Error for op against path with the given Node.js-style
// code, deriving errno and the Unwrap sentinel from the code table above.
func NewError(op, code, path string) *Error {
	errno := ErrnoUnknown
	switch code {
	case CodeENOENT:
		errno = ErrnoENOENT
	case CodeEEXIST:
		errno = ErrnoEEXIST
	case CodeEISDIR:
		errno = ErrnoEISDIR
	case CodeENOTDIR:
		errno = ErrnoENOTDIR
	case CodeENOTEMPTY:
		errno = ErrnoENOTEMPTY
	case CodeELOOP:
		errno = ErrnoELOOP
	case CodeEINVAL:
		errno = ErrnoEINVAL
	}
	return &Error{
		Op:       op,
		Path:     path,
		Code:     code,
		Errno:    errno,
		sentinel: sentinelFor[code],
	}
}

// Error renders a Node.js-format message, e.g.
// "ENOENT: no such file or directory, stat '/nope'".
func (e *Error) Error() string {
	verb := action[e.Op]
	if verb == "" {
		verb = e.Op
	}
	msg := reason[e.Code]
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("%s: %s, %s '%s'", e.Code, msg, verb, e.Path)
}

// Unwrap lets errors.Is/os.IsNotExist/os.IsExist see through to a stdlib
// sentinel. This is what makes *Error usable as the error a
// billy.Filesystem implementation returns to go-git.
func (e *Error) Unwrap() error {
	return e.sentinel
}

// ENOENT is a convenience constructor for the most common case.
func ENOENT(op, path string) *Error { return NewError(op, CodeENOENT, path) }

// EEXIST is a convenience constructor.
func EEXIST(op, path string) *Error { return NewError(op, CodeEEXIST, path) }

// EISDIR is a convenience constructor.
func EISDIR(op, path string) *Error { return NewError(op, CodeEISDIR, path) }

// ENOTDIR is a convenience constructor.
func ENOTDIR(op, path string) *Error { return NewError(op, CodeENOTDIR, path) }

// ENOTEMPTY is a convenience constructor.
func ENOTEMPTY(op, path string) *Error { return NewError(op, CodeENOTEMPTY, path) }

// ELOOP is a convenience constructor.
func ELOOP(op, path string) *Error { return NewError(op, CodeELOOP, path) }

// IsNotExist reports whether err is (or wraps) an ENOENT *Error.
func IsNotExist(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeENOENT
	}
	return os.IsNotExist(err)
}

// IsExist reports whether err is (or wraps) an EEXIST *Error.
func IsExist(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeEEXIST
	}
	return os.IsExist(err)
}
