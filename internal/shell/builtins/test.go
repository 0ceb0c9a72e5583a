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

package builtins

import (
	"strconv"

	"github.com/foam/foam/internal/shell/exec"
)

func builtinTest(e *exec.Exec, args []string, _ *exec.IO) int {
	if evalTest(e, args) {
		return 0
	}
	return 1
}

func builtinBracketTest(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) > 0 && args[len(args)-1] == "]" {
		args = args[:len(args)-1]
	}
	return builtinTest(e, args, ioc)
}

// evalTest implements the `test`/`[` predicate grammar spec §4.5 names:
// unary file/string tests, binary string/integer comparisons, and a single
// leading `!` negation.
func evalTest(e *exec.Exec, args []string) bool {
	negate := false
	if len(args) > 0 && args[0] == "!" {
		negate = true
		args = args[1:]
	}
	result := evalTestPositive(e, args)
	if negate {
		return !result
	}
	return result
}

func evalTestPositive(e *exec.Exec, args []string) bool {
	switch len(args) {
	case 0:
		return false
	case 1:
		return args[0] != ""
	case 2:
		return evalUnary(e, args[0], args[1])
	case 3:
		return evalBinary(e, args[0], args[1], args[2])
	}
	return false
}

func evalUnary(e *exec.Exec, op, operand string) bool {
	switch op {
	case "-z":
		return operand == ""
	case "-n":
		return operand != ""
	case "-e":
		return e.VFS.Exists(operand)
	case "-f":
		inode, err := e.VFS.Stat(operand)
		return err == nil && !inode.IsDir() && !inode.IsSymlink()
	case "-d":
		inode, err := e.VFS.Stat(operand)
		return err == nil && inode.IsDir()
	case "-L", "-h":
		inode, err := e.VFS.Lstat(operand)
		return err == nil && inode.IsSymlink()
	case "-r", "-w", "-x":
		return e.VFS.Exists(operand) // no permission model beyond mode bits, spec §4.3
	}
	return false
}

func evalBinary(e *exec.Exec, a, op, b string) bool {
	switch op {
	case "=", "==":
		return a == b
	case "!=":
		return a != b
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		an, _ := strconv.ParseInt(a, 10, 64)
		bn, _ := strconv.ParseInt(b, 10, 64)
		switch op {
		case "-eq":
			return an == bn
		case "-ne":
			return an != bn
		case "-lt":
			return an < bn
		case "-le":
			return an <= bn
		case "-gt":
			return an > bn
		case "-ge":
			return an >= bn
		}
	}
	return false
}
