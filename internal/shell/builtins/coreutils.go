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
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/foam/foam/internal/pathutil"
	"github.com/foam/foam/internal/shell/exec"
	"github.com/foam/foam/internal/vfs"
)

func (obj *Registry) registerCoreutils() {
	obj.Register("ls", builtinLs)
	obj.Register("cat", builtinCat)
	obj.Register("grep", builtinGrep)
	obj.Register("sed", builtinSed)
	obj.Register("sort", builtinSort)
	obj.Register("uniq", builtinUniq)
	obj.Register("wc", builtinWc)
	obj.Register("find", builtinFind)
	obj.Register("head", builtinHead)
	obj.Register("tail", builtinTail)
	obj.Register("cp", builtinCp)
	obj.Register("mv", builtinMv)
	obj.Register("rm", builtinRm)
	obj.Register("mkdir", builtinMkdir)
	obj.Register("touch", builtinTouch)
	obj.Register("cut", builtinCut)
	obj.Register("tr", builtinTr)
	obj.Register("chmod", builtinChmod)
	obj.Register("diff", builtinDiff)
	obj.Register("tee", builtinTee)
	obj.Register("xargs", obj.builtinXargs)
	obj.Register("ln", builtinLn)
	obj.Register("basename", builtinBasename)
	obj.Register("dirname", builtinDirname)
	obj.Register("readlink", builtinReadlink)
}

func stripFlags(args []string) (flags map[string]bool, rest []string) {
	flags = map[string]bool{}
	for _, a := range args {
		if strings.HasPrefix(a, "-") && len(a) > 1 && a != "-" {
			for _, c := range a[1:] {
				flags[string(c)] = true
			}
			continue
		}
		rest = append(rest, a)
	}
	return flags, rest
}

func builtinLs(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	path := "."
	if len(rest) > 0 {
		path = rest[0]
	}
	inode, err := e.VFS.Stat(path)
	if err != nil {
		fmt.Fprintf(ioc.Stderr, "ls: %s: No such file or directory\n", path)
		return 1
	}
	if !inode.IsDir() {
		fmt.Fprintln(ioc.Stdout, pathutil.Base(path))
		return 0
	}
	entries, err := e.VFS.Readdir(path, vfs.ReaddirOptions{})
	if err != nil {
		fmt.Fprintf(ioc.Stderr, "ls: %s: %v\n", path, err)
		return 1
	}
	for _, ent := range entries {
		if !flags["a"] && strings.HasPrefix(ent.Name, ".") {
			continue
		}
		if flags["l"] {
			typeChar := "-"
			if ent.Type == vfs.TypeDir {
				typeChar = "d"
			} else if ent.Type == vfs.TypeSymlink {
				typeChar = "l"
			}
			fmt.Fprintf(ioc.Stdout, "%srwxr-xr-x %s\n", typeChar, ent.Name)
		} else {
			fmt.Fprintln(ioc.Stdout, ent.Name)
		}
	}
	return 0
}

func builtinCat(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		ioc.Stdout.Write(ioc.Stdin.Bytes())
		return 0
	}
	status := 0
	for _, p := range args {
		data, err := e.VFS.ReadFile(p, vfs.ReadFileOptions{})
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "cat: %s: No such file or directory\n", p)
			status = 1
			continue
		}
		ioc.Stdout.Write(data)
	}
	return status
}

func builtinGrep(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	if len(rest) == 0 {
		return 2
	}
	pattern := rest[0]
	files := rest[1:]

	match := func(line string) bool {
		if flags["i"] {
			return strings.Contains(strings.ToLower(line), strings.ToLower(pattern))
		}
		return strings.Contains(line, pattern)
	}

	found := false
	grepLines := func(src string, label string, multi bool) {
		scanner := bufio.NewScanner(strings.NewReader(src))
		for scanner.Scan() {
			line := scanner.Text()
			ok := match(line)
			if flags["v"] {
				ok = !ok
			}
			if ok {
				found = true
				if multi {
					fmt.Fprintf(ioc.Stdout, "%s:%s\n", label, line)
				} else {
					fmt.Fprintln(ioc.Stdout, line)
				}
			}
		}
	}

	if len(files) == 0 {
		grepLines(ioc.Stdin.String(), "", false)
	} else {
		for _, f := range files {
			data, err := e.VFS.ReadFile(f, vfs.ReadFileOptions{})
			if err != nil {
				fmt.Fprintf(ioc.Stderr, "grep: %s: No such file or directory\n", f)
				continue
			}
			grepLines(string(data), f, len(files) > 1)
		}
	}
	if !found {
		return 1
	}
	return 0
}

// builtinSed supports only the single most common form scripts lean on:
// `sed 's/FROM/TO/[g]'`.
func builtinSed(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 1
	}
	expr := args[0]
	var input string
	if len(args) > 1 {
		data, err := e.VFS.ReadFile(args[1], vfs.ReadFileOptions{})
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "sed: %s: No such file or directory\n", args[1])
			return 1
		}
		input = string(data)
	} else {
		input = ioc.Stdin.String()
	}
	if !strings.HasPrefix(expr, "s") || len(expr) < 2 {
		fmt.Fprint(ioc.Stdout, input)
		return 0
	}
	delim := expr[1]
	parts := strings.Split(expr[2:], string(delim))
	if len(parts) < 2 {
		fmt.Fprint(ioc.Stdout, input)
		return 0
	}
	from, to := parts[0], parts[1]
	global := len(parts) > 2 && strings.Contains(parts[2], "g")
	if global {
		fmt.Fprint(ioc.Stdout, strings.ReplaceAll(input, from, to))
	} else {
		fmt.Fprint(ioc.Stdout, strings.Replace(input, from, to, 1))
	}
	return 0
}

func builtinSort(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	var text string
	if len(rest) == 0 {
		text = ioc.Stdin.String()
	} else {
		data, err := e.VFS.ReadFile(rest[0], vfs.ReadFileOptions{})
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "sort: %s: No such file or directory\n", rest[0])
			return 1
		}
		text = string(data)
	}
	lines := splitNonEmptyLines(text)
	if flags["n"] {
		sort.Slice(lines, func(i, j int) bool {
			a, _ := strconv.ParseFloat(strings.TrimSpace(lines[i]), 64)
			b, _ := strconv.ParseFloat(strings.TrimSpace(lines[j]), 64)
			return a < b
		})
	} else {
		sort.Strings(lines)
	}
	if flags["r"] {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}
	for _, l := range lines {
		fmt.Fprintln(ioc.Stdout, l)
	}
	return 0
}

func splitNonEmptyLines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}

func builtinUniq(_ *exec.Exec, _ []string, ioc *exec.IO) int {
	lines := splitNonEmptyLines(ioc.Stdin.String())
	var out []string
	for i, l := range lines {
		if i == 0 || l != lines[i-1] {
			out = append(out, l)
		}
	}
	for _, l := range out {
		fmt.Fprintln(ioc.Stdout, l)
	}
	return 0
}

func builtinWc(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	var text string
	if len(rest) == 0 {
		text = ioc.Stdin.String()
	} else {
		data, err := e.VFS.ReadFile(rest[0], vfs.ReadFileOptions{})
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "wc: %s: No such file or directory\n", rest[0])
			return 1
		}
		text = string(data)
	}
	lineCount := strings.Count(text, "\n")
	wordCount := len(strings.Fields(text))
	byteCount := len(text)
	switch {
	case flags["l"]:
		fmt.Fprintln(ioc.Stdout, lineCount)
	case flags["w"]:
		fmt.Fprintln(ioc.Stdout, wordCount)
	case flags["c"]:
		fmt.Fprintln(ioc.Stdout, byteCount)
	default:
		fmt.Fprintf(ioc.Stdout, "%d %d %d\n", lineCount, wordCount, byteCount)
	}
	return 0
}

func builtinFind(e *exec.Exec, args []string, ioc *exec.IO) int {
	root := "."
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		root = args[0]
	}
	resolved := e.VFS.Resolver.Resolve(root)
	matches, err := e.VFS.Glob("**", resolved)
	if err != nil {
		return 1
	}
	for _, m := range matches {
		fmt.Fprintln(ioc.Stdout, m)
	}
	return 0
}

func builtinHead(e *exec.Exec, args []string, ioc *exec.IO) int {
	return headTail(e, args, ioc, true)
}

func builtinTail(e *exec.Exec, args []string, ioc *exec.IO) int {
	return headTail(e, args, ioc, false)
}

func headTail(e *exec.Exec, args []string, ioc *exec.IO, head bool) int {
	n := 10
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			n, _ = strconv.Atoi(args[i+1])
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	var text string
	if len(rest) == 0 {
		text = ioc.Stdin.String()
	} else {
		data, err := e.VFS.ReadFile(rest[0], vfs.ReadFileOptions{})
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "%s: No such file or directory\n", rest[0])
			return 1
		}
		text = string(data)
	}
	lines := splitNonEmptyLines(text)
	if head {
		if n > len(lines) {
			n = len(lines)
		}
		lines = lines[:n]
	} else {
		if n > len(lines) {
			n = len(lines)
		}
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		fmt.Fprintln(ioc.Stdout, l)
	}
	return 0
}

func builtinCp(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	if len(rest) != 2 {
		fmt.Fprintln(ioc.Stderr, "cp: missing operand")
		return 1
	}
	if err := e.VFS.Copy(rest[0], rest[1], vfs.CopyOptions{Recursive: flags["r"] || flags["R"]}); err != nil {
		fmt.Fprintf(ioc.Stderr, "cp: %v\n", err)
		return 1
	}
	return 0
}

func builtinMv(e *exec.Exec, args []string, ioc *exec.IO) int {
	_, rest := stripFlags(args)
	if len(rest) != 2 {
		fmt.Fprintln(ioc.Stderr, "mv: missing operand")
		return 1
	}
	if err := e.VFS.Rename(rest[0], rest[1]); err != nil {
		fmt.Fprintf(ioc.Stderr, "mv: %v\n", err)
		return 1
	}
	return 0
}

func builtinRm(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	status := 0
	for _, p := range rest {
		inode, err := e.VFS.Lstat(p)
		if err != nil {
			if !flags["f"] {
				fmt.Fprintf(ioc.Stderr, "rm: %s: No such file or directory\n", p)
				status = 1
			}
			continue
		}
		if inode.IsDir() {
			if err := e.VFS.Rmdir(p, vfs.RmdirOptions{Recursive: flags["r"] || flags["R"]}); err != nil {
				fmt.Fprintf(ioc.Stderr, "rm: %v\n", err)
				status = 1
			}
			continue
		}
		if err := e.VFS.Unlink(p); err != nil {
			fmt.Fprintf(ioc.Stderr, "rm: %v\n", err)
			status = 1
		}
	}
	return status
}

func builtinMkdir(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	status := 0
	for _, p := range rest {
		if err := e.VFS.Mkdir(p, vfs.MkdirOptions{Recursive: flags["p"]}); err != nil {
			fmt.Fprintf(ioc.Stderr, "mkdir: %v\n", err)
			status = 1
		}
	}
	return status
}

func builtinTouch(e *exec.Exec, args []string, ioc *exec.IO) int {
	status := 0
	for _, p := range args {
		if e.VFS.Exists(p) {
			continue
		}
		if err := e.VFS.WriteFile(p, nil, vfs.WriteFileOptions{}); err != nil {
			fmt.Fprintf(ioc.Stderr, "touch: %v\n", err)
			status = 1
		}
	}
	return status
}

func builtinCut(_ *exec.Exec, args []string, ioc *exec.IO) int {
	delim := "\t"
	field := 1
	for i := 0; i < len(args); i++ {
		switch {
		case strings.HasPrefix(args[i], "-d"):
			if args[i] == "-d" && i+1 < len(args) {
				delim = args[i+1]
				i++
			} else {
				delim = strings.TrimPrefix(args[i], "-d")
			}
		case strings.HasPrefix(args[i], "-f"):
			if args[i] == "-f" && i+1 < len(args) {
				field, _ = strconv.Atoi(args[i+1])
				i++
			} else {
				field, _ = strconv.Atoi(strings.TrimPrefix(args[i], "-f"))
			}
		}
	}
	for _, line := range splitNonEmptyLines(ioc.Stdin.String()) {
		parts := strings.Split(line, delim)
		if field >= 1 && field <= len(parts) {
			fmt.Fprintln(ioc.Stdout, parts[field-1])
		}
	}
	return 0
}

func builtinTr(_ *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) < 2 {
		ioc.Stdout.Write(ioc.Stdin.Bytes())
		return 0
	}
	from, to := args[0], args[1]
	text := ioc.Stdin.String()
	for i := 0; i < len(from) && i < len(to); i++ {
		text = strings.ReplaceAll(text, string(from[i]), string(to[i]))
	}
	fmt.Fprint(ioc.Stdout, text)
	return 0
}

func builtinChmod(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) < 2 {
		return 1
	}
	mode, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil {
		fmt.Fprintf(ioc.Stderr, "chmod: invalid mode: %s\n", args[0])
		return 1
	}
	status := 0
	for _, p := range args[1:] {
		if err := e.VFS.Chmod(p, uint32(mode)); err != nil {
			fmt.Fprintf(ioc.Stderr, "chmod: %v\n", err)
			status = 1
		}
	}
	return status
}

// builtinDiff renders sergi/go-diff's character-level diff split back onto
// lines: deleted text as "< " lines, inserted text as "> " lines (spec
// §4.2's "diff" command).
func builtinDiff(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) != 2 {
		fmt.Fprintln(ioc.Stderr, "diff: missing operand")
		return 2
	}
	a, errA := e.VFS.ReadFile(args[0], vfs.ReadFileOptions{})
	b, errB := e.VFS.ReadFile(args[1], vfs.ReadFileOptions{})
	if errA != nil || errB != nil {
		fmt.Fprintln(ioc.Stderr, "diff: No such file or directory")
		return 2
	}
	if string(a) == string(b) {
		return 0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(a), string(b), false)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			for _, l := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
				fmt.Fprintf(ioc.Stdout, "> %s\n", l)
			}
		case diffmatchpatch.DiffDelete:
			for _, l := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
				fmt.Fprintf(ioc.Stdout, "< %s\n", l)
			}
		}
	}
	return 1
}

func builtinTee(e *exec.Exec, args []string, ioc *exec.IO) int {
	data := ioc.Stdin.Bytes()
	ioc.Stdout.Write(data)
	for _, p := range args {
		if err := e.VFS.WriteFile(p, data, vfs.WriteFileOptions{}); err != nil {
			fmt.Fprintf(ioc.Stderr, "tee: %v\n", err)
		}
	}
	return 0
}

func (obj *Registry) builtinXargs(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 1
	}
	handler, ok := obj.Lookup(args[0])
	if !ok {
		fmt.Fprintf(ioc.Stderr, "xargs: %s: command not found\n", args[0])
		return 127
	}
	fields := strings.Fields(ioc.Stdin.String())
	return handler(e, append(append([]string(nil), args[1:]...), fields...), ioc)
}

func builtinLn(e *exec.Exec, args []string, ioc *exec.IO) int {
	flags, rest := stripFlags(args)
	if len(rest) != 2 {
		fmt.Fprintln(ioc.Stderr, "ln: missing operand")
		return 1
	}
	if !flags["s"] {
		fmt.Fprintln(ioc.Stderr, "ln: only symbolic links are supported")
		return 1
	}
	if err := e.VFS.Symlink(rest[0], rest[1]); err != nil {
		fmt.Fprintf(ioc.Stderr, "ln: %v\n", err)
		return 1
	}
	return 0
}

func builtinBasename(_ *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 1
	}
	fmt.Fprintln(ioc.Stdout, pathutil.Base(args[0]))
	return 0
}

func builtinDirname(_ *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 1
	}
	fmt.Fprintln(ioc.Stdout, pathutil.Parent(args[0]))
	return 0
}

func builtinReadlink(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 1
	}
	target, err := e.VFS.Readlink(args[0])
	if err != nil {
		fmt.Fprintf(ioc.Stderr, "readlink: %v\n", err)
		return 1
	}
	fmt.Fprintln(ioc.Stdout, target)
	return 0
}
