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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/foam/foam/internal/env"
	"github.com/foam/foam/internal/shell/exec"
	"github.com/foam/foam/internal/vfs"
)

func (obj *Registry) registerCore() {
	obj.Register("cd", builtinCd)
	obj.Register("pwd", builtinPwd)
	obj.Register("export", builtinExport)
	obj.Register("env", builtinEnv)
	obj.Register("printenv", builtinEnv)
	obj.Register("unset", builtinUnset)
	obj.Register("alias", obj.builtinAlias)
	obj.Register("unalias", obj.builtinUnalias)
	obj.Register("type", obj.builtinType)
	obj.Register("which", obj.builtinType)
	obj.Register("exit", builtinExit)
	obj.Register("true", func(*exec.Exec, []string, *exec.IO) int { return 0 })
	obj.Register("false", func(*exec.Exec, []string, *exec.IO) int { return 1 })
	obj.Register("echo", builtinEcho)
	obj.Register("printf", builtinPrintf)
	obj.Register("test", builtinTest)
	obj.Register("[", builtinBracketTest)
	obj.Register("sleep", builtinSleep)
	obj.Register("seq", builtinSeq)
	obj.Register("jobs", builtinJobs)
	obj.Register("source", obj.builtinSource)
	obj.Register(".", obj.builtinSource)
	obj.Register("date", builtinDate)
	obj.Register("hostname", builtinHostname)
	obj.Register("whoami", builtinWhoami)
	obj.Register("uname", builtinUname)
	obj.Register("clear", builtinClear)
	obj.Register("history", builtinHistory)
}

func builtinCd(e *exec.Exec, args []string, ioc *exec.IO) int {
	target := "~"
	if len(args) > 0 {
		target = args[0]
	}
	if target == "-" {
		old, _ := e.Env.Get(env.OldPwd)
		target = old
	}
	resolved := e.VFS.Resolver.ResolveFrom(target, mustGet(e.Env, env.Pwd))
	inode, err := e.VFS.Stat(resolved)
	if err != nil {
		fmt.Fprintf(ioc.Stderr, "cd: %s: no such file or directory\n", target)
		return 1
	}
	if !inode.IsDir() {
		fmt.Fprintf(ioc.Stderr, "cd: %s: not a directory\n", target)
		return 1
	}
	e.Env.Set(env.OldPwd, mustGet(e.Env, env.Pwd))
	e.Env.Set(env.Pwd, resolved)
	return 0
}

func mustGet(e *env.Env, name string) string {
	v, _ := e.Get(name)
	return v
}

func builtinPwd(e *exec.Exec, _ []string, ioc *exec.IO) int {
	fmt.Fprintln(ioc.Stdout, mustGet(e.Env, env.Pwd))
	return 0
}

func builtinExport(e *exec.Exec, args []string, ioc *exec.IO) int {
	for _, a := range args {
		if idx := strings.IndexByte(a, '='); idx >= 0 {
			e.Env.Set(a[:idx], a[idx+1:])
		}
	}
	return 0
}

func builtinEnv(e *exec.Exec, _ []string, ioc *exec.IO) int {
	vars := e.Env.All()
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(ioc.Stdout, "%s=%s\n", k, vars[k])
	}
	return 0
}

func builtinUnset(e *exec.Exec, args []string, _ *exec.IO) int {
	for _, a := range args {
		e.Env.Unset(a)
	}
	return 0
}

func (obj *Registry) builtinAlias(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		names := make([]string, 0)
		aliases := obj.Aliases()
		for k := range aliases {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(ioc.Stdout, "alias %s='%s'\n", k, aliases[k])
		}
		return 0
	}
	for _, a := range args {
		if idx := strings.IndexByte(a, '='); idx >= 0 {
			obj.SetAlias(a[:idx], strings.Trim(a[idx+1:], "'\""))
		}
	}
	return 0
}

func (obj *Registry) builtinUnalias(_ *exec.Exec, args []string, _ *exec.IO) int {
	for _, a := range args {
		obj.Unalias(a)
	}
	return 0
}

func (obj *Registry) builtinType(e *exec.Exec, args []string, ioc *exec.IO) int {
	status := 0
	for _, a := range args {
		if obj.Has(a) {
			fmt.Fprintf(ioc.Stdout, "%s is a shell builtin\n", a)
		} else {
			fmt.Fprintf(ioc.Stderr, "%s: not found\n", a)
			status = 1
		}
	}
	return status
}

func builtinExit(e *exec.Exec, args []string, _ *exec.IO) int {
	code := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	e.Exiting = true
	e.ExitCode = code
	return code
}

func builtinEcho(_ *exec.Exec, args []string, ioc *exec.IO) int {
	noNewline := false
	if len(args) > 0 && args[0] == "-n" {
		noNewline = true
		args = args[1:]
	}
	fmt.Fprint(ioc.Stdout, strings.Join(args, " "))
	if !noNewline {
		fmt.Fprintln(ioc.Stdout)
	}
	return 0
}

func builtinPrintf(_ *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 0
	}
	format := args[0]
	out := expandPrintfFormat(format, args[1:])
	fmt.Fprint(ioc.Stdout, out)
	return 0
}

// expandPrintfFormat handles the small subset of printf conversions shell
// scripts actually use (%s %d %% and \n\t escapes), cycling remaining
// format args over extra values the way POSIX printf does.
func expandPrintfFormat(format string, args []string) string {
	var out strings.Builder
	ai := 0
	nextArg := func() string {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return ""
	}
	runes := []rune(format)
	for {
		start := ai
		expandPrintfOnce(&out, runes, nextArg)
		if ai >= len(args) || ai == start {
			break
		}
	}
	return out.String()
}

func expandPrintfOnce(out *strings.Builder, runes []rune, nextArg func() string) {
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			switch runes[i+1] {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			default:
				out.WriteRune(runes[i+1])
			}
			i++
		case r == '%' && i+1 < len(runes):
			switch runes[i+1] {
			case 's':
				out.WriteString(nextArg())
			case 'd':
				v := nextArg()
				n, _ := strconv.Atoi(v)
				out.WriteString(strconv.Itoa(n))
			case '%':
				out.WriteByte('%')
			default:
				out.WriteRune(r)
				out.WriteRune(runes[i+1])
			}
			i++
		default:
			out.WriteRune(r)
		}
	}
}

func builtinSleep(_ *exec.Exec, _ []string, _ *exec.IO) int {
	return 0 // no wall-clock delay in a simulated, cooperative shell (spec §5)
}

func builtinSeq(_ *exec.Exec, args []string, ioc *exec.IO) int {
	start, end, step := 1, 1, 1
	switch len(args) {
	case 1:
		end, _ = strconv.Atoi(args[0])
	case 2:
		start, _ = strconv.Atoi(args[0])
		end, _ = strconv.Atoi(args[1])
	case 3:
		start, _ = strconv.Atoi(args[0])
		step, _ = strconv.Atoi(args[1])
		end, _ = strconv.Atoi(args[2])
	default:
		return 1
	}
	if step == 0 {
		return 1
	}
	if step > 0 {
		for n := start; n <= end; n += step {
			fmt.Fprintln(ioc.Stdout, n)
		}
	} else {
		for n := start; n >= end; n += step {
			fmt.Fprintln(ioc.Stdout, n)
		}
	}
	return 0
}

func builtinJobs(e *exec.Exec, _ []string, ioc *exec.IO) int {
	for _, j := range e.Jobs() {
		state := "Running"
		if j.Done {
			state = "Done"
		}
		fmt.Fprintf(ioc.Stdout, "[%s] %s\n", j.PID, state)
	}
	return 0
}

func (obj *Registry) builtinSource(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		return 1
	}
	data, err := e.VFS.ReadFile(args[0], vfs.ReadFileOptions{})
	if err != nil {
		fmt.Fprintf(ioc.Stderr, "source: %s: %v\n", args[0], err)
		return 1
	}
	return e.Run(string(data), ioc.Stdout, ioc.Stderr)
}

func builtinDate(_ *exec.Exec, _ []string, ioc *exec.IO) int {
	fmt.Fprintln(ioc.Stdout, time.Now().UTC().Format(time.UnixDate))
	return 0
}

func builtinHostname(_ *exec.Exec, _ []string, ioc *exec.IO) int {
	fmt.Fprintln(ioc.Stdout, "foam")
	return 0
}

func builtinWhoami(e *exec.Exec, _ []string, ioc *exec.IO) int {
	fmt.Fprintln(ioc.Stdout, mustGet(e.Env, env.User))
	return 0
}

func builtinUname(_ *exec.Exec, args []string, ioc *exec.IO) int {
	for _, a := range args {
		if a == "-a" || a == "-s" {
			fmt.Fprintln(ioc.Stdout, "Foam")
			return 0
		}
	}
	fmt.Fprintln(ioc.Stdout, "Foam")
	return 0
}

func builtinClear(_ *exec.Exec, _ []string, ioc *exec.IO) int {
	fmt.Fprint(ioc.Stdout, "\x1b[2J\x1b[H")
	return 0
}

func builtinHistory(_ *exec.Exec, _ []string, _ *exec.IO) int {
	return 0 // history is kept by the terminal front-end, not the executor
}
