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

	"github.com/foam/foam/internal/env"
	"github.com/foam/foam/internal/gitfacade"
	"github.com/foam/foam/internal/npmfacade"
	"github.com/foam/foam/internal/shell/exec"
)

// registerFacades wires the `git` and `npm` command surfaces in as regular
// registry entries: each invocation builds a fresh façade bound to the
// calling Exec's VFS, since a façade is cheap and stateless beyond the VFS
// it wraps (spec §4.7/§4.8).
func (obj *Registry) registerFacades() {
	obj.Register("git", builtinGit)
	obj.Register("npm", builtinNpm)
	obj.Register("npx", builtinNpm)
}

func builtinGit(e *exec.Exec, args []string, ioc *exec.IO) int {
	facade := gitfacade.New(e.VFS)
	cwd := mustGet(e.Env, env.Pwd)
	return facade.Run(cwd, args, ioc.Stdout, ioc.Stderr)
}

func builtinNpm(e *exec.Exec, args []string, ioc *exec.IO) int {
	if len(args) == 0 {
		fmt.Fprintln(ioc.Stderr, "npm: missing command")
		return 1
	}
	facade := npmfacade.New(e.VFS)
	facade.Logf = e.Logf
	cwd := mustGet(e.Env, env.Pwd)

	switch args[0] {
	case "init":
		name := ""
		if len(args) > 2 {
			name = args[2]
		}
		if err := facade.Init(cwd, name); err != nil {
			fmt.Fprintf(ioc.Stderr, "npm: %v\n", err)
			return 1
		}
		return 0
	case "install", "i", "add":
		status := 0
		for _, spec := range args[1:] {
			if spec == "" || spec[0] == '-' {
				continue
			}
			if err := facade.Install(cwd, spec); err != nil {
				fmt.Fprintf(ioc.Stderr, "npm: %v\n", err)
				status = 1
			}
		}
		return status
	case "list", "ls":
		names, err := facade.List(cwd)
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "npm: %v\n", err)
			return 1
		}
		for _, n := range names {
			fmt.Fprintln(ioc.Stdout, n)
		}
		return 0
	case "run", "run-script":
		if len(args) < 2 {
			fmt.Fprintln(ioc.Stderr, "npm: missing script name")
			return 1
		}
		cmd, err := facade.ScriptCommand(cwd, args[1])
		if err != nil {
			fmt.Fprintf(ioc.Stderr, "npm: %v\n", err)
			return 1
		}
		return e.Run(cmd, ioc.Stdout, ioc.Stderr)
	default:
		fmt.Fprintf(ioc.Stderr, "npm: unknown command %q\n", args[0])
		return 1
	}
}
