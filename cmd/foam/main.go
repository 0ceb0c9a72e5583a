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

// Command foam is the real entry point of the binary. It builds the Data
// struct that cli.CLI expects and hands off to it immediately.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/foam/foam/cli"
	cliUtil "github.com/foam/foam/cli/util"
	"github.com/foam/foam/internal/license"
)

// set at compile time with -ldflags "-X main.version=..."
var version = "0.0.1-dev"

const program = "foam"

func main() {
	debug := false
	verbose := false
	// --debug/--verbose are consumed here and not passed on to go-arg,
	// which would reject them as unknown.
	args := []string{os.Args[0]}
	for _, a := range os.Args[1:] {
		switch a {
		case "--debug":
			debug = true
		case "--verbose":
			verbose = true
		default:
			args = append(args, a)
		}
	}

	data := &cliUtil.Data{
		Program: cliUtil.SafeProgram(program),
		Version: version,
		Copying: license.Text,
		Tagline: "a browser-based, zero-backend POSIX-like dev environment",
		Flags: cliUtil.Flags{
			Debug:   debug,
			Verbose: verbose,
		},
		Args: args,
	}

	if err := cli.CLI(context.Background(), data); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
