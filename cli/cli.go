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

// Package cli handles all of the core command line parsing. It's the first
// entry point after the real main function, and it imports and runs the
// session that hosts the shell (spec §4.5's "single entry point accepts a
// line and runs it to completion").
package cli

import (
	"context"
	"fmt"
	"os"

	cliUtil "github.com/foam/foam/cli/util"
	"github.com/foam/foam/internal/errwrap"

	"github.com/alexflint/go-arg"
)

// CLI is the entry point for using foam normally from the command line.
func CLI(ctx context.Context, data *cliUtil.Data) error {
	if data == nil {
		return fmt.Errorf("this CLI was not run correctly")
	}
	if data.Program == "" || data.Version == "" {
		return fmt.Errorf("program was not compiled correctly")
	}
	if data.Copying == "" {
		return fmt.Errorf("program copyrights were removed, can't run")
	}

	args := Args{}
	args.version = data.Version
	args.description = data.Tagline

	config := arg.Config{
		Program: data.Program,
	}
	parser, err := arg.NewParser(config, &args)
	if err != nil {
		// programming error
		return errwrap.Wrapf(err, "cli config error")
	}
	err = parser.Parse(data.Args[1:]) // args[0] needs to be dropped
	if err == arg.ErrHelp {
		parser.WriteHelp(os.Stdout)
		return nil
	}
	if err == arg.ErrVersion {
		fmt.Printf("%s\n", data.Version) // byon: bring your own newline
		return nil
	}
	if err != nil {
		return cliUtil.CliParseError(err) // consistent errors
	}

	// display the license
	if args.License {
		fmt.Printf("%s", data.Copying) // file comes with a trailing nl
		return nil
	}

	return args.Run(ctx, data)
}

// Args is the CLI parsing structure and type of the parsed result.
type Args struct {
	License bool `arg:"--license" help:"display the license and exit"`

	User   string `arg:"--user" help:"session user name"`
	Config string `arg:"--config" help:"path to a session YAML config file, read through the VFS"`

	Command string `arg:"-c,--command" help:"execute this single command line and exit"`
	Script  string `arg:"positional" help:"path to a shell script to execute; reads stdin interactively if omitted"`

	// version is a private handle for our version string.
	version string `arg:"-"` // ignored from parsing

	// description is a private handle for our description string.
	description string `arg:"-"` // ignored from parsing
}

// Version returns the version string. Implementing this signature is part
// of the API for the cli library.
func (obj *Args) Version() string {
	return obj.version
}

// Description returns a description string. Implementing this signature is
// part of the API for the cli library.
func (obj *Args) Description() string {
	return obj.description
}

// Run starts a session and feeds it either a single -c command, a script
// file, or an interactive stdin stream, in that order of preference.
func (obj *Args) Run(ctx context.Context, data *cliUtil.Data) error {
	return RunSession(ctx, data, obj)
}
