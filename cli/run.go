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

package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	cliUtil "github.com/foam/foam/cli/util"
	"github.com/foam/foam/internal/config"
	"github.com/foam/foam/internal/env"
	"github.com/foam/foam/internal/errwrap"
	"github.com/foam/foam/internal/pathutil"
	"github.com/foam/foam/internal/shell/builtins"
	"github.com/foam/foam/internal/shell/exec"
	"github.com/foam/foam/internal/store"
	"github.com/foam/foam/internal/vfs"

	"github.com/spf13/afero"
)

// RunSession builds one Foam session (config, VFS, environment, executor)
// over a fresh in-memory backend and feeds it a -c command, a script file,
// or an interactive stdin stream, in that order.
//
// This mirrors the lifecycle the teacher's `run` subcommand drives (build
// state, install a signal handler, execute, report an exit status) even
// though there's no engine graph here to watch converge - a shell session
// runs to completion and exits (spec §4.5).
func RunSession(ctx context.Context, data *cliUtil.Data, args *Args) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cliUtil.Hello(data.Program, data.Version, data.Flags)

	user := args.User
	if user == "" {
		user = "user"
	}

	backend := afero.NewMemMapFs()
	st := store.New(backend)
	e := env.New(user)
	resolver := pathutil.New(e)
	now := func() int64 { return time.Now().UnixMilli() }
	v := vfs.New(st, resolver, e, now)
	v.Logf = func(format string, a ...interface{}) {
		if data.Flags.Debug {
			log.Printf("vfs: "+format, a...)
		}
	}

	if err := st.Init(now(), user); err != nil {
		return errwrap.Wrapf(err, "session: init store")
	}

	cfg := config.Default()
	if args.Config != "" {
		loaded, err := config.LoadFromVFS(v, args.Config)
		if err != nil {
			return errwrap.Wrapf(err, "session: load config")
		}
		cfg = loaded
	}
	if cfg.Path != "" {
		e.Set(env.Path, cfg.Path)
	}

	registry := builtins.New()
	ex := exec.New(v, e, registry)
	ex.Logf = func(format string, a ...interface{}) {
		if data.Flags.Debug {
			log.Printf("exec: "+format, a...)
		}
	}

	// install the exit signal handler, same shape as the teacher's `run`
	// and `setup` subcommands use.
	exit := make(chan struct{})
	defer close(exit)
	go func() {
		signals := make(chan os.Signal, 3+1)
		signal.Notify(signals, os.Interrupt)
		signal.Notify(signals, syscall.SIGTERM)
		select {
		case <-signals:
			cancel()
		case <-exit:
		}
	}()

	stdout := os.Stdout
	stderr := os.Stderr

	switch {
	case args.Command != "":
		return runLine(ex, args.Command, stdout, stderr)
	case args.Script != "":
		body, err := v.ReadFile(args.Script, vfs.ReadFileOptions{})
		if err != nil {
			src, ferr := os.ReadFile(args.Script)
			if ferr != nil {
				return errwrap.Wrapf(err, "session: read script %s", args.Script)
			}
			body = src
		}
		return runLine(ex, string(body), stdout, stderr)
	default:
		return runInteractive(ctx, ex, stdout, stderr)
	}
}

// runLine runs one blob of shell source to completion and translates its
// exit code into a process error the way spec §4.5's exit code table
// describes (0 success, nonzero otherwise).
func runLine(ex *exec.Exec, src string, stdout, stderr *os.File) error {
	var outBuf, errBuf bytes.Buffer
	code := ex.Run(src, &outBuf, &errBuf)
	fmt.Fprint(stdout, outBuf.String())
	fmt.Fprint(stderr, errBuf.String())
	if code != 0 {
		return fmt.Errorf("exit status %d", code)
	}
	return nil
}

// runInteractive feeds the executor one line of stdin at a time until EOF
// or the context is cancelled, printing a prompt bearing the current
// working directory the way an interactive shell does.
func runInteractive(ctx context.Context, ex *exec.Exec, stdout, stderr *os.File) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pwd, _ := ex.Env.Get(env.Pwd)
		fmt.Fprintf(stdout, "%s $ ", pwd)

		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := runLine(ex, line, stdout, stderr); err != nil {
			fmt.Fprintln(stderr, err)
		}
		if ex.Exiting {
			return nil
		}
	}
}
