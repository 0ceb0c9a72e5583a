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

package exec

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/foam/foam/internal/env"
	"github.com/foam/foam/internal/pathutil"
	"github.com/foam/foam/internal/store"
	"github.com/foam/foam/internal/vfs"
)

// fakeRegistry maps command names directly to handlers, standing in for
// internal/shell/builtins.Registry so this package can test the executor
// without importing its consumer (which imports exec itself).
type fakeRegistry map[string]Handler

func (r fakeRegistry) Lookup(name string) (Handler, bool) {
	h, ok := r[name]
	return h, ok
}

func newTestExec(t *testing.T, reg fakeRegistry) *Exec {
	t.Helper()
	backend := afero.NewMemMapFs()
	st := store.New(backend)
	e := env.New("tester")
	resolver := pathutil.New(e)
	now := func() int64 { return 0 }
	v := vfs.New(st, resolver, e, now)
	if err := st.Init(0, "tester"); err != nil {
		t.Fatalf("store init: %v", err)
	}
	if reg == nil {
		reg = fakeRegistry{}
	}
	reg["echo"] = func(e *Exec, args []string, io *IO) int {
		for i, a := range args {
			if i > 0 {
				io.Stdout.WriteString(" ")
			}
			io.Stdout.WriteString(a)
		}
		io.Stdout.WriteString("\n")
		return 0
	}
	reg["true"] = func(e *Exec, args []string, io *IO) int { return 0 }
	reg["false"] = func(e *Exec, args []string, io *IO) int { return 1 }
	reg["grep"] = func(e *Exec, args []string, io *IO) int {
		needle := ""
		if len(args) > 0 {
			needle = args[0]
		}
		found := false
		for _, line := range bytes.Split(io.Stdin.Bytes(), []byte("\n")) {
			if bytes.Contains(line, []byte(needle)) && len(line) > 0 {
				io.Stdout.Write(line)
				io.Stdout.WriteString("\n")
				found = true
			}
		}
		if !found {
			return 1
		}
		return 0
	}
	return New(v, e, reg)
}

func run(t *testing.T, ex *Exec, src string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := ex.Run(src, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestRunSimpleCommand(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "echo hello world")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "hello world\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunCommandNotFound(t *testing.T) {
	ex := newTestExec(t, nil)
	_, stderr, code := run(t, ex, "doesnotexist")
	if code != 127 {
		t.Fatalf("exit code = %d, want 127", code)
	}
	if stderr == "" {
		t.Fatalf("expected a command-not-found message on stderr")
	}
}

func TestRunPipeline(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "echo 'one\ntwo\nthree' | grep two")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "two\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunLogicChainShortCircuit(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "false && echo nope || echo yep")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "yep\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunVariableExpansion(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "X=hello; echo $X world")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "hello world\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunIfElse(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "if false; then echo a; else echo b; fi")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "b\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunForLoop(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "for i in a b c; do echo $i; done")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "a\nb\nc\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunWhileIterationCap(t *testing.T) {
	ex := newTestExec(t, nil)
	_, _, code := run(t, ex, "while true; do true; done")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (capped loop should still complete)", code)
	}
}

func TestRunFunctionDefAndCall(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "greet() { echo hi $1; }; greet world")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "hi world\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunArithmeticSubstitution(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "echo $((2 + 3 * 4))")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "14\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunCommandSubstitution(t *testing.T) {
	ex := newTestExec(t, nil)
	out, _, code := run(t, ex, "echo $(echo nested)")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out != "nested\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunSyntaxErrorDoesNotPanic(t *testing.T) {
	ex := newTestExec(t, nil)
	_, stderr, code := run(t, ex, "if true; then echo a")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stderr == "" {
		t.Fatalf("expected a syntax error message on stderr")
	}
}

func TestRunBackgroundJobRegistersInJobsTable(t *testing.T) {
	ex := newTestExec(t, nil)
	_, _, code := run(t, ex, "true &")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if len(ex.Jobs()) != 1 {
		t.Fatalf("expected 1 registered job, got %d", len(ex.Jobs()))
	}
}
