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

// Package exec evaluates a parsed shell Script against a VFS and Env,
// implementing spec §4.5: pipelines, logic chains, background jobs,
// control structures, variable/command/arithmetic substitution and
// function call semantics.
package exec

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/foam/foam/internal/env"
	"github.com/foam/foam/internal/shell/arith"
	"github.com/foam/foam/internal/shell/parser"
	"github.com/foam/foam/internal/vfs"
)

// maxWhileIterations bounds unconditional loops so a runaway `while true`
// from a broken script can't wedge the single-threaded executor forever
// (spec §4.5, "Iteration cap").
const maxWhileIterations = 10000

// Handler is one built-in or coreutils-bridge command implementation,
// registered in a Registry (internal/shell/builtins).
type Handler func(e *Exec, args []string, io *IO) int

// IO bundles the three standard streams a command runs against. Pipelines
// buffer each stage's stdout in full before feeding it to the next stage's
// stdin (spec §4.5: "buffered, not streamed").
type IO struct {
	Stdin  *bytes.Buffer
	Stdout *bytes.Buffer
	Stderr *bytes.Buffer
}

// NewIO returns an IO with empty buffers.
func NewIO() *IO {
	return &IO{Stdin: &bytes.Buffer{}, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
}

// Registry looks up a command name to its Handler, if any.
type Registry interface {
	Lookup(name string) (Handler, bool)
}

// Job is a background command started with a trailing `&` (spec §4.5).
type Job struct {
	PID    string
	Line   string
	Done   bool
	Status int
}

// Exec is the shell executor. One Exec corresponds to one running shell
// session: it owns the Env, the VFS it operates against and the function
// table built up by `name() { ... }` definitions.
type Exec struct {
	VFS      *vfs.VFS
	Env      *env.Env
	Registry Registry
	Logf     func(string, ...interface{})

	funcs map[string]*parser.Command

	jobsMu sync.Mutex
	jobs   map[string]*Job

	// Exiting is set by the `exit` builtin; the caller's read loop checks
	// it after each statement to stop feeding more input (spec §4.5).
	Exiting  bool
	ExitCode int
}

// New returns an Exec bound to v and e.
func New(v *vfs.VFS, e *env.Env, reg Registry) *Exec {
	return &Exec{VFS: v, Env: e, Registry: reg, funcs: map[string]*parser.Command{}, jobs: map[string]*Job{}}
}

func (obj *Exec) logf(format string, v ...interface{}) {
	if obj.Logf != nil {
		obj.Logf(format, v...)
	}
}

// Run parses and executes one input (a line or a whole script), returning
// the exit status of the last statement executed. Parse failures are
// reported as a single "syntax error" line on stderr and exit status 1;
// they never abort the session (spec §4.4).
func (obj *Exec) Run(src string, stdout, stderr *bytes.Buffer) int {
	p := parser.New(src)
	script, err := p.Parse()
	if err != nil {
		fmt.Fprintln(stderr, "foam: syntax error")
		obj.Env.SetExitCode(1)
		return 1
	}
	status := 0
	for _, stmt := range script.Statements {
		if obj.Exiting {
			break
		}
		status = obj.execStatement(&stmt, stdout, stderr)
	}
	return status
}

func (obj *Exec) execStatement(stmt *parser.Statement, stdout, stderr *bytes.Buffer) int {
	if stmt.Background {
		pid := uuid.NewString()
		job := &Job{PID: pid, Line: "background job"}
		obj.jobsMu.Lock()
		obj.jobs[pid] = job
		obj.jobsMu.Unlock()
		// Give this goroutine its own IO and let it run to completion
		// independently; its output is not copied anywhere. It runs against
		// the same Env as the foreground, so assignments, `cd` and `export`
		// inside a background job are visible to the session.
		go func() {
			io := NewIO()
			status := obj.execLogicChain(stmt.Chain, io)
			obj.jobsMu.Lock()
			job.Done = true
			job.Status = status
			obj.jobsMu.Unlock()
		}()
		obj.Env.SetExitCode(0)
		return 0
	}
	io := &IO{Stdin: &bytes.Buffer{}, Stdout: stdout, Stderr: stderr}
	status := obj.execLogicChain(stmt.Chain, io)
	obj.Env.SetExitCode(status)
	return status
}

// execLogicChain runs a `&&`/`||`-joined sequence of pipelines, stopping
// early per the short-circuit rule spec §4.5 prefers: evaluate
// left-to-right, `&&` continues only on success (status 0), `||` continues
// only on failure.
func (obj *Exec) execLogicChain(chain *parser.LogicChain, io *IO) int {
	status := obj.execPipeline(chain.First, io)
	for _, link := range chain.Rest {
		switch link.Op {
		case parser.ChainAnd:
			if status != 0 {
				continue
			}
		case parser.ChainOr:
			if status == 0 {
				continue
			}
		}
		status = obj.execPipeline(link.Pipeline, io)
	}
	return status
}

// execPipeline runs each stage, buffering stdout and feeding it as the next
// stage's stdin (spec §4.5).
func (obj *Exec) execPipeline(p *parser.Pipeline, io *IO) int {
	if len(p.Commands) == 1 {
		return obj.execCommand(p.Commands[0], io)
	}
	input := io.Stdin
	status := 0
	for i, cmd := range p.Commands {
		stageIO := &IO{Stdin: input, Stdout: &bytes.Buffer{}, Stderr: io.Stderr}
		status = obj.execCommand(cmd, stageIO)
		if i == len(p.Commands)-1 {
			io.Stdout.Write(stageIO.Stdout.Bytes())
		}
		input = stageIO.Stdout
	}
	return status
}

func runStatements(obj *Exec, stmts []parser.Statement, io *IO) int {
	status := 0
	for _, s := range stmts {
		if obj.Exiting {
			break
		}
		status = obj.execStatement(&s, io.Stdout, io.Stderr)
	}
	return status
}

func (obj *Exec) execCommand(cmd *parser.Command, io *IO) int {
	switch cmd.Kind {
	case parser.CmdSimple:
		return obj.execSimple(cmd, io)
	case parser.CmdIf:
		return obj.execIf(cmd, io)
	case parser.CmdWhile:
		return obj.execWhile(cmd, io)
	case parser.CmdFor:
		return obj.execFor(cmd, io)
	case parser.CmdCase:
		return obj.execCase(cmd, io)
	case parser.CmdFuncDef:
		obj.funcs[cmd.FuncName] = cmd
		return 0
	case parser.CmdGroup:
		return runStatements(obj, cmd.Group, io)
	}
	return 0
}

func (obj *Exec) execIf(cmd *parser.Command, io *IO) int {
	if obj.execLogicChain(cmd.IfCond, io) == 0 {
		return runStatements(obj, cmd.IfThen, io)
	}
	for _, elif := range cmd.Elifs {
		if obj.execLogicChain(elif.Cond, io) == 0 {
			return runStatements(obj, elif.Body, io)
		}
	}
	if cmd.IfElse != nil {
		return runStatements(obj, cmd.IfElse, io)
	}
	return 0
}

func (obj *Exec) execWhile(cmd *parser.Command, io *IO) int {
	status := 0
	for i := 0; i < maxWhileIterations; i++ {
		if obj.execLogicChain(cmd.WhileCond, io) != 0 {
			break
		}
		status = runStatements(obj, cmd.WhileBody, io)
		if obj.Exiting {
			break
		}
	}
	return status
}

func (obj *Exec) execFor(cmd *parser.Command, io *IO) int {
	status := 0
	for _, w := range cmd.ForList {
		if obj.Exiting {
			break
		}
		obj.Env.Set(cmd.ForVar, obj.expandWord(w, io))
		status = runStatements(obj, cmd.ForBody, io)
	}
	return status
}

func (obj *Exec) execCase(cmd *parser.Command, io *IO) int {
	word := obj.expandWord(cmd.CaseWord, io)
	for _, c := range cmd.Cases {
		for _, pat := range c.Patterns {
			if matchCasePattern(obj.expandWord(pat, io), word) {
				return runStatements(obj, c.Body, io)
			}
		}
	}
	return 0
}

// matchCasePattern implements the glob-style matching `case` patterns use
// (spec §4.4), a subset of internal/vfs's glob grammar with no `/` segment
// structure (case patterns match a single word, not a path).
func matchCasePattern(pattern, word string) bool {
	return caseGlob(pattern, word)
}

func caseGlob(pattern, name string) bool {
	for {
		if pattern == "" {
			return name == ""
		}
		switch pattern[0] {
		case '*':
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if caseGlob(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if name == "" {
				return false
			}
			pattern, name = pattern[1:], name[1:]
		default:
			if name == "" || pattern[0] != name[0] {
				return false
			}
			pattern, name = pattern[1:], name[1:]
		}
	}
}

// execSimple expands words/assignments/redirects and dispatches to a
// function, then the command registry, per spec §4.5's lookup order.
func (obj *Exec) execSimple(cmd *parser.Command, io *IO) int {
	for _, a := range cmd.Assigns {
		obj.Env.Set(a.Name, obj.expandWord(a.Value, io))
	}
	if len(cmd.Words) == 0 {
		return 0
	}

	args := obj.expandWords(cmd.Words, io)
	name := args[0]
	args = args[1:]

	effectiveIO, restore, err := obj.applyRedirects(cmd.Redirects, io)
	if err != nil {
		fmt.Fprintln(io.Stderr, err.Error())
		return 1
	}
	defer restore()

	if fn, ok := obj.funcs[name]; ok {
		frame := obj.Env.PushPositional(args)
		status := runStatements(obj, fn.FuncBody, effectiveIO)
		obj.Env.PopPositional(frame)
		return status
	}

	if obj.Registry != nil {
		if handler, ok := obj.Registry.Lookup(name); ok {
			return handler(obj, args, effectiveIO)
		}
	}

	fmt.Fprintf(io.Stderr, "%s: command not found\n", name)
	return 127
}

// applyRedirects materializes `>`, `>>`, `<`, `<<DELIM` and `2>&1`
// redirections around a command invocation (spec §4.4/§4.5), returning an
// IO to run the command against and a cleanup func that flushes any
// file-backed stdout back to disk.
func (obj *Exec) applyRedirects(redirects []*parser.Redirect, io *IO) (*IO, func(), error) {
	out := &IO{Stdin: io.Stdin, Stdout: io.Stdout, Stderr: io.Stderr}
	var flushes []func()

	for _, r := range redirects {
		switch r.Kind {
		case parser.RedirOut, parser.RedirAppend:
			path := obj.expandWord(r.Target, io)
			buf := &bytes.Buffer{}
			out.Stdout = buf
			appendMode := r.Kind == parser.RedirAppend
			flushes = append(flushes, func() {
				obj.VFS.WriteFile(path, buf.Bytes(), vfs.WriteFileOptions{Append: appendMode})
			})
		case parser.RedirErr:
			path := obj.expandWord(r.Target, io)
			buf := &bytes.Buffer{}
			out.Stderr = buf
			flushes = append(flushes, func() {
				obj.VFS.WriteFile(path, buf.Bytes(), vfs.WriteFileOptions{})
			})
		case parser.RedirDup:
			out.Stderr = out.Stdout
		case parser.RedirIn:
			path := obj.expandWord(r.Target, io)
			data, err := obj.VFS.ReadFile(path, vfs.ReadFileOptions{})
			if err != nil {
				return nil, func() {}, err
			}
			out.Stdin = bytes.NewBuffer(data)
		case parser.RedirHereDoc:
			body := r.Body
			if r.Expand {
				body = obj.expandString(body, io)
			}
			out.Stdin = bytes.NewBufferString(body)
		}
	}

	return out, func() {
		for _, f := range flushes {
			f()
		}
	}, nil
}

// --- word expansion ----------------------------------------------------------

func (obj *Exec) expandWords(words []parser.Word, io *IO) []string {
	var out []string
	for _, w := range words {
		out = append(out, obj.expandWordSplit(w, io)...)
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

// expandWord expands a single word to one string, without word-splitting
// or globbing (used for assignments, case words, for-list elements).
func (obj *Exec) expandWord(w parser.Word, io *IO) string {
	if w.Literal {
		return w.Raw
	}
	return obj.expandString(w.Raw, io)
}

// expandWordSplit expands a word and, for plain (non-quoted, non-literal)
// words, applies field splitting on whitespace and glob expansion (spec
// §4.4: "double-quoted text suppresses splitting/globbing").
func (obj *Exec) expandWordSplit(w parser.Word, io *IO) []string {
	expanded := obj.expandWord(w, io)
	if w.Literal || w.Quoted {
		return []string{expanded}
	}
	fields := strings.Fields(expanded)
	if len(fields) == 0 {
		return nil
	}
	var out []string
	for _, f := range fields {
		if strings.ContainsAny(f, "*?[") {
			matches, err := obj.VFS.Glob(f, "")
			if err == nil && len(matches) > 0 {
				out = append(out, matches...)
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// expandString performs variable ($NAME, ${NAME}), command ($(...) and
// backtick) and arithmetic ($((expr))) substitution on raw text (spec
// §4.4/§4.5: "deferred to the point the clause runs").
func (obj *Exec) expandString(s string, io *IO) string {
	var out strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '$' && i+2 < len(runes) && runes[i+1] == '(' && runes[i+2] == '(':
			end := findMatchingDoubleParen(runes, i+3)
			expr := string(runes[i+3 : end])
			v, err := arith.Eval(expr, obj.arithLookup())
			if err == nil {
				out.WriteString(arith.Stringify(v))
			}
			i = end + 2
		case r == '$' && i+1 < len(runes) && runes[i+1] == '(':
			end := findMatchingParen(runes, i+2)
			sub := string(runes[i+2 : end])
			out.WriteString(obj.runCommandSubst(sub, io))
			i = end + 1
		case r == '`':
			end := i + 1
			for end < len(runes) && runes[end] != '`' {
				end++
			}
			sub := string(runes[i+1 : end])
			out.WriteString(obj.runCommandSubst(sub, io))
			i = end + 1
		case r == '$' && i+1 < len(runes) && runes[i+1] == '{':
			end := i + 2
			for end < len(runes) && runes[end] != '}' {
				end++
			}
			out.WriteString(obj.lookupVar(string(runes[i+2 : end])))
			i = end + 1
		case r == '$' && i+1 < len(runes) && isVarStart(runes[i+1]):
			j := i + 1
			for j < len(runes) && isVarChar(runes[j]) {
				j++
			}
			out.WriteString(obj.lookupVar(string(runes[i+1 : j])))
			i = j
		case r == '$' && i+1 < len(runes) && isSpecialVar(runes[i+1]):
			out.WriteString(obj.lookupVar(string(runes[i+1])))
			i += 2
		default:
			out.WriteRune(r)
			i++
		}
	}
	return out.String()
}

func isVarStart(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func isVarChar(r rune) bool {
	return isVarStart(r) || r >= '0' && r <= '9'
}

func isSpecialVar(r rune) bool {
	switch r {
	case '?', '#', '@', '*', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func (obj *Exec) lookupVar(name string) string {
	switch name {
	case "?":
		return strconv.Itoa(obj.Env.ExitCode())
	case "#":
		return strconv.Itoa(obj.Env.PositionalCount())
	case "@", "*":
		return strings.Join(obj.Env.PositionalAll(), " ")
	}
	if len(name) == 1 && name[0] >= '1' && name[0] <= '9' {
		n, _ := strconv.Atoi(name)
		return obj.Env.GetPositional(n)
	}
	v, _ := obj.Env.Get(name)
	return v
}

func (obj *Exec) arithLookup() arith.Lookup {
	return func(name string) int64 {
		v, _ := obj.Env.Get(name)
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
}

// runCommandSubst executes sub as a nested script and returns its captured
// stdout with all trailing newlines trimmed (spec §4.5).
func (obj *Exec) runCommandSubst(sub string, io *IO) string {
	captured := &bytes.Buffer{}
	obj.Run(sub, captured, io.Stderr)
	return strings.TrimRight(captured.String(), "\n")
}

func findMatchingParen(runes []rune, start int) int {
	depth := 1
	for i := start; i < len(runes); i++ {
		switch runes[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(runes)
}

func findMatchingDoubleParen(runes []rune, start int) int {
	depth := 1
	for i := start; i < len(runes); i++ {
		if i+1 < len(runes) && runes[i] == ')' && runes[i+1] == ')' {
			depth--
			if depth == 0 {
				return i
			}
		} else if runes[i] == '(' {
			depth++
		}
	}
	return len(runes)
}

// Jobs returns a snapshot of background jobs, sorted by PID, for the
// `jobs` builtin.
func (obj *Exec) Jobs() []*Job {
	obj.jobsMu.Lock()
	defer obj.jobsMu.Unlock()
	out := make([]*Job, 0, len(obj.jobs))
	for _, j := range obj.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
