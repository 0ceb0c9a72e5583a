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

package parser

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	godiff "github.com/kylelemons/godebug/diff"
	"github.com/sanity-io/litter"
)

// litterOptions mirrors the AST-comparison rig used for shell-like grammars
// in this corpus: dump both trees with unexported fields hidden, and diff
// the text when a plain reflect.DeepEqual-style compare would be too noisy
// to read.
var litterOptions = &litter.Options{
	StripPackageNames:         true,
	HidePrivateFields:         true,
	HideZeroValues:            true,
	DisablePointerReplacement: true,
}

var pointerCommentPattern = regexp.MustCompile(`\ \/\/\ p[0-9]+$`)

func dump(v interface{}) string {
	var lines []string
	for _, line := range strings.Split(litterOptions.Sdump(v), "\n") {
		lines = append(lines, pointerCommentPattern.ReplaceAllLiteralString(line, ""))
	}
	return strings.Join(lines, "\n")
}

func TestParseSimple(t *testing.T) {
	type test struct {
		name string
		code string
		fail bool
		exp  *Script
	}
	testCases := []test{}

	{
		testCases = append(testCases, test{
			name: "empty",
			code: "",
			exp:  &Script{},
		})
	}
	{
		testCases = append(testCases, test{
			name: "simple command",
			code: "echo hello",
			exp: &Script{
				Statements: []Statement{
					{Chain: &LogicChain{First: &Pipeline{Commands: []*Command{
						{Kind: CmdSimple, Words: []Word{{Raw: "echo"}, {Raw: "hello"}}},
					}}}},
				},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "assignment then command",
			code: "X=1 echo $X",
			exp: &Script{
				Statements: []Statement{
					{Chain: &LogicChain{First: &Pipeline{Commands: []*Command{
						{
							Kind:    CmdSimple,
							Assigns: []Assign{{Name: "X", Value: Word{Raw: "1"}}},
							Words:   []Word{{Raw: "echo"}, {Raw: "$X"}},
						},
					}}}},
				},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "pipeline",
			code: "cat foo | grep bar",
			exp: &Script{
				Statements: []Statement{
					{Chain: &LogicChain{First: &Pipeline{Commands: []*Command{
						{Kind: CmdSimple, Words: []Word{{Raw: "cat"}, {Raw: "foo"}}},
						{Kind: CmdSimple, Words: []Word{{Raw: "grep"}, {Raw: "bar"}}},
					}}}},
				},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "logic chain",
			code: "true && echo ok || echo bad",
			exp: &Script{
				Statements: []Statement{
					{Chain: &LogicChain{
						First: &Pipeline{Commands: []*Command{{Kind: CmdSimple, Words: []Word{{Raw: "true"}}}}},
						Rest: []ChainLink{
							{Op: ChainAnd, Pipeline: &Pipeline{Commands: []*Command{{Kind: CmdSimple, Words: []Word{{Raw: "echo"}, {Raw: "ok"}}}}}},
							{Op: ChainOr, Pipeline: &Pipeline{Commands: []*Command{{Kind: CmdSimple, Words: []Word{{Raw: "echo"}, {Raw: "bad"}}}}}},
						},
					}},
				},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "background job",
			code: "sleep 1 &",
			exp: &Script{
				Statements: []Statement{
					{
						Background: true,
						Chain: &LogicChain{First: &Pipeline{Commands: []*Command{
							{Kind: CmdSimple, Words: []Word{{Raw: "sleep"}, {Raw: "1"}}},
						}}},
					},
				},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "bareword function definition",
			code: "greet() { echo hi; }",
			exp: &Script{
				Statements: []Statement{
					{Chain: &LogicChain{First: &Pipeline{Commands: []*Command{
						{
							Kind:     CmdFuncDef,
							FuncName: "greet",
							FuncBody: []Statement{
								{Chain: &LogicChain{First: &Pipeline{Commands: []*Command{
									{Kind: CmdSimple, Words: []Word{{Raw: "echo"}, {Raw: "hi"}}},
								}}}},
							},
						},
					}}}},
				},
			},
		})
	}
	{
		testCases = append(testCases, test{
			name: "if without fi fails",
			code: "if true; then echo a",
			fail: true,
		})
	}

	for index, tc := range testCases {
		index, tc := index, tc
		t.Run(fmt.Sprintf("test #%d (%s)", index, tc.name), func(t *testing.T) {
			script, err := New(tc.code).Parse()

			if !tc.fail && err != nil {
				t.Errorf("test #%d: parse failed with: %+v", index, err)
				return
			}
			if tc.fail && err == nil {
				t.Errorf("test #%d: parse passed, expected fail", index)
				return
			}
			if tc.fail || tc.exp == nil {
				return
			}

			got, want := dump(script), dump(tc.exp)
			if got == want {
				return
			}
			t.Errorf("test #%d: AST did not match expected", index)
			t.Logf("test #%d:   actual:\n\n%s\n", index, got)
			t.Logf("test #%d: expected:\n\n%s", index, want)
			t.Logf("test #%d: diff:\n%s", index, godiff.Diff(want, got))
		})
	}
}

func TestParseHeredoc(t *testing.T) {
	code := "cat <<EOF\nline one\nline two\nEOF\n"
	script, err := New(code).Parse()
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	if len(script.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(script.Statements))
	}
	cmd := script.Statements[0].Chain.First.Commands[0]
	if len(cmd.Redirects) != 1 {
		t.Fatalf("expected 1 redirect, got %d", len(cmd.Redirects))
	}
	redir := cmd.Redirects[0]
	if redir.Kind != RedirHereDoc {
		t.Fatalf("expected a heredoc redirect, got %v", redir.Kind)
	}
	want := "line one\nline two\n"
	if redir.Body != want {
		t.Errorf("heredoc body mismatch: got %q, want %q", redir.Body, want)
	}
}

func TestParseCaseStatement(t *testing.T) {
	code := "case $x in a) echo A ;; b|c) echo BC ;; *) echo other ;; esac"
	script, err := New(code).Parse()
	if err != nil {
		t.Fatalf("parse failed: %+v", err)
	}
	cmd := script.Statements[0].Chain.First.Commands[0]
	if cmd.Kind != CmdCase {
		t.Fatalf("expected a case command, got %v", cmd.Kind)
	}
	if len(cmd.Cases) != 3 {
		t.Fatalf("expected 3 case clauses, got %d", len(cmd.Cases))
	}
	if len(cmd.Cases[1].Patterns) != 2 {
		t.Fatalf("expected 2 patterns on the b|c clause, got %d", len(cmd.Cases[1].Patterns))
	}
}
