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

package lexer

import "testing"

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func sameTypes(got, want []TokenType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestTokenizeOperators(t *testing.T) {
	type test struct {
		name string
		code string
		want []TokenType
	}
	testCases := []test{
		{"empty", "", []TokenType{EOF}},
		{"word", "echo", []TokenType{WORD, EOF}},
		{"pipe", "a | b", []TokenType{WORD, PIPE, WORD, EOF}},
		{"and-and", "a && b", []TokenType{WORD, AND_AND, WORD, EOF}},
		{"or-or", "a || b", []TokenType{WORD, OR_OR, WORD, EOF}},
		{"redir-append", "a >> b", []TokenType{WORD, REDIR_APP, WORD, EOF}},
		{"redir-dup", "a 2>&1", []TokenType{WORD, REDIR_DUP, EOF}},
		{"heredoc-strip", "a <<-EOF", []TokenType{WORD, REDIR_HERE, WORD, EOF}},
		{"comment is dropped", "a # trailing comment\nb", []TokenType{WORD, NEWLINE, WORD, EOF}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := types(New(tc.code).Tokenize())
			if !sameTypes(got, tc.want) {
				t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestScanWordQuoting(t *testing.T) {
	toks := New(`'a b' "c $d" e\ f`).Tokenize()
	if len(toks) != 4 { // 3 words + EOF
		t.Fatalf("expected 4 tokens, got %d: %+v", len(toks), toks)
	}
	if !toks[0].Literal || toks[0].Text != "a b" {
		t.Errorf("single-quoted word: got %+v", toks[0])
	}
	if !toks[1].Quoted || toks[1].Text != "c $d" {
		t.Errorf("double-quoted word: got %+v", toks[1])
	}
	if toks[2].Text != "e f" {
		t.Errorf("backslash-escaped space: got %+v", toks[2])
	}
}

func TestReadRawLineSharesCursor(t *testing.T) {
	lex := New("a b\nraw line here\nc")
	tok := lex.Next()
	if tok.Type != WORD || tok.Text != "a" {
		t.Fatalf("expected first word token, got %+v", tok)
	}
	tok = lex.Next()
	if tok.Type != WORD || tok.Text != "b" {
		t.Fatalf("expected second word token, got %+v", tok)
	}
	tok = lex.Next()
	if tok.Type != NEWLINE {
		t.Fatalf("expected newline token, got %+v", tok)
	}
	line, ok := lex.ReadRawLine()
	if !ok || line != "raw line here" {
		t.Fatalf("expected raw line capture, got %q, ok=%v", line, ok)
	}
	tok = lex.Next()
	if tok.Type != WORD || tok.Text != "c" {
		t.Fatalf("expected word after raw line, got %+v", tok)
	}
}
