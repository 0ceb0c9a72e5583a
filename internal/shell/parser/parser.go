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

	"github.com/foam/foam/internal/shell/lexer"
)

// Parser turns a lexer's token stream into a Script. It keeps a small
// lookahead buffer (needed to tell `name() { ... }` function definitions
// apart from a plain simple command called "name") and interleaves raw-line
// reads against the same lexer cursor to collect here-document bodies,
// which are not shell syntax and must never be passed back through the
// tokenizer (spec §4.4).
//
// Parse failures never panic or abort the process: they're reported as a
// single error from Parse, which the executor turns into a one-line
// "syntax error" on stderr and a nonzero exit status, exactly like a shell
// that keeps running after a bad line (spec §4.4, §7).
type Parser struct {
	lex     *lexer.Lexer
	buf     []lexer.Token
	pending []*Redirect // heredoc redirects on the current line awaiting body capture
}

// New returns a Parser reading src.
func New(src string) *Parser {
	return &Parser{lex: lexer.New(src)}
}

// Parse parses the whole source as a Script.
func (obj *Parser) Parse() (script *Script, reterr error) {
	defer func() {
		if r := recover(); r != nil {
			script = nil
			reterr = fmt.Errorf("syntax error: %v", r)
		}
	}()
	s := &Script{}
	obj.skipSeparators()
	for !obj.isEOF() {
		stmt := obj.parseStatement()
		s.Statements = append(s.Statements, stmt)
		obj.skipSeparators()
	}
	return s, nil
}

// --- token buffer / lookahead -------------------------------------------------

func (obj *Parser) peek(n int) lexer.Token {
	for len(obj.buf) <= n {
		obj.buf = append(obj.buf, obj.lex.Next())
	}
	return obj.buf[n]
}

func (obj *Parser) cur() lexer.Token { return obj.peek(0) }

func (obj *Parser) advance() lexer.Token {
	t := obj.peek(0)
	obj.buf = obj.buf[1:]
	return t
}

func (obj *Parser) isEOF() bool { return obj.cur().Type == lexer.EOF }

func (obj *Parser) fail(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func isBareWord(tok lexer.Token, text string) bool {
	return tok.Type == lexer.WORD && !tok.Quoted && !tok.Literal && tok.Text == text
}

func isBareWordAny(tok lexer.Token, texts []string) bool {
	for _, t := range texts {
		if isBareWord(tok, t) {
			return true
		}
	}
	return false
}

func wordFromToken(tok lexer.Token) Word {
	return Word{Raw: tok.Text, Quoted: tok.Quoted, Literal: tok.Literal}
}

func (obj *Parser) expectWord(text string) {
	if !isBareWord(obj.cur(), text) {
		obj.fail("expected %q", text)
	}
	obj.advance()
}

func (obj *Parser) expect(tt lexer.TokenType) lexer.Token {
	if obj.cur().Type != tt {
		obj.fail("unexpected token")
	}
	return obj.advance()
}

// skipSeparators consumes any run of ';' and newline tokens, draining
// here-documents registered against the statement that just ended whenever
// a NEWLINE is consumed (spec §4.4: a heredoc body begins on the physical
// line following the one carrying its `<<DELIM` redirect).
func (obj *Parser) skipSeparators() {
	for {
		switch obj.cur().Type {
		case lexer.SEMI:
			obj.advance()
		case lexer.NEWLINE:
			obj.advance()
			obj.drainHeredocs()
		default:
			return
		}
	}
}

// --- statements / pipelines / chains ------------------------------------------

func (obj *Parser) parseStatement() Statement {
	chain := obj.parseLogicChain()
	bg := false
	if obj.cur().Type == lexer.AMP {
		obj.advance()
		bg = true
	}
	return Statement{Chain: chain, Background: bg}
}

func (obj *Parser) parseLogicChain() *LogicChain {
	first := obj.parsePipeline()
	chain := &LogicChain{First: first}
	for obj.cur().Type == lexer.AND_AND || obj.cur().Type == lexer.OR_OR {
		op := ChainAnd
		if obj.cur().Type == lexer.OR_OR {
			op = ChainOr
		}
		obj.advance()
		obj.skipNewlinesOnly()
		p := obj.parsePipeline()
		chain.Rest = append(chain.Rest, ChainLink{Op: op, Pipeline: p})
	}
	return chain
}

// skipNewlinesOnly consumes bare line-continuation newlines after an
// operator like `&&`, `||` or `|` without treating them as statement
// separators (no heredoc draining: the statement isn't finished yet).
func (obj *Parser) skipNewlinesOnly() {
	for obj.cur().Type == lexer.NEWLINE {
		obj.advance()
	}
}

func (obj *Parser) parsePipeline() *Pipeline {
	cmd := obj.parseCommand()
	pipe := &Pipeline{Commands: []*Command{cmd}}
	for obj.cur().Type == lexer.PIPE {
		obj.advance()
		obj.skipNewlinesOnly()
		pipe.Commands = append(pipe.Commands, obj.parseCommand())
	}
	return pipe
}

// --- commands ------------------------------------------------------------

func (obj *Parser) parseCommand() *Command {
	c := obj.cur()
	switch {
	case isBareWord(c, "if"):
		return obj.parseIf()
	case isBareWord(c, "while"):
		return obj.parseWhile()
	case isBareWord(c, "for"):
		return obj.parseFor()
	case isBareWord(c, "case"):
		return obj.parseCase()
	case isBareWord(c, "function"):
		return obj.parseFuncDef(true)
	case c.Type == lexer.LBRACE:
		return obj.parseGroup(lexer.RBRACE)
	case c.Type == lexer.LPAREN:
		return obj.parseGroup(lexer.RPAREN)
	}
	if c.Type == lexer.WORD && !c.Quoted && !c.Literal && isIdent(c.Text) &&
		obj.peek(1).Type == lexer.LPAREN && obj.peek(2).Type == lexer.RPAREN {
		return obj.parseFuncDef(false)
	}
	return obj.parseSimple()
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func (obj *Parser) parseGroup(closing lexer.TokenType) *Command {
	obj.advance() // '{' or '('
	obj.skipSeparators()
	body := obj.parseStatementsUntilTok(closing)
	obj.expect(closing)
	return &Command{Kind: CmdGroup, Group: body}
}

func (obj *Parser) parseStatementsUntilTok(stop lexer.TokenType) []Statement {
	var stmts []Statement
	obj.skipSeparators()
	for obj.cur().Type != stop && !obj.isEOF() {
		stmts = append(stmts, obj.parseStatement())
		obj.skipSeparators()
	}
	return stmts
}

func (obj *Parser) parseStatementsUntil(stops ...string) []Statement {
	var stmts []Statement
	obj.skipSeparators()
	for !obj.isEOF() && !isBareWordAny(obj.cur(), stops) {
		stmts = append(stmts, obj.parseStatement())
		obj.skipSeparators()
	}
	return stmts
}

func (obj *Parser) parseIf() *Command {
	obj.advance() // if
	cond := obj.parseLogicChain()
	obj.skipSeparators()
	obj.expectWord("then")
	thenBody := obj.parseStatementsUntil("elif", "else", "fi")

	var elifs []ElifClause
	for isBareWord(obj.cur(), "elif") {
		obj.advance()
		c := obj.parseLogicChain()
		obj.skipSeparators()
		obj.expectWord("then")
		body := obj.parseStatementsUntil("elif", "else", "fi")
		elifs = append(elifs, ElifClause{Cond: c, Body: body})
	}

	var elseBody []Statement
	if isBareWord(obj.cur(), "else") {
		obj.advance()
		elseBody = obj.parseStatementsUntil("fi")
	}
	obj.expectWord("fi")
	return &Command{Kind: CmdIf, IfCond: cond, IfThen: thenBody, Elifs: elifs, IfElse: elseBody}
}

func (obj *Parser) parseWhile() *Command {
	obj.advance() // while
	cond := obj.parseLogicChain()
	obj.skipSeparators()
	obj.expectWord("do")
	body := obj.parseStatementsUntil("done")
	obj.expectWord("done")
	return &Command{Kind: CmdWhile, WhileCond: cond, WhileBody: body}
}

func (obj *Parser) parseFor() *Command {
	obj.advance() // for
	nameTok := obj.cur()
	if nameTok.Type != lexer.WORD {
		obj.fail("expected loop variable")
	}
	obj.advance()

	obj.expectWord("in")
	var list []Word
	for obj.cur().Type == lexer.WORD {
		list = append(list, wordFromToken(obj.advance()))
	}
	obj.skipSeparators()
	obj.expectWord("do")
	body := obj.parseStatementsUntil("done")
	obj.expectWord("done")
	return &Command{Kind: CmdFor, ForVar: nameTok.Text, ForList: list, ForBody: body}
}

// isDoubleSemi reports whether the cursor sits on two adjacent SEMI tokens,
// i.e. the `;;` clause terminator of a case arm. The lexer has no dedicated
// token for `;;`; it falls out of scanning `;` twice in a row.
func (obj *Parser) isDoubleSemi() bool {
	return obj.peek(0).Type == lexer.SEMI && obj.peek(1).Type == lexer.SEMI
}

func (obj *Parser) parseCase() *Command {
	obj.advance() // case
	word := wordFromToken(obj.advance())
	obj.expectWord("in")
	obj.skipSeparators()

	var cases []CaseClause
	for !isBareWord(obj.cur(), "esac") && !obj.isEOF() {
		// an optional leading '(' before the first pattern is common shell
		// style ( "(foo)" ) but not required; accept and discard it.
		if obj.cur().Type == lexer.LPAREN {
			obj.advance()
		}
		var pats []Word
		pats = append(pats, wordFromToken(obj.advance()))
		for obj.cur().Type == lexer.PIPE {
			obj.advance()
			pats = append(pats, wordFromToken(obj.advance()))
		}
		obj.expect(lexer.RPAREN)

		var body []Statement
		for {
			obj.skipNewlinesOnly()
			if obj.cur().Type == lexer.SEMI && !obj.isDoubleSemi() {
				obj.advance()
				obj.skipNewlinesOnly()
				continue
			}
			if obj.isDoubleSemi() || isBareWord(obj.cur(), "esac") || obj.isEOF() {
				break
			}
			body = append(body, obj.parseStatement())
		}
		cases = append(cases, CaseClause{Patterns: pats, Body: body})

		if obj.isDoubleSemi() {
			obj.advance()
			obj.advance()
		}
		obj.skipSeparators()
	}
	obj.expectWord("esac")
	return &Command{Kind: CmdCase, CaseWord: word, Cases: cases}
}

func (obj *Parser) parseFuncDef(explicit bool) *Command {
	if explicit {
		obj.advance() // function
	}
	nameTok := obj.cur()
	if nameTok.Type != lexer.WORD {
		obj.fail("expected function name")
	}
	obj.advance()
	if obj.cur().Type == lexer.LPAREN {
		obj.advance()
		obj.expect(lexer.RPAREN)
	}
	obj.skipSeparators()
	obj.expect(lexer.LBRACE)
	body := obj.parseStatementsUntilTok(lexer.RBRACE)
	obj.expect(lexer.RBRACE)
	return &Command{Kind: CmdFuncDef, FuncName: nameTok.Text, FuncBody: body}
}

// --- simple commands / redirections ---------------------------------------

func (obj *Parser) parseSimple() *Command {
	cmd := &Command{Kind: CmdSimple}
	for {
		switch obj.cur().Type {
		case lexer.WORD:
			tok := obj.cur()
			if len(cmd.Words) == 0 && !tok.Quoted && !tok.Literal {
				if name, val, ok := splitAssign(tok.Text); ok {
					obj.advance()
					cmd.Assigns = append(cmd.Assigns, Assign{Name: name, Value: Word{Raw: val}})
					continue
				}
			}
			cmd.Words = append(cmd.Words, wordFromToken(obj.advance()))
		case lexer.REDIR_OUT, lexer.REDIR_APP, lexer.REDIR_IN, lexer.REDIR_ERR, lexer.REDIR_DUP, lexer.REDIR_HERE:
			r := obj.parseRedirect()
			cmd.Redirects = append(cmd.Redirects, r)
		default:
			return cmd
		}
	}
}

func (obj *Parser) parseRedirect() *Redirect {
	tok := obj.advance()
	switch tok.Type {
	case lexer.REDIR_OUT:
		return &Redirect{Kind: RedirOut, Target: obj.redirectTarget()}
	case lexer.REDIR_APP:
		return &Redirect{Kind: RedirAppend, Target: obj.redirectTarget()}
	case lexer.REDIR_IN:
		return &Redirect{Kind: RedirIn, Target: obj.redirectTarget()}
	case lexer.REDIR_ERR:
		return &Redirect{Kind: RedirErr, Target: obj.redirectTarget()}
	case lexer.REDIR_DUP:
		return &Redirect{Kind: RedirDup}
	case lexer.REDIR_HERE:
		strip := tok.Text == "<<-"
		delimTok := obj.advance()
		r := &Redirect{
			Kind:      RedirHereDoc,
			Delim:     delimTok.Text,
			StripTabs: strip,
			Expand:    !delimTok.Literal && !delimTok.Quoted,
		}
		obj.pendingHeredoc(r)
		return r
	default:
		obj.fail("unexpected redirection")
		return nil
	}
}

func (obj *Parser) redirectTarget() Word {
	if obj.cur().Type != lexer.WORD {
		obj.fail("expected redirection target")
	}
	return wordFromToken(obj.advance())
}

// --- here-document collection ----------------------------------------------

func (obj *Parser) pendingHeredoc(r *Redirect) {
	obj.pending = append(obj.pending, r)
}

func (obj *Parser) drainHeredocs() {
	if len(obj.pending) == 0 {
		return
	}
	pending := obj.pending
	obj.pending = nil
	for _, r := range pending {
		r.Body = obj.readHeredocBody(r.Delim, r.StripTabs)
		r.bodyCaptured = true
	}
	// Any tokens already buffered past the heredoc-introducing newline were
	// fetched before we knew a heredoc body followed; since heredocs are
	// only drained right after consuming a NEWLINE (skipSeparators), the
	// buffer is always empty at this point and ReadRawLine starts exactly
	// where the body begins.
}

func (obj *Parser) readHeredocBody(delim string, stripTabs bool) string {
	var out []byte
	for {
		line, ok := obj.lex.ReadRawLine()
		if !ok {
			break
		}
		check := line
		if stripTabs {
			for len(check) > 0 && check[0] == '\t' {
				check = check[1:]
			}
		}
		if check == delim {
			break
		}
		if stripTabs {
			line = check
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return string(out)
}

// splitAssign reports whether s has the shape NAME=VALUE with NAME a valid
// identifier, returning the two halves when it does.
func splitAssign(s string) (name, val string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			if i == 0 || !isIdent(s[:i]) {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
		r := s[i]
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "", "", false
		}
	}
	return "", "", false
}
