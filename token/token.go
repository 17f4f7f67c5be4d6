// Package token implements the LEGv8 assembly lexer: turning source
// text into a flat stream of tokens tagged with their source line.
package token

import (
	"fmt"
	"strconv"

	"github.com/legv8toolkit/legv8/instr"
	"github.com/legv8toolkit/legv8/register"
)

// Kind distinguishes the seven token shapes the lexer produces.
type Kind int

const (
	Comma Kind = iota
	LBrace
	RBrace
	Immediate
	Label
	Reg
	Mnemonic
)

var kindNames = map[Kind]string{
	Comma:     "COMMA",
	LBrace:    "LBRACE",
	RBrace:    "RBRACE",
	Immediate: "IMMEDIATE",
	Label:     "LABEL",
	Reg:       "REGISTER",
	Mnemonic:  "MNEMONIC",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit plus the source line it came from. Only the
// fields relevant to its Kind are populated.
type Token struct {
	Kind Kind
	Line int

	Imm  uint16
	Name string
	Reg  register.Register
	Tag  instr.Tag
}

func (t Token) String() string {
	switch t.Kind {
	case Immediate:
		return fmt.Sprintf("#%d", t.Imm)
	case Label:
		return t.Name
	case Reg:
		return t.Reg.String()
	case Mnemonic:
		return t.Tag.String()
	default:
		return t.Kind.String()
	}
}

// LexError reports a lexical error at a source line.
type LexError struct {
	Line int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type tokenizer struct {
	src    []rune
	pos    int
	line   int
	tokens []Token
}

// Tokenize lexes src into a token stream. It returns a *LexError on any
// character or literal the LEGv8 assembly grammar does not accept.
func Tokenize(src string) ([]Token, error) {
	t := &tokenizer{src: []rune(src), line: 1}
	if err := t.run(); err != nil {
		return nil, err
	}
	return t.tokens, nil
}

func (t *tokenizer) errf(format string, args ...interface{}) error {
	return &LexError{Line: t.line, Msg: fmt.Sprintf(format, args...)}
}

func (t *tokenizer) next() (rune, bool) {
	if t.pos >= len(t.src) {
		return 0, false
	}
	c := t.src[t.pos]
	t.pos++
	return c, true
}

func isSymbolStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}

func isSymbolCont(c rune) bool {
	return isSymbolStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func (t *tokenizer) run() error {
	for {
		c, ok := t.next()
		if !ok {
			return nil
		}
		switch {
		case c == '/':
			next, ok := t.next()
			if !ok || next != '/' {
				return t.errf("unexpected '/'")
			}
			for {
				c, ok := t.next()
				if !ok {
					return nil
				}
				if c == '\n' {
					t.line++
					break
				}
			}
		case isSymbolStart(c):
			if err := t.handleSymbol(c); err != nil {
				return err
			}
		case c == '[':
			t.tokens = append(t.tokens, Token{Kind: LBrace, Line: t.line})
		case c == ']':
			t.tokens = append(t.tokens, Token{Kind: RBrace, Line: t.line})
		case c == ',':
			t.tokens = append(t.tokens, Token{Kind: Comma, Line: t.line})
		case c == '#':
			if err := t.handleImmediate(); err != nil {
				return err
			}
		case c == '\n':
			t.line++
		case isSpace(c):
			// skip
		default:
			return t.errf("unexpected character %q", c)
		}
	}
}

// emitSymbol resolves a finished symbol buffer to a register,
// mnemonic, or label token, in that preference order, matching the
// lookup order of the grammar this lexer implements.
func (t *tokenizer) emitSymbol(buf string) {
	if r, ok := register.Parse(buf); ok {
		t.tokens = append(t.tokens, Token{Kind: Reg, Line: t.line, Reg: r})
		return
	}
	if tag, ok := instr.ParseMnemonic(buf); ok {
		t.tokens = append(t.tokens, Token{Kind: Mnemonic, Line: t.line, Tag: tag})
		return
	}
	t.tokens = append(t.tokens, Token{Kind: Label, Line: t.line, Name: buf})
}

func (t *tokenizer) handleSymbol(first rune) error {
	buf := []rune{first}
	for {
		c, ok := t.next()
		if !ok {
			t.emitSymbol(string(buf))
			return nil
		}
		switch {
		case isSymbolCont(c):
			buf = append(buf, c)
		case c == ':':
			t.tokens = append(t.tokens, Token{Kind: Label, Line: t.line, Name: string(buf)})
			return nil
		case c == '\n':
			t.emitSymbol(string(buf))
			t.line++
			return nil
		case c == ',':
			t.emitSymbol(string(buf))
			t.tokens = append(t.tokens, Token{Kind: Comma, Line: t.line})
			return nil
		case isSpace(c):
			t.emitSymbol(string(buf))
			return nil
		default:
			return t.errf("unexpected character %q", c)
		}
	}
}

func (t *tokenizer) emitImmediate(buf string) error {
	n, err := strconv.ParseUint(buf, 10, 16)
	if err != nil {
		return t.errf("invalid immediate %q", buf)
	}
	t.tokens = append(t.tokens, Token{Kind: Immediate, Line: t.line, Imm: uint16(n)})
	return nil
}

func (t *tokenizer) handleImmediate() error {
	var buf []rune
	for {
		c, ok := t.next()
		if !ok {
			return t.emitImmediate(string(buf))
		}
		switch {
		case c >= '0' && c <= '9':
			buf = append(buf, c)
		case c == '\n':
			if err := t.emitImmediate(string(buf)); err != nil {
				return err
			}
			t.line++
			return nil
		case c == ']':
			if err := t.emitImmediate(string(buf)); err != nil {
				return err
			}
			t.tokens = append(t.tokens, Token{Kind: RBrace, Line: t.line})
			return nil
		case isSpace(c):
			return t.emitImmediate(string(buf))
		default:
			return t.errf("unexpected character %q", c)
		}
	}
}
