package solidity

import (
	"fmt"
	"strings"

	"github.com/obernardovieira/solvis/internal/parser"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokHexString
	tokUnicodeString
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
	line  int
	col   int
}

// Multi-character operators, longest first.
var puncts = []string{
	">>>=",
	">>>", "<<=", ">>=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "|=", "&=", "^=",
	"<<", ">>", "**", "->", ":=",
}

type lexer struct {
	file string
	src  []byte
	off  int
	line int
	col  int
}

// lex splits src into tokens, dropping whitespace and comments.
func lex(file string, src []byte) ([]token, error) {
	l := &lexer{file: file, src: src, line: 1, col: 1}
	var toks []token
	for {
		if err := l.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if l.off >= len(l.src) {
			toks = append(toks, token{kind: tokEOF, start: l.off, end: l.off, line: l.line, col: l.col})
			return toks, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &parser.SyntaxError{File: l.file, Line: l.line, Column: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekByte(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.off++
	}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			l.advance(1)
		case c == '/' && l.peekByte(1) == '/':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peekByte(1) == '*':
			line, col := l.line, l.col
			l.advance(2)
			for {
				if l.off >= len(l.src) {
					return &parser.SyntaxError{File: l.file, Line: line, Column: col, Msg: "unterminated block comment"}
				}
				if l.src[l.off] == '*' && l.peekByte(1) == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	start, line, col := l.off, l.line, l.col
	c := l.src[l.off]

	mk := func(kind tokenKind, text string) token {
		return token{kind: kind, text: text, start: start, end: l.off, line: line, col: col}
	}

	switch {
	case isIdentStart(c):
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.advance(1)
		}
		word := string(l.src[start:l.off])
		if (word == "hex" || word == "unicode") && (l.peekByte(0) == '"' || l.peekByte(0) == '\'') {
			body, err := l.quoted()
			if err != nil {
				return token{}, err
			}
			kind := tokHexString
			if word == "unicode" {
				kind = tokUnicodeString
			}
			return mk(kind, body), nil
		}
		return mk(tokIdent, word), nil

	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		l.number()
		return mk(tokNumber, string(l.src[start:l.off])), nil

	case c == '"' || c == '\'':
		body, err := l.quoted()
		if err != nil {
			return token{}, err
		}
		return mk(tokString, body), nil
	}

	rest := l.src[l.off:]
	for _, p := range puncts {
		if len(rest) >= len(p) && string(rest[:len(p)]) == p {
			l.advance(len(p))
			return mk(tokPunct, p), nil
		}
	}
	if strings.IndexByte("(){}[];,.:?=+-*/%<>!~&|^@", c) >= 0 {
		l.advance(1)
		return mk(tokPunct, string(c)), nil
	}
	return token{}, l.errorf("unexpected character %q", c)
}

// quoted consumes a quoted literal and returns its unescaped body.
func (l *lexer) quoted() (string, error) {
	line, col := l.line, l.col
	quote := l.src[l.off]
	l.advance(1)
	var sb strings.Builder
	for {
		if l.off >= len(l.src) || l.src[l.off] == '\n' {
			return "", &parser.SyntaxError{File: l.file, Line: line, Column: col, Msg: "unterminated string literal"}
		}
		c := l.src[l.off]
		if c == quote {
			l.advance(1)
			return sb.String(), nil
		}
		if c == '\\' && l.off+1 < len(l.src) {
			sb.WriteByte(c)
			sb.WriteByte(l.src[l.off+1])
			l.advance(2)
			continue
		}
		sb.WriteByte(c)
		l.advance(1)
	}
}

func (l *lexer) number() {
	if l.src[l.off] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.advance(2)
		for l.off < len(l.src) && (isHexDigit(l.src[l.off]) || l.src[l.off] == '_') {
			l.advance(1)
		}
		return
	}
	digits := func() {
		for l.off < len(l.src) && (isDigit(l.src[l.off]) || l.src[l.off] == '_') {
			l.advance(1)
		}
	}
	digits()
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.advance(1)
		digits()
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		n := 1
		if l.peekByte(1) == '-' {
			n = 2
		}
		if isDigit(l.peekByte(n)) {
			l.advance(n)
			digits()
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
