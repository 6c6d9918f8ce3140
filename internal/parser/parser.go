package parser

import (
	"errors"
	"fmt"
	"os"

	"github.com/obernardovieira/solvis/internal/ast"
)

// Backend names a parser implementation.
type Backend string

const (
	// BackendNative is the built-in recursive-descent parser.
	BackendNative Backend = "native"
	// BackendSolc shells out to the solc compiler for its compact JSON AST.
	BackendSolc Backend = "solc"
)

// FileExtensions lists the extensions of Solidity source files.
var FileExtensions = []string{".sol"}

// ErrUnknownBackend is returned when a requested backend is not registered.
var ErrUnknownBackend = errors.New("unknown parser backend")

// Parser turns the content of one source file into a syntax tree.
type Parser interface {
	// Backend returns the name this parser is registered under.
	Backend() Backend

	// ParseFile parses the given file content. filePath is used for error
	// messages and recorded on the returned unit.
	ParseFile(filePath string, content []byte) (*ast.SourceUnit, error)
}

// SyntaxError reports malformed source text.
type SyntaxError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

// ParsePath reads filePath from disk and parses it with p.
func ParsePath(p Parser, filePath string) (*ast.SourceUnit, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	unit, err := p.ParseFile(filePath, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return unit, nil
}
