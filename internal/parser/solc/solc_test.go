package solc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/obernardovieira/solvis/internal/ast"
	"github.com/obernardovieira/solvis/internal/parser"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func TestSplitOutput(t *testing.T) {
	docs := SplitOutput(readFixture(t, "ast-compact.txt"))
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	for _, name := range []string{"Base.sol", "Child.sol"} {
		doc, ok := docs[name]
		if !ok {
			t.Errorf("missing document %s", name)
			continue
		}
		if !strings.HasPrefix(string(doc), "{") || !strings.HasSuffix(string(doc), "}") {
			t.Errorf("%s is not a bare JSON object", name)
		}
	}
}

func TestDecodeOutput(t *testing.T) {
	content := readFixture(t, "Child.sol")
	unit, err := DecodeOutput(readFixture(t, "ast-compact.txt"), "testdata/Child.sol", content)
	if err != nil {
		t.Fatalf("DecodeOutput: %v", err)
	}
	if unit.Path != "testdata/Child.sol" {
		t.Errorf("Path = %q", unit.Path)
	}
	if len(unit.Nodes) != 3 {
		t.Fatalf("got %d top-level nodes, want 3", len(unit.Nodes))
	}

	pragma := unit.Nodes[0].(*ast.PragmaDirective)
	if pragma.Name != "solidity" || pragma.Value != "^0.8.20" {
		t.Errorf("pragma = %q %q", pragma.Name, pragma.Value)
	}
	imp := unit.Nodes[1].(*ast.ImportDirective)
	if imp.Path != "./Base.sol" {
		t.Errorf("import path = %q", imp.Path)
	}

	c := unit.Nodes[2].(*ast.ContractDefinition)
	if c.Name != "Child" || c.Kind != ast.KindContract {
		t.Errorf("contract = %s %s", c.Name, c.Kind)
	}
	if c.Line != 5 || c.Column != 1 {
		t.Errorf("contract at %d:%d, want 5:1", c.Line, c.Column)
	}
	if len(c.Bases) != 1 || c.Bases[0].Name != "Base" {
		t.Errorf("bases = %+v", c.Bases)
	}
	if len(c.Nodes) != 3 {
		t.Fatalf("got %d contract members, want 3", len(c.Nodes))
	}

	total := c.Nodes[0].(*ast.VariableDeclaration)
	if total.Name != "total" || !total.StateVar || ast.TypeString(total.Type) != "uint256" || total.Visibility != "public" {
		t.Errorf("total = %+v", total)
	}
	if ev := c.Nodes[1].(*ast.EventDefinition); ev.Name != "Bumped" || len(ev.Params) != 1 {
		t.Errorf("event = %+v", ev)
	}

	hello := c.Nodes[2].(*ast.FunctionDefinition)
	if hello.Name != "hello" || hello.Kind != ast.FuncFunction || hello.Visibility != "public" {
		t.Errorf("hello = %+v", hello)
	}
	if hello.Line != 10 {
		t.Errorf("hello line = %d, want 10", hello.Line)
	}
	if len(hello.Params) != 1 || hello.Params[0].Name != "to" || ast.TypeString(hello.Params[0].Type) != "address" {
		t.Errorf("hello params = %+v", hello.Params)
	}
	if hello.Body == nil || len(hello.Body.Statements) != 3 {
		t.Fatalf("hello body = %+v", hello.Body)
	}

	first := hello.Body.Statements[0].(*ast.ExpressionStatement)
	call := first.Expr.(*ast.FunctionCall)
	if id, ok := call.Expr.(*ast.Identifier); !ok || id.Name != "greet" {
		t.Errorf("first callee = %#v", call.Expr)
	}
	if call.Line != 11 || call.Column != 9 {
		t.Errorf("greet() at %d:%d, want 11:9", call.Line, call.Column)
	}

	second := hello.Body.Statements[1].(*ast.ExpressionStatement).Expr.(*ast.FunctionCall)
	ma, ok := second.Expr.(*ast.MemberAccess)
	if !ok || ma.Member != "ping" {
		t.Fatalf("second callee = %#v", second.Expr)
	}
	if base, ok := ma.Expr.(*ast.Identifier); !ok || base.Name != "Base" {
		t.Errorf("member base = %#v", ma.Expr)
	}
	arg, ok := second.Args[0].(*ast.MemberAccess)
	if !ok || arg.Member != "value" {
		t.Errorf("argument = %#v", second.Args[0])
	}

	emit, ok := hello.Body.Statements[2].(*ast.EmitStatement)
	if !ok {
		t.Fatalf("statement 2 = %T", hello.Body.Statements[2])
	}
	if lit := emit.Call.(*ast.FunctionCall).Args[0].(*ast.Literal); lit.Kind != ast.LitNumber || lit.Value != "1" {
		t.Errorf("literal = %+v", lit)
	}
}

func TestDecodeOutputUnknownSource(t *testing.T) {
	_, err := DecodeOutput(readFixture(t, "ast-compact.txt"), "Other.sol", nil)
	if err == nil || !strings.Contains(err.Error(), "Other.sol") {
		t.Fatalf("err = %v, want missing source error", err)
	}
}

func TestDecodeRejectsNonSourceUnit(t *testing.T) {
	_, err := Decode([]byte(`{"nodeType":"ContractDefinition","src":"0:1:0"}`), "x.sol", nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFileUsesRunner(t *testing.T) {
	content := readFixture(t, "Child.sol")
	fixture := readFixture(t, "ast-compact.txt")

	var gotName string
	var gotArgs []string
	p := NewParser("/opt/solc", "/work", []string{"@oz/=lib/oz/"}).WithRunner(func(name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return fixture, nil
	})
	if p.Backend() != parser.BackendSolc {
		t.Errorf("Backend() = %q", p.Backend())
	}

	unit, err := p.ParseFile("Child.sol", content)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(unit.Nodes) != 3 {
		t.Errorf("got %d nodes", len(unit.Nodes))
	}
	if gotName != "/opt/solc" {
		t.Errorf("binary = %q", gotName)
	}
	want := "--ast-compact-json --base-path /work @oz/=lib/oz/ Child.sol"
	if strings.Join(gotArgs, " ") != want {
		t.Errorf("args = %q, want %q", strings.Join(gotArgs, " "), want)
	}
}

func TestParseFileRunnerError(t *testing.T) {
	boom := errors.New("boom")
	p := NewParser("solc", "", nil).WithRunner(func(string, ...string) ([]byte, error) {
		return nil, boom
	})
	if _, err := p.ParseFile("A.sol", nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestExtractPragmaVersion(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"pragma solidity ^0.8.16;", "0.8.16"},
		{"pragma solidity >=0.6.2 <0.9.0;", "0.9.0"},
		{"pragma solidity 0.4.24;\npragma solidity ^0.5.1;", "0.5.1"},
		{"pragma abicoder v2;", ""},
		{"contract A {}", ""},
	}
	for _, tt := range tests {
		if got := ExtractPragmaVersion(tt.src); got != tt.want {
			t.Errorf("ExtractPragmaVersion(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestLocateWithoutVersion(t *testing.T) {
	if got := Locate(""); got != "solc" {
		t.Errorf("Locate(\"\") = %q, want solc", got)
	}
}
