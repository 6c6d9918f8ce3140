package solidity

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/obernardovieira/solvis/internal/ast"
	"github.com/obernardovieira/solvis/internal/parser"
)

const vaultSource = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

import "./Base.sol";
import {Ownable as Own, IERC20} from "@openzeppelin/contracts/access/Ownable.sol";
import * as Lib from "../lib/Lib.sol";

uint256 constant MAX_SUPPLY = 1_000 ether;

error Unauthorized(address caller);

struct Position { uint256 amount; address owner; }

/// A vault.
abstract contract Vault is Base, Own(msg.sender) {
    using SafeMath for uint256;

    event Deposited(address indexed from, uint256 amount);

    enum State { Open, Closed }

    mapping(address => uint256) public balances;
    uint256[] private history;
    address payable immutable treasury;

    modifier onlyOwner() {
        require(msg.sender == owner(), "not owner");
        _;
    }

    constructor(address payable t) Base(1) {
        treasury = t;
    }

    function deposit(uint256 amount, Position memory pos) external payable virtual onlyOwner returns (bool ok) {
        balances[msg.sender] += amount;
        (bool sent, ) = treasury.call{value: msg.value}("");
        uint256 fee = amount > 10 ? amount / 10 : 0;
        for (uint256 i = 0; i < history.length; i++) {
            history[i] = fee ** 2;
        }
        emit Deposited(msg.sender, amount);
        if (!sent) {
            revert Unauthorized(msg.sender);
        }
        unchecked { fee++; }
        assembly {
            let x := mload(0x40)
            if iszero(x) { revert(0, 0) }
        }
        try Lib.helper(amount) returns (uint256 v) {
            fee = v;
        } catch Error(string memory reason) {
            fee = 0;
        } catch {
            fee = 1;
        }
        return Base.check(payable(msg.sender), type(uint256).max);
    }

    receive() external payable {}
    fallback() external {}
}
`

func TestParseFile(t *testing.T) {
	p := NewParser()

	unit, err := p.ParseFile("src/Vault.sol", []byte(vaultSource))
	if err != nil {
		t.Fatalf("ParseFile returned error: %v", err)
	}
	if unit.Path != "src/Vault.sol" {
		t.Errorf("Path = %q, want %q", unit.Path, "src/Vault.sol")
	}
	if len(unit.Nodes) != 8 {
		t.Fatalf("got %d top-level nodes, want 8", len(unit.Nodes))
	}

	pragma, ok := unit.Nodes[0].(*ast.PragmaDirective)
	if !ok {
		t.Fatalf("node 0 is %T, want *ast.PragmaDirective", unit.Nodes[0])
	}
	if pragma.Name != "solidity" || pragma.Value != "^0.8.20" {
		t.Errorf("pragma = %q %q", pragma.Name, pragma.Value)
	}

	imports := collect[*ast.ImportDirective](unit)
	if len(imports) != 3 {
		t.Fatalf("got %d imports, want 3", len(imports))
	}
	if imports[0].Path != "./Base.sol" {
		t.Errorf("import 0 path = %q", imports[0].Path)
	}
	wantSymbols := []ast.ImportSymbol{{Name: "Ownable", Alias: "Own"}, {Name: "IERC20"}}
	if fmt.Sprint(imports[1].Symbols) != fmt.Sprint(wantSymbols) {
		t.Errorf("import 1 symbols = %v, want %v", imports[1].Symbols, wantSymbols)
	}
	if imports[2].UnitAlias != "Lib" || imports[2].Path != "../lib/Lib.sol" {
		t.Errorf("import 2 = %q as %q", imports[2].Path, imports[2].UnitAlias)
	}

	maxSupply, ok := unit.Nodes[4].(*ast.VariableDeclaration)
	if !ok {
		t.Fatalf("node 4 is %T, want *ast.VariableDeclaration", unit.Nodes[4])
	}
	if maxSupply.Name != "MAX_SUPPLY" || !maxSupply.Constant || maxSupply.StateVar {
		t.Errorf("MAX_SUPPLY = %+v", maxSupply)
	}
	if lit, ok := maxSupply.Value.(*ast.Literal); !ok || lit.Value != "1_000" || lit.Subdenomination != "ether" {
		t.Errorf("MAX_SUPPLY value = %#v", maxSupply.Value)
	}

	contracts := collect[*ast.ContractDefinition](unit)
	if len(contracts) != 1 {
		t.Fatalf("got %d contracts, want 1", len(contracts))
	}
	vault := contracts[0]
	if vault.Name != "Vault" || !vault.Abstract || vault.Kind != ast.KindContract {
		t.Errorf("contract = %s abstract=%v kind=%s", vault.Name, vault.Abstract, vault.Kind)
	}
	if vault.Line != 15 {
		t.Errorf("contract line = %d, want 15", vault.Line)
	}
	if len(vault.Bases) != 2 || vault.Bases[0].Name != "Base" || vault.Bases[1].Name != "Own" {
		t.Fatalf("bases = %+v", vault.Bases)
	}
	if len(vault.Bases[1].Args) != 1 {
		t.Errorf("Own args = %d, want 1", len(vault.Bases[1].Args))
	}

	vars := make(map[string]*ast.VariableDeclaration)
	for _, n := range vault.Nodes {
		if v, ok := n.(*ast.VariableDeclaration); ok {
			vars[v.Name] = v
		}
	}
	stateTypes := []struct {
		name string
		typ  string
	}{
		{"balances", "mapping(address => uint256)"},
		{"history", "uint256[]"},
		{"treasury", "address"},
	}
	for _, tt := range stateTypes {
		v, ok := vars[tt.name]
		if !ok {
			t.Errorf("missing state variable %s", tt.name)
			continue
		}
		if got := ast.TypeString(v.Type); got != tt.typ {
			t.Errorf("%s type = %q, want %q", tt.name, got, tt.typ)
		}
		if !v.StateVar {
			t.Errorf("%s should be a state variable", tt.name)
		}
	}
	if vars["balances"].Visibility != "public" {
		t.Errorf("balances visibility = %q", vars["balances"].Visibility)
	}
	if el, ok := vars["treasury"].Type.(*ast.ElementaryTypeName); !ok || !el.Payable || !vars["treasury"].Immutable {
		t.Errorf("treasury = %+v", vars["treasury"])
	}

	funcs := make(map[ast.FunctionKind][]*ast.FunctionDefinition)
	for _, fn := range collect[*ast.FunctionDefinition](unit) {
		funcs[fn.Kind] = append(funcs[fn.Kind], fn)
	}
	if len(funcs[ast.FuncConstructor]) != 1 || len(funcs[ast.FuncFunction]) != 1 ||
		len(funcs[ast.FuncReceive]) != 1 || len(funcs[ast.FuncFallback]) != 1 {
		t.Fatalf("function kinds = %v", funcs)
	}

	ctor := funcs[ast.FuncConstructor][0]
	if len(ctor.Modifiers) != 1 || ctor.Modifiers[0].Name != "Base" || !ctor.Modifiers[0].HasArgs {
		t.Errorf("constructor modifiers = %+v", ctor.Modifiers)
	}

	deposit := funcs[ast.FuncFunction][0]
	if deposit.Name != "deposit" || deposit.Visibility != "external" ||
		deposit.StateMutability != "payable" || !deposit.Virtual {
		t.Errorf("deposit header = %+v", deposit)
	}
	if len(deposit.Modifiers) != 1 || deposit.Modifiers[0].Name != "onlyOwner" {
		t.Errorf("deposit modifiers = %+v", deposit.Modifiers)
	}
	if len(deposit.Returns) != 1 || deposit.Returns[0].Name != "ok" {
		t.Errorf("deposit returns = %+v", deposit.Returns)
	}
	if len(deposit.Params) != 2 {
		t.Fatalf("deposit params = %d, want 2", len(deposit.Params))
	}
	if got := ast.TypeString(deposit.Params[1].Type); got != "Position" || deposit.Params[1].Location != "memory" {
		t.Errorf("param 1 = %s %s", got, deposit.Params[1].Location)
	}
	if deposit.Line != 35 {
		t.Errorf("deposit line = %d, want 35", deposit.Line)
	}

	counts := make(map[string]int)
	ast.Inspect(deposit.Body, func(n ast.Node) bool {
		counts[fmt.Sprintf("%T", n)]++
		return true
	})
	for kind, want := range map[string]int{
		"*ast.FunctionCallOptions":          1,
		"*ast.TryStatement":                 1,
		"*ast.CatchClause":                  2,
		"*ast.InlineAssembly":               1,
		"*ast.RevertStatement":              1,
		"*ast.EmitStatement":                1,
		"*ast.Conditional":                  1,
		"*ast.ForStatement":                 1,
		"*ast.VariableDeclarationStatement": 3,
	} {
		if counts[kind] != want {
			t.Errorf("%s count = %d, want %d", kind, counts[kind], want)
		}
	}

	ret, ok := deposit.Body.Statements[len(deposit.Body.Statements)-1].(*ast.ReturnStatement)
	if !ok {
		t.Fatal("last statement should be a return")
	}
	call, ok := ret.Expr.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("return expr is %T", ret.Expr)
	}
	if ma, ok := call.Expr.(*ast.MemberAccess); !ok || ma.Member != "check" {
		t.Errorf("callee = %#v", call.Expr)
	}
	if len(call.Args) != 2 {
		t.Fatalf("args = %d", len(call.Args))
	}
	if inner, ok := call.Args[0].(*ast.FunctionCall); !ok {
		t.Errorf("arg 0 = %T", call.Args[0])
	} else if et, ok := inner.Expr.(*ast.ElementaryTypeNameExpression); !ok || !et.Type.Payable {
		t.Errorf("payable cast callee = %#v", inner.Expr)
	}
	if ma, ok := call.Args[1].(*ast.MemberAccess); !ok || ma.Member != "max" {
		t.Errorf("arg 1 = %#v", call.Args[1])
	}

	mods := collect[*ast.ModifierDefinition](unit)
	if len(mods) != 1 || mods[0].Name != "onlyOwner" {
		t.Fatalf("modifiers = %+v", mods)
	}
	if _, ok := mods[0].Body.Statements[1].(*ast.PlaceholderStatement); !ok {
		t.Errorf("modifier statement 1 = %T", mods[0].Body.Statements[1])
	}

	if n := len(collect[*ast.EventDefinition](unit)); n != 1 {
		t.Errorf("events = %d", n)
	}
	if n := len(collect[*ast.StructDefinition](unit)); n != 1 {
		t.Errorf("structs = %d", n)
	}
	if n := len(collect[*ast.ErrorDefinition](unit)); n != 1 {
		t.Errorf("errors = %d", n)
	}
}

func TestStatementForms(t *testing.T) {
	tests := []struct {
		stmt string
		decl bool
	}{
		{"uint256 x = 1;", true},
		{"x = 1;", false},
		{"a[i] = 2;", false},
		{"uint256[] memory xs = new uint256[](3);", true},
		{"mapping(address => uint) storage m = balances;", true},
		{"Foo.Bar memory b;", true},
		{"Foo(addr).bar();", false},
		{"(uint a, , bytes memory c) = f();", true},
		{"(a, b) = (b, a);", false},
		{"i++;", false},
		{"var (p, q) = f();", true},
		{"delete balances[x];", false},
		{"address payable to = payable(msg.sender);", true},
	}

	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			src := "contract C { function f() public { " + tt.stmt + " } }"
			unit, err := NewParser().ParseFile("C.sol", []byte(src))
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			fn := collect[*ast.FunctionDefinition](unit)[0]
			if len(fn.Body.Statements) != 1 {
				t.Fatalf("got %d statements", len(fn.Body.Statements))
			}
			_, isDecl := fn.Body.Statements[0].(*ast.VariableDeclarationStatement)
			if isDecl != tt.decl {
				t.Errorf("statement is %T, want declaration=%v", fn.Body.Statements[0], tt.decl)
			}
		})
	}
}

func TestTupleDeclarationGaps(t *testing.T) {
	src := "contract C { function f() public { (uint a, , bytes memory c) = g(); } }"
	unit, err := NewParser().ParseFile("C.sol", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	stmt := collect[*ast.FunctionDefinition](unit)[0].Body.Statements[0].(*ast.VariableDeclarationStatement)
	if len(stmt.Decls) != 3 {
		t.Fatalf("decls = %d, want 3", len(stmt.Decls))
	}
	if stmt.Decls[0].Name != "a" || stmt.Decls[1] != nil || stmt.Decls[2].Name != "c" {
		t.Errorf("decls = %+v", stmt.Decls)
	}
	if stmt.Decls[2].Location != "memory" {
		t.Errorf("c location = %q", stmt.Decls[2].Location)
	}
}

func TestExpressionPrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"a + b * c", "(+ a (* b c))"},
		{"a * b + c", "(+ (* a b) c)"},
		{"a ** b ** c", "(** a (** b c))"},
		{"a || b && c == d", "(|| a (&& b (== c d)))"},
		{"a < b ? c : d", "(? (< a b) c d)"},
		{"x = y += z", "(= x (+= y z))"},
		{"-a + b", "(+ (-a) b)"},
		{"a.b(c)[d]", "([] (call (. a b) c) d)"},
		{"a & b | c ^ d", "(| (& a b) (^ c d))"},
		{"a << 2 + 1", "(<< a (+ 2 1))"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			src := "contract C { function f() public { " + tt.expr + "; } }"
			unit, err := NewParser().ParseFile("C.sol", []byte(src))
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			stmt, ok := collect[*ast.FunctionDefinition](unit)[0].Body.Statements[0].(*ast.ExpressionStatement)
			if !ok {
				t.Fatalf("statement is not an expression")
			}
			if got := render(stmt.Expr); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLegacyForms(t *testing.T) {
	src := `pragma solidity ^0.4.24;
contract Token {
    function Token() Owned(1) public {}
    function () payable {}
    function transfer(address to, uint value) returns (bool) { throw; }
}`
	unit, err := NewParser().ParseFile("Token.sol", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	fns := collect[*ast.FunctionDefinition](unit)
	if len(fns) != 3 {
		t.Fatalf("got %d functions", len(fns))
	}
	if fns[0].Kind != ast.FuncConstructor {
		t.Errorf("Token() kind = %s, want constructor", fns[0].Kind)
	}
	if len(fns[0].Modifiers) != 1 || fns[0].Modifiers[0].Name != "Owned" {
		t.Errorf("constructor modifiers = %+v", fns[0].Modifiers)
	}
	if fns[1].Kind != ast.FuncFallback || fns[1].Name != "" {
		t.Errorf("unnamed function = %s %q, want fallback", fns[1].Kind, fns[1].Name)
	}
	if fns[2].Kind != ast.FuncFunction || ast.TypeString(fns[2].Params[1].Type) != "uint" {
		t.Errorf("transfer = %+v", fns[2])
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"missing contract name", "contract { }", 1},
		{"unterminated string", "pragma solidity ^0.8.0;\nstring constant S = \"abc;\n", 2},
		{"unterminated comment", "contract A {}\n/* open", 2},
		{"unbalanced block", "contract A {\n function f() public {\n x = 1;\n", 4},
		{"bad character", "contract A { # }", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseFile("Bad.sol", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			var se *parser.SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a *parser.SyntaxError", err)
			}
			if se.File != "Bad.sol" || se.Line != tt.line {
				t.Errorf("error at %s:%d, want Bad.sol:%d (%v)", se.File, se.Line, tt.line, err)
			}
		})
	}
}

func TestLexNumbersAndStrings(t *testing.T) {
	toks, err := lex("x.sol", []byte(`hex"00ff" unicode"hi" 0x1F 1.5e-3 .5 >>>= 'a\'b'`))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	want := []struct {
		kind tokenKind
		text string
	}{
		{tokHexString, "00ff"},
		{tokUnicodeString, "hi"},
		{tokNumber, "0x1F"},
		{tokNumber, "1.5e-3"},
		{tokNumber, ".5"},
		{tokPunct, ">>>="},
		{tokString, `a\'b`},
		{tokEOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].kind != w.kind || toks[i].text != w.text {
			t.Errorf("token %d = (%d, %q), want (%d, %q)", i, toks[i].kind, toks[i].text, w.kind, w.text)
		}
	}
}

func TestBackend(t *testing.T) {
	if got := NewParser().Backend(); got != parser.BackendNative {
		t.Errorf("Backend() = %q, want %q", got, parser.BackendNative)
	}
}

// collect returns every node of type T under n in source order.
func collect[T ast.Node](n ast.Node) []T {
	var out []T
	ast.Inspect(n, func(n ast.Node) bool {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

// render prints an expression as an s-expression.
func render(e ast.Expression) string {
	switch e := e.(type) {
	case *ast.Identifier:
		return e.Name
	case *ast.Literal:
		return e.Value
	case *ast.BinaryOperation:
		return "(" + e.Op + " " + render(e.Left) + " " + render(e.Right) + ")"
	case *ast.Assignment:
		return "(" + e.Op + " " + render(e.Left) + " " + render(e.Right) + ")"
	case *ast.Conditional:
		return "(? " + render(e.Cond) + " " + render(e.True) + " " + render(e.False) + ")"
	case *ast.UnaryOperation:
		if e.Prefix {
			return "(" + e.Op + render(e.Sub) + ")"
		}
		return "(" + render(e.Sub) + e.Op + ")"
	case *ast.MemberAccess:
		return "(. " + render(e.Expr) + " " + e.Member + ")"
	case *ast.IndexAccess:
		return "([] " + render(e.Base) + " " + render(e.Index) + ")"
	case *ast.FunctionCall:
		parts := []string{"call", render(e.Expr)}
		for _, a := range e.Args {
			parts = append(parts, render(a))
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return fmt.Sprintf("<%T>", e)
}
