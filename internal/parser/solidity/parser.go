// Package solidity implements the native Solidity parser backend.
//
// The parser is lenient: it understands the declarations, statements and
// expressions needed for call-graph construction and skips the bodies of
// inline assembly blocks. Errors are reported as *parser.SyntaxError.
package solidity

import (
	"fmt"
	"strings"

	"github.com/obernardovieira/solvis/internal/ast"
	"github.com/obernardovieira/solvis/internal/parser"
)

// SolidityParser is the built-in recursive-descent backend.
type SolidityParser struct{}

// NewParser creates a new native Solidity parser.
func NewParser() *SolidityParser {
	return &SolidityParser{}
}

func (p *SolidityParser) Backend() parser.Backend {
	return parser.BackendNative
}

func (p *SolidityParser) ParseFile(filePath string, content []byte) (unit *ast.SourceUnit, err error) {
	toks, err := lex(filePath, content)
	if err != nil {
		return nil, err
	}
	ps := &state{file: filePath, src: content, toks: toks}

	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*parser.SyntaxError)
			if !ok {
				panic(r)
			}
			unit, err = nil, se
		}
	}()
	return ps.sourceUnit(), nil
}

// state is the token cursor shared by the declaration, statement and
// expression parsers.
type state struct {
	file string
	src  []byte
	toks []token
	pos  int

	// contractName is the name of the contract being parsed, used to spot
	// legacy constructors named after their contract.
	contractName string
}

func (p *state) peek() token { return p.peekN(0) }

func (p *state) peekN(n int) token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *state) next() token {
	t := p.peek()
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// is reports whether the current token has the given text and is not a
// string literal.
func (p *state) is(text string) bool {
	t := p.peek()
	return (t.kind == tokIdent || t.kind == tokPunct) && t.text == text
}

func (p *state) isN(n int, text string) bool {
	t := p.peekN(n)
	return (t.kind == tokIdent || t.kind == tokPunct) && t.text == text
}

func (p *state) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *state) expect(text string) token {
	if !p.is(text) {
		p.fail("expected %q, found %s", text, describe(p.peek()))
	}
	return p.next()
}

func (p *state) ident() token {
	t := p.peek()
	if t.kind != tokIdent {
		p.fail("expected identifier, found %s", describe(t))
	}
	return p.next()
}

func (p *state) fail(format string, args ...any) {
	t := p.peek()
	panic(&parser.SyntaxError{File: p.file, Line: t.line, Column: t.col, Msg: fmt.Sprintf(format, args...)})
}

// speculate runs fn and reports whether it completed without a syntax
// error. On failure the cursor is restored.
func (p *state) speculate(fn func()) (ok bool) {
	saved := p.pos
	defer func() {
		if r := recover(); r != nil {
			if _, isSyntax := r.(*parser.SyntaxError); !isSyntax {
				panic(r)
			}
			p.pos = saved
			ok = false
		}
	}()
	fn()
	return true
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString, tokHexString, tokUnicodeString:
		return "string literal"
	}
	return fmt.Sprintf("%q", t.text)
}

func posOf(t token) ast.Position {
	return ast.Position{Line: t.line, Column: t.col}
}

// --- source units ---

func (p *state) sourceUnit() *ast.SourceUnit {
	unit := &ast.SourceUnit{Position: ast.Position{Line: 1, Column: 1}, Path: p.file}
	for p.peek().kind != tokEOF {
		if n := p.sourceUnitPart(); n != nil {
			unit.Nodes = append(unit.Nodes, n)
		}
	}
	return unit
}

func (p *state) sourceUnitPart() ast.Node {
	t := p.peek()
	switch {
	case p.is(";"):
		p.next()
		return nil
	case p.is("pragma"):
		return p.pragma()
	case p.is("import"):
		return p.importDirective()
	case p.is("abstract"), p.is("contract"), p.is("interface"), p.is("library"):
		return p.contract()
	case p.is("function"):
		p.next()
		return p.functionRest(t, ast.FuncFree)
	case p.is("struct"):
		return p.structDef()
	case p.is("enum"):
		return p.enumDef()
	case p.is("event"):
		return p.eventDef()
	case p.is("error") && p.peekN(1).kind == tokIdent && p.isN(2, "("):
		return p.errorDef()
	case p.is("type") && p.peekN(1).kind == tokIdent && p.isN(2, "is"):
		return p.userValueType()
	case p.is("using"):
		return p.usingFor()
	}
	v := p.stateVariable()
	v.StateVar = false
	return v
}

func (p *state) pragma() *ast.PragmaDirective {
	start := p.expect("pragma")
	name := p.ident()
	from := p.peek().start
	for !p.is(";") {
		if p.peek().kind == tokEOF {
			p.fail("unterminated pragma")
		}
		p.next()
	}
	end := p.peek().start
	p.expect(";")
	return &ast.PragmaDirective{
		Position: posOf(start),
		Name:     name.text,
		Value:    strings.TrimSpace(string(p.src[from:end])),
	}
}

func (p *state) importDirective() *ast.ImportDirective {
	start := p.expect("import")
	imp := &ast.ImportDirective{Position: posOf(start)}

	switch {
	case p.peek().kind == tokString:
		imp.Path = p.next().text
		if p.accept("as") {
			imp.UnitAlias = p.ident().text
		}
	case p.is("*"):
		p.next()
		p.expect("as")
		imp.UnitAlias = p.ident().text
		p.expect("from")
		imp.Path = p.stringLit()
	case p.is("{"):
		p.next()
		for !p.is("}") {
			sym := ast.ImportSymbol{Name: p.ident().text}
			if p.accept("as") {
				sym.Alias = p.ident().text
			}
			imp.Symbols = append(imp.Symbols, sym)
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		p.expect("from")
		imp.Path = p.stringLit()
	default:
		imp.UnitAlias = p.ident().text
		if p.accept("as") {
			imp.UnitAlias = p.ident().text
		}
		p.expect("from")
		imp.Path = p.stringLit()
	}
	p.expect(";")
	return imp
}

func (p *state) stringLit() string {
	t := p.peek()
	if t.kind != tokString {
		p.fail("expected string literal, found %s", describe(t))
	}
	return p.next().text
}

// --- contracts ---

func (p *state) contract() *ast.ContractDefinition {
	start := p.peek()
	c := &ast.ContractDefinition{Position: posOf(start)}
	if p.accept("abstract") {
		c.Abstract = true
	}
	switch {
	case p.is("contract"):
		c.Kind = ast.KindContract
	case p.is("interface"):
		c.Kind = ast.KindInterface
	case p.is("library"):
		c.Kind = ast.KindLibrary
	default:
		p.fail("expected contract, interface or library, found %s", describe(p.peek()))
	}
	p.next()
	c.Name = p.ident().text

	if p.accept("is") {
		for {
			bt := p.peek()
			spec := &ast.InheritanceSpecifier{Position: posOf(bt), Name: p.namePath()}
			if p.is("(") {
				spec.Args = p.callArgs(nil)
			}
			c.Bases = append(c.Bases, spec)
			if !p.accept(",") {
				break
			}
		}
	}

	outer := p.contractName
	p.contractName = c.Name
	defer func() { p.contractName = outer }()

	p.expect("{")
	for !p.is("}") {
		if p.peek().kind == tokEOF {
			p.fail("unterminated contract %s", c.Name)
		}
		if n := p.contractPart(); n != nil {
			c.Nodes = append(c.Nodes, n)
		}
	}
	p.expect("}")
	return c
}

func (p *state) contractPart() ast.Node {
	t := p.peek()
	switch {
	case p.is(";"):
		p.next()
		return nil
	case p.is("function"):
		p.next()
		return p.functionRest(t, ast.FuncFunction)
	case p.is("constructor") && p.isN(1, "("):
		p.next()
		return p.functionRest(t, ast.FuncConstructor)
	case p.is("fallback") && p.isN(1, "("):
		p.next()
		return p.functionRest(t, ast.FuncFallback)
	case p.is("receive") && p.isN(1, "("):
		p.next()
		return p.functionRest(t, ast.FuncReceive)
	case p.is("modifier"):
		return p.modifierDef()
	case p.is("struct"):
		return p.structDef()
	case p.is("enum"):
		return p.enumDef()
	case p.is("event"):
		return p.eventDef()
	case p.is("error") && p.peekN(1).kind == tokIdent && p.isN(2, "("):
		return p.errorDef()
	case p.is("type") && p.peekN(1).kind == tokIdent && p.isN(2, "is"):
		return p.userValueType()
	case p.is("using"):
		return p.usingFor()
	}
	return p.stateVariable()
}

// functionRest parses a function after its introducing keyword. For
// FuncFunction and FuncFree the name is read here; a missing name marks a
// legacy fallback function.
func (p *state) functionRest(start token, kind ast.FunctionKind) *ast.FunctionDefinition {
	fn := &ast.FunctionDefinition{Position: posOf(start), Kind: kind}
	if kind == ast.FuncFunction || kind == ast.FuncFree {
		if p.peek().kind == tokIdent {
			fn.Name = p.next().text
		} else if kind == ast.FuncFunction {
			fn.Kind = ast.FuncFallback
		}
		if kind == ast.FuncFunction && fn.Name != "" && fn.Name == p.contractName {
			fn.Kind = ast.FuncConstructor
		}
	}
	fn.Params = p.paramList()

	for {
		switch {
		case p.is("public"), p.is("private"), p.is("internal"), p.is("external"):
			fn.Visibility = p.next().text
		case p.is("pure"), p.is("view"), p.is("payable"), p.is("constant"):
			fn.StateMutability = p.next().text
		case p.is("virtual"):
			p.next()
			fn.Virtual = true
		case p.is("override"):
			p.overrideSpec()
			fn.Override = true
		case p.is("returns"):
			p.next()
			fn.Returns = p.paramList()
		case p.peek().kind == tokIdent:
			fn.Modifiers = append(fn.Modifiers, p.modifierInvocation())
		default:
			if !p.accept(";") {
				fn.Body = p.block()
			}
			return fn
		}
	}
}

func (p *state) overrideSpec() {
	p.expect("override")
	if p.accept("(") {
		for !p.is(")") {
			p.namePath()
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
	}
}

func (p *state) modifierInvocation() *ast.ModifierInvocation {
	t := p.peek()
	m := &ast.ModifierInvocation{Position: posOf(t), Name: p.namePath()}
	if p.is("(") {
		m.HasArgs = true
		m.Args = p.callArgs(nil)
	}
	return m
}

func (p *state) modifierDef() *ast.ModifierDefinition {
	start := p.expect("modifier")
	m := &ast.ModifierDefinition{Position: posOf(start), Name: p.ident().text}
	if p.is("(") {
		m.Params = p.paramList()
	}
	for {
		switch {
		case p.is("virtual"):
			p.next()
			m.Virtual = true
		case p.is("override"):
			p.overrideSpec()
		default:
			if !p.accept(";") {
				m.Body = p.block()
			}
			return m
		}
	}
}

func (p *state) structDef() *ast.StructDefinition {
	start := p.expect("struct")
	s := &ast.StructDefinition{Position: posOf(start), Name: p.ident().text}
	p.expect("{")
	for !p.is("}") {
		t := p.peek()
		typ := p.typeName()
		name := p.ident()
		p.expect(";")
		s.Members = append(s.Members, &ast.VariableDeclaration{Position: posOf(t), Name: name.text, Type: typ})
	}
	p.expect("}")
	return s
}

func (p *state) enumDef() *ast.EnumDefinition {
	start := p.expect("enum")
	e := &ast.EnumDefinition{Position: posOf(start), Name: p.ident().text}
	p.expect("{")
	for !p.is("}") {
		e.Values = append(e.Values, p.ident().text)
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return e
}

func (p *state) eventDef() *ast.EventDefinition {
	start := p.expect("event")
	e := &ast.EventDefinition{Position: posOf(start), Name: p.ident().text}
	e.Params = p.paramList()
	if p.accept("anonymous") {
		e.Anonymous = true
	}
	p.expect(";")
	return e
}

func (p *state) errorDef() *ast.ErrorDefinition {
	start := p.expect("error")
	e := &ast.ErrorDefinition{Position: posOf(start), Name: p.ident().text}
	e.Params = p.paramList()
	p.expect(";")
	return e
}

func (p *state) userValueType() *ast.UserDefinedValueType {
	start := p.expect("type")
	u := &ast.UserDefinedValueType{Position: posOf(start), Name: p.ident().text}
	p.expect("is")
	u.Underlying = p.typeName()
	p.expect(";")
	return u
}

func (p *state) usingFor() *ast.UsingForDirective {
	start := p.expect("using")
	u := &ast.UsingForDirective{Position: posOf(start)}
	if p.accept("{") {
		var names []string
		for !p.is("}") {
			names = append(names, p.namePath())
			if p.accept("as") {
				p.next()
			}
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		u.Library = "{" + strings.Join(names, ", ") + "}"
	} else {
		u.Library = p.namePath()
	}
	p.expect("for")
	if !p.accept("*") {
		u.Type = p.typeName()
	}
	p.accept("global")
	p.expect(";")
	return u
}

func (p *state) stateVariable() *ast.VariableDeclaration {
	t := p.peek()
	v := &ast.VariableDeclaration{Position: posOf(t), StateVar: true, Type: p.typeName()}
	for {
		switch {
		case p.is("public"), p.is("private"), p.is("internal"):
			v.Visibility = p.next().text
		case p.is("constant"):
			p.next()
			v.Constant = true
		case p.is("immutable"):
			p.next()
			v.Immutable = true
		case p.is("transient"):
			p.next()
			v.Location = "transient"
		case p.is("override"):
			p.overrideSpec()
		default:
			v.Name = p.ident().text
			if p.accept("=") {
				v.Value = p.expression()
			}
			p.expect(";")
			return v
		}
	}
}

// paramList parses `(T [location] [indexed] [name], ...)`.
func (p *state) paramList() []*ast.VariableDeclaration {
	p.expect("(")
	var params []*ast.VariableDeclaration
	for !p.is(")") {
		t := p.peek()
		v := &ast.VariableDeclaration{Position: posOf(t), Type: p.typeName()}
		for {
			if p.is("memory") || p.is("storage") || p.is("calldata") {
				v.Location = p.next().text
				continue
			}
			if p.is("indexed") {
				p.next()
				v.Indexed = true
				continue
			}
			break
		}
		if p.peek().kind == tokIdent {
			v.Name = p.next().text
		}
		params = append(params, v)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return params
}

// --- type names ---

func (p *state) namePath() string {
	parts := []string{p.ident().text}
	for p.is(".") && p.peekN(1).kind == tokIdent {
		p.next()
		parts = append(parts, p.next().text)
	}
	return strings.Join(parts, ".")
}

func (p *state) typeName() ast.TypeName {
	t := p.peek()
	var typ ast.TypeName
	switch {
	case p.is("mapping"):
		typ = p.mapping()
	case p.is("function") && p.isN(1, "("):
		typ = p.functionType()
	case t.kind == tokIdent && ast.IsElementaryTypeName(t.text):
		p.next()
		el := &ast.ElementaryTypeName{Position: posOf(t), Name: t.text}
		if t.text == "address" && p.is("payable") {
			p.next()
			el.Payable = true
		}
		typ = el
	case t.kind == tokIdent:
		typ = &ast.UserDefinedTypeName{Position: posOf(t), NamePath: p.namePath()}
	default:
		p.fail("expected type name, found %s", describe(t))
	}

	for p.is("[") {
		open := p.next()
		arr := &ast.ArrayTypeName{Position: posOf(open), Base: typ}
		if !p.is("]") {
			arr.Length = p.expression()
		}
		p.expect("]")
		typ = arr
	}
	return typ
}

func (p *state) mapping() *ast.Mapping {
	start := p.expect("mapping")
	m := &ast.Mapping{Position: posOf(start)}
	p.expect("(")
	m.Key = p.typeName()
	if p.peek().kind == tokIdent {
		p.next()
	}
	p.expect("=>")
	m.Value = p.typeName()
	if p.peek().kind == tokIdent {
		p.next()
	}
	p.expect(")")
	return m
}

func (p *state) functionType() *ast.FunctionTypeName {
	start := p.expect("function")
	f := &ast.FunctionTypeName{Position: posOf(start), Params: p.paramList()}
	for {
		switch {
		case p.is("internal"), p.is("external"), p.is("public"), p.is("private"):
			f.Visibility = p.next().text
		case p.is("pure"), p.is("view"), p.is("payable"), p.is("constant"):
			f.StateMutability = p.next().text
		case p.is("returns"):
			p.next()
			f.Returns = p.paramList()
		default:
			return f
		}
	}
}
