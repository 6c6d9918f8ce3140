package solidity

import (
	"github.com/obernardovieira/solvis/internal/ast"
)

func (p *state) block() *ast.Block {
	start := p.peek()
	b := &ast.Block{Position: posOf(start)}
	if p.accept("unchecked") {
		b.Unchecked = true
	}
	p.expect("{")
	for !p.is("}") {
		if p.peek().kind == tokEOF {
			p.fail("unterminated block")
		}
		b.Statements = append(b.Statements, p.statement())
	}
	p.expect("}")
	return b
}

func (p *state) statement() ast.Statement {
	t := p.peek()
	pos := posOf(t)
	switch {
	case p.is("{"), p.is("unchecked") && p.isN(1, "{"):
		return p.block()
	case p.is("if"):
		p.next()
		p.expect("(")
		s := &ast.IfStatement{Position: pos, Cond: p.expression()}
		p.expect(")")
		s.Then = p.statement()
		if p.accept("else") {
			s.Else = p.statement()
		}
		return s
	case p.is("for"):
		return p.forStatement()
	case p.is("while"):
		p.next()
		p.expect("(")
		s := &ast.WhileStatement{Position: pos, Cond: p.expression()}
		p.expect(")")
		s.Body = p.statement()
		return s
	case p.is("do"):
		p.next()
		s := &ast.DoWhileStatement{Position: pos, Body: p.statement()}
		p.expect("while")
		p.expect("(")
		s.Cond = p.expression()
		p.expect(")")
		p.expect(";")
		return s
	case p.is("return"):
		p.next()
		s := &ast.ReturnStatement{Position: pos}
		if !p.is(";") {
			s.Expr = p.expression()
		}
		p.expect(";")
		return s
	case p.is("emit"):
		p.next()
		s := &ast.EmitStatement{Position: pos, Call: p.expression()}
		p.expect(";")
		return s
	case p.is("revert") && p.peekN(1).kind == tokIdent:
		p.next()
		s := &ast.RevertStatement{Position: pos, Call: p.expression()}
		p.expect(";")
		return s
	case p.is("try"):
		return p.tryStatement()
	case p.is("assembly"):
		return p.assembly()
	case p.is("break"):
		p.next()
		p.expect(";")
		return &ast.BreakStatement{Position: pos}
	case p.is("continue"):
		p.next()
		p.expect(";")
		return &ast.ContinueStatement{Position: pos}
	case p.is("throw"):
		p.next()
		p.expect(";")
		return &ast.ThrowStatement{Position: pos}
	case p.is("_") && p.isN(1, ";"):
		p.next()
		p.next()
		return &ast.PlaceholderStatement{Position: pos}
	}
	s := p.simpleStatement()
	p.expect(";")
	return s
}

// simpleStatement parses a variable declaration or an expression statement
// without the trailing semicolon.
func (p *state) simpleStatement() ast.Statement {
	if s := p.varDeclStatement(); s != nil {
		return s
	}
	t := p.peek()
	return &ast.ExpressionStatement{Position: posOf(t), Expr: p.expression()}
}

// varDeclStatement recognises the declaration forms by speculatively parsing
// their header. It returns nil and leaves the cursor untouched when the
// input is an expression.
func (p *state) varDeclStatement() ast.Statement {
	t := p.peek()
	pos := posOf(t)

	if p.is("var") && p.isN(1, "(") {
		p.next()
		p.next()
		s := &ast.VariableDeclarationStatement{Position: pos}
		for !p.is(")") {
			if p.is(",") {
				s.Decls = append(s.Decls, nil)
				p.next()
				continue
			}
			nt := p.ident()
			s.Decls = append(s.Decls, &ast.VariableDeclaration{
				Position: posOf(nt),
				Name:     nt.text,
				Type:     &ast.ElementaryTypeName{Position: pos, Name: "var"},
			})
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
		p.expect("=")
		s.Init = p.expression()
		return s
	}

	if p.is("(") {
		var decls []*ast.VariableDeclaration
		if !p.speculate(func() { decls = p.tupleDeclHeader() }) {
			return nil
		}
		s := &ast.VariableDeclarationStatement{Position: pos, Decls: decls}
		s.Init = p.expression()
		return s
	}

	var decl *ast.VariableDeclaration
	if !p.speculate(func() { decl = p.declHeader() }) {
		return nil
	}
	s := &ast.VariableDeclarationStatement{Position: pos, Decls: []*ast.VariableDeclaration{decl}}
	if p.accept("=") {
		s.Init = p.expression()
	}
	return s
}

// declHeader parses `Type [location] name`.
func (p *state) declHeader() *ast.VariableDeclaration {
	t := p.peek()
	v := &ast.VariableDeclaration{Position: posOf(t), Type: p.typeName()}
	if p.is("memory") || p.is("storage") || p.is("calldata") {
		v.Location = p.next().text
	}
	v.Name = p.ident().text
	if !p.is("=") && !p.is(";") {
		p.fail("expected \"=\" or \";\" after declaration of %s", v.Name)
	}
	return v
}

// tupleDeclHeader parses `(T a, , T b) =`, leaving the cursor at the
// initial value.
func (p *state) tupleDeclHeader() []*ast.VariableDeclaration {
	p.expect("(")
	var decls []*ast.VariableDeclaration
	expectItem := true
	for !p.is(")") {
		if p.is(",") {
			if expectItem {
				decls = append(decls, nil)
			}
			p.next()
			expectItem = true
			continue
		}
		t := p.peek()
		v := &ast.VariableDeclaration{Position: posOf(t), Type: p.typeName()}
		if p.is("memory") || p.is("storage") || p.is("calldata") {
			v.Location = p.next().text
		}
		v.Name = p.ident().text
		decls = append(decls, v)
		expectItem = false
	}
	if expectItem && len(decls) > 0 {
		decls = append(decls, nil)
	}
	p.expect(")")
	p.expect("=")
	return decls
}

func (p *state) forStatement() *ast.ForStatement {
	start := p.expect("for")
	s := &ast.ForStatement{Position: posOf(start)}
	p.expect("(")
	if !p.accept(";") {
		s.Init = p.simpleStatement()
		p.expect(";")
	}
	if !p.is(";") {
		s.Cond = p.expression()
	}
	p.expect(";")
	if !p.is(")") {
		s.Post = p.expression()
	}
	p.expect(")")
	s.Body = p.statement()
	return s
}

func (p *state) tryStatement() *ast.TryStatement {
	start := p.expect("try")
	s := &ast.TryStatement{Position: posOf(start), Call: p.expression()}
	if p.accept("returns") {
		s.Returns = p.paramList()
	}
	s.Body = p.block()
	for p.is("catch") {
		ct := p.next()
		c := &ast.CatchClause{Position: posOf(ct)}
		if p.peek().kind == tokIdent {
			c.Name = p.next().text
		}
		if p.is("(") {
			c.Params = p.paramList()
		}
		c.Body = p.block()
		s.Catches = append(s.Catches, c)
	}
	return s
}

// assembly skips an inline assembly block by matching braces.
func (p *state) assembly() *ast.InlineAssembly {
	start := p.expect("assembly")
	if p.peek().kind == tokString {
		p.next()
	}
	if p.accept("(") {
		for !p.accept(")") {
			if p.peek().kind == tokEOF {
				p.fail("unterminated assembly flags")
			}
			p.next()
		}
	}
	p.expect("{")
	depth := 1
	for depth > 0 {
		switch {
		case p.peek().kind == tokEOF:
			p.fail("unterminated assembly block")
		case p.is("{"):
			depth++
		case p.is("}"):
			depth--
		}
		p.next()
	}
	return &ast.InlineAssembly{Position: posOf(start)}
}
