package solidity

import (
	"github.com/obernardovieira/solvis/internal/ast"
)

// Binary operator precedence, higher binds tighter.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"|":  5,
	"^":  6,
	"&":  7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
	"**": 11,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"|=": true, "&=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

var subdenominations = map[string]bool{
	"wei": true, "gwei": true, "szabo": true, "finney": true, "ether": true,
	"seconds": true, "minutes": true, "hours": true, "days": true, "weeks": true, "years": true,
}

func (p *state) expression() ast.Expression {
	left := p.conditional()
	if t := p.peek(); t.kind == tokPunct && assignOps[t.text] {
		p.next()
		return &ast.Assignment{Position: left.Pos(), Op: t.text, Left: left, Right: p.expression()}
	}
	return left
}

func (p *state) conditional() ast.Expression {
	cond := p.binary(1)
	if !p.accept("?") {
		return cond
	}
	c := &ast.Conditional{Position: cond.Pos(), Cond: cond}
	c.True = p.expression()
	p.expect(":")
	c.False = p.expression()
	return c
}

func (p *state) binary(minPrec int) ast.Expression {
	left := p.unary()
	for {
		t := p.peek()
		prec, ok := binaryPrec[t.text]
		if t.kind != tokPunct || !ok || prec < minPrec {
			return left
		}
		p.next()
		next := prec + 1
		if t.text == "**" {
			next = prec
		}
		right := p.binary(next)
		left = &ast.BinaryOperation{Position: left.Pos(), Op: t.text, Left: left, Right: right}
	}
}

func (p *state) unary() ast.Expression {
	t := p.peek()
	switch {
	case p.is("!"), p.is("~"), p.is("-"), p.is("+"), p.is("++"), p.is("--"):
		p.next()
		return &ast.UnaryOperation{Position: posOf(t), Op: t.text, Prefix: true, Sub: p.unary()}
	case p.is("delete") && !p.isN(1, "("):
		p.next()
		return &ast.UnaryOperation{Position: posOf(t), Op: "delete", Prefix: true, Sub: p.unary()}
	}
	return p.postfix(p.primary())
}

func (p *state) postfix(e ast.Expression) ast.Expression {
	for {
		t := p.peek()
		switch {
		case p.is("."):
			p.next()
			member := p.peek()
			if member.kind != tokIdent {
				p.fail("expected member name, found %s", describe(member))
			}
			p.next()
			e = &ast.MemberAccess{Position: e.Pos(), Expr: e, Member: member.text}
		case p.is("["):
			p.next()
			e = p.indexRest(e)
		case p.is("("):
			call := &ast.FunctionCall{Position: e.Pos(), Expr: e}
			call.Args = p.callArgs(&call.Names)
			e = call
		case p.is("{") && p.peekN(1).kind == tokIdent && p.isN(2, ":"):
			e = p.callOptions(e)
		case p.is("++"), p.is("--"):
			p.next()
			e = &ast.UnaryOperation{Position: e.Pos(), Op: t.text, Sub: e}
		default:
			return e
		}
	}
}

// indexRest parses the remainder of `base[...]` after the opening bracket.
func (p *state) indexRest(base ast.Expression) ast.Expression {
	if p.accept("]") {
		return &ast.IndexAccess{Position: base.Pos(), Base: base}
	}
	var start ast.Expression
	if !p.is(":") {
		start = p.expression()
	}
	if p.accept(":") {
		r := &ast.IndexRangeAccess{Position: base.Pos(), Base: base, Start: start}
		if !p.is("]") {
			r.End = p.expression()
		}
		p.expect("]")
		return r
	}
	p.expect("]")
	return &ast.IndexAccess{Position: base.Pos(), Base: base, Index: start}
}

// callArgs parses `(a, b)` or `({x: a, y: b})`. Argument names are stored
// through names when it is non-nil.
func (p *state) callArgs(names *[]string) []ast.Expression {
	p.expect("(")
	var args []ast.Expression
	if p.is("{") {
		p.next()
		for !p.is("}") {
			n := p.ident()
			p.expect(":")
			if names != nil {
				*names = append(*names, n.text)
			}
			args = append(args, p.expression())
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		p.expect(")")
		return args
	}
	for !p.is(")") {
		args = append(args, p.expression())
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return args
}

func (p *state) callOptions(e ast.Expression) ast.Expression {
	p.expect("{")
	opts := &ast.FunctionCallOptions{Position: e.Pos(), Expr: e}
	for !p.is("}") {
		opts.Names = append(opts.Names, p.ident().text)
		p.expect(":")
		opts.Options = append(opts.Options, p.expression())
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return opts
}

func (p *state) primary() ast.Expression {
	t := p.peek()
	pos := posOf(t)

	switch t.kind {
	case tokNumber:
		p.next()
		lit := &ast.Literal{Position: pos, Kind: ast.LitNumber, Value: t.text}
		if n := p.peek(); n.kind == tokIdent && subdenominations[n.text] {
			lit.Subdenomination = p.next().text
		}
		return lit
	case tokString, tokHexString, tokUnicodeString:
		kind := ast.LitString
		switch t.kind {
		case tokHexString:
			kind = ast.LitHex
		case tokUnicodeString:
			kind = ast.LitUnicode
		}
		value := p.next().text
		for p.peek().kind == t.kind {
			value += p.next().text
		}
		return &ast.Literal{Position: pos, Kind: kind, Value: value}
	case tokEOF:
		p.fail("unexpected end of file in expression")
	}

	switch {
	case p.is("("):
		return p.tuple(")", false)
	case p.is("["):
		return p.tuple("]", true)
	case p.is("true"), p.is("false"):
		p.next()
		return &ast.Literal{Position: pos, Kind: ast.LitBool, Value: t.text}
	case p.is("new"):
		p.next()
		return &ast.NewExpression{Position: pos, Type: p.typeName()}
	case p.is("payable") && p.isN(1, "("):
		p.next()
		return &ast.ElementaryTypeNameExpression{
			Position: pos,
			Type:     &ast.ElementaryTypeName{Position: pos, Name: "address", Payable: true},
		}
	case t.kind == tokIdent && ast.IsElementaryTypeName(t.text):
		p.next()
		el := &ast.ElementaryTypeName{Position: pos, Name: t.text}
		if t.text == "address" && p.is("payable") {
			p.next()
			el.Payable = true
		}
		return &ast.ElementaryTypeNameExpression{Position: pos, Type: el}
	case t.kind == tokIdent:
		p.next()
		return &ast.Identifier{Position: pos, Name: t.text}
	}
	p.fail("unexpected %s in expression", describe(t))
	return nil
}

// tuple parses a parenthesised expression, tuple or inline array. Empty
// components are kept as nil entries.
func (p *state) tuple(closer string, isArray bool) ast.Expression {
	start := p.next()
	tup := &ast.TupleExpression{Position: posOf(start), IsArray: isArray}
	expectItem := true
	for !p.is(closer) {
		if p.is(",") {
			if expectItem {
				tup.Components = append(tup.Components, nil)
			}
			p.next()
			expectItem = true
			continue
		}
		if !expectItem {
			p.fail("expected \",\" or %q, found %s", closer, describe(p.peek()))
		}
		tup.Components = append(tup.Components, p.expression())
		expectItem = false
	}
	if expectItem && len(tup.Components) > 0 {
		tup.Components = append(tup.Components, nil)
	}
	p.expect(closer)
	return tup
}
