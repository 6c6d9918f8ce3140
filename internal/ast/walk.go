package ast

// Inspect traverses the tree rooted at n in source order. fn is called for
// every node; when it returns false the node's children are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

// Handlers holds one optional callback per node kind of interest. Visit
// invokes the matching callback for every node of that kind.
type Handlers struct {
	ContractDefinition   func(*ContractDefinition)
	ImportDirective      func(*ImportDirective)
	FunctionDefinition   func(*FunctionDefinition)
	ModifierDefinition   func(*ModifierDefinition)
	VariableDeclaration  func(*VariableDeclaration)
	EventDefinition      func(*EventDefinition)
	ErrorDefinition      func(*ErrorDefinition)
	StructDefinition     func(*StructDefinition)
	InheritanceSpecifier func(*InheritanceSpecifier)
	FunctionCall         func(*FunctionCall)
	MemberAccess         func(*MemberAccess)
}

// Visit walks the tree rooted at n and dispatches every node to h. Handlers
// may start nested visits over the node they receive.
func Visit(n Node, h Handlers) {
	Inspect(n, func(n Node) bool {
		switch n := n.(type) {
		case *ContractDefinition:
			if h.ContractDefinition != nil {
				h.ContractDefinition(n)
			}
		case *ImportDirective:
			if h.ImportDirective != nil {
				h.ImportDirective(n)
			}
		case *FunctionDefinition:
			if h.FunctionDefinition != nil {
				h.FunctionDefinition(n)
			}
		case *ModifierDefinition:
			if h.ModifierDefinition != nil {
				h.ModifierDefinition(n)
			}
		case *VariableDeclaration:
			if h.VariableDeclaration != nil {
				h.VariableDeclaration(n)
			}
		case *EventDefinition:
			if h.EventDefinition != nil {
				h.EventDefinition(n)
			}
		case *ErrorDefinition:
			if h.ErrorDefinition != nil {
				h.ErrorDefinition(n)
			}
		case *StructDefinition:
			if h.StructDefinition != nil {
				h.StructDefinition(n)
			}
		case *InheritanceSpecifier:
			if h.InheritanceSpecifier != nil {
				h.InheritanceSpecifier(n)
			}
		case *FunctionCall:
			if h.FunctionCall != nil {
				h.FunctionCall(n)
			}
		case *MemberAccess:
			if h.MemberAccess != nil {
				h.MemberAccess(n)
			}
		}
		return true
	})
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	addExpr := func(e Expression) {
		if e != nil {
			out = append(out, e)
		}
	}
	addStmt := func(s Statement) {
		if s != nil {
			out = append(out, s)
		}
	}
	addType := func(t TypeName) {
		if t != nil {
			out = append(out, t)
		}
	}
	addVars := func(vs []*VariableDeclaration) {
		for _, v := range vs {
			if v != nil {
				out = append(out, v)
			}
		}
	}
	addBlock := func(b *Block) {
		if b != nil {
			out = append(out, b)
		}
	}

	switch n := n.(type) {
	case *SourceUnit:
		out = append(out, n.Nodes...)
	case *ContractDefinition:
		for _, b := range n.Bases {
			out = append(out, b)
		}
		out = append(out, n.Nodes...)
	case *InheritanceSpecifier:
		for _, a := range n.Args {
			addExpr(a)
		}
	case *UsingForDirective:
		addType(n.Type)
	case *VariableDeclaration:
		addType(n.Type)
		addExpr(n.Value)
	case *FunctionDefinition:
		addVars(n.Params)
		addVars(n.Returns)
		for _, m := range n.Modifiers {
			out = append(out, m)
		}
		addBlock(n.Body)
	case *ModifierInvocation:
		for _, a := range n.Args {
			addExpr(a)
		}
	case *ModifierDefinition:
		addVars(n.Params)
		addBlock(n.Body)
	case *EventDefinition:
		addVars(n.Params)
	case *ErrorDefinition:
		addVars(n.Params)
	case *StructDefinition:
		addVars(n.Members)
	case *UserDefinedValueType:
		addType(n.Underlying)

	case *ArrayTypeName:
		addType(n.Base)
		addExpr(n.Length)
	case *Mapping:
		addType(n.Key)
		addType(n.Value)
	case *FunctionTypeName:
		addVars(n.Params)
		addVars(n.Returns)

	case *Block:
		for _, s := range n.Statements {
			addStmt(s)
		}
	case *ExpressionStatement:
		addExpr(n.Expr)
	case *VariableDeclarationStatement:
		addVars(n.Decls)
		addExpr(n.Init)
	case *IfStatement:
		addExpr(n.Cond)
		addStmt(n.Then)
		addStmt(n.Else)
	case *ForStatement:
		addStmt(n.Init)
		addExpr(n.Cond)
		addExpr(n.Post)
		addStmt(n.Body)
	case *WhileStatement:
		addExpr(n.Cond)
		addStmt(n.Body)
	case *DoWhileStatement:
		addStmt(n.Body)
		addExpr(n.Cond)
	case *ReturnStatement:
		addExpr(n.Expr)
	case *EmitStatement:
		addExpr(n.Call)
	case *RevertStatement:
		addExpr(n.Call)
	case *TryStatement:
		addExpr(n.Call)
		addVars(n.Returns)
		addBlock(n.Body)
		for _, c := range n.Catches {
			out = append(out, c)
		}
	case *CatchClause:
		addVars(n.Params)
		addBlock(n.Body)

	case *MemberAccess:
		addExpr(n.Expr)
	case *IndexAccess:
		addExpr(n.Base)
		addExpr(n.Index)
	case *IndexRangeAccess:
		addExpr(n.Base)
		addExpr(n.Start)
		addExpr(n.End)
	case *FunctionCall:
		addExpr(n.Expr)
		for _, a := range n.Args {
			addExpr(a)
		}
	case *FunctionCallOptions:
		addExpr(n.Expr)
		for _, o := range n.Options {
			addExpr(o)
		}
	case *NewExpression:
		addType(n.Type)
	case *ElementaryTypeNameExpression:
		if n.Type != nil {
			out = append(out, n.Type)
		}
	case *UnaryOperation:
		addExpr(n.Sub)
	case *BinaryOperation:
		addExpr(n.Left)
		addExpr(n.Right)
	case *Assignment:
		addExpr(n.Left)
		addExpr(n.Right)
	case *Conditional:
		addExpr(n.Cond)
		addExpr(n.True)
		addExpr(n.False)
	case *TupleExpression:
		for _, c := range n.Components {
			addExpr(c)
		}
	}
	return out
}
