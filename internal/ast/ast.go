// Package ast declares the syntax tree shared by every Solidity parser backend.
//
// Each node kind is a concrete struct. Callers match on kinds with type
// switches; Visit and Inspect walk a tree in source order.
package ast

// Position is a 1-based line and column in a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() Position
}

// Expression is implemented by expression nodes.
type Expression interface {
	Node
	exprNode()
}

// Statement is implemented by statement nodes.
type Statement interface {
	Node
	stmtNode()
}

// TypeName is implemented by type name nodes.
type TypeName interface {
	Node
	typeNode()
}

// ContractKind distinguishes the kinds of contract definitions.
type ContractKind string

const (
	KindContract  ContractKind = "contract"
	KindInterface ContractKind = "interface"
	KindLibrary   ContractKind = "library"
)

// FunctionKind distinguishes ordinary functions from special entry points.
type FunctionKind string

const (
	FuncFunction    FunctionKind = "function"
	FuncConstructor FunctionKind = "constructor"
	FuncFallback    FunctionKind = "fallback"
	FuncReceive     FunctionKind = "receive"
	FuncFree        FunctionKind = "freeFunction"
)

// --- source level ---

// SourceUnit is the root of one parsed file.
type SourceUnit struct {
	Position
	Path  string
	Nodes []Node
}

// PragmaDirective is `pragma <name> <value>;`.
type PragmaDirective struct {
	Position
	Name  string
	Value string
}

// ImportSymbol is one `{A as B}` entry of an import directive.
type ImportSymbol struct {
	Name  string
	Alias string
}

// ImportDirective is any of the import forms. Path is the literal text.
type ImportDirective struct {
	Position
	Path      string
	UnitAlias string
	Symbols   []ImportSymbol
}

// ContractDefinition is a contract, interface or library.
type ContractDefinition struct {
	Position
	Name     string
	Kind     ContractKind
	Abstract bool
	Bases    []*InheritanceSpecifier
	Nodes    []Node
}

// InheritanceSpecifier is one entry of an `is A, B(x)` list.
type InheritanceSpecifier struct {
	Position
	Name string
	Args []Expression
}

// UsingForDirective is `using L for T;`.
type UsingForDirective struct {
	Position
	Library string
	Type    TypeName
}

// VariableDeclaration covers state variables, parameters, struct members and
// locals.
type VariableDeclaration struct {
	Position
	Name       string
	Type       TypeName
	Location   string
	Visibility string
	Constant   bool
	Immutable  bool
	Indexed    bool
	StateVar   bool
	Value      Expression
}

// FunctionDefinition is a function, constructor, fallback or receive function.
type FunctionDefinition struct {
	Position
	Name            string
	Kind            FunctionKind
	Params          []*VariableDeclaration
	Returns         []*VariableDeclaration
	Modifiers       []*ModifierInvocation
	Visibility      string
	StateMutability string
	Virtual         bool
	Override        bool
	Body            *Block
}

// ModifierInvocation is a modifier or base constructor call in a function
// header.
type ModifierInvocation struct {
	Position
	Name    string
	Args    []Expression
	HasArgs bool
}

// ModifierDefinition is `modifier m(...) { ... }`.
type ModifierDefinition struct {
	Position
	Name    string
	Params  []*VariableDeclaration
	Virtual bool
	Body    *Block
}

// EventDefinition is `event E(...);`.
type EventDefinition struct {
	Position
	Name      string
	Params    []*VariableDeclaration
	Anonymous bool
}

// ErrorDefinition is `error E(...);`.
type ErrorDefinition struct {
	Position
	Name   string
	Params []*VariableDeclaration
}

// StructDefinition is `struct S { ... }`.
type StructDefinition struct {
	Position
	Name    string
	Members []*VariableDeclaration
}

// EnumDefinition is `enum E { A, B }`.
type EnumDefinition struct {
	Position
	Name   string
	Values []string
}

// UserDefinedValueType is `type T is U;`.
type UserDefinedValueType struct {
	Position
	Name       string
	Underlying TypeName
}

// --- type names ---

// ElementaryTypeName is a built-in type such as uint256 or address payable.
type ElementaryTypeName struct {
	Position
	Name    string
	Payable bool
}

// UserDefinedTypeName is a contract, struct, enum or alias reference.
type UserDefinedTypeName struct {
	Position
	NamePath string
}

// ArrayTypeName is `T[]` or `T[n]`.
type ArrayTypeName struct {
	Position
	Base   TypeName
	Length Expression
}

// Mapping is `mapping(K => V)`.
type Mapping struct {
	Position
	Key   TypeName
	Value TypeName
}

// FunctionTypeName is a function type used as a variable type.
type FunctionTypeName struct {
	Position
	Params          []*VariableDeclaration
	Returns         []*VariableDeclaration
	Visibility      string
	StateMutability string
}

// --- statements ---

// Block is `{ ... }`, optionally `unchecked { ... }`.
type Block struct {
	Position
	Statements []Statement
	Unchecked  bool
}

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	Position
	Expr Expression
}

// VariableDeclarationStatement declares one variable or a tuple of them.
// Tuple gaps are nil entries in Decls.
type VariableDeclarationStatement struct {
	Position
	Decls []*VariableDeclaration
	Init  Expression
}

// IfStatement is `if (c) a else b`.
type IfStatement struct {
	Position
	Cond Expression
	Then Statement
	Else Statement
}

// ForStatement is `for (init; cond; post) body`.
type ForStatement struct {
	Position
	Init Statement
	Cond Expression
	Post Expression
	Body Statement
}

// WhileStatement is `while (c) body`.
type WhileStatement struct {
	Position
	Cond Expression
	Body Statement
}

// DoWhileStatement is `do body while (c);`.
type DoWhileStatement struct {
	Position
	Body Statement
	Cond Expression
}

// ReturnStatement is `return expr;`.
type ReturnStatement struct {
	Position
	Expr Expression
}

// EmitStatement is `emit E(...);`.
type EmitStatement struct {
	Position
	Call Expression
}

// RevertStatement is `revert E(...);` with a custom error.
type RevertStatement struct {
	Position
	Call Expression
}

// TryStatement is `try call returns (...) { } catch ... { }`.
type TryStatement struct {
	Position
	Call    Expression
	Returns []*VariableDeclaration
	Body    *Block
	Catches []*CatchClause
}

// CatchClause is one `catch Name(params) { }` arm.
type CatchClause struct {
	Position
	Name   string
	Params []*VariableDeclaration
	Body   *Block
}

// InlineAssembly is an `assembly { }` block. Its contents are not modelled.
type InlineAssembly struct {
	Position
}

// PlaceholderStatement is `_;` inside a modifier.
type PlaceholderStatement struct {
	Position
}

// BreakStatement is `break;`.
type BreakStatement struct {
	Position
}

// ContinueStatement is `continue;`.
type ContinueStatement struct {
	Position
}

// ThrowStatement is the legacy `throw;`.
type ThrowStatement struct {
	Position
}

// --- expressions ---

// Identifier is a plain name.
type Identifier struct {
	Position
	Name string
}

// MemberAccess is `expr.member`.
type MemberAccess struct {
	Position
	Expr   Expression
	Member string
}

// IndexAccess is `base[index]`. Index is nil for `T[]` used as an expression.
type IndexAccess struct {
	Position
	Base  Expression
	Index Expression
}

// IndexRangeAccess is `base[start:end]`.
type IndexRangeAccess struct {
	Position
	Base  Expression
	Start Expression
	End   Expression
}

// FunctionCall is `expr(args)`. Names is set for `f({a: x})` calls.
type FunctionCall struct {
	Position
	Expr  Expression
	Args  []Expression
	Names []string
}

// FunctionCallOptions is `expr{value: v, gas: g}`.
type FunctionCallOptions struct {
	Position
	Expr    Expression
	Names   []string
	Options []Expression
}

// NewExpression is `new T`.
type NewExpression struct {
	Position
	Type TypeName
}

// ElementaryTypeNameExpression is an elementary type used as a value, as in
// `address(x)`.
type ElementaryTypeNameExpression struct {
	Position
	Type *ElementaryTypeName
}

// Literal is a number, string, hex string or boolean literal.
type Literal struct {
	Position
	Kind            string
	Value           string
	Subdenomination string
}

// UnaryOperation is a prefix or postfix operator application.
type UnaryOperation struct {
	Position
	Op     string
	Prefix bool
	Sub    Expression
}

// BinaryOperation is `left op right`.
type BinaryOperation struct {
	Position
	Op    string
	Left  Expression
	Right Expression
}

// Assignment is `left op= right`.
type Assignment struct {
	Position
	Op    string
	Left  Expression
	Right Expression
}

// Conditional is `c ? a : b`.
type Conditional struct {
	Position
	Cond  Expression
	True  Expression
	False Expression
}

// TupleExpression is `(a, b)` or the inline array `[a, b]`. Gaps are nil.
type TupleExpression struct {
	Position
	Components []Expression
	IsArray    bool
}

// Literal kinds.
const (
	LitNumber  = "number"
	LitString  = "string"
	LitHex     = "hexString"
	LitUnicode = "unicodeString"
	LitBool    = "bool"
)

func (p Position) Pos() Position { return p }

func (*ElementaryTypeName) typeNode()  {}
func (*UserDefinedTypeName) typeNode() {}
func (*ArrayTypeName) typeNode()       {}
func (*Mapping) typeNode()             {}
func (*FunctionTypeName) typeNode()    {}

func (*Block) stmtNode()                        {}
func (*ExpressionStatement) stmtNode()          {}
func (*VariableDeclarationStatement) stmtNode() {}
func (*IfStatement) stmtNode()                  {}
func (*ForStatement) stmtNode()                 {}
func (*WhileStatement) stmtNode()               {}
func (*DoWhileStatement) stmtNode()             {}
func (*ReturnStatement) stmtNode()              {}
func (*EmitStatement) stmtNode()                {}
func (*RevertStatement) stmtNode()              {}
func (*TryStatement) stmtNode()                 {}
func (*InlineAssembly) stmtNode()               {}
func (*PlaceholderStatement) stmtNode()         {}
func (*BreakStatement) stmtNode()               {}
func (*ContinueStatement) stmtNode()            {}
func (*ThrowStatement) stmtNode()               {}

func (*Identifier) exprNode()                   {}
func (*MemberAccess) exprNode()                 {}
func (*IndexAccess) exprNode()                  {}
func (*IndexRangeAccess) exprNode()             {}
func (*FunctionCall) exprNode()                 {}
func (*FunctionCallOptions) exprNode()          {}
func (*NewExpression) exprNode()                {}
func (*ElementaryTypeNameExpression) exprNode() {}
func (*Literal) exprNode()                      {}
func (*UnaryOperation) exprNode()               {}
func (*BinaryOperation) exprNode()              {}
func (*Assignment) exprNode()                   {}
func (*Conditional) exprNode()                  {}
func (*TupleExpression) exprNode()              {}
