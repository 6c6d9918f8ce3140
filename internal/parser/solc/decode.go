package solc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/obernardovieira/solvis/internal/ast"
)

// jsonNode is the union of the compact AST fields we read. Fields whose
// shape depends on the node type are kept raw.
type jsonNode struct {
	NodeType string `json:"nodeType"`
	Src      string `json:"src"`
	Name     string `json:"name"`

	// source units and imports
	AbsolutePath  string        `json:"absolutePath"`
	File          string        `json:"file"`
	UnitAlias     string        `json:"unitAlias"`
	SymbolAliases []symbolAlias `json:"symbolAliases"`
	Literals      []string      `json:"literals"`
	Nodes         []*jsonNode   `json:"nodes"`

	// contracts
	ContractKind  string      `json:"contractKind"`
	Abstract      bool        `json:"abstract"`
	BaseContracts []*jsonNode `json:"baseContracts"`
	BaseName      *jsonNode   `json:"baseName"`
	LibraryName   *jsonNode   `json:"libraryName"`

	// declarations
	Kind             string          `json:"kind"`
	Parameters       json.RawMessage `json:"parameters"`
	ReturnParameters *jsonNode       `json:"returnParameters"`
	Modifiers        []*jsonNode     `json:"modifiers"`
	ModifierName     *jsonNode       `json:"modifierName"`
	Visibility       string          `json:"visibility"`
	StateMutability  string          `json:"stateMutability"`
	Virtual          bool            `json:"virtual"`
	Overrides        json.RawMessage `json:"overrides"`
	Body             *jsonNode       `json:"body"`
	TypeName         json.RawMessage `json:"typeName"`
	StorageLocation  string          `json:"storageLocation"`
	Constant         bool            `json:"constant"`
	Mutability       string          `json:"mutability"`
	Indexed          bool            `json:"indexed"`
	StateVariable    bool            `json:"stateVariable"`
	Value            json.RawMessage `json:"value"`
	Anonymous        bool            `json:"anonymous"`
	Members          []*jsonNode     `json:"members"`
	UnderlyingType   *jsonNode       `json:"underlyingType"`

	// type names
	PathNode             *jsonNode `json:"pathNode"`
	NamePath             string    `json:"namePath"`
	BaseType             *jsonNode `json:"baseType"`
	Length               *jsonNode `json:"length"`
	KeyType              *jsonNode `json:"keyType"`
	ValueType            *jsonNode `json:"valueType"`
	ParameterTypes       *jsonNode `json:"parameterTypes"`
	ReturnParameterTypes *jsonNode `json:"returnParameterTypes"`

	// statements
	Statements               []*jsonNode `json:"statements"`
	Expression               *jsonNode   `json:"expression"`
	Declarations             []*jsonNode `json:"declarations"`
	InitialValue             *jsonNode   `json:"initialValue"`
	Condition                *jsonNode   `json:"condition"`
	TrueBody                 *jsonNode   `json:"trueBody"`
	FalseBody                *jsonNode   `json:"falseBody"`
	InitializationExpression *jsonNode   `json:"initializationExpression"`
	LoopExpression           *jsonNode   `json:"loopExpression"`
	EventCall                *jsonNode   `json:"eventCall"`
	ErrorCall                *jsonNode   `json:"errorCall"`
	ExternalCall             *jsonNode   `json:"externalCall"`
	Clauses                  []*jsonNode `json:"clauses"`
	ErrorName                string      `json:"errorName"`
	Block                    *jsonNode   `json:"block"`

	// expressions
	Arguments       []*jsonNode `json:"arguments"`
	Names           []string    `json:"names"`
	Options         []*jsonNode `json:"options"`
	MemberName      string      `json:"memberName"`
	BaseExpression  *jsonNode   `json:"baseExpression"`
	IndexExpression *jsonNode   `json:"indexExpression"`
	StartExpression *jsonNode   `json:"startExpression"`
	EndExpression   *jsonNode   `json:"endExpression"`
	Subdenomination string      `json:"subdenomination"`
	Operator        string      `json:"operator"`
	Prefix          bool        `json:"prefix"`
	SubExpression   *jsonNode   `json:"subExpression"`
	LeftExpression  *jsonNode   `json:"leftExpression"`
	RightExpression *jsonNode   `json:"rightExpression"`
	LeftHandSide    *jsonNode   `json:"leftHandSide"`
	RightHandSide   *jsonNode   `json:"rightHandSide"`
	TrueExpression  *jsonNode   `json:"trueExpression"`
	FalseExpression *jsonNode   `json:"falseExpression"`
	Components      []*jsonNode `json:"components"`
	IsInlineArray   bool        `json:"isInlineArray"`
}

type symbolAlias struct {
	Foreign *jsonNode `json:"foreign"`
	Local   string    `json:"local"`
}

const headerMark = "======="

// SplitOutput splits the text printed by `solc --ast-compact-json` into one
// JSON document per source, keyed by the source name in its header.
func SplitOutput(out []byte) map[string][]byte {
	docs := make(map[string][]byte)
	var name string
	var buf bytes.Buffer
	flush := func() {
		if name != "" {
			docs[name] = bytes.TrimSpace(append([]byte(nil), buf.Bytes()...))
		}
		buf.Reset()
	}
	for _, line := range bytes.Split(out, []byte("\n")) {
		trimmed := strings.TrimSpace(string(line))
		if strings.HasPrefix(trimmed, headerMark) && strings.HasSuffix(trimmed, headerMark) && len(trimmed) > 2*len(headerMark) {
			flush()
			name = strings.TrimSpace(trimmed[len(headerMark) : len(trimmed)-len(headerMark)])
			continue
		}
		if name != "" {
			buf.Write(line)
			buf.WriteByte('\n')
		}
	}
	flush()
	return docs
}

// DecodeOutput picks the syntax tree of filePath out of the compiler
// output and converts it. content is the file's text.
func DecodeOutput(out []byte, filePath string, content []byte) (*ast.SourceUnit, error) {
	docs := SplitOutput(out)
	if len(docs) == 0 {
		// Single-source output without headers.
		if i := bytes.IndexByte(out, '{'); i >= 0 {
			return Decode(out[i:], filePath, content)
		}
		return nil, fmt.Errorf("no syntax tree in solc output for %s", filePath)
	}

	names := make([]string, 0, len(docs))
	for n := range docs {
		names = append(names, n)
	}
	sort.Strings(names)

	want := filepath.ToSlash(filepath.Clean(filePath))
	for _, n := range names {
		if n == want || strings.HasSuffix(want, "/"+n) || strings.HasSuffix(n, "/"+want) {
			return Decode(docs[n], filePath, content)
		}
	}
	if len(names) == 1 {
		return Decode(docs[names[0]], filePath, content)
	}
	return nil, fmt.Errorf("solc output has no source named %s (have %s)", filePath, strings.Join(names, ", "))
}

// Decode converts one compact JSON SourceUnit into the shared syntax tree.
func Decode(doc []byte, filePath string, content []byte) (*ast.SourceUnit, error) {
	var root jsonNode
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("decode solc syntax tree: %w", err)
	}
	if root.NodeType != "SourceUnit" {
		return nil, fmt.Errorf("decode solc syntax tree: root is %q, want SourceUnit", root.NodeType)
	}
	d := &decoder{lines: lineStarts(content)}
	unit := &ast.SourceUnit{Position: d.pos(root.Src), Path: filePath}
	for _, n := range root.Nodes {
		if node := d.sourcePart(n); node != nil {
			unit.Nodes = append(unit.Nodes, node)
		}
	}
	return unit, d.err
}

type decoder struct {
	lines []int
	err   error
}

func lineStarts(content []byte) []int {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// pos maps a "offset:length:index" source range to a line and column.
func (d *decoder) pos(src string) ast.Position {
	off, _, _ := strings.Cut(src, ":")
	n, err := strconv.Atoi(off)
	if err != nil || n < 0 {
		return ast.Position{}
	}
	line := sort.Search(len(d.lines), func(i int) bool { return d.lines[i] > n })
	return ast.Position{Line: line, Column: n - d.lines[line-1] + 1}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) sourcePart(n *jsonNode) ast.Node {
	if n == nil {
		return nil
	}
	switch n.NodeType {
	case "PragmaDirective":
		p := &ast.PragmaDirective{Position: d.pos(n.Src)}
		if len(n.Literals) > 0 {
			p.Name = n.Literals[0]
			p.Value = strings.Join(n.Literals[1:], "")
		}
		return p
	case "ImportDirective":
		imp := &ast.ImportDirective{Position: d.pos(n.Src), Path: n.File, UnitAlias: n.UnitAlias}
		for _, s := range n.SymbolAliases {
			sym := ast.ImportSymbol{Alias: s.Local}
			if s.Foreign != nil {
				sym.Name = s.Foreign.Name
			}
			imp.Symbols = append(imp.Symbols, sym)
		}
		return imp
	case "ContractDefinition":
		return d.contract(n)
	}
	return d.contractPart(n)
}

func (d *decoder) contract(n *jsonNode) *ast.ContractDefinition {
	c := &ast.ContractDefinition{
		Position: d.pos(n.Src),
		Name:     n.Name,
		Kind:     ast.ContractKind(n.ContractKind),
		Abstract: n.Abstract,
	}
	for _, b := range n.BaseContracts {
		spec := &ast.InheritanceSpecifier{Position: d.pos(b.Src), Name: pathName(b.BaseName)}
		spec.Args = d.exprs(b.Arguments)
		c.Bases = append(c.Bases, spec)
	}
	for _, m := range n.Nodes {
		if node := d.contractPart(m); node != nil {
			c.Nodes = append(c.Nodes, node)
		}
	}
	return c
}

// pathName reads the name of an IdentifierPath or UserDefinedTypeName.
func pathName(n *jsonNode) string {
	switch {
	case n == nil:
		return ""
	case n.PathNode != nil:
		return n.PathNode.Name
	case n.NamePath != "":
		return n.NamePath
	}
	return n.Name
}

func (d *decoder) contractPart(n *jsonNode) ast.Node {
	if n == nil {
		return nil
	}
	pos := d.pos(n.Src)
	switch n.NodeType {
	case "FunctionDefinition":
		fn := &ast.FunctionDefinition{
			Position:        pos,
			Name:            n.Name,
			Kind:            ast.FunctionKind(n.Kind),
			Params:          d.params(n.Parameters),
			Visibility:      n.Visibility,
			StateMutability: n.StateMutability,
			Virtual:         n.Virtual,
			Override:        len(n.Overrides) > 0 && string(n.Overrides) != "null",
			Body:            d.block(n.Body),
		}
		if fn.Kind == "" {
			fn.Kind = ast.FuncFunction
		}
		if n.ReturnParameters != nil {
			fn.Returns = d.vars(n.ReturnParameters.Parameters)
		}
		for _, m := range n.Modifiers {
			inv := &ast.ModifierInvocation{
				Position: d.pos(m.Src),
				Name:     pathName(m.ModifierName),
				Args:     d.exprs(m.Arguments),
				HasArgs:  m.Arguments != nil,
			}
			fn.Modifiers = append(fn.Modifiers, inv)
		}
		return fn
	case "ModifierDefinition":
		return &ast.ModifierDefinition{
			Position: pos,
			Name:     n.Name,
			Params:   d.params(n.Parameters),
			Virtual:  n.Virtual,
			Body:     d.block(n.Body),
		}
	case "EventDefinition":
		return &ast.EventDefinition{Position: pos, Name: n.Name, Params: d.params(n.Parameters), Anonymous: n.Anonymous}
	case "ErrorDefinition":
		return &ast.ErrorDefinition{Position: pos, Name: n.Name, Params: d.params(n.Parameters)}
	case "StructDefinition":
		s := &ast.StructDefinition{Position: pos, Name: n.Name}
		for _, m := range n.Members {
			s.Members = append(s.Members, d.variable(m))
		}
		return s
	case "EnumDefinition":
		e := &ast.EnumDefinition{Position: pos, Name: n.Name}
		for _, m := range n.Members {
			e.Values = append(e.Values, m.Name)
		}
		return e
	case "UserDefinedValueTypeDefinition":
		return &ast.UserDefinedValueType{Position: pos, Name: n.Name, Underlying: d.typeName(n.UnderlyingType)}
	case "UsingForDirective":
		return &ast.UsingForDirective{Position: pos, Library: pathName(n.LibraryName), Type: d.rawType(n.TypeName)}
	case "VariableDeclaration":
		return d.variable(n)
	}
	return nil
}

// params decodes a "parameters" field holding a ParameterList node.
func (d *decoder) params(raw json.RawMessage) []*ast.VariableDeclaration {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list jsonNode
	if err := json.Unmarshal(raw, &list); err != nil {
		d.fail("decode parameter list: %w", err)
		return nil
	}
	return d.vars(list.Parameters)
}

// vars decodes a "parameters" field holding an array of declarations.
func (d *decoder) vars(raw json.RawMessage) []*ast.VariableDeclaration {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var nodes []*jsonNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		d.fail("decode parameters: %w", err)
		return nil
	}
	out := make([]*ast.VariableDeclaration, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.variable(n))
	}
	return out
}

func (d *decoder) variable(n *jsonNode) *ast.VariableDeclaration {
	if n == nil {
		return nil
	}
	v := &ast.VariableDeclaration{
		Position:   d.pos(n.Src),
		Name:       n.Name,
		Type:       d.rawType(n.TypeName),
		Visibility: n.Visibility,
		Constant:   n.Constant || n.Mutability == "constant",
		Immutable:  n.Mutability == "immutable",
		Indexed:    n.Indexed,
		StateVar:   n.StateVariable,
	}
	if n.StorageLocation != "" && n.StorageLocation != "default" {
		v.Location = n.StorageLocation
	}
	if len(n.Value) > 0 && n.Value[0] == '{' {
		var val jsonNode
		if err := json.Unmarshal(n.Value, &val); err != nil {
			d.fail("decode initial value of %s: %w", n.Name, err)
		} else {
			v.Value = d.expr(&val)
		}
	}
	return v
}

// rawType decodes a "typeName" field, which older compilers emit as a bare
// string.
func (d *decoder) rawType(raw json.RawMessage) ast.TypeName {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			d.fail("decode type name: %w", err)
			return nil
		}
		return &ast.ElementaryTypeName{Name: name}
	}
	var n jsonNode
	if err := json.Unmarshal(raw, &n); err != nil {
		d.fail("decode type name: %w", err)
		return nil
	}
	return d.typeName(&n)
}

func (d *decoder) typeName(n *jsonNode) ast.TypeName {
	if n == nil {
		return nil
	}
	pos := d.pos(n.Src)
	switch n.NodeType {
	case "ElementaryTypeName":
		return &ast.ElementaryTypeName{Position: pos, Name: n.Name, Payable: n.StateMutability == "payable"}
	case "UserDefinedTypeName", "IdentifierPath":
		return &ast.UserDefinedTypeName{Position: pos, NamePath: pathName(n)}
	case "ArrayTypeName":
		return &ast.ArrayTypeName{Position: pos, Base: d.typeName(n.BaseType), Length: d.expr(n.Length)}
	case "Mapping":
		return &ast.Mapping{Position: pos, Key: d.typeName(n.KeyType), Value: d.typeName(n.ValueType)}
	case "FunctionTypeName":
		f := &ast.FunctionTypeName{Position: pos, Visibility: n.Visibility, StateMutability: n.StateMutability}
		if n.ParameterTypes != nil {
			f.Params = d.vars(n.ParameterTypes.Parameters)
		}
		if n.ReturnParameterTypes != nil {
			f.Returns = d.vars(n.ReturnParameterTypes.Parameters)
		}
		return f
	}
	d.fail("unsupported type name node %q", n.NodeType)
	return nil
}

// --- statements ---

func (d *decoder) block(n *jsonNode) *ast.Block {
	if n == nil {
		return nil
	}
	b := &ast.Block{Position: d.pos(n.Src), Unchecked: n.NodeType == "UncheckedBlock"}
	for _, s := range n.Statements {
		if st := d.stmt(s); st != nil {
			b.Statements = append(b.Statements, st)
		}
	}
	return b
}

func (d *decoder) stmt(n *jsonNode) ast.Statement {
	if n == nil {
		return nil
	}
	pos := d.pos(n.Src)
	switch n.NodeType {
	case "Block", "UncheckedBlock":
		return d.block(n)
	case "ExpressionStatement":
		return &ast.ExpressionStatement{Position: pos, Expr: d.expr(n.Expression)}
	case "VariableDeclarationStatement":
		s := &ast.VariableDeclarationStatement{Position: pos, Init: d.expr(n.InitialValue)}
		for _, decl := range n.Declarations {
			s.Decls = append(s.Decls, d.variable(decl))
		}
		return s
	case "IfStatement":
		return &ast.IfStatement{Position: pos, Cond: d.expr(n.Condition), Then: d.stmt(n.TrueBody), Else: d.stmt(n.FalseBody)}
	case "ForStatement":
		s := &ast.ForStatement{Position: pos, Init: d.stmt(n.InitializationExpression), Cond: d.expr(n.Condition), Body: d.stmt(n.Body)}
		if n.LoopExpression != nil {
			s.Post = d.expr(n.LoopExpression.Expression)
		}
		return s
	case "WhileStatement":
		return &ast.WhileStatement{Position: pos, Cond: d.expr(n.Condition), Body: d.stmt(n.Body)}
	case "DoWhileStatement":
		return &ast.DoWhileStatement{Position: pos, Body: d.stmt(n.Body), Cond: d.expr(n.Condition)}
	case "Return":
		return &ast.ReturnStatement{Position: pos, Expr: d.expr(n.Expression)}
	case "EmitStatement":
		return &ast.EmitStatement{Position: pos, Call: d.expr(n.EventCall)}
	case "RevertStatement":
		return &ast.RevertStatement{Position: pos, Call: d.expr(n.ErrorCall)}
	case "TryStatement":
		s := &ast.TryStatement{Position: pos, Call: d.expr(n.ExternalCall)}
		for i, c := range n.Clauses {
			if i == 0 {
				s.Returns = d.params(c.Parameters)
				s.Body = d.block(c.Block)
				continue
			}
			s.Catches = append(s.Catches, &ast.CatchClause{
				Position: d.pos(c.Src),
				Name:     c.ErrorName,
				Params:   d.params(c.Parameters),
				Body:     d.block(c.Block),
			})
		}
		return s
	case "InlineAssembly":
		return &ast.InlineAssembly{Position: pos}
	case "PlaceholderStatement":
		return &ast.PlaceholderStatement{Position: pos}
	case "Break":
		return &ast.BreakStatement{Position: pos}
	case "Continue":
		return &ast.ContinueStatement{Position: pos}
	case "Throw":
		return &ast.ThrowStatement{Position: pos}
	}
	d.fail("unsupported statement node %q", n.NodeType)
	return nil
}

// --- expressions ---

func (d *decoder) exprs(ns []*jsonNode) []ast.Expression {
	if len(ns) == 0 {
		return nil
	}
	out := make([]ast.Expression, 0, len(ns))
	for _, n := range ns {
		out = append(out, d.expr(n))
	}
	return out
}

func (d *decoder) expr(n *jsonNode) ast.Expression {
	if n == nil {
		return nil
	}
	pos := d.pos(n.Src)
	switch n.NodeType {
	case "Identifier":
		return &ast.Identifier{Position: pos, Name: n.Name}
	case "MemberAccess":
		return &ast.MemberAccess{Position: pos, Expr: d.expr(n.Expression), Member: n.MemberName}
	case "IndexAccess":
		return &ast.IndexAccess{Position: pos, Base: d.expr(n.BaseExpression), Index: d.expr(n.IndexExpression)}
	case "IndexRangeAccess":
		return &ast.IndexRangeAccess{Position: pos, Base: d.expr(n.BaseExpression), Start: d.expr(n.StartExpression), End: d.expr(n.EndExpression)}
	case "FunctionCall":
		return &ast.FunctionCall{Position: pos, Expr: d.expr(n.Expression), Args: d.exprs(n.Arguments), Names: n.Names}
	case "FunctionCallOptions":
		return &ast.FunctionCallOptions{Position: pos, Expr: d.expr(n.Expression), Names: n.Names, Options: d.exprs(n.Options)}
	case "NewExpression":
		return &ast.NewExpression{Position: pos, Type: d.rawType(n.TypeName)}
	case "ElementaryTypeNameExpression":
		t, _ := d.rawType(n.TypeName).(*ast.ElementaryTypeName)
		if t == nil {
			t = &ast.ElementaryTypeName{Position: pos}
		}
		return &ast.ElementaryTypeNameExpression{Position: pos, Type: t}
	case "Literal":
		lit := &ast.Literal{Position: pos, Kind: n.Kind, Subdenomination: n.Subdenomination}
		if len(n.Value) > 0 && n.Value[0] == '"' {
			_ = json.Unmarshal(n.Value, &lit.Value)
		}
		if lit.Kind == "bool" {
			lit.Kind = ast.LitBool
		}
		return lit
	case "UnaryOperation":
		return &ast.UnaryOperation{Position: pos, Op: n.Operator, Prefix: n.Prefix, Sub: d.expr(n.SubExpression)}
	case "BinaryOperation":
		return &ast.BinaryOperation{Position: pos, Op: n.Operator, Left: d.expr(n.LeftExpression), Right: d.expr(n.RightExpression)}
	case "Assignment":
		return &ast.Assignment{Position: pos, Op: n.Operator, Left: d.expr(n.LeftHandSide), Right: d.expr(n.RightHandSide)}
	case "Conditional":
		return &ast.Conditional{Position: pos, Cond: d.expr(n.Condition), True: d.expr(n.TrueExpression), False: d.expr(n.FalseExpression)}
	case "TupleExpression":
		t := &ast.TupleExpression{Position: pos, IsArray: n.IsInlineArray}
		for _, c := range n.Components {
			t.Components = append(t.Components, d.expr(c))
		}
		return t
	}
	d.fail("unsupported expression node %q", n.NodeType)
	return nil
}
