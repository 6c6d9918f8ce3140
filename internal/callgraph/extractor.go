package callgraph

import (
	"path/filepath"
	"strings"

	"github.com/obernardovieira/solvis/internal/ast"
)

// builtinCalls are language built-ins that never become call edges.
var builtinCalls = NewNameSet("require", "assert", "revert")

// ExtractState is the state threaded through one entry file's extraction.
type ExtractState struct {
	Visited       NameSet
	Ignore        NameSet
	ContractNames NameSet
}

// NewExtractState starts an extraction using the names gathered by a
// profiling pass.
func NewExtractState(p *ProfileState) *ExtractState {
	return &ExtractState{
		Visited:       NewNameSet(),
		Ignore:        p.Ignore,
		ContractNames: p.ContractNames,
	}
}

// Extract returns the records of every contract reachable from file,
// dependencies first.
func (a *Analyzer) Extract(file string, st *ExtractState) ([]*ContractRecord, error) {
	file, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	st.Visited.Add(file)
	return a.extract(file, st)
}

func (a *Analyzer) extract(file string, st *ExtractState) ([]*ContractRecord, error) {
	unit, err := a.parse(file)
	if err != nil {
		return nil, err
	}
	imports, err := a.importPaths(unit, file)
	if err != nil {
		return nil, err
	}
	aliases := importAliases(unit)

	var acc []*ContractRecord
	follow := func(path string) error {
		if st.Visited.Has(path) {
			return nil
		}
		st.Visited.Add(path)
		recs, err := a.extract(path, st)
		if err != nil {
			return err
		}
		acc = append(acc, recs...)
		return nil
	}

	var contracts []*ast.ContractDefinition
	for _, n := range unit.Nodes {
		if c, ok := n.(*ast.ContractDefinition); ok {
			contracts = append(contracts, c)
		}
	}
	records := make([]*ContractRecord, len(contracts))
	for i, c := range contracts {
		records[i] = &ContractRecord{
			Name:        c.Name,
			Kind:        contractKind(c),
			FilePath:    file,
			Line:        c.Line,
			BaseNames:   []string{},
			ImportPaths: append([]string{}, imports...),
			Functions:   []*FunctionRecord{},
		}
	}

	// Functions. Constructor modifiers name base contracts whose files
	// must be extracted even without an inheritance clause.
	for i, c := range contracts {
		for _, n := range c.Nodes {
			fn, ok := n.(*ast.FunctionDefinition)
			if !ok {
				continue
			}
			if fn.Kind == ast.FuncConstructor {
				for _, m := range fn.Modifiers {
					if path, ok := locateImport(imports, baseName(m.Name, aliases)); ok {
						if err := follow(path); err != nil {
							return nil, err
						}
					}
				}
				continue
			}
			records[i].Functions = append(records[i].Functions, st.functionRecord(c.Name, fn))
		}
	}

	// Inheritance.
	for i, c := range contracts {
		for _, b := range c.Bases {
			name := baseName(b.Name, aliases)
			if path, ok := locateImport(imports, name); ok {
				if err := follow(path); err != nil {
					return nil, err
				}
			}
			records[i].BaseNames = append(records[i].BaseNames, name)
		}
	}

	// Imports not reached through a constructor or a base.
	for _, p := range imports {
		if err := follow(p); err != nil {
			return nil, err
		}
	}

	return append(acc, records...), nil
}

func contractKind(c *ast.ContractDefinition) string {
	if c.Abstract {
		return "abstract"
	}
	return string(c.Kind)
}

// importAliases maps `{Name as Alias}` aliases back to Name.
func importAliases(unit *ast.SourceUnit) map[string]string {
	aliases := make(map[string]string)
	for _, n := range unit.Nodes {
		imp, ok := n.(*ast.ImportDirective)
		if !ok {
			continue
		}
		for _, s := range imp.Symbols {
			if s.Alias != "" {
				aliases[s.Alias] = s.Name
			}
		}
	}
	return aliases
}

// baseName reduces a possibly qualified, possibly aliased contract
// reference to the contract's declared name.
func baseName(ref string, aliases map[string]string) string {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		ref = ref[i+1:]
	}
	if orig, ok := aliases[ref]; ok {
		return orig
	}
	return ref
}

// SignatureID joins a contract, function and parameter types into a
// canonical identifier.
func SignatureID(contract, function string, paramTypes []string) string {
	parts := make([]string, 0, len(paramTypes)+2)
	parts = append(parts, contract, function)
	parts = append(parts, paramTypes...)
	return strings.Join(parts, ":")
}

func (st *ExtractState) functionRecord(contract string, fn *ast.FunctionDefinition) *FunctionRecord {
	types := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		types = append(types, ast.TypeString(p.Type))
	}
	rec := &FunctionRecord{
		Name:            fn.Name,
		SignatureID:     SignatureID(contract, fn.Name, types),
		ParamTypes:      types,
		Kind:            string(fn.Kind),
		Visibility:      fn.Visibility,
		StateMutability: fn.StateMutability,
		Line:            fn.Line,
		Calls:           []*CallRef{},
	}
	if fn.Name != "" && (fn.Kind == ast.FuncFunction || fn.Kind == ast.FuncFree) {
		rec.Selector = Selector(fn.Name, fn.Params, st.ContractNames.Has)
	}
	if fn.Body != nil {
		rec.Calls = st.collectCalls(fn)
	}
	return rec
}

func (st *ExtractState) collectCalls(fn *ast.FunctionDefinition) []*CallRef {
	sole := len(fn.Body.Statements) == 1
	calls := []*CallRef{}
	ast.Visit(fn.Body, ast.Handlers{
		FunctionCall: func(call *ast.FunctionCall) {
			if ref := st.callRef(fn.Name, sole, call); ref != nil {
				calls = append(calls, ref)
			}
		},
	})
	return calls
}

// callRef converts one call expression into a CallRef, or nil when the call
// must not be recorded.
func (st *ExtractState) callRef(fnName string, sole bool, call *ast.FunctionCall) *CallRef {
	callee := call.Expr
	if opts, ok := callee.(*ast.FunctionCallOptions); ok {
		callee = opts.Expr
	}

	ref := &CallRef{Args: callArgs(call.Args), Line: call.Line}
	switch c := callee.(type) {
	case *ast.Identifier:
		ref.CalleeName = c.Name
	case *ast.MemberAccess:
		if c.Member == "length" {
			return nil
		}
		switch recv := c.Expr.(type) {
		case *ast.IndexAccess, *ast.IndexRangeAccess:
			return nil
		case *ast.Identifier:
			// Calls on plain variables are not followed.
			if recv.Name != "super" && !st.ContractNames.Has(recv.Name) {
				return nil
			}
		}
		ref.CalleeName = c.Member
		ref.Member = true
		ref.Receiver = exprText(c.Expr)
	default:
		return nil
	}

	name := ref.CalleeName
	if name == "" || builtinCalls.Has(name) || st.Ignore.Has(name) || st.ContractNames.Has(name) {
		return nil
	}
	// A sole statement calling the function's own name, directly or as
	// super.f(), is a pass-through override.
	if sole && name == fnName {
		return nil
	}
	return ref
}

func callArgs(exprs []ast.Expression) []Arg {
	if len(exprs) == 0 {
		return nil
	}
	args := make([]Arg, 0, len(exprs))
	for _, e := range exprs {
		switch e := e.(type) {
		case *ast.Identifier:
			args = append(args, Arg{Kind: ArgIdentifier, Name: e.Name})
		case *ast.MemberAccess:
			args = append(args, Arg{Kind: ArgMemberAccess, Name: exprText(e.Expr), Member: e.Member})
		default:
			args = append(args, Arg{Kind: ArgOther})
		}
	}
	return args
}

// exprText renders simple expressions for display.
func exprText(e ast.Expression) string {
	switch e := e.(type) {
	case *ast.Identifier:
		return e.Name
	case *ast.MemberAccess:
		return exprText(e.Expr) + "." + e.Member
	case *ast.FunctionCall:
		return exprText(e.Expr) + "(...)"
	case *ast.FunctionCallOptions:
		return exprText(e.Expr)
	case *ast.IndexAccess:
		return exprText(e.Base) + "[...]"
	case *ast.ElementaryTypeNameExpression:
		if e.Type != nil {
			if e.Type.Payable {
				return "payable"
			}
			return e.Type.Name
		}
	case *ast.TupleExpression:
		if len(e.Components) == 1 {
			return exprText(e.Components[0])
		}
	case *ast.NewExpression:
		return "new " + ast.TypeString(e.Type)
	}
	return ""
}
