package callgraph

import (
	"fmt"
	"path/filepath"

	"github.com/obernardovieira/solvis/internal/ast"
	"github.com/obernardovieira/solvis/internal/parser"
)

// Analyzer runs the profiling and extraction passes. It caches parsed
// files, so one Analyzer should not outlive the source files it has read.
type Analyzer struct {
	parser parser.Parser
	paths  *PathResolver
	units  map[string]*ast.SourceUnit
}

// NewAnalyzer creates an Analyzer parsing with p and resolving imports with
// paths.
func NewAnalyzer(p parser.Parser, paths *PathResolver) *Analyzer {
	if paths == nil {
		paths = NewPathResolver("")
	}
	return &Analyzer{parser: p, paths: paths, units: make(map[string]*ast.SourceUnit)}
}

// Reset drops cached syntax trees.
func (a *Analyzer) Reset() {
	a.units = make(map[string]*ast.SourceUnit)
}

func (a *Analyzer) parse(file string) (*ast.SourceUnit, error) {
	if u, ok := a.units[file]; ok {
		return u, nil
	}
	u, err := parser.ParsePath(a.parser, file)
	if err != nil {
		return nil, err
	}
	a.units[file] = u
	return u, nil
}

// importPaths resolves every import directive of unit in order.
func (a *Analyzer) importPaths(unit *ast.SourceUnit, file string) ([]string, error) {
	var out []string
	for _, n := range unit.Nodes {
		imp, ok := n.(*ast.ImportDirective)
		if !ok {
			continue
		}
		p, err := a.paths.Resolve(imp.Path, file)
		if err != nil {
			return nil, fmt.Errorf("resolve import %q in %s: %w", imp.Path, file, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ProfileState is the registry set filled by Profile. Visited, Ignore and
// ContractNames belong to one entry file; Variables is shared by all.
type ProfileState struct {
	Visited       NameSet
	Ignore        NameSet
	ContractNames NameSet
	Variables     *VariableTypeRegistry
}

// NewProfileState returns empty per-entry registries around a shared
// variable registry.
func NewProfileState(vars *VariableTypeRegistry) *ProfileState {
	if vars == nil {
		vars = NewVariableTypeRegistry()
	}
	return &ProfileState{
		Visited:       NewNameSet(),
		Ignore:        NewNameSet(),
		ContractNames: NewNameSet(),
		Variables:     vars,
	}
}

// Profile records contract names, ignorable names and variable types for
// file and, recursively, every file it imports.
func (a *Analyzer) Profile(file string, st *ProfileState) error {
	file, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	st.Visited.Add(file)
	return a.profile(file, st)
}

func (a *Analyzer) profile(file string, st *ProfileState) error {
	unit, err := a.parse(file)
	if err != nil {
		return err
	}

	// Contract names first, so declarations below are attributed to a
	// known contract regardless of traversal order.
	for _, n := range unit.Nodes {
		if c, ok := n.(*ast.ContractDefinition); ok {
			st.ContractNames.Add(c.Name)
		}
	}

	for _, n := range unit.Nodes {
		switch n := n.(type) {
		case *ast.ImportDirective:
			path, err := a.paths.Resolve(n.Path, file)
			if err != nil {
				return fmt.Errorf("resolve import %q in %s: %w", n.Path, file, err)
			}
			if st.Visited.Has(path) {
				continue
			}
			st.Visited.Add(path)
			if err := a.profile(path, st); err != nil {
				return err
			}
		case *ast.ContractDefinition:
			profileDecls(n, n.Name, st)
		default:
			profileDecls(n, "", st)
		}
	}
	return nil
}

// profileDecls attributes every declaration under n to contract.
func profileDecls(n ast.Node, contract string, st *ProfileState) {
	ast.Visit(n, ast.Handlers{
		VariableDeclaration: func(v *ast.VariableDeclaration) {
			if v.Name != "" {
				st.Variables.Add(contract, v.Name, ast.TypeString(v.Type))
			}
		},
		EventDefinition: func(e *ast.EventDefinition) {
			st.Ignore.Add(e.Name)
		},
		StructDefinition: func(s *ast.StructDefinition) {
			st.Ignore.Add(s.Name)
		},
		ErrorDefinition: func(e *ast.ErrorDefinition) {
			st.Ignore.Add(e.Name)
		},
	})
}
