package callgraph

import "strings"

// Resolve returns the canonical identifier of the function call targets
// when made from contract from, or Unresolved.
//
// The search looks at from's own functions, then each base in declaration
// order, then the other contracts declared in from's file, then each
// imported contract that is not a base. Within each step the last
// successful result wins. Argument type
// segments come from the call site: identifiers take the first type
// registered for that name in vars, `X.sender` is address and `X.value` is
// uint256.
func Resolve(u *Universe, vars *VariableTypeRegistry, from *ContractRecord, call *CallRef) string {
	if u == nil || from == nil || call == nil {
		return Unresolved
	}
	r := &resolution{u: u, vars: vars, call: call, onPath: NewNameSet()}
	return r.search(from)
}

type resolution struct {
	u      *Universe
	vars   *VariableTypeRegistry
	call   *CallRef
	onPath NameSet
}

func (r *resolution) search(c *ContractRecord) string {
	if r.onPath.Has(c.Name) {
		return Unresolved
	}
	r.onPath.Add(c.Name)
	defer delete(r.onPath, c.Name)

	if _, ok := c.Function(r.call.CalleeName); ok {
		return r.identifier(c.Name)
	}

	result := Unresolved
	for _, name := range c.BaseNames {
		base, ok := r.u.Contract(name)
		if !ok {
			continue
		}
		if id := r.search(base); id != Unresolved {
			result = id
		}
	}
	if result != Unresolved {
		return result
	}

	// Libraries and contracts declared next to c.
	result = r.searchFile(c, c.FilePath)
	if result != Unresolved {
		return result
	}

	for _, path := range c.ImportPaths {
		if id := r.searchFile(c, path); id != Unresolved {
			result = id
		}
	}
	return result
}

// searchFile searches every contract declared in path except c and its
// bases. The last successful result wins.
func (r *resolution) searchFile(c *ContractRecord, path string) string {
	result := Unresolved
	for _, other := range r.u.ContractsInFile(path) {
		if other == c || c.HasBase(other.Name) {
			continue
		}
		if id := r.search(other); id != Unresolved {
			result = id
		}
	}
	return result
}

func (r *resolution) identifier(contract string) string {
	parts := []string{contract, r.call.CalleeName}
	for _, a := range r.call.Args {
		switch a.Kind {
		case ArgIdentifier:
			t := ""
			if r.vars != nil {
				t, _ = r.vars.Lookup(a.Name)
			}
			parts = append(parts, t)
		case ArgMemberAccess:
			switch a.Member {
			case "sender":
				parts = append(parts, "address")
			case "value":
				parts = append(parts, "uint256")
			}
		}
	}
	return strings.Join(parts, ":")
}

// ResolveUniverse sets ResolvedID on every call in u and returns the number
// of calls left unresolved.
func ResolveUniverse(u *Universe, vars *VariableTypeRegistry) int {
	unresolved := 0
	for _, c := range u.Contracts {
		for _, f := range c.Functions {
			for _, call := range f.Calls {
				call.ResolvedID = Resolve(u, vars, c, call)
				if call.ResolvedID == Unresolved {
					unresolved++
				}
			}
		}
	}
	return unresolved
}
