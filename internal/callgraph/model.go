// Package callgraph builds resolved inter-procedural call graphs for
// Solidity contracts.
//
// A run has three passes. Profile gathers variable types, ignored names and
// contract names across an entry file's import closure. Extract walks the
// same closure through constructors, inheritance and imports and records
// every function's raw outbound calls. Resolve turns each raw call into a
// canonical `Contract:function:ArgType...` identifier by searching the
// calling contract, then its bases, then its other imports.
package callgraph

import "strings"

// Unresolved is the ResolvedID of a call with no reachable target.
const Unresolved = "unresolved"

// ArgKind classifies a call argument for type inference.
type ArgKind int

const (
	ArgOther ArgKind = iota
	ArgIdentifier
	ArgMemberAccess
)

// Arg is one argument expression at a call site.
type Arg struct {
	Kind ArgKind `json:"kind"`
	// Name is the identifier, or the member access base for ArgMemberAccess.
	Name string `json:"name,omitempty"`
	// Member is the accessed member for ArgMemberAccess.
	Member string `json:"member,omitempty"`
}

// CallRef is one outbound call recorded inside a function body.
type CallRef struct {
	CalleeName string `json:"callee"`
	Args       []Arg  `json:"args,omitempty"`
	// Member is set for `obj.method(...)` calls; Receiver holds the text
	// of obj.
	Member   bool   `json:"member,omitempty"`
	Receiver string `json:"receiver,omitempty"`
	Line     int    `json:"line"`
	// ResolvedID is empty until resolution, then either a canonical
	// identifier or Unresolved.
	ResolvedID string `json:"resolved"`
}

// IsResolved reports whether the call was resolved to a target.
func (c *CallRef) IsResolved() bool {
	return c.ResolvedID != "" && c.ResolvedID != Unresolved
}

// FunctionRecord is one non-constructor function of a contract.
type FunctionRecord struct {
	Name            string     `json:"name"`
	SignatureID     string     `json:"signature"`
	ParamTypes      []string   `json:"paramTypes,omitempty"`
	Selector        string     `json:"selector,omitempty"`
	Kind            string     `json:"kind"`
	Visibility      string     `json:"visibility,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Line            int        `json:"line"`
	Calls           []*CallRef `json:"calls"`
}

// IsExternal reports whether the function is callable from outside its
// contract.
func (f *FunctionRecord) IsExternal() bool {
	return f.Visibility == "external" || f.Visibility == "public"
}

// ContractRecord is one contract, interface or library definition.
type ContractRecord struct {
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	FilePath    string            `json:"file"`
	Line        int               `json:"line"`
	BaseNames   []string          `json:"bases"`
	ImportPaths []string          `json:"imports"`
	Functions   []*FunctionRecord `json:"functions"`
}

// Function returns the first function named name.
func (c *ContractRecord) Function(name string) (*FunctionRecord, bool) {
	for _, f := range c.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// HasBase reports whether name is one of the contract's direct bases.
func (c *ContractRecord) HasBase(name string) bool {
	for _, b := range c.BaseNames {
		if b == name {
			return true
		}
	}
	return false
}

// NameSet is a set of identifiers.
type NameSet map[string]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s NameSet) Add(name string) { s[name] = struct{}{} }

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// VariableTypeRegistry maps contract name to variable name to declared type.
// Contracts keep their first insertion order so lookups across contracts
// are deterministic.
type VariableTypeRegistry struct {
	order []string
	vars  map[string]map[string]string
}

// NewVariableTypeRegistry returns an empty registry.
func NewVariableTypeRegistry() *VariableTypeRegistry {
	return &VariableTypeRegistry{vars: make(map[string]map[string]string)}
}

// Add records that variable name in contract has type typ. A later
// declaration of the same name in the same contract replaces the earlier.
func (r *VariableTypeRegistry) Add(contract, name, typ string) {
	m, ok := r.vars[contract]
	if !ok {
		m = make(map[string]string)
		r.vars[contract] = m
		r.order = append(r.order, contract)
	}
	m[name] = typ
}

// Lookup returns the type of the first variable called name, scanning
// contracts in insertion order.
func (r *VariableTypeRegistry) Lookup(name string) (string, bool) {
	for _, c := range r.order {
		if t, ok := r.vars[c][name]; ok {
			return t, true
		}
	}
	return "", false
}

// TypeOf returns the type of name declared in contract.
func (r *VariableTypeRegistry) TypeOf(contract, name string) (string, bool) {
	t, ok := r.vars[contract][name]
	return t, ok
}

// Contracts returns the registered contract names in insertion order.
func (r *VariableTypeRegistry) Contracts() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Universe is every contract reachable from one entry file, in extraction
// order (dependencies before dependents).
type Universe struct {
	EntryFile string            `json:"entry"`
	Contracts []*ContractRecord `json:"contracts"`

	byName map[string]*ContractRecord
	byFile map[string][]*ContractRecord
}

// NewUniverse indexes records by contract name and by file. When two
// records share a name the first one is kept in the name index.
func NewUniverse(entryFile string, records []*ContractRecord) *Universe {
	u := &Universe{
		EntryFile: entryFile,
		Contracts: records,
		byName:    make(map[string]*ContractRecord, len(records)),
		byFile:    make(map[string][]*ContractRecord),
	}
	for _, r := range records {
		if _, dup := u.byName[r.Name]; !dup {
			u.byName[r.Name] = r
		}
		u.byFile[r.FilePath] = append(u.byFile[r.FilePath], r)
	}
	return u
}

// Contract looks a record up by name.
func (u *Universe) Contract(name string) (*ContractRecord, bool) {
	r, ok := u.byName[name]
	return r, ok
}

// ContractsInFile returns the records extracted from path.
func (u *Universe) ContractsInFile(path string) []*ContractRecord {
	return u.byFile[path]
}

// Function finds the function a canonical identifier points at. Argument
// type segments are ignored when they do not match a declared overload.
func (u *Universe) Function(id string) (*ContractRecord, *FunctionRecord, bool) {
	parts := strings.Split(id, ":")
	if len(parts) < 2 {
		return nil, nil, false
	}
	c, ok := u.Contract(parts[0])
	if !ok {
		return nil, nil, false
	}
	var first *FunctionRecord
	for _, f := range c.Functions {
		if f.Name != parts[1] {
			continue
		}
		if f.SignatureID == id {
			return c, f, true
		}
		if first == nil {
			first = f
		}
	}
	return c, first, first != nil
}

// Stats summarises a universe.
type Stats struct {
	Contracts  int `json:"contracts"`
	Functions  int `json:"functions"`
	Calls      int `json:"calls"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// Stats counts records and calls.
func (u *Universe) Stats() Stats {
	var s Stats
	s.Contracts = len(u.Contracts)
	for _, c := range u.Contracts {
		s.Functions += len(c.Functions)
		for _, f := range c.Functions {
			for _, call := range f.Calls {
				s.Calls++
				if call.IsResolved() {
					s.Resolved++
				} else {
					s.Unresolved++
				}
			}
		}
	}
	return s
}
