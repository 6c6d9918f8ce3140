package ast

import "strings"

// TypeString renders a type name the way it is written in source, without
// data locations. Elementary and user-defined types render as their name;
// compound types render structurally, e.g. `uint256[]` or
// `mapping(address => uint256)`.
func TypeString(t TypeName) string {
	switch t := t.(type) {
	case *ElementaryTypeName:
		return t.Name
	case *UserDefinedTypeName:
		return t.NamePath
	case *ArrayTypeName:
		length := ""
		if lit, ok := t.Length.(*Literal); ok {
			length = lit.Value
		} else if id, ok := t.Length.(*Identifier); ok {
			length = id.Name
		}
		return TypeString(t.Base) + "[" + length + "]"
	case *Mapping:
		return "mapping(" + TypeString(t.Key) + " => " + TypeString(t.Value) + ")"
	case *FunctionTypeName:
		params := make([]string, 0, len(t.Params))
		for _, p := range t.Params {
			params = append(params, TypeString(p.Type))
		}
		return "function(" + strings.Join(params, ",") + ")"
	}
	return ""
}

// IsElementaryTypeName reports whether name is a built-in Solidity type.
func IsElementaryTypeName(name string) bool {
	switch name {
	case "address", "bool", "string", "bytes", "byte", "int", "uint",
		"fixed", "ufixed", "var":
		return true
	}
	for _, prefix := range []string{"uint", "int", "bytes"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return rest != "" && isDigits(rest)
		}
	}
	for _, prefix := range []string{"ufixed", "fixed"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			m, n, found := strings.Cut(rest, "x")
			return found && isDigits(m) && isDigits(n)
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
