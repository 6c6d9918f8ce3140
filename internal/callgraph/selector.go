package callgraph

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/obernardovieira/solvis/internal/ast"
)

// Selector returns the 4-byte ABI selector of a function, hex encoded with
// a 0x prefix. isContract reports whether a user-defined type name refers
// to a contract or interface, which the ABI encodes as address.
func Selector(name string, params []*ast.VariableDeclaration, isContract func(string) bool) string {
	types := make([]string, 0, len(params))
	for _, p := range params {
		types = append(types, CanonicalType(p.Type, isContract))
	}
	return SelectorOf(name + "(" + strings.Join(types, ",") + ")")
}

// SelectorOf hashes a canonical signature such as `transfer(address,uint256)`.
func SelectorOf(signature string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(signature))[:4])
}

// CanonicalType renders a parameter type the way the ABI spells it.
func CanonicalType(t ast.TypeName, isContract func(string) bool) string {
	switch t := t.(type) {
	case *ast.ElementaryTypeName:
		switch t.Name {
		case "uint":
			return "uint256"
		case "int":
			return "int256"
		case "byte":
			return "bytes1"
		case "fixed":
			return "fixed128x18"
		case "ufixed":
			return "ufixed128x18"
		}
		return t.Name
	case *ast.UserDefinedTypeName:
		name := t.NamePath
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if isContract != nil && isContract(name) {
			return "address"
		}
		return t.NamePath
	case *ast.ArrayTypeName:
		length := ""
		if lit, ok := t.Length.(*ast.Literal); ok {
			length = lit.Value
		}
		return CanonicalType(t.Base, isContract) + "[" + length + "]"
	case *ast.FunctionTypeName:
		return "function"
	}
	return ast.TypeString(t)
}
