package callgraph

import (
	"testing"

	"github.com/obernardovieira/solvis/internal/ast"
)

func TestSelectorOf(t *testing.T) {
	tests := []struct {
		sig, want string
	}{
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"balanceOf(address)", "0x70a08231"},
		{"approve(address,uint256)", "0x095ea7b3"},
		{"totalSupply()", "0x18160ddd"},
		{"transferFrom(address,address,uint256)", "0x23b872dd"},
	}
	for _, tt := range tests {
		if got := SelectorOf(tt.sig); got != tt.want {
			t.Errorf("SelectorOf(%s) = %s, want %s", tt.sig, got, tt.want)
		}
	}
}

func TestSelectorCanonicalizesParams(t *testing.T) {
	param := func(typ ast.TypeName) *ast.VariableDeclaration {
		return &ast.VariableDeclaration{Type: typ}
	}
	isContract := func(name string) bool { return name == "IERC20" }

	// transfer(IERC20 to, uint amount) hashes as transfer(address,uint256).
	params := []*ast.VariableDeclaration{
		param(&ast.UserDefinedTypeName{NamePath: "IERC20"}),
		param(&ast.ElementaryTypeName{Name: "uint"}),
	}
	if got := Selector("transfer", params, isContract); got != "0xa9059cbb" {
		t.Errorf("Selector = %s, want 0xa9059cbb", got)
	}

	tests := []struct {
		typ  ast.TypeName
		want string
	}{
		{&ast.ElementaryTypeName{Name: "int"}, "int256"},
		{&ast.ElementaryTypeName{Name: "byte"}, "bytes1"},
		{&ast.ElementaryTypeName{Name: "bytes32"}, "bytes32"},
		{&ast.UserDefinedTypeName{NamePath: "lib.IERC20"}, "address"},
		{&ast.UserDefinedTypeName{NamePath: "Lib.Pos"}, "Lib.Pos"},
		{&ast.ArrayTypeName{Base: &ast.ElementaryTypeName{Name: "uint"}}, "uint256[]"},
		{&ast.ArrayTypeName{Base: &ast.UserDefinedTypeName{NamePath: "IERC20"}, Length: &ast.Literal{Value: "3"}}, "address[3]"},
		{&ast.FunctionTypeName{}, "function"},
	}
	for _, tt := range tests {
		if got := CanonicalType(tt.typ, isContract); got != tt.want {
			t.Errorf("CanonicalType(%s) = %s, want %s", ast.TypeString(tt.typ), got, tt.want)
		}
	}
}

func TestSignatureID(t *testing.T) {
	if got := SignatureID("Vault", "deposit", []string{"uint256", "address[]"}); got != "Vault:deposit:uint256:address[]" {
		t.Errorf("got %s", got)
	}
	if got := SignatureID("Vault", "pause", nil); got != "Vault:pause" {
		t.Errorf("got %s", got)
	}
}
