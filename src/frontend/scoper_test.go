// Tests the cross-block reachability pass with hand built block lists, the
// same shape the parser feeds it: innermost blocks registered first.

package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
	"thrushc/src/util"
)

func varDecl(name string, line int) ir.Instruction {
	return ir.Instruction{Kind: ir.Var, Name: name, DataType: token.I32, Line: line}
}

func refVar(name string, line int) ir.Instruction {
	return ir.Instruction{Kind: ir.RefVar, Name: name, DataType: token.I32, Line: line}
}

// TestScoperNestedDeclarationUnreachable covers { { var y; } y }: the inner
// declaration must not leak into the outer block.
func TestScoperNestedDeclarationUnreachable(t *testing.T) {
	s := NewScoper()
	inner := []ir.Instruction{varDecl("y", 2)}
	outer := []ir.Instruction{
		{Kind: ir.Block, Stmts: inner},
		refVar("y", 3),
	}
	s.AddScope(inner)
	s.AddScope(outer)

	errs := s.Analyze()
	require.Len(t, errs, 1)
	assert.Equal(t, util.UnreachableVariable, errs[0].Kind)
}

// TestScoperEnclosingDeclarationReachable covers the healthy case: an
// enclosing declaration is visible to nested blocks.
func TestScoperEnclosingDeclarationReachable(t *testing.T) {
	s := NewScoper()
	inner := []ir.Instruction{refVar("y", 3)}
	outer := []ir.Instruction{
		varDecl("y", 1),
		{Kind: ir.Block, Stmts: inner},
	}
	s.AddScope(inner)
	s.AddScope(outer)

	assert.Empty(t, s.Analyze())
}

// TestScoperUseBeforeDeclarationLine verifies the source line rule: a
// declaration after the use is unreachable even when it encloses it.
func TestScoperUseBeforeDeclarationLine(t *testing.T) {
	s := NewScoper()
	inner := []ir.Instruction{refVar("y", 1)}
	outer := []ir.Instruction{
		{Kind: ir.Block, Stmts: inner},
		varDecl("y", 2),
	}
	s.AddScope(inner)
	s.AddScope(outer)

	errs := s.Analyze()
	require.Len(t, errs, 1)
	assert.Equal(t, util.UnreachableVariable, errs[0].Kind)
}

// TestScoperUndefinedVariable verifies a name that exists nowhere reports as
// undefined, not unreachable.
func TestScoperUndefinedVariable(t *testing.T) {
	s := NewScoper()
	s.AddScope([]ir.Instruction{refVar("ghost", 1)})

	errs := s.Analyze()
	require.Len(t, errs, 1)
	assert.Equal(t, util.VariableNotDefined, errs[0].Kind)
}

// TestScoperSiblingBlocksInvisible verifies a declaration in an earlier
// sibling block is not visible.
func TestScoperSiblingBlocksInvisible(t *testing.T) {
	s := NewScoper()
	first := []ir.Instruction{varDecl("y", 2)}
	second := []ir.Instruction{refVar("y", 4)}
	outer := []ir.Instruction{
		{Kind: ir.Block, Stmts: first},
		{Kind: ir.Block, Stmts: second},
	}
	s.AddScope(first)
	s.AddScope(second)
	s.AddScope(outer)

	errs := s.Analyze()
	require.Len(t, errs, 1)
	assert.Equal(t, util.UnreachableVariable, errs[0].Kind)
}

// TestScoperParamsVisible verifies function parameters count as
// declarations of the body block.
func TestScoperParamsVisible(t *testing.T) {
	s := NewScoper()
	body := []ir.Instruction{
		{Kind: ir.Param, Name: "a", DataType: token.I32, Line: 1},
		refVar("a", 2),
	}
	s.AddScope(body)

	assert.Empty(t, s.Analyze())
}

// TestScoperRefsInsideExpressions verifies references are found nested in
// expressions and print arguments.
func TestScoperRefsInsideExpressions(t *testing.T) {
	s := NewScoper()
	use := refVar("ghost", 2)
	bin := ir.Instruction{
		Kind:     ir.Binary,
		Left:     &use,
		Op:       token.Plus,
		Right:    &ir.Instruction{Kind: ir.Integer, DataType: token.U8, Value: 1},
		DataType: token.I32,
		Line:     2,
	}
	s.AddScope([]ir.Instruction{
		{Kind: ir.Println, Args: []ir.Instruction{bin}},
	})

	errs := s.Analyze()
	require.Len(t, errs, 1)
	assert.Equal(t, util.VariableNotDefined, errs[0].Kind)
}
