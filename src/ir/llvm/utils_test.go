// Tests the pure lowering helpers: intrinsic naming, comparison predicates
// and printf conversions.

package llvm

import (
	"testing"

	"tinygo.org/x/go-llvm"

	"thrushc/src/frontend/token"
)

func TestOverflowIntrinsicNames(t *testing.T) {
	tests := []struct {
		op   token.Kind
		dt   token.DataTypes
		want string
	}{
		{token.Plus, token.I8, "llvm.sadd.with.overflow.i8"},
		{token.Minus, token.U16, "llvm.usub.with.overflow.i16"},
		{token.Star, token.I32, "llvm.smul.with.overflow.i32"},
		{token.Slash, token.U64, "llvm.udiv.with.overflow.i64"},
		{token.PlusPlus, token.I64, "llvm.sadd.with.overflow.i64"},
		{token.MinusMinus, token.U8, "llvm.usub.with.overflow.i8"},
	}
	for _, e1 := range tests {
		if got := overflowIntrinsic(e1.op, e1.dt); got != e1.want {
			t.Errorf("%s %s: expected %s, got %s", e1.op, e1.dt, e1.want, got)
		}
	}
}

func TestIcmpPredicates(t *testing.T) {
	tests := []struct {
		op     token.Kind
		signed bool
		want   llvm.IntPredicate
	}{
		{token.EqEq, true, llvm.IntEQ},
		{token.BangEq, false, llvm.IntNE},
		{token.Less, true, llvm.IntSLT},
		{token.Less, false, llvm.IntULT},
		{token.GreaterEq, true, llvm.IntSGE},
		{token.GreaterEq, false, llvm.IntUGE},
	}
	for _, e1 := range tests {
		if got := icmpPredicate(e1.op, e1.signed); got != e1.want {
			t.Errorf("%s signed=%v: wrong predicate", e1.op, e1.signed)
		}
	}
}

func TestFcmpPredicates(t *testing.T) {
	if fcmpPredicate(token.Less) != llvm.FloatOLT || fcmpPredicate(token.EqEq) != llvm.FloatOEQ {
		t.Error("wrong ordered float predicate")
	}
}

func TestPrintfSpecs(t *testing.T) {
	tests := []struct {
		dt   token.DataTypes
		want string
	}{
		{token.U8, "%d"},
		{token.I32, "%d"},
		{token.I64, "%ld"},
		{token.U64, "%ld"},
		{token.F32, "%f"},
		{token.F64, "%f"},
		{token.Char, "%c"},
		{token.String, "%s"},
		{token.Bool, "%d"},
	}
	for _, e1 := range tests {
		if got := printfSpec(e1.dt); got != e1.want {
			t.Errorf("%s: expected %s, got %s", e1.dt, e1.want, got)
		}
	}
}
