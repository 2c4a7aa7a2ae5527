// Tests the closed operator and assignment tables.

package frontend

import (
	"testing"

	"thrushc/src/frontend/token"
)

func TestCheckBinaryTable(t *testing.T) {
	tests := []struct {
		op   token.Kind
		a, b token.DataTypes
		ok   bool
	}{
		{token.Plus, token.I8, token.I64, true},
		{token.Plus, token.U8, token.I16, true},
		{token.Plus, token.F32, token.F64, true},
		{token.Plus, token.String, token.String, true},
		{token.Plus, token.String, token.Char, true},
		{token.Plus, token.I32, token.F64, false},
		{token.Plus, token.Bool, token.Bool, false},
		{token.Minus, token.U8, token.U8, true},
		{token.Minus, token.String, token.String, false},
		{token.Star, token.I32, token.I32, true},
		{token.Slash, token.F64, token.F64, true},
		{token.Slash, token.Char, token.Char, false},
		{token.EqEq, token.Bool, token.Bool, true},
		{token.EqEq, token.Char, token.Char, true},
		{token.EqEq, token.String, token.String, true},
		{token.EqEq, token.Bool, token.I8, false},
		{token.BangEq, token.I8, token.U64, true},
		{token.Less, token.I8, token.I8, true},
		{token.Less, token.String, token.String, false},
		{token.And, token.Bool, token.Bool, true},
		{token.And, token.I8, token.I8, true},
		{token.And, token.Bool, token.I8, false},
		{token.Or, token.Bool, token.Bool, true},
		{token.Or, token.String, token.String, false},
	}

	for _, e1 := range tests {
		err := CheckBinary(e1.op, e1.a, e1.b, 1)
		if e1.ok && err != nil {
			t.Errorf("%s %s %s: unexpected error %v", e1.a, e1.op, e1.b, err)
		}
		if !e1.ok && err == nil {
			t.Errorf("%s %s %s: expected an error", e1.a, e1.op, e1.b)
		}
	}
}

func TestCheckUnaryTable(t *testing.T) {
	tests := []struct {
		op token.Kind
		a  token.DataTypes
		ok bool
	}{
		{token.Minus, token.I8, true},
		{token.Minus, token.F64, true},
		{token.Minus, token.U8, false},
		{token.Minus, token.Bool, false},
		{token.Bang, token.Bool, true},
		{token.Bang, token.I8, false},
		{token.PlusPlus, token.U64, true},
		{token.PlusPlus, token.F32, true},
		{token.PlusPlus, token.String, false},
		{token.MinusMinus, token.I16, true},
		{token.MinusMinus, token.Char, false},
	}

	for _, e1 := range tests {
		err := CheckUnary(e1.op, e1.a, 1)
		if e1.ok && err != nil {
			t.Errorf("%s%s: unexpected error %v", e1.op, e1.a, err)
		}
		if !e1.ok && err == nil {
			t.Errorf("%s%s: expected an error", e1.op, e1.a)
		}
	}
}

func TestCheckAssignTable(t *testing.T) {
	tests := []struct {
		value, target token.DataTypes
		ok            bool
	}{
		{token.I8, token.I8, true},
		{token.I8, token.I32, true},  // widening
		{token.U8, token.I8, true},   // same width, sign change at the target
		{token.I32, token.I8, false}, // narrowing
		{token.F32, token.F64, true},
		{token.F64, token.F32, false},
		{token.I32, token.F64, false},
		{token.Char, token.Char, true},
		{token.Char, token.I8, false},
		{token.String, token.String, true},
		{token.String, token.I32, false},
		{token.I32, token.String, false},
		{token.Bool, token.Bool, true},
		{token.Bool, token.I8, false},
		{token.IntegerType, token.U8, true},
	}

	for _, e1 := range tests {
		err := CheckAssign(e1.value, e1.target, 1)
		if e1.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", e1.value, e1.target, err)
		}
		if !e1.ok && err == nil {
			t.Errorf("%s -> %s: expected an error", e1.value, e1.target)
		}
	}
}
