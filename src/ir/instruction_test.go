package ir

import (
	"testing"

	"thrushc/src/frontend/token"
)

func TestGetDataType(t *testing.T) {
	str := Instruction{Kind: Str, Text: "x\n\x00"}
	boolean := Instruction{Kind: Boolean, Flag: true}
	char := Instruction{Kind: Char, Byte: 'x'}
	integer := Instruction{Kind: Integer, DataType: token.U16}
	inner := Instruction{Kind: Integer, DataType: token.I32}
	unary := Instruction{Kind: Unary, Op: token.MinusMinus, Inner: &inner}

	tests := []struct {
		in   Instruction
		want token.DataTypes
	}{
		{str, token.String},
		{boolean, token.Bool},
		{char, token.Char},
		{integer, token.U16},
		{unary, token.I32},
		{Instruction{Kind: Null}, token.Void},
	}
	for _, e1 := range tests {
		if got := e1.in.GetDataType(); got != e1.want {
			t.Errorf("%s: expected %s, got %s", e1.in.Kind, e1.want, got)
		}
	}
}

func TestIsBinaryLooksThroughGroups(t *testing.T) {
	bin := Instruction{
		Kind:  Binary,
		Op:    token.Plus,
		Left:  &Instruction{Kind: Integer, DataType: token.U8},
		Right: &Instruction{Kind: Integer, DataType: token.U8},
	}
	group := Instruction{Kind: Group, Inner: &bin}

	if !bin.IsBinary() || !group.IsBinary() {
		t.Error("expected both the binary and its group to report binary")
	}
	if (&Instruction{Kind: Integer}).IsBinary() {
		t.Error("a literal must not report binary")
	}
}

func TestIsIndexeReturnOfString(t *testing.T) {
	idx := Instruction{Kind: Indexe, Name: "s", Index: 1, DataType: token.Char}
	ret := Instruction{Kind: Return, Inner: &idx, DataType: token.Char}
	if !ret.IsIndexeReturnOfString() {
		t.Error("expected a returned string index to be flagged")
	}

	plain := Instruction{Kind: Return, Inner: &Instruction{Kind: Char, Byte: 'x'}, DataType: token.Char}
	if plain.IsIndexeReturnOfString() {
		t.Error("a plain char return must not be flagged")
	}
}

func TestAsBinaryUnwrapsGroups(t *testing.T) {
	left := Instruction{Kind: Integer, DataType: token.U8, Value: 1}
	right := Instruction{Kind: Integer, DataType: token.U8, Value: 2}
	bin := Instruction{Kind: Binary, Op: token.Star, Left: &left, Right: &right, DataType: token.U8}
	group := Instruction{Kind: Group, Inner: &bin, DataType: token.U8}

	l, op, r, dt := group.AsBinary()
	if l != &left || r != &right || op != token.Star || dt != token.U8 {
		t.Error("group did not unwrap to its binary parts")
	}
}
