package util

import "testing"

func TestErrorBufferCap(t *testing.T) {
	b := ErrorBuffer{}
	for i1 := 0; i1 < 25; i1++ {
		b.Append(CompileError{Kind: SyntaxError, Title: "Syntax Error", Line: i1})
	}
	if b.Len() != 10 {
		t.Errorf("expected the cap of 10, got %d", b.Len())
	}
	if !b.Full() {
		t.Error("expected the buffer to report full")
	}
	if b.Errors()[9].Line != 9 {
		t.Error("appends past the cap must be dropped, not rotated")
	}
}

func TestCompileErrorRendering(t *testing.T) {
	e := CompileError{
		Kind:  UnreachableNumber,
		Stage: StageLex,
		Title: "The number is out of bounds.",
		Help:  "The size is out of bounds of an unsigned 64 bit integer.",
		Line:  3,
	}
	want := "line 3: The number is out of bounds.: The size is out of bounds of an unsigned 64 bit integer."
	if e.Error() != want {
		t.Errorf("expected %q, got %q", want, e.Error())
	}
	if e.Kind.String() != "UnreachableNumber" || e.Stage.String() != "lex" {
		t.Error("unexpected kind or stage rendering")
	}
}

func TestStack(t *testing.T) {
	s := Stack{}
	if s.Pop() != nil || s.Peek() != nil {
		t.Error("an empty stack must return nil")
	}

	s.Push(1)
	s.Push(2)
	s.Push(3)
	if s.Size() != 3 {
		t.Errorf("expected size 3, got %d", s.Size())
	}
	if s.Get(1) != 3 || s.Get(3) != 1 {
		t.Error("Get must index from the top, one based")
	}
	if s.Peek() != 3 {
		t.Error("Peek must return the top")
	}
	if s.Pop() != 3 || s.Pop() != 2 || s.Pop() != 1 {
		t.Error("Pop must return elements in reverse insertion order")
	}
	if s.Size() != 0 {
		t.Errorf("expected an empty stack, got size %d", s.Size())
	}
}
