// Tests the parser and the integrated semantic resolution against a set of
// small programs: type promotion, entry point rules, string lifetime
// annotation, forward calls and the diagnostic texts.

package frontend

import (
	"strings"
	"testing"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
	"thrushc/src/util"
)

// parseSource lexes and parses a source string as the main translation unit.
func parseSource(t *testing.T, src string) ([]ir.Instruction, []util.CompileError) {
	t.Helper()
	tokens, errs := Lex([]byte(src))
	if len(errs) > 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}
	p := NewParser(tokens, true)
	return p.Start()
}

// entryBody digs the entry point's block out of the parsed statements.
func entryBody(t *testing.T, stmts []ir.Instruction) *ir.Instruction {
	t.Helper()
	for i1 := range stmts {
		if stmts[i1].Kind == ir.EntryPoint {
			return stmts[i1].Body
		}
	}
	t.Fatal("no entry point in parsed statements")
	return nil
}

// TestParserHelloWorld verifies the minimal program parses cleanly.
func TestParserHelloWorld(t *testing.T) {
	stmts, errs := parseSource(t, `fn main() { println("Hello"); }`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	if len(body.Stmts) != 1 || body.Stmts[0].Kind != ir.Println {
		t.Fatalf("expected one println statement, got %+v", body.Stmts)
	}
}

// TestParserArithmeticPromotion verifies that mixed width integer operands
// promote and the declaration retypes the expression to its target.
func TestParserArithmeticPromotion(t *testing.T) {
	stmts, errs := parseSource(t, `
fn main() {
	var a : i16 = 1;
	var b : i8 = 2;
	var x : i32 = a + b;
}`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	var x *ir.Instruction
	for i1 := range body.Stmts {
		if body.Stmts[i1].Kind == ir.Var && body.Stmts[i1].Name == "x" {
			x = &body.Stmts[i1]
		}
	}
	if x == nil {
		t.Fatal("did not find x")
	}
	if x.Inner.Kind != ir.Binary || x.Inner.DataType != token.I32 {
		t.Errorf("expected binary initializer retyped to i32, got %s %s",
			x.Inner.Kind, x.Inner.DataType)
	}
}

// TestParserTypeMismatch verifies the diagnostic text of an impossible
// initialization.
func TestParserTypeMismatch(t *testing.T) {
	_, errs := parseSource(t, `
fn main() {
	var x : i32 = "s";
}`)
	if len(errs) == 0 {
		t.Fatal("expected a type mismatch error")
	}
	found := false
	for _, e1 := range errs {
		if strings.Contains(e1.Help, "Type mismatch. Expected 'I32' but found 'String'.") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing mismatch diagnostic, got %v", errs)
	}
}

// TestParserStringLifetime verifies the deallocator synthesis at block exit.
func TestParserStringLifetime(t *testing.T) {
	stmts, errs := parseSource(t, `
fn main() {
	var s : string = "hi";
}`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	last := body.Stmts[len(body.Stmts)-1]
	if last.Kind != ir.Free || last.Name != "s" || !last.IsString {
		t.Errorf("expected trailing Free of s, got %+v", last)
	}
}

// TestParserFreeOrder verifies deallocators come out in reverse declaration
// order.
func TestParserFreeOrder(t *testing.T) {
	stmts, errs := parseSource(t, `
fn main() {
	var a : string = "x";
	var b : string = a;
}`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	frees := make([]string, 0, 2)
	for _, e1 := range body.Stmts {
		if e1.Kind == ir.Free {
			frees = append(frees, e1.Name)
		}
	}
	if len(frees) != 2 || frees[0] != "b" || frees[1] != "a" {
		t.Errorf("expected frees of b then a, got %v", frees)
	}
}

// TestParserCloneIsFreeOnly verifies that a string copied from another
// binding carries the free-only flag on its deallocator.
func TestParserCloneIsFreeOnly(t *testing.T) {
	stmts, errs := parseSource(t, `
fn main() {
	var a : string = "x";
	var b : string = a;
}`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	for _, e1 := range body.Stmts {
		if e1.Kind != ir.Free {
			continue
		}
		if e1.Name == "b" && !e1.FreeOnly {
			t.Error("expected the clone's Free to be free-only")
		}
		if e1.Name == "a" && e1.FreeOnly {
			t.Error("expected the original's Free to be a full free")
		}
	}
}

// TestParserReturnTransfersOwnership verifies that returning a string leaves
// no Free behind.
func TestParserReturnTransfersOwnership(t *testing.T) {
	tokens, lexErrs := Lex([]byte(`
fn f() : string {
	var s : string = "hi";
	return s;
}`))
	if len(lexErrs) > 0 {
		t.Fatalf("unexpected lex errors: %v", lexErrs)
	}
	p := NewParser(tokens, false)
	stmts, errs := p.Start()
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if len(stmts) != 1 || stmts[0].Kind != ir.Function {
		t.Fatalf("expected one function, got %+v", stmts)
	}
	for _, e1 := range stmts[0].Body.Stmts {
		if e1.Kind == ir.Free {
			t.Errorf("unexpected Free of %q after ownership transfer", e1.Name)
		}
	}
}

// TestParserDuplicatedEntryPoint verifies entry point uniqueness.
func TestParserDuplicatedEntryPoint(t *testing.T) {
	_, errs := parseSource(t, `
fn main() { }
fn main() { }`)
	found := false
	for _, e1 := range errs {
		if e1.Title == "Duplicated EntryPoint" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a Duplicated EntryPoint error, got %v", errs)
	}
}

// TestParserNoEntryPointOutsideMain verifies fn main in a non-main file is a
// plain function.
func TestParserNoEntryPointOutsideMain(t *testing.T) {
	tokens, lexErrs := Lex([]byte(`fn main() { }`))
	if len(lexErrs) > 0 {
		t.Fatalf("unexpected lex errors: %v", lexErrs)
	}
	p := NewParser(tokens, false)
	stmts, errs := p.Start()
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(stmts) != 1 || stmts[0].Kind != ir.Function {
		t.Errorf("expected a plain function, got %+v", stmts)
	}
}

// TestParserMissingEntryPoint verifies the main file requires an entry point.
func TestParserMissingEntryPoint(t *testing.T) {
	_, errs := parseSource(t, `fn f() { }`)
	if len(errs) != 1 || errs[0].Kind != util.Compile {
		t.Errorf("expected the missing entrypoint error, got %v", errs)
	}
}

// TestParserForwardCall verifies calls resolve through the
// forward-declaration pass regardless of definition order.
func TestParserForwardCall(t *testing.T) {
	_, errs := parseSource(t, `
fn main() { f(); }
fn f() { }`)
	if len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

// TestParserCallChecks verifies arity and per-position argument types.
func TestParserCallChecks(t *testing.T) {
	_, errs := parseSource(t, `
fn main() { f(1, 2); }
fn f(a :: u8) { }`)
	if len(errs) == 0 {
		t.Fatal("expected an arity error")
	}
	if errs[0].Kind != util.TooManyArguments {
		t.Errorf("expected TooManyArguments, got %s", errs[0].Kind)
	}

	_, errs = parseSource(t, `
fn main() {
	var s : string = "x";
	g(s);
}
fn g(a :: u8) { }`)
	found := false
	for _, e1 := range errs {
		if strings.Contains(e1.Help, "argument type in position 0") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a positional type error, got %v", errs)
	}
}

// TestParserExternalVariadic verifies the pass marker suppresses argument
// checks on external declarations.
func TestParserExternalVariadic(t *testing.T) {
	_, errs := parseSource(t, `
external("printf") fn put(fmt :: string, pass);
fn main() { put("x", 1, 2, 3); }`)
	if len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

// TestParserPassOutsideExternal verifies the pass marker is rejected in
// ordinary signatures.
func TestParserPassOutsideExternal(t *testing.T) {
	_, errs := parseSource(t, `
fn main() { }
fn f(pass) { }`)
	found := false
	for _, e1 := range errs {
		if strings.Contains(e1.Help, "'pass' marker") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the pass marker error, got %v", errs)
	}
}

// TestParserPrintFormatHoles verifies the format hole arity check and the
// newline rejection of print.
func TestParserPrintFormatHoles(t *testing.T) {
	_, errs := parseSource(t, `
fn main() {
	var a : i32 = 1;
	println("{} {}", a);
}`)
	found := false
	for _, e1 := range errs {
		if e1.Title == "Expected format" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the format arity error, got %v", errs)
	}

	_, errs = parseSource(t, `
fn main() {
	print("with\nnewline");
}`)
	found = false
	for _, e1 := range errs {
		if strings.Contains(e1.Help, "Use 'println' instead") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the newline rejection, got %v", errs)
	}
}

// TestParserForLoop verifies the loop clauses and the comptime clone in the
// body block.
func TestParserForLoop(t *testing.T) {
	stmts, errs := parseSource(t, `
fn main() {
	for var i : i32 = 0; i < 3; i = i + 1 {
		println("{}", i);
	}
}`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	var loop *ir.Instruction
	for i1 := range body.Stmts {
		if body.Stmts[i1].Kind == ir.ForLoop {
			loop = &body.Stmts[i1]
		}
	}
	if loop == nil {
		t.Fatal("did not find the for loop")
	}
	if loop.Init == nil || loop.Cond == nil || loop.Step == nil || loop.Body == nil {
		t.Fatal("missing loop clauses")
	}
	if loop.Init.OnlyComptime {
		t.Error("the emitted init must not be comptime-only")
	}

	clone := loop.Body.Stmts[0]
	if clone.Kind != ir.Var || clone.Name != "i" || !clone.OnlyComptime {
		t.Errorf("expected a comptime clone of i leading the body, got %+v", clone)
	}
	if loop.Step.Kind != ir.MutVar {
		t.Errorf("expected the step to be an assignment, got %s", loop.Step.Kind)
	}
}

// TestParserReturnOutsideFunction verifies the diagnostic for a stray
// return.
func TestParserReturnOutsideFunction(t *testing.T) {
	_, errs := parseSource(t, `return;`)
	found := false
	for _, e1 := range errs {
		if strings.Contains(e1.Help, "Return statement outside of function") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the stray return error, got %v", errs)
	}
}

// TestParserIndexe verifies string indexing produces a char typed access
// with a constant index.
func TestParserIndexe(t *testing.T) {
	stmts, errs := parseSource(t, `
fn main() {
	var s : string = "abc";
	var c : char = s[1];
}`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	body := entryBody(t, stmts)
	var c *ir.Instruction
	for i1 := range body.Stmts {
		if body.Stmts[i1].Kind == ir.Var && body.Stmts[i1].Name == "c" {
			c = &body.Stmts[i1]
		}
	}
	if c == nil {
		t.Fatal("did not find c")
	}
	if c.Inner.Kind != ir.Indexe || c.Inner.Index != 1 || c.Inner.DataType != token.Char {
		t.Errorf("expected Indexe of index 1 typed char, got %+v", c.Inner)
	}
}

// TestParserUseBeforeAssignment verifies null-initialized bindings are
// rejected on use.
func TestParserUseBeforeAssignment(t *testing.T) {
	_, errs := parseSource(t, `
fn main() {
	var x : i32;
	var y : i32 = x;
}`)
	found := false
	for _, e1 := range errs {
		if e1.Kind == util.VariableNotDeclared {
			found = true
		}
	}
	if !found {
		t.Errorf("expected VariableNotDeclared, got %v", errs)
	}
}

// TestParserUnknownName verifies the unknown object diagnostic.
func TestParserUnknownName(t *testing.T) {
	_, errs := parseSource(t, `
fn main() {
	var y : i32 = nope;
}`)
	found := false
	for _, e1 := range errs {
		if e1.Kind == util.ObjectNotDefined {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ObjectNotDefined, got %v", errs)
	}
}
