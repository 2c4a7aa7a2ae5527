package api

import (
	"tinygo.org/x/go-llvm"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// DebugAPI emits the panic runtime surface. panic writes one formatted
// diagnostic to stderr and traps; overflow checks branch into it.
type DebugAPI struct {
	m   llvm.Module
	b   llvm.Builder
	ctx llvm.Context
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewDebugAPI returns a DebugAPI bound to the module under construction.
func NewDebugAPI(m llvm.Module, b llvm.Builder, ctx llvm.Context) *DebugAPI {
	return &DebugAPI{m: m, b: b, ctx: ctx}
}

// Declare emits the extern prototype of panic for compilation units that
// link against the prebuilt runtime object.
func (d *DebugAPI) Declare() {
	d.declareFprintf()
	if d.m.NamedFunction("panic").IsNil() {
		fn := llvm.AddFunction(d.m, "panic", d.panicType())
		fn.SetLinkage(llvm.ExternalLinkage)
	}
}

// Define emits the panic body: load stderr through the first parameter, call
// fprintf with the format and argument strings, then trap.
func (d *DebugAPI) Define() {
	d.declareFprintf()

	fn := llvm.AddFunction(d.m, "panic", d.panicType())
	bb := llvm.AddBasicBlock(fn, "")
	d.b.SetInsertPointAtEnd(bb)

	stderr := d.b.CreateLoad(fn.Param(0), "")
	d.b.CreateCall(d.m.NamedFunction("fprintf"),
		[]llvm.Value{stderr, fn.Param(1), fn.Param(2)}, "")
	d.b.CreateUnreachable()
}

// panicType is void panic(i8** stderr, i8* fmt, i8* arg, ...).
func (d *DebugAPI) panicType() llvm.Type {
	ptr := llvm.PointerType(d.ctx.Int8Type(), 0)
	ptrptr := llvm.PointerType(ptr, 0)
	return llvm.FunctionType(d.ctx.VoidType(), []llvm.Type{ptrptr, ptr, ptr}, true)
}

// declareFprintf declares the variadic libc fprintf.
func (d *DebugAPI) declareFprintf() {
	if !d.m.NamedFunction("fprintf").IsNil() {
		return
	}
	ptr := llvm.PointerType(d.ctx.Int8Type(), 0)
	typ := llvm.FunctionType(d.ctx.Int32Type(), []llvm.Type{ptr, ptr}, true)
	fn := llvm.AddFunction(d.m, "fprintf", typ)
	fn.SetLinkage(llvm.ExternalLinkage)
}
