// Package api synthesizes the runtime support functions the generated code
// depends on: the typed growable vector backing strings and the panic
// helper. Each surface can be emitted in two modes: Define produces the full
// bodies for the standalone runtime object, Declare produces bare extern
// prototypes for ordinary compilation units that link against it.
package api

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// VectorAPI emits the Vec.* runtime surface into a module. The vector header
// layout is fixed: {i64 size, i64 capacity, i64 element_size, i8* data,
// i8 elem_type_tag}.
type VectorAPI struct {
	m   llvm.Module
	b   llvm.Builder
	ctx llvm.Context

	vecType llvm.Type
	ptr     llvm.Type
	i64     llvm.Type
	i8      llvm.Type
}

// elementWidths lists the supported element bit widths; the typed operations
// are name mangled over them (Vec.push_i8, Vec.push_i16, ...).
var elementWidths = []int{8, 16, 32, 64}

// Header field indices of the vector struct.
const (
	fieldSize = iota
	fieldCapacity
	fieldElementSize
	fieldData
	fieldTypeTag
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewVectorAPI returns a VectorAPI bound to the module under construction.
func NewVectorAPI(m llvm.Module, b llvm.Builder, ctx llvm.Context) *VectorAPI {
	i8ptr := llvm.PointerType(ctx.Int8Type(), 0)
	vecType := ctx.StructType([]llvm.Type{
		ctx.Int64Type(), // size
		ctx.Int64Type(), // capacity
		ctx.Int64Type(), // element_size
		i8ptr,           // data
		ctx.Int8Type(),  // elem_type_tag
	}, false)

	return &VectorAPI{
		m:       m,
		b:       b,
		ctx:     ctx,
		vecType: vecType,
		ptr:     i8ptr,
		i64:     ctx.Int64Type(),
		i8:      ctx.Int8Type(),
	}
}

// Type returns the vector header struct type.
func (v *VectorAPI) Type() llvm.Type {
	return v.vecType
}

// Declare emits extern prototypes for the Vec.* surface, internal helpers
// included.
func (v *VectorAPI) Declare() {
	v.declareLibc()
	for _, e1 := range v.prototypes() {
		if v.m.NamedFunction(e1.name).IsNil() {
			fn := llvm.AddFunction(v.m, e1.name, e1.typ)
			fn.SetLinkage(llvm.ExternalLinkage)
		}
	}
}

// Define emits the full Vec.* bodies, used when materializing the standalone
// runtime object.
func (v *VectorAPI) Define() {
	v.declareLibc()
	for _, e1 := range v.prototypes() {
		if v.m.NamedFunction(e1.name).IsNil() {
			llvm.AddFunction(v.m, e1.name, e1.typ)
		}
	}

	v.defineAdjustCapacity()
	v.defineShouldGrow()
	v.defineInit()
	v.defineRealloc()
	v.defineSize()
	v.defineData()
	for _, e1 := range elementWidths {
		v.definePush(e1)
		v.defineGet(e1)
		v.defineSet(e1)
	}
	v.defineClone()
	v.defineDestroy()
}

// prototype pairs a runtime function name with its type.
type prototype struct {
	name string
	typ  llvm.Type
}

// prototypes returns the whole Vec surface, internal helpers included. The
// helpers are declared in both modes so the define order never matters.
func (v *VectorAPI) prototypes() []prototype {
	elem := func(width int) llvm.Type {
		return v.ctx.IntType(width)
	}

	protos := []prototype{
		{"Vec.init", llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr, v.i64, v.i64, v.i8}, false)},
		{"Vec.realloc", llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr, v.i64, v.ctx.Int1Type()}, false)},
		{"Vec.size", llvm.FunctionType(v.i64, []llvm.Type{v.ptr}, false)},
		{"Vec.data", llvm.FunctionType(v.ptr, []llvm.Type{v.ptr}, false)},
		{"Vec.clone", llvm.FunctionType(v.ptr, []llvm.Type{v.ptr}, false)},
		{"Vec.destroy", llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr}, false)},
		{"_Vec.should_grow", llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr}, false)},
		{"_Vec.adjust_capacity", llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr}, false)},
	}
	for _, e1 := range elementWidths {
		protos = append(protos,
			prototype{fmt.Sprintf("Vec.push_i%d", e1),
				llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr, elem(e1)}, false)},
			prototype{fmt.Sprintf("Vec.get_i%d", e1),
				llvm.FunctionType(elem(e1), []llvm.Type{v.ptr, v.i64}, false)},
			prototype{fmt.Sprintf("Vec.set_i%d", e1),
				llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr, v.i64, elem(e1)}, false)},
		)
	}
	return protos
}

// declareLibc declares the libc allocation surface the vector is built on.
func (v *VectorAPI) declareLibc() {
	decls := []prototype{
		{"malloc", llvm.FunctionType(v.ptr, []llvm.Type{v.i64}, false)},
		{"realloc", llvm.FunctionType(v.ptr, []llvm.Type{v.ptr, v.i64}, false)},
		{"free", llvm.FunctionType(v.ctx.VoidType(), []llvm.Type{v.ptr}, false)},
		{"memcpy", llvm.FunctionType(v.ptr, []llvm.Type{v.ptr, v.ptr, v.i64}, false)},
	}
	for _, e1 := range decls {
		if v.m.NamedFunction(e1.name).IsNil() {
			fn := llvm.AddFunction(v.m, e1.name, e1.typ)
			fn.SetLinkage(llvm.ExternalLinkage)
		}
	}
}

// header returns a typed pointer to the vector header from the raw i8*
// parameter.
func (v *VectorAPI) header(raw llvm.Value) llvm.Value {
	return v.b.CreateBitCast(raw, llvm.PointerType(v.vecType, 0), "")
}

// field returns the address of the nth header field.
func (v *VectorAPI) field(header llvm.Value, n int) llvm.Value {
	return v.b.CreateStructGEP(header, n, "")
}

// begin positions the builder at a fresh entry block of the named function
// and returns the function value.
func (v *VectorAPI) begin(name string) llvm.Value {
	fn := v.m.NamedFunction(name)
	bb := llvm.AddBasicBlock(fn, "")
	v.b.SetInsertPointAtEnd(bb)
	return fn
}

// defineInit emits Vec.init(h, cap, elem_size, type_tag): zero size, clamp
// the capacity to at least two slots, record the element layout and allocate
// the backing buffer.
func (v *VectorAPI) defineInit() {
	fn := v.begin("Vec.init")
	h := v.header(fn.Param(0))
	cap := fn.Param(1)
	elemSize := fn.Param(2)
	typeTag := fn.Param(3)

	two := llvm.ConstInt(v.i64, 2, false)
	tooSmall := v.b.CreateICmp(llvm.IntULT, cap, two, "")
	cap = v.b.CreateSelect(tooSmall, two, cap, "")

	v.b.CreateStore(llvm.ConstInt(v.i64, 0, false), v.field(h, fieldSize))
	v.b.CreateStore(cap, v.field(h, fieldCapacity))
	v.b.CreateStore(elemSize, v.field(h, fieldElementSize))
	v.b.CreateStore(typeTag, v.field(h, fieldTypeTag))

	bytes := v.b.CreateMul(cap, elemSize, "")
	data := v.b.CreateCall(v.m.NamedFunction("malloc"), []llvm.Value{bytes}, "")
	v.b.CreateStore(data, v.field(h, fieldData))

	v.b.CreateRetVoid()
}

// defineShouldGrow emits _Vec.should_grow(h): grow when size reached
// capacity.
func (v *VectorAPI) defineShouldGrow() {
	fn := v.begin("_Vec.should_grow")
	h := v.header(fn.Param(0))

	size := v.b.CreateLoad(v.field(h, fieldSize), "")
	capacity := v.b.CreateLoad(v.field(h, fieldCapacity), "")
	full := v.b.CreateICmp(llvm.IntEQ, size, capacity, "")

	grow := llvm.AddBasicBlock(fn, "")
	done := llvm.AddBasicBlock(fn, "")
	v.b.CreateCondBr(full, grow, done)

	v.b.SetInsertPointAtEnd(grow)
	v.b.CreateCall(v.m.NamedFunction("_Vec.adjust_capacity"), []llvm.Value{fn.Param(0)}, "")
	v.b.CreateBr(done)

	v.b.SetInsertPointAtEnd(done)
	v.b.CreateRetVoid()
}

// defineAdjustCapacity emits _Vec.adjust_capacity(h): double the current
// size with a floor of two and reallocate through Vec.realloc.
func (v *VectorAPI) defineAdjustCapacity() {
	fn := v.begin("_Vec.adjust_capacity")
	h := v.header(fn.Param(0))

	size := v.b.CreateLoad(v.field(h, fieldSize), "")
	doubled := v.b.CreateMul(size, llvm.ConstInt(v.i64, 2, false), "")
	two := llvm.ConstInt(v.i64, 2, false)
	tooSmall := v.b.CreateICmp(llvm.IntULT, doubled, two, "")
	newCap := v.b.CreateSelect(tooSmall, two, doubled, "")

	v.b.CreateCall(v.m.NamedFunction("Vec.realloc"),
		[]llvm.Value{fn.Param(0), newCap, llvm.ConstInt(v.ctx.Int1Type(), 0, false)}, "")
	v.b.CreateRetVoid()
}

// defineRealloc emits Vec.realloc(h, new_cap, reset). Without reset the
// backing buffer is resized in place; with reset the vector empties and gets
// a fresh buffer. Both paths size the buffer at (new_cap+2)*element_size
// bytes and record the new capacity.
func (v *VectorAPI) defineRealloc() {
	fn := v.begin("Vec.realloc")
	h := v.header(fn.Param(0))
	newCap := fn.Param(1)
	reset := fn.Param(2)

	elemSize := v.b.CreateLoad(v.field(h, fieldElementSize), "")
	padded := v.b.CreateAdd(newCap, llvm.ConstInt(v.i64, 2, false), "")
	bytes := v.b.CreateMul(padded, elemSize, "")

	resetBB := llvm.AddBasicBlock(fn, "")
	growBB := llvm.AddBasicBlock(fn, "")
	doneBB := llvm.AddBasicBlock(fn, "")
	v.b.CreateCondBr(reset, resetBB, growBB)

	// reset=1: drop the contents, then allocate a clean buffer.
	v.b.SetInsertPointAtEnd(resetBB)
	v.b.CreateStore(llvm.ConstInt(v.i64, 0, false), v.field(h, fieldSize))
	oldData := v.b.CreateLoad(v.field(h, fieldData), "")
	v.b.CreateCall(v.m.NamedFunction("free"), []llvm.Value{oldData}, "")
	fresh := v.b.CreateCall(v.m.NamedFunction("malloc"), []llvm.Value{bytes}, "")
	v.b.CreateStore(fresh, v.field(h, fieldData))
	v.b.CreateBr(doneBB)

	// reset=0: grow or shrink in place.
	v.b.SetInsertPointAtEnd(growBB)
	data := v.b.CreateLoad(v.field(h, fieldData), "")
	resized := v.b.CreateCall(v.m.NamedFunction("realloc"), []llvm.Value{data, bytes}, "")
	v.b.CreateStore(resized, v.field(h, fieldData))
	v.b.CreateBr(doneBB)

	v.b.SetInsertPointAtEnd(doneBB)
	v.b.CreateStore(newCap, v.field(h, fieldCapacity))
	v.b.CreateRetVoid()
}

// defineSize emits the size accessor.
func (v *VectorAPI) defineSize() {
	fn := v.begin("Vec.size")
	h := v.header(fn.Param(0))
	v.b.CreateRet(v.b.CreateLoad(v.field(h, fieldSize), ""))
}

// defineData emits the data accessor.
func (v *VectorAPI) defineData() {
	fn := v.begin("Vec.data")
	h := v.header(fn.Param(0))
	v.b.CreateRet(v.b.CreateLoad(v.field(h, fieldData), ""))
}

// definePush emits Vec.push_iN(h, value): grow when needed, write at
// data[size], bump size. Every width writes through the i8 data pointer at a
// byte index; element_size only parameterizes allocation sizes. The layout
// quirk is load-bearing: programs linked against existing runtime objects
// expect it.
func (v *VectorAPI) definePush(width int) {
	fn := v.begin(fmt.Sprintf("Vec.push_i%d", width))
	h := v.header(fn.Param(0))

	v.b.CreateCall(v.m.NamedFunction("_Vec.should_grow"), []llvm.Value{fn.Param(0)}, "")

	size := v.b.CreateLoad(v.field(h, fieldSize), "")
	data := v.b.CreateLoad(v.field(h, fieldData), "")
	slot := v.b.CreateGEP(data, []llvm.Value{size}, "")
	if width != 8 {
		slot = v.b.CreateBitCast(slot, llvm.PointerType(v.ctx.IntType(width), 0), "")
	}
	v.b.CreateStore(fn.Param(1), slot)

	next := v.b.CreateAdd(size, llvm.ConstInt(v.i64, 1, false), "")
	v.b.CreateStore(next, v.field(h, fieldSize))

	v.b.CreateRetVoid()
}

// defineGet emits Vec.get_iN(h, i): reads data[i], and for an index greater
// than size reads the last element instead of trapping. An index equal to
// size is not clamped.
func (v *VectorAPI) defineGet(width int) {
	fn := v.begin(fmt.Sprintf("Vec.get_i%d", width))
	h := v.header(fn.Param(0))
	idx := fn.Param(1)

	size := v.b.CreateLoad(v.field(h, fieldSize), "")
	last := v.b.CreateSub(size, llvm.ConstInt(v.i64, 1, false), "")
	oob := v.b.CreateICmp(llvm.IntUGT, idx, size, "")
	idx = v.b.CreateSelect(oob, last, idx, "")

	data := v.b.CreateLoad(v.field(h, fieldData), "")
	slot := v.b.CreateGEP(data, []llvm.Value{idx}, "")
	if width != 8 {
		slot = v.b.CreateBitCast(slot, llvm.PointerType(v.ctx.IntType(width), 0), "")
	}
	v.b.CreateRet(v.b.CreateLoad(slot, ""))
}

// defineSet emits Vec.set_iN(h, i, value): overwrite in bounds, append past
// the end.
func (v *VectorAPI) defineSet(width int) {
	fn := v.begin(fmt.Sprintf("Vec.set_i%d", width))
	h := v.header(fn.Param(0))
	idx := fn.Param(1)

	size := v.b.CreateLoad(v.field(h, fieldSize), "")
	last := v.b.CreateSub(size, llvm.ConstInt(v.i64, 1, false), "")
	oob := v.b.CreateICmp(llvm.IntUGT, idx, last, "")

	pushBB := llvm.AddBasicBlock(fn, "")
	storeBB := llvm.AddBasicBlock(fn, "")
	doneBB := llvm.AddBasicBlock(fn, "")
	v.b.CreateCondBr(oob, pushBB, storeBB)

	v.b.SetInsertPointAtEnd(pushBB)
	v.b.CreateCall(v.m.NamedFunction(fmt.Sprintf("Vec.push_i%d", width)),
		[]llvm.Value{fn.Param(0), fn.Param(2)}, "")
	v.b.CreateBr(doneBB)

	v.b.SetInsertPointAtEnd(storeBB)
	data := v.b.CreateLoad(v.field(h, fieldData), "")
	slot := v.b.CreateGEP(data, []llvm.Value{idx}, "")
	if width != 8 {
		slot = v.b.CreateBitCast(slot, llvm.PointerType(v.ctx.IntType(width), 0), "")
	}
	v.b.CreateStore(fn.Param(2), slot)
	v.b.CreateBr(doneBB)

	v.b.SetInsertPointAtEnd(doneBB)
	v.b.CreateRetVoid()
}

// defineClone emits Vec.clone(h): allocate a new header and copy exactly the
// header bytes. The backing buffer is shared between source and clone, which
// is why clone frees release only the header.
func (v *VectorAPI) defineClone() {
	fn := v.begin("Vec.clone")

	headerBytes := llvm.SizeOf(v.vecType)
	clone := v.b.CreateCall(v.m.NamedFunction("malloc"), []llvm.Value{headerBytes}, "")
	v.b.CreateCall(v.m.NamedFunction("memcpy"),
		[]llvm.Value{clone, fn.Param(0), headerBytes}, "")
	v.b.CreateRet(clone)
}

// defineDestroy emits Vec.destroy(h): free the backing buffer and null the
// data pointer.
func (v *VectorAPI) defineDestroy() {
	fn := v.begin("Vec.destroy")
	h := v.header(fn.Param(0))

	data := v.b.CreateLoad(v.field(h, fieldData), "")
	v.b.CreateCall(v.m.NamedFunction("free"), []llvm.Value{data}, "")
	v.b.CreateStore(llvm.ConstPointerNull(v.ptr), v.field(h, fieldData))

	v.b.CreateRetVoid()
}
