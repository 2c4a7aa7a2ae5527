// Variable lowering. Scalars live in 4-aligned stack slots; strings live in
// heap vector headers driven through the Vec runtime: init + push per byte
// for literals, clone for copies, realloc(reset) + push for reassignment and
// destroy + free for deallocation.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
)

// i8 vector type tag used by the runtime for string elements.
const stringTypeTag = 1

// genVar emits one variable declaration. Clones marked only_comptime exist
// for the frontend passes and are skipped here.
func (g *generator) genVar(n *ir.Instruction) error {
	if n.OnlyComptime {
		return nil
	}

	if n.DataType == token.String {
		header, err := g.genStringInit(n)
		if err != nil {
			return err
		}
		g.declare(n.Name, &variable{ptr: header, kind: token.String})
		return nil
	}

	t := g.scalarType(n.DataType)
	alloc := g.b.CreateAlloca(t, n.Name)
	alloc.SetAlignment(allocaAlign)

	var val llvm.Value
	if n.Inner == nil || n.Inner.Kind == ir.Null {
		// Omitted initializer: zero-filled scalar.
		if n.DataType.IsFloat() {
			val = llvm.ConstFloat(t, 0)
		} else {
			val = llvm.ConstInt(t, 0, false)
		}
	} else {
		v, err := g.genExpression(n.Inner, n.DataType)
		if err != nil {
			return err
		}
		val = v
	}

	st := g.b.CreateStore(val, alloc)
	st.SetAlignment(allocaAlign)

	g.declare(n.Name, &variable{ptr: alloc, kind: n.DataType})
	return nil
}

// genStringInit produces the heap vector header for a string declaration.
func (g *generator) genStringInit(n *ir.Instruction) (llvm.Value, error) {
	if n.Inner == nil || n.Inner.Kind == ir.Null {
		// Null initialization: an empty vector so later reassignment can
		// realloc in place.
		return g.emitStringVector(""), nil
	}

	switch n.Inner.Kind {
	case ir.Str:
		return g.emitStringVector(n.Inner.Text), nil

	case ir.RefVar:
		src, err := g.lookup(n.Inner.Name)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateCall(g.runtime("Vec.clone"), []llvm.Value{src.ptr}, ""), nil

	case ir.Call:
		return g.genCall(n.Inner)

	default:
		return llvm.Value{}, fmt.Errorf(
			"line %d: cannot initialize string %q from %s", n.Line, n.Name, n.Inner.Kind)
	}
}

// emitStringVector allocates a vector header and pushes every byte of the
// literal, sentinel included.
func (g *generator) emitStringVector(text string) llvm.Value {
	i64 := g.ctx.Int64Type()
	i8 := g.ctx.Int8Type()

	header := g.b.CreateCall(g.runtime("malloc"),
		[]llvm.Value{llvm.SizeOf(g.vec.Type())}, "")
	g.b.CreateCall(g.runtime("Vec.init"), []llvm.Value{
		header,
		llvm.ConstInt(i64, uint64(len(text)), false),
		llvm.ConstInt(i64, 1, false),
		llvm.ConstInt(i8, stringTypeTag, false),
	}, "")

	for i1 := 0; i1 < len(text); i1++ {
		g.b.CreateCall(g.runtime("Vec.push_i8"), []llvm.Value{
			header,
			llvm.ConstInt(i8, uint64(text[i1]), false),
		}, "")
	}
	return header
}

// genMutVar emits a reassignment of an existing binding.
func (g *generator) genMutVar(n *ir.Instruction) error {
	v, err := g.lookup(n.Name)
	if err != nil {
		return err
	}

	if v.kind != token.String {
		val, verr := g.genExpression(n.Inner, v.kind)
		if verr != nil {
			return verr
		}
		st := g.b.CreateStore(val, v.ptr)
		st.SetAlignment(allocaAlign)
		return nil
	}

	switch n.Inner.Kind {
	case ir.Str:
		// Empty the vector, size the buffer for the new contents, refill.
		text := n.Inner.Text
		g.b.CreateCall(g.runtime("Vec.realloc"), []llvm.Value{
			v.ptr,
			llvm.ConstInt(g.ctx.Int64Type(), uint64(len(text)), false),
			llvm.ConstInt(g.ctx.Int1Type(), 1, false),
		}, "")
		for i1 := 0; i1 < len(text); i1++ {
			g.b.CreateCall(g.runtime("Vec.push_i8"), []llvm.Value{
				v.ptr,
				llvm.ConstInt(g.ctx.Int8Type(), uint64(text[i1]), false),
			}, "")
		}
		return nil

	case ir.RefVar:
		src, serr := g.lookup(n.Inner.Name)
		if serr != nil {
			return serr
		}
		g.b.CreateCall(g.runtime("Vec.destroy"), []llvm.Value{v.ptr}, "")
		g.b.CreateCall(g.runtime("free"), []llvm.Value{v.ptr}, "")
		v.ptr = g.b.CreateCall(g.runtime("Vec.clone"), []llvm.Value{src.ptr}, "")
		return nil

	default:
		return fmt.Errorf("line %d: cannot assign %s to string %q", n.Line, n.Inner.Kind, n.Name)
	}
}

// genFree releases a string binding at block exit. A free-only binding holds
// a cloned header whose buffer is shared with the original, so only the
// header is released.
func (g *generator) genFree(n *ir.Instruction) error {
	v, err := g.lookup(n.Name)
	if err != nil {
		return err
	}
	if !n.IsString {
		return nil
	}

	if !n.FreeOnly {
		g.b.CreateCall(g.runtime("Vec.destroy"), []llvm.Value{v.ptr}, "")
	}
	g.b.CreateCall(g.runtime("free"), []llvm.Value{v.ptr}, "")
	return nil
}
