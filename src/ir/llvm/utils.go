package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"thrushc/src/frontend/token"
)

// scalarType maps a language data type onto its LLVM representation. Strings
// are represented as a pointer to the heap vector header.
func (g *generator) scalarType(dt token.DataTypes) llvm.Type {
	switch dt {
	case token.U8, token.I8, token.Char:
		return g.ctx.Int8Type()
	case token.U16, token.I16:
		return g.ctx.Int16Type()
	case token.U32, token.I32:
		return g.ctx.Int32Type()
	case token.U64, token.I64, token.IntegerType:
		return g.ctx.Int64Type()
	case token.F32:
		return g.ctx.FloatType()
	case token.F64:
		return g.ctx.DoubleType()
	case token.Bool:
		return g.ctx.Int1Type()
	case token.String:
		return llvm.PointerType(g.ctx.Int8Type(), 0)
	default:
		return g.ctx.VoidType()
	}
}

// castScalar normalizes a loaded value from one numeric type to another:
// zero-extension for unsigned sources, sign-extension for signed ones,
// truncation for narrowing, fpext/fptrunc for floats.
func (g *generator) castScalar(val llvm.Value, from, to token.DataTypes) llvm.Value {
	if from == to || to == token.Void {
		return val
	}

	switch {
	case from.IsInteger() && to.IsInteger():
		fw, tw := from.Width(), to.Width()
		t := g.scalarType(to)
		switch {
		case tw > fw && from.IsSigned():
			return g.b.CreateSExt(val, t, "")
		case tw > fw:
			return g.b.CreateZExt(val, t, "")
		case tw < fw:
			return g.b.CreateTrunc(val, t, "")
		}
		return val
	case from.IsFloat() && to.IsFloat():
		if to.Width() > from.Width() {
			return g.b.CreateFPExt(val, g.scalarType(to), "")
		}
		if to.Width() < from.Width() {
			return g.b.CreateFPTrunc(val, g.scalarType(to), "")
		}
		return val
	}
	return val
}

// icmpPredicate maps a comparison operator onto the integer predicate for
// the given signedness.
func icmpPredicate(op token.Kind, signed bool) llvm.IntPredicate {
	switch op {
	case token.EqEq:
		return llvm.IntEQ
	case token.BangEq:
		return llvm.IntNE
	case token.Less:
		if signed {
			return llvm.IntSLT
		}
		return llvm.IntULT
	case token.LessEq:
		if signed {
			return llvm.IntSLE
		}
		return llvm.IntULE
	case token.Greater:
		if signed {
			return llvm.IntSGT
		}
		return llvm.IntUGT
	case token.GreaterEq:
		if signed {
			return llvm.IntSGE
		}
		return llvm.IntUGE
	}
	return llvm.IntEQ
}

// fcmpPredicate maps a comparison operator onto the ordered float predicate.
func fcmpPredicate(op token.Kind) llvm.FloatPredicate {
	switch op {
	case token.EqEq:
		return llvm.FloatOEQ
	case token.BangEq:
		return llvm.FloatONE
	case token.Less:
		return llvm.FloatOLT
	case token.LessEq:
		return llvm.FloatOLE
	case token.Greater:
		return llvm.FloatOGT
	case token.GreaterEq:
		return llvm.FloatOGE
	}
	return llvm.FloatOEQ
}

// overflowIntrinsic returns the llvm.*.with.overflow intrinsic name for the
// operator at the given type.
func overflowIntrinsic(op token.Kind, dt token.DataTypes) string {
	sign := "u"
	if dt.IsSigned() {
		sign = "s"
	}
	var name string
	switch op {
	case token.Plus, token.PlusPlus:
		name = "add"
	case token.Minus, token.MinusMinus:
		name = "sub"
	case token.Star:
		name = "mul"
	case token.Slash:
		name = "div"
	}
	return fmt.Sprintf("llvm.%s%s.with.overflow.i%d", sign, name, dt.Width())
}

// printfSpec returns the printf conversion for one print argument type.
func printfSpec(dt token.DataTypes) string {
	switch {
	case dt == token.Char:
		return "%c"
	case dt == token.String:
		return "%s"
	case dt.IsFloat():
		return "%f"
	case dt == token.U64 || dt == token.I64:
		return "%ld"
	default:
		// Bool and the narrower integers print through %d.
		return "%d"
	}
}

// globalString emits a private unnamed_addr constant array holding the bytes
// of s and returns an i8* to its first element. Format strings and panic
// messages use alignment 4, literal data constants alignment 1. addNull appends the terminator for
// strings that do not already carry the lexer sentinel.
func (g *generator) globalString(s string, align int, addNull bool) llvm.Value {
	arr := llvm.ConstString(s, addNull)
	glob := llvm.AddGlobal(g.m, arr.Type(), fmt.Sprintf("L_STR.%d", g.strCount))
	g.strCount++
	glob.SetInitializer(arr)
	glob.SetLinkage(llvm.LinkerPrivateLinkage)
	glob.SetUnnamedAddr(true)
	glob.SetGlobalConstant(true)
	glob.SetAlignment(align)

	zero := llvm.ConstInt(g.ctx.Int32Type(), 0, false)
	return llvm.ConstInBoundsGEP(glob, []llvm.Value{zero, zero})
}

// printf returns the module's printf declaration, creating it on demand.
func (g *generator) printf() llvm.Value {
	if pf := g.m.NamedFunction("printf"); !pf.IsNil() {
		return pf
	}
	args := []llvm.Type{llvm.PointerType(g.ctx.Int8Type(), 0)}
	ftyp := llvm.FunctionType(g.ctx.Int32Type(), args, true)
	return llvm.AddFunction(g.m, "printf", ftyp)
}

// runtime returns the named runtime function. The prologue declared the
// whole surface, so a miss is a generator bug.
func (g *generator) runtime(name string) llvm.Value {
	return g.m.NamedFunction(name)
}
