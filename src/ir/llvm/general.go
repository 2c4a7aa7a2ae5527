// Expression lowering: literals, references, calls, indexing, and the
// checked binary and unary operators. Integer arithmetic always goes through
// the llvm.*.with.overflow intrinsics; the overflow bit branches into a
// panic call so every add, sub, mul and div traps at runtime instead of
// wrapping.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
)

// genExpression emits one expression and returns its value, normalized to
// the expected type. Void expectation keeps the expression's own type.
func (g *generator) genExpression(n *ir.Instruction, expected token.DataTypes) (llvm.Value, error) {
	switch n.Kind {
	case ir.Integer:
		dt := expected
		if !dt.IsInteger() {
			dt = n.DataType
		}
		val := n.Value
		if n.Signed {
			val = -val
		}
		raw := uint64(val)
		if val < 0 {
			raw = uint64(int64(val))
		}
		return llvm.ConstInt(g.scalarType(dt), raw, dt.IsSigned()), nil

	case ir.Float:
		dt := expected
		if !dt.IsFloat() {
			dt = n.DataType
		}
		val := n.Value
		if n.Signed {
			val = -val
		}
		return llvm.ConstFloat(g.scalarType(dt), val), nil

	case ir.Boolean:
		v := uint64(0)
		if n.Flag {
			v = 1
		}
		return llvm.ConstInt(g.ctx.Int1Type(), v, false), nil

	case ir.Char:
		return llvm.ConstInt(g.ctx.Int8Type(), uint64(n.Byte), false), nil

	case ir.Str:
		// A string literal in expression position is its constant bytes;
		// variable initializers build vectors in genVar instead.
		return g.globalString(n.Text, 1, false), nil

	case ir.RefVar:
		v, err := g.lookup(n.Name)
		if err != nil {
			return llvm.Value{}, err
		}
		if v.kind == token.String {
			return v.ptr, nil
		}
		load := g.b.CreateLoad(v.ptr, "")
		load.SetAlignment(allocaAlign)
		return g.castScalar(load, v.kind, expected), nil

	case ir.Group:
		return g.genExpression(n.Inner, expected)

	case ir.Binary:
		val, err := g.genBinary(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.castScalar(val, n.DataType, expected), nil

	case ir.Unary:
		val, err := g.genUnary(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.castScalar(val, n.GetDataType(), expected), nil

	case ir.Call:
		val, err := g.genCall(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.castScalar(val, n.DataType, expected), nil

	case ir.Indexe:
		val, err := g.genIndexe(n)
		if err != nil {
			return llvm.Value{}, err
		}
		return val, nil

	case ir.Null:
		return llvm.ConstPointerNull(llvm.PointerType(g.ctx.Int8Type(), 0)), nil

	default:
		return llvm.Value{}, fmt.Errorf("line %d: cannot generate value for %s", n.Line, n.Kind)
	}
}

// genBinary lowers one binary expression.
func (g *generator) genBinary(n *ir.Instruction) (llvm.Value, error) {
	switch n.Op {
	case token.Plus, token.Minus, token.Star, token.Slash:
		return g.genArithmetic(n)
	case token.EqEq, token.BangEq, token.Less, token.LessEq, token.Greater, token.GreaterEq:
		return g.genComparison(n)
	case token.And, token.Or:
		return g.genLogical(n)
	}
	return llvm.Value{}, fmt.Errorf("line %d: operator %q not defined", n.Line, n.Op)
}

// genArithmetic emits float math directly and routes integer math through
// the matching overflow checked intrinsic.
func (g *generator) genArithmetic(n *ir.Instruction) (llvm.Value, error) {
	dt := n.DataType

	if dt == token.String {
		return llvm.Value{}, fmt.Errorf(
			"line %d: string concatenation is reserved and not generated yet", n.Line)
	}

	lhs, err := g.genExpression(n.Left, dt)
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := g.genExpression(n.Right, dt)
	if err != nil {
		return llvm.Value{}, err
	}

	if dt.IsFloat() {
		switch n.Op {
		case token.Plus:
			return g.b.CreateFAdd(lhs, rhs, ""), nil
		case token.Minus:
			return g.b.CreateFSub(lhs, rhs, ""), nil
		case token.Star:
			return g.b.CreateFMul(lhs, rhs, ""), nil
		default:
			return g.b.CreateFDiv(lhs, rhs, ""), nil
		}
	}

	intrinsic := g.runtime(overflowIntrinsic(n.Op, dt))
	agg := g.b.CreateCall(intrinsic, []llvm.Value{lhs, rhs}, "")
	result := g.b.CreateExtractValue(agg, 0, "")
	overflowed := g.b.CreateExtractValue(agg, 1, "")

	g.genOverflowGuard(overflowed, n)
	return result, nil
}

// genOverflowGuard branches to a panic call when the overflow bit is set and
// repositions the builder at the non-trapping successor. The panic message
// carries the source file, line, operand types and the operator.
func (g *generator) genOverflowGuard(overflowed llvm.Value, n *ir.Instruction) {
	trap := llvm.AddBasicBlock(g.fun, "")
	cont := llvm.AddBasicBlock(g.fun, "")
	g.b.CreateCondBr(overflowed, trap, cont)

	g.b.SetInsertPointAtEnd(trap)
	// Unary steps (++/--) have no Left and Right operands.
	operands := fmt.Sprintf("%s%s", n.Op, n.GetDataType().Title())
	if n.Left != nil && n.Right != nil {
		operands = fmt.Sprintf("%s %s %s", n.Left.GetDataType().Title(), n.Op, n.Right.GetDataType().Title())
	}
	msg := fmt.Sprintf("Integer or Float Overflow at %s:%d (%s).\n", g.opt.Src, n.Line, operands)
	format := g.globalString("%s", 4, true)
	payload := g.globalString(msg, 4, true)
	stderr := g.m.NamedGlobal("stderr")
	g.b.CreateCall(g.runtime("panic"), []llvm.Value{stderr, format, payload}, "")
	g.b.CreateUnreachable()

	g.b.SetInsertPointAtEnd(cont)
}

// genComparison emits icmp or fcmp with the predicate derived from the
// operator and the operand signedness.
func (g *generator) genComparison(n *ir.Instruction) (llvm.Value, error) {
	lt := n.Left.GetDataType()
	rt := n.Right.GetDataType()

	switch {
	case lt.IsInteger() && rt.IsInteger():
		common := lt.Promote(rt)
		lhs, err := g.genExpression(n.Left, common)
		if err != nil {
			return llvm.Value{}, err
		}
		rhs, err := g.genExpression(n.Right, common)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateICmp(icmpPredicate(n.Op, common.IsSigned()), lhs, rhs, ""), nil

	case lt.IsFloat() && rt.IsFloat():
		common := lt.Promote(rt)
		lhs, err := g.genExpression(n.Left, common)
		if err != nil {
			return llvm.Value{}, err
		}
		rhs, err := g.genExpression(n.Right, common)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateFCmp(fcmpPredicate(n.Op), lhs, rhs, ""), nil

	case lt == token.Char && rt == token.Char, lt == token.Bool && rt == token.Bool:
		lhs, err := g.genExpression(n.Left, lt)
		if err != nil {
			return llvm.Value{}, err
		}
		rhs, err := g.genExpression(n.Right, rt)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateICmp(icmpPredicate(n.Op, false), lhs, rhs, ""), nil

	case lt == token.String && rt == token.String:
		// Identity comparison of the header pointers; content comparison has
		// no runtime helper.
		lhs, err := g.genExpression(n.Left, lt)
		if err != nil {
			return llvm.Value{}, err
		}
		rhs, err := g.genExpression(n.Right, rt)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateICmp(icmpPredicate(n.Op, false), lhs, rhs, ""), nil
	}

	return llvm.Value{}, fmt.Errorf("line %d: comparison %q not defined for %s and %s",
		n.Line, n.Op, lt.Title(), rt.Title())
}

// genLogical emits && and ||. Boolean operands combine as i1; integer pairs
// combine bitwise at the promoted width and collapse to a boolean through a
// zero test.
func (g *generator) genLogical(n *ir.Instruction) (llvm.Value, error) {
	lt := n.Left.GetDataType()
	rt := n.Right.GetDataType()

	if lt == token.Bool && rt == token.Bool {
		lhs, err := g.genExpression(n.Left, token.Bool)
		if err != nil {
			return llvm.Value{}, err
		}
		rhs, err := g.genExpression(n.Right, token.Bool)
		if err != nil {
			return llvm.Value{}, err
		}
		if n.Op == token.And {
			return g.b.CreateAnd(lhs, rhs, ""), nil
		}
		return g.b.CreateOr(lhs, rhs, ""), nil
	}

	common := lt.Promote(rt)
	lhs, err := g.genExpression(n.Left, common)
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := g.genExpression(n.Right, common)
	if err != nil {
		return llvm.Value{}, err
	}
	var bits llvm.Value
	if n.Op == token.And {
		bits = g.b.CreateAnd(lhs, rhs, "")
	} else {
		bits = g.b.CreateOr(lhs, rhs, "")
	}
	zero := llvm.ConstInt(g.scalarType(common), 0, false)
	return g.b.CreateICmp(llvm.IntNE, bits, zero, ""), nil
}

// genUnary lowers prefix and postfix unary operators. Increment and
// decrement on a variable reference store the updated value back.
func (g *generator) genUnary(n *ir.Instruction) (llvm.Value, error) {
	switch n.Op {
	case token.Bang:
		val, err := g.genExpression(n.Inner, token.Bool)
		if err != nil {
			return llvm.Value{}, err
		}
		return g.b.CreateXor(val, llvm.ConstInt(g.ctx.Int1Type(), 1, false), ""), nil

	case token.Minus:
		dt := n.GetDataType()
		val, err := g.genExpression(n.Inner, dt)
		if err != nil {
			return llvm.Value{}, err
		}
		if dt.IsFloat() {
			return g.b.CreateFNeg(val, ""), nil
		}
		return g.b.CreateNeg(val, ""), nil

	case token.PlusPlus, token.MinusMinus:
		return g.genStep(n)
	}
	return llvm.Value{}, fmt.Errorf("line %d: unary operator %q not defined", n.Line, n.Op)
}

// genStep emits ++ and --. Integer steps reuse the overflow checked
// intrinsics; float steps use plain arithmetic.
func (g *generator) genStep(n *ir.Instruction) (llvm.Value, error) {
	dt := n.GetDataType()
	val, err := g.genExpression(n.Inner, dt)
	if err != nil {
		return llvm.Value{}, err
	}

	var updated llvm.Value
	if dt.IsFloat() {
		one := llvm.ConstFloat(g.scalarType(dt), 1)
		if n.Op == token.PlusPlus {
			updated = g.b.CreateFAdd(val, one, "")
		} else {
			updated = g.b.CreateFSub(val, one, "")
		}
	} else {
		one := llvm.ConstInt(g.scalarType(dt), 1, dt.IsSigned())
		intrinsic := g.runtime(overflowIntrinsic(n.Op, dt))
		agg := g.b.CreateCall(intrinsic, []llvm.Value{val, one}, "")
		updated = g.b.CreateExtractValue(agg, 0, "")
		overflowed := g.b.CreateExtractValue(agg, 1, "")
		g.genOverflowGuard(overflowed, n)
	}

	if n.Inner.Kind == ir.RefVar {
		v, verr := g.lookup(n.Inner.Name)
		if verr != nil {
			return llvm.Value{}, verr
		}
		st := g.b.CreateStore(g.castScalar(updated, dt, v.kind), v.ptr)
		st.SetAlignment(allocaAlign)
	}
	return updated, nil
}

// genCall emits a function call with each argument at its resolved type.
func (g *generator) genCall(n *ir.Instruction) (llvm.Value, error) {
	fn, ok := g.funcs[n.Name]
	if !ok {
		if fn = g.m.NamedFunction(n.Name); fn.IsNil() {
			return llvm.Value{}, fmt.Errorf("line %d: undeclared function %q", n.Line, n.Name)
		}
	}

	args := make([]llvm.Value, len(n.Args))
	for i1 := range n.Args {
		val, err := g.genExpression(&n.Args[i1], n.Args[i1].GetDataType())
		if err != nil {
			return llvm.Value{}, err
		}
		args[i1] = val
	}
	return g.b.CreateCall(fn, args, ""), nil
}

// genIndexe lowers string indexing through the runtime getter and spills the
// char into a stack slot so it has an addressable home.
func (g *generator) genIndexe(n *ir.Instruction) (llvm.Value, error) {
	v, err := g.lookup(n.Name)
	if err != nil {
		return llvm.Value{}, err
	}

	char := g.b.CreateCall(g.runtime("Vec.get_i8"),
		[]llvm.Value{v.ptr, llvm.ConstInt(g.ctx.Int64Type(), n.Index, false)}, "")

	home := g.b.CreateAlloca(g.ctx.Int8Type(), "")
	home.SetAlignment(allocaAlign)
	st := g.b.CreateStore(char, home)
	st.SetAlignment(allocaAlign)

	load := g.b.CreateLoad(home, "")
	load.SetAlignment(allocaAlign)
	return load, nil
}
