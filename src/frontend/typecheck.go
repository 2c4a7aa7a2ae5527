// Type checking tables for binary and unary operators and for assignment
// sites. The tables are closed: every operator/operand combination not listed
// here is a type error. The checks are pure; they return a diagnostic value
// and never mutate parser state.

package frontend

import (
	"fmt"

	"thrushc/src/frontend/token"
	"thrushc/src/util"
)

// bothInteger reports whether both operands are integers of any width,
// including unresolved integer literals.
func bothInteger(a, b token.DataTypes) bool {
	return a.IsInteger() && b.IsInteger()
}

// bothFloat reports whether both operands are floating point.
func bothFloat(a, b token.DataTypes) bool {
	return a.IsFloat() && b.IsFloat()
}

func typeError(line int, format string, args ...interface{}) *util.CompileError {
	return &util.CompileError{
		Kind:  util.SyntaxError,
		Stage: util.StageParse,
		Title: "Type Checking",
		Help:  fmt.Sprintf(format, args...),
		Line:  line,
	}
}

// CheckBinary enforces the operator table for binary expressions.
//
// Arithmetic is defined on integer pairs and float pairs; addition
// additionally accepts string+string and string+char for the reserved
// concatenation path. Equality is defined on same-category pairs; ordering on
// numeric pairs. The logical operators accept bool pairs and integer pairs
// for bit-like use; the parser types the result Bool either way.
func CheckBinary(op token.Kind, a, b token.DataTypes, line int) *util.CompileError {
	switch op {
	case token.Plus:
		if bothInteger(a, b) || bothFloat(a, b) {
			return nil
		}
		if a == token.String && (b == token.String || b == token.Char) {
			return nil
		}
		return typeError(line,
			"Arithmetic addition (%s + %s) is impossible. Check your operands and types.",
			a.Title(), b.Title())
	case token.Minus:
		if bothInteger(a, b) || bothFloat(a, b) {
			return nil
		}
		return typeError(line,
			"Arithmetic subtraction (%s - %s) is impossible. Check your operands and types.",
			a.Title(), b.Title())
	case token.Star:
		if bothInteger(a, b) || bothFloat(a, b) {
			return nil
		}
		return typeError(line,
			"Arithmetic multiplication (%s * %s) is impossible. Check your operands and types.",
			a.Title(), b.Title())
	case token.Slash:
		if bothInteger(a, b) || bothFloat(a, b) {
			return nil
		}
		return typeError(line,
			"Arithmetic division (%s / %s) is impossible. Check your operands and types.",
			a.Title(), b.Title())
	case token.EqEq, token.BangEq:
		if bothInteger(a, b) || bothFloat(a, b) {
			return nil
		}
		if a == b && (a == token.String || a == token.Bool || a == token.Char) {
			return nil
		}
		return typeError(line,
			"Logical operation (%s %s %s) is impossible. Check your operands and types.",
			a.Title(), op, b.Title())
	case token.Greater, token.GreaterEq, token.Less, token.LessEq:
		if bothInteger(a, b) || bothFloat(a, b) {
			return nil
		}
		return typeError(line,
			"Logical operation (%s %s %s) is impossible. Check your operands and types.",
			a.Title(), op, b.Title())
	case token.And, token.Or:
		if (a == token.Bool && b == token.Bool) || bothInteger(a, b) {
			return nil
		}
		return typeError(line,
			"Logical operation (%s %s %s) is impossible. Check your operands and types.",
			a.Title(), op, b.Title())
	}
	return nil
}

// CheckUnary enforces the operator table for unary expressions: negation on
// signed numerics, increment and decrement on any numeric, logical not on
// booleans only.
func CheckUnary(op token.Kind, a token.DataTypes, line int) *util.CompileError {
	switch op {
	case token.Minus:
		switch a {
		case token.I8, token.I16, token.I32, token.I64,
			token.F32, token.F64, token.IntegerType:
			return nil
		}
		return typeError(line,
			"Negative operation (-%s) is impossible. Check your operand and type.", a.Title())
	case token.MinusMinus:
		if a.IsInteger() || a.IsFloat() {
			return nil
		}
		return typeError(line,
			"Subtractive operation (--%s or %s--) is impossible. Check your operand and type.",
			a.Title(), a.Title())
	case token.PlusPlus:
		if a.IsInteger() || a.IsFloat() {
			return nil
		}
		return typeError(line,
			"Additive operation (++%s or %s++) is impossible. Check your operand and type.",
			a.Title(), a.Title())
	case token.Bang:
		if a == token.Bool {
			return nil
		}
		return typeError(line,
			"Logical operation (!%s) is impossible. Check your operand and type.", a.Title())
	}
	return nil
}

// CheckAssign verifies that a value of the given type can initialize or be
// assigned to a target of the declared type. Implicit widening is allowed
// only toward the target; Char converts to nothing but Char, and nothing
// converts to String.
func CheckAssign(value, target token.DataTypes, line int) *util.CompileError {
	if value == target {
		return nil
	}
	mismatch := func() *util.CompileError {
		return &util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Type Mismatch",
			Help: fmt.Sprintf("Type mismatch. Expected '%s' but found '%s'.",
				target.Title(), value.Title()),
			Line: line,
		}
	}
	switch {
	case value == token.Char || target == token.Char:
		return mismatch()
	case value == token.String || target == token.String:
		return mismatch()
	case value == token.Bool || target == token.Bool:
		return mismatch()
	case value == token.IntegerType && target.IsInteger():
		return nil
	case value.IsInteger() && target.IsInteger():
		if target.Width() >= value.Width() {
			return nil
		}
		return mismatch()
	case value.IsFloat() && target.IsFloat():
		if target.Width() >= value.Width() {
			return nil
		}
		return mismatch()
	}
	return mismatch()
}
