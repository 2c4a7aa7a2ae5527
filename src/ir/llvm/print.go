// print and println lower into a single printf call. The leading string
// literal becomes the format: each {} hole is replaced by the printf
// conversion of the matching argument. f32 arguments widen to double,
// string variables pass their vector data pointer.

package llvm

import (
	"fmt"
	"strings"

	"tinygo.org/x/go-llvm"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
)

// genPrint emits one print or println statement.
func (g *generator) genPrint(args []ir.Instruction, newline bool) error {
	if len(args) == 0 || args[0].Kind != ir.Str {
		return fmt.Errorf("print expects a leading string literal")
	}

	// The lexer appended the newline and zero sentinel to the literal; the
	// printf constant carries its own terminator and println's newline comes
	// from the literal body.
	format := strings.TrimSuffix(args[0].Text, token.StringSentinel)
	if newline && !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	values := make([]llvm.Value, 0, len(args))
	values = append(values, llvm.Value{}) // Slot for the format pointer.

	for i1 := 1; i1 < len(args); i1++ {
		arg := &args[i1]
		dt := arg.GetDataType()

		format = strings.Replace(format, "{}", printfSpec(dt), 1)

		val, err := g.genExpression(arg, dt)
		if err != nil {
			return err
		}

		switch {
		case dt == token.F32:
			// Varargs promote floats to double.
			val = g.b.CreateFPExt(val, g.ctx.DoubleType(), "")
		case dt == token.String && arg.Kind != ir.Str:
			// Literal arguments are already constant byte pointers.
			val = g.b.CreateCall(g.runtime("Vec.data"), []llvm.Value{val}, "")
		}
		values = append(values, val)
	}

	values[0] = g.globalString(format, 4, true)
	g.b.CreateCall(g.printf(), values, "")
	return nil
}
