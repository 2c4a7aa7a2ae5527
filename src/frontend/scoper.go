// The scoper is a post-parse sanity pass over every parsed block. The parser
// registers each block's statement list in completion order, so a block's
// enclosing blocks always appear later in the list. For every variable
// reference the scoper checks that a matching declaration is visible: either
// directly in the same block or directly in a later (enclosing) one, and that
// the declaration's source line does not follow the use. Declarations inside
// nested blocks are invisible; one rule covers both checks the frontend used
// to duplicate.

package frontend

import (
	"fmt"

	"thrushc/src/ir"
	"thrushc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Scoper verifies cross-block variable reachability after parsing.
type Scoper struct {
	blocks [][]ir.Instruction
	errs   util.ErrorBuffer
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewScoper returns an empty scoper.
func NewScoper() *Scoper {
	return &Scoper{}
}

// AddScope registers one completed block's statement list. The parser calls
// it on every block exit, innermost blocks first.
func (s *Scoper) AddScope(stmts []ir.Instruction) {
	s.blocks = append(s.blocks, stmts)
}

// Analyze walks every block in reverse depth order and returns the
// reachability diagnostics.
func (s *Scoper) Analyze() []util.CompileError {
	for depth := len(s.blocks) - 1; depth >= 0; depth-- {
		for i1 := len(s.blocks[depth]) - 1; i1 >= 0; i1-- {
			s.analyzeInstruction(&s.blocks[depth][i1], depth)
		}
	}
	return s.errs.Errors()
}

// analyzeInstruction hunts for variable references in one statement. Nested
// blocks are skipped: they were registered as their own scopes.
func (s *Scoper) analyzeInstruction(in *ir.Instruction, depth int) {
	if in == nil || s.errs.Full() {
		return
	}

	switch in.Kind {
	case ir.RefVar:
		s.checkReference(in, depth)
	case ir.Block, ir.EntryPoint, ir.Function, ir.ForLoop:
		// Registered separately by the parser.
	case ir.Var, ir.MutVar, ir.Return, ir.Group, ir.Unary:
		s.analyzeInstruction(in.Inner, depth)
	case ir.Binary:
		s.analyzeInstruction(in.Left, depth)
		s.analyzeInstruction(in.Right, depth)
	case ir.Print, ir.Println, ir.Call:
		for i1 := range in.Args {
			s.analyzeInstruction(&in.Args[i1], depth)
		}
	}
}

// checkReference verifies one variable reference against the visible
// declarations of its own and the enclosing blocks.
func (s *Scoper) checkReference(ref *ir.Instruction, depth int) {
	reachable := false
	declaredAnywhere := false

	for d := depth; d < len(s.blocks) && !reachable; d++ {
		for i1 := range s.blocks[d] {
			e1 := &s.blocks[d][i1]
			if !isDeclaration(e1) || e1.Name != ref.Name {
				continue
			}
			declaredAnywhere = true
			if e1.Line <= ref.Line {
				reachable = true
				break
			}
		}
	}

	if reachable {
		return
	}

	// Distinguish a name that exists in some unreachable nested block from
	// one that does not exist at all.
	if !declaredAnywhere {
		for d := 0; d < depth && !declaredAnywhere; d++ {
			for i1 := range s.blocks[d] {
				e1 := &s.blocks[d][i1]
				if isDeclaration(e1) && e1.Name == ref.Name {
					declaredAnywhere = true
					break
				}
			}
		}
	}

	if declaredAnywhere {
		s.errs.Append(util.CompileError{
			Kind:  util.UnreachableVariable,
			Stage: util.StageScope,
			Title: "Unreacheable Variable",
			Help: fmt.Sprintf(
				"The variable `%s` is unreacheable from the current scope.", ref.Name),
			Line: ref.Line,
		})
		return
	}

	s.errs.Append(util.CompileError{
		Kind:  util.VariableNotDefined,
		Stage: util.StageScope,
		Title: "Undefined Variable",
		Help:  fmt.Sprintf("The variable `%s` not found in this scope.", ref.Name),
		Line:  ref.Line,
	})
}

// isDeclaration reports whether the statement introduces a name into its
// block: a var declaration or a function parameter.
func isDeclaration(in *ir.Instruction) bool {
	return in.Kind == ir.Var || in.Kind == ir.Param
}
