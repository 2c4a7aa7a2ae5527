// Package llvm transforms the instruction tree into an LLVM module through
// the go-llvm bindings and materializes the textual IR, bitcode, assembly
// and object artifacts under the fixed output layout. The module is built
// with the configured target triple and data layout; the external toolchain
// performs optimization and linking.
package llvm

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
	"thrushc/src/ir/llvm/api"
	"thrushc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// variable is one lexical binding known to the generator: an alloca for
// scalars, the heap vector header pointer for strings.
type variable struct {
	ptr  llvm.Value
	kind token.DataTypes
}

// scopeMap is one lexical scope of the generator's own symbol table.
type scopeMap map[string]*variable

// generator walks the instruction tree and builds the LLVM module.
type generator struct {
	ctx llvm.Context
	m   llvm.Module
	b   llvm.Builder
	fun llvm.Value
	opt util.Options

	st       *util.Stack // Stack of scopeMap, innermost on top.
	funcs    map[string]llvm.Value
	vec      *api.VectorAPI
	strCount int
}

// ---------------------
// ----- Constants -----
// ---------------------

const allocaAlign = 4

// ---------------------
// ----- Functions -----
// ---------------------

// GenLLVM generates the LLVM module for the parsed translation unit and
// writes the requested artifacts. Returns on the first generator error; no
// partial artifacts are written on failure.
func GenLLVM(opt util.Options, stmts []ir.Instruction) error {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	b := ctx.NewBuilder()
	defer b.Dispose()

	m := ctx.NewModule(filepath.Base(opt.Src))
	defer m.Dispose()

	tm, triple, err := NewTargetMachine(opt)
	if err != nil {
		return err
	}
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(triple)

	g := &generator{
		ctx:   ctx,
		m:     m,
		b:     b,
		opt:   opt,
		st:    &util.Stack{},
		funcs: make(map[string]llvm.Value),
	}
	g.prologue()

	// Function headers first so calls resolve independent of definition
	// order, then bodies and the entry point in source order.
	for i1 := range stmts {
		if stmts[i1].Kind == ir.Function {
			if err := g.genFuncHeader(&stmts[i1]); err != nil {
				return err
			}
		}
	}
	for i1 := range stmts {
		e1 := &stmts[i1]
		switch e1.Kind {
		case ir.Function:
			if e1.HasBody {
				if err := g.genFuncBody(e1); err != nil {
					return err
				}
			}
		case ir.EntryPoint:
			if err := g.genEntryPoint(e1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: expected function or entrypoint at the top level, got %s",
				e1.Line, e1.Kind)
		}
	}

	if opt.Verbose {
		fmt.Println("LLVM IR:")
		m.Dump()
	}

	if _, err := util.WriteArtifact(util.OutputLLVMDir, opt.Output+".ll", []byte(m.String())); err != nil {
		return err
	}
	if opt.EmitOnlyLLVM {
		return nil
	}

	buf := llvm.WriteBitcodeToMemoryBuffer(m)
	if _, err := util.WriteArtifact(util.OutputLLVMDir, opt.Output+".bc", buf.Bytes()); err != nil {
		return err
	}

	if opt.EmitOnlyASM {
		asm, aerr := tm.EmitToMemoryBuffer(m, llvm.AssemblyFile)
		if aerr != nil {
			return errors.Wrap(aerr, "could not emit assembly")
		}
		_, werr := util.WriteArtifact(util.OutputASMDir, opt.Output+".s", asm.Bytes())
		return werr
	}

	obj, oerr := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if oerr != nil {
		return errors.Wrap(oerr, "could not emit object code")
	}
	_, werr := util.WriteArtifact(util.OutputDistDir, opt.Output+".o", obj.Bytes())
	return werr
}

// NewTargetMachine configures the LLVM target for the requested triple,
// relocation mode and code model. An empty triple selects the host default.
func NewTargetMachine(opt util.Options) (llvm.TargetMachine, string, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := opt.Target
	if len(triple) == 0 {
		triple = llvm.DefaultTargetTriple()
	}

	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.TargetMachine{}, "", errors.Wrapf(err, "unsupported target triple %q", triple)
	}

	var reloc llvm.RelocMode
	switch opt.Reloc {
	case "pic":
		reloc = llvm.RelocPIC
	case "static":
		reloc = llvm.RelocStatic
	case "dynamic-no-pic":
		reloc = llvm.RelocDynamicNoPic
	default:
		reloc = llvm.RelocDefault
	}

	var model llvm.CodeModel
	switch opt.CodeModel {
	case "small":
		model = llvm.CodeModelSmall
	case "medium":
		model = llvm.CodeModelMedium
	case "large":
		model = llvm.CodeModelLarge
	case "kernel":
		model = llvm.CodeModelKernel
	default:
		model = llvm.CodeModelDefault
	}

	// Code generation runs unoptimized; the external optimizer owns the
	// pipeline selected by --optimization.
	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelNone, reloc, model)
	return tm, triple, nil
}

// prologue emits the fixed module preamble: the stdio globals, the overflow
// checked arithmetic intrinsics and the runtime surfaces in the configured
// mode.
func (g *generator) prologue() {
	ptr := llvm.PointerType(g.ctx.Int8Type(), 0)
	for _, e1 := range []string{"stderr", "stdout"} {
		glob := llvm.AddGlobal(g.m, ptr, e1)
		glob.SetLinkage(llvm.ExternalLinkage)
	}

	for _, sign := range []string{"s", "u"} {
		for _, op := range []string{"add", "sub", "mul", "div"} {
			for _, width := range []int{8, 16, 32, 64} {
				name := fmt.Sprintf("llvm.%s%s.with.overflow.i%d", sign, op, width)
				iN := g.ctx.IntType(width)
				ret := g.ctx.StructType([]llvm.Type{iN, g.ctx.Int1Type()}, false)
				llvm.AddFunction(g.m, name, llvm.FunctionType(ret, []llvm.Type{iN, iN}, false))
			}
		}
	}

	g.vec = api.NewVectorAPI(g.m, g.b, g.ctx)
	if g.opt.IncludeVectorAPI {
		g.vec.Define()
	} else {
		g.vec.Declare()
	}

	debug := api.NewDebugAPI(g.m, g.b, g.ctx)
	if g.opt.IncludeDebugAPI {
		debug.Define()
	} else {
		debug.Declare()
	}
}

// genFuncHeader declares a function: symbol name, parameter types, return
// type and linkage.
func (g *generator) genFuncHeader(n *ir.Instruction) error {
	if _, ok := g.funcs[n.Name]; ok {
		return fmt.Errorf("line %d: duplicate declaration, function %q already declared", n.Line, n.Name)
	}

	params := make([]llvm.Type, len(n.Params))
	for i1, e1 := range n.Params {
		params[i1] = g.scalarType(e1.DataType)
	}
	ftyp := llvm.FunctionType(g.scalarType(n.ReturnType), params, false)

	symbol := n.Name
	if n.IsExternal && len(n.ExternalName) > 0 {
		symbol = n.ExternalName
	}
	fun := llvm.AddFunction(g.m, symbol, ftyp)

	switch {
	case n.IsExternal:
		fun.SetLinkage(llvm.ExternalLinkage)
	case !n.IsPublic:
		fun.SetLinkage(llvm.LinkerPrivateLinkage)
	default:
		fun.SetLinkage(llvm.CommonLinkage)
	}

	for i1, e1 := range fun.Params() {
		e1.SetName(n.Params[i1].Name)
	}

	g.funcs[n.Name] = fun
	return nil
}

// genFuncBody emits a function definition. Parameters are spilled to stack
// slots so loads and stores treat them like any other local.
func (g *generator) genFuncBody(n *ir.Instruction) error {
	fun := g.funcs[n.Name]
	g.fun = fun

	bb := llvm.AddBasicBlock(fun, "")
	g.b.SetInsertPointAtEnd(bb)

	scope := scopeMap{}
	for i1, e1 := range fun.Params() {
		alloc := g.b.CreateAlloca(e1.Type(), "")
		alloc.SetAlignment(allocaAlign)
		st := g.b.CreateStore(e1, alloc)
		st.SetAlignment(allocaAlign)
		scope[n.Params[i1].Name] = &variable{ptr: alloc, kind: n.Params[i1].DataType}
	}
	g.st.Push(scope)
	defer g.st.Pop()

	terminated, err := g.gen(n.Body)
	if err != nil {
		return err
	}
	if !terminated {
		if n.ReturnType != token.Void {
			return fmt.Errorf("line %d: function %q is missing a return of type '%s'",
				n.Line, n.Name, n.ReturnType.Title())
		}
		g.b.CreateRetVoid()
	}
	return nil
}

// genEntryPoint emits the main function with integer zero return.
func (g *generator) genEntryPoint(n *ir.Instruction) error {
	ftyp := llvm.FunctionType(g.ctx.Int32Type(), nil, false)
	fun := llvm.AddFunction(g.m, "main", ftyp)
	g.fun = fun
	g.funcs["main"] = fun

	bb := llvm.AddBasicBlock(fun, "")
	g.b.SetInsertPointAtEnd(bb)

	terminated, err := g.gen(n.Body)
	if err != nil {
		return err
	}
	if !terminated {
		g.b.CreateRet(llvm.ConstInt(g.ctx.Int32Type(), 0, false))
	}
	return nil
}

// gen recursively emits one statement. The bool result reports whether the
// subtree terminated the current basic block with a return.
func (g *generator) gen(n *ir.Instruction) (bool, error) {
	switch n.Kind {
	case ir.Block:
		g.st.Push(scopeMap{})
		defer g.st.Pop()

		terminated := false
		for i1 := range n.Stmts {
			ret, err := g.gen(&n.Stmts[i1])
			if err != nil {
				return terminated, err
			}
			if ret {
				terminated = true
			}
		}
		return terminated, nil

	case ir.Var:
		return false, g.genVar(n)

	case ir.MutVar:
		return false, g.genMutVar(n)

	case ir.Free:
		return false, g.genFree(n)

	case ir.ForLoop:
		return false, g.genForLoop(n)

	case ir.Return:
		return true, g.genReturn(n)

	case ir.Print:
		return false, g.genPrint(n.Args, false)

	case ir.Println:
		return false, g.genPrint(n.Args, true)

	case ir.Call, ir.Unary, ir.Binary, ir.Indexe:
		_, err := g.genExpression(n, n.GetDataType())
		return false, err

	case ir.Param, ir.Null, ir.Pass, ir.End:
		return false, nil

	default:
		return false, nil
	}
}

// genForLoop lowers a for loop into start, body and exit blocks: the init
// declaration is emitted once before start, the condition drives the branch,
// the step runs at the end of the body.
func (g *generator) genForLoop(n *ir.Instruction) error {
	if err := g.genVar(n.Init); err != nil {
		return err
	}

	start := llvm.AddBasicBlock(g.fun, "")
	body := llvm.AddBasicBlock(g.fun, "")
	exit := llvm.AddBasicBlock(g.fun, "")

	g.b.CreateBr(start)

	g.b.SetInsertPointAtEnd(start)
	cond, err := g.genExpression(n.Cond, token.Bool)
	if err != nil {
		return err
	}
	g.b.CreateCondBr(cond, body, exit)

	g.b.SetInsertPointAtEnd(body)
	terminated, err := g.gen(n.Body)
	if err != nil {
		return err
	}
	if _, err := g.gen(n.Step); err != nil {
		return err
	}
	if !terminated {
		g.b.CreateBr(start)
	}

	g.b.SetInsertPointAtEnd(exit)
	return nil
}

// genReturn terminates the current block with a return.
func (g *generator) genReturn(n *ir.Instruction) error {
	if n.DataType == token.Void {
		g.b.CreateRetVoid()
		return nil
	}
	val, err := g.genExpression(n.Inner, n.DataType)
	if err != nil {
		return err
	}
	g.b.CreateRet(val)
	return nil
}

// lookup scans the generator's scope stack innermost outward.
func (g *generator) lookup(name string) (*variable, error) {
	for i1 := 1; i1 <= g.st.Size(); i1++ {
		if scope, ok := g.st.Get(i1).(scopeMap); ok {
			if v, ok := scope[name]; ok {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("undeclared variable %q", name)
}

// declare registers a binding in the innermost scope.
func (g *generator) declare(name string, v *variable) {
	if scope, ok := g.st.Peek().(scopeMap); ok {
		scope[name] = v
	}
}
