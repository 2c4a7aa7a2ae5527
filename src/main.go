package main

import (
	"fmt"
	"os"

	"github.com/kr/pretty"
	"tinygo.org/x/go-llvm"

	"thrushc/src/backend"
	"thrushc/src/frontend"
	irllvm "thrushc/src/ir/llvm"
	"thrushc/src/util"
)

// run executes the compilation pipeline: lex, parse with integrated semantic
// resolution, the cross-block scope pass, LLVM IR generation and finally the
// external toolchain. Behaviour is defined by the util.Options structure.
func run(opt util.Options) error {
	src, err := util.ReadSource(opt)
	if err != nil {
		return err
	}

	if err := util.PrepareOutputDirs(); err != nil {
		return err
	}

	// The runtime objects build concurrently with the frontend; errors meet
	// the pipeline again before linking.
	pe := util.NewPerror(2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		backend.BuildRuntimeObjects(opt, pe)
	}()

	tokens, lexErrs := frontend.Lex(src)
	if len(lexErrs) > 0 {
		reportAll(lexErrs)
		return fmt.Errorf("compilation process ended with errors")
	}

	parser := frontend.NewParser(tokens, opt.IsMain)
	stmts, parseErrs := parser.Start()
	if len(parseErrs) > 0 {
		reportAll(parseErrs)
		return fmt.Errorf("compilation process ended with errors")
	}

	if scopeErrs := parser.Scoper().Analyze(); len(scopeErrs) > 0 {
		reportAll(scopeErrs)
		return fmt.Errorf("compilation process ended with errors")
	}

	if opt.Verbose {
		_, _ = pretty.Println(stmts)
	}

	// The runtime objects must exist before the user module drives the LLVM
	// target machinery and before the final link picks them up.
	<-done
	pe.Stop()
	if errs := pe.Errors(); len(errs) > 0 {
		for _, e1 := range errs {
			fmt.Fprintln(os.Stderr, e1)
		}
		return fmt.Errorf("could not build the runtime objects")
	}

	if err := irllvm.GenLLVM(opt, stmts); err != nil {
		return err
	}

	if opt.EmitOnlyLLVM || opt.EmitOnlyASM {
		return nil
	}

	if err := backend.Optimize(opt); err != nil {
		return err
	}
	return backend.Link(opt, backend.LinkObjects(opt))
}

// reportAll renders the collected stage diagnostics, one line each. Source
// line underlining belongs to the diagnostics collaborator.
func reportAll(errs []util.CompileError) {
	for i1 := range errs {
		fmt.Fprintln(os.Stderr, errs[i1].Error())
	}
}

func main() {
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	if opt.NativeTarget {
		fmt.Println(llvm.DefaultTargetTriple())
		os.Exit(0)
	}

	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
