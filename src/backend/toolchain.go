// Package backend drives the external LLVM toolchain and materializes the
// synthesized runtime objects. The compiler itself stops at LLVM IR; 'opt'
// runs the selected optimization pipeline and 'clang' assembles and links
// the final artifact, with their exit codes propagated.
package backend

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"

	irllvm "thrushc/src/ir/llvm"
	"thrushc/src/ir/llvm/api"
	"thrushc/src/util"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Runtime object artifact locations, stable across compilations.
const (
	VectorObjectPath = "output/dist/vector.o"
	DebugObjectPath  = "output/debug.o"
)

// ---------------------
// ----- Functions -----
// ---------------------

// BuildRuntimeObjects materializes vector.o and debug.o once and reuses them
// across compilations. Surfaces emitted inline through --include are not
// built. The two builds run one after the other, with errors funneled through
// the shared listener.
func BuildRuntimeObjects(opt util.Options, pe *util.Perror) {
	if !opt.IncludeVectorAPI {
		if _, err := os.Stat(VectorObjectPath); err != nil {
			pe.Append(buildRuntimeObject(opt, VectorObjectPath, "vector.th",
				func(m llvm.Module, b llvm.Builder, ctx llvm.Context) {
					api.NewVectorAPI(m, b, ctx).Define()
				}))
		}
	}
	if !opt.IncludeDebugAPI {
		if _, err := os.Stat(DebugObjectPath); err != nil {
			pe.Append(buildRuntimeObject(opt, DebugObjectPath, "debug.th",
				func(m llvm.Module, b llvm.Builder, ctx llvm.Context) {
					api.NewDebugAPI(m, b, ctx).Define()
				}))
		}
	}
}

// buildRuntimeObject compiles one runtime surface into an object file at the
// given path.
func buildRuntimeObject(opt util.Options, path, moduleName string,
	emit func(llvm.Module, llvm.Builder, llvm.Context)) error {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	b := ctx.NewBuilder()
	defer b.Dispose()

	m := ctx.NewModule(moduleName)
	defer m.Dispose()

	tm, triple, err := irllvm.NewTargetMachine(opt)
	if err != nil {
		return err
	}
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(triple)

	emit(m, b, ctx)

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return errors.Wrapf(err, "could not emit runtime object %q", path)
	}
	_, werr := util.WriteArtifact(filepath.Dir(path), filepath.Base(path), buf.Bytes())
	return werr
}

// DeleteRuntimeObjects removes the synthesized runtime artifacts, honoring
// --delete-built-in-apis-after.
func DeleteRuntimeObjects() {
	_ = os.Remove(VectorObjectPath)
	_ = os.Remove(DebugObjectPath)
}

// Optimize runs the external optimizer over the emitted bitcode with the
// selected pipeline. O0 is a no-op.
func Optimize(opt util.Options) error {
	if opt.Optimization == "O0" {
		return nil
	}
	bc := filepath.Join(util.OutputLLVMDir, opt.Output+".bc")
	args := optArgs(opt, bc, bc)

	cmd := exec.Command("opt", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "external optimizer failed")
	}
	return nil
}

// optArgs assembles the 'opt' argument list.
func optArgs(opt util.Options, in, out string) []string {
	return []string{
		fmt.Sprintf("-passes=default<%s>", opt.Optimization),
		in,
		"-o", out,
	}
}

// Link drives the external C compiler over the compiled objects and produces
// the selected output shape. The library shape keeps the relocatable object
// as the artifact and skips the link entirely.
func Link(opt util.Options, objects []string) error {
	if opt.Library {
		return nil
	}

	args := clangArgs(opt, objects)
	cmd := exec.Command("clang", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "external C compiler driver failed")
	}

	if opt.DeleteAPIsAfter {
		DeleteRuntimeObjects()
	}
	return nil
}

// clangArgs assembles the 'clang' argument list for the selected output
// shape, target and passthrough arguments.
func clangArgs(opt util.Options, objects []string) []string {
	args := make([]string, 0, len(objects)+8)

	switch {
	case opt.Dynamic:
		args = append(args, "-shared", "-fPIC")
	case opt.Static:
		args = append(args, "-static")
	}

	if len(opt.Target) > 0 {
		args = append(args, "--target="+opt.Target)
	}

	args = append(args, objects...)
	args = append(args, "-o", opt.Output)

	if len(opt.ExtraArgs) > 0 {
		args = append(args, strings.Fields(opt.ExtraArgs)...)
	}
	return args
}

// LinkObjects returns the object list for the final link: the compilation
// unit plus the runtime objects that were not emitted inline.
func LinkObjects(opt util.Options) []string {
	objects := []string{filepath.Join(util.OutputDistDir, opt.Output+".o")}
	if !opt.IncludeVectorAPI {
		objects = append(objects, VectorObjectPath)
	}
	if !opt.IncludeDebugAPI {
		objects = append(objects, DebugObjectPath)
	}
	return objects
}
