package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the driver configuration assembled from command line
// arguments. One Options value is threaded through the whole pipeline; there
// is no process global configuration.
type Options struct {
	Src          string // Path to source file.
	Output       string // Output artifact name.
	Optimization string // Optimization level passed to the external optimizer (O0..O3).
	Target       string // Target triple. Empty means host default.
	Reloc        string // Relocation mode: default, pic, static or dynamic-no-pic.
	CodeModel    string // Code model: default, small, medium, large or kernel.
	ExtraArgs    string // Opaque passthrough to the external C compiler driver.

	EmitOnlyLLVM bool // Stop after .ll emission.
	EmitOnlyASM  bool // Emit target .s instead of an object.

	Library    bool // Output shape: relocatable object.
	Static     bool // Output shape: statically linked executable (clang -static); no archive is produced.
	Dynamic    bool // Output shape: shared library.
	Executable bool // Output shape: linked executable.

	IncludeVectorAPI bool // Emit the vector runtime inline instead of linking vector.o.
	IncludeDebugAPI  bool // Emit the panic runtime inline instead of linking debug.o.
	DeleteAPIsAfter  bool // Remove synthesized runtime artifacts after linking.

	NativeTarget bool // Print the host triple and exit (resolved by the driver).
	Verbose      bool // Dump the instruction tree and the LLVM module.

	IsMain bool // Set when the positional source is the main translation unit.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "thrushc 1.0.0"

// SupportedTargets is the closed list of target triples the compiler accepts
// through --target. The host default is always allowed.
var SupportedTargets = []string{
	"x86_64-pc-linux-gnu",
	"x86_64-unknown-linux-gnu",
	"x86_64-pc-windows-msvc",
	"x86_64-apple-darwin",
	"aarch64-unknown-linux-gnu",
	"aarch64-apple-darwin",
	"riscv64-unknown-linux-gnu",
	"riscv32-unknown-none-elf",
}

var relocModes = []string{"default", "pic", "static", "dynamic-no-pic"}
var codeModels = []string{"default", "small", "medium", "large", "kernel"}

// ---------------------
// ----- Functions -----
// ---------------------

// ParseArgs parses the process arguments into an Options structure. The
// informational flags (help, version, targets) print and exit directly;
// native-target is deferred to the driver because resolving the host triple
// needs the LLVM runtime.
func ParseArgs() (Options, error) {
	return parseArgs(os.Args[1:])
}

// parseArgs is the testable core of ParseArgs.
func parseArgs(args []string) (Options, error) {
	opt := Options{
		Optimization: "O0",
		Reloc:        "default",
		CodeModel:    "default",
		Executable:   true,
	}
	shape := 0 // Count of output shape selectors seen; they are mutually exclusive.
	for i1 := 0; i1 < len(args); i1++ {
		switch normalizeFlag(args[i1]) {
		case "help", "h":
			printHelp()
			os.Exit(0)
		case "version", "v":
			fmt.Println(appVersion)
			os.Exit(0)
		case "targets":
			for _, e1 := range SupportedTargets {
				fmt.Println(e1)
			}
			os.Exit(0)
		case "native-target":
			opt.NativeTarget = true
		case "output":
			s, err := flagArg(args, i1)
			if err != nil {
				return opt, err
			}
			opt.Output = s
			i1++
		case "optimization":
			s, err := flagArg(args, i1)
			if err != nil {
				return opt, err
			}
			switch s {
			case "O0", "O1", "O2", "O3":
				opt.Optimization = s
			default:
				return opt, fmt.Errorf("unexpected optimization level %q, expected O0, O1, O2 or O3", s)
			}
			i1++
		case "emit-only-llvm":
			opt.EmitOnlyLLVM = true
		case "emit-only-asm":
			opt.EmitOnlyASM = true
		case "library":
			opt.Library, opt.Static, opt.Dynamic, opt.Executable = true, false, false, false
			shape++
		case "static":
			opt.Library, opt.Static, opt.Dynamic, opt.Executable = false, true, false, false
			shape++
		case "dynamic":
			opt.Library, opt.Static, opt.Dynamic, opt.Executable = false, false, true, false
			shape++
		case "executable":
			opt.Library, opt.Static, opt.Dynamic, opt.Executable = false, false, false, true
			shape++
		case "target":
			s, err := flagArg(args, i1)
			if err != nil {
				return opt, err
			}
			if !contains(SupportedTargets, s) {
				return opt, fmt.Errorf("the target %q is not supported, see the list with 'thrushc targets'", s)
			}
			opt.Target = s
			i1++
		case "reloc":
			s, err := flagArg(args, i1)
			if err != nil {
				return opt, err
			}
			if !contains(relocModes, s) {
				return opt, fmt.Errorf("unexpected relocation mode %q", s)
			}
			opt.Reloc = s
			i1++
		case "code-model":
			s, err := flagArg(args, i1)
			if err != nil {
				return opt, err
			}
			if !contains(codeModels, s) {
				return opt, fmt.Errorf("unexpected code model %q", s)
			}
			opt.CodeModel = s
			i1++
		case "include":
			s, err := flagArg(args, i1)
			if err != nil {
				return opt, err
			}
			switch s {
			case "vector-api":
				opt.IncludeVectorAPI = true
			case "debug-api":
				opt.IncludeDebugAPI = true
			default:
				return opt, fmt.Errorf("unexpected runtime name %q, expected vector-api or debug-api", s)
			}
			i1++
		case "delete-built-in-apis-after":
			opt.DeleteAPIsAfter = true
		case "args":
			// The passthrough value is opaque and usually starts with a dash
			// itself, so it is taken verbatim.
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			opt.ExtraArgs = args[i1+1]
			i1++
		case "vb":
			opt.Verbose = true
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			if len(opt.Src) > 0 {
				return opt, fmt.Errorf("expected one source file, got %q and %q", opt.Src, args[i1])
			}
			opt.Src = args[i1]
		}
	}
	if shape > 1 {
		return opt, fmt.Errorf("the output shape selectors --library, --static, --dynamic and --executable are mutually exclusive")
	}
	if len(opt.Src) == 0 && !opt.NativeTarget {
		return opt, fmt.Errorf("expected path to source file, got none")
	}
	if len(opt.Src) > 0 {
		if err := checkSource(&opt); err != nil {
			return opt, err
		}
	}
	return opt, nil
}

// checkSource verifies the positional source path: it must exist, be a
// regular file and carry the .th extension. A basename of main.* designates
// the main translation unit.
func checkSource(opt *Options) error {
	fi, err := os.Stat(opt.Src)
	if err != nil {
		return fmt.Errorf("could not stat source file %q: %s", opt.Src, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("source path %q is a directory, expected a file", opt.Src)
	}
	ext := filepath.Ext(opt.Src)
	if len(ext) == 0 {
		return fmt.Errorf("source file %q has no extension, expected .th", opt.Src)
	}
	if ext != ".th" {
		return fmt.Errorf("unexpected source extension %q, expected .th", ext)
	}
	base := filepath.Base(opt.Src)
	opt.IsMain = strings.TrimSuffix(base, ext) == "main"
	if len(opt.Output) == 0 {
		opt.Output = strings.TrimSuffix(base, ext)
	}
	return nil
}

// normalizeFlag strips one or two leading dashes so long and short flags are
// equivalent.
func normalizeFlag(s string) string {
	s = strings.TrimPrefix(s, "-")
	return strings.TrimPrefix(s, "-")
}

// flagArg returns the argument following the flag at index i.
func flagArg(args []string, i int) (string, error) {
	if i+1 >= len(args) {
		return "", fmt.Errorf("got flag %s but no argument", args[i])
	}
	if strings.HasPrefix(args[i+1], "-") {
		return "", fmt.Errorf("expected argument for flag %s, got new flag %s", args[i], args[i+1])
	}
	return args[i+1], nil
}

func contains(list []string, s string) bool {
	for _, e1 := range list {
		if e1 == s {
			return true
		}
	}
	return false
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "thrushc [flags] file.th")
	_, _ = fmt.Fprintln(w, "-h, --help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "-v, --version\tPrints the compiler version and exits.")
	_, _ = fmt.Fprintln(w, "targets\tPrints the supported target triples and exits.")
	_, _ = fmt.Fprintln(w, "native-target\tPrints the host target triple and exits.")
	_, _ = fmt.Fprintln(w, "--output\tName of the output artifact.")
	_, _ = fmt.Fprintln(w, "--optimization\tOptimization level for the external optimizer: O0, O1, O2 or O3.")
	_, _ = fmt.Fprintln(w, "--emit-only-llvm\tStop after emitting textual LLVM IR.")
	_, _ = fmt.Fprintln(w, "--emit-only-asm\tEmit target assembly instead of an object file.")
	_, _ = fmt.Fprintln(w, "--library\tProduce a relocatable object file.")
	_, _ = fmt.Fprintln(w, "--static\tProduce a statically linked executable.")
	_, _ = fmt.Fprintln(w, "--dynamic\tProduce a shared library.")
	_, _ = fmt.Fprintln(w, "--executable\tProduce a linked executable (default).")
	_, _ = fmt.Fprintln(w, "--target\tTarget triple. Must be in the supported list.")
	_, _ = fmt.Fprintln(w, "--reloc\tRelocation mode: default, pic, static or dynamic-no-pic.")
	_, _ = fmt.Fprintln(w, "--code-model\tCode model: default, small, medium, large or kernel.")
	_, _ = fmt.Fprintln(w, "--include\tEmit the named runtime inline: vector-api or debug-api.")
	_, _ = fmt.Fprintln(w, "--delete-built-in-apis-after\tRemove synthesized runtime artifacts after linking.")
	_, _ = fmt.Fprintln(w, "--args\tExtra arguments passed through to the external C compiler driver.")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: dump the instruction tree and the LLVM module.")
	_ = w.Flush()
}
