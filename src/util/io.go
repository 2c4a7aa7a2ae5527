package util

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Artifact directories under the fixed output root. The layout is stable so
// runtime objects can be reused across compilations.
const (
	OutputDir     = "output"
	OutputLLVMDir = "output/llvm"
	OutputASMDir  = "output/asm"
	OutputDistDir = "output/dist"
)

// ---------------------
// ----- Functions -----
// ---------------------

// ReadSource reads the source file named by the Options structure.
func ReadSource(opt Options) ([]byte, error) {
	b, err := os.ReadFile(opt.Src)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read source file %q", opt.Src)
	}
	return b, nil
}

// PrepareOutputDirs creates the artifact directory layout if it does not
// exist yet.
func PrepareOutputDirs() error {
	for _, e1 := range []string{OutputDir, OutputLLVMDir, OutputASMDir, OutputDistDir} {
		if err := os.MkdirAll(e1, 0755); err != nil {
			return errors.Wrapf(err, "could not create artifact directory %q", e1)
		}
	}
	return nil
}

// WriteArtifact writes data to dir/name, creating the directory if needed.
// The full path of the written artifact is returned.
func WriteArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create artifact directory %q", dir)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrapf(err, "could not write artifact %q", path)
	}
	return path, nil
}
