package util

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ErrorKind tags a CompileError with its diagnostic category.
type ErrorKind int

// Stage identifies the pipeline stage that produced a CompileError.
type Stage int

// CompileError is one diagnostic produced by a compiler stage. Errors are
// collected into bounded buffers and rendered by the driver; they are values,
// never panics.
type CompileError struct {
	Kind   ErrorKind
	Stage  Stage
	Title  string
	Help   string
	Lexeme string
	Line   int
	Start  int // Byte offset of the offending span in the source stream.
	End    int
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	SyntaxError ErrorKind = iota
	UnknownChar
	ParsedNumber
	UnreachableNumber
	VariableNotDefined
	VariableNotDeclared
	UnreachableVariable
	ObjectNotDefined
	TooManyArguments
	Compile
)

const (
	StageLex Stage = iota
	StageParse
	StageScope
	StageCompile
)

// errorCap bounds the number of diagnostics a stage may accumulate before it
// stops producing new ones.
const errorCap = 10

var kindNames = map[ErrorKind]string{
	SyntaxError:         "SyntaxError",
	UnknownChar:         "UnknownChar",
	ParsedNumber:        "ParsedNumber",
	UnreachableNumber:   "UnreachableNumber",
	VariableNotDefined:  "VariableNotDefined",
	VariableNotDeclared: "VariableNotDeclared",
	UnreachableVariable: "UnreachableVariable",
	ObjectNotDefined:    "ObjectNotDefined",
	TooManyArguments:    "TooManyArguments",
	Compile:             "Compile",
}

var stageNames = map[Stage]string{
	StageLex:     "lex",
	StageParse:   "parse",
	StageScope:   "scope",
	StageCompile: "compile",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the diagnostic category name.
func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// String returns the stage name.
func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Error renders the diagnostic on one line: line number, title and help text.
// Source-line underlining is left to the diagnostics collaborator.
func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Title, e.Help)
}

// ErrorBuffer collects diagnostics for one pipeline stage. The buffer is
// bounded: once Full reports true the stage must stop producing new
// constructs and only resynchronize.
type ErrorBuffer struct {
	errors []CompileError
}

// Append adds a diagnostic to the buffer. Appending to a full buffer is a
// no-op.
func (b *ErrorBuffer) Append(e CompileError) {
	if b.Full() {
		return
	}
	b.errors = append(b.errors, e)
}

// Full reports whether the buffer reached the stage error cap.
func (b *ErrorBuffer) Full() bool {
	return len(b.errors) >= errorCap
}

// Len returns the number of collected diagnostics.
func (b *ErrorBuffer) Len() int {
	return len(b.errors)
}

// Errors returns the collected diagnostics in insertion order.
func (b *ErrorBuffer) Errors() []CompileError {
	return b.errors
}
