// Package ir defines the typed instruction tree produced by the parser and
// consumed by the scoper and the LLVM generator. The tree is purely
// hierarchical; nodes carry their resolved data type so the generator never
// re-infers types.
package ir

import (
	"thrushc/src/frontend/token"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// InstrKind tags an Instruction node.
type InstrKind int

// Instruction is one node of the instruction tree. The Kind tag selects which
// fields are meaningful; unused fields keep their zero value. The shape
// mirrors one tagged union over the node set described in instruction
// comments below.
type Instruction struct {
	Kind InstrKind

	// Literals. Value holds numeric literal values; Text holds string
	// literals (with the trailing newline and zero sentinel appended by the
	// lexer); Byte holds char literals; Flag holds booleans and the
	// has-format-holes bit of strings.
	DataType token.DataTypes
	Value    float64
	Signed   bool
	Text     string
	Byte     byte
	Flag     bool

	// Variables and functions.
	Name         string
	ExternalName string
	OnlyComptime bool // Set on for-loop init clones; the generator skips them.
	FreeOnly     bool // Set on Free nodes whose header was cloned from another variable and shares its buffer.
	IsString     bool // Set on Free nodes that release a string vector.
	IsPublic     bool
	IsExternal   bool

	// Expression structure.
	Op      token.Kind
	Left    *Instruction
	Right   *Instruction
	Inner   *Instruction // Group inner expression, Unary operand, Return value, Var initializer.
	Index   uint64       // Indexe constant index.
	Line    int
	HasBody bool // Distinguishes a defined function from a bare declaration.

	// Children: block statements, function params, call/print arguments.
	Stmts  []Instruction
	Params []Instruction
	Args   []Instruction

	// ForLoop clauses and function/entry bodies.
	Init *Instruction
	Cond *Instruction
	Step *Instruction
	Body *Instruction

	// Function return type; Void when absent.
	ReturnType token.DataTypes
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Null InstrKind = iota
	Pass
	End
	Integer // DataType, Value, Signed
	Float   // DataType, Value, Signed
	Str     // Text, Flag (has format holes)
	Char    // Byte
	Boolean // Flag

	Var    // Name, DataType, Inner, Line, OnlyComptime
	MutVar // Name, DataType, Inner
	RefVar // Name, DataType, Line
	Free   // Name, IsString, FreeOnly

	Block      // Stmts
	EntryPoint // Body
	Function   // Name, ExternalName, Params, Body?, ReturnType, IsPublic, IsExternal
	Param      // Name, DataType
	Return     // Inner, DataType
	ForLoop    // Init, Cond, Step, Body

	Binary // Left, Op, Right, DataType, Line
	Unary  // Op, Inner, DataType, Line
	Group  // Inner, DataType
	Call   // Name, Args, DataType
	Indexe // Name (origin), Index, DataType

	Print   // Args
	Println // Args
)

var kindNames = map[InstrKind]string{
	Null:       "Null",
	Pass:       "Pass",
	End:        "End",
	Integer:    "Integer",
	Float:      "Float",
	Str:        "String",
	Char:       "Char",
	Boolean:    "Boolean",
	Var:        "Var",
	MutVar:     "MutVar",
	RefVar:     "RefVar",
	Free:       "Free",
	Block:      "Block",
	EntryPoint: "EntryPoint",
	Function:   "Function",
	Param:      "Param",
	Return:     "Return",
	ForLoop:    "ForLoop",
	Binary:     "Binary",
	Unary:      "Unary",
	Group:      "Group",
	Call:       "Call",
	Indexe:     "Indexe",
	Print:      "Print",
	Println:    "Println",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the node kind name.
func (k InstrKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// IsBinary reports whether the node is a binary expression, looking through
// groups.
func (in *Instruction) IsBinary() bool {
	if in.Kind == Group && in.Inner != nil {
		return in.Inner.IsBinary()
	}
	return in.Kind == Binary
}

// IsReturn reports whether the node is a return statement.
func (in *Instruction) IsReturn() bool {
	return in.Kind == Return
}

// IsIndexe reports whether the node is a string index access.
func (in *Instruction) IsIndexe() bool {
	return in.Kind == Indexe
}

// IsIndexeReturnOfString reports whether the node returns a char obtained by
// indexing a string directly. Such returns cannot be deallocated correctly at
// block exit and are rejected by the parser.
func (in *Instruction) IsIndexeReturnOfString() bool {
	if in.Kind != Return || in.Inner == nil {
		return false
	}
	return in.DataType == token.Char && in.Inner.IsIndexe()
}

// AsBinary unwraps groups and returns the underlying binary expression parts.
// The caller must have checked IsBinary first.
func (in *Instruction) AsBinary() (*Instruction, token.Kind, *Instruction, token.DataTypes) {
	if in.Kind == Group {
		return in.Inner.AsBinary()
	}
	return in.Left, in.Op, in.Right, in.DataType
}

// GetDataType returns the resolved data type of an expression node.
func (in *Instruction) GetDataType() token.DataTypes {
	switch in.Kind {
	case Integer, Float, RefVar, Group, Binary, Param, Call, Indexe:
		return in.DataType
	case Str:
		return token.String
	case Boolean:
		return token.Bool
	case Char:
		return token.Char
	case Unary:
		if in.Inner != nil {
			return in.Inner.GetDataType()
		}
		return in.DataType
	default:
		return token.Void
	}
}
