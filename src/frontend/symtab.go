// The symbol table spans two disjoint namespaces: a stack of local scope
// layers driven by block entry and exit, and a flat global table holding
// function signatures registered by the forward-declaration pass. Local
// entries carry the ownership state that drives automatic string cleanup.

package frontend

import (
	"fmt"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
	"thrushc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// LocalSymbol is one local variable binding.
type LocalSymbol struct {
	Kind     token.DataTypes
	IsNull   bool // Declared without an initializer.
	IsFreed  bool // Ownership was transferred; no block-exit free.
	FreeOnly bool // Holds a cloned header sharing another binding's buffer; only the header is freed at exit.
	RefCount int  // Unresolved syntactic uses; drives deallocator synthesis.
}

// GlobalSymbol is one function signature.
type GlobalSymbol struct {
	ReturnKind   token.DataTypes
	Params       []token.DataTypes
	IsFunction   bool
	IgnoreParams bool // Variadic-like: skip arity and per-position checks.
}

// FoundObject is the snapshot returned by a name lookup, flattened over both
// namespaces.
type FoundObject struct {
	Kind         token.DataTypes
	IsNull       bool
	IsFreed      bool
	IsFunction   bool
	IgnoreParams bool
	Params       []token.DataTypes
	RefCount     int
}

// scopeLayer is one local scope. Insertion order is preserved so deallocators
// come out in reverse declaration order.
type scopeLayer struct {
	names   []string
	symbols map[string]*LocalSymbol
}

// SymbolTable holds the layered locals and the flat globals.
type SymbolTable struct {
	locals  []*scopeLayer
	globals map[string]GlobalSymbol
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewSymbolTable returns a symbol table with the root local scope in place.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		locals:  []*scopeLayer{newScopeLayer()},
		globals: make(map[string]GlobalSymbol),
	}
}

func newScopeLayer() *scopeLayer {
	return &scopeLayer{symbols: make(map[string]*LocalSymbol)}
}

// BeginScope pushes a new local scope layer.
func (st *SymbolTable) BeginScope() {
	st.locals = append(st.locals, newScopeLayer())
}

// EndScope pops the innermost local scope layer.
func (st *SymbolTable) EndScope() {
	if len(st.locals) > 1 {
		st.locals = st.locals[:len(st.locals)-1]
	}
}

// Depth returns the number of local scope layers.
func (st *SymbolTable) Depth() int {
	return len(st.locals)
}

// InsertLocal places a binding at the given scope depth. Re-inserting a name
// overwrites the previous binding at that depth; insertion order is kept from
// the first insert.
func (st *SymbolTable) InsertLocal(scope int, name string, sym LocalSymbol) {
	if scope < 0 || scope >= len(st.locals) {
		scope = len(st.locals) - 1
	}
	layer := st.locals[scope]
	if _, ok := layer.symbols[name]; !ok {
		layer.names = append(layer.names, name)
	}
	s := sym
	layer.symbols[name] = &s
}

// InsertGlobal registers a function signature.
func (st *SymbolTable) InsertGlobal(name string, sym GlobalSymbol) {
	st.globals[name] = sym
}

// Lookup scans the local scopes innermost outward, then the globals. A local
// hit increments the binding's reference count and returns a snapshot.
func (st *SymbolTable) Lookup(name string, line int) (FoundObject, *util.CompileError) {
	for i1 := len(st.locals) - 1; i1 >= 0; i1-- {
		if sym, ok := st.locals[i1].symbols[name]; ok {
			sym.RefCount++
			return FoundObject{
				Kind:     sym.Kind,
				IsNull:   sym.IsNull,
				IsFreed:  sym.IsFreed,
				RefCount: sym.RefCount,
			}, nil
		}
	}

	if sym, ok := st.globals[name]; ok {
		params := make([]token.DataTypes, len(sym.Params))
		copy(params, sym.Params)
		return FoundObject{
			Kind:         sym.ReturnKind,
			IsFunction:   sym.IsFunction,
			IgnoreParams: sym.IgnoreParams,
			Params:       params,
		}, nil
	}

	return FoundObject{}, &util.CompileError{
		Kind:  util.ObjectNotDefined,
		Stage: util.StageParse,
		Title: "Object not Found",
		Help: fmt.Sprintf(
			"Object with name %q is not in this scope or the global scope.", name),
		Line: line,
	}
}

// ModifyDeallocation updates the ownership state of the named binding in the
// nearest scope that holds it. FreeOnly marks a binding that holds a cloned
// header sharing another binding's buffer; freed marks a binding whose
// ownership was transferred out.
func (st *SymbolTable) ModifyDeallocation(name string, freeOnly, freed bool) {
	for i1 := len(st.locals) - 1; i1 >= 0; i1-- {
		if sym, ok := st.locals[i1].symbols[name]; ok {
			sym.IsFreed = freed
			sym.FreeOnly = freeOnly
			return
		}
	}
}

// CreateDeallocators returns one Free instruction per string binding of the
// given scope that is still owned: not null, not freed, and without remaining
// references. The bindings are marked freed and the instructions come out in
// reverse declaration order.
func (st *SymbolTable) CreateDeallocators(scope int) []ir.Instruction {
	if scope < 0 || scope >= len(st.locals) {
		scope = len(st.locals) - 1
	}
	layer := st.locals[scope]

	frees := make([]ir.Instruction, 0, len(layer.names))
	for i1 := len(layer.names) - 1; i1 >= 0; i1-- {
		name := layer.names[i1]
		sym := layer.symbols[name]
		if sym.Kind != token.String || sym.IsNull || sym.IsFreed || sym.RefCount != 0 {
			continue
		}
		frees = append(frees, ir.Instruction{
			Kind:     ir.Free,
			Name:     name,
			IsString: true,
			FreeOnly: sym.FreeOnly,
		})
		sym.IsFreed = true
	}
	return frees
}

// DecreaseRefs decrements every positive reference count by one. The parser
// calls it after each parsed expression, so a count of zero means the
// binding's last syntactic use is past.
func (st *SymbolTable) DecreaseRefs() {
	for _, layer := range st.locals {
		for _, sym := range layer.symbols {
			if sym.RefCount > 0 {
				sym.RefCount--
			}
		}
	}
}
