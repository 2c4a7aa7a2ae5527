// Recursive descent parser with integrated semantic resolution. Every
// production returns a typed instruction; type checks, symbol registration
// and string lifetime annotation happen while parsing. Errors are collected
// into the bounded stage buffer and the parser resynchronizes at the next
// 'var' or 'fn' keyword, so one run reports as many diagnostics as possible.
//
// Before the main pass, a forward-declaration pass scans the token stream for
// every 'fn' and registers the signature in the global symbol table, which is
// what makes forward calls between functions work.

package frontend

import (
	"fmt"
	"strings"

	"thrushc/src/frontend/token"
	"thrushc/src/ir"
	"thrushc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Parser produces the instruction tree from a materialized token sequence.
type Parser struct {
	tokens  []token.Token
	current int

	stmts   []ir.Instruction
	errs    util.ErrorBuffer
	objects *SymbolTable
	scoper  *Scoper

	inFunction     bool
	inTypeFunction token.DataTypes
	inVarType      token.DataTypes
	scope          int

	hasEntryPoint bool
	isMain        bool
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewParser returns a parser over the token sequence. isMain marks the
// source as the main translation unit, which is the only place an entry
// point is recognized.
func NewParser(tokens []token.Token, isMain bool) *Parser {
	return &Parser{
		tokens:         tokens,
		objects:        NewSymbolTable(),
		scoper:         NewScoper(),
		inTypeFunction: token.Void,
		inVarType:      token.Void,
		isMain:         isMain,
	}
}

// Objects exposes the symbol table, mainly for tests.
func (p *Parser) Objects() *SymbolTable {
	return p.objects
}

// Scoper returns the cross-block scope checker fed during parsing.
func (p *Parser) Scoper() *Scoper {
	return p.scoper
}

// Start runs the forward-declaration pass and the main parse. It returns the
// instruction tree and the collected diagnostics; a non-empty diagnostic list
// makes the tree unusable for IR generation.
func (p *Parser) Start() ([]ir.Instruction, []util.CompileError) {
	p.forwardDeclareFunctions()

	for !p.end() && !p.errs.Full() {
		instr, err := p.parse()
		if err != nil {
			p.errs.Append(*err)
			p.sync()
			continue
		}
		p.stmts = append(p.stmts, instr)
	}

	if p.isMain && !p.hasEntryPoint && p.errs.Len() == 0 {
		p.errs.Append(util.CompileError{
			Kind:  util.Compile,
			Stage: util.StageParse,
			Title: "Missing EntryPoint",
			Help:  "Missing entrypoint \"fn main() {}\" in main.th file.",
			Line:  1,
		})
	}

	return p.stmts, p.errs.Errors()
}

// parse dispatches on the next statement keyword.
func (p *Parser) parse() (ir.Instruction, *util.CompileError) {
	switch p.peek().Kind {
	case token.Println:
		return p.println()
	case token.Print:
		return p.print()
	case token.Fn:
		return p.function(false, false, "")
	case token.LBrace:
		return p.block(nil)
	case token.Return:
		return p.ret()
	case token.Public:
		return p.public()
	case token.Var:
		return p.variable(false)
	case token.For:
		return p.forLoop()
	case token.External:
		return p.external()
	default:
		instr, err := p.expression()
		if err != nil {
			return instr, err
		}
		p.matchToken(token.SemiColon)
		return instr, nil
	}
}

// external parses an external("Name") attribute and the function declaration
// it decorates.
func (p *Parser) external() (ir.Instruction, *util.CompileError) {
	isPublic := p.previousIs(token.Public)

	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}
	line := p.previous().Line

	if _, err := p.consume(token.LParen, util.SyntaxError, "Syntax Error", "Expected '('.", line); err != nil {
		return ir.Instruction{}, err
	}
	name, err := p.consume(token.Str, util.SyntaxError, "Syntax Error",
		"Expected String literal for external(\"NAME\").", line)
	if err != nil {
		return ir.Instruction{}, err
	}
	if _, err := p.consume(token.RParen, util.SyntaxError, "Syntax Error", "Expected ')'.", line); err != nil {
		return ir.Instruction{}, err
	}

	if p.peek().Kind != token.Fn {
		return ir.Instruction{}, &util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected 'fn' after the external attribute.",
			Line:  line,
		}
	}

	// The lexer appended the printf sentinel to the literal; the symbol name
	// is the bare body.
	symbol := strings.TrimSuffix(name.Lexeme, stringSentinel)
	return p.function(isPublic, true, symbol)
}

// public parses the pub prefix for functions and external declarations.
func (p *Parser) public() (ir.Instruction, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}

	switch p.peek().Kind {
	case token.Fn:
		return p.function(true, false, "")
	case token.External:
		return p.external()
	default:
		return ir.Instruction{}, &util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected 'fn' or 'external' after 'pub'.",
			Line:  p.peek().Line,
		}
	}
}

// function parses a function definition or declaration. The special function
// main() in the main translation unit produces the entry point.
func (p *Parser) function(isPublic, isExternal bool, externalName string) (ir.Instruction, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}

	if p.scope != 0 {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "The functions must go in the global scope. Rewrite it in the global scope.",
			Line:  p.previous().Line,
		})
	}

	p.inFunction = true
	defer func() { p.inFunction = false }()

	name, err := p.consume(token.Identifier, util.SyntaxError, "Expected function name",
		"Expected a name for the function.", p.previous().Line)
	if err != nil {
		return ir.Instruction{}, err
	}

	if name.Lexeme == "main" && p.isMain {
		return p.entryPoint(name)
	}

	if _, err := p.consume(token.LParen, util.SyntaxError, "Syntax Error", "Expected '('.", name.Line); err != nil {
		return ir.Instruction{}, err
	}

	params := make([]ir.Instruction, 0, 8)
	for !p.matchToken(token.RParen) {
		if p.end() {
			return ir.Instruction{}, p.eofError()
		}
		if p.matchToken(token.Comma) || p.matchToken(token.Pass) {
			continue
		}

		if !p.matchToken(token.Identifier) {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Expected argument name.",
				Line:  name.Line,
			})
			if err := p.onlyAdvance(); err != nil {
				return ir.Instruction{}, err
			}
			continue
		}
		ident := p.previous().Lexeme

		if !p.matchToken(token.ColonColon) {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Expected '::'.",
				Line:  name.Line,
			})
		}

		kind := token.Void
		if p.peek().Kind == token.DataType {
			kind = p.peek().DataType
			if err := p.onlyAdvance(); err != nil {
				return ir.Instruction{}, err
			}
		} else {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Expected argument type.",
				Line:  name.Line,
			})
		}

		params = append(params, ir.Instruction{
			Kind:     ir.Param,
			Name:     ident,
			DataType: kind,
			Line:     name.Line,
		})
	}

	returnKind := token.Void
	if p.matchToken(token.Colon) {
		if p.peek().Kind == token.DataType {
			returnKind = p.peek().DataType
			if err := p.onlyAdvance(); err != nil {
				return ir.Instruction{}, err
			}
		} else {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Missing return type. Expected ':' followed by return type.",
				Line:  name.Line,
			})
		}
	}
	p.inTypeFunction = returnKind

	fun := ir.Instruction{
		Kind:         ir.Function,
		Name:         name.Lexeme,
		ExternalName: externalName,
		Params:       params,
		ReturnType:   returnKind,
		IsPublic:     isPublic,
		IsExternal:   isExternal,
		Line:         name.Line,
	}

	if p.matchToken(token.SemiColon) {
		if !isExternal {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Only external functions can omit the body.",
				Line:  name.Line,
			})
		}
		return fun, nil
	}

	body, err := p.block(params)
	if err != nil {
		return ir.Instruction{}, err
	}
	fun.Body = &body
	fun.HasBody = true
	return fun, nil
}

// entryPoint parses fn main() { ... } in the main translation unit.
func (p *Parser) entryPoint(name token.Token) (ir.Instruction, *util.CompileError) {
	if p.hasEntryPoint {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Duplicated EntryPoint",
			Help:  "The language not support two entrypoints, remove one.",
			Line:  name.Line,
		})
	}

	if _, err := p.consume(token.LParen, util.SyntaxError, "Syntax Error", "Expected '('.", name.Line); err != nil {
		return ir.Instruction{}, err
	}
	if _, err := p.consume(token.RParen, util.SyntaxError, "Syntax Error", "Expected ')'.", name.Line); err != nil {
		return ir.Instruction{}, err
	}

	// fn main(): void is tolerated; the return type must be void either way.
	if p.matchToken(token.Colon) {
		if p.peek().Kind != token.DataType || p.peek().DataType != token.Void {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "The entrypoint must return 'void'.",
				Line:  name.Line,
			})
		}
		if p.peek().Kind == token.DataType {
			if err := p.onlyAdvance(); err != nil {
				return ir.Instruction{}, err
			}
		}
	}

	if p.peek().Kind != token.LBrace {
		return ir.Instruction{}, &util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected 'block ({ ... })' for the function body.",
			Line:  p.peek().Line,
		}
	}

	p.hasEntryPoint = true
	p.inTypeFunction = token.Void

	body, err := p.block(nil)
	if err != nil {
		return ir.Instruction{}, err
	}
	return ir.Instruction{
		Kind: ir.EntryPoint,
		Body: &body,
		Line: name.Line,
	}, nil
}

// block parses a lexical { ... } region. The withInstrs are prepended to the
// block's statements: function parameters and for-loop init clones enter the
// new scope this way. String deallocators are synthesized at every return and,
// unless a return in the block already emitted them, at the block end.
func (p *Parser) block(withInstrs []ir.Instruction) (ir.Instruction, *util.CompileError) {
	line := p.peek().Line
	if _, err := p.consume(token.LBrace, util.SyntaxError, "Syntax Error", "Expected '{'.", line); err != nil {
		return ir.Instruction{}, err
	}

	p.objects.BeginScope()
	p.scope++
	defer func() {
		p.objects.EndScope()
		p.scope--
	}()

	stmts := make([]ir.Instruction, 0, 16)
	for _, e1 := range withInstrs {
		if e1.Kind == ir.Param {
			p.objects.InsertLocal(p.scope, e1.Name, LocalSymbol{Kind: e1.DataType})
		}
		stmts = append(stmts, e1)
	}

	emittedDeallocators := false
	for !p.matchToken(token.RBrace) {
		if p.end() {
			return ir.Instruction{}, &util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Expected '}'.",
				Line:  p.previous().Line,
			}
		}

		instr, err := p.parse()
		if err != nil {
			p.errs.Append(*err)
			if p.errs.Full() {
				return ir.Instruction{Kind: ir.Block, Stmts: stmts}, nil
			}
			p.sync()
			continue
		}
		stmtLine := p.previous().Line

		if instr.IsReturn() {
			if instr.IsIndexeReturnOfString() {
				p.errs.Append(util.CompileError{
					Kind:  util.SyntaxError,
					Stage: util.StageParse,
					Title: "Unreacheable Deallocation",
					Help: "At this point the correct deallocation is impossible. Store the char " +
						"in a variable and return the variable instead.",
					Line: stmtLine,
				})
			}

			stmts = append(stmts, p.objects.CreateDeallocators(p.scope)...)
			emittedDeallocators = true
		}

		stmts = append(stmts, instr)
	}

	if !emittedDeallocators {
		stmts = append(stmts, p.objects.CreateDeallocators(p.scope)...)
	}

	p.scoper.AddScope(stmts)

	return ir.Instruction{Kind: ir.Block, Stmts: stmts, Line: line}, nil
}

// variable parses a var declaration with optional initializer. Declarations
// without initializer are null-initialized and must be assigned before use.
func (p *Parser) variable(onlyComptime bool) (ir.Instruction, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}

	name, err := p.consume(token.Identifier, util.SyntaxError, "Expected variable name",
		"Expected var (name).", p.previous().Line)
	if err != nil {
		return ir.Instruction{}, err
	}

	kind := token.Void
	if p.matchToken(token.Colon) {
		if p.peek().Kind == token.DataType {
			kind = p.peek().DataType
			if err := p.onlyAdvance(); err != nil {
				return ir.Instruction{}, err
			}
		} else {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Expected type for the variable.",
				Line:  name.Line,
			})
		}
	} else {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Expected variable type indicator",
			Help:  "Expected `var name --> : <-- type = value;`.",
			Line:  name.Line,
		})
		// Recover if the type was written without the colon.
		if p.peek().Kind == token.DataType {
			kind = p.peek().DataType
			if err := p.onlyAdvance(); err != nil {
				return ir.Instruction{}, err
			}
		}
	}

	if p.matchToken(token.SemiColon) {
		// Null/default initialization; the binding must be assigned before use.
		p.objects.InsertLocal(p.scope, name.Lexeme, LocalSymbol{Kind: kind, IsNull: true})
		null := ir.Instruction{Kind: ir.Null}
		return ir.Instruction{
			Kind:         ir.Var,
			Name:         name.Lexeme,
			DataType:     kind,
			Inner:        &null,
			Line:         name.Line,
			OnlyComptime: onlyComptime,
		}, nil
	}

	if _, err := p.consume(token.Eq, util.SyntaxError, "Syntax Error",
		"Expected '=' for the variable definition.", name.Line); err != nil {
		return ir.Instruction{}, err
	}

	p.inVarType = kind

	value, verr := p.expression()
	if verr != nil {
		return ir.Instruction{}, verr
	}

	if cerr := CheckAssign(value.GetDataType(), kind, name.Line); cerr != nil {
		p.errs.Append(*cerr)
	}
	retypeNumeric(&value, kind)

	p.objects.InsertLocal(p.scope, name.Lexeme, LocalSymbol{Kind: kind})

	// var a : string = b; clones b's header, which shares b's buffer, so a
	// frees only its header.
	if value.Kind == ir.RefVar && value.DataType == token.String {
		p.objects.ModifyDeallocation(name.Lexeme, true, false)
	}

	if _, err := p.consume(token.SemiColon, util.SyntaxError, "Syntax Error",
		"Expected ';'.", name.Line); err != nil {
		return ir.Instruction{}, err
	}

	return ir.Instruction{
		Kind:         ir.Var,
		Name:         name.Lexeme,
		DataType:     kind,
		Inner:        &value,
		Line:         name.Line,
		OnlyComptime: onlyComptime,
	}, nil
}

// ret parses a return statement. Returning a string variable transfers its
// ownership to the caller, so the block-exit synthesizer must not free it
// again.
func (p *Parser) ret() (ir.Instruction, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}
	line := p.previous().Line

	if !p.inFunction {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Return statement outside of function. Invoke this keyword in scope of a function.",
			Line:  line,
		})
	}

	if p.matchToken(token.SemiColon) {
		if p.inTypeFunction != token.Void {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help: fmt.Sprintf(
					"Missing return value of type '%s'; rewrite the return with a value of type '%s'.",
					p.inTypeFunction.Title(), p.inTypeFunction.Title()),
				Line: line,
			})
		}
		null := ir.Instruction{Kind: ir.Null}
		return ir.Instruction{Kind: ir.Return, Inner: &null, DataType: token.Void, Line: line}, nil
	}

	value, err := p.expression()
	if err != nil {
		return ir.Instruction{}, err
	}

	if value.Kind == ir.RefVar && value.DataType == token.String {
		p.objects.ModifyDeallocation(value.Name, false, true)
	}

	if p.inTypeFunction == token.Void && value.GetDataType() != token.Void {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help: fmt.Sprintf(
				"Missing function type indicator with type '%s'; add a function return type of '%s'.",
				value.GetDataType().Title(), value.GetDataType().Title()),
			Line: line,
		})
	} else if cerr := CheckAssign(value.GetDataType(), p.inTypeFunction, line); cerr != nil {
		return ir.Instruction{}, cerr
	}

	if _, err := p.consume(token.SemiColon, util.SyntaxError, "Syntax Error",
		"Expected ';'.", line); err != nil {
		return ir.Instruction{}, err
	}

	return ir.Instruction{Kind: ir.Return, Inner: &value, DataType: p.inTypeFunction, Line: line}, nil
}

// forLoop parses a C-style for loop. The init declaration is cloned into the
// body block marked only_comptime so the IR generator does not re-emit it
// inside the loop.
func (p *Parser) forLoop() (ir.Instruction, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}
	line := p.previous().Line

	if p.peek().Kind != token.Var {
		return ir.Instruction{}, &util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected 'var' for the loop initializer.",
			Line:  line,
		}
	}

	variable, err := p.variable(false)
	if err != nil {
		return ir.Instruction{}, err
	}

	cond, err := p.expression()
	if err != nil {
		return ir.Instruction{}, err
	}
	if _, cerr := p.consume(token.SemiColon, util.SyntaxError, "Syntax Error",
		"Expected ';'.", line); cerr != nil {
		return ir.Instruction{}, cerr
	}

	step, err := p.expression()
	if err != nil {
		return ir.Instruction{}, err
	}

	clone := variable
	clone.OnlyComptime = true

	body, err := p.block([]ir.Instruction{clone})
	if err != nil {
		return ir.Instruction{}, err
	}

	return ir.Instruction{
		Kind: ir.ForLoop,
		Init: &variable,
		Cond: &cond,
		Step: &step,
		Body: &body,
		Line: line,
	}, nil
}

// print parses a print statement: no trailing newline, newlines inside string
// arguments are rejected.
func (p *Parser) print() (ir.Instruction, *util.CompileError) {
	args, line, err := p.printArgs()
	if err != nil {
		return ir.Instruction{}, err
	}
	p.checkFormatted(args, line, true)
	return ir.Instruction{Kind: ir.Print, Args: args, Line: line}, nil
}

// println parses a println statement.
func (p *Parser) println() (ir.Instruction, *util.CompileError) {
	args, line, err := p.printArgs()
	if err != nil {
		return ir.Instruction{}, err
	}
	p.checkFormatted(args, line, false)
	return ir.Instruction{Kind: ir.Println, Args: args, Line: line}, nil
}

// printArgs parses the shared argument list of print and println.
func (p *Parser) printArgs() ([]ir.Instruction, int, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return nil, 0, err
	}

	start, err := p.consume(token.LParen, util.SyntaxError, "Syntax Error",
		"Expected '('.", p.previous().Line)
	if err != nil {
		return nil, 0, err
	}

	args := make([]ir.Instruction, 0, 8)
	for !p.matchToken(token.RParen) {
		if p.end() {
			return nil, 0, p.eofError()
		}
		if p.matchToken(token.Comma) {
			continue
		}
		arg, aerr := p.expression()
		if aerr != nil {
			return nil, 0, aerr
		}
		args = append(args, arg)
	}

	if _, cerr := p.consume(token.SemiColon, util.SyntaxError, "Syntax Error",
		"Expected ';'.", start.Line); cerr != nil {
		return nil, 0, cerr
	}
	return args, start.Line, nil
}

// checkFormatted verifies the format contract of print and println: the
// first argument is a string literal whose number of {} holes equals the
// remaining argument count. scanNewlines additionally rejects newlines in
// string arguments (the print form).
func (p *Parser) checkFormatted(args []ir.Instruction, line int, scanNewlines bool) {
	if len(args) == 0 {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected at least 1 argument for the call. Like 'println(\"Hi!\");'.",
			Line:  line,
		})
		return
	}

	if args[0].Kind != ir.Str {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected a string literal as the first argument.",
			Line:  line,
		})
	} else if strings.Count(args[0].Text, "{}") != len(args)-1 {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Expected format",
			Help: "Missing format for argument or an argument. The number of '{}' holes must " +
				"equal the number of arguments after the format string.",
			Line: line,
		})
	}

	if !scanNewlines {
		return
	}
	for _, e1 := range args {
		if e1.Kind != ir.Str {
			continue
		}
		body := strings.TrimSuffix(e1.Text, stringSentinel)
		if strings.Contains(body, "\n") {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "You can't print strings that contain newlines. Use 'println' instead.",
				Line:  line,
			})
		}
	}
}

// expression parses one expression and afterwards decrements every live
// reference count, so a count of zero marks a binding whose last syntactic
// use is past.
func (p *Parser) expression() (ir.Instruction, *util.CompileError) {
	instr, err := p.or()
	p.objects.DecreaseRefs()
	return instr, err
}

// or is the lowest precedence level of the Pratt chain.
func (p *Parser) or() (ir.Instruction, *util.CompileError) {
	instr, err := p.and()
	if err != nil {
		return instr, err
	}

	for p.matchToken(token.Or) {
		op := p.previous().Kind
		line := p.previous().Line

		right, rerr := p.and()
		if rerr != nil {
			return instr, rerr
		}
		if cerr := CheckBinary(op, instr.GetDataType(), right.GetDataType(), line); cerr != nil {
			return instr, cerr
		}

		left := instr
		instr = ir.Instruction{
			Kind:     ir.Binary,
			Left:     &left,
			Op:       op,
			Right:    &right,
			DataType: token.Bool,
			Line:     line,
		}
	}
	return instr, nil
}

func (p *Parser) and() (ir.Instruction, *util.CompileError) {
	instr, err := p.equality()
	if err != nil {
		return instr, err
	}

	for p.matchToken(token.And) {
		op := p.previous().Kind
		line := p.previous().Line

		right, rerr := p.equality()
		if rerr != nil {
			return instr, rerr
		}
		if cerr := CheckBinary(op, instr.GetDataType(), right.GetDataType(), line); cerr != nil {
			return instr, cerr
		}

		left := instr
		instr = ir.Instruction{
			Kind:     ir.Binary,
			Left:     &left,
			Op:       op,
			Right:    &right,
			DataType: token.Bool,
			Line:     line,
		}
	}
	return instr, nil
}

func (p *Parser) equality() (ir.Instruction, *util.CompileError) {
	instr, err := p.comparison()
	if err != nil {
		return instr, err
	}

	for p.matchToken(token.BangEq) || p.matchToken(token.EqEq) {
		op := p.previous().Kind
		line := p.previous().Line

		right, rerr := p.comparison()
		if rerr != nil {
			return instr, rerr
		}
		if cerr := CheckBinary(op, instr.GetDataType(), right.GetDataType(), line); cerr != nil {
			return instr, cerr
		}

		left := instr
		instr = ir.Instruction{
			Kind:     ir.Binary,
			Left:     &left,
			Op:       op,
			Right:    &right,
			DataType: token.Bool,
			Line:     line,
		}
	}
	return instr, nil
}

func (p *Parser) comparison() (ir.Instruction, *util.CompileError) {
	instr, err := p.term()
	if err != nil {
		return instr, err
	}

	for p.matchToken(token.Greater) || p.matchToken(token.GreaterEq) ||
		p.matchToken(token.Less) || p.matchToken(token.LessEq) {
		op := p.previous().Kind
		line := p.previous().Line

		right, rerr := p.term()
		if rerr != nil {
			return instr, rerr
		}
		if cerr := CheckBinary(op, instr.GetDataType(), right.GetDataType(), line); cerr != nil {
			return instr, cerr
		}

		left := instr
		instr = ir.Instruction{
			Kind:     ir.Binary,
			Left:     &left,
			Op:       op,
			Right:    &right,
			DataType: token.Bool,
			Line:     line,
		}
	}
	return instr, nil
}

// term parses additive and multiplicative expressions. Integer pairs promote
// to the wider operand's type; the string concatenation path types with the
// enclosing declaration's target.
func (p *Parser) term() (ir.Instruction, *util.CompileError) {
	instr, err := p.unary()
	if err != nil {
		return instr, err
	}

	for p.matchToken(token.Plus) || p.matchToken(token.Minus) ||
		p.matchToken(token.Slash) || p.matchToken(token.Star) {
		op := p.previous().Kind
		line := p.previous().Line

		right, rerr := p.unary()
		if rerr != nil {
			return instr, rerr
		}

		leftType := instr.GetDataType()
		rightType := right.GetDataType()

		var kind token.DataTypes
		switch {
		case leftType.IsInteger() && rightType.IsInteger():
			kind = leftType.Promote(rightType)
		case leftType.IsFloat() && rightType.IsFloat():
			kind = leftType.Promote(rightType)
		default:
			kind = p.inVarType
		}

		if cerr := CheckBinary(op, leftType, rightType, line); cerr != nil {
			return instr, cerr
		}

		left := instr
		instr = ir.Instruction{
			Kind:     ir.Binary,
			Left:     &left,
			Op:       op,
			Right:    &right,
			DataType: kind,
			Line:     line,
		}
	}
	return instr, nil
}

// unary parses prefix operators. A minus before a numeric literal folds into
// the literal's signed flag instead of producing a Unary node.
func (p *Parser) unary() (ir.Instruction, *util.CompileError) {
	if p.matchToken(token.Bang) {
		op := p.previous().Kind
		line := p.previous().Line

		value, err := p.primary()
		if err != nil {
			return value, err
		}
		if cerr := CheckUnary(op, value.GetDataType(), line); cerr != nil {
			return value, cerr
		}
		return ir.Instruction{
			Kind:     ir.Unary,
			Op:       op,
			Inner:    &value,
			DataType: token.Bool,
			Line:     line,
		}, nil
	}

	if p.matchToken(token.PlusPlus) || p.matchToken(token.MinusMinus) || p.matchToken(token.Minus) {
		op := p.previous().Kind
		line := p.previous().Line

		value, err := p.primary()
		if err != nil {
			return value, err
		}

		if op == token.Minus && (value.Kind == ir.Integer || value.Kind == ir.Float) {
			value.Signed = true
			return value, nil
		}

		if cerr := CheckUnary(op, value.GetDataType(), line); cerr != nil {
			return value, cerr
		}
		return ir.Instruction{
			Kind:     ir.Unary,
			Op:       op,
			Inner:    &value,
			DataType: value.GetDataType(),
			Line:     line,
		}, nil
	}

	return p.primary()
}

// primary parses literals, groups, variable references and the productions
// attached to an identifier: assignment, indexing and calls.
func (p *Parser) primary() (ir.Instruction, *util.CompileError) {
	switch p.peek().Kind {
	case token.LParen:
		line := p.peek().Line
		if err := p.onlyAdvance(); err != nil {
			return ir.Instruction{}, err
		}

		instr, err := p.expression()
		if err != nil {
			return instr, err
		}
		kind := instr.GetDataType()

		if !instr.IsBinary() {
			p.errs.Append(util.CompileError{
				Kind:  util.SyntaxError,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help:  "Grouping expressions \"(...)\" is only allowed around binary expressions.",
				Line:  line,
			})
		}

		if _, cerr := p.consume(token.RParen, util.SyntaxError, "Syntax Error",
			"Expected ')'.", line); cerr != nil {
			return ir.Instruction{}, cerr
		}

		return ir.Instruction{Kind: ir.Group, Inner: &instr, DataType: kind, Line: line}, nil

	case token.Str:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{
			Kind: ir.Str,
			Text: tok.Lexeme,
			Flag: strings.Contains(tok.Lexeme, "{}"),
			Line: tok.Line,
		}, nil

	case token.CharLit:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Kind: ir.Char, Byte: tok.Lexeme[0], Line: tok.Line}, nil

	case token.Integer:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		instr := ir.Instruction{
			Kind:     ir.Integer,
			DataType: tok.DataType,
			Value:    tok.Value,
			Line:     tok.Line,
		}
		return p.maybePostfix(instr)

	case token.Float:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		instr := ir.Instruction{
			Kind:     ir.Float,
			DataType: tok.DataType,
			Value:    tok.Value,
			Line:     tok.Line,
		}
		return p.maybePostfix(instr)

	case token.Identifier:
		return p.identifier()

	case token.Pass:
		if err := p.onlyAdvance(); err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Kind: ir.Pass}, nil

	case token.True:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Kind: ir.Boolean, Flag: true, Line: tok.Line}, nil

	case token.False:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Kind: ir.Boolean, Line: tok.Line}, nil

	case token.Null:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Instruction{Kind: ir.Null, Line: tok.Line}, nil

	default:
		tok, err := p.advance()
		if err != nil {
			return ir.Instruction{}, err
		}
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  fmt.Sprintf("Statement `%s` not allowed.", tok.Kind),
			Line:  tok.Line,
		})
		return ir.Instruction{Kind: ir.Null}, nil
	}
}

// maybePostfix wraps a numeric literal in a postfix increment or decrement.
func (p *Parser) maybePostfix(instr ir.Instruction) (ir.Instruction, *util.CompileError) {
	if p.matchToken(token.PlusPlus) || p.matchToken(token.MinusMinus) {
		op := p.previous().Kind
		line := p.previous().Line
		if cerr := CheckUnary(op, instr.GetDataType(), line); cerr != nil {
			return instr, cerr
		}
		inner := instr
		return ir.Instruction{
			Kind:     ir.Unary,
			Op:       op,
			Inner:    &inner,
			DataType: instr.GetDataType(),
			Line:     line,
		}, nil
	}
	return instr, nil
}

// identifier resolves a name and parses the attached production: index
// access, assignment, call, postfix operator or a plain reference.
func (p *Parser) identifier() (ir.Instruction, *util.CompileError) {
	tok := p.peek()
	name := tok.Lexeme
	line := tok.Line

	object, lerr := p.objects.Lookup(name, line)
	if lerr != nil {
		return ir.Instruction{}, lerr
	}

	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}

	switch p.peek().Kind {
	case token.LeftBracket:
		return p.indexe(name, object, line)
	case token.Eq:
		return p.mutate(name, object, line)
	case token.LParen:
		if err := p.onlyAdvance(); err != nil {
			return ir.Instruction{}, err
		}
		return p.call(name, object, line)
	}

	if object.IsNull {
		p.errs.Append(util.CompileError{
			Kind:  util.VariableNotDeclared,
			Stage: util.StageParse,
			Title: "Variable Not Declared",
			Help: fmt.Sprintf(
				"Variable `%s` is not declared for use. Assign the variable before using it.", name),
			Line: line,
		})
	}

	refvar := ir.Instruction{
		Kind:     ir.RefVar,
		Name:     name,
		DataType: object.Kind,
		Line:     line,
	}

	if p.matchToken(token.PlusPlus) || p.matchToken(token.MinusMinus) {
		op := p.previous().Kind
		if cerr := CheckUnary(op, refvar.DataType, line); cerr != nil {
			return refvar, cerr
		}

		inner := refvar
		expr := ir.Instruction{
			Kind:     ir.Unary,
			Op:       op,
			Inner:    &inner,
			DataType: object.Kind,
			Line:     line,
		}
		// Statement form: consume the trailing ';' when present; inside a
		// for-loop step there is none.
		p.matchToken(token.SemiColon)
		return expr, nil
	}

	return refvar, nil
}

// indexe parses id[expr]. Only string origins are defined; the index must be
// a non-negative integer literal and the result is a char.
func (p *Parser) indexe(name string, object FoundObject, line int) (ir.Instruction, *util.CompileError) {
	if _, err := p.consume(token.LeftBracket, util.SyntaxError, "Syntax Error",
		"Expected '['.", line); err != nil {
		return ir.Instruction{}, err
	}

	expr, err := p.primary()
	if err != nil {
		return ir.Instruction{}, err
	}

	if _, cerr := p.consume(token.RightBracket, util.SyntaxError, "Syntax Error",
		"Expected ']'.", line); cerr != nil {
		return ir.Instruction{}, cerr
	}

	if object.IsNull {
		p.errs.Append(util.CompileError{
			Kind:  util.VariableNotDeclared,
			Stage: util.StageParse,
			Title: "Variable Not Declared",
			Help: fmt.Sprintf(
				"Variable `%s` is not declared for use. Assign the variable before using it.", name),
			Line: line,
		})
	}

	if object.Kind != token.String {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Indexing is only defined for string variables.",
			Line:  line,
		})
	}

	if expr.Kind != ir.Integer || expr.Signed {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "Expected a non-negative integer literal for the index.",
			Line:  line,
		})
		return ir.Instruction{Kind: ir.Null}, nil
	}

	return ir.Instruction{
		Kind:     ir.Indexe,
		Name:     name,
		Index:    uint64(expr.Value),
		DataType: token.Char,
		Line:     line,
	}, nil
}

// mutate parses id = expr; after checking assignability.
func (p *Parser) mutate(name string, object FoundObject, line int) (ir.Instruction, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return ir.Instruction{}, err
	}

	expr, err := p.expression()
	if err != nil {
		return ir.Instruction{}, err
	}

	if cerr := CheckAssign(expr.GetDataType(), object.Kind, line); cerr != nil {
		p.errs.Append(*cerr)
	}
	retypeNumeric(&expr, object.Kind)

	// Inside a for-loop step the assignment has no trailing ';'.
	p.matchToken(token.SemiColon)

	p.objects.InsertLocal(p.scope, name, LocalSymbol{Kind: object.Kind})

	return ir.Instruction{
		Kind:     ir.MutVar,
		Name:     name,
		DataType: object.Kind,
		Inner:    &expr,
		Line:     line,
	}, nil
}

// call parses id(args...) after checking that the callee is a function, the
// arity matches and every argument type matches its parameter.
func (p *Parser) call(name string, object FoundObject, line int) (ir.Instruction, *util.CompileError) {
	if !object.IsFunction {
		return ir.Instruction{}, &util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "The object called is not a function. Calls are only allowed for functions.",
			Line:  line,
		}
	}

	args := make([]ir.Instruction, 0, 8)
	for p.peek().Kind != token.RParen {
		if p.end() {
			return ir.Instruction{}, p.eofError()
		}
		if p.matchToken(token.Comma) {
			continue
		}
		arg, aerr := p.expression()
		if aerr != nil {
			return ir.Instruction{}, aerr
		}
		args = append(args, arg)
	}

	if _, cerr := p.consume(token.RParen, util.SyntaxError, "Syntax Error",
		"Expected ')'.", line); cerr != nil {
		return ir.Instruction{}, cerr
	}

	if !object.IgnoreParams {
		if len(args) != len(object.Params) {
			p.errs.Append(util.CompileError{
				Kind:  util.TooManyArguments,
				Stage: util.StageParse,
				Title: "Syntax Error",
				Help: fmt.Sprintf(
					"Function called expected arguments with types '%s', got '%s'.",
					joinTypes(object.Params), joinArgTypes(args)),
				Line: line,
			})
		}
		for i1, e1 := range args {
			if i1 >= len(object.Params) {
				break
			}
			if object.Params[i1] != e1.GetDataType() {
				p.errs.Append(util.CompileError{
					Kind:  util.SyntaxError,
					Stage: util.StageParse,
					Title: "Syntax Error",
					Help: fmt.Sprintf(
						"Function called expected '%s' argument type in position %d, not '%s'.",
						object.Params[i1].Title(), i1, e1.GetDataType().Title()),
					Line: line,
				})
			}
		}
	}

	return ir.Instruction{
		Kind:     ir.Call,
		Name:     name,
		Args:     args,
		DataType: object.Kind,
		Line:     line,
	}, nil
}

// forwardDeclareFunctions registers every function signature in the global
// symbol table before the main parse.
func (p *Parser) forwardDeclareFunctions() {
	positions := make([]int, 0, 16)
	for i1, e1 := range p.tokens {
		if e1.Kind == token.Fn {
			positions = append(positions, i1)
		}
	}

	for _, e1 := range positions {
		p.predefineFunction(e1)
	}
	p.current = 0
}

// predefineFunction extracts one signature starting at the fn token index.
// Errors here are recorded; the main pass reports the construct in context.
func (p *Parser) predefineFunction(index int) {
	p.current = index

	// external("Name") fn ... places the external keyword exactly four
	// tokens before fn, with or without a leading pub.
	isExternal := index >= 4 && p.tokens[index-4].Kind == token.External

	if err := p.onlyAdvance(); err != nil {
		return
	}

	name, err := p.consume(token.Identifier, util.SyntaxError, "Expected function name",
		"Expected fn < name >.", p.previous().Line)
	if err != nil {
		return
	}

	if _, err := p.consume(token.LParen, util.SyntaxError, "Syntax Error",
		"Expected '('.", name.Line); err != nil {
		return
	}

	ignoreParams := false
	params := make([]token.DataTypes, 0, 8)

	for !p.matchToken(token.RParen) {
		if p.end() {
			return
		}
		if p.matchToken(token.Comma) {
			continue
		}
		if p.matchToken(token.Pass) {
			ignoreParams = true
			continue
		}
		if !p.matchToken(token.Identifier) {
			if err := p.onlyAdvance(); err != nil {
				return
			}
			continue
		}
		if !p.matchToken(token.ColonColon) {
			continue
		}
		if p.peek().Kind == token.DataType {
			params = append(params, p.peek().DataType)
			if err := p.onlyAdvance(); err != nil {
				return
			}
		}
	}

	if ignoreParams && !isExternal {
		p.errs.Append(util.CompileError{
			Kind:  util.SyntaxError,
			Stage: util.StageParse,
			Title: "Syntax Error",
			Help:  "The 'pass' marker is only allowed in external function signatures.",
			Line:  name.Line,
		})
	}

	returnKind := token.Void
	if p.matchToken(token.Colon) && p.peek().Kind == token.DataType {
		returnKind = p.peek().DataType
		_ = p.onlyAdvance()
	}

	p.objects.InsertGlobal(name.Lexeme, GlobalSymbol{
		ReturnKind:   returnKind,
		Params:       params,
		IsFunction:   true,
		IgnoreParams: ignoreParams || isExternal,
	})
}

// sync skips tokens until the next statement anchor so one malformed
// construct does not cascade.
func (p *Parser) sync() {
	for !p.end() {
		switch p.peek().Kind {
		case token.Var, token.Fn:
			return
		}
		p.current++
	}
}

// consume advances over the expected token kind or returns a diagnostic.
func (p *Parser) consume(kind token.Kind, errKind util.ErrorKind, title, help string, line int) (token.Token, *util.CompileError) {
	if p.peek().Kind == kind {
		return p.advance()
	}
	return token.Token{}, &util.CompileError{
		Kind:  errKind,
		Stage: util.StageParse,
		Title: title,
		Help:  help,
		Line:  line,
	}
}

// matchToken consumes the next token when it has the given kind.
func (p *Parser) matchToken(kind token.Kind) bool {
	if p.end() {
		return false
	}
	if p.peek().Kind == kind {
		p.current++
		return true
	}
	return false
}

// onlyAdvance moves past the current token.
func (p *Parser) onlyAdvance() *util.CompileError {
	if !p.end() {
		p.current++
		return nil
	}
	return p.eofError()
}

// advance moves past the current token and returns it.
func (p *Parser) advance() (token.Token, *util.CompileError) {
	if err := p.onlyAdvance(); err != nil {
		return token.Token{}, err
	}
	return p.previous(), nil
}

func (p *Parser) eofError() *util.CompileError {
	return &util.CompileError{
		Kind:  util.SyntaxError,
		Stage: util.StageParse,
		Title: "Undeterminated Code",
		Help:  "The code ended abruptly. Review the code and complete the construct.",
		Line:  p.previous().Line,
	}
}

func (p *Parser) previousIs(kind token.Kind) bool {
	if p.current == 0 {
		return false
	}
	return p.previous().Kind == kind
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() token.Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) end() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Kind == token.Eof
}

// retypeNumeric normalizes a numeric expression tree to the declared target
// type so mixed width operands reach the IR generator pre-resolved. Literal
// leaves keep their classified type; the generator casts them.
func retypeNumeric(in *ir.Instruction, kind token.DataTypes) {
	if !kind.IsInteger() && !kind.IsFloat() {
		return
	}
	switch in.Kind {
	case ir.Binary:
		if in.DataType.IsInteger() || in.DataType.IsFloat() {
			in.DataType = kind
			retypeNumeric(in.Left, kind)
			retypeNumeric(in.Right, kind)
		}
	case ir.Group:
		if in.DataType.IsInteger() || in.DataType.IsFloat() {
			in.DataType = kind
			retypeNumeric(in.Inner, kind)
		}
	case ir.Unary:
		if in.DataType.IsInteger() || in.DataType.IsFloat() {
			in.DataType = kind
			retypeNumeric(in.Inner, kind)
		}
	}
}

func joinTypes(types []token.DataTypes) string {
	if len(types) == 0 {
		return token.Void.Title()
	}
	parts := make([]string, len(types))
	for i1, e1 := range types {
		parts[i1] = e1.Title()
	}
	return strings.Join(parts, ", ")
}

func joinArgTypes(args []ir.Instruction) string {
	if len(args) == 0 {
		return token.Void.Title()
	}
	parts := make([]string, len(args))
	for i1, e1 := range args {
		parts[i1] = e1.GetDataType().Title()
	}
	return strings.Join(parts, ", ")
}
