package compiler

import (
	"github.com/RevengerWizard/teascript-sub001/lexer"
	"github.com/RevengerWizard/teascript-sub001/vm"
)

// declaration is the top of the recursive-descent grammar (spec.md §4.6):
// one var/const/function/class/import/export form, or a fall-through to an
// ordinary statement. compileUnit calls this once per top-level form and
// block calls it once per brace-delimited form.
func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.Export):
		c.exportDecl()
	case c.match(lexer.Var):
		c.varDecl(false, false)
	case c.match(lexer.Const):
		c.varDecl(true, false)
	case c.match(lexer.Function):
		c.funcDecl(false)
	case c.match(lexer.Class):
		c.classDecl(false)
	case c.match(lexer.Import):
		c.importDecl()
	case c.match(lexer.From):
		c.fromImport()
	default:
		c.statement()
	}
}

// exportDecl re-exposes a module-scope binding to `from mod import name`
// (vm/import.go's IMPORT_VARIABLE looks it up in mod.exports, distinct from
// the plain module-variable table DEFINE_MODULE's non-export form fills).
func (c *Compiler) exportDecl() {
	switch {
	case c.match(lexer.Var):
		c.varDecl(false, true)
	case c.match(lexer.Const):
		c.varDecl(true, true)
	case c.match(lexer.Function):
		c.funcDecl(true)
	case c.match(lexer.Class):
		c.classDecl(true)
	default:
		c.fail(vm.ErrXEXPR)
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	case c.match(lexer.If):
		c.ifStmt()
	case c.match(lexer.While):
		c.whileStmt()
	case c.match(lexer.Do):
		c.doWhileStmt()
	case c.match(lexer.For):
		c.forStmt()
	case c.match(lexer.Switch):
		c.switchStmt()
	case c.match(lexer.Break):
		c.breakStmt()
	case c.match(lexer.Continue):
		c.continueStmt()
	case c.match(lexer.Return):
		c.returnStmt()
	default:
		c.exprStmt()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.declaration()
	}
	c.consume(lexer.RightBrace, vm.ErrXTOKEN, "}")
}

func (c *Compiler) exprStmt() {
	c.expression()
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
}

// declareHiddenLocal reserves a compiler-internal slot (the sequence/cursor
// pair a for-in loop addresses by index, or the module reference a
// from-import re-fetches between names) that is never looked up by name, so
// it must skip declareLocal's duplicate-name scan -- two hidden locals in
// the same scope would otherwise collide on the shared empty name.
func (c *Compiler) declareHiddenLocal() int {
	fs := c.fn
	if len(fs.locals) >= maxLocals {
		if fs.enclosing == nil {
			c.fail(vm.ErrXLIMM, maxLocals, "local variables")
		} else {
			c.fail(vm.ErrXLIMF, c.prev.Line, maxLocals, "local variables")
		}
	}
	fs.locals = append(fs.locals, localVar{name: "", depth: fs.scopeDepth})
	return len(fs.locals) - 1
}

// --- variable target helpers --------------------------------------------

// declareVariableTarget reserves the binding for name at the current
// scope: a local slot at function/block scope, nothing yet at module scope
// (DEFINE_MODULE both declares and assigns in one opcode, so there is no
// separate reservation step to make there).
func (c *Compiler) declareVariableTarget(name string, isConst bool) {
	if c.fn.scopeDepth > 0 {
		c.declareLocal(name, isConst)
	}
}

// defineVariableTarget finishes binding name to the value currently on top
// of the stack. exported only matters at module scope, where it picks
// DEFINE_MODULE's export flag (spec.md §4.6 `export`); a local binding has
// no equivalent concept since locals aren't visible outside their own
// function to begin with.
func (c *Compiler) defineVariableTarget(name string, exported bool) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	k := c.internConstant(name)
	exp := byte(0)
	if exported {
		exp = 1
	}
	c.emitBytes(byte(vm.OpDefineModule), k, exp)
	c.fn.stack(-1)
}

// --- var / const ---------------------------------------------------------

// varDecl compiles `var`/`const` declarations, including the single-rest
// multi-binding destructuring form `var a, b, ...rest = expr` backed by
// UNPACK/UNPACK_REST (vm/interp.go): exactly one `...` binding is allowed
// (ErrXSINGLEREST), and destructuring always requires an initializer since
// there is no value to unpack otherwise.
func (c *Compiler) varDecl(isConst bool, exported bool) {
	type target struct {
		name   string
		isRest bool
	}
	var names []target
	restSeen := false
	for {
		isRest := c.match(lexer.DotDotDot)
		if isRest {
			if restSeen {
				c.fail(vm.ErrXSINGLEREST)
			}
			restSeen = true
		}
		nm := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
		names = append(names, target{nm, isRest})
		if !c.match(lexer.Comma) {
			break
		}
	}

	if len(names) == 1 && !names[0].isRest {
		c.declareVariableTarget(names[0].name, isConst)
		if c.match(lexer.Equal) {
			c.expression()
		} else {
			c.emitByte(byte(vm.OpNil))
			c.fn.stack(1)
		}
		c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
		c.defineVariableTarget(names[0].name, exported)
		return
	}

	c.consume(lexer.Equal, vm.ErrXTOKEN, "=")
	c.expression()
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")

	if restSeen {
		restIdx := 0
		for idx, n := range names {
			if n.isRest {
				restIdx = idx
			}
		}
		c.emitBytes(byte(vm.OpUnpackRest), byte(len(names)), byte(restIdx))
		c.fn.stack(len(names) - 1)
	} else {
		c.emitBytes(byte(vm.OpUnpack), byte(len(names)))
		c.fn.stack(len(names) - 1)
	}

	if c.fn.scopeDepth > 0 {
		for _, n := range names {
			c.declareLocal(n.name, isConst)
		}
		for i := len(c.fn.locals) - len(names); i < len(c.fn.locals); i++ {
			c.fn.locals[i].depth = c.fn.scopeDepth
		}
		return
	}
	for i := len(names) - 1; i >= 0; i-- {
		k := c.internConstant(names[i].name)
		exp := byte(0)
		if exported {
			exp = 1
		}
		c.emitBytes(byte(vm.OpDefineModule), k, exp)
		c.fn.stack(-1)
	}
}

// --- function declarations / shared function-body compiler ---------------

func (c *Compiler) funcDecl(exported bool) {
	name := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
	c.declareVariableTarget(name, false)
	c.compileFunction(vm.KindFunction, name, false)
	c.defineVariableTarget(name, exported)
}

// scanParamHeader performs a bounded lookahead scan of a '(' parameter
// list (curr must be the token right after '(' was consumed) to count
// required/optional parameters and detect a rest marker before the list is
// parsed for real -- DEFINE_OPTIONAL's header needs both counts before any
// default-value bytecode can be emitted (vm/interp.go's doc comment on
// OpDefineOptional), but the parser only learns them by reading the whole
// list. Every scanned token is buffered into pending exactly like
// isArrowAhead, so the subsequent real parse sees the identical stream.
func (c *Compiler) scanParamHeader() (required, optional int, variadic bool) {
	depth := 1
	var buf []lexer.Token
	segHasEqual, segIsRest, segEmpty := false, c.curr.Type == lexer.DotDotDot, false
	flush := func() {
		if segEmpty {
			return
		}
		switch {
		case segIsRest:
			variadic = true
		case segHasEqual:
			optional++
		default:
			required++
		}
		segHasEqual, segIsRest, segEmpty = false, false, true
	}
	for {
		t := c.nextToken()
		buf = append(buf, t)
		switch t.Type {
		case lexer.LeftParen, lexer.LeftBracket, lexer.LeftBrace:
			depth++
			segEmpty = false
		case lexer.RightBracket, lexer.RightBrace:
			depth--
			segEmpty = false
		case lexer.RightParen:
			depth--
			if depth == 0 {
				flush()
				c.pending = append(buf, c.pending...)
				return
			}
			segEmpty = false
		case lexer.Comma:
			if depth == 1 {
				flush()
			} else {
				segEmpty = false
			}
		case lexer.DotDotDot:
			if depth == 1 {
				segIsRest = true
			}
			segEmpty = false
		case lexer.Equal:
			if depth == 1 {
				segHasEqual = true
			}
			segEmpty = false
		case lexer.EOF:
			c.pending = append(buf, c.pending...)
			return
		default:
			segEmpty = false
		}
	}
}

// compileFunction is the shared body compiler for function declarations,
// function expressions, arrow functions and methods (clox's "FunctionType"
// generalized over all four call sites). It opens a fresh funcState, emits
// DEFINE_OPTIONAL's header and per-parameter default blocks up front (the
// jump table is sized from scanParamHeader before any parameter is parsed
// for real), compiles the body, and finally emits CLOSURE plus one
// (isLocal, index) pair per captured upvalue into the *enclosing* funcState
// -- the enclosing function's bytecode is what OP_CLOSURE's handler reads
// those pairs from at runtime (vm/interp.go).
func (c *Compiler) compileFunction(kind vm.ProtoKind, name string, isArrow bool) {
	c.openFunc(name, kind)
	c.beginScope()
	c.consume(lexer.LeftParen, vm.ErrXTOKEN, "(")

	required, optsCount, variadic := 0, 0, false
	if !c.check(lexer.RightParen) {
		required, optsCount, variadic = c.scanParamHeader()
	}
	if required+optsCount > maxParams {
		c.fail(vm.ErrXMAXARGS)
	}

	tableAt := -1
	if optsCount > 0 {
		c.emitByte(byte(vm.OpDefineOptional))
		c.emitByte(byte(required))
		c.emitByte(byte(optsCount))
		tableAt = c.fn.builder.Len()
		for k := 0; k <= optsCount; k++ {
			c.fn.builder.EmitU16(0xFFFF)
		}
	}

	seenOptional := 0
	restSeen := false
	sawOptional := false
	seenNames := map[string]bool{}
	if !c.check(lexer.RightParen) {
		for {
			if restSeen {
				c.fail(vm.ErrXSPREADARGS)
			}
			if c.match(lexer.DotDotDot) {
				restSeen = true
				pname := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
				if seenNames[pname] {
					c.fail(vm.ErrXDUPARGS)
				}
				seenNames[pname] = true
				c.declareLocal(pname, false)
				c.markInitialized()
				c.fn.stack(1)
				if c.check(lexer.Equal) {
					c.fail(vm.ErrXSPREADOPT)
				}
			} else {
				pname := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
				if seenNames[pname] {
					c.fail(vm.ErrXDUPARGS)
				}
				seenNames[pname] = true
				c.declareLocal(pname, false)
				c.markInitialized()
				c.fn.stack(1)
				slot := len(c.fn.locals) - 1
				if c.match(lexer.Equal) {
					sawOptional = true
					c.fn.builder.PatchU16(tableAt+seenOptional*2, uint16(c.fn.builder.Len()))
					c.parsePrecedence(precAssignment)
					c.emitBytes(byte(vm.OpSetLocal), byte(slot))
					c.emitByte(byte(vm.OpPop))
					c.fn.stack(-1)
					seenOptional++
				} else if sawOptional {
					c.fail(vm.ErrXOPT)
				}
			}
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	if optsCount > 0 {
		c.fn.builder.PatchU16(tableAt+optsCount*2, uint16(c.fn.builder.Len()))
	}
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")
	c.fn.builder.SetArity(uint8(required), uint8(optsCount), variadic)

	if isArrow {
		c.consume(lexer.Arrow, vm.ErrXTOKEN, "=>")
		if c.check(lexer.LeftBrace) {
			c.advance()
			c.block()
		} else {
			c.expression()
			c.emitByte(byte(vm.OpReturn))
			c.fn.stack(-1)
		}
	} else {
		c.consume(lexer.LeftBrace, vm.ErrXTOKEN, "{")
		c.block()
	}

	childUpvalues := c.fn.upvalues
	_, val := c.closeFunc()
	k := c.makeConstant(val)
	c.emitBytes(byte(vm.OpClosure), k)
	c.fn.stack(1)
	for _, u := range childUpvalues {
		isLocal := byte(0)
		if u.isLocal {
			isLocal = 1
		}
		c.emitBytes(isLocal, u.index)
	}
}

// --- class declarations ---------------------------------------------------

// classDecl compiles `class Name [< Super] { method... }` (spec.md §4.9).
// The class value is bound to its own name immediately after OP_CLASS so a
// method body can reference the class recursively, then re-fetched once
// more (namedVariable) to stay on top of the stack while OP_METHOD attaches
// each method -- OP_INHERIT (vm/interp.go) reads the superclass from
// peek(1) and the subclass from peek(0) and, unlike clox, does not pop
// either operand, so the extra class reference it consumes is discarded by
// an explicit POP right after.
func (c *Compiler) classDecl(exported bool) {
	name := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
	c.declareVariableTarget(name, false)
	k := c.internConstant(name)
	c.emitBytes(byte(vm.OpClass), k)
	c.fn.stack(1)
	c.defineVariableTarget(name, exported)

	cs := &classState{enclosing: c.currentClass()}
	savedClass := c.fn.class
	c.fn.class = cs

	c.beginScope()
	if c.match(lexer.Less) {
		superName := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
		// Self-inheritance and inheriting from a built-in are both left to
		// OP_INHERIT's runtime check (vm/interp.go, ErrSELF/ErrBUILTINSELF):
		// the compiler has no notion of "is this class value the same class"
		// since the name on the right of '<' is just another variable lookup.
		c.namedVariable(superName, false)
		c.declareLocal("super", true)
		c.markInitialized()
		cs.hasSuperclass = true

		c.namedVariable(name, false)
		c.emitByte(byte(vm.OpInherit))
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
	}

	c.namedVariable(name, false)
	c.consume(lexer.LeftBrace, vm.ErrXTOKEN, "{")
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.method()
	}
	c.consume(lexer.RightBrace, vm.ErrXTOKEN, "}")
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)

	c.endScope()
	c.fn.class = savedClass
}

var operatorTokenName = map[lexer.Type]string{
	lexer.Plus:           "+",
	lexer.Minus:          "-",
	lexer.Star:           "*",
	lexer.Slash:          "/",
	lexer.Percent:        "%",
	lexer.StarStar:       "**",
	lexer.Amp:            "&",
	lexer.Pipe:           "|",
	lexer.Caret:          "^",
	lexer.Tilde:          "~",
	lexer.LessLess:       "<<",
	lexer.GreaterGreater: ">>",
	lexer.EqualEqual:     "==",
	lexer.Less:           "<",
	lexer.LessEqual:      "<=",
	lexer.Greater:        ">",
	lexer.GreaterEqual:   ">=",
}

func (c *Compiler) operatorName() string {
	name, ok := operatorTokenName[c.curr.Type]
	if !ok {
		c.fail(vm.ErrXTOKEN, "operator")
	}
	c.advance()
	return name
}

// method compiles one class-body member: a plain method, `new` (the
// constructor, OP_METHOD's handler special-cases this name into
// class.constructor), a `static` method, or an `operator X` overload
// (spec.md §4.9's operator-overload dispatch).
func (c *Compiler) method() {
	isStatic := c.match(lexer.Static)
	kind := vm.KindMethod
	var name string
	if c.match(lexer.Operator) {
		name = c.operatorName()
		kind = vm.KindOperator
	} else {
		name = c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
		switch {
		case name == "new" && isStatic:
			c.fail(vm.ErrXMETHOD)
		case name == "new":
			kind = vm.KindConstructor
		case isStatic:
			kind = vm.KindStatic
		}
	}
	k := c.internConstant(name)
	savedStatic := c.fn.class.isStaticMethod
	c.fn.class.isStaticMethod = isStatic
	c.compileFunction(kind, name, false)
	c.fn.class.isStaticMethod = savedStatic
	c.emitBytes(byte(vm.OpMethod), k)
	c.fn.stack(-1)
}

// --- if / while / do-while -------------------------------------------------

func (c *Compiler) ifStmt() {
	c.consume(lexer.LeftParen, vm.ErrXTOKEN, "(")
	c.expression()
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")

	thenJump := c.emitJump(byte(vm.OpJumpIfFalse))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.statement()

	elseJump := c.emitJump(byte(vm.OpJump))
	c.patchJump(thenJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	if c.match(lexer.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// patchLoopJumps rewrites every break/continue placeholder END opcode this
// loop recorded into a real JUMP (vm/interp.go: OpEnd is a no-op that skips
// its 2-byte operand and must never survive into a finished prototype; PatchByte
// overwrites the opcode byte itself, then the 2-byte offset is patched the
// ordinary way).
func (c *Compiler) patchLoopJumps(ls *loopState, breakTarget, continueTarget int) {
	for _, at := range ls.breaks {
		c.fn.builder.PatchByte(at-1, byte(vm.OpJump))
		c.fn.builder.PatchU16(at, uint16(breakTarget))
	}
	for _, at := range ls.continues {
		c.fn.builder.PatchByte(at-1, byte(vm.OpJump))
		c.fn.builder.PatchU16(at, uint16(continueTarget))
	}
}

func (c *Compiler) whileStmt() {
	loopStart := c.fn.builder.Len()
	ls := &loopState{enclosing: c.fn.loop, scopeDepth: c.fn.scopeDepth}
	c.fn.loop = ls

	c.consume(lexer.LeftParen, vm.ErrXTOKEN, "(")
	c.expression()
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")

	exitJump := c.emitJump(byte(vm.OpJumpIfFalse))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	breakTarget := c.fn.builder.Len()
	c.patchLoopJumps(ls, breakTarget, loopStart)
	c.fn.loop = ls.enclosing
}

// doWhileStmt compiles `do stmt while (cond);`: the body always runs once
// before the first test, so continue's target (the condition check) isn't
// known until after the body compiles -- exactly the case the forward-patch
// scheme in loopState exists for.
func (c *Compiler) doWhileStmt() {
	loopStart := c.fn.builder.Len()
	ls := &loopState{enclosing: c.fn.loop, scopeDepth: c.fn.scopeDepth}
	c.fn.loop = ls

	c.statement()

	c.consume(lexer.While, vm.ErrXTOKEN, "while")
	c.consume(lexer.LeftParen, vm.ErrXTOKEN, "(")
	condStart := c.fn.builder.Len()
	c.expression()
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")

	loopJump := c.emitJump(byte(vm.OpJumpIfFalse))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.emitLoop(loopStart)
	c.patchJump(loopJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)

	breakTarget := c.fn.builder.Len()
	c.patchLoopJumps(ls, breakTarget, condStart)
	c.fn.loop = ls.enclosing
}

// --- for / for-in ----------------------------------------------------------

// forStmt compiles the three-part `for (init; cond; incr) body` form, and
// dispatches to forIn when the init clause is `var`/`const` name `in` expr
// -- a bare identifier before `in` (without var/const) is not specially
// detected, so `for (name in expr)` always requires the var/const keyword
// (documented simplification, DESIGN.md).
func (c *Compiler) forStmt() {
	c.beginScope()
	c.consume(lexer.LeftParen, vm.ErrXTOKEN, "(")

	switch {
	case c.match(lexer.Semicolon):
		// no init clause
	case c.check(lexer.Var) || c.check(lexer.Const):
		isConst := c.check(lexer.Const)
		c.advance()
		nameTok := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier")
		if c.match(lexer.In) {
			c.forIn(nameTok.Lexeme, isConst)
			c.endScope()
			return
		}
		c.declareVariableTarget(nameTok.Lexeme, isConst)
		if c.match(lexer.Equal) {
			c.expression()
		} else {
			c.emitByte(byte(vm.OpNil))
			c.fn.stack(1)
		}
		c.defineVariableTarget(nameTok.Lexeme, false)
		c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
	default:
		c.expression()
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
	}

	loopStart := c.fn.builder.Len()
	ls := &loopState{enclosing: c.fn.loop, scopeDepth: c.fn.scopeDepth}
	c.fn.loop = ls

	exitJump := -1
	if !c.check(lexer.Semicolon) {
		c.expression()
		exitJump = c.emitJump(byte(vm.OpJumpIfFalse))
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
	}
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")

	continueTarget := loopStart
	if !c.check(lexer.RightParen) {
		bodyJump := c.emitJump(byte(vm.OpJump))
		incrStart := c.fn.builder.Len()
		continueTarget = incrStart
		c.expression()
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		c.emitLoop(loopStart)
		c.patchJump(bodyJump)
	}
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")

	c.statement()
	c.emitLoop(continueTarget)

	breakTarget := c.fn.builder.Len()
	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		breakTarget = c.fn.builder.Len()
	}
	c.patchLoopJumps(ls, breakTarget, continueTarget)
	c.fn.loop = ls.enclosing
	c.endScope()
}

// forIn compiles `for (var name in seq) body` via the GET_ITER/FOR_ITER
// protocol of vm/iterate.go: seq and iter live in two hidden locals that
// GET_ITER addresses directly by slot (not through the operand stack), and
// the cursor GET_ITER pushes doubles as the loop's continue/exit test
// (JUMP_IF_NIL, per its peek convention, so the exiting/continuing paths
// both need an explicit POP).
func (c *Compiler) forIn(name string, isConst bool) {
	c.expression()
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")

	seqSlot := c.declareHiddenLocal()

	c.emitByte(byte(vm.OpNil))
	c.fn.stack(1)
	iterSlot := c.declareHiddenLocal()

	loopStart := c.fn.builder.Len()
	ls := &loopState{enclosing: c.fn.loop, scopeDepth: c.fn.scopeDepth}
	c.fn.loop = ls

	c.emitBytes(byte(vm.OpGetIter), byte(seqSlot), byte(iterSlot))
	c.fn.stack(1)
	exitJump := c.emitJump(byte(vm.OpJumpIfNil))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)

	c.beginScope()
	c.declareLocal(name, isConst)
	c.emitBytes(byte(vm.OpForIter), byte(seqSlot), byte(iterSlot))
	c.fn.stack(1)
	c.markInitialized()
	c.statement()
	c.endScope()

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)

	breakTarget := c.fn.builder.Len()
	c.patchLoopJumps(ls, breakTarget, loopStart)
	c.fn.loop = ls.enclosing
}

// --- break / continue / return --------------------------------------------

// closeLoopLocals pops (or closes, if captured) every local the loop body
// declared past its entry depth, without touching funcState.locals itself
// -- the jump taken skips the normal endScope bookkeeping for code still
// below it, so only the emitted cleanup bytecode may reflect the break, not
// the compiler's own local-tracking state (clox does the same for its
// break statement).
func (c *Compiler) closeLoopLocals(ls *loopState) {
	fs := c.fn
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth > ls.scopeDepth; i-- {
		if fs.locals[i].isCaptured {
			c.emitByte(byte(vm.OpCloseUpvalue))
		} else {
			c.emitByte(byte(vm.OpPop))
		}
	}
}

func (c *Compiler) breakStmt() {
	ls := c.fn.loop
	if ls == nil {
		c.fail(vm.ErrXBREAK)
	}
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
	c.closeLoopLocals(ls)
	at := c.emitJump(byte(vm.OpEnd))
	ls.breaks = append(ls.breaks, at)
}

func (c *Compiler) continueStmt() {
	ls := c.fn.loop
	if ls == nil {
		c.fail(vm.ErrXCONTINUE)
	}
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
	c.closeLoopLocals(ls)
	at := c.emitJump(byte(vm.OpEnd))
	ls.continues = append(ls.continues, at)
}

func (c *Compiler) returnStmt() {
	if c.fn.enclosing == nil {
		c.fail(vm.ErrXRET)
	}
	if c.match(lexer.Semicolon) {
		if c.fn.kind == vm.KindConstructor {
			c.emitBytes(byte(vm.OpGetLocal), 0)
		} else {
			c.emitByte(byte(vm.OpNil))
		}
		c.fn.stack(1)
		c.emitByte(byte(vm.OpReturn))
		c.fn.stack(-1)
		return
	}
	if c.fn.kind == vm.KindConstructor {
		c.fail(vm.ErrXINIT)
	}
	c.expression()
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
	c.emitByte(byte(vm.OpReturn))
	c.fn.stack(-1)
}

// --- switch ----------------------------------------------------------------

// switchStmt compiles `switch (subject) { v1, v2: stmt  default: stmt }`.
// The lexer has no `case` keyword (lexer/token.go's reserved-word list), so
// a label is just a comma-separated expression list followed by `:`; each
// arm's body is a single statement (typically a block), which keeps label
// parsing unambiguous without needing arbitrary lookahead to tell a new
// label apart from a statement that merely starts with an expression.
// Every arm -- including single-value ones -- uses MULTI_CASE; COMPARE_JUMP
// goes unused (DESIGN.md), since MULTI_CASE already covers n=1 and using it
// uniformly avoids two separate arm-compilation shapes for one construct.
func (c *Compiler) switchStmt() {
	c.consume(lexer.LeftParen, vm.ErrXTOKEN, "(")
	c.expression()
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")
	c.consume(lexer.LeftBrace, vm.ErrXTOKEN, "{")

	var exitJumps []int
	sawDefault := false
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		if c.match(lexer.Default) {
			sawDefault = true
			c.consume(lexer.Colon, vm.ErrXTOKEN, ":")
			c.statement()
			continue
		}
		if sawDefault {
			c.fail(vm.ErrXCASE)
		}
		n := 0
		for {
			c.expression()
			n++
			if n > 255 {
				c.fail(vm.ErrXSWITCH)
			}
			if !c.match(lexer.Comma) {
				break
			}
		}
		c.consume(lexer.Colon, vm.ErrXTOKEN, ":")

		c.emitBytes(byte(vm.OpMultiCase), byte(n), 0)
		c.fn.stack(1 - n)
		skip := c.emitJump(byte(vm.OpJumpIfFalse))
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		c.statement()
		exitJumps = append(exitJumps, c.emitJump(byte(vm.OpJump)))
		c.patchJump(skip)
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
	}
	c.consume(lexer.RightBrace, vm.ErrXTOKEN, "}")
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	for _, j := range exitJumps {
		c.patchJump(j)
	}
}

// --- import / export -------------------------------------------------------

// importDecl compiles `import name (',' name)*` and `import "path"`/
// `import "f${x}"` (vm/import.go's IMPORT_NAME/IMPORT_STRING/IMPORT_FMT).
// The lexer has no `as` keyword, so there is no import-aliasing surface
// syntax: a name-form import always binds under its own name, and a
// string/interpolated-path import runs purely for side effects (it has no
// natural identifier to bind to and so binds nothing, matching a bare
// `import "init.tea";` pattern common to script-style module systems).
func (c *Compiler) importDecl() {
	for {
		switch {
		case c.check(lexer.String):
			c.advance()
			k := c.internConstant(c.prev.StringValue)
			c.emitBytes(byte(vm.OpImportString), k)
			c.fn.stack(1)
			c.emitByte(byte(vm.OpImportEnd))
			c.emitByte(byte(vm.OpPop))
			c.fn.stack(-1)
		case c.check(lexer.InterpStart):
			c.advance()
			interpString(c, false)
			c.emitByte(byte(vm.OpImportFmt))
			c.emitByte(byte(vm.OpImportEnd))
			c.emitByte(byte(vm.OpPop))
			c.fn.stack(-1)
		default:
			nameTok := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier")
			k := c.internConstant(nameTok.Lexeme)
			c.emitBytes(byte(vm.OpImportName), k)
			c.fn.stack(1)
			c.emitByte(byte(vm.OpImportAlias))
			c.fn.stack(1)
			c.declareVariableTarget(nameTok.Lexeme, false)
			c.defineVariableTarget(nameTok.Lexeme, false)
			c.emitByte(byte(vm.OpImportEnd))
			c.emitByte(byte(vm.OpPop))
			c.fn.stack(-1)
		}
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")
}

// fromImport compiles `from mod import a, b` / `from "path" import a, b`.
// IMPORT_VARIABLE (vm/import.go) always reads the module from peek(0), so
// each name re-fetches a fresh copy of the module (kept in a hidden local
// opened just for this statement) right before calling it, rather than
// relying on stack position alone to stay correct across several names.
// bindImportedName threads through the scope depth captured before that
// hidden scope opened, so the imported bindings land in the statement's
// real enclosing scope (module-level DEFINE_MODULE, or a local surviving
// past this statement's own synthetic scope) rather than inside it.
func (c *Compiler) fromImport() {
	originalDepth := c.fn.scopeDepth
	var k byte
	switch {
	case c.check(lexer.String):
		c.advance()
		k = c.internConstant(c.prev.StringValue)
		c.emitBytes(byte(vm.OpImportString), k)
	default:
		nameTok := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier")
		k = c.internConstant(nameTok.Lexeme)
		c.emitBytes(byte(vm.OpImportName), k)
	}
	c.fn.stack(1)
	c.consume(lexer.Import, vm.ErrXTOKEN, "import")

	c.beginScope()
	modSlot := c.declareHiddenLocal()

	for {
		nameTok := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier")
		c.emitBytes(byte(vm.OpGetLocal), byte(modSlot))
		c.fn.stack(1)
		vk := c.internConstant(nameTok.Lexeme)
		c.emitBytes(byte(vm.OpImportVariable), vk)
		c.fn.stack(1)
		c.bindImportedName(nameTok.Lexeme, originalDepth)
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.consume(lexer.Semicolon, vm.ErrXTOKEN, ";")

	c.emitByte(byte(vm.OpImportEnd))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.endScope()
}

func (c *Compiler) bindImportedName(name string, originalDepth int) {
	if originalDepth == 0 {
		k := c.internConstant(name)
		c.emitBytes(byte(vm.OpDefineModule), k, 0)
		c.fn.stack(-1)
		return
	}
	c.declareLocal(name, false)
	c.fn.locals[len(c.fn.locals)-1].depth = originalDepth
}
