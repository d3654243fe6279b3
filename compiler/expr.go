package compiler

import (
	"github.com/RevengerWizard/teascript-sub001/lexer"
	"github.com/RevengerWizard/teascript-sub001/vm"
)

// precedence mirrors spec.md §4.6's table (low to high: assignment, or, and,
// equality, is/in, comparison, |, ^, &, shift, range, +/-, */ /%, **,
// unary, subscript/call), with ternary and null-coalescing slotted in
// between assignment and `or` the way C-family languages place them.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precTernary
	precNullCoalesce
	precOr
	precAnd
	precEquality
	precIsIn
	precComparison
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precRange
	precTerm
	precFactor
	precPower
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

var rules map[lexer.Type]*parseRule

func rule(t lexer.Type) *parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return &parseRule{}
}

func init() {
	rules = map[lexer.Type]*parseRule{
		lexer.LeftParen:   {grouping, call, precCall},
		lexer.Dot:         {nil, dot, precCall},
		lexer.LeftBracket: {listLiteral, subscript, precCall},
		lexer.LeftBrace:   {mapLiteral, nil, precNone},

		lexer.Minus:          {unary, binary, precTerm},
		lexer.Plus:           {nil, binary, precTerm},
		lexer.Slash:          {nil, binary, precFactor},
		lexer.Star:           {nil, binary, precFactor},
		lexer.Percent:        {nil, binary, precFactor},
		lexer.StarStar:       {nil, binary, precPower},
		lexer.Tilde:          {unary, nil, precNone},
		lexer.Amp:            {nil, binary, precBitAnd},
		lexer.Pipe:           {nil, binary, precBitOr},
		lexer.Caret:          {nil, binary, precBitXor},
		lexer.LessLess:       {nil, binary, precShift},
		lexer.GreaterGreater: {nil, binary, precShift},

		lexer.Bang:         {unary, nil, precNone},
		lexer.BangEqual:    {nil, binary, precEquality},
		lexer.EqualEqual:   {nil, binary, precEquality},
		lexer.Greater:      {nil, binary, precComparison},
		lexer.GreaterEqual: {nil, binary, precComparison},
		lexer.Less:         {nil, binary, precComparison},
		lexer.LessEqual:    {nil, binary, precComparison},

		lexer.Is: {nil, isExpr, precIsIn},
		lexer.In: {nil, inExpr, precIsIn},

		lexer.And:              {nil, and_, precAnd},
		lexer.Or:                {nil, or_, precOr},
		lexer.Question:          {nil, ternary, precTernary},
		lexer.QuestionQuestion:  {nil, nullCoalesce, precNullCoalesce},

		lexer.DotDot: {nil, rangeExpr, precRange},

		lexer.Number:      {number, nil, precNone},
		lexer.String:      {stringLit, nil, precNone},
		lexer.InterpStart: {interpString, nil, precNone},
		lexer.Identifier:  {variable, nil, precNone},
		lexer.Nil:         {literal, nil, precNone},
		lexer.True:        {literal, nil, precNone},
		lexer.False:       {literal, nil, precNone},
		lexer.Self:        {self_, nil, precNone},
		lexer.Super:       {super_, nil, precNone},
		lexer.Function:    {functionExpr, nil, precNone},
	}
}

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

// parsePrecedence is the Pratt driver: parse a prefix expression, then keep
// consuming infix operators that bind at least as tightly as prec. A
// leading '(' gets special treatment because disambiguating an
// arrow-function parameter list from a parenthesized expression needs to
// see past it to a possible '=>' (isArrowAhead), which no single token of
// lookahead can do.
func (c *Compiler) parsePrecedence(prec precedence) {
	canAssign := prec <= precAssignment

	if c.check(lexer.LeftParen) && c.isArrowAhead() {
		c.compileFunction(vm.KindAnonymous, "", true)
	} else {
		c.advance()
		prefixRule := rule(c.prev.Type).prefix
		if prefixRule == nil {
			c.fail(vm.ErrXEXPR)
		}
		prefixRule(c, canAssign)
	}

	for prec <= rule(c.curr.Type).prec {
		c.advance()
		infixRule := rule(c.prev.Type).infix
		infixRule(c, canAssign)
	}

	if canAssign && isAssignStart(c.curr.Type) {
		c.fail(vm.ErrXASSIGN)
	}
}

func isAssignStart(t lexer.Type) bool {
	return t == lexer.Equal || isCompoundAssign(t)
}

var compoundBinaryOp = map[lexer.Type]byte{
	lexer.PlusEqual:           byte(vm.OpAdd),
	lexer.MinusEqual:          byte(vm.OpSub),
	lexer.StarEqual:           byte(vm.OpMul),
	lexer.SlashEqual:          byte(vm.OpDiv),
	lexer.PercentEqual:        byte(vm.OpMod),
	lexer.StarStarEqual:       byte(vm.OpPow),
	lexer.AmpEqual:            byte(vm.OpBAnd),
	lexer.PipeEqual:           byte(vm.OpBOr),
	lexer.CaretEqual:          byte(vm.OpBXor),
	lexer.LessLessEqual:       byte(vm.OpLShift),
	lexer.GreaterGreaterEqual: byte(vm.OpRShift),
}

func isCompoundAssign(t lexer.Type) bool {
	if t == lexer.QuestionQuestionEqual {
		return true
	}
	_, ok := compoundBinaryOp[t]
	return ok
}

func (c *Compiler) checkCompoundAssign() bool { return isCompoundAssign(c.curr.Type) }

// compileCompoundRHS assumes the target's current value is already on top
// of the stack (pushed by the caller's "get" step before dispatching here)
// and leaves the final assigned value there too once set is called.
// QuestionQuestionEqual only evaluates and assigns the right-hand side when
// the current value is nil, using the same JUMP_IF_NIL shape nullCoalesce
// uses for the `??` operator.
func (c *Compiler) compileCompoundRHS(tok lexer.Type, set func()) {
	if tok == lexer.QuestionQuestionEqual {
		toAssign := c.emitJump(byte(vm.OpJumpIfNil))
		toEnd := c.emitJump(byte(vm.OpJump))
		c.patchJump(toAssign)
		c.emitByte(byte(vm.OpPop))
		c.fn.stack(-1)
		c.expression()
		set()
		c.patchJump(toEnd)
		return
	}
	op, ok := compoundBinaryOp[tok]
	if !ok {
		c.fail(vm.ErrXASSIGN)
	}
	c.expression()
	c.emitByte(op)
	c.fn.stack(-1)
	set()
}

// --- literals ---------------------------------------------------------

func number(c *Compiler, canAssign bool) {
	c.emitConstant(vm.Number(c.prev.NumberValue))
}

func stringLit(c *Compiler, canAssign bool) {
	k := c.internConstant(c.prev.StringValue)
	c.emitBytes(byte(vm.OpConstant), k)
	c.fn.stack(1)
}

// interpString compiles an interpolated string (spec.md §4.5 `${...}`) as a
// chain of `str(part) + str(expr) + ...` concatenations, relying on a
// host-registered global `str` conversion function (cmd/tea/stdlib.go
// registers one) since the opcode set has no dedicated
// to-string instruction and ADD only concatenates like-typed operands.
func interpString(c *Compiler, canAssign bool) {
	c.emitStringPart(c.prev.StringValue)
	for {
		c.emitInterpValue()
		c.emitByte(byte(vm.OpAdd))
		c.fn.stack(-1)
		if !c.match(lexer.InterpMid) {
			break
		}
		c.emitStringPart(c.prev.StringValue)
		c.emitByte(byte(vm.OpAdd))
		c.fn.stack(-1)
	}
	c.consume(lexer.InterpEnd, vm.ErrXTOKEN, "}")
	c.emitStringPart(c.prev.StringValue)
	c.emitByte(byte(vm.OpAdd))
	c.fn.stack(-1)
}

func (c *Compiler) emitStringPart(s string) {
	k := c.internConstant(s)
	c.emitBytes(byte(vm.OpConstant), k)
	c.fn.stack(1)
}

func (c *Compiler) emitInterpValue() {
	k := c.internConstant("str")
	c.emitBytes(byte(vm.OpGetGlobal), k)
	c.fn.stack(1)
	c.expression()
	c.emitBytes(byte(vm.OpCall), 1)
	c.fn.stack(-1)
}

func literal(c *Compiler, canAssign bool) {
	switch c.prev.Type {
	case lexer.Nil:
		c.emitByte(byte(vm.OpNil))
	case lexer.True:
		c.emitByte(byte(vm.OpTrue))
	case lexer.False:
		c.emitByte(byte(vm.OpFalse))
	}
	c.fn.stack(1)
}

func grouping(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")
}

// --- self / super -------------------------------------------------------

func self_(c *Compiler, canAssign bool) {
	if c.fn.class == nil {
		c.fail(vm.ErrXSELFO)
	}
	if c.fn.class.isStaticMethod {
		c.fail(vm.ErrXSELFS)
	}
	c.emitNameGet("self", c.resolveName("self"))
}

// super_ compiles both `super.method` (a bound-method value, GET_SUPER) and
// `super.method(args)` (fused call, SUPER) -- spec.md §4.7's method
// dispatch section. Both need self and the enclosing class's hidden
// `super` local pushed first.
func super_(c *Compiler, canAssign bool) {
	cls := c.fn.class
	if cls == nil {
		c.fail(vm.ErrXSUPERO)
	}
	if !cls.hasSuperclass {
		c.fail(vm.ErrXSUPERK)
	}
	c.consume(lexer.Dot, vm.ErrXTOKEN, ".")
	name := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
	k := c.internConstant(name)

	c.emitNameGet("self", c.resolveName("self"))
	superR := c.resolveName("super")

	if c.match(lexer.LeftParen) {
		n := c.argumentList()
		c.emitNameGet("super", superR)
		c.emitBytes(byte(vm.OpSuper), k, n)
		c.fn.stack(-(int(n) + 1))
		return
	}
	c.emitNameGet("super", superR)
	c.emitBytes(byte(vm.OpGetSuper), k)
	c.fn.stack(-1)
}

// --- identifiers / assignment -------------------------------------------

func variable(c *Compiler, canAssign bool) {
	c.namedVariable(c.prev.Lexeme, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	r := c.resolveName(name)

	switch {
	case canAssign && c.match(lexer.Equal):
		if r.kind == nameGlobal {
			c.fail(vm.ErrXASSIGN)
		}
		if r.isConst {
			c.fail(vm.ErrXVCONST)
		}
		c.expression()
		c.emitNameSet(name, r)
	case canAssign && c.checkCompoundAssign():
		if r.kind == nameGlobal {
			c.fail(vm.ErrXASSIGN)
		}
		if r.isConst {
			c.fail(vm.ErrXVCONST)
		}
		tok := c.curr.Type
		c.advance()
		c.emitNameGet(name, r)
		c.compileCompoundRHS(tok, func() { c.emitNameSet(name, r) })
	default:
		c.emitNameGet(name, r)
	}
}

func (c *Compiler) emitNameGet(name string, r resolved) {
	switch r.kind {
	case nameLocal:
		c.emitBytes(byte(vm.OpGetLocal), byte(r.index))
		c.fn.stack(1)
	case nameUpvalue:
		c.emitBytes(byte(vm.OpGetUpvalue), byte(r.index))
		c.fn.stack(1)
	case nameModule:
		k := c.internConstant(name)
		c.emitBytes(byte(vm.OpGetModule), k)
		c.fn.stack(1)
	case nameGlobal:
		k := c.internConstant(name)
		c.emitBytes(byte(vm.OpGetGlobal), k)
		c.fn.stack(1)
	}
}

// emitNameSet leaves the assigned value on the stack (SET_LOCAL/SET_UPVALUE/
// SET_MODULE all peek rather than pop, spec.md §9 "assignment as
// expression"); there is no nameGlobal case because no SET_GLOBAL opcode
// exists (DESIGN.md "Module-scoped vs. global variable resolution") --
// callers must reject that target before reaching here.
func (c *Compiler) emitNameSet(name string, r resolved) {
	switch r.kind {
	case nameLocal:
		c.emitBytes(byte(vm.OpSetLocal), byte(r.index))
	case nameUpvalue:
		c.emitBytes(byte(vm.OpSetUpvalue), byte(r.index))
	case nameModule:
		k := c.internConstant(name)
		c.emitBytes(byte(vm.OpSetModule), k)
	}
}

// --- attribute access -----------------------------------------------------

// dot compiles `.name`, `.name = e`, `.name OP= e` and the INVOKE fusion for
// `.name(args)`. GET_ATTR/SET_ATTR/PUSH_ATTR's real stack effects (measured
// from vm/interp.go, not spec.md §4.7's table) are: GET_ATTR net 0, PUSH_ATTR net +1 (keeps
// the receiver under the fetched value for a following SET_ATTR), SET_ATTR
// net -1 (consumes receiver and old value, leaves the new one).
func dot(c *Compiler, canAssign bool) {
	name := c.consume(lexer.Identifier, vm.ErrXTOKEN, "identifier").Lexeme
	k := c.internConstant(name)

	switch {
	case canAssign && c.match(lexer.Equal):
		c.expression()
		c.emitBytes(byte(vm.OpSetAttr), k)
		c.fn.stack(-1)
	case canAssign && c.checkCompoundAssign():
		tok := c.curr.Type
		c.advance()
		c.emitBytes(byte(vm.OpPushAttr), k)
		c.fn.stack(1)
		c.compileCompoundRHS(tok, func() {
			c.emitBytes(byte(vm.OpSetAttr), k)
			c.fn.stack(-1)
		})
	case c.match(lexer.LeftParen):
		n := c.argumentList()
		c.emitBytes(byte(vm.OpInvoke), k, n)
		c.fn.stack(-int(n))
	default:
		c.emitBytes(byte(vm.OpGetAttr), k)
	}
}

// subscript compiles `[idx]`, `[idx] = e`, `[idx] OP= e`. GET_INDEX net -1,
// PUSH_INDEX net +1 (keeps receiver+index under the fetched value), SET_INDEX
// net -2 (consumes receiver, index and old value, leaves the new one) --
// again measured from interp.go rather than spec.md's table.
func subscript(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(lexer.RightBracket, vm.ErrXTOKEN, "]")

	switch {
	case canAssign && c.match(lexer.Equal):
		c.expression()
		c.emitByte(byte(vm.OpSetIndex))
		c.fn.stack(-2)
	case canAssign && c.checkCompoundAssign():
		tok := c.curr.Type
		c.advance()
		c.emitByte(byte(vm.OpPushIndex))
		c.fn.stack(1)
		c.compileCompoundRHS(tok, func() {
			c.emitByte(byte(vm.OpSetIndex))
			c.fn.stack(-2)
		})
	default:
		c.emitByte(byte(vm.OpGetIndex))
		c.fn.stack(-1)
	}
}

// --- calls --------------------------------------------------------------

func (c *Compiler) argumentList() byte {
	n := 0
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			n++
			if n > maxParams {
				c.fail(vm.ErrXMAXARGS)
			}
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, vm.ErrXTOKEN, ")")
	return byte(n)
}

// call is CALL's infix rule: the callee is already on the stack, pushed by
// whatever expression preceded the '('. Net effect -nargs: callee plus
// nargs arguments collapse into a single result.
func call(c *Compiler, canAssign bool) {
	n := c.argumentList()
	c.emitBytes(byte(vm.OpCall), n)
	c.fn.stack(-int(n))
}

// --- unary / binary -------------------------------------------------------

func unary(c *Compiler, canAssign bool) {
	opTok := c.prev.Type
	c.parsePrecedence(precUnary)
	switch opTok {
	case lexer.Minus:
		c.emitByte(byte(vm.OpNegate))
	case lexer.Bang:
		c.emitByte(byte(vm.OpNot))
	case lexer.Tilde:
		c.emitByte(byte(vm.OpBNot))
	}
	// NEGATE/NOT/BNOT all replace the top of stack in place: net 0.
}

var binaryOp = map[lexer.Type]byte{
	lexer.Plus:           byte(vm.OpAdd),
	lexer.Minus:           byte(vm.OpSub),
	lexer.Star:            byte(vm.OpMul),
	lexer.Slash:           byte(vm.OpDiv),
	lexer.Percent:         byte(vm.OpMod),
	lexer.StarStar:        byte(vm.OpPow),
	lexer.Amp:             byte(vm.OpBAnd),
	lexer.Pipe:            byte(vm.OpBOr),
	lexer.Caret:           byte(vm.OpBXor),
	lexer.LessLess:        byte(vm.OpLShift),
	lexer.GreaterGreater:  byte(vm.OpRShift),
	lexer.EqualEqual:      byte(vm.OpEqual),
	lexer.Less:            byte(vm.OpLess),
	lexer.LessEqual:       byte(vm.OpLessEqual),
	lexer.Greater:         byte(vm.OpGreater),
	lexer.GreaterEqual:    byte(vm.OpGreaterEqual),
}

// binary parses the right operand at one precedence level higher for
// left-associative operators; `**` repeats its own precedence so that
// `2 ** 3 ** 2` is right-associative, matching every other language that
// has an exponentiation operator.
func binary(c *Compiler, canAssign bool) {
	opTok := c.prev.Type
	r := rule(opTok)
	next := r.prec + 1
	if opTok == lexer.StarStar {
		next = r.prec
	}
	c.parsePrecedence(next)

	if opTok == lexer.BangEqual {
		c.emitByte(byte(vm.OpEqual))
		c.fn.stack(-1)
		c.emitByte(byte(vm.OpNot))
		return
	}
	op, ok := binaryOp[opTok]
	if !ok {
		c.fail(vm.ErrXEXPR)
	}
	c.emitByte(op)
	c.fn.stack(-1)
}

// --- logical / conditional ------------------------------------------------

// and_/or_ implement short circuit via JUMP_IF_FALSE, which (per interp.go,
// unlike spec.md §4.7's table entry) peeks rather than pops: the emitter is
// responsible for the explicit POP on the branch that's taken.
func and_(c *Compiler, canAssign bool) {
	endJump := c.emitJump(byte(vm.OpJumpIfFalse))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.parsePrecedence(precAnd + 1)
	c.patchJump(endJump)
}

func or_(c *Compiler, canAssign bool) {
	elseJump := c.emitJump(byte(vm.OpJumpIfFalse))
	endJump := c.emitJump(byte(vm.OpJump))
	c.patchJump(elseJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.parsePrecedence(precOr + 1)
	c.patchJump(endJump)
}

// ternary compiles `cond ? then : else`, reusing the same jump shape an
// `if` statement uses (see stmt.go's ifStmt).
func ternary(c *Compiler, canAssign bool) {
	thenJump := c.emitJump(byte(vm.OpJumpIfFalse))
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.parsePrecedence(precAssignment)
	elseJump := c.emitJump(byte(vm.OpJump))
	c.patchJump(thenJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.consume(lexer.Colon, vm.ErrXTOKEN, ":")
	c.parsePrecedence(precTernary)
	c.patchJump(elseJump)
}

// nullCoalesce compiles `a ?? b`: b is only evaluated when a is nil, via
// JUMP_IF_NIL (also a peek, not a pop).
func nullCoalesce(c *Compiler, canAssign bool) {
	elseJump := c.emitJump(byte(vm.OpJumpIfNil))
	endJump := c.emitJump(byte(vm.OpJump))
	c.patchJump(elseJump)
	c.emitByte(byte(vm.OpPop))
	c.fn.stack(-1)
	c.parsePrecedence(precNullCoalesce + 1)
	c.patchJump(endJump)
}

// --- is / in / range ------------------------------------------------------

// isExpr peepholes `expr is BuiltinName` straight to ISTYPE with the
// builtin class baked into the constant pool (SPEC_FULL §3), since only
// the fixed reserved classes (spec.md §4.9) have compile-time-known
// identity; anything else -- including a user class stored in a variable --
// falls back to the general IS opcode, which compares against a runtime
// class value.
func isExpr(c *Compiler, canAssign bool) {
	if c.check(lexer.Identifier) {
		if cls, ok := c.vm.BuiltinClass(c.curr.Lexeme); ok {
			c.advance()
			k := c.makeConstant(cls)
			c.emitBytes(byte(vm.OpIsType), k)
			return
		}
	}
	c.parsePrecedence(precIsIn + 1)
	c.emitByte(byte(vm.OpIs))
	c.fn.stack(-1)
}

func inExpr(c *Compiler, canAssign bool) {
	c.parsePrecedence(precIsIn + 1)
	c.emitByte(byte(vm.OpIn))
	c.fn.stack(-1)
}

// rangeExpr compiles `a..b` (RANGE pops end and start, pushes a range
// object with step 1: net -1, not the -2 spec.md §4.7's table lists).
// `...` is reserved for spread in list literals and parameter
// lists rather than an exclusive-range variant: gcRange carries no
// inclusive/exclusive flag for the VM to distinguish (vm/alloc.go
// newRange), so there is nothing for a second range opcode to express.
func rangeExpr(c *Compiler, canAssign bool) {
	c.parsePrecedence(precRange + 1)
	c.emitByte(byte(vm.OpRange))
	c.fn.stack(-1)
}

// --- collection literals --------------------------------------------------

// listLiteral always starts from an empty list (LIST 0) and appends each
// element with LIST_ITEM, or splices a spread element's items with
// LIST_EXTEND. This forgoes the single-shot `LIST n` form (push n values,
// collapse in one instruction) that a literal with no spread elements could
// use instead; the incremental form handles both cases uniformly without
// the parser needing a lookahead pass to decide which form applies.
func listLiteral(c *Compiler, canAssign bool) {
	c.emitBytes(byte(vm.OpList), 0)
	c.fn.stack(1)
	for !c.check(lexer.RightBracket) {
		if c.match(lexer.DotDotDot) {
			c.parsePrecedence(precAssignment)
			c.emitByte(byte(vm.OpListExtend))
			c.fn.stack(-1)
		} else {
			c.parsePrecedence(precAssignment)
			c.emitByte(byte(vm.OpListItem))
			c.fn.stack(-1)
		}
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.consume(lexer.RightBracket, vm.ErrXTOKEN, "]")
}

func mapLiteral(c *Compiler, canAssign bool) {
	c.emitBytes(byte(vm.OpMap), 0)
	c.fn.stack(1)
	for !c.check(lexer.RightBrace) {
		c.parsePrecedence(precAssignment)
		c.consume(lexer.Colon, vm.ErrXTOKEN, ":")
		c.parsePrecedence(precAssignment)
		c.emitByte(byte(vm.OpMapField))
		c.fn.stack(-2)
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.consume(lexer.RightBrace, vm.ErrXTOKEN, "}")
}

// --- function expressions -------------------------------------------------

func functionExpr(c *Compiler, canAssign bool) {
	c.compileFunction(vm.KindAnonymous, "", false)
}
