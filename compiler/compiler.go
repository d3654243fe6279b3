// Package compiler implements spec.md §4.6: a single-pass recursive-descent
// parser with Pratt-style expression parsing that emits bytecode prototypes
// directly through vm.ProtoBuilder, with no intermediate AST. Modeled on the
// teacher's asm.parser (labels/consts/forward references resolved while
// walking the token stream) generalized to a full expression grammar,
// lexical scopes, classes and closures.
package compiler

import (
	"io"

	"github.com/RevengerWizard/teascript-sub001/lexer"
	"github.com/RevengerWizard/teascript-sub001/vm"
)

const (
	maxLocals    = 256
	maxUpvalues  = 256
	maxConstants = 256
	maxParams    = 255
)

// localVar is one entry in a funcState's locals table; its index in
// funcState.locals is also its stack slot, since a local's value is
// whatever its initializer expression already left on the stack (spec.md
// §4.6, "Scope model").
type localVar struct {
	name       string
	depth      int
	isCaptured bool
	isConst    bool
}

// upvalueRef mirrors vm.UpvalueDesc while compiling the enclosing function,
// before the child prototype exists to hand descriptors to.
type upvalueRef struct {
	index   uint8
	isLocal bool
	isConst bool
}

// loopState tracks the innermost enclosing loop so break/continue can close
// scopes down to the loop's entry depth and reach the right targets
// (spec.md §4.6, "break/continue"). Both break and continue emit a
// placeholder END opcode (2-byte operand, like a jump) recorded here and
// patched once the loop's exit/continue target is known -- a do-while's
// continue target (the condition check) isn't known until after its body
// compiles, so every loop kind uses the same forward-patch scheme rather
// than having continue emit LOOP directly for loop kinds where the target
// happens to already be known.
type loopState struct {
	enclosing  *loopState
	scopeDepth int // depth at loop entry; break/continue pop down to this
	breaks     []int
	continues  []int
}

// classState tracks the innermost enclosing class declaration, chained the
// same way funcState is, so nested method bodies can check `self`/`super`
// validity and superclass presence (spec.md §4.6, SPEC_FULL §3 XSUPERO/
// XSUPERK/XSELFO/XSELFS checks).
type classState struct {
	enclosing      *classState
	hasSuperclass  bool
	isStaticMethod bool // set only while compiling a static method's body
}

// funcState is the "FuncState" of spec.md §9: one nested emitter frame per
// compiled function, chained via enclosing. Built directly on top of
// vm.ProtoBuilder rather than an owned tree, per §9's suggested modeling
// for languages that prefer owned trees over the reference's explicit
// chain.
type funcState struct {
	enclosing *funcState
	builder   *vm.ProtoBuilder
	kind      vm.ProtoKind

	locals     []localVar
	scopeDepth int

	upvalues []upvalueRef

	stackSize int
	maxSlots  int

	loop  *loopState
	class *classState // enclosing class at the time this function was opened
}

// Compiler drives one compile unit (one source file/string): a lexer, a
// one-token lookahead pair (prev/curr), the current funcState chain and the
// shared module namespace every proto in the unit writes to (spec.md §4.6,
// DESIGN.md "Module-scoped vs. global variable resolution").
type Compiler struct {
	vm  *vm.Instance
	lex *lexer.Lexer

	prev, curr lexer.Token

	// pending buffers tokens read ahead of curr by isArrowAhead's scan for
	// the matching ')' of a possible arrow-function parameter list, since
	// the lexer itself has no rewind (spec.md §4.5 nominally budgets one
	// token of lookahead; arrow-vs-grouping disambiguation needs to see
	// past an arbitrarily long parameter list to find '=>').
	pending []lexer.Token

	fn *funcState

	mod *vm.Module

	// loadModule/loadFile back `import name`/`import "path"` (spec.md
	// §4.6); nil unless the host wired vm.ModuleLoader/vm.FileLoader to a
	// compiler-backed callback (see Compile/CompileModule).
	loadModule func(name string, mod *vm.Module) (*vm.Proto, error)
	loadFile   func(path string, mod *vm.Module) (*vm.Proto, error)
}

// compileError is panicked to unwind out of arbitrarily nested recursive-
// descent calls to the single recover point in Compile, the same
// panic/recover stand-in for non-local unwind that vm.protectedCall uses
// for runtime errors (spec.md §4.8's "In a language without stack-
// unwinding throw/longjmp, replace the protected-call mechanism..."
// applies equally well to parse-time errors as to runtime ones). Unlike
// the teacher's asm package, which accumulates up to 10 errors per file
// because each bad assembly line can be skipped independently, this
// parser stops at the first error: a Pratt parser's locals/scope-depth
// bookkeeping is not safely resumable mid-expression, so attempting to
// recover and continue risks cascading nonsense errors instead of useful
// ones.
type compileError struct{ err *vm.Error }

func (c *Compiler) fail(code vm.ErrCode, args ...any) {
	panic(compileError{vm.NewErrorAt(code, c.curr.Line, args...)})
}

func (c *Compiler) failAt(line int, code vm.ErrCode, args ...any) {
	panic(compileError{vm.NewErrorAt(code, line, args...)})
}

// Compile compiles src as the top-level script named name, sharing inst's
// interner/module registry. The returned module is registered under name
// so a later `import name` resolves to it (circular-import cache, spec.md
// §4.6); name may be "" to skip registration (a one-shot `eval`-style run).
func Compile(inst *vm.Instance, src io.Reader, name string) (*vm.Proto, *vm.Module, error) {
	mod := inst.NewModule(name, name)
	proto, err := compileUnit(inst, src, name, mod, vm.KindScript)
	if err != nil {
		return nil, nil, err
	}
	if name != "" {
		inst.RegisterModule(name, mod)
	}
	return proto, mod, nil
}

// Loader builds the vm.ModuleLoader/vm.FileLoader callbacks for `import`.
// It is split into construction and Bind because `vm.New` needs the loader
// functions before it can hand back the *vm.Instance compiled modules must
// run against (the ISTYPE peephole's constant-pool entries are a live
// instance's builtin class objects, spec.md §4.9, so a module compiled
// against the wrong instance or no instance at all would crash); callers
// construct the Loader, pass its methods to vm.New's options, then Bind the
// resulting instance before any import runs.
type Loader struct {
	resolve func(name string) (io.Reader, error)
	inst    *vm.Instance
}

func NewLoader(resolve func(name string) (io.Reader, error)) *Loader {
	return &Loader{resolve: resolve}
}

func (l *Loader) Bind(inst *vm.Instance) { l.inst = inst }

// Load compiles name as if it were a file the host's name->reader resolver
// locates, opening a fresh compile unit (and funcState chain) per import,
// per spec.md §4.6's "each function opens a nested emitter frame" applying
// to whole compile units too.
func (l *Loader) Load(name string, mod *vm.Module) (*vm.Proto, error) {
	r, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return compileUnit(l.inst, r, name, mod, vm.KindScript)
}

func compileUnit(inst *vm.Instance, src io.Reader, name string, mod *vm.Module, kind vm.ProtoKind) (p *vm.Proto, err error) {
	c := &Compiler{
		vm:  inst,
		lex: lexer.New(src),
		mod: mod,
	}
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(compileError); ok {
				p, err = nil, ce.err
				return
			}
			panic(r)
		}
	}()

	c.openFunc(name, kind)
	c.advance()
	for !c.check(lexer.EOF) {
		c.declaration()
	}
	c.consume(lexer.EOF, vm.ErrXTOKEN, "EOF")
	proto, _ := c.closeFunc()
	return proto, nil
}

// --- token stream -----------------------------------------------------

func (c *Compiler) nextToken() lexer.Token {
	if len(c.pending) > 0 {
		t := c.pending[0]
		c.pending = c.pending[1:]
		return t
	}
	return c.lex.Next()
}

func (c *Compiler) advance() {
	c.prev = c.curr
	for {
		c.curr = c.nextToken()
		if c.curr.Type != lexer.Error {
			return
		}
		panic(compileError{&vm.Error{Code: vm.ErrXNEAR, Msg: c.curr.Lexeme, Line: c.curr.Line}})
	}
}

// isArrowAhead reports whether curr (a '(') opens an arrow-function
// parameter list rather than a parenthesized expression, by scanning ahead
// for the matching ')' and checking for a following '=>'. Every token read
// during the scan is buffered into pending so nextToken replays it.
func (c *Compiler) isArrowAhead() bool {
	depth := 1
	var buf []lexer.Token
	for {
		t := c.nextToken()
		buf = append(buf, t)
		switch t.Type {
		case lexer.LeftParen:
			depth++
		case lexer.RightParen:
			depth--
			if depth == 0 {
				next := c.nextToken()
				buf = append(buf, next)
				c.pending = append(buf, c.pending...)
				return next.Type == lexer.Arrow
			}
		case lexer.EOF:
			c.pending = append(buf, c.pending...)
			return false
		}
	}
}

func (c *Compiler) check(t lexer.Type) bool { return c.curr.Type == t }

func (c *Compiler) match(t lexer.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.Type, code vm.ErrCode, args ...any) lexer.Token {
	if c.curr.Type == t {
		tok := c.curr
		c.advance()
		return tok
	}
	c.fail(code, args...)
	panic("unreachable")
}

// --- proto / funcState lifecycle ---------------------------------------

func (c *Compiler) openFunc(name string, kind vm.ProtoKind) {
	fs := &funcState{
		enclosing: c.fn,
		builder:   c.vm.NewProtoBuilder(name, kind, c.mod),
		kind:      kind,
		class:     c.currentClass(),
	}
	c.fn = fs
	// Slot 0 is always reserved for the callee/receiver (spec.md §4.7
	// "CALL n expects the callee at stack position top-n-1"). INVOKE and
	// vm/call.go's bound-method and class paths put the receiver there for
	// methods and constructors; an operator method is run through
	// Instance.Call (vm/operators.go), which leaves the callee itself in
	// slot 0 and passes the receiver as the first argument.
	selfName := ""
	switch kind {
	case vm.KindMethod, vm.KindConstructor, vm.KindOperator:
		selfName = "self"
	}
	fs.locals = append(fs.locals, localVar{name: selfName, depth: 0})
	fs.stack(1)
}

// currentClass reports the classState active for a *newly opened* func
// (used by openFunc to seed funcState.class); top-level calls track it
// via c.fn.class directly once functions are nested.
func (c *Compiler) currentClass() *classState {
	if c.fn == nil {
		return nil
	}
	return c.fn.class
}

// closeFunc finishes the current prototype and pops back to the enclosing
// funcState, matching clox's endCompiler/the chain-of-owning-references
// shape spec.md §9 suggests for tree-owning languages.
func (c *Compiler) closeFunc() (*vm.Proto, vm.Value) {
	c.emitReturn()
	fs := c.fn
	fs.builder.SetMaxSlots(uint8(clampU8(fs.maxSlots)))
	for _, u := range fs.upvalues {
		fs.builder.AddUpvalue(vm.UpvalueDesc{IsLocal: u.isLocal, Index: u.index, IsConst: u.isConst})
	}
	proto, val := fs.builder.Finish()
	c.fn = fs.enclosing
	return proto, val
}

func clampU8(n int) int {
	if n > 255 {
		return 255
	}
	if n < 0 {
		return 0
	}
	return n
}

func (c *Compiler) emitReturn() {
	if c.fn.kind == vm.KindConstructor {
		c.emitBytes(byte(vm.OpGetLocal), 0)
		c.fn.stack(1)
	} else {
		c.emitByte(byte(vm.OpNil))
		c.fn.stack(1)
	}
	c.emitByte(byte(vm.OpReturn))
	c.fn.stack(-1)
}

// --- stack-depth bookkeeping --------------------------------------------

// stack adjusts the simulated evaluation-stack depth by delta (matching
// spec.md §4.7's per-opcode net stack effect) and updates the running
// high-water mark, which becomes the prototype's max_slots (spec.md §8
// invariant 7: "an upper bound on stack depth... the VM need not
// re-check").
func (f *funcState) stack(delta int) {
	f.stackSize += delta
	if f.stackSize > f.maxSlots {
		f.maxSlots = f.stackSize
	}
}

// --- byte emission --------------------------------------------------------

func (c *Compiler) emitByte(b byte) {
	c.fn.builder.EmitByte(b)
	c.fn.builder.AddLine(c.fn.builder.Len()-1, c.prevLine())
}

func (c *Compiler) prevLine() int {
	if c.prev.Line != 0 {
		return c.prev.Line
	}
	return c.curr.Line
}

func (c *Compiler) emitBytes(b ...byte) {
	for _, x := range b {
		c.emitByte(x)
	}
}

func (c *Compiler) emitU16Op(op byte, v uint16) int {
	c.emitByte(op)
	at := c.fn.builder.Len()
	c.fn.builder.EmitU16(v)
	return at
}

// emitJump emits a jump opcode with a placeholder 2-byte operand and
// returns the operand's offset for a later patchJump call.
func (c *Compiler) emitJump(op byte) int {
	return c.emitU16Op(op, 0xFFFF)
}

func (c *Compiler) patchJump(at int) {
	c.fn.builder.PatchU16(at, uint16(c.fn.builder.Len()))
}

// emitLoop emits an absolute-offset LOOP back-edge to start (spec.md §4.7:
// "JUMP/LOOP... 16-bit jump offsets", and interp.go's OpLoop sets
// frame.ip = off directly, i.e. absolute not relative).
func (c *Compiler) emitLoop(start int) {
	if start > 1<<16-1 {
		c.fail(vm.ErrXLOOP)
	}
	c.emitU16Op(byte(vm.OpLoop), uint16(start))
}

// emitConstant adds v to the current function's constant pool and emits
// CONSTANT k (spec.md §4.6 "Constant pool... At most 256 constants per
// prototype... overflow raises xkconst").
func (c *Compiler) emitConstant(v vm.Value) {
	c.emitBytes(byte(vm.OpConstant), c.makeConstant(v))
	c.fn.stack(1)
}

func (c *Compiler) makeConstant(v vm.Value) byte {
	k := c.fn.builder.AddConstant(v)
	if k > 255 {
		c.fail(vm.ErrXKCONST)
	}
	return byte(k)
}

func (c *Compiler) internConstant(s string) byte {
	k, err := c.fn.builder.InternConstant(s)
	if err != nil {
		c.failAt(c.prev.Line, vm.ErrSTROV)
	}
	if k > 255 {
		c.fail(vm.ErrXKCONST)
	}
	return byte(k)
}

// --- scopes ---------------------------------------------------------------

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	fs := c.fn
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		last := fs.locals[len(fs.locals)-1]
		if last.isCaptured {
			c.emitByte(byte(vm.OpCloseUpvalue))
		} else {
			c.emitByte(byte(vm.OpPop))
		}
		fs.stack(-1)
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// --- locals -----------------------------------------------------------

// declareLocal registers name at the current scope depth without a slot
// value yet -- the caller must emit exactly one value-producing expression
// immediately after so the local's slot and the compiler's simulated stack
// depth agree (spec.md §4.6 scope model; the DEFINE_OPTIONAL bug fixed in
// vm/interp.go this session is the cautionary tale for this invariant).
func (c *Compiler) declareLocal(name string, isConst bool) {
	fs := c.fn
	if fs.scopeDepth == 0 {
		return // module/script scope: handled by DEFINE_MODULE, not a slot
	}
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := &fs.locals[i]
		if l.depth != -1 && l.depth < fs.scopeDepth {
			break
		}
		if l.name == name {
			c.fail(vm.ErrXDECL, name)
		}
	}
	if len(fs.locals) >= maxLocals {
		if fs.enclosing == nil {
			c.fail(vm.ErrXLIMM, maxLocals, "local variables")
		} else {
			c.fail(vm.ErrXLIMF, c.prev.Line, maxLocals, "local variables")
		}
	}
	fs.locals = append(fs.locals, localVar{name: name, depth: -1, isConst: isConst})
}

// markInitialized binds the most recently declared local to the current
// scope depth, once its initializer's value is on the stack.
func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[len(c.fn.locals)-1].depth = c.fn.scopeDepth
}

// nameResolution is the result of resolving an identifier, spanning all
// four kinds the compiler must distinguish to pick GET_LOCAL/GET_UPVALUE/
// GET_MODULE/GET_GLOBAL (DESIGN.md "Module-scoped vs. global variable
// resolution").
type nameKind int

const (
	nameLocal nameKind = iota
	nameUpvalue
	nameModule
	nameGlobal
)

type resolved struct {
	kind    nameKind
	index   int // local slot or upvalue index; unused for module/global
	isConst bool
}

func (c *Compiler) resolveName(name string) resolved {
	if idx, isConst, ok := resolveLocal(c.fn, name); ok {
		return resolved{kind: nameLocal, index: idx, isConst: isConst}
	}
	if idx, isConst, ok := resolveUpvalue(c.fn, name); ok {
		return resolved{kind: nameUpvalue, index: idx, isConst: isConst}
	}
	// Module scope only applies from the outermost function of this
	// compile unit (script or module body) -- a nested function's own
	// top level is ordinary function-local scope, not module scope.
	if c.fn.enclosing == nil {
		return resolved{kind: nameModule}
	}
	return resolved{kind: nameGlobal}
}

func resolveLocal(fs *funcState, name string) (int, bool, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, fs.locals[i].isConst, true
		}
	}
	return 0, false, false
}

func resolveUpvalue(fs *funcState, name string) (int, bool, bool) {
	if fs.enclosing == nil {
		return 0, false, false
	}
	if idx, isConst, ok := resolveLocal(fs.enclosing, name); ok {
		fs.enclosing.locals[idx].isCaptured = true
		return addUpvalue(fs, uint8(idx), true, isConst), isConst, true
	}
	if idx, isConst, ok := resolveUpvalue(fs.enclosing, name); ok {
		return addUpvalue(fs, uint8(idx), false, isConst), isConst, true
	}
	return 0, false, false
}

func addUpvalue(fs *funcState, index uint8, isLocal bool, isConst bool) int {
	for i, u := range fs.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		panic(compileError{vm.NewError(vm.ErrXLIMF, 0, maxUpvalues, "upvalues")})
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal, isConst: isConst})
	return len(fs.upvalues) - 1
}
