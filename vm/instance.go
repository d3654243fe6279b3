package vm

import (
	"io"
	"os"
)

// builtinID indexes the reserved singleton classes of spec.md §4.9. Object
// is always index 0 and, per the boot sequence, becomes every other
// builtin's implicit superclass.
type builtinID int

const (
	builtinObject builtinID = iota
	builtinNumber
	builtinBool
	builtinFunction
	builtinString
	builtinList
	builtinMap
	builtinRange
	builtinBuffer
	builtinFile
	builtinCount
)

// CallFrame addresses one active call into the shared evaluation stack
// (spec.md §4.7, "Call frames vs. stack" in §9): a closure, its instruction
// pointer, and a base index into Instance.stack. Frames live in their own
// contiguous array rather than inside objects.
type CallFrame struct {
	closure *gcFunc
	ip      int
	base    int
	nargs   int // argument count as passed by the caller, before padding
}

const defaultStackSize = 4096

// Instance is one VM state (spec.md §5): it transitively owns its
// evaluation stack, call frames, heap, interner and module registry.
// Concurrent use of the same Instance from multiple goroutines is
// undefined; independent Instances share nothing.
type Instance struct {
	stack []Value
	sp    int

	frames     []CallFrame
	frameCount int

	openUpvalues *gcUpvalue

	strings  *interner
	objects  *object
	grayStack []*object

	bytesAllocated int64
	nextGC         int64
	stress         bool

	globals *table
	modules map[string]*gcModule

	builtins [builtinCount]*gcClass

	stdout io.Writer
	stdin  io.Reader
	argv   []string

	script *gcModule // the implicit top-level "main" module

	moduleLoader func(name string, mod *gcModule) (*gcProto, error)
	fileLoader   func(path string, mod *gcModule) (*gcProto, error)
}

// ModuleLoader registers the callback used by `import name` to compile a
// logical module name into a prototype (spec.md §4.6); the compiler
// package is the typical provider. mod is the already-registered (empty)
// module the loader must hand to every ProtoBuilder it creates while
// compiling, so nested function protos can reach proto.module too. Left
// nil, bare `import name` fails with ErrNOPATH.
func ModuleLoader(fn func(name string, mod *Module) (*gcProto, error)) Option {
	return func(i *Instance) { i.moduleLoader = fn }
}

// FileLoader registers the callback used by `import "path"` / `import
// "f${x}"` to compile a file path into a prototype.
func FileLoader(fn func(path string, mod *Module) (*gcProto, error)) Option {
	return func(i *Instance) { i.fileLoader = fn }
}

// Option configures an Instance at construction time, following the
// teacher's functional-options pattern (vm.Option/vm.DataSize/vm.Input/
// vm.Output in the original ngaro package).
type Option func(*Instance)

// StackSize sets the evaluation stack's capacity. Default 4096 slots.
func StackSize(n int) Option {
	return func(i *Instance) { i.stack = make([]Value, n) }
}

// Stdout sets the writer used by stdlib `print`-style collaborators.
func Stdout(w io.Writer) Option {
	return func(i *Instance) { i.stdout = w }
}

// Stdin sets the reader used by stdlib `input`-style collaborators.
func Stdin(r io.Reader) Option {
	return func(i *Instance) { i.stdin = r }
}

// Argv sets the process argument vector exposed to the `sys` stdlib module
// (spec.md §6, "argv is exposed via the sys module").
func Argv(args []string) Option {
	return func(i *Instance) { i.argv = args }
}

// StressGCOption forces a collection on every allocation from construction
// onward; a constructor-time equivalent of Instance.StressGC for tests that
// want to catch GC bugs from the first allocation (spec.md §4.4).
func StressGCOption() Option {
	return func(i *Instance) { i.stress = true }
}

// New creates a VM state and runs the boot sequence: it opens the string
// interner, the module registry and the protected builtin-class set, then
// creates Object first and attaches it as every other builtin's implicit
// superclass (spec.md §4.9, "tea_open... creates Object first").
func New(opts ...Option) *Instance {
	i := &Instance{
		stack:   make([]Value, defaultStackSize),
		sp:      -1,
		frames:  make([]CallFrame, maxCallFrames),
		strings: newInterner(),
		globals: newTable(),
		modules: make(map[string]*gcModule),
		nextGC:  initialGCThreshold,
		stdout:  os.Stdout,
		stdin:   os.Stdin,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.bootBuiltins()
	return i
}

// bootBuiltins creates the reserved singleton classes named in spec.md
// §4.9 and attaches Object as the implicit superclass of the rest.
func (i *Instance) bootBuiltins() {
	names := [builtinCount]string{
		builtinObject:   "Object",
		builtinNumber:   "Number",
		builtinBool:     "Bool",
		builtinFunction: "Function",
		builtinString:   "String",
		builtinList:     "List",
		builtinMap:      "Map",
		builtinRange:    "Range",
		builtinBuffer:   "Buffer",
		builtinFile:     "File",
	}
	obj := i.newClass(names[builtinObject], nil)
	i.builtins[builtinObject] = obj
	for id := builtinObject + 1; id < builtinCount; id++ {
		i.builtins[id] = i.newClass(names[id], obj)
	}
}

// Builtin returns the singleton class backing the dynamic type of v, the
// instance's own class for an instance, or nil for nil and for object kinds
// with no builtin class (spec.md §4.9).
func (i *Instance) Builtin(v Value) *gcClass {
	switch {
	case v.IsBool():
		return i.builtins[builtinBool]
	case v.IsNumber():
		return i.builtins[builtinNumber]
	case v.IsNil():
		return nil
	default:
		switch v.Type() {
		case objString:
			return i.builtins[builtinString]
		case objList:
			return i.builtins[builtinList]
		case objMap:
			return i.builtins[builtinMap]
		case objRange:
			return i.builtins[builtinRange]
		case objBuffer:
			return i.builtins[builtinBuffer]
		case objFile:
			return i.builtins[builtinFile]
		case objFunc, objCFunc, objMethod:
			return i.builtins[builtinFunction]
		case objInstance:
			return v.AsObject().instance().class
		default:
			return nil
		}
	}
}

// BuiltinClass looks up one of the reserved singleton classes of spec.md
// §4.9 by name, for the compiler's `is BuiltinName` -> ISTYPE peephole
// (SPEC_FULL §3): only these are compile-time constants, since a
// user-defined class is a runtime value with no fixed identity the
// compiler can bake into a prototype's constant pool ahead of time.
func (i *Instance) BuiltinClass(name string) (Value, bool) {
	for id := builtinObject; id < builtinCount; id++ {
		c := i.builtins[id]
		if c != nil && c.name != nil && c.name.chars == name {
			return FromObject(&c.object), true
		}
	}
	return Nil, false
}

// push/pop manage the shared evaluation stack that every call frame
// addresses via its base index (spec.md §9).
func (i *Instance) push(v Value) {
	i.sp++
	if i.sp >= len(i.stack) {
		i.growStack()
	}
	i.stack[i.sp] = v
}

func (i *Instance) growStack() {
	ns := make([]Value, len(i.stack)*2)
	copy(ns, i.stack)
	i.stack = ns
}

func (i *Instance) pop() Value {
	v := i.stack[i.sp]
	i.sp--
	return v
}

func (i *Instance) peek(distance int) Value {
	return i.stack[i.sp-distance]
}

func (i *Instance) top() *Value {
	return &i.stack[i.sp]
}
