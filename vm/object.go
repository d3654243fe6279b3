package vm

import (
	"io"
	"unsafe"
)

func ptrOf(o *object) unsafe.Pointer { return unsafe.Pointer(o) }

// objType tags every heap object's dynamic type, matching ObjType in
// tea_obj.h plus the additional buffer/userdata kinds named in spec.md §3.
type objType uint8

const (
	objString objType = iota
	objRange
	objProto
	objCFunc
	objModule
	objFunc
	objUpvalue
	objClass
	objInstance
	objMethod
	objList
	objMap
	objFile
	objBuffer
	objUserdata
)

var objTypeNames = [...]string{
	objString:   "string",
	objRange:    "range",
	objProto:    "proto",
	objCFunc:    "function",
	objModule:   "module",
	objFunc:     "function",
	objUpvalue:  "upvalue",
	objClass:    "class",
	objInstance: "instance",
	objMethod:   "method",
	objList:     "list",
	objMap:      "map",
	objFile:     "file",
	objBuffer:   "buffer",
	objUserdata: "userdata",
}

// object is the header every heap-allocated object embeds. next threads the
// single intrusive list of all live objects that the GC sweeps (spec.md §3,
// "Ownership is a single intrusive linked list of all live objects rooted
// in the VM state"); marked is the GC's tricolour bit for this non-moving
// collector (white == unmarked == not yet visited this cycle).
type object struct {
	typ    objType
	marked bool
	next   *object
}

func (o *object) typeName() string { return objTypeNames[o.typ] }

// The objX() accessors are unchecked casts from *object back to the
// concrete heap type; callers only use them once the dynamic type has
// already been established (Value.Type, or a direct allocation).
func (o *object) str() *gcString     { return (*gcString)(ptrOf(o)) }
func (o *object) rangeObj() *gcRange { return (*gcRange)(ptrOf(o)) }
func (o *object) proto() *gcProto    { return (*gcProto)(ptrOf(o)) }
func (o *object) cfunc() *gcCFunc    { return (*gcCFunc)(ptrOf(o)) }
func (o *object) module() *gcModule  { return (*gcModule)(ptrOf(o)) }
func (o *object) fn() *gcFunc        { return (*gcFunc)(ptrOf(o)) }
func (o *object) upvalue() *gcUpvalue {
	return (*gcUpvalue)(ptrOf(o))
}
func (o *object) class() *gcClass       { return (*gcClass)(ptrOf(o)) }
func (o *object) instance() *gcInstance { return (*gcInstance)(ptrOf(o)) }
func (o *object) method() *gcMethod     { return (*gcMethod)(ptrOf(o)) }
func (o *object) list() *gcList         { return (*gcList)(ptrOf(o)) }
func (o *object) mapObj() *gcMap        { return (*gcMap)(ptrOf(o)) }
func (o *object) file() *gcFile         { return (*gcFile)(ptrOf(o)) }
func (o *object) buffer() *gcBuffer     { return (*gcBuffer)(ptrOf(o)) }
func (o *object) userdata() *gcUserdata { return (*gcUserdata)(ptrOf(o)) }

// gcString is an immutable interned byte string; see string.go for the
// interner that guarantees pointer-identity equality.
type gcString struct {
	object
	chars    string
	len      int
	hash     uint32
	reserved bool
}

// gcRange is the {start, end, step} triple backing `a..b` expressions.
type gcRange struct {
	object
	start, end, step float64
}

// upvalDesc describes one upvalue capture, read by CLOSURE at runtime and
// written by the emitter at compile time.
type upvalDesc struct {
	isLocal bool
	index   uint8
	isConst bool
}

type protoKind uint8

const (
	protoFunction protoKind = iota
	protoAnonymous
	protoConstructor
	protoStatic
	protoMethod
	protoOperator
	protoScript
)

// lineEntry is one delta-encoded bytecode-offset -> source-line mapping.
type lineEntry struct {
	offset int
	line   int
}

// gcProto is the compiled, immutable form of one source function (spec.md
// §3, GCproto).
type gcProto struct {
	object
	name             *gcString
	code             []byte
	constants        []Value
	arity            uint8
	arityOptional    uint8
	variadic         bool
	maxSlots         uint8
	upvalues         []upvalDesc
	lines            []lineEntry
	kind             protoKind
	module           *gcModule
}

func (p *gcProto) lineFor(offset int) int {
	line := 0
	for _, e := range p.lines {
		if e.offset > offset {
			break
		}
		line = e.line
	}
	return line
}

// CFuncKind distinguishes how a registered C function is invoked: a normal
// callable, a bound method, or a property that fires on attribute access
// rather than returning a callable (spec.md §4.9).
type CFuncKind uint8

const (
	CFuncFunction CFuncKind = iota
	CFuncMethod
	CFuncProperty
)

// CFunction is the signature stdlib collaborators register through
// CreateClass/CreateModule. args is the argument span on the data stack;
// the return value replaces the call region.
type CFunction func(i *Instance, args []Value) (Value, error)

type gcCFunc struct {
	object
	name  string
	fn    CFunction
	arity int
	kind  CFuncKind
}

// gcModule holds a module's local namespace (vars, including imports) and
// its export table (spec.md §3).
type gcModule struct {
	object
	name    *gcString
	path    string
	vars    *table
	exports *table
}

// gcFunc is a runtime closure: a prototype plus the upvalue cells captured
// at creation time.
type gcFunc struct {
	object
	proto    *gcProto
	upvalues []*gcUpvalue
}

// gcUpvalue is a reference cell, open while pointing into a live stack slot
// and closed once the variable has left scope (spec.md §3, GLOSSARY).
type gcUpvalue struct {
	object
	location *Value // points into the VM stack while open
	closed   Value
	next     *gcUpvalue // open-upvalue list, sorted by descending location
}

func (u *gcUpvalue) get() Value  { return *u.location }
func (u *gcUpvalue) set(v Value) { *u.location = v }
func (u *gcUpvalue) isOpen() bool { return u.location != &u.closed }

// gcClass: name, optional superclass, method table, optional cached
// constructor (spec.md §3).
type gcClass struct {
	object
	name        *gcString
	super       *gcClass
	constructor Value
	statics     *table
	methods     *table
}

// gcInstance: class pointer + attribute table.
type gcInstance struct {
	object
	class  *gcClass
	fields *table
}

// gcMethod: a bound method, receiver + function; calling it prepends the
// receiver (spec.md §3, GLOSSARY).
type gcMethod struct {
	object
	receiver Value
	fn       Value
}

// gcList is a growable ordered array of values.
type gcList struct {
	object
	items []Value
}

// gcFile: opaque payload + path/mode, closed by the GC's per-type
// destructor during sweep.
type gcFile struct {
	object
	handle io.Closer
	path   string
	mode   string
	open   bool
}

// gcBuffer: mutable byte buffer with read/write cursors, backing the
// stdlib Buffer class (spec.md §3).
type gcBuffer struct {
	object
	data      []byte
	readCur   int
	writeCur  int
}

// gcUserdata: opaque payload + optional finalizer.
type gcUserdata struct {
	object
	data     any
	finalize func(any)
}
