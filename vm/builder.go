package vm

// ProtoBuilder is the narrow construction API the compiler package uses to
// emit a prototype (spec.md §4.6): it is the one place outside this
// package allowed to shape a *gcProto, because the parser/emitter and the
// VM must agree bit-for-bit on the call-frame protocol (spec.md §1). The
// built Proto is immutable once Finish returns it, per spec.md §3.
type ProtoBuilder struct {
	i    *Instance
	p    *gcProto
	done bool
}

// NewProtoBuilder starts building a prototype for one source function.
// kind distinguishes script/function/method/constructor/etc for the
// return-discipline and self/super checks the compiler enforces at emit
// time (spec.md §4.6). mod is the module every proto compiled from the
// same source unit shares: GET_MODULE/SET_MODULE/DEFINE_MODULE address
// proto.module directly with no fallback, so the compiler must pass the
// same handle for the file's top-level proto and every function nested
// inside it, not just the outermost one.
func (i *Instance) NewProtoBuilder(name string, kind ProtoKind, mod *Module) *ProtoBuilder {
	var nameStr *gcString
	if name != "" {
		nameStr = mustIntern(i, name)
	}
	p := i.newProto(nameStr)
	p.kind = protoKind(kind)
	p.module = mod
	return &ProtoBuilder{i: i, p: p}
}

// Module re-exports gcModule for the compiler and bcdump packages.
type Module = gcModule

// NewModule creates a module namespace (vars + exports tables) for a
// compile unit, to be shared by every ProtoBuilder created while
// compiling that unit (spec.md §4.6, module-scoped top-level bindings).
func (i *Instance) NewModule(name, path string) *Module {
	nameStr, err := i.Intern(name)
	if err != nil {
		nameStr = mustIntern(i, name)
	}
	return i.newModule(nameStr, path)
}

// RegisterModule makes mod resolvable by `import name` under the given
// registry key, the way resolveModule's circular-import cache expects
// (spec.md §4.6). Used by host code driving compilation of an entry
// script that may itself be imported by name.
func (i *Instance) RegisterModule(key string, mod *Module) {
	i.modules[key] = mod
}

// ProtoKind re-exports protoKind for the compiler package.
type ProtoKind = protoKind

const (
	KindFunction    = protoFunction
	KindAnonymous   = protoAnonymous
	KindConstructor = protoConstructor
	KindStatic      = protoStatic
	KindMethod      = protoMethod
	KindOperator    = protoOperator
	KindScript      = protoScript
)

// UpvalueDesc re-exports upvalDesc's shape for the compiler.
type UpvalueDesc struct {
	IsLocal bool
	Index   uint8
	IsConst bool
}

func (b *ProtoBuilder) SetArity(required, optional uint8, variadic bool) {
	b.p.arity, b.p.arityOptional, b.p.variadic = required, optional, variadic
}

func (b *ProtoBuilder) SetMaxSlots(n uint8) { b.p.maxSlots = n }

func (b *ProtoBuilder) AddUpvalue(d UpvalueDesc) int {
	b.p.upvalues = append(b.p.upvalues, upvalDesc{isLocal: d.IsLocal, index: d.Index, isConst: d.IsConst})
	return len(b.p.upvalues) - 1
}

// AddConstant interns/dedups a value into the constant pool, returning its
// index. Overflow past 256 entries is the compiler's responsibility to
// detect (ErrXKCONST) before calling this a 257th time.
func (b *ProtoBuilder) AddConstant(v Value) int {
	for idx, existing := range b.p.constants {
		if existing.RawEqual(v) && existing.Type() == v.Type() {
			return idx
		}
	}
	b.p.constants = append(b.p.constants, v)
	return len(b.p.constants) - 1
}

// InternConstant is a convenience wrapper for string constants, since the
// constant pool dedups by the interned string's pointer identity.
func (b *ProtoBuilder) InternConstant(s string) (int, error) {
	str, err := b.i.Intern(s)
	if err != nil {
		return 0, err
	}
	return b.AddConstant(FromObject(&str.object)), nil
}

func (b *ProtoBuilder) EmitByte(v byte)       { b.p.code = append(b.p.code, v) }
func (b *ProtoBuilder) EmitBytes(v ...byte)   { b.p.code = append(b.p.code, v...) }
func (b *ProtoBuilder) Len() int              { return len(b.p.code) }
func (b *ProtoBuilder) PatchByte(at int, v byte) { b.p.code[at] = v }

// EmitU16 writes a big-endian 16-bit jump operand (spec.md §4.7,
// "Encoding: ... 16-bit jump offsets are big-endian pairs").
func (b *ProtoBuilder) EmitU16(v uint16) {
	b.p.code = append(b.p.code, byte(v>>8), byte(v))
}

func (b *ProtoBuilder) PatchU16(at int, v uint16) {
	b.p.code[at] = byte(v >> 8)
	b.p.code[at+1] = byte(v)
}

// AddLine records a bytecode-offset -> source-line delta entry (spec.md
// §3, GCproto "line-number info").
func (b *ProtoBuilder) AddLine(offset, line int) {
	if n := len(b.p.lines); n > 0 && b.p.lines[n-1].line == line {
		return
	}
	b.p.lines = append(b.p.lines, lineEntry{offset: offset, line: line})
}

// Finish returns the completed, now-immutable Proto and its boxed Value
// form for the constant pool of an enclosing function.
func (b *ProtoBuilder) Finish() (*Proto, Value) {
	b.done = true
	return b.p, FromObject(&b.p.object)
}

// Proto re-exports gcProto as an opaque handle the compiler and bcdump
// packages pass around without being able to mutate its fields directly.
type Proto = gcProto

// ProtoLineFor re-exposes gcProto.lineFor for backtrace printing (spec.md
// §7, "derived from the line-info of each frame's prototype").
func ProtoLineFor(p *Proto, offset int) int { return p.lineFor(offset) }

// ProtoName returns the prototype's declared name, or "" for anonymous
// functions and the top-level script.
func ProtoName(p *Proto) string {
	if p.name == nil {
		return ""
	}
	return p.name.chars
}
