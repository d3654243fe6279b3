package vm

// This file is the stdlib registration/stack-oriented API the core exposes
// to external collaborators (spec.md §4.9/§6). It is intentionally thin:
// the core only defines attribute/index operators, iteration and equality;
// everything textual (math, time, os, string/list/map method tables) is
// filled in by registering CFunctions through CreateClass/CreateModule.

// MethodKind mirrors CFuncKind for the registration call, named
// per the host API's illustrative surface in spec.md §6.
type MethodKind = CFuncKind

const (
	MethodFunction = CFuncFunction
	MethodMethod   = CFuncMethod
	MethodProperty = CFuncProperty
)

// MethodDef is one entry of a CreateClass methods[] argument.
type MethodDef struct {
	Name  string
	Kind  MethodKind
	Fn    CFunction
	Arity int // -1 means variadic/unchecked
}

// CreateClass registers (or extends, if name already names a builtin) a
// class with the given methods (spec.md §4.9). Returns the class value so
// callers can retain a Go-side handle (e.g. to set a cached constructor).
func (i *Instance) CreateClass(name string, methods []MethodDef) Value {
	class := i.findOrCreateClass(name)
	for _, m := range methods {
		fn := i.newCFunc(m.Name, m.Fn, m.Arity, m.Kind)
		fnVal := FromObject(&fn.object)
		key := mustIntern(i, m.Name)
		if m.Kind == CFuncMethod || m.Kind == CFuncProperty {
			class.methods.Set(key, fnVal)
			if m.Name == "new" {
				class.constructor = fnVal
			}
		} else {
			class.statics.Set(key, fnVal)
		}
	}
	return FromObject(&class.object)
}

func (i *Instance) findOrCreateClass(name string) *gcClass {
	for _, b := range i.builtins {
		if b != nil && b.name.chars == name {
			return b
		}
	}
	return i.newClass(name, i.builtins[builtinObject])
}

// ModuleEntryKind distinguishes a CreateModule entry: a bound function, or
// a sentinel slot for later Instance.SetAttr population (e.g. math.pi).
type ModuleEntryKind uint8

const (
	ModuleFunction ModuleEntryKind = iota
	ModuleSentinel
)

// ModuleEntry is one entry of a CreateModule entries[] argument.
type ModuleEntry struct {
	Name  string
	Kind  ModuleEntryKind
	Fn    CFunction
	Arity int
}

// CreateModule registers a module with C-function bindings plus sentinel
// slots a collaborator fills in afterward via SetAttr (spec.md §4.9/§6).
func (i *Instance) CreateModule(name string, entries []ModuleEntry) *gcModule {
	modName := mustIntern(i, name)
	mod := i.newModule(modName, name)
	for _, e := range entries {
		key := mustIntern(i, e.Name)
		switch e.Kind {
		case ModuleFunction:
			fn := i.newCFunc(e.Name, e.Fn, e.Arity, CFuncFunction)
			fnVal := FromObject(&fn.object)
			mod.vars.Set(key, fnVal)
			mod.exports.Set(key, fnVal)
		case ModuleSentinel:
			mod.vars.Set(key, Nil)
			mod.exports.Set(key, Nil)
		}
	}
	i.modules[name] = mod
	return mod
}

// HasModule reports whether name is already registered (spec.md §6,
// `has_module`).
func (i *Instance) HasModule(name string) bool {
	_, ok := i.modules[name]
	return ok
}

// SetAttr sets a value in a module's namespace after registration, for the
// sentinel-slot pattern (spec.md §6, `set_attr`).
func (i *Instance) SetAttr(mod *gcModule, name string, v Value) {
	key := mustIntern(i, name)
	mod.vars.Set(key, v)
	mod.exports.Set(key, v)
}

// CreateFunction registers a single C function directly in the global
// namespace (spec.md §6's `get_global`/`set_global` pair implies a way to
// populate a bare global callable, the same role `str`/`print`-style
// builtins play for a collaborator that hasn't grouped them under a
// module or class). Returns the callable value in case the caller wants
// to retain it (e.g. to also expose it under a module).
func (i *Instance) CreateFunction(name string, fn CFunction, arity int) Value {
	cf := i.newCFunc(name, fn, arity, CFuncFunction)
	v := FromObject(&cf.object)
	i.SetGlobal(name, v)
	return v
}

// SetGlobal/GetGlobal implement the host API's globals accessors.
func (i *Instance) SetGlobal(name string, v Value) {
	i.globals.Set(mustIntern(i, name), v)
}

func (i *Instance) GetGlobal(name string) (Value, bool) {
	key, err := i.Intern(name)
	if err != nil {
		return Nil, false
	}
	return i.globals.Get(key)
}

// CheckNumber/CheckString/... are the `check_*` family (spec.md §6):
// type-enforcing argument accessors a CFunction uses, raising ErrBADARG on
// mismatch with the argument position and expected type named.
func CheckNumber(args []Value, n int) (float64, error) {
	if n >= len(args) || !args[n].IsNumber() {
		return 0, newError(ErrBADARG, n+1, "expected number")
	}
	return args[n].AsNumber(), nil
}

func CheckString(args []Value, n int) (string, error) {
	if n >= len(args) || args[n].Type() != objString {
		return "", newError(ErrBADARG, n+1, "expected string")
	}
	return args[n].AsObject().str().chars, nil
}

func CheckBool(args []Value, n int) (bool, error) {
	if n >= len(args) || !args[n].IsBool() {
		return false, newError(ErrBADARG, n+1, "expected bool")
	}
	return args[n].AsBool(), nil
}

func CheckList(args []Value, n int) (*gcList, error) {
	if n >= len(args) || args[n].Type() != objList {
		return nil, newError(ErrBADARG, n+1, "expected list")
	}
	return args[n].AsObject().list(), nil
}

// OptNumber is the `opt_*` family: returns def when the argument is absent
// or nil, otherwise requires it to type-check.
func OptNumber(args []Value, n int, def float64) (float64, error) {
	if n >= len(args) || args[n].IsNil() {
		return def, nil
	}
	return CheckNumber(args, n)
}

func OptString(args []Value, n int, def string) (string, error) {
	if n >= len(args) || args[n].IsNil() {
		return def, nil
	}
	return CheckString(args, n)
}
