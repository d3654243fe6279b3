package vm

// lookupMethod walks a class and its superclass chain for name, matching
// spec.md §4.7 "GET_ATTR... search class method table walking
// superclasses".
func lookupMethod(c *gcClass, name *gcString) (Value, bool) {
	for cls := c; cls != nil; cls = cls.super {
		if v, ok := cls.methods.Get(name); ok {
			return v, true
		}
	}
	return Nil, false
}

// getAttr implements GET_ATTR/PUSH_ATTR's lookup chain (spec.md §4.7):
// instance field, then method table (bound), then the dynamic class's
// builtin fallback. A property-kind C function fires immediately instead
// of yielding a bound callable.
func (i *Instance) getAttr(recv Value, name *gcString) (Value, error) {
	if recv.Type() == objInstance {
		in := recv.AsObject().instance()
		if v, ok := in.fields.Get(name); ok {
			return v, nil
		}
		if v, ok := lookupMethod(in.class, name); ok {
			return i.bindOrFire(recv, v)
		}
		return Nil, newError(ErrNOATTR, in.class.name.chars, name.chars)
	}
	if recv.Type() == objModule {
		m := recv.AsObject().module()
		if v, ok := m.exports.Get(name); ok {
			return v, nil
		}
		return Nil, newError(ErrMODATTR, m.name.chars, name.chars)
	}
	cls := i.Builtin(recv)
	if cls == nil {
		return Nil, newError(ErrNOATTR, recv.TypeName(), name.chars)
	}
	if v, ok := lookupMethod(cls, name); ok {
		return i.bindOrFire(recv, v)
	}
	return Nil, newError(ErrNOATTR, recv.TypeName(), name.chars)
}

// bindOrFire returns a bound method for a normal callable, or immediately
// invokes a property-kind C function with no arguments (spec.md §4.7,
// "'Property'-kind C functions are invoked immediately on attribute access
// rather than returning a callable").
func (i *Instance) bindOrFire(recv Value, method Value) (Value, error) {
	if method.Type() == objCFunc {
		cf := method.AsObject().cfunc()
		if cf.kind == CFuncProperty {
			return cf.fn(i, []Value{recv})
		}
	}
	bm := i.newMethod(recv, method)
	return FromObject(&bm.object), nil
}

// setAttr implements SET_ATTR: instances may set any field name; other
// dynamic types reject assignment (spec.md §4.7's ErrSETATTR).
func (i *Instance) setAttr(recv Value, name *gcString, value Value) error {
	if recv.Type() != objInstance {
		return newError(ErrSETATTR, recv.TypeName())
	}
	recv.AsObject().instance().fields.Set(name, value)
	return nil
}

// inherit copies a superclass's method table into a subclass (INHERIT,
// spec.md §4.6/§4.7), after the builtin-inheritance guard named in
// SPEC_FULL §3: a class may not inherit from a reserved builtin or from
// itself.
func (i *Instance) inherit(sub, super *gcClass) error {
	if sub == super {
		return newError(ErrSELF)
	}
	for _, b := range i.builtins {
		if b == super {
			return newError(ErrBUILTINSELF, super.name.chars)
		}
	}
	sub.methods.Merge(super.methods)
	sub.super = super
	if ctor, ok := super.methods.Get(mustIntern(i, "new")); ok {
		sub.constructor = ctor
	}
	return nil
}

// isInstanceOf implements the `is` operator: class membership including
// via superclass chain (spec.md §4.7). The right-hand side must already be
// a class value; the emitter/interpreter reject non-class RHS with ErrIS
// before calling this (spec.md §9 Open Question (i)).
func (i *Instance) isInstanceOf(v Value, class *gcClass) bool {
	var dyn *gcClass
	if v.Type() == objInstance {
		dyn = v.AsObject().instance().class
	} else {
		dyn = i.Builtin(v)
	}
	for c := dyn; c != nil; c = c.super {
		if c == class {
			return true
		}
	}
	return false
}

func mustIntern(i *Instance, s string) *gcString {
	str, err := i.Intern(s)
	if err != nil {
		throwError(err.(*Error))
	}
	return str
}
