package vm

// invoke implements INVOKE k, n: a fused GET_ATTR+CALL for the common
// `recv.method(args)` call site (spec.md §4.7). It is semantically
// equivalent to GET_ATTR; CALL, except a missing attribute raises
// ErrMETHOD instead of ErrNOATTR.
func (i *Instance) invoke(name *gcString, nargs int) error {
	base := i.sp - nargs
	recv := i.stack[base]

	if recv.Type() == objInstance {
		in := recv.AsObject().instance()
		if v, ok := in.fields.Get(name); ok {
			i.stack[base] = v
			return i.callValue(v, base, nargs)
		}
		method, ok := lookupMethod(in.class, name)
		if !ok {
			return newError(ErrMETHOD, name.chars)
		}
		return i.callValue(method, base, nargs)
	}

	if recv.Type() == objModule {
		m := recv.AsObject().module()
		v, ok := m.exports.Get(name)
		if !ok {
			return newError(ErrMETHOD, name.chars)
		}
		i.stack[base] = v
		return i.callValue(v, base, nargs)
	}

	cls := i.Builtin(recv)
	if cls == nil {
		return newError(ErrMETHOD, name.chars)
	}
	method, ok := lookupMethod(cls, name)
	if !ok {
		return newError(ErrMETHOD, name.chars)
	}
	return i.callValue(method, base, nargs)
}
