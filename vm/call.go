package vm

// This file implements spec.md §4.7's "Calls" subsection: CALL n expects
// the callee at stack position top-n-1; the four callable kinds (closure,
// C function, class, bound method) are dispatched here, shared by OpCall,
// OpInvoke, OpInvokeNew and OpSuper.

// call dispatches a call with nargs arguments already pushed above the
// callee at stack position i.sp-nargs.
func (i *Instance) call(nargs int) error {
	base := i.sp - nargs
	return i.callValue(i.stack[base], base, nargs)
}

func (i *Instance) callValue(callee Value, base int, nargs int) error {
	if !callee.IsObject() {
		return newError(ErrCALL, callee.TypeName())
	}
	switch callee.Type() {
	case objFunc:
		return i.callClosure(callee.AsObject().fn(), base, nargs)
	case objCFunc:
		return i.callCFunc(callee.AsObject().cfunc(), base, nargs)
	case objClass:
		return i.callClass(callee.AsObject().class(), base, nargs)
	case objMethod:
		bm := callee.AsObject().method()
		i.stack[base] = bm.receiver
		return i.callValue(bm.fn, base, nargs)
	default:
		return newError(ErrCALL, callee.TypeName())
	}
}

func (i *Instance) callCFunc(cf *gcCFunc, base int, nargs int) error {
	if cf.arity >= 0 && nargs != cf.arity {
		return newError(ErrARGS, cf.arity, nargs)
	}
	args := append([]Value(nil), i.stack[base+1:base+1+nargs]...)
	result, err := cf.fn(i, args)
	if err != nil {
		return err
	}
	i.sp = base
	i.stack[base] = result
	return nil
}

func (i *Instance) callClass(class *gcClass, base int, nargs int) error {
	inst := i.newInstance(class)
	i.stack[base] = FromObject(&inst.object)
	if !class.constructor.IsNil() {
		return i.callValue(class.constructor, base, nargs)
	}
	if nargs != 0 {
		return newError(ErrNONEW, class.name.chars)
	}
	i.sp = base
	return nil
}

// callClosure implements variadic collection and optional-argument slot
// padding (spec.md §4.7), then pushes a new frame that begins execution at
// the callee's own bytecode offset 0 -- where a DEFINE_OPTIONAL prelude (if
// any) fills missing trailing defaults (see interp.go).
func (i *Instance) callClosure(fn *gcFunc, base int, nargs int) error {
	p := fn.proto
	minArgs := int(p.arity)
	maxFixed := int(p.arity) + int(p.arityOptional)
	// callerNargs is DEFINE_OPTIONAL's "how many args did the caller
	// actually supply" (interp.go): nargs itself gets overwritten below as
	// padding is pushed, so the original count has to be saved first.
	callerNargs := nargs

	if p.variadic {
		if nargs < minArgs {
			return newError(ErrARGS, minArgs, nargs)
		}
		if nargs > maxFixed {
			extra := nargs - maxFixed
			items := append([]Value(nil), i.stack[base+1+maxFixed:base+1+maxFixed+extra]...)
			list := i.newList(items)
			i.sp = base + maxFixed
			i.push(FromObject(&list.object))
			nargs = maxFixed + 1
		} else {
			empty := i.newList(nil)
			for nargs < maxFixed {
				i.push(Nil)
				nargs++
			}
			i.push(FromObject(&empty.object))
			nargs = maxFixed + 1
		}
	} else {
		if nargs < minArgs || nargs > maxFixed {
			return newError(ErrARGS, minArgs, nargs)
		}
		for nargs < maxFixed {
			i.push(Nil)
			nargs++
		}
	}

	if i.frameCount >= maxCallFrames {
		return newError(ErrSTKOV)
	}
	needed := base + int(p.maxSlots) + 1
	for needed >= len(i.stack) {
		i.growStack()
	}
	i.sp = base + maxFixedSlots(p)
	i.frames[i.frameCount] = CallFrame{closure: fn, ip: 0, base: base, nargs: callerNargs}
	i.frameCount++
	return nil
}

func maxFixedSlots(p *gcProto) int {
	n := int(p.arity) + int(p.arityOptional)
	if p.variadic {
		n++
	}
	return n
}
