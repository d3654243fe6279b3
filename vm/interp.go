package vm

import "math"

// Run executes the top-level prototype as a script: it wraps it in a
// closure (spec.md §2, "VM wraps it in a closure"), pushes the initial
// frame and drives the dispatch loop to completion, returning the final
// value left on the stack (or Nil for scripts that fall off the end).
func (i *Instance) Run(p *gcProto) (result Value, err error) {
	fn := i.newFunc(p)
	i.push(FromObject(&fn.object))
	floor := i.frameCount
	if err := i.callClosure(fn, i.sp, 0); err != nil {
		return Nil, err
	}
	return i.runUntil(floor)
}

// Call invokes a callable value with args already materialised as a Go
// slice, used both by host-embedding `call` (spec.md §6) and internally by
// bound-method/operator dispatch that cannot just fall through bytecode.
func (i *Instance) Call(callee Value, args []Value) (result Value, err error) {
	base := i.sp + 1
	i.push(callee)
	for _, a := range args {
		i.push(a)
	}
	startDepth := i.frameCount
	if err := i.callValue(callee, base, len(args)); err != nil {
		i.sp = base - 1
		return Nil, err
	}
	if i.frameCount == startDepth {
		// callee was a CFunction/class-with-no-ctor: callValue already
		// collapsed the call region to a single result value.
		return i.pop(), nil
	}
	return i.runUntil(startDepth)
}

// runUntil drives the dispatch loop until the frame stack depth falls back
// to floor, at which point the call that pushed frame `floor` has
// returned; the result is the value RETURN left at that frame's base.
func (i *Instance) runUntil(floor int) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	for {
		frame := &i.frames[i.frameCount-1]
		proto := frame.closure.proto
		code := proto.code

		if frame.ip >= len(code) {
			i.returnFromFrame(floor, Nil)
			if i.frameCount <= floor {
				return i.pop(), nil
			}
			continue
		}

		op := Op(code[frame.ip])
		frame.ip++

		switch op {
		case OpConstant:
			k := code[frame.ip]
			frame.ip++
			i.push(proto.constants[k])

		case OpNil:
			i.push(Nil)
		case OpTrue:
			i.push(True)
		case OpFalse:
			i.push(False)
		case OpPop:
			i.pop()

		case OpGetLocal:
			slot := code[frame.ip]
			frame.ip++
			i.push(i.stack[frame.base+int(slot)])
		case OpSetLocal:
			slot := code[frame.ip]
			frame.ip++
			i.stack[frame.base+int(slot)] = i.peek(0)

		case OpGetUpvalue:
			idx := code[frame.ip]
			frame.ip++
			i.push(frame.closure.upvalues[idx].get())
		case OpSetUpvalue:
			idx := code[frame.ip]
			frame.ip++
			frame.closure.upvalues[idx].set(i.peek(0))
		case OpCloseUpvalue:
			i.closeUpvalues(i.sp)
			i.pop()

		case OpGetGlobal:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			v, ok := i.globals.Get(name)
			if !ok {
				throw(ErrXVAR, name.chars)
			}
			i.push(v)

		case OpGetModule:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			v, ok := proto.module.vars.Get(name)
			if !ok {
				throw(ErrMODVAR, name.chars, proto.module.name.chars)
			}
			i.push(v)
		case OpSetModule:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			if proto.module.vars.Set(name, i.peek(0)) {
				proto.module.vars.Delete(name)
				throw(ErrMODVAR, name.chars, proto.module.name.chars)
			}
		case OpDefineModule:
			k := code[frame.ip]
			export := code[frame.ip+1]
			frame.ip += 2
			name := proto.constants[k].AsObject().str()
			v := i.pop()
			proto.module.vars.Set(name, v)
			if export != 0 {
				proto.module.exports.Set(name, v)
			}

		case OpAdd:
			if err := i.binaryAdd(); err != nil {
				panic(err)
			}
		case OpSub:
			i.numericBinary(func(a, b float64) float64 { return a - b }, "-")
		case OpMul:
			i.numericBinary(func(a, b float64) float64 { return a * b }, "*")
		case OpDiv:
			i.numericBinary(func(a, b float64) float64 { return a / b }, "/")
		case OpMod:
			i.numericBinary(math.Mod, "%")
		case OpPow:
			i.numericBinary(math.Pow, "**")
		case OpNegate:
			v := i.peek(0)
			if r, ok, err := i.operatorOverload("-", v); ok {
				if err != nil {
					panic(err)
				}
				i.stack[i.sp] = r
				break
			}
			if !v.IsNumber() {
				throw(ErrUNOP, "-", v.TypeName())
			}
			i.stack[i.sp] = Number(-v.AsNumber())

		case OpBAnd:
			i.intBinary(func(a, b int64) int64 { return a & b }, "&")
		case OpBOr:
			i.intBinary(func(a, b int64) int64 { return a | b }, "|")
		case OpBXor:
			i.intBinary(func(a, b int64) int64 { return a ^ b }, "^")
		case OpLShift:
			i.intBinary(func(a, b int64) int64 { return a << uint64(b) }, "<<")
		case OpRShift:
			i.intBinary(func(a, b int64) int64 { return a >> uint64(b) }, ">>")
		case OpBNot:
			v := i.peek(0)
			if r, ok, err := i.operatorOverload("~", v); ok {
				if err != nil {
					panic(err)
				}
				i.stack[i.sp] = r
				break
			}
			if !v.IsNumber() {
				throw(ErrUNOP, "~", v.TypeName())
			}
			i.stack[i.sp] = Number(float64(^int64(v.AsNumber())))

		case OpEqual:
			b, a := i.pop(), i.pop()
			if r, ok, err := i.operatorOverload("==", a, b); ok {
				if err != nil {
					panic(err)
				}
				i.push(r)
				break
			}
			i.push(Bool(a.Equal(b)))
		case OpLess:
			i.compareBinary(func(a, b float64) bool { return a < b }, "<")
		case OpLessEqual:
			i.compareBinary(func(a, b float64) bool { return a <= b }, "<=")
		case OpGreater:
			i.compareBinary(func(a, b float64) bool { return a > b }, ">")
		case OpGreaterEqual:
			i.compareBinary(func(a, b float64) bool { return a >= b }, ">=")
		case OpNot:
			i.stack[i.sp] = Bool(i.peek(0).IsFalsey())
		case OpIs:
			b, a := i.pop(), i.pop()
			if b.Type() != objClass {
				throw(ErrIS)
			}
			i.push(Bool(i.isInstanceOf(a, b.AsObject().class())))
		case OpIsType:
			k := code[frame.ip]
			frame.ip++
			class := proto.constants[k].AsObject().class()
			a := i.pop()
			i.push(Bool(i.isInstanceOf(a, class)))
		case OpIn:
			b, a := i.pop(), i.pop()
			v, err := i.containsOp(a, b)
			if err != nil {
				panic(err)
			}
			i.push(Bool(v))

		case OpJump:
			off := readU16(code, frame.ip)
			frame.ip = int(off)
		case OpJumpIfFalse:
			off := readU16(code, frame.ip)
			frame.ip += 2
			if i.peek(0).IsFalsey() {
				frame.ip = int(off)
			}
		case OpJumpIfNil:
			off := readU16(code, frame.ip)
			frame.ip += 2
			if i.peek(0).IsNil() {
				frame.ip = int(off)
			}
		case OpLoop:
			off := readU16(code, frame.ip)
			frame.ip = int(off)
		case OpEnd:
			frame.ip += 2

		case OpCall:
			n := int(code[frame.ip])
			frame.ip++
			if err := i.call(n); err != nil {
				panic(err)
			}
		case OpInvoke:
			k := code[frame.ip]
			n := int(code[frame.ip+1])
			frame.ip += 2
			name := proto.constants[k].AsObject().str()
			if err := i.invoke(name, n); err != nil {
				panic(err)
			}
		case OpInvokeNew:
			n := int(code[frame.ip])
			frame.ip++
			if err := i.call(n); err != nil {
				panic(err)
			}
		case OpSuper:
			k := code[frame.ip]
			n := int(code[frame.ip+1])
			frame.ip += 2
			name := proto.constants[k].AsObject().str()
			super := i.pop().AsObject().class()
			base := i.sp - n
			recv := i.stack[base]
			method, ok := lookupMethod(super, name)
			if !ok {
				throw(ErrMETHOD, name.chars)
			}
			i.stack[base] = recv
			if err := i.callValue(method, base, n); err != nil {
				panic(err)
			}

		case OpReturn:
			result := i.pop()
			i.returnFromFrame(floor, result)
			if i.frameCount <= floor {
				return result, nil
			}

		case OpGetAttr:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			recv := i.pop()
			v, err := i.getAttr(recv, name)
			if err != nil {
				panic(err)
			}
			i.push(v)
		case OpPushAttr:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			recv := i.peek(0)
			v, err := i.getAttr(recv, name)
			if err != nil {
				panic(err)
			}
			i.push(v)
		case OpSetAttr:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			value := i.pop()
			recv := i.pop()
			if err := i.setAttr(recv, name, value); err != nil {
				panic(err)
			}
			i.push(value)

		case OpGetIndex:
			idx, recv := i.pop(), i.pop()
			v, err := i.getIndex(recv, idx)
			if err != nil {
				panic(err)
			}
			i.push(v)
		case OpPushIndex:
			idx, recv := i.peek(0), i.peek(1)
			v, err := i.getIndex(recv, idx)
			if err != nil {
				panic(err)
			}
			i.push(v)
		case OpSetIndex:
			value, idx, recv := i.pop(), i.pop(), i.pop()
			if err := i.setIndex(recv, idx, value); err != nil {
				panic(err)
			}
			i.push(value)
		case OpGetSuper:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			super := i.pop().AsObject().class()
			recv := i.pop()
			method, ok := lookupMethod(super, name)
			if !ok {
				throw(ErrMETHOD, name.chars)
			}
			v, err := i.bindOrFire(recv, method)
			if err != nil {
				panic(err)
			}
			i.push(v)

		case OpList:
			n := int(code[frame.ip])
			frame.ip++
			items := append([]Value(nil), i.stack[i.sp-n+1:i.sp+1]...)
			i.sp -= n
			l := i.newList(items)
			i.push(FromObject(&l.object))
		case OpMap:
			n := int(code[frame.ip])
			frame.ip++
			m := i.newMap()
			base := i.sp - 2*n + 1
			for p := 0; p < n; p++ {
				k := i.stack[base+2*p]
				v := i.stack[base+2*p+1]
				if err := mapKeyError(k); err != nil {
					panic(err)
				}
				if !isHashableKey(k) {
					throw(ErrMAPKEY)
				}
				m.set(k, v)
			}
			i.sp = base - 1
			i.push(FromObject(&m.object))
		case OpListItem:
			v := i.pop()
			l := i.peek(0).AsObject().list()
			l.append(v)
		case OpMapField:
			v, k := i.pop(), i.pop()
			if err := mapKeyError(k); err != nil {
				panic(err)
			}
			if !isHashableKey(k) {
				throw(ErrMAPKEY)
			}
			m := i.peek(0).AsObject().mapObj()
			m.set(k, v)
		case OpListExtend:
			v := i.pop()
			if v.Type() != objList {
				throw(ErrBADTYPE, "list", v.TypeName())
			}
			l := i.peek(0).AsObject().list()
			l.items = append(l.items, v.AsObject().list().items...)
		case OpRange:
			step := Number(1)
			end, start := i.pop(), i.pop()
			if !start.IsNumber() || !end.IsNumber() {
				throw(ErrRANGE)
			}
			r := i.newRange(start.AsNumber(), end.AsNumber(), step.AsNumber())
			i.push(FromObject(&r.object))
		case OpUnpack:
			n := int(code[frame.ip])
			frame.ip++
			v := i.pop()
			if v.Type() != objList {
				throw(ErrUNPACK)
			}
			items := v.AsObject().list().items
			if len(items) > n {
				throw(ErrMAXUNPACK)
			}
			if len(items) < n {
				throw(ErrMINUNPACK)
			}
			for _, it := range items {
				i.push(it)
			}
		case OpUnpackRest:
			n := int(code[frame.ip])
			rest := int(code[frame.ip+1])
			frame.ip += 2
			v := i.pop()
			if v.Type() != objList {
				throw(ErrUNPACK)
			}
			items := v.AsObject().list().items
			if len(items) < n-1 {
				throw(ErrMINUNPACK)
			}
			for idx := 0; idx < rest; idx++ {
				i.push(items[idx])
			}
			restLen := len(items) - (n - 1)
			restItems := append([]Value(nil), items[rest:rest+restLen]...)
			restList := i.newList(restItems)
			i.push(FromObject(&restList.object))
			for idx := rest + restLen; idx < len(items); idx++ {
				i.push(items[idx])
			}

		case OpClosure:
			k := code[frame.ip]
			frame.ip++
			childProto := proto.constants[k].AsObject().proto()
			fn := i.newFunc(childProto)
			for idx := range childProto.upvalues {
				d := childProto.upvalues[idx]
				isLocal := code[frame.ip]
				slot := code[frame.ip+1]
				frame.ip += 2
				if isLocal != 0 || d.isLocal {
					fn.upvalues[idx] = i.captureUpvalue(frame.base + int(slot))
				} else {
					fn.upvalues[idx] = frame.closure.upvalues[slot]
				}
			}
			i.push(FromObject(&fn.object))
		case OpClass:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			c := i.newClass(name.chars, i.builtins[builtinObject])
			i.push(FromObject(&c.object))
		case OpMethod:
			k := code[frame.ip]
			frame.ip++
			name := proto.constants[k].AsObject().str()
			method := i.pop()
			class := i.peek(0).AsObject().class()
			class.methods.Set(name, method)
			if name.chars == "new" {
				class.constructor = method
			}
		case OpInherit:
			super := i.peek(1)
			sub := i.peek(0).AsObject().class()
			if super.Type() != objClass {
				throw(ErrSUPER)
			}
			if err := i.inherit(sub, super.AsObject().class()); err != nil {
				panic(err)
			}

		case OpGetIter:
			seqSlot := code[frame.ip]
			iterSlot := code[frame.ip+1]
			frame.ip += 2
			seq := i.stack[frame.base+int(seqSlot)]
			iter := i.stack[frame.base+int(iterSlot)]
			next, err := i.iterateNext(seq, iter)
			if err != nil {
				panic(err)
			}
			i.stack[frame.base+int(iterSlot)] = next
			i.push(next)
		case OpForIter:
			seqSlot := code[frame.ip]
			iterSlot := code[frame.ip+1]
			frame.ip += 2
			seq := i.stack[frame.base+int(seqSlot)]
			iter := i.stack[frame.base+int(iterSlot)]
			v, err := i.iteratorValue(seq, iter)
			if err != nil {
				panic(err)
			}
			i.push(v)

		case OpImportName, OpImportString, OpImportFmt, OpImportVariable, OpImportAlias, OpImportEnd:
			if err := i.execImport(op, proto, frame); err != nil {
				panic(err)
			}

		case OpDefineOptional:
			// Fixed header (nparams, nopts) is followed by a nopts+1 entry
			// table of big-endian u16 absolute jump targets: table[k] is
			// where execution resumes when k of the nopts optional
			// parameters were already supplied by the caller, i.e. where
			// the default-value block for the (k+1)'th optional parameter
			// begins. table[nopts] resumes after every block, for the
			// fully-supplied case. Each block computes its default
			// expression, stores it with SET_LOCAL and pops the leftover
			// copy, so blocks may be any length and chain into one
			// another -- unlike a fixed-width skip, this supports default
			// expressions that reference earlier parameters.
			nparams := int(code[frame.ip])
			nopts := int(code[frame.ip+1])
			tableStart := frame.ip + 2
			provided := frame.nargs - nparams
			if provided < 0 {
				provided = 0
			}
			if provided > nopts {
				provided = nopts
			}
			frame.ip = int(readU16(code, tableStart+provided*2))

		case OpMultiCase:
			n := int(code[frame.ip])
			frame.ip += 2
			subject := i.peek(int(n))
			matched := false
			for c := 0; c < n; c++ {
				v := i.pop()
				if !matched && subject.Equal(v) {
					matched = true
				}
			}
			i.push(Bool(matched))
		case OpCompareJump:
			off := readU16(code, frame.ip)
			frame.ip += 2
			val := i.pop()
			subject := i.peek(0)
			if subject.Equal(val) {
				i.pop()
				frame.ip = int(off)
			}

		default:
			throw(ErrBCBAD)
		}
	}
}

func readU16(code []byte, at int) uint16 {
	return uint16(code[at])<<8 | uint16(code[at+1])
}

// returnFromFrame implements RETURN's shared tail: close every upvalue
// captured from the returning frame's locals, pop the frame, and leave the
// result at the caller's view of the call-region base (spec.md §4.7).
func (i *Instance) returnFromFrame(floor int, result Value) {
	frame := &i.frames[i.frameCount-1]
	i.closeUpvalues(frame.base)
	i.sp = frame.base
	i.frameCount--
	i.stack[i.sp] = result
}
