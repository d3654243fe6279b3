package vm

// This file collects the allocators for every heap object kind named in
// spec.md §3. Each one sets the object header's type tag and registers the
// new object with the GC via Instance.track before returning it; callers
// must anchor the result on the evaluation stack before any further
// allocation, per the GC-safe-point contract of spec.md §5.

func (i *Instance) newRange(start, end, step float64) *gcRange {
	r := &gcRange{start: start, end: end, step: step}
	r.typ = objRange
	i.track(&r.object)
	return r
}

func (i *Instance) newList(items []Value) *gcList {
	l := &gcList{items: items}
	l.typ = objList
	i.track(&l.object)
	return l
}

func (i *Instance) newMap() *gcMap {
	m := newMapObj()
	i.track(&m.object)
	return m
}

func (i *Instance) newProto(name *gcString) *gcProto {
	p := &gcProto{name: name}
	p.typ = objProto
	i.track(&p.object)
	return p
}

func (i *Instance) newCFunc(name string, fn CFunction, arity int, kind CFuncKind) *gcCFunc {
	c := &gcCFunc{name: name, fn: fn, arity: arity, kind: kind}
	c.typ = objCFunc
	i.track(&c.object)
	return c
}

func (i *Instance) newFunc(p *gcProto) *gcFunc {
	f := &gcFunc{proto: p, upvalues: make([]*gcUpvalue, len(p.upvalues))}
	f.typ = objFunc
	i.track(&f.object)
	return f
}

func (i *Instance) newUpvalue(slot *Value) *gcUpvalue {
	u := &gcUpvalue{location: slot}
	u.typ = objUpvalue
	i.track(&u.object)
	return u
}

func (i *Instance) newClass(name string, super *gcClass) *gcClass {
	n, err := i.Intern(name)
	if err != nil {
		throwError(err.(*Error))
	}
	c := &gcClass{name: n, super: super, constructor: Nil, methods: newTable(), statics: newTable()}
	c.typ = objClass
	i.track(&c.object)
	return c
}

func (i *Instance) newInstance(class *gcClass) *gcInstance {
	in := &gcInstance{class: class, fields: newTable()}
	in.typ = objInstance
	i.track(&in.object)
	return in
}

func (i *Instance) newMethod(receiver, fn Value) *gcMethod {
	m := &gcMethod{receiver: receiver, fn: fn}
	m.typ = objMethod
	i.track(&m.object)
	return m
}

func (i *Instance) newModule(name *gcString, path string) *gcModule {
	m := &gcModule{name: name, path: path, vars: newTable(), exports: newTable()}
	m.typ = objModule
	i.track(&m.object)
	return m
}

func (i *Instance) newBuffer(data []byte) *gcBuffer {
	b := &gcBuffer{data: data}
	b.typ = objBuffer
	i.track(&b.object)
	return b
}

func (i *Instance) newUserdata(data any, finalize func(any)) *gcUserdata {
	u := &gcUserdata{data: data, finalize: finalize}
	u.typ = objUserdata
	i.track(&u.object)
	return u
}
