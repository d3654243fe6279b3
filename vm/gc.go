package vm

// This file implements the tricolour mark-and-sweep collector of spec.md
// §4.4: non-moving, stop-the-world, triggered when bytes_allocated reaches
// a threshold that grows by gcGrowthFactor after every collection. It is a
// method set on *Instance rather than a standalone type because the root
// set (spec.md §3 invariant 1) can only be enumerated by the VM that owns
// the stack, frames, open-upvalue list and module registry; the collector
// is "cooperative with allocation" exactly as specified, so every
// allocation path in this package funnels through track/maybeCollect.

const (
	initialGCThreshold = 1 << 20 // 1 MiB
	gcGrowthFactor     = 2
)

// track registers a freshly allocated object as the new head of the
// intrusive live-object list and accounts its size toward the next
// collection trigger. Every allocator in this package (Intern, newList,
// newMap, newClass, ...) must call this before the object could become
// unreachable from any other root, since the caller is expected to anchor
// it on the evaluation stack per the GC-safe-point contract of spec.md §5.
func (i *Instance) track(o *object) {
	o.next = i.objects
	i.objects = o
	i.bytesAllocated += objectSize(o.typ)
	if i.stress || i.bytesAllocated >= i.nextGC {
		i.collect()
	}
}

// objectSize is a coarse per-type accounting unit; the collector does not
// need byte-exact sizes, only a monotonic signal to drive the threshold.
func objectSize(t objType) int64 {
	switch t {
	case objString, objUpvalue, objMethod, objRange:
		return 32
	case objList, objMap, objInstance, objModule:
		return 48
	case objProto, objFunc, objClass:
		return 64
	default:
		return 32
	}
}

// Collect forces a garbage collection cycle and returns the number of
// bytes freed, matching the host embedding API's `gc` entry point
// (spec.md §6).
func (i *Instance) Collect() int64 {
	before := i.bytesAllocated
	i.collect()
	return before - i.bytesAllocated
}

// StressGC enables or disables stress mode, which forces a collection at
// every allocation (spec.md §4.4).
func (i *Instance) StressGC(enabled bool) { i.stress = enabled }

func (i *Instance) collect() {
	i.markRoots()
	i.traceReferences()
	i.sweepStrings()
	i.sweepObjects()
	i.nextGC = i.bytesAllocated * gcGrowthFactor
	if i.nextGC < initialGCThreshold {
		i.nextGC = initialGCThreshold
	}
}

// markRoots enumerates the root set of spec.md §3 invariant 1: the
// evaluation stack, the call-frame array (closures), the open-upvalue
// list, the module registry, the singleton builtin classes, and any
// temporary roots the parser has pushed on the stack while compiling.
func (i *Instance) markRoots() {
	for idx := 0; idx <= i.sp; idx++ {
		i.markValue(i.stack[idx])
	}
	for _, f := range i.frames[:i.frameCount] {
		if f.closure != nil {
			i.markObject(&f.closure.object)
		}
	}
	for uv := i.openUpvalues; uv != nil; uv = uv.next {
		i.markObject(&uv.object)
	}
	for _, m := range i.modules {
		i.markObject(&m.object)
	}
	for _, c := range i.builtins {
		if c != nil {
			i.markObject(&c.object)
		}
	}
	if i.globals != nil {
		i.markTable(i.globals)
	}
}

func (i *Instance) markValue(v Value) {
	if v.IsObject() {
		i.markObject(v.AsObject())
	}
}

func (i *Instance) markObject(o *object) {
	if o == nil || o.marked {
		return
	}
	o.marked = true
	i.grayStack = append(i.grayStack, o)
}

func (i *Instance) markTable(t *table) {
	for _, e := range t.entries {
		if e.key == nil || e.tomb {
			continue
		}
		i.markObject(&e.key.object)
		i.markValue(e.value)
	}
}

// traceReferences drains the gray worklist, blackening each object by
// type-dispatched traversal (spec.md §4.4).
func (i *Instance) traceReferences() {
	for len(i.grayStack) > 0 {
		n := len(i.grayStack) - 1
		o := i.grayStack[n]
		i.grayStack = i.grayStack[:n]
		i.blacken(o)
	}
}

func (i *Instance) blacken(o *object) {
	switch o.typ {
	case objString, objRange, objCFunc, objFile, objBuffer, objUserdata:
		// no outgoing edges
	case objProto:
		p := o.proto()
		if p.name != nil {
			i.markObject(&p.name.object)
		}
		for _, k := range p.constants {
			i.markValue(k)
		}
	case objFunc:
		f := o.fn()
		i.markObject(&f.proto.object)
		for _, uv := range f.upvalues {
			i.markObject(&uv.object)
		}
	case objUpvalue:
		u := o.upvalue()
		if !u.isOpen() {
			i.markValue(u.closed)
		}
	case objClass:
		c := o.class()
		i.markObject(&c.name.object)
		if c.super != nil {
			i.markObject(&c.super.object)
		}
		i.markTable(c.methods)
		i.markTable(c.statics)
		i.markValue(c.constructor)
	case objInstance:
		in := o.instance()
		i.markObject(&in.class.object)
		i.markTable(in.fields)
	case objList:
		for _, v := range o.list().items {
			i.markValue(v)
		}
	case objMap:
		m := o.mapObj()
		for _, e := range m.entries {
			if !e.used || e.tomb {
				continue
			}
			i.markValue(e.key)
			i.markValue(e.value)
		}
	case objModule:
		m := o.module()
		i.markObject(&m.name.object)
		i.markTable(m.vars)
		i.markTable(m.exports)
	case objMethod:
		m := o.method()
		i.markValue(m.receiver)
		i.markValue(m.fn)
	}
}

// sweepStrings walks the interner and drops unmarked strings first, as
// specified by spec.md §4.4's two-pass sweep.
func (i *Instance) sweepStrings() {
	it := i.strings
	for idx, e := range it.entries {
		if e == nil || e == tombstoneString || e.marked {
			continue
		}
		it.entries[idx] = tombstoneString
		it.count--
		it.tombs++
	}
}

// sweepObjects walks the global object list, unlinking and destroying
// unmarked objects, then clears every remaining mark bit.
func (i *Instance) sweepObjects() {
	var prev *object
	o := i.objects
	for o != nil {
		if o.marked {
			o.marked = false
			prev = o
			o = o.next
			continue
		}
		unreached := o
		o = o.next
		if prev != nil {
			prev.next = o
		} else {
			i.objects = o
		}
		i.bytesAllocated -= objectSize(unreached.typ)
		finalizeObject(unreached)
	}
}

// finalizeObject runs the per-type destructor named in spec.md §4.4:
// closing files, freeing userdata, freeing buffer backing, freeing table
// arrays. Go's own GC will reclaim the Go-heap memory once this object
// becomes unreachable from i.objects; this just releases external
// resources (file handles) and drops large backing arrays early.
func finalizeObject(o *object) {
	switch o.typ {
	case objFile:
		f := o.file()
		if f.open && f.handle != nil {
			f.handle.Close()
			f.open = false
		}
	case objBuffer:
		o.buffer().data = nil
	case objUserdata:
		u := o.userdata()
		if u.finalize != nil {
			u.finalize(u.data)
		}
	}
}
