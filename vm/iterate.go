package vm

// iterateNext and iteratorValue implement the iteration protocol of
// spec.md §4.7: "for any iterable X... GET_ITER pushes the result of
// calling X.iterate(iter)... FOR_ITER pushes X.iteratorvalue(iter)".
// Builtin iterables implement these directly; instances dispatch through
// their class's `iterate`/`iteratorvalue` methods, so user objects get the
// same protocol for free.

func (i *Instance) iterateNext(seq, iter Value) (Value, error) {
	switch seq.Type() {
	case objList:
		return listIterate(seq.AsObject().list(), iter), nil
	case objRange:
		return rangeIterate(seq.AsObject().rangeObj(), iter), nil
	case objMap:
		return mapIterate(seq.AsObject().mapObj(), iter), nil
	case objString:
		return stringIterate(seq.AsObject().str(), iter), nil
	case objInstance:
		return i.dispatchIterMethod(seq, "iterate", iter)
	default:
		return Nil, newError(ErrITER, seq.TypeName())
	}
}

func (i *Instance) iteratorValue(seq, iter Value) (Value, error) {
	switch seq.Type() {
	case objList:
		return listIteratorValue(seq.AsObject().list(), iter), nil
	case objRange:
		return rangeIteratorValue(seq.AsObject().rangeObj(), iter), nil
	case objMap:
		return mapIteratorValue(seq.AsObject().mapObj(), iter), nil
	case objString:
		return stringIteratorValue(seq.AsObject().str(), iter), nil
	case objInstance:
		return i.dispatchIterMethod(seq, "iteratorvalue", iter)
	default:
		return Nil, newError(ErrITER, seq.TypeName())
	}
}

func (i *Instance) dispatchIterMethod(recv Value, name string, iter Value) (Value, error) {
	in := recv.AsObject().instance()
	method, ok := lookupMethod(in.class, mustIntern(i, name))
	if !ok {
		return Nil, newError(ErrITER, in.class.name.chars)
	}
	return i.Call(method, []Value{recv, iter})
}

// mapIterate/mapIteratorValue walk live (non-tombstone) entries in table
// order, using the previous entry's successor index as the iterator state.
func mapIterate(m *gcMap, iter Value) Value {
	start := 0
	if !iter.IsNil() {
		start = int(iter.AsNumber()) + 1
	}
	for idx := start; idx < len(m.entries); idx++ {
		if m.entries[idx].used && !m.entries[idx].tomb {
			return Number(float64(idx))
		}
	}
	return Nil
}

func mapIteratorValue(m *gcMap, iter Value) Value {
	idx := int(iter.AsNumber())
	if idx < 0 || idx >= len(m.entries) {
		return Nil
	}
	return m.entries[idx].key
}

func stringIterate(s *gcString, iter Value) Value {
	next := 0
	if !iter.IsNil() {
		next = int(iter.AsNumber()) + 1
	}
	if next >= s.len {
		return Nil
	}
	return Number(float64(next))
}

func stringIteratorValue(s *gcString, iter Value) Value {
	idx := int(iter.AsNumber())
	if idx < 0 || idx >= s.len {
		return Nil
	}
	return Number(float64(s.chars[idx]))
}
