package vm

// getIndex implements GET_INDEX/PUSH_INDEX (spec.md §4.7): list and string
// numeric indexing with the negative-index convention, map key lookup,
// range membership-as-value is not applicable here (ranges are not
// indexable by spec, only iterable), instance subscript via the
// overloaded `[` operator method.
func (i *Instance) getIndex(recv, idx Value) (Value, error) {
	switch recv.Type() {
	case objList:
		if !idx.IsNumber() {
			return Nil, newError(ErrNUMLIST)
		}
		items := recv.AsObject().list().items
		n, ok := resolveIndex(int(idx.AsNumber()), len(items))
		if !ok {
			return Nil, newError(ErrIDXLIST)
		}
		return items[n], nil
	case objString:
		if !idx.IsNumber() {
			return Nil, newError(ErrNUMSTR, idx.TypeName())
		}
		s := recv.AsObject().str()
		n, ok := resolveIndex(int(idx.AsNumber()), s.len)
		if !ok {
			return Nil, newError(ErrIDXSTR)
		}
		sub, err := i.Intern(s.chars[n : n+1])
		if err != nil {
			return Nil, err
		}
		return FromObject(&sub.object), nil
	case objMap:
		if err := mapKeyError(idx); err != nil {
			return Nil, err
		}
		if !isHashableKey(idx) {
			return Nil, newError(ErrMAPKEY)
		}
		v, ok := recv.AsObject().mapObj().get(idx)
		if !ok {
			return Nil, newError(ErrMAPKEY)
		}
		return v, nil
	case objInstance:
		name := mustIntern(i, "[")
		method, ok := lookupMethod(recv.AsObject().instance().class, name)
		if !ok {
			return Nil, newError(ErrINSTSUBSCR, recv.AsObject().instance().class.name.chars)
		}
		return i.Call(method, []Value{recv, idx})
	default:
		return Nil, newError(ErrSUBSCR, recv.TypeName())
	}
}

// setIndex implements SET_INDEX: list/map item assignment, or dispatch to
// an instance's overloaded `[]=` operator method.
func (i *Instance) setIndex(recv, idx, value Value) error {
	switch recv.Type() {
	case objList:
		if !idx.IsNumber() {
			return newError(ErrNUMLIST)
		}
		items := recv.AsObject().list().items
		n, ok := resolveIndex(int(idx.AsNumber()), len(items))
		if !ok {
			return newError(ErrIDXLIST)
		}
		items[n] = value
		return nil
	case objMap:
		if err := mapKeyError(idx); err != nil {
			return err
		}
		if !isHashableKey(idx) {
			return newError(ErrMAPKEY)
		}
		recv.AsObject().mapObj().set(idx, value)
		return nil
	case objInstance:
		name := mustIntern(i, "[]=")
		method, ok := lookupMethod(recv.AsObject().instance().class, name)
		if !ok {
			return newError(ErrINSTSUBSCR, recv.AsObject().instance().class.name.chars)
		}
		_, err := i.Call(method, []Value{recv, idx, value})
		return err
	default:
		return newError(ErrSETSUBSCR, recv.TypeName())
	}
}
