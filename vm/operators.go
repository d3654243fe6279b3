package vm

import "strings"

// operatorOverload dispatches a.Type() == objInstance operands to a class
// method named after the operator's literal symbol (spec.md §4.6's fixed
// overload list `+ - * / % ** & | ~ ^ << >> < <= > >= ==`), the same
// lookupMethod+Call pattern getIndex/setIndex already use for `[`/`[]=`.
// rest holds the operator's other operand for binary forms, or nothing for
// unary `-`/`~`. ok is false when a isn't an instance or the class has no
// such method, in which case the caller falls back to its built-in-type
// handling.
func (i *Instance) operatorOverload(op string, a Value, rest ...Value) (Value, bool, error) {
	if a.Type() != objInstance {
		return Nil, false, nil
	}
	name := mustIntern(i, op)
	method, ok := lookupMethod(a.AsObject().instance().class, name)
	if !ok {
		return Nil, false, nil
	}
	v, err := i.Call(method, append([]Value{a}, rest...))
	return v, true, err
}

// numericBinary implements the arithmetic opcodes that require both
// operands to be numbers (spec.md §4.7): SUB, MUL, DIV, MOD, POW. `%` and
// `**` use Go's math.Mod/math.Pow, matching C's fmod/pow semantics named
// in the spec; division by zero yields IEEE inf/nan with no trap. Instance
// operands dispatch to an `operator` overload method first.
func (i *Instance) numericBinary(fn func(a, b float64) float64, op string) {
	b, a := i.pop(), i.pop()
	if v, ok, err := i.operatorOverload(op, a, b); ok {
		if err != nil {
			panic(err)
		}
		i.push(v)
		return
	}
	if !a.IsNumber() || !b.IsNumber() {
		throw(ErrBIOP, op, a.TypeName(), b.TypeName())
	}
	i.push(Number(fn(a.AsNumber(), b.AsNumber())))
}

func (i *Instance) intBinary(fn func(a, b int64) int64, op string) {
	b, a := i.pop(), i.pop()
	if v, ok, err := i.operatorOverload(op, a, b); ok {
		if err != nil {
			panic(err)
		}
		i.push(v)
		return
	}
	if !a.IsNumber() || !b.IsNumber() {
		throw(ErrBIOP, "bitwise", a.TypeName(), b.TypeName())
	}
	i.push(Number(float64(fn(int64(a.AsNumber()), int64(b.AsNumber())))))
}

func (i *Instance) compareBinary(fn func(a, b float64) bool, op string) {
	b, a := i.pop(), i.pop()
	if v, ok, err := i.operatorOverload(op, a, b); ok {
		if err != nil {
			panic(err)
		}
		i.push(v)
		return
	}
	if !a.IsNumber() || !b.IsNumber() {
		throw(ErrBIOP, "comparison", a.TypeName(), b.TypeName())
	}
	i.push(Bool(fn(a.AsNumber(), b.AsNumber())))
}

// binaryAdd implements `+`'s extended overload set (spec.md §4.7): numeric
// addition, string concatenation, list concatenation (new list) and map
// concatenation (new map, right-hand keys win).
func (i *Instance) binaryAdd() error {
	b, a := i.pop(), i.pop()
	if v, ok, err := i.operatorOverload("+", a, b); ok {
		if err == nil {
			i.push(v)
		}
		return err
	}
	switch {
	case a.IsNumber() && b.IsNumber():
		i.push(Number(a.AsNumber() + b.AsNumber()))
	case a.Type() == objString && b.Type() == objString:
		s, err := i.Intern(a.AsObject().str().chars + b.AsObject().str().chars)
		if err != nil {
			return err
		}
		i.push(FromObject(&s.object))
	case a.Type() == objList && b.Type() == objList:
		l := listConcat(a.AsObject().list(), b.AsObject().list())
		i.track(&l.object)
		i.push(FromObject(&l.object))
	case a.Type() == objMap && b.Type() == objMap:
		m := mapConcat(a.AsObject().mapObj(), b.AsObject().mapObj())
		i.track(&m.object)
		i.push(FromObject(&m.object))
	default:
		return newError(ErrBIOP, "+", a.TypeName(), b.TypeName())
	}
	return nil
}

// containsOp implements `in` (spec.md §4.7): list linear scan (by Equal,
// matching `==`'s structural semantics), map key lookup, range membership,
// and string substring search.
func (i *Instance) containsOp(needle, haystack Value) (bool, error) {
	switch haystack.Type() {
	case objList:
		for _, v := range haystack.AsObject().list().items {
			if needle.Equal(v) {
				return true, nil
			}
		}
		return false, nil
	case objMap:
		if !isHashableKey(needle) {
			return false, nil
		}
		return haystack.AsObject().mapObj().containsKey(needle), nil
	case objRange:
		if !needle.IsNumber() {
			return false, nil
		}
		return rangeContains(haystack.AsObject().rangeObj(), needle.AsNumber()), nil
	case objString:
		if needle.Type() != objString {
			return false, newError(ErrBIOP, "in", needle.TypeName(), haystack.TypeName())
		}
		return strings.Contains(haystack.AsObject().str().chars, needle.AsObject().str().chars), nil
	default:
		return false, newError(ErrITER, haystack.TypeName())
	}
}
