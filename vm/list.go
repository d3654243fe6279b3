package vm

// append grows the backing array geometrically, matching spec.md §3's
// "capacity grows geometrically" requirement for List.
func (l *gcList) append(v Value) {
	l.items = append(l.items, v)
}

// resolveIndex applies the negative-index convention of spec.md §8
// ("negative indices are resolved as len + i") and reports whether the
// result is in bounds.
func resolveIndex(idx, length int) (int, bool) {
	if idx < 0 {
		idx += length
	}
	return idx, idx >= 0 && idx < length
}

func listConcat(a, b *gcList) *gcList {
	out := make([]Value, 0, len(a.items)+len(b.items))
	out = append(out, a.items...)
	out = append(out, b.items...)
	l := &gcList{items: out}
	l.typ = objList
	return l
}

// listIterate implements the list's GET_ITER method (spec.md §4.7,
// "Iteration protocol"): iter is nil before the first call, otherwise the
// previous index as a number; returns the next index, or Nil when
// exhausted.
func listIterate(l *gcList, iter Value) Value {
	next := 0
	if !iter.IsNil() {
		next = int(iter.AsNumber()) + 1
	}
	if next >= len(l.items) {
		return Nil
	}
	return Number(float64(next))
}

func listIteratorValue(l *gcList, iter Value) Value {
	idx := int(iter.AsNumber())
	if idx < 0 || idx >= len(l.items) {
		return Nil
	}
	return l.items[idx]
}

// rangeLen computes the iteration length of spec.md §3's Range: "iteration
// length = (end-start)/step".
func rangeLen(r *gcRange) int {
	if r.step == 0 {
		return 0
	}
	n := (r.end - r.start) / r.step
	if n < 0 {
		return 0
	}
	return int(n)
}

func rangeAt(r *gcRange, idx int) float64 {
	return r.start + float64(idx)*r.step
}

func rangeIterate(r *gcRange, iter Value) Value {
	next := 0
	if !iter.IsNil() {
		next = int(iter.AsNumber()) + 1
	}
	if next >= rangeLen(r) {
		return Nil
	}
	return Number(float64(next))
}

func rangeIteratorValue(r *gcRange, iter Value) Value {
	return Number(rangeAt(r, int(iter.AsNumber())))
}

// rangeContains implements `in` for ranges: "membership by step-modulo"
// (spec.md §4.7).
func rangeContains(r *gcRange, v float64) bool {
	if r.step == 0 {
		return false
	}
	if r.step > 0 {
		if v < r.start || v >= r.end {
			return false
		}
	} else {
		if v > r.start || v <= r.end {
			return false
		}
	}
	n := (v - r.start) / r.step
	return n == float64(int64(n))
}
