package vm

import "math"

// gcMap is the Map object of spec.md §4.3/§3: the same open-addressing
// table shape as the string table (§4.2), but keyed by any hashable Value
// (nil and NaN are rejected at the boundary that constructs a map key).
type gcMap struct {
	object
	entries []mapEntry
	count   int // live + tombstones
	live    int
}

type mapEntry struct {
	key   Value
	value Value
	tomb  bool
	used  bool // slot has ever held an entry (distinguishes empty from tombstone)
}

const mapMinCap = 8

func newMapObj() *gcMap {
	m := &gcMap{entries: make([]mapEntry, mapMinCap)}
	m.typ = objMap
	return m
}

// hashValue implements spec.md §4.3's hashing rules.
func hashValue(v Value) uint32 {
	switch {
	case v.IsBool():
		if v.AsBool() {
			return 2
		}
		return 1
	case v.IsNumber():
		return mixHash64(math.Float64bits(v.AsNumber()))
	case v.Type() == objString:
		return v.AsObject().str().hash
	default:
		// Other object kinds are not hashable per spec.md §4.3; callers
		// must reject them before reaching here (isHashableKey).
		return 0
	}
}

func mixHash64(x uint64) uint32 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return uint32(x) ^ uint32(x>>32)
}

// mapKeyError validates a candidate map key, raising ErrNILIDX/ErrNANIDX
// for the forbidden cases; it returns nil for every other value.
// Hashability (bool, number, string) is checked separately by
// isHashableKey.
func mapKeyError(key Value) error {
	if key.IsNil() {
		return newError(ErrNILIDX)
	}
	if key.IsNumber() && math.IsNaN(key.AsNumber()) {
		return newError(ErrNANIDX)
	}
	return nil
}

func isHashableKey(key Value) bool {
	return key.IsBool() || key.IsNumber() || key.Type() == objString
}

func (m *gcMap) find(entries []mapEntry, key Value, h uint32) int {
	mask := uint32(len(entries) - 1)
	idx := h & mask
	tomb := -1
	for {
		e := &entries[idx]
		switch {
		case !e.used:
			if tomb != -1 {
				return tomb
			}
			return int(idx)
		case e.tomb:
			if tomb == -1 {
				tomb = int(idx)
			}
		case e.key.RawEqual(key):
			return int(idx)
		}
		idx = (idx + 1) & mask
	}
}

func (m *gcMap) grow(newCap int) {
	old := m.entries
	m.entries = make([]mapEntry, newCap)
	m.count, m.live = 0, 0
	for _, e := range old {
		if !e.used || e.tomb {
			continue
		}
		idx := m.find(m.entries, e.key, hashValue(e.key))
		m.entries[idx] = mapEntry{key: e.key, value: e.value, used: true}
		m.count++
		m.live++
	}
}

func (m *gcMap) get(key Value) (Value, bool) {
	if m.live == 0 {
		return Nil, false
	}
	idx := m.find(m.entries, key, hashValue(key))
	e := &m.entries[idx]
	if !e.used || e.tomb {
		return Nil, false
	}
	return e.value, true
}

func (m *gcMap) set(key, value Value) bool {
	if m.count+1 > len(m.entries)*3/4 {
		m.grow(len(m.entries) * 2)
	}
	h := hashValue(key)
	idx := m.find(m.entries, key, h)
	e := &m.entries[idx]
	isNew := !e.used
	if isNew {
		m.count++
		m.live++
	}
	*e = mapEntry{key: key, value: value, used: true}
	return isNew
}

// delete removes key, leaving a tombstone; once live count falls below
// half capacity the table is shrunk and tombstones reclaimed (spec.md §3).
func (m *gcMap) delete(key Value) bool {
	if m.live == 0 {
		return false
	}
	idx := m.find(m.entries, key, hashValue(key))
	e := &m.entries[idx]
	if !e.used || e.tomb {
		return false
	}
	*e = mapEntry{used: true, tomb: true}
	m.live--
	if len(m.entries) > mapMinCap && m.live < len(m.entries)/2 {
		m.grow(len(m.entries) / 2)
	}
	return true
}

// containsKey implements the `in` operator's map branch.
func (m *gcMap) containsKey(key Value) bool {
	_, ok := m.get(key)
	return ok
}

// mapConcat produces a new map with b's entries overwriting a's on
// collision -- the semantics `+` uses for map concatenation (spec.md §4.7,
// "concatenates two maps (producing a new map with right-hand keys
// winning)").
func mapConcat(a, b *gcMap) *gcMap {
	out := newMapObj()
	out.entries = make([]mapEntry, len(a.entries))
	for _, e := range a.entries {
		if e.used && !e.tomb {
			out.set(e.key, e.value)
		}
	}
	for _, e := range b.entries {
		if e.used && !e.tomb {
			out.set(e.key, e.value)
		}
	}
	return out
}
