package vm

// interner deduplicates byte strings so that equality reduces to pointer
// identity (spec.md §4.1). It is a separate open-addressed table keyed by
// hashed byte content, swept as a *weak* table ahead of the main sweep
// (spec.md §3, invariant 3).
type interner struct {
	entries  []*gcString // nil slot = empty, tombstone = &tombstoneString
	count    int
	tombs    int
}

var tombstoneString = &gcString{}

const internerMinCap = 256

func newInterner() *interner {
	return &interner{entries: make([]*gcString, internerMinCap)}
}

// fnv1a is the interner's hash function (spec.md §4.1).
func fnv1a(s string) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// InternValue interns s and boxes it as a Value in one step, for host
// CFunctions (defined outside this package, spec.md §6) that need to
// push a string result the way `push_string` would in the stack API --
// Intern alone returns an unexported *gcString a collaborator has no way
// to box itself.
func (i *Instance) InternValue(s string) (Value, error) {
	str, err := i.Intern(s)
	if err != nil {
		return Nil, err
	}
	return FromObject(&str.object), nil
}

// Intern returns the unique interned string for s, allocating a new
// gcString only on a miss (spec.md §4.1).
func (i *Instance) Intern(s string) (*gcString, error) {
	if len(s) > maxStringLen {
		return nil, newError(ErrSTROV)
	}
	it := i.strings
	if it.count+1 > len(it.entries)*3/4 {
		if err := it.grow(len(it.entries) * 2); err != nil {
			return nil, err
		}
	}
	h := fnv1a(s)
	idx, found := it.find(s, h)
	if found {
		return it.entries[idx], nil
	}
	str := &gcString{chars: s, len: len(s), hash: h}
	str.typ = objString
	i.track(&str.object)
	if it.entries[idx] == nil {
		it.count++
	} else {
		it.tombs--
	}
	it.entries[idx] = str
	return str, nil
}

// find locates the slot for (s, h): either the existing entry, or the first
// empty/tombstone slot on the probe chain (linear probing per spec.md
// §4.1/§4.2).
func (it *interner) find(s string, h uint32) (idx int, found bool) {
	mask := uint32(len(it.entries) - 1)
	i := h & mask
	var tomb = -1
	for {
		e := it.entries[i]
		switch {
		case e == nil:
			if tomb != -1 {
				return tomb, false
			}
			return int(i), false
		case e == tombstoneString:
			if tomb == -1 {
				tomb = int(i)
			}
		case e.hash == h && e.chars == s:
			return int(i), true
		}
		i = (i + 1) & mask
	}
}

func (it *interner) grow(newCap int) error {
	old := it.entries
	it.entries = make([]*gcString, newCap)
	it.count, it.tombs = 0, 0
	for _, e := range old {
		if e == nil || e == tombstoneString {
			continue
		}
		idx, _ := it.find(e.chars, e.hash)
		it.entries[idx] = e
		it.count++
	}
	return nil
}

// remove deletes s from the interner (used by the GC sweep's first pass,
// and by the free() contract of spec.md §4.1).
func (it *interner) remove(s *gcString) {
	idx, found := it.find(s.chars, s.hash)
	if !found {
		return
	}
	it.entries[idx] = tombstoneString
	it.count--
	it.tombs++
}

const maxStringLen = 1<<31 - 1
