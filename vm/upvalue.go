package vm

import "unsafe"

func addrOf(p *Value) uintptr { return uintptr(unsafe.Pointer(p)) }

// captureUpvalue returns the open upvalue for the stack slot at index,
// reusing an existing one if the open-upvalue list already has an entry for
// that exact slot (spec.md §4.7, "reuses an existing open upvalue with the
// same slot address"). The list is kept sorted by descending slot address
// (spec.md §8 invariant 2), so insertion walks from the head while the
// existing entries sit above the target slot.
func (i *Instance) captureUpvalue(slot int) *gcUpvalue {
	loc := &i.stack[slot]
	target := addrOf(loc)

	var prev *gcUpvalue
	uv := i.openUpvalues
	for uv != nil && addrOf(uv.location) > target {
		prev = uv
		uv = uv.next
	}
	if uv != nil && uv.location == loc {
		return uv
	}

	created := i.newUpvalue(loc)
	created.next = uv
	if prev == nil {
		i.openUpvalues = created
	} else {
		prev.next = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose location is at or above
// slot: it copies the live stack value into the upvalue's owned storage
// and unlinks it from the open list (spec.md §4.7). Closing an
// already-closed upvalue is a no-op by construction, since closed upvalues
// are no longer reachable from openUpvalues.
func (i *Instance) closeUpvalues(slot int) {
	target := addrOf(&i.stack[slot])
	for i.openUpvalues != nil && addrOf(i.openUpvalues.location) >= target {
		uv := i.openUpvalues
		uv.closed = *uv.location
		uv.location = &uv.closed
		i.openUpvalues = uv.next
		uv.next = nil
	}
}
