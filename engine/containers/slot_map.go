package containers

import "iter"

// Handle is a stable reference into a SlotMap. The zero Handle never
// resolves, so it doubles as "no reference".
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsValid reports whether h was ever issued by a SlotMap. It does not
// check that the referenced value is still alive.
func (h Handle) IsValid() bool {
	return h.Generation != 0
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// SlotMap stores values behind generational handles. Removing a value frees
// its slot for reuse but never moves other values, so handles held elsewhere
// stay valid until their own value is removed.
type SlotMap[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func NewSlotMap[T any](capacity int) *SlotMap[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &SlotMap[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Insert stores v and returns its handle. Free slots are taken before the
// backing slice grows.
func (m *SlotMap[T]) Insert(v T) Handle {
	m.count++
	if n := len(m.free); n > 0 {
		// Existing free spot. Take it.
		idx := m.free[n-1]
		m.free = m.free[:n-1]
		s := &m.slots[idx]
		s.value = v
		s.occupied = true
		return Handle{Index: idx, Generation: s.generation}
	}

	// No existing free slots, push a new one.
	m.slots = append(m.slots, slot[T]{value: v, generation: 1, occupied: true})
	return Handle{Index: uint32(len(m.slots) - 1), Generation: 1}
}

// Get returns the value behind h, if it is still alive.
func (m *SlotMap[T]) Get(h Handle) (T, bool) {
	var zero T
	if !m.Contains(h) {
		return zero, false
	}
	return m.slots[h.Index].value, true
}

// Contains reports whether h refers to a live value.
func (m *SlotMap[T]) Contains(h Handle) bool {
	if !h.IsValid() || int(h.Index) >= len(m.slots) {
		return false
	}
	s := &m.slots[h.Index]
	return s.occupied && s.generation == h.Generation
}

// Remove deletes the value behind h and returns it. Stale handles are a
// no-op.
func (m *SlotMap[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !m.Contains(h) {
		return zero, false
	}
	s := &m.slots[h.Index]
	v := s.value
	s.value = zero
	s.occupied = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	m.free = append(m.free, h.Index)
	m.count--
	return v, true
}

// Len returns the number of live values.
func (m *SlotMap[T]) Len() int {
	return m.count
}

// All iterates live values in slot order.
func (m *SlotMap[T]) All() iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for i := range m.slots {
			s := &m.slots[i]
			if !s.occupied {
				continue
			}
			if !yield(Handle{Index: uint32(i), Generation: s.generation}, s.value) {
				return
			}
		}
	}
}

// Clear removes every value. All outstanding handles become stale.
func (m *SlotMap[T]) Clear() {
	for h := range m.All() {
		m.Remove(h)
	}
}
