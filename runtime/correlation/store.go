package correlation

import "sync"

// Slot is a single-fire rendez-vous point between a waiter and a resolver.
type Slot[T any] struct {
	ID string
	// Peer is the only party allowed to resolve the slot via ResolveFrom.
	Peer string
	ch   chan T
}

// Done returns a channel delivering the resolved value exactly once. After
// Table.Reset the channel is closed instead.
func (s *Slot[T]) Done() <-chan T {
	return s.ch
}

// Deliver hands v to the waiter. Only the party that took the slot from its
// Table may deliver, and only once.
func (s *Slot[T]) Deliver(v T) {
	s.ch <- v
}

// Table is an in-memory set of open slots keyed by correlation id. Take is
// the single point of arbitration: whoever removes a slot owns its fate, so a
// value is delivered at most once no matter how many resolvers race.
type Table[T any] struct {
	mu    sync.Mutex
	slots map[string]*Slot[T]
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{slots: make(map[string]*Slot[T])}
}

// Open registers a slot. An existing slot with the same id is returned as is.
func (t *Table[T]) Open(id, peer string) *Slot[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.slots[id]; ok {
		return existing
	}
	slot := &Slot[T]{ID: id, Peer: peer, ch: make(chan T, 1)}
	t.slots[id] = slot
	return slot
}

// Take removes and returns the slot, or nil when it is no longer open.
func (t *Table[T]) Take(id string) *Slot[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.slots[id]
	if !ok {
		return nil
	}
	delete(t.slots, id)
	return slot
}

// Peek returns the open slot without removing it.
func (t *Table[T]) Peek(id string) *Slot[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[id]
}

// Resolve delivers v to the slot waiter. It returns false when the slot was
// already resolved or discarded.
func (t *Table[T]) Resolve(id string, v T) bool {
	slot := t.Take(id)
	if slot == nil {
		return false
	}
	slot.Deliver(v)
	return true
}

// ResolveFrom resolves the slot only when peer matches the slot's Peer.
func (t *Table[T]) ResolveFrom(id, peer string, v T) bool {
	slot := t.TakeFrom(id, peer)
	if slot == nil {
		return false
	}
	slot.Deliver(v)
	return true
}

// TakeFrom removes and returns the slot for id only when it was opened for
// peer. It returns nil when the slot is absent or bound to another peer.
func (t *Table[T]) TakeFrom(id, peer string) *Slot[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.slots[id]
	if !ok || slot.Peer != peer {
		return nil
	}
	delete(t.slots, id)
	return slot
}

// Discard removes the slot without resolving it. It returns false when
// another party already took it; that party's value is then on Done.
func (t *Table[T]) Discard(id string) bool {
	return t.Take(id) != nil
}

// Len returns the number of open slots.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// IDs returns the ids of open slots.
func (t *Table[T]) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]string, 0, len(t.slots))
	for id := range t.slots {
		ret = append(ret, id)
	}
	return ret
}

// Reset drops every open slot and closes it, so its waiter receives the
// zero value instead of blocking.
func (t *Table[T]) Reset() {
	t.mu.Lock()
	slots := t.slots
	t.slots = make(map[string]*Slot[T])
	t.mu.Unlock()
	for _, slot := range slots {
		close(slot.ch)
	}
}
