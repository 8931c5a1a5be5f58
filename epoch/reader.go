package epoch

// Reader is one goroutine's handle into a Domain. It owns the strong
// reference to its registry slot and the pin-nesting counter.
//
// A Reader must only ever be used by one goroutine at a time. Handing a
// Reader to another goroutine is legal only when the whole handle moves
// (e.g. through a sync.Pool); concurrent use is not.
type Reader struct {
	slot   *readerSlot
	shared *sharedState

	// nest counts outstanding guards. Only the owning goroutine touches
	// it, so it is deliberately a plain int: promoting it to an atomic
	// would publish intermediate values no one is entitled to observe.
	nest int

	closed bool
}

// Pin records the current epoch in this reader's slot and returns a
// guard. Reentrant: while any guard is outstanding, further pins only
// bump the nesting count and the pinned epoch stays at its value from
// the outermost pin.
func (r *Reader) Pin() *PinGuard {
	if r.closed {
		panic("epoch: Pin on closed Reader")
	}
	if r.nest == 0 {
		r.slot.pinned.Store(r.shared.epoch.Load())
	}
	r.nest++
	return &PinGuard{reader: r}
}

// Close marks the reader's slot for pruning. Callers that let a Reader
// go unreferenced instead get the same effect once the runtime clears
// the registry's weak reference; Close just makes it deterministic.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	if r.nest != 0 {
		panic("epoch: Close with guards outstanding")
	}
	r.closed = true
	r.slot.done.Store(true)
	return nil
}

// PinGuard is scoped evidence of a pin. Release it with Unpin on every
// exit path; Clone creates a nested guard sharing the same pin.
type PinGuard struct {
	reader   *Reader
	released bool
}

// Clone bumps the nesting count and returns an independent guard. The
// reader stays pinned until every guard has been released, in any order.
func (g *PinGuard) Clone() *PinGuard {
	if g.released || g.reader.nest == 0 {
		panic("epoch: Clone of released PinGuard")
	}
	g.reader.nest++
	return &PinGuard{reader: g.reader}
}

// Unpin releases the guard. When the last guard goes, the slot is
// cleared and the writer may reclaim values retired at this epoch.
func (g *PinGuard) Unpin() {
	if g.released || g.reader.nest == 0 {
		panic("epoch: Unpin of released PinGuard")
	}
	g.released = true
	g.reader.nest--
	if g.reader.nest == 0 {
		g.reader.slot.pinned.Store(unpinned)
	}
}

func (g *PinGuard) active() bool {
	return !g.released && g.reader.nest > 0
}
