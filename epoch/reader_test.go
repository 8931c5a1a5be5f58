package epoch

import "testing"

func TestPinUnpinClearsSlot(t *testing.T) {
	_, dom := New()
	r := dom.RegisterReader()

	if got := r.slot.pinned.Load(); got != unpinned {
		t.Fatalf("fresh slot pinned at %d", got)
	}

	g := r.Pin()
	if r.nest != 1 {
		t.Fatalf("expected nest 1, got %d", r.nest)
	}
	if got := r.slot.pinned.Load(); got != dom.Epoch() {
		t.Fatalf("expected pinned %d, got %d", dom.Epoch(), got)
	}

	g.Unpin()
	if r.nest != 0 {
		t.Fatalf("expected nest 0, got %d", r.nest)
	}
	if got := r.slot.pinned.Load(); got != unpinned {
		t.Fatalf("slot still pinned at %d after release", got)
	}
}

// The nest/pinned invariant must hold at every step regardless of the
// order guards are released in.
func TestGuardReleaseOrderIndependent(t *testing.T) {
	_, dom := New()
	r := dom.RegisterReader()

	g1 := r.Pin()
	g2 := r.Pin()
	g3 := g1.Clone()

	for _, g := range []*PinGuard{g2, g1, g3} {
		if r.nest == 0 || r.slot.pinned.Load() == unpinned {
			t.Fatal("slot unpinned while guards remain")
		}
		g.Unpin()
	}

	if r.nest != 0 || r.slot.pinned.Load() != unpinned {
		t.Fatalf("expected unpinned slot, nest=%d pinned=%d", r.nest, r.slot.pinned.Load())
	}
}

func TestCloneKeepsOutermostEpoch(t *testing.T) {
	gc, dom := NewBuilder().AutoReclaimThreshold(NoAutoReclaim).Build()
	r := dom.RegisterReader()

	g1 := r.Pin()
	pinnedAt := r.slot.pinned.Load()

	gc.Collect()
	gc.Collect()

	g2 := g1.Clone()
	if got := r.slot.pinned.Load(); got != pinnedAt {
		t.Fatalf("clone moved pinned epoch from %d to %d", pinnedAt, got)
	}

	g2.Unpin()
	g1.Unpin()
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s did not panic", name)
		}
	}()
	fn()
}

func TestGuardMisusePanics(t *testing.T) {
	_, dom := New()

	t.Run("double unpin", func(t *testing.T) {
		r := dom.RegisterReader()
		g := r.Pin()
		g.Unpin()
		mustPanic(t, "second Unpin", g.Unpin)
	})

	t.Run("clone after release", func(t *testing.T) {
		r := dom.RegisterReader()
		g := r.Pin()
		g.Unpin()
		mustPanic(t, "Clone", func() { g.Clone() })
	})

	t.Run("pin on closed reader", func(t *testing.T) {
		r := dom.RegisterReader()
		if err := r.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		mustPanic(t, "Pin", func() { r.Pin() })
	})

	t.Run("close with guard outstanding", func(t *testing.T) {
		r := dom.RegisterReader()
		g := r.Pin()
		mustPanic(t, "Close", func() { _ = r.Close() })
		g.Unpin()
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	_, dom := New()
	r := dom.RegisterReader()
	if err := r.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
