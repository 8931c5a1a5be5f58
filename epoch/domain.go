package epoch

// Builder configures a Domain before construction.
type Builder struct {
	threshold    int
	cleanupEvery int
}

// NewBuilder returns a builder with the defaults: auto-reclaim at 64
// queued records, dead-slot cleanup every 16 collections.
func NewBuilder() *Builder {
	return &Builder{
		threshold:    DefaultAutoReclaimThreshold,
		cleanupEvery: DefaultCleanupInterval,
	}
}

// AutoReclaimThreshold sets the queue length above which a store runs
// Collect immediately. Pass NoAutoReclaim to make reclamation wholly
// manual; 0 collects on every store.
func (b *Builder) AutoReclaimThreshold(n int) *Builder {
	b.threshold = n
	return b
}

// CleanupInterval sets how many collection cycles pass between prunes
// of dead reader slots. 0 disables periodic cleanup.
func (b *Builder) CleanupInterval(n int) *Builder {
	b.cleanupEvery = n
	return b
}

// Build constructs the writer handle and the shareable domain handle.
func (b *Builder) Build() (*GcHandle, Domain) {
	shared := newSharedState()
	gc := &GcHandle{
		shared:       shared,
		threshold:    b.threshold,
		cleanupEvery: b.cleanupEvery,
	}
	return gc, Domain{shared: shared}
}

// Domain is the shareable side of an epoch domain. The zero value is
// not usable; obtain one from Build or New. Copying is cheap and any
// copy may register readers from any goroutine.
type Domain struct {
	shared *sharedState
}

// New builds a domain with the default configuration.
func New() (*GcHandle, Domain) { return NewBuilder().Build() }

// RegisterReader allocates a slot for the calling goroutine and enters
// it into the registry. The returned Reader must stay with a single
// goroutine at a time.
func (d Domain) RegisterReader() *Reader {
	slot := &readerSlot{}
	d.shared.register(slot)
	return &Reader{slot: slot, shared: d.shared}
}

// Epoch returns the current global epoch.
func (d Domain) Epoch() uint64 { return d.shared.epoch.Load() }
