package epoch

import "log"

// retired is one queued record. free may be nil: for a payload without a
// reclaim hook the record holds no reference to it at all, and the
// runtime frees the payload once no reader still points at it.
type retired struct {
	free func()
}

// bag groups records retired during a single epoch.
type bag struct {
	epoch uint64
	nodes []retired
}

// garbageSet is the writer-local retired-object queue: bags in epoch
// order, so reclamation is a prefix scan. Emptied bags are kept on a
// free list so steady-state retirement does not allocate.
type garbageSet struct {
	queue []*bag
	free  []*bag
	count int
}

func (g *garbageSet) len() int { return g.count }

func (g *garbageSet) add(free func(), epoch uint64) {
	n := len(g.queue)
	if n > 0 && g.queue[n-1].epoch == epoch {
		last := g.queue[n-1]
		last.nodes = append(last.nodes, retired{free: free})
	} else {
		b := g.takeBag()
		b.epoch = epoch
		b.nodes = append(b.nodes, retired{free: free})
		g.queue = append(g.queue, b)
	}
	g.count++
}

func (g *garbageSet) takeBag() *bag {
	if n := len(g.free); n > 0 {
		b := g.free[n-1]
		g.free = g.free[:n-1]
		return b
	}
	return &bag{nodes: make([]retired, 0, 16)}
}

// reclaim destroys every record with epoch strictly below minPinned and
// returns how many were destroyed. Bags are epoch-monotonic, so the
// scan stops at the first bag that is not yet safe.
func (g *garbageSet) reclaim(minPinned uint64) int {
	freed := 0

	done := 0
	for _, b := range g.queue {
		if b.epoch >= minPinned {
			break
		}
		for i := range b.nodes {
			runReclaim(b.nodes[i].free)
			b.nodes[i] = retired{}
		}
		freed += len(b.nodes)
		b.nodes = b.nodes[:0]
		g.free = append(g.free, b)
		done++
	}

	if done > 0 {
		n := copy(g.queue, g.queue[done:])
		for i := n; i < len(g.queue); i++ {
			g.queue[i] = nil
		}
		g.queue = g.queue[:n]
		g.count -= freed
	}

	return freed
}

// runReclaim contains hook panics: the record counts as dropped and the
// rest of the bag is still processed.
func runReclaim(free func()) {
	if free == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			log.Printf("[epoch] reclaim hook panicked: %v", v)
		}
	}()
	free()
}

// GcHandle drives reclamation for one Domain: it owns the retired-object
// queue and is the only place the global epoch advances. There is
// exactly one per Domain, held by the writer goroutine; it is not safe
// for concurrent use, and every mutating operation (Ptr.Store, Collect)
// takes it explicitly so the single-writer discipline is visible at the
// call site.
type GcHandle struct {
	shared       *sharedState
	garbage      garbageSet
	threshold    int
	cleanupEvery int
	collections  uint64
}

// Pending reports the number of retired records awaiting reclamation.
func (gc *GcHandle) Pending() int { return gc.garbage.len() }

// retire queues free to run once every reader that could still hold the
// payload has unpinned. Records are tagged with the epoch current at
// retire time; the epoch itself only advances inside Collect.
func (gc *GcHandle) retire(free func()) {
	gc.garbage.add(free, gc.shared.epoch.Load())

	if gc.threshold >= 0 && gc.garbage.len() > gc.threshold {
		gc.Collect()
	}
}

// Collect runs one reclamation cycle: advance the epoch, scan the
// registry for the minimum pinned epoch, then destroy retired records
// strictly older than it. Safe to call with nothing queued. Returns the
// number of records reclaimed.
func (gc *GcHandle) Collect() int {
	newEpoch := gc.shared.epoch.Add(1)

	gc.collections++
	prune := gc.cleanupEvery > 0 && gc.collections%uint64(gc.cleanupEvery) == 0

	// A reader pinned exactly at a record's retire epoch may still hold
	// the old pointer, so reclamation needs retireEpoch < minPinned,
	// strictly. No pinned readers means no constraint: minPinned is the
	// epoch just installed, which every queued record predates.
	minPinned := gc.shared.scan(newEpoch, prune)

	return gc.garbage.reclaim(minPinned)
}

// TryCollect is Collect under another name. The writer owns the only
// handle, so there is no lock acquisition that could fail and make the
// two differ.
func (gc *GcHandle) TryCollect() int { return gc.Collect() }
