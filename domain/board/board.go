// Package board holds the live quote table: the epoch-protected hot
// state one writer updates and many readers snapshot.
package board

import (
	"maps"

	"swmr/epoch"
	"swmr/infra/memory"
)

// Quote is one symbol's current market state. Prices are fixed-point.
type Quote struct {
	Symbol  string
	Bid     int64
	Ask     int64
	BidSize int64
	AskSize int64
	Seq     uint64
	Updated int64
}

// symtab maps symbols to their epoch-protected quote cells. The table
// itself is copy-on-write: adding a symbol installs a new table.
type symtab = map[string]*epoch.Ptr[Quote]

// Board is the live quote table. Exactly one goroutine calls Apply;
// readers call Get and Walk under a pin guard.
type Board struct {
	index *epoch.Ptr[symtab]

	// current is the writer's view of the newest table. Readers must go
	// through index instead.
	current symtab

	pool *memory.Pool[Quote]
}

func New(pool *memory.Pool[Quote]) *Board {
	tab := symtab{}
	return &Board{
		index:   epoch.NewPtr(&tab),
		current: tab,
		pool:    pool,
	}
}

// Apply installs q as the live quote for its symbol. The replaced quote
// is retired and returns to the pool once no reader can see it. Known
// symbols swap a single cell; new symbols install a copied table so
// in-flight readers keep a consistent view.
func (b *Board) Apply(q *Quote, gc *epoch.GcHandle) {
	if cell, ok := b.current[q.Symbol]; ok {
		cell.Store(q, gc)
		return
	}

	cell := epoch.NewPtrReclaim(q, b.pool.Put)
	next := maps.Clone(b.current)
	next[q.Symbol] = cell
	b.current = next
	b.index.Store(&next, gc)
}

// Get copies the live quote for symbol out under g.
func (b *Board) Get(symbol string, g *epoch.PinGuard) (Quote, bool) {
	tab := *b.index.Load(g)
	cell, ok := tab[symbol]
	if !ok {
		return Quote{}, false
	}
	return *cell.Load(g), true
}

// Walk visits every live quote, in no particular order. The *Quote is
// only valid inside fn while g is held; copy to keep.
func (b *Board) Walk(g *epoch.PinGuard, fn func(*Quote)) {
	tab := *b.index.Load(g)
	for _, cell := range tab {
		fn(cell.Load(g))
	}
}
