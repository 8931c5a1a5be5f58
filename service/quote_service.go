package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"swmr/domain/board"
	"swmr/epoch"
	"swmr/infra/kafka"
	"swmr/infra/memory"
	"swmr/infra/outbox"
	"swmr/infra/sequence"
)

/*
QuoteService is the ONLY write entry point into the system.

All coordination between:
- domain (board)
- infra (memory, outbox, sequence)
- the epoch domain
happens here.
*/

type QuoteService struct {
	board  *board.Board
	gc     *epoch.GcHandle
	dom    epoch.Domain
	pool   *memory.Pool[board.Quote]
	seq    *sequence.Sequencer
	outbox *outbox.Outbox

	// readers hands out registered epoch readers for snapshot queries;
	// sync.Pool guarantees one goroutine at a time per reader.
	readers sync.Pool

	// pendingGauge is the GC queue length as of the last Collect, kept
	// for Stats since the GcHandle itself is writer-only. Apply and the
	// automatic collections inside a store do not update it.
	pendingGauge atomic.Int64
}

// appliedEvent is the outbox/broadcast payload for one applied update.
type appliedEvent struct {
	Seq     uint64 `json:"seq"`
	Symbol  string `json:"symbol"`
	Bid     int64  `json:"bid"`
	Ask     int64  `json:"ask"`
	BidSize int64  `json:"bid_size"`
	AskSize int64  `json:"ask_size"`
	Updated int64  `json:"updated"`
}

// NewQuoteService wires all dependencies.
// No globals. No magic.
func NewQuoteService(
	b *board.Board,
	gc *epoch.GcHandle,
	dom epoch.Domain,
	pool *memory.Pool[board.Quote],
	seq *sequence.Sequencer,
	ob *outbox.Outbox,
) *QuoteService {
	s := &QuoteService{
		board:  b,
		gc:     gc,
		dom:    dom,
		pool:   pool,
		seq:    seq,
		outbox: ob,
	}
	s.readers.New = func() any { return dom.RegisterReader() }
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands (writer goroutine only)
// ──────────────────────────────────────────────────────────
//

// Apply ingests one update: assign a sequence, persist the event, then
// publish the quote to readers. Returns the assigned sequence.
func (s *QuoteService) Apply(u kafka.Update) (uint64, error) {
	seq := s.seq.Next()
	now := time.Now().UnixNano()

	payload, err := sonnet.Marshal(appliedEvent{
		Seq:     seq,
		Symbol:  u.Symbol,
		Bid:     u.Bid,
		Ask:     u.Ask,
		BidSize: u.BidSize,
		AskSize: u.AskSize,
		Updated: now,
	})
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	if err := s.outbox.Append(seq, u.Symbol, payload); err != nil {
		return 0, fmt.Errorf("outbox append: %w", err)
	}

	q := s.pool.Get()
	*q = board.Quote{
		Symbol:  u.Symbol,
		Bid:     u.Bid,
		Ask:     u.Ask,
		BidSize: u.BidSize,
		AskSize: u.AskSize,
		Seq:     seq,
		Updated: now,
	}
	s.board.Apply(q, s.gc)

	return seq, nil
}

// Collect runs one reclamation cycle.
func (s *QuoteService) Collect() int {
	n := s.gc.Collect()
	s.pendingGauge.Store(int64(s.gc.Pending()))
	return n
}

// Run is the writer loop: it consumes the feed and periodically
// collects, until ctx is done. Updates are pumped through a channel so
// every mutation stays on this one goroutine.
func (s *QuoteService) Run(ctx context.Context, feed *kafka.Feed, collectEvery time.Duration) error {
	updates := make(chan kafka.Update, 256)

	go func() {
		defer close(updates)
		for {
			u, err := feed.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[writer] feed error: %v", err)
				continue
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(collectEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			if _, err := s.Apply(u); err != nil {
				log.Printf("[writer] apply %s: %v", u.Symbol, err)
			}

		case <-ticker.C:
			s.Collect()
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Queries (any goroutine)
// ──────────────────────────────────────────────────────────
//

// Quote returns the live quote for one symbol.
func (s *QuoteService) Quote(symbol string) (board.Quote, bool) {
	r := s.readers.Get().(*epoch.Reader)
	defer s.readers.Put(r)

	g := r.Pin()
	defer g.Unpin()

	return s.board.Get(symbol, g)
}

// Snapshot returns a consistent copy of every live quote.
func (s *QuoteService) Snapshot() []board.Quote {
	r := s.readers.Get().(*epoch.Reader)
	defer s.readers.Put(r)

	g := r.Pin()
	defer g.Unpin()

	out := make([]board.Quote, 0, 64)
	s.board.Walk(g, func(q *board.Quote) {
		out = append(out, *q)
	})
	return out
}

// Stats is a point-in-time view for observability.
type Stats struct {
	Epoch          uint64
	LastSeq        uint64
	Symbols        int
	PendingGarbage int64
}

func (s *QuoteService) Stats() Stats {
	return Stats{
		Epoch:          s.dom.Epoch(),
		LastSeq:        s.seq.Current(),
		Symbols:        len(s.Snapshot()),
		PendingGarbage: s.pendingGauge.Load(),
	}
}
