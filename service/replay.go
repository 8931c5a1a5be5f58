package service

import (
	"fmt"
	"log"

	"github.com/sugawarayuuta/sonnet"

	"swmr/domain/board"
	"swmr/epoch"
	"swmr/infra/memory"
	"swmr/infra/outbox"
	"swmr/infra/sequence"
)

/*
Restore rebuilds the in-memory board from the outbox's latest-quote
column.

IMPORTANT:
- This MUST run before accepting traffic, on the writer goroutine
- Pending outbox records are NOT replayed here; the broadcaster
  drains them independently
*/

func Restore(
	ob *outbox.Outbox,
	b *board.Board,
	pool *memory.Pool[board.Quote],
	seqGen *sequence.Sequencer,
	gc *epoch.GcHandle,
) error {
	var last uint64
	restored := 0

	err := ob.RestoreQuotes(func(symbol string, payload []byte) error {
		var ev appliedEvent
		if err := sonnet.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode quote for %s: %w", symbol, err)
		}

		q := pool.Get()
		*q = board.Quote{
			Symbol:  ev.Symbol,
			Bid:     ev.Bid,
			Ask:     ev.Ask,
			BidSize: ev.BidSize,
			AskSize: ev.AskSize,
			Seq:     ev.Seq,
			Updated: ev.Updated,
		}
		b.Apply(q, gc)

		if ev.Seq > last {
			last = ev.Seq
		}
		restored++
		return nil
	})
	if err != nil {
		return err
	}

	// Resume sequencing AFTER restore.
	seqGen.Reset(last)

	log.Printf("[replay] restored %d symbols (last seq = %d)", restored, last)
	return nil
}
