// Package outbox persists applied updates in pebble: an ordered outbox
// of events awaiting broadcast, plus the latest payload per symbol so
// the board can be rebuilt on boot.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one applied update awaiting broadcast.
type Record struct {
	Seq     uint64
	State   State
	Retries uint32
	Payload []byte
}

var ErrCorruptRecord = errors.New("outbox: corrupt record")

// binary encoding: [state:1][retries:4][payloadLen:4][payload]
func encodeRecord(r *Record) []byte {
	buf := make([]byte, 1+4+4+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(r.Payload)))
	copy(buf[9:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (*Record, error) {
	if len(b) < 9 {
		return nil, ErrCorruptRecord
	}
	n := binary.BigEndian.Uint32(b[5:9])
	if len(b) != int(9+n) {
		return nil, ErrCorruptRecord
	}
	payload := make([]byte, n)
	copy(payload, b[9:])
	return &Record{
		State:   State(b[0]),
		Retries: binary.BigEndian.Uint32(b[1:5]),
		Payload: payload,
	}, nil
}

// key layout:
//
//	o!<seq:8 big-endian>  outbox record, iterates in seq order
//	q!<symbol>            latest payload for the symbol
func outKey(seq uint64) []byte {
	k := make([]byte, 2+8)
	k[0], k[1] = 'o', '!'
	binary.BigEndian.PutUint64(k[2:], seq)
	return k
}

func quoteKey(symbol string) []byte {
	return append([]byte("q!"), symbol...)
}

// -------------------- Outbox --------------------

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability over throughput here
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", dir, err)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// Append stores a NEW outbox record and the symbol's latest payload in
// one synced batch. Called by the writer for every applied update.
func (o *Outbox) Append(seq uint64, symbol string, payload []byte) error {
	rec := &Record{Seq: seq, State: StateNew, Payload: payload}

	b := o.db.NewBatch()
	defer b.Close()

	if err := b.Set(outKey(seq), encodeRecord(rec), nil); err != nil {
		return err
	}
	if err := b.Set(quoteKey(symbol), payload, nil); err != nil {
		return err
	}
	return o.db.Apply(b, pebble.Sync)
}

// ScanPending visits not-yet-acked records in seq order.
func (o *Outbox) ScanPending(fn func(*Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("o!"),
		UpperBound: []byte("o\""),
	})
	if err != nil {
		return err
	}

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			_ = iter.Close()
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		rec.Seq = binary.BigEndian.Uint64(iter.Key()[2:])
		if err := fn(rec); err != nil {
			_ = iter.Close()
			return err
		}
	}
	return iter.Close()
}

// MarkSent transitions a record to SENT and counts the attempt.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.transition(seq, StateSent)
}

// MarkAcked transitions a record to ACKED; TruncateAckedUpTo removes it
// after the next snapshot.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.transition(seq, StateAcked)
}

func (o *Outbox) transition(seq uint64, st State) error {
	key := outKey(seq)

	v, closer, err := o.db.Get(key)
	if err != nil {
		return err
	}
	rec, err := decodeRecord(v)
	_ = closer.Close()
	if err != nil {
		return err
	}

	rec.State = st
	if st == StateSent {
		rec.Retries++
	}
	return o.db.Set(key, encodeRecord(rec), pebble.Sync)
}

// TruncateAckedUpTo deletes ACKED records with seq <= max. Pending
// records are kept regardless of seq.
func (o *Outbox) TruncateAckedUpTo(max uint64) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("o!"),
		UpperBound: []byte("o\""),
	})
	if err != nil {
		return err
	}

	var doomed [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key()[2:])
		if seq > max {
			break
		}
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			_ = iter.Close()
			return err
		}
		if rec.State != StateAcked {
			continue
		}
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		doomed = append(doomed, k)
	}
	if err := iter.Close(); err != nil {
		return err
	}

	if len(doomed) == 0 {
		return nil
	}
	b := o.db.NewBatch()
	defer b.Close()
	for _, k := range doomed {
		if err := b.Delete(k, nil); err != nil {
			return err
		}
	}
	return o.db.Apply(b, pebble.Sync)
}

// RestoreQuotes replays the latest payload per symbol, for boot.
func (o *Outbox) RestoreQuotes(fn func(symbol string, payload []byte) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("q!"),
		UpperBound: []byte("q\""),
	})
	if err != nil {
		return err
	}

	for iter.First(); iter.Valid(); iter.Next() {
		symbol := string(iter.Key()[2:])
		payload := make([]byte, len(iter.Value()))
		copy(payload, iter.Value())
		if err := fn(symbol, payload); err != nil {
			_ = iter.Close()
			return err
		}
	}
	return iter.Close()
}
