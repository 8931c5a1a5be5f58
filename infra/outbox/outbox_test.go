package outbox

import (
	"fmt"
	"testing"
)

func TestOutbox_AppendAndScan(t *testing.T) {
	ob, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ob.Close()

	// --- append phase ---
	const n = 20
	for i := uint64(1); i <= n; i++ {
		sym := fmt.Sprintf("SYM%d", i%3)
		if err := ob.Append(i, sym, []byte(fmt.Sprintf("update-%d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// --- scan phase ---
	var seqs []uint64
	err = ob.ScanPending(func(rec *Record) error {
		if rec.State != StateNew {
			t.Fatalf("fresh record in state %v", rec.State)
		}
		seqs = append(seqs, rec.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seqs) != n {
		t.Fatalf("expected %d pending, got %d", n, len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("scan out of order: %d after %d", seqs[i], seqs[i-1])
		}
	}
}

func TestOutbox_StateTransitions(t *testing.T) {
	ob, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ob.Close()

	if err := ob.Append(1, "A", []byte("a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ob.MarkSent(1); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	var rec *Record
	_ = ob.ScanPending(func(r *Record) error { rec = r; return nil })
	if rec == nil || rec.State != StateSent || rec.Retries != 1 {
		t.Fatalf("unexpected record after send: %+v", rec)
	}

	if err := ob.MarkAcked(1); err != nil {
		t.Fatalf("mark acked: %v", err)
	}
	count := 0
	_ = ob.ScanPending(func(*Record) error { count++; return nil })
	if count != 0 {
		t.Fatalf("acked record still pending: %d", count)
	}
}

func TestOutbox_TruncateKeepsPending(t *testing.T) {
	ob, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ob.Close()

	for i := uint64(1); i <= 4; i++ {
		if err := ob.Append(i, "A", []byte("a")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = ob.MarkAcked(1)
	_ = ob.MarkAcked(2)

	if err := ob.TruncateAckedUpTo(3); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	var left []uint64
	_ = ob.ScanPending(func(r *Record) error { left = append(left, r.Seq); return nil })
	if len(left) != 2 || left[0] != 3 || left[1] != 4 {
		t.Fatalf("expected pending [3 4], got %v", left)
	}
}

func TestOutbox_RestoreQuotesKeepsLatest(t *testing.T) {
	dir := t.TempDir()

	ob, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = ob.Append(1, "A", []byte("a1"))
	_ = ob.Append(2, "B", []byte("b1"))
	_ = ob.Append(3, "A", []byte("a2"))
	if err := ob.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// --- reopen and restore ---
	ob, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ob.Close()

	got := map[string]string{}
	err = ob.RestoreQuotes(func(symbol string, payload []byte) error {
		got[symbol] = string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(got) != 2 || got["A"] != "a2" || got["B"] != "b1" {
		t.Fatalf("unexpected restored quotes: %v", got)
	}
}

func TestRecordRoundTripRejectsCorruption(t *testing.T) {
	rec := &Record{State: StateSent, Retries: 3, Payload: []byte("payload")}
	buf := encodeRecord(rec)

	out, err := decodeRecord(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.State != StateSent || out.Retries != 3 || string(out.Payload) != "payload" {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if _, err := decodeRecord(buf[:5]); err == nil {
		t.Fatal("expected corrupt record error")
	}
}
