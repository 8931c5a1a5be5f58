package service

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/sugawarayuuta/sonnet"

	"swmr/domain/board"
)

// StartSnapshotJob periodically writes a JSON snapshot of the board and
// truncates acked outbox records behind it.
func (s *QuoteService) StartSnapshotJob(dir string, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for range t.C {
			seq := s.seq.Current()

			if err := s.writeSnapshot(dir, seq); err != nil {
				log.Printf("[snapshot] write failed: %v", err)
				continue
			}

			// Broadcast records behind the snapshot are no longer needed.
			_ = s.outbox.TruncateAckedUpTo(seq)
		}
	}()
}

type snapshotFile struct {
	LastSeq uint64        `json:"last_seq"`
	Time    time.Time     `json:"time"`
	Quotes  []board.Quote `json:"quotes"`
}

func (s *QuoteService) writeSnapshot(dir string, seq uint64) error {
	snap := snapshotFile{
		LastSeq: seq,
		Time:    time.Now(),
		Quotes:  s.Snapshot(),
	}

	data, err := sonnet.Marshal(snap)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", seq))
	return atomic.WriteFile(path, bytes.NewReader(data))
}
