// Package kafka connects the single writer to its update feed.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sugawarayuuta/sonnet"
)

// Update is one quote update from the feed topic.
type Update struct {
	Symbol  string `json:"symbol"`
	Bid     int64  `json:"bid"`
	Ask     int64  `json:"ask"`
	BidSize int64  `json:"bid_size"`
	AskSize int64  `json:"ask_size"`
}

// Feed consumes quote updates. One Feed per writer; Next is not safe
// for concurrent use.
type Feed struct {
	reader *kafka.Reader
}

func NewFeed(brokers []string, topic, group string) *Feed {
	return &Feed{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  250 * time.Millisecond,
		}),
	}
}

// Next blocks until the next update or ctx is done. Consumer-group
// offsets make the feed replayable, so a crashed writer resumes where
// it left off.
func (f *Feed) Next(ctx context.Context) (Update, error) {
	msg, err := f.reader.ReadMessage(ctx)
	if err != nil {
		return Update{}, err
	}

	var u Update
	if err := sonnet.Unmarshal(msg.Value, &u); err != nil {
		return Update{}, fmt.Errorf("feed: decode update: %w", err)
	}
	return u, nil
}

func (f *Feed) Close() error {
	return f.reader.Close()
}
