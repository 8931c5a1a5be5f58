package grpcserver

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"swmr/domain/board"
	"swmr/epoch"
	"swmr/infra/kafka"
	"swmr/infra/memory"
	"swmr/infra/outbox"
	"swmr/infra/sequence"
	"swmr/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	ob, err := outbox.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { _ = ob.Close() })

	gc, dom := epoch.New()
	pool := memory.NewPool(func() *board.Quote { return &board.Quote{} })
	svc := service.NewQuoteService(board.New(pool), gc, dom, pool, sequence.New(0), ob)

	if _, err := svc.Apply(kafka.Update{Symbol: "ACME", Bid: 100, Ask: 101}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	return NewServer(svc)
}

func TestGetQuote(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetQuote(context.Background(), wrapperspb.String("ACME"))
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if got := resp.Fields["bid"].GetNumberValue(); got != 100 {
		t.Fatalf("expected bid 100, got %v", got)
	}
	if got := resp.Fields["symbol"].GetStringValue(); got != "ACME" {
		t.Fatalf("expected symbol ACME, got %q", got)
	}
}

func TestGetQuoteUnknownSymbol(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.GetQuote(context.Background(), wrapperspb.String("NOPE"))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSnapshotAndStats(t *testing.T) {
	srv := newTestServer(t)

	snap, err := srv.Snapshot(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Values) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(snap.Values))
	}

	stats, err := srv.Stats(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got := stats.Fields["symbols"].GetNumberValue(); got != 1 {
		t.Fatalf("expected 1 symbol, got %v", got)
	}
	if got := stats.Fields["last_seq"].GetNumberValue(); got != 1 {
		t.Fatalf("expected last_seq 1, got %v", got)
	}
}
