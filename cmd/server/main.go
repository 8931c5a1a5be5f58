package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"swmr/api/grpcserver"
	"swmr/domain/board"
	"swmr/epoch"
	"swmr/infra/kafka"
	"swmr/infra/memory"
	"swmr/infra/outbox"
	"swmr/infra/sequence"
	"swmr/jobs/broadcaster"
	"swmr/service"
)

func main() {
	var (
		configPath = pflag.String("config", "", "path to HuJSON config file")
		listenAddr = pflag.String("listen", "", "override listen address")
	)
	pflag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	// ---------------- Outbox ----------------

	ob, err := outbox.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("outbox init failed: %v", err)
	}
	defer ob.Close()

	// ---------------- Memory ----------------

	pool := memory.NewPool(func() *board.Quote {
		return &board.Quote{}
	})

	// ---------------- Epoch domain ----------------

	gc, dom := epoch.NewBuilder().
		AutoReclaimThreshold(cfg.ReclaimThreshold).
		CleanupInterval(cfg.CleanupInterval).
		Build()

	// ---------------- Domain ----------------

	b := board.New(pool)

	// ---------------- Restore ----------------

	seqGen := sequence.New(0)
	if err := service.Restore(ob, b, pool, seqGen, gc); err != nil {
		log.Fatalf("restore failed: %v", err)
	}

	// ---------------- Service ----------------

	svc := service.NewQuoteService(b, gc, dom, pool, seqGen, ob)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------- Background Jobs ----------------

	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		log.Fatalf("snapshot dir: %v", err)
	}
	svc.StartSnapshotJob(cfg.SnapshotDir, time.Duration(cfg.SnapshotSecs)*time.Second)

	bc, err := broadcaster.New(ob, cfg.Brokers, cfg.EventsTopic,
		time.Duration(cfg.BroadcastMs)*time.Millisecond)
	if err != nil {
		log.Fatalf("broadcaster init failed: %v", err)
	}
	defer bc.Close()
	go bc.Run(ctx)

	// ---------------- Writer loop ----------------

	feed := kafka.NewFeed(cfg.Brokers, cfg.FeedTopic, cfg.FeedGroup)
	defer feed.Close()

	go func() {
		if err := svc.Run(ctx, feed, time.Duration(cfg.CollectMs)*time.Millisecond); err != nil && ctx.Err() == nil {
			log.Fatalf("writer loop exited: %v", err)
		}
	}()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}

	grpcSrv := grpc.NewServer()
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc))

	fmt.Printf("board service running on %s\n", cfg.ListenAddr)

	if err := grpcSrv.Serve(lis); err != nil {
		log.Fatalf("gRPC server exited: %v", err)
	}
}
