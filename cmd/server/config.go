package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds all server configuration options.
type Config struct {
	ListenAddr  string   `json:"listen_addr"`
	Brokers     []string `json:"brokers"`
	FeedTopic   string   `json:"feed_topic"`
	FeedGroup   string   `json:"feed_group"`
	EventsTopic string   `json:"events_topic"`
	DataDir     string   `json:"data_dir"`
	SnapshotDir string   `json:"snapshot_dir"`

	SnapshotSecs     int `json:"snapshot_secs"`
	CollectMs        int `json:"collect_ms"`
	BroadcastMs      int `json:"broadcast_ms"`
	ReclaimThreshold int `json:"reclaim_threshold"`
	CleanupInterval  int `json:"cleanup_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":50051",
		Brokers:          []string{"localhost:9092"},
		FeedTopic:        "quotes.updates",
		FeedGroup:        "board-writer",
		EventsTopic:      "quotes.applied",
		DataDir:          "./data",
		SnapshotDir:      "./snapshots",
		SnapshotSecs:     30,
		CollectMs:        250,
		BroadcastMs:      2000,
		ReclaimThreshold: 64,
		CleanupInterval:  16,
	}
}

// LoadConfig reads a HuJSON config file (comments and trailing commas
// allowed) over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
