package projector

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("projector", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.BatchSize != 100 {
		t.Fatalf("batch size = %d, want 100", cfg.BatchSize)
	}
	if cfg.FriendEventsDBPath == "" || cfg.FriendReadDBPath == "" {
		t.Fatalf("db path defaults missing: %+v", cfg)
	}
}

func TestParseConfigFlagsOverrideDefaults(t *testing.T) {
	fs := flag.NewFlagSet("projector", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-poll-interval", "50ms", "-batch-size", "7"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Fatalf("poll interval = %v, want 50ms", cfg.PollInterval)
	}
	if cfg.BatchSize != 7 {
		t.Fatalf("batch size = %d, want 7", cfg.BatchSize)
	}
}
