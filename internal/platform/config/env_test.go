package config

import (
	"testing"
	"time"
)

func TestParseEnvReadsTagsAndDefaults(t *testing.T) {
	type cfg struct {
		Addr     string        `env:"CHIRPER_TEST_ADDR" envDefault:"localhost:9000"`
		Interval time.Duration `env:"CHIRPER_TEST_INTERVAL" envDefault:"2s"`
	}

	t.Setenv("CHIRPER_TEST_ADDR", "chirp:8088")

	var c cfg
	if err := ParseEnv(&c); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if c.Addr != "chirp:8088" {
		t.Fatalf("addr = %q, want %q", c.Addr, "chirp:8088")
	}
	if c.Interval != 2*time.Second {
		t.Fatalf("interval = %v, want 2s", c.Interval)
	}
}
