// Package projector parses projector command flags and launches the
// read-side projection worker.
package projector

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	entrypoint "github.com/louisbranch/chirper/internal/platform/cmd"
	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	"github.com/louisbranch/chirper/internal/services/friend/projection"
	friendsqlite "github.com/louisbranch/chirper/internal/services/friend/storage/sqlite"
)

// Config holds projector command configuration.
type Config struct {
	FriendEventsDBPath string        `env:"CHIRPER_FRIEND_EVENTS_DB_PATH" envDefault:"data/friend-events.db"`
	FriendReadDBPath   string        `env:"CHIRPER_FRIEND_READ_DB_PATH" envDefault:"data/friend-read.db"`
	MetricsAddr        string        `env:"CHIRPER_PROJECTOR_METRICS_ADDR"`
	PollInterval       time.Duration `env:"CHIRPER_PROJECTOR_POLL_INTERVAL" envDefault:"500ms"`
	BatchSize          int           `env:"CHIRPER_PROJECTOR_BATCH_SIZE" envDefault:"100"`
	RetryBackoff       time.Duration `env:"CHIRPER_PROJECTOR_RETRY_BACKOFF" envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.FriendEventsDBPath, "friend-events-db-path", cfg.FriendEventsDBPath, "The friend event journal SQLite path")
	fs.StringVar(&cfg.FriendReadDBPath, "friend-read-db-path", cfg.FriendReadDBPath, "The friend read-side SQLite path")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "The metrics listen address (empty disables)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Event tap poll interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Events read from the tap per page")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Pause before retrying a failed apply")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the projector worker and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProjector, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	events, err := friendsqlite.OpenEvents(cfg.FriendEventsDBPath)
	if err != nil {
		return fmt.Errorf("open friend event store: %w", err)
	}
	defer func() { _ = events.Close() }()

	projections, err := friendsqlite.OpenProjections(cfg.FriendReadDBPath)
	if err != nil {
		return fmt.Errorf("open friend read store: %w", err)
	}
	defer func() { _ = projections.Close() }()

	metrics.StartServer(cfg.MetricsAddr)

	processor, err := projection.NewProcessor(events, projections,
		projection.WithPollInterval(cfg.PollInterval),
		projection.WithBatchSize(cfg.BatchSize),
		projection.WithRetryBackoff(cfg.RetryBackoff),
	)
	if err != nil {
		return fmt.Errorf("create processor: %w", err)
	}

	log.Printf("projector tailing %s into %s", cfg.FriendEventsDBPath, cfg.FriendReadDBPath)
	if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run processor: %w", err)
	}
	return nil
}
