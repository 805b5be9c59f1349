// Package server parses server command flags and launches the chirper API
// runtime.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/chirper/internal/entity"
	entrypoint "github.com/louisbranch/chirper/internal/platform/cmd"
	"github.com/louisbranch/chirper/internal/platform/telemetry/metrics"
	chirpapp "github.com/louisbranch/chirper/internal/services/chirp/app"
	chirpdomain "github.com/louisbranch/chirper/internal/services/chirp/domain"
	"github.com/louisbranch/chirper/internal/services/chirp/pubsub"
	chirpsqlite "github.com/louisbranch/chirper/internal/services/chirp/storage/sqlite"
	friendapp "github.com/louisbranch/chirper/internal/services/friend/app"
	friendsqlite "github.com/louisbranch/chirper/internal/services/friend/storage/sqlite"
	likeapp "github.com/louisbranch/chirper/internal/services/like/app"
	likesqlite "github.com/louisbranch/chirper/internal/services/like/storage/sqlite"
)

// likesLookup adapts the like service onto the timeline's enrichment
// collaborator contract. Chirp uuids are globally unique, so the author id
// in the key is not needed for the lookup.
type likesLookup struct {
	likes *likeapp.Service
}

func (l likesLookup) GetLikes(ctx context.Context, chirpID chirpdomain.ChirpID) ([]string, error) {
	return l.likes.GetLikes(ctx, chirpID.UUID)
}

// Config holds server command configuration.
type Config struct {
	Addr               string        `env:"CHIRPER_SERVER_ADDR" envDefault:":8080"`
	MetricsAddr        string        `env:"CHIRPER_SERVER_METRICS_ADDR"`
	FriendEventsDBPath string        `env:"CHIRPER_FRIEND_EVENTS_DB_PATH" envDefault:"data/friend-events.db"`
	FriendReadDBPath   string        `env:"CHIRPER_FRIEND_READ_DB_PATH" envDefault:"data/friend-read.db"`
	ChirpsDBPath       string        `env:"CHIRPER_CHIRPS_DB_PATH" envDefault:"data/chirps.db"`
	LikesDBPath        string        `env:"CHIRPER_LIKES_DB_PATH" envDefault:"data/likes.db"`
	EntityIdleTTL      time.Duration `env:"CHIRPER_ENTITY_IDLE_TTL" envDefault:"2m"`
	ShutdownTimeout    time.Duration `env:"CHIRPER_SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP API listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "The metrics listen address (empty disables)")
	fs.StringVar(&cfg.FriendEventsDBPath, "friend-events-db-path", cfg.FriendEventsDBPath, "The friend event journal SQLite path")
	fs.StringVar(&cfg.FriendReadDBPath, "friend-read-db-path", cfg.FriendReadDBPath, "The friend read-side SQLite path")
	fs.StringVar(&cfg.ChirpsDBPath, "chirps-db-path", cfg.ChirpsDBPath, "The chirp history SQLite path")
	fs.StringVar(&cfg.LikesDBPath, "likes-db-path", cfg.LikesDBPath, "The like journal SQLite path")
	fs.DurationVar(&cfg.EntityIdleTTL, "entity-idle-ttl", cfg.EntityIdleTTL, "Idle time before an entity worker retires")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful HTTP shutdown timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server runtime and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	friendEvents, err := friendsqlite.OpenEvents(cfg.FriendEventsDBPath)
	if err != nil {
		return fmt.Errorf("open friend event store: %w", err)
	}
	defer func() { _ = friendEvents.Close() }()

	friendRead, err := friendsqlite.OpenProjections(cfg.FriendReadDBPath)
	if err != nil {
		return fmt.Errorf("open friend read store: %w", err)
	}
	defer func() { _ = friendRead.Close() }()

	chirps, err := chirpsqlite.Open(cfg.ChirpsDBPath)
	if err != nil {
		return fmt.Errorf("open chirp store: %w", err)
	}
	defer func() { _ = chirps.Close() }()

	likeEvents, err := likesqlite.Open(cfg.LikesDBPath)
	if err != nil {
		return fmt.Errorf("open like store: %w", err)
	}
	defer func() { _ = likeEvents.Close() }()

	idleTTL := entity.WithIdleTTL(cfg.EntityIdleTTL)

	friends, err := friendapp.New(friendEvents, friendEvents, friendRead, idleTTL)
	if err != nil {
		return fmt.Errorf("create friend service: %w", err)
	}
	defer friends.Close()

	likes, err := likeapp.New(likeEvents, idleTTL)
	if err != nil {
		return fmt.Errorf("create like service: %w", err)
	}
	defer likes.Close()

	timeline, err := chirpapp.New(chirps, pubsub.NewMemoryBroker(), likesLookup{likes: likes})
	if err != nil {
		return fmt.Errorf("create timeline service: %w", err)
	}

	metrics.StartServer(cfg.MetricsAddr)

	api := &API{Friends: friends, Timeline: timeline, Likes: likes}
	httpServer := &http.Server{Addr: cfg.Addr, Handler: api.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
