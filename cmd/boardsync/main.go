package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/realtime"
	"github.com/gosuda/boardsync/internal/server"
	"github.com/gosuda/boardsync/internal/store/cache"
	natsstore "github.com/gosuda/boardsync/internal/store/nats"
	"github.com/gosuda/boardsync/internal/store/postgres"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		if err := hashKey(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

// hashKey prints the BOARDSYNC_ADMIN_API_KEY_HASH value for a raw key given
// as the only argument or on stdin.
func hashKey(args []string, in io.Reader, out io.Writer) error {
	var raw string
	switch len(args) {
	case 0:
		b, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("hash-key: reading stdin: %w", err)
		}
		raw = strings.TrimSpace(string(b))
	case 1:
		raw = args[0]
	default:
		return errors.New("usage: boardsync hash-key [key]")
	}

	encoded, err := auth.HashAPIKey(raw)
	if err != nil {
		return fmt.Errorf("hash-key: %w", err)
	}
	_, err = fmt.Fprintln(out, encoded)
	return err
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// clusterBus is a realtime.ClusterBus that owns a connection to close.
type clusterBus interface {
	realtime.ClusterBus
	Close() error
}

type redisBus struct {
	*redisstore.Bus
	ps *redisstore.PubSub
}

func (b redisBus) Close() error { return b.ps.Close() }

func openBus(ctx context.Context, cfg *config.Config) (clusterBus, error) {
	switch cfg.Cluster.Driver {
	case config.ClusterRedis:
		ps, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return redisBus{Bus: ps.Bus(redisstore.ClusterChannel(cfg.Cluster.Channel)), ps: ps}, nil
	case config.ClusterNATS:
		return natsstore.Connect(ctx, cfg.NATS.URL, natsstore.ClusterSubject(cfg.Cluster.Channel), "boardsync-"+cfg.Cluster.NodeID)
	default:
		return nil, nil
	}
}

// startHub detaches the hub from ctx. The signal must not stop the sweeper or
// the cluster subscription; hub.Shutdown tears those down after the server
// has drained.
func startHub(ctx context.Context, hub *realtime.Hub) error {
	return hub.Start(context.WithoutCancel(ctx))
}

func run() error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	ctx := context.Background()

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Permission checks run once per recipient per event; cache them briefly.
	var perms realtime.PermissionChecker = store
	if cfg.Hub.PermissionCacheTTL > 0 {
		cached, cacheErr := cache.NewPermissions(store, int64(cfg.Hub.PermissionCacheSize), cfg.Hub.PermissionCacheTTL)
		if cacheErr != nil {
			return cacheErr
		}
		defer cached.Close()
		perms = cached
	}
	if cfg.Auth.SingleUserToken != "" {
		perms = auth.NewSingleUserPermissions(perms)
	}

	bus, err := openBus(ctx, cfg)
	if err != nil {
		return err
	}

	validator := auth.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.SingleUserToken)

	opts := realtime.Options{
		QueueSize:      cfg.Hub.QueueSize,
		SweepInterval:  cfg.Hub.SweepInterval,
		StaleThreshold: cfg.Hub.StaleThreshold,
		NodeID:         cfg.Cluster.NodeID,
	}
	if bus != nil {
		opts.Bus = bus
	}
	if cfg.Auth.PublicSharedBoards {
		opts.ReadTokens = store
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := realtime.NewHub(validator, perms, store, opts)
	if err := startHub(ctx, hub); err != nil {
		if bus != nil {
			_ = bus.Close()
		}
		return err
	}

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, hub, validator, store)

	// The server runs until a signal arrives or it fails to listen; either
	// way the other goroutine drains it.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	runErr := g.Wait()

	hub.Shutdown()
	if bus != nil {
		if closeErr := bus.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("closing cluster bus")
		}
	}
	if runErr != nil {
		return runErr
	}

	log.Info().Msg("stopped")
	return nil
}
