package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/castlens/castlens/internal/config"
	"github.com/castlens/castlens/internal/logging"
	"github.com/castlens/castlens/internal/metrics"
	"github.com/castlens/castlens/internal/scorecache"
	"github.com/castlens/castlens/internal/server"
	"github.com/castlens/castlens/internal/store"
	"github.com/castlens/castlens/internal/upstream/neynar"
	"github.com/castlens/castlens/internal/upstream/talent"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "CASTLENS", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	storeLogger := logger.With(slog.String("agent", "store_factory"))
	recordStore, storeBackend := buildStore(ctx, storeLogger, cfg.Server.Store)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := recordStore.Close(shutdownCtx); err != nil {
			logger.Error("store shutdown failed", slog.Any("error", err))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	talentClient := talent.New(talent.Config{
		BaseURL:       cfg.Talent.BaseURL,
		APIKey:        cfg.Talent.APIKey,
		AccountSource: cfg.Talent.AccountSource,
	}, nil, logger, metricsRecorder)
	if err := talentClient.Validate(); err != nil {
		logger.Warn("talent client not fully configured", slog.Any("error", err))
	}

	neynarClient := neynar.New(neynar.Config{
		BaseURL:     cfg.Neynar.BaseURL,
		APIKey:      cfg.Neynar.APIKey,
		SearchLimit: cfg.Neynar.SearchLimit,
	}, nil, logger, metricsRecorder)

	scores := scorecache.New(scorecache.Config{
		Store:   recordStore,
		Expiry:  cfg.Cache.Expiry(),
		Logger:  logger,
		Metrics: metricsRecorder,
	})

	handler := server.NewHandler(scores, talentClient.FetchProfile, neynarClient, storeBackend, logger)
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())
	mux.Handle("/", handler)

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildStore constructs the configured record store, falling back to
// the in-memory backend when the configured one cannot be reached. The
// returned backend name reflects what actually came up.
func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Store) (store.Store, string) {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		if logger != nil {
			logger.Info("using memory record store")
		}
		return store.NewMemory(), "memory"
	case "redis":
		redisStore, err := store.NewRedis(store.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: store.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			if logger != nil {
				logger.Error("redis store initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory store")
			}
			return store.NewMemory(), "memory"
		}
		if logger != nil {
			logger.Info("using redis record store", slog.String("address", cfg.Redis.Address))
		}
		return redisStore, "redis"
	case "postgres":
		pgStore, err := store.NewPostgres(ctx, store.PostgresConfig{
			Host:         cfg.Postgres.Host,
			Port:         cfg.Postgres.Port,
			User:         cfg.Postgres.User,
			Password:     cfg.Postgres.Password,
			Database:     cfg.Postgres.Database,
			SSLInsecure:  cfg.Postgres.SSLInsecure,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		})
		if err != nil {
			if logger != nil {
				logger.Error("postgres store initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory store")
			}
			return store.NewMemory(), "memory"
		}
		if logger != nil {
			logger.Info("using postgres record store", slog.String("host", cfg.Postgres.Host))
		}
		return pgStore, "postgres"
	default:
		if logger != nil {
			logger.Warn("unsupported store backend, defaulting to memory", slog.String("backend", cfg.Backend))
		}
		return store.NewMemory(), "memory"
	}
}
