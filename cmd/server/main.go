package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/creator-xp/internal/config"
	"github.com/creator-xp/internal/discord"
	"github.com/creator-xp/internal/handler"
	"github.com/creator-xp/internal/kafka"
	"github.com/creator-xp/internal/logger"
	"github.com/creator-xp/internal/memstore"
	"github.com/creator-xp/internal/metrics"
	"github.com/creator-xp/internal/postgres"
	"github.com/creator-xp/internal/redis"
	"github.com/creator-xp/internal/service"
	"github.com/creator-xp/internal/worker"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	verbose := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "Maximum time to wait for in-flight requests during shutdown")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Log.Format, cfg.Log.Level, *verbose)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return err
	}
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()

	// Initialize storage
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Initialize the optional Redis name cache
	var names service.NameCache
	if cfg.Redis.Enabled {
		log.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		cache, err := redis.NewNameCache(ctx, &cfg.Redis, log)
		if err != nil {
			log.Warn("failed to connect to Redis, resolving names without cache", "error", err)
		} else {
			defer cache.Close()
			names = cache
		}
	}

	// Initialize the gateway
	gateway, err := discord.New(cfg.Discord, log)
	if err != nil {
		return err
	}

	// Initialize services
	identityService := service.NewIdentityService(store, clock, log)
	orderService := service.NewOrderService(store, store, service.OrderConfig{
		WebhookSecret: cfg.Auth.WebhookSecret,
		XPPerOrder:    cfg.Ledger.XPPerOrder,
	}, clock, log)
	leaderboardService := service.NewLeaderboardService(store, gateway, names, service.NewPublishState(), service.LeaderboardConfig{
		Title:          cfg.Leaderboard.Title,
		PublishSize:    cfg.Leaderboard.PublishSize,
		DefaultLimit:   cfg.Leaderboard.DefaultLimit,
		MaxLimit:       cfg.Leaderboard.MaxLimit,
		ResolveWorkers: cfg.Leaderboard.ResolveWorkers,
	}, log)
	welcomeService := service.NewWelcomeService(gateway, cfg.Discord.WelcomeChannelID, cfg.Discord.WelcomeMessage, log)

	gateway.OnMemberJoin(func(ctx context.Context, memberID string) {
		welcomeService.OnMemberJoin(ctx, memberID)
	})
	if err := gateway.Open(); err != nil {
		return err
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			log.Warn("failed to close discord gateway", "error", err)
		}
	}()
	log.Info("discord gateway connected")

	// Initialize Kafka consumer for relayed webhooks
	if cfg.Kafka.Enabled {
		log.Info("initializing Kafka consumer", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		consumer, err := kafka.NewConsumer(&cfg.Kafka, orderService, log)
		if err != nil {
			log.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
			err := consumer.Start(startCtx)
			startCancel()
			if err != nil {
				log.Warn("Kafka consumer not ready yet, it keeps retrying in the background", "error", err)
			}
			defer func() {
				if err := consumer.Stop(); err != nil {
					log.Error("failed to stop Kafka consumer", "error", err)
				}
			}()
		}
	}

	// Start the periodic refresher
	if cfg.Leaderboard.RefreshInterval > 0 && cfg.Discord.LeaderboardChannelID != "" {
		refresher := worker.NewRefresher(leaderboardService, cfg.Discord.LeaderboardChannelID, cfg.Leaderboard.RefreshInterval, clock, log)
		if err := refresher.Start(ctx); err != nil {
			return fmt.Errorf("starting refresher: %w", err)
		}
		defer func() {
			if err := refresher.Stop(); err != nil {
				log.Error("failed to stop refresher", "error", err)
			}
		}()
	}

	httpHandler := handler.NewHandler(identityService, orderService, leaderboardService, store, handler.Config{
		InternalSecret:       cfg.Auth.InternalSecret,
		LeaderboardChannelID: cfg.Discord.LeaderboardChannelID,
		MaxBodyBytes:         cfg.Server.MaxBodyBytes,
	}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting HTTP server", "port", cfg.Server.Port, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// openStore connects the configured storage driver
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, ledger is lost on restart")
		return memstore.New(), nil
	default:
		log.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(ctx, &cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := repo.RunMigrations(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return repo, nil
	}
}
