package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/account"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/simulation"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type store interface {
	lifecycle.Store
	account.Store
	server.Reports
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config init error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("Service stopped with error", zap.Error(err))
	}
	lg.Info("Service gracefully stopped")
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	var stg store
	switch cfg.StorageDriver {
	case config.DriverMemory:
		lg.Warn("Using in-memory storage, data is lost on restart")
		stg = storage.NewMemoryStorage()
	case config.DriverPostgres:
		database, err := db.NewDb(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("database init: %w", err)
		}
		defer database.Close()

		if err := db.EnsureSchema(ctx, database); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		outboxRepo := postgresql.NewOutboxTaskRepo()
		pending := cache.NewPendingCache(lg)
		pgStorage := storage.NewStorage(database, storage.Repositories{
			Users:      postgresql.NewUserRepo(database),
			Profiles:   postgresql.NewProfileRepo(database),
			Donations:  postgresql.NewDonationRepo(database),
			Receptions: postgresql.NewReceptionRepo(database),
			Tracking:   postgresql.NewTrackingRepo(database),
			Audit:      postgresql.NewAuditRepo(database),
			Sessions:   postgresql.NewSessionRepo(database),
			Outbox:     outboxRepo,
		},
			storage.WithCache(pending),
			storage.WithAuditTopic(cfg.Kafka.AuditTopic),
			storage.WithLogger(lg),
		)
		if err := pending.LoadInitialData(ctx, pgStorage); err != nil {
			lg.Warn("Pending donation cache not loaded, reads go to the database", zap.Error(err))
		}
		stg = pgStorage

		var producer kafka.Producer
		if cfg.Kafka.Enabled {
			producer = kafka.NewKafkaProducer(cfg.Kafka.Brokers, lg)
		} else {
			producer = kafka.NewConsoleProducer(lg)
		}
		publisher := kafka.NewPublisher(database, outboxRepo, producer, kafka.PublisherConfig{
			PollInterval:    cfg.Outbox.PollInterval,
			BatchSize:       cfg.Outbox.BatchSize,
			MaxAttempts:     cfg.Outbox.MaxAttempts,
			ProcessingLease: cfg.Outbox.ProcessingLease,
		}, lg)
		g.Go(func() error {
			publisher.Run(gctx)
			publisher.Shutdown()
			return nil
		})
	}

	catalogue := simulation.DefaultCatalogue()
	if cfg.Delivery.CatalogPath != "" {
		loaded, err := simulation.LoadCatalogue(cfg.Delivery.CatalogPath)
		if err != nil {
			return fmt.Errorf("load simulation catalogue: %w", err)
		}
		catalogue = loaded
	}
	seed := cfg.Delivery.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	engine := lifecycle.NewEngine(stg,
		simulation.NewRandomResolver(catalogue, seed),
		simulation.NewRandomNarrator(catalogue, seed+1),
		lifecycle.WithThreshold(cfg.Delivery.Threshold),
		lifecycle.WithLogger(lg),
	)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, nil)
	accounts := account.NewService(stg, tokens,
		account.WithSessionTTL(cfg.Auth.SessionTTL, cfg.Auth.RememberTTL),
		account.WithLogger(lg),
	)

	srv := server.New(engine, accounts, tokens, stg,
		server.WithLogger(lg),
		server.WithAccessLog(server.NewAccessLogManager(
			cfg.AccessLog.Workers,
			cfg.AccessLog.BatchSize,
			cfg.AccessLog.FlushTimeout,
			lg,
		)),
	)
	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPPort)
	})

	health := grpcserver.NewServer(lg)
	g.Go(func() error {
		return health.Run(gctx, cfg.GRPCPort)
	})

	lg.Info("Service started",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("storage", cfg.StorageDriver),
		zap.Duration("delivery_threshold", cfg.Delivery.Threshold),
	)

	return g.Wait()
}
