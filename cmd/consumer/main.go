package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/repository"
)

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

	lg = lg.Named("audit_consumer")
	lg.Info("Starting Kafka consumer",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.AuditTopic),
		zap.String("group_id", cfg.Kafka.GroupID),
	)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Topic:          cfg.Kafka.AuditTopic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		lg.Info("Closing Kafka reader")
		if err := r.Close(); err != nil {
			lg.Error("Error closing Kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				lg.Info("Shutdown signal received, stopping consumer")
				return
			}
			lg.Error("Error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		fields := []zap.Field{
			zap.Time("timestamp", m.Time),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.ByteString("key", m.Key),
		}

		var payload repository.AuditLogPayload
		if err := json.Unmarshal(m.Value, &payload); err != nil {
			lg.Warn("Undecodable audit message", append(fields, zap.ByteString("value", m.Value), zap.Error(err))...)
			continue
		}

		fields = append(fields,
			zap.Int64("audit_id", payload.AuditID),
			zap.String("action", payload.Action),
			zap.String("entity_type", payload.EntityType),
			zap.String("description", payload.Description),
			zap.Time("occurred_at", payload.OccurredAt),
		)
		if payload.ActorUserID != nil {
			fields = append(fields, zap.Int64("actor_user_id", *payload.ActorUserID))
		}
		if payload.DonationID != nil {
			fields = append(fields, zap.Int64("donation_id", *payload.DonationID))
		}
		if len(payload.Details) > 0 {
			fields = append(fields, zap.ByteString("details", payload.Details))
		}
		lg.Info("Audit entry received", fields...)
	}
}
