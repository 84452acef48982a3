package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"campsite/internal/audit"
	"campsite/pkg/config"
	"campsite/pkg/kafka"
	kafka_config "campsite/pkg/kafka/config"
	kafka_middleware "campsite/pkg/kafka/middleware"
)

const ServiceName = "reservation-audit"

func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	if !kafkaCfg.Enabled() {
		cfg.Log.Fatal("KAFKA_BROKERS is required for the audit consumer")
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	recorder := audit.NewRecorder(audit.NewMongoEventStore(cfg), cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.ReservationEventsTopic, cfg.AuditConsumerGroup, recorder.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Starting reservation audit consumer",
		"topic", cfg.ReservationEventsTopic,
		"group_id", cfg.AuditConsumerGroup,
	)
	runErr := consumer.Start(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		cfg.Log.Error("Audit consumer stopped with error", "error", runErr)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Reservation audit consumer stopped")

	// A message left uncommitted is redelivered once the process is restarted.
	if errors.Is(runErr, kafka.ErrMessageNotHandled) {
		stop()
		cfg.GracefulShutdown()
		os.Exit(1)
	}
}
