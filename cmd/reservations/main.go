package main

import (
	"campsite/internal/reservations/handler"
	"campsite/internal/reservations/repository"
	"campsite/internal/reservations/service"
	"campsite/internal/reservations/validator"
	"campsite/pkg/app"
	"campsite/pkg/config"
	"campsite/pkg/kafka"
	kafka_config "campsite/pkg/kafka/config"
	kafka_middleware "campsite/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.UsesMongo() {
		cfg.SetMongo()
	}

	cfg.Log.Info("Starting Reservations service")
	repo := initRepository(cfg)
	events := initEventPublisher(cfg)
	reservationService := service.NewReservationService(repo, initSerializer(cfg), events, cfg)
	reservationValidator := validator.NewReservationValidator(validator.PolicyFromConfig(cfg), cfg.Log)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewReservationHandler(reservationService, reservationValidator, cfg.Log),
		handler.NewHealthHandler(repo, cfg.Log),
	)
	serverApp.OnShutdown(func() {
		if err := events.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.Run()
}

func initRepository(cfg *config.Config) repository.ReservationRepository {
	if cfg.StoreBackend == config.StoreMongo {
		cfg.Log.Info("Using Mongo reservation store", "database", cfg.MongoDatabaseName)
		return repository.NewMongoReservationRepository(cfg)
	}
	cfg.Log.Warn("Using in-memory reservation store, reservations are lost on restart")
	return repository.NewMemoryReservationRepository()
}

// initSerializer picks how writers are serialized. The local serializer is
// only correct with a single replica.
func initSerializer(cfg *config.Config) service.Serializer {
	if cfg.LockBackend == config.LockMongo {
		cfg.Log.Info("Using Mongo reservation lock", "lock_id", cfg.CampsiteID, "ttl", cfg.LockTTL)
		return service.NewMongoSerializer(
			repository.NewReservationLockRepository(cfg),
			cfg.CampsiteID,
			cfg.LockTTL,
			cfg.LockPollInterval,
			cfg.Log,
		)
	}
	return service.NewLocalSerializer()
}

func initEventPublisher(cfg *config.Config) service.EventPublisher {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	if !kafkaCfg.Enabled() {
		cfg.Log.Info("No Kafka brokers configured, reservation events are not published")
		return service.NewNoopEventPublisher()
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.ReservationEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	return service.NewKafkaEventPublisher(producer, ServiceName)
}
