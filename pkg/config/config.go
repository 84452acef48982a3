package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"campsite/pkg/client"
	"campsite/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	StoreBackend string
	LockBackend  string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port     string
	LogLevel string

	CampsiteID       string
	TimeZone         string
	Location         *time.Location
	MaxStayDays      int
	MinLeadDays      int
	MaxAdvanceMonths int

	LockTTL          time.Duration
	LockPollInterval time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ReservationEventsTopic string
	AuditConsumerGroup     string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration for serviceName from the environment (and a
// .env file when present), validates it and logs the result. An invalid
// configuration terminates the process.
func Load(serviceName string) *Config {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg := FromEnv(serviceName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv(serviceName string) *Config {
	cfg := &Config{
		StoreBackend: getEnvStr(EnvStoreBackend, DefaultStoreBackend),
		LockBackend:  getEnvStr(EnvLockBackend, DefaultLockBackend),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		CampsiteID:       getEnvStr(EnvCampsiteID, DefaultCampsiteID),
		TimeZone:         getEnvStr(EnvTimeZone, DefaultTimeZone),
		MaxStayDays:      getEnvNum(EnvMaxStayDays, DefaultMaxStayDays),
		MinLeadDays:      getEnvNum(EnvMinLeadDays, DefaultMinLeadDays),
		MaxAdvanceMonths: getEnvNum(EnvMaxAdvanceMonths, DefaultMaxAdvanceMonths),

		LockTTL:          getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockPollInterval: getEnvDuration(EnvLockPollInterval, DefaultLockPollInterval),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ReservationEventsTopic: getEnvStr(EnvReservationEventsTopic, DefaultReservationEventsTopic),
		AuditConsumerGroup:     getEnvStr(EnvAuditConsumerGroup, DefaultAuditConsumerGroup),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})

	if loc, err := time.LoadLocation(cfg.TimeZone); err == nil {
		cfg.Location = loc
	}

	return cfg
}

func (cfg *Config) UsesMongo() bool {
	return cfg.StoreBackend == StoreMongo || cfg.LockBackend == LockMongo
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.StoreBackend != StoreMemory && cfg.StoreBackend != StoreMongo {
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [%s, %s], got: %s", StoreMemory, StoreMongo, cfg.StoreBackend))
	}
	if cfg.LockBackend != LockLocal && cfg.LockBackend != LockMongo {
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [%s, %s], got: %s", LockLocal, LockMongo, cfg.LockBackend))
	}
	if cfg.StoreBackend == StoreMemory && cfg.LockBackend == LockMongo {
		errors = append(errors, "LockBackend mongo requires StoreBackend mongo")
	}

	if cfg.UsesMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://.+`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}

	if cfg.CampsiteID == "" {
		errors = append(errors, "CampsiteID cannot be empty")
	}
	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("TimeZone must be a valid IANA zone, got: %s", cfg.TimeZone))
	}
	if cfg.MaxStayDays <= 0 {
		errors = append(errors, fmt.Sprintf("MaxStayDays must be positive, got: %d", cfg.MaxStayDays))
	}
	if cfg.MinLeadDays < 0 {
		errors = append(errors, fmt.Sprintf("MinLeadDays cannot be negative, got: %d", cfg.MinLeadDays))
	}
	if cfg.MaxAdvanceMonths <= 0 {
		errors = append(errors, fmt.Sprintf("MaxAdvanceMonths must be positive, got: %d", cfg.MaxAdvanceMonths))
	}

	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}
	if cfg.LockPollInterval <= 0 || cfg.LockPollInterval >= cfg.LockTTL {
		errors = append(errors, fmt.Sprintf("LockPollInterval must be positive and shorter than LockTTL, got: %s", cfg.LockPollInterval))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_backend", cfg.StoreBackend,
		"lock_backend", cfg.LockBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"campsite_id", cfg.CampsiteID,
		"time_zone", cfg.TimeZone,
		"max_stay_days", cfg.MaxStayDays,
		"min_lead_days", cfg.MinLeadDays,
		"max_advance_months", cfg.MaxAdvanceMonths,
		"lock_ttl", cfg.LockTTL,
		"lock_poll_interval", cfg.LockPollInterval,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"reservation_events_topic", cfg.ReservationEventsTopic,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
