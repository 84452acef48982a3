package config

import "time"

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	LockLocal = "local"
	LockMongo = "mongo"
)

const (
	DefaultStoreBackend = StoreMemory
	DefaultLockBackend  = LockLocal

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "campsite"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultCampsiteID       = "campsite"
	DefaultTimeZone         = "UTC"
	DefaultMaxStayDays      = 3
	DefaultMinLeadDays      = 1
	DefaultMaxAdvanceMonths = 1

	DefaultLockTTL          = 10 * time.Second
	DefaultLockPollInterval = 25 * time.Millisecond

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 64 * 1024 // 64KB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultReservationEventsTopic = "campsite.reservations"
	DefaultAuditConsumerGroup     = "campsite-reservation-audit"

	DefaultPaginationLimit = 100
)
