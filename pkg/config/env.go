package config

const (
	EnvStoreBackend = "STORE_BACKEND"
	EnvLockBackend  = "LOCK_BACKEND"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvCampsiteID       = "CAMPSITE_ID"
	EnvTimeZone         = "TIME_ZONE"
	EnvMaxStayDays      = "MAX_STAY_DAYS"
	EnvMinLeadDays      = "MIN_LEAD_DAYS"
	EnvMaxAdvanceMonths = "MAX_ADVANCE_MONTHS"

	EnvLockTTL          = "LOCK_TTL"
	EnvLockPollInterval = "LOCK_POLL_INTERVAL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvReservationEventsTopic = "RESERVATION_EVENTS_TOPIC"
	EnvAuditConsumerGroup     = "AUDIT_CONSUMER_GROUP"
)
