package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLateFeePerDay         = "LATE_FEE_PER_DAY"
	EnvBorrowDurationDays    = "BORROW_DEFAULT_DURATION_DAYS"
	EnvMaxBorrowDurationDays = "BORROW_MAX_DURATION_DAYS"
	EnvMaxActiveBorrows      = "BORROW_MAX_ACTIVE"
	EnvBookLockTTL           = "BOOK_LOCK_TTL"

	EnvSessionTTL = "SESSION_TTL"
	EnvBcryptCost = "BCRYPT_COST"

	EnvEventPublishTimeout = "EVENT_PUBLISH_TIMEOUT"
	EnvNotifierGroup       = "NOTIFIER_CONSUMER_GROUP"
)
