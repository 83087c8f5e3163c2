package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "bookshelf"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 10
	MaxPaginationLimit     = 100

	DefaultLateFeePerDay             = 10
	DefaultBorrowDurationDays        = 14
	DefaultMaxBorrowDurationDays     = 90
	DefaultMaxActiveBorrows          = 5
	DefaultBookLockTTL               = 10 * time.Second
	DefaultSessionTTL                = 24 * time.Hour
	DefaultBcryptCost                = 10
	DefaultEventPublishTimeout       = 5 * time.Second
	DefaultNotifierConsumerGroupName = "bookshelf-notifier"
)
