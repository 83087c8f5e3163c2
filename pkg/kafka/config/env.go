package kafka_config

import (
	"sort"
	"strings"
)

// Library event stream.
const (
	EnvKafkaEnabled            = "KAFKA_ENABLED"
	EnvKafkaBrokers            = "KAFKA_BROKERS"
	EnvKafkaLibraryEventsTopic = "KAFKA_LIBRARY_EVENTS_TOPIC"
	EnvKafkaDLQTopic           = "KAFKA_DLQ_TOPIC"
	EnvKafkaEnableMiddleware   = "KAFKA_ENABLE_MIDDLEWARE"
)

// Publisher side, used by the library service and libctl import-books.
const (
	EnvKafkaProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"
	EnvKafkaProducerAsync        = "KAFKA_PRODUCER_ASYNC"
)

// Notifier side.
const (
	EnvKafkaConsumerStartOffset       = "KAFKA_CONSUMER_START_OFFSET"
	EnvKafkaConsumerMinBytes          = "KAFKA_CONSUMER_MIN_BYTES"
	EnvKafkaConsumerMaxBytes          = "KAFKA_CONSUMER_MAX_BYTES"
	EnvKafkaConsumerMaxWait           = "KAFKA_CONSUMER_MAX_WAIT"
	EnvKafkaConsumerCommitInterval    = "KAFKA_CONSUMER_COMMIT_INTERVAL"
	EnvKafkaConsumerHeartbeatInterval = "KAFKA_CONSUMER_HEARTBEAT_INTERVAL"
	EnvKafkaConsumerSessionTimeout    = "KAFKA_CONSUMER_SESSION_TIMEOUT"
	EnvKafkaConsumerRebalanceTimeout  = "KAFKA_CONSUMER_REBALANCE_TIMEOUT"
	EnvKafkaConsumerMaxRetries        = "KAFKA_CONSUMER_MAX_RETRIES"
)

const envPrefix = "KAFKA_"

var knownEnv = map[string]bool{
	EnvKafkaEnabled:                   true,
	EnvKafkaBrokers:                   true,
	EnvKafkaLibraryEventsTopic:        true,
	EnvKafkaDLQTopic:                  true,
	EnvKafkaEnableMiddleware:          true,
	EnvKafkaProducerMaxAttempts:       true,
	EnvKafkaProducerBatchTimeout:      true,
	EnvKafkaProducerRequireAcks:       true,
	EnvKafkaProducerCompression:       true,
	EnvKafkaProducerAsync:             true,
	EnvKafkaConsumerStartOffset:       true,
	EnvKafkaConsumerMinBytes:          true,
	EnvKafkaConsumerMaxBytes:          true,
	EnvKafkaConsumerMaxWait:           true,
	EnvKafkaConsumerCommitInterval:    true,
	EnvKafkaConsumerHeartbeatInterval: true,
	EnvKafkaConsumerSessionTimeout:    true,
	EnvKafkaConsumerRebalanceTimeout:  true,
	EnvKafkaConsumerMaxRetries:        true,
}

// UnknownEnv returns the KAFKA_* names in environ (os.Environ format) that no
// setting reads, so a misspelled KAFKA_BROKER does not silently fall back to
// localhost.
func UnknownEnv(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) && !knownEnv[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}
