package events

import (
	"fmt"

	"bookshelf/pkg/kafka"
	kafka_config "bookshelf/pkg/kafka/config"
	kafka_middleware "bookshelf/pkg/kafka/middleware"
	"bookshelf/pkg/logger"
)

// Connect returns the publisher selected by kcfg and a func that releases it.
// With Kafka disabled events are dropped through NopPublisher.
func Connect(kcfg *kafka_config.Config, source string, metrics *kafka_middleware.Metrics, log *logger.Logger) (Publisher, func(), error) {
	if !kcfg.Enabled {
		log.Info("Kafka disabled, domain events will be dropped")
		return NopPublisher{}, func() {}, nil
	}

	producer, err := kafka.NewProducer(kcfg, kcfg.LibraryEventsTopic, kcfg.DLQTopic, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	if kcfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
		if metrics != nil {
			producer.Use(metrics.ProducerMiddleware())
		}
	}

	closeFn := func() {
		if metrics != nil {
			metrics.Report(log)
		}
		if err := producer.Close(); err != nil {
			log.Error("Failed to close kafka producer", "error", err)
			return
		}
		log.Info("Kafka producer closed")
	}

	log.Info("Publishing domain events", "topic", kcfg.LibraryEventsTopic, "source", source)
	return NewKafkaPublisher(producer, source), closeFn, nil
}
