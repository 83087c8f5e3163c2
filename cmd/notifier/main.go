package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookshelf/internal/notifier"
	"bookshelf/pkg/config"
	"bookshelf/pkg/kafka"
	kafka_config "bookshelf/pkg/kafka/config"
	kafka_middleware "bookshelf/pkg/kafka/middleware"
)

const (
	ServiceName    = "notifier"
	reportInterval = time.Minute
)

func main() {
	cfg := config.Load(ServiceName)

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)
	if !kcfg.Enabled {
		cfg.Log.Fatal("Notifier requires Kafka, set KAFKA_ENABLED=true")
	}

	n := notifier.New(notifier.NewLogSink(cfg.Log), cfg.Log)
	consumer, err := kafka.NewConsumer(kcfg, kcfg.LibraryEventsTopic, cfg.NotifierGroup, kcfg.DLQTopic, n.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kcfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go notifier.ReportEvery(ctx, reportInterval, func() { metrics.Report(cfg.Log) })

	cfg.Log.Info("Starting notifier", "topic", kcfg.LibraryEventsTopic, "group", cfg.NotifierGroup)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	metrics.Report(cfg.Log)
	cfg.Log.Info("Notifier stopped")
}
