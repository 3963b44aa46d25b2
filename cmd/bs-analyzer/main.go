package main

import (
	"flag"
	"log"
	"net/http"

	"BotSpectra/internal/alerting"
	"BotSpectra/internal/analyzer"
	"BotSpectra/internal/config"
	"BotSpectra/internal/events"
	"BotSpectra/internal/logging"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/clickhouse"

	// Registered detection models.
	_ "BotSpectra/internal/ml/gboost"
	_ "BotSpectra/internal/ml/iforest"
	_ "BotSpectra/internal/ml/kmeans"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New("analyzer", cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	var store model.PredictionWriter
	if cfg.ClickHouse.Enabled {
		writer, err := clickhouse.NewWriter(cfg.ClickHouse, logger)
		if err != nil {
			logger.Fatal("failed to connect to warehouse", zap.Error(err))
		}
		defer writer.Close()
		store = writer
	}

	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.NewPublisher(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("failed to connect to event bus", zap.Error(err))
		}
		defer publisher.Close()
	}

	var notifier model.Notifier
	if cfg.Alerter.Enabled && cfg.Alerter.SMTP.Host != "" {
		notifier = alerting.NewEmailNotifier(cfg.Alerter.SMTP)
	}
	alerter := alerting.New(cfg.Alerter, notifier, logger)

	svc := analyzer.New(cfg, store, publisher, alerter, logger)

	srv := &http.Server{
		Addr:    cfg.Analyzer.ListenAddr,
		Handler: svc.Router(),
	}
	if err := server.Run(srv, logger); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
}
