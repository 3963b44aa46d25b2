package main

import (
	"flag"
	"log"
	"net/http"

	"BotSpectra/internal/config"
	"BotSpectra/internal/events"
	"BotSpectra/internal/logging"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/clickhouse"
	"BotSpectra/internal/visualizer"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New("visualizer", cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	var querier clickhouse.Querier
	if cfg.ClickHouse.Enabled {
		querier, err = clickhouse.NewQuerier(cfg.ClickHouse)
		if err != nil {
			logger.Fatal("failed to connect to warehouse", zap.Error(err))
		}
	}

	svc := visualizer.New(cfg, querier, logger)

	if cfg.NATS.Enabled {
		subscriber, err := events.NewSubscriber(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("failed to connect to event bus", zap.Error(err))
		}
		defer subscriber.Close()

		err = subscriber.StartVerdicts(func(ev events.Verdict) {
			if _, _, err := svc.LoadPredictions(ev.OutputPath); err != nil {
				logger.Warn("failed to load predictions from verdict event",
					zap.String("path", ev.OutputPath), zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("failed to subscribe to verdicts", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    cfg.Visualizer.ListenAddr,
		Handler: svc.Router(),
	}
	if err := server.Run(srv, logger); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
}
