package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"BotSpectra/internal/capture"
	"BotSpectra/internal/config"
	"BotSpectra/internal/engine/flow"
	"BotSpectra/internal/events"
	"BotSpectra/internal/gatherer"
	"BotSpectra/internal/logging"
	"BotSpectra/internal/server"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New("gatherer", cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.NewPublisher(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("failed to connect to event bus", zap.Error(err))
		}
		defer publisher.Close()
	}

	capturer := capture.New(cfg.Gatherer.SnapshotLen, cfg.Gatherer.Promiscuous, logger)
	builder := flow.NewBuilder(flow.Config{
		IdleTimeout: time.Duration(cfg.Gatherer.IdleTimeout) * time.Second,
		MinPackets:  2,
		NumWorkers:  cfg.Gatherer.NumWorkers,
	}, logger)

	svc := gatherer.New(cfg, capturer, builder, publisher, logger)

	srv := &http.Server{
		Addr:    cfg.Gatherer.ListenAddr,
		Handler: svc.Router(),
	}
	if err := server.Run(srv, logger); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
}
