package main

import (
	"context"
	"fmt"
	"time"

	"BotSpectra/internal/config"
	"BotSpectra/internal/logging"
	"BotSpectra/internal/pipeline"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		duration     int
		iface        string
		modelName    string
		stageTimeout time.Duration
		endpoints    pipeline.Endpoints
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full gather-analyze-visualize pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New("pipeline", cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := pipeline.NewClient(endpoints, cfg.HTTP.Token, logger)

			// The gather stage needs the capture duration on top of the timeout.
			gatherCtx, cancel := context.WithTimeout(cmd.Context(), stageTimeout+time.Duration(duration)*time.Second)
			gathered, err := client.Gather(gatherCtx, duration, iface)
			cancel()
			if err != nil {
				return err
			}
			fmt.Printf("gathered %d packets into %d flows (%s)\n", gathered.Packets, gathered.Flows, gathered.SummaryPath)

			analyzeCtx, cancel := context.WithTimeout(cmd.Context(), stageTimeout)
			analyzed, err := client.Analyze(analyzeCtx, gathered.SummaryPath, modelName)
			cancel()
			if err != nil {
				return err
			}
			fmt.Printf("run %s: %d/%d flows flagged as botnet (%.1f%%)\n",
				analyzed.RunID, analyzed.Botnet, analyzed.Flows, 100*analyzed.BotnetRatio)

			visualizeCtx, cancel := context.WithTimeout(cmd.Context(), stageTimeout)
			loaded, err := client.Visualize(visualizeCtx, analyzed.PredictionsPath)
			cancel()
			if err != nil {
				return err
			}
			fmt.Printf("dashboard loaded %d flows from %s\n", loaded.Flows, loaded.Source)
			return nil
		},
	}

	cmd.Flags().IntVar(&duration, "duration", 60, "capture duration in seconds")
	cmd.Flags().StringVar(&iface, "interface", "", "capture interface (default: gatherer's configured interface)")
	cmd.Flags().StringVar(&modelName, "model", "", "detection model (default: analyzer's configured model)")
	cmd.Flags().DurationVar(&stageTimeout, "stage-timeout", 2*time.Minute, "timeout per pipeline stage")
	cmd.Flags().StringVar(&endpoints.Gatherer, "gatherer-url", "http://localhost:8000", "gatherer base URL")
	cmd.Flags().StringVar(&endpoints.Analyzer, "analyzer-url", "http://localhost:8001", "analyzer base URL")
	cmd.Flags().StringVar(&endpoints.Visualizer, "visualizer-url", "http://localhost:8002", "visualizer base URL")
	return cmd
}
