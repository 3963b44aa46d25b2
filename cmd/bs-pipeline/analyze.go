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

func newAnalyzeCmd() *cobra.Command {
	var (
		file        string
		modelName   string
		timeout     time.Duration
		analyzerURL string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score an existing flow summary through the analyzer",
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

			client := pipeline.NewClient(pipeline.Endpoints{Analyzer: analyzerURL}, cfg.HTTP.Token, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := client.Analyze(ctx, file, modelName)
			if err != nil {
				return err
			}
			fmt.Printf("run %s: %d/%d flows flagged as botnet (%.1f%%), predictions in %s\n",
				result.RunID, result.Botnet, result.Flows, 100*result.BotnetRatio, result.PredictionsPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "flow summary to analyze (default: shared flows_summary.csv)")
	cmd.Flags().StringVar(&modelName, "model", "", "detection model (default: analyzer's configured model)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	cmd.Flags().StringVar(&analyzerURL, "analyzer-url", "http://localhost:8001", "analyzer base URL")
	return cmd
}
