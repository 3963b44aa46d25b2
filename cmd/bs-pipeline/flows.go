package main

import (
	"fmt"
	"time"

	"BotSpectra/internal/engine/flow"
	"BotSpectra/internal/logging"
	"BotSpectra/internal/storage/csvstore"
	"BotSpectra/pkg/pcap"

	"github.com/spf13/cobra"
)

func newFlowsCmd() *cobra.Command {
	var (
		pcapPath    string
		out         string
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Derive a flow summary from a pcap file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New("pipeline", "info")
			if err != nil {
				return err
			}
			defer logger.Sync()

			reader, err := pcap.NewReader(pcapPath, logger)
			if err != nil {
				return fmt.Errorf("failed to open pcap: %w", err)
			}
			defer reader.Close()

			packets, err := reader.ReadAll()
			if err != nil {
				return err
			}

			cfg := flow.DefaultConfig()
			cfg.IdleTimeout = idleTimeout
			records := flow.NewBuilder(cfg, logger).Build(packets)

			if err := csvstore.WriteFlowSummary(out, records); err != nil {
				return err
			}
			fmt.Printf("read %d packets, wrote %d flows to %s\n", len(packets), len(records), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&pcapPath, "pcap", "", "input pcap file (required)")
	cmd.Flags().StringVar(&out, "out", "flows_summary.csv", "output flow summary path")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 30*time.Second, "inter-packet gap that splits a conversation")
	cmd.MarkFlagRequired("pcap")
	return cmd
}
