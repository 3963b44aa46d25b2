// bs-pipeline is the operator CLI: it drives the gather, analyze, and
// visualize services over HTTP and trains detection models offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Registered detection models.
	_ "BotSpectra/internal/ml/gboost"
	_ "BotSpectra/internal/ml/iforest"
	_ "BotSpectra/internal/ml/kmeans"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "bs-pipeline",
		Short:         "Drive the botnet detection pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the configuration file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newTrainCmd())
	root.AddCommand(newFlowsCmd())
	root.AddCommand(newModelsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
