package main

import (
	"fmt"

	"BotSpectra/internal/ml"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available model families",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range ml.Names() {
				fmt.Println(name)
			}
		},
	}
}
