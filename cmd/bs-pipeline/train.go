package main

import (
	"fmt"

	"BotSpectra/internal/ml"
	"BotSpectra/internal/ml/preprocess"
	"BotSpectra/internal/model"
	"BotSpectra/internal/storage/csvstore"

	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		file      string
		modelName string
		dir       string
		labeled   bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a detection model from a flow table",
		Long: `Train fits a model on a flow summary and writes its snapshot to the
model directory. Unsupervised models train on a plain flow summary; with
--labeled the input is a predictions-format table whose label column is
used as ground truth, which supervised models require.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			clf, err := ml.New(modelName)
			if err != nil {
				return err
			}

			var flows []model.FlowRecord
			var labels []float64
			if labeled {
				preds, err := csvstore.ReadPredictions(file)
				if err != nil {
					return err
				}
				flows = make([]model.FlowRecord, len(preds))
				labels = make([]float64, len(preds))
				for i, p := range preds {
					flows[i] = p.Flow
					if p.Label == model.LabelBotnet {
						labels[i] = 1
					}
				}
			} else {
				flows, err = csvstore.ReadFlowSummary(file)
				if err != nil {
					return err
				}
			}

			data, err := preprocess.Transform(flows)
			if err != nil {
				return err
			}
			if labeled {
				// Deduplication may have dropped rows; realign the labels.
				labels = realignLabels(flows, data.Rows, labels)
			}

			if err := clf.Fit(data.Matrix, labels); err != nil {
				return fmt.Errorf("training failed: %w", err)
			}

			path, err := ml.SaveToDir(dir, clf)
			if err != nil {
				return err
			}
			fmt.Printf("trained %s on %d flows, snapshot written to %s\n", clf.Name(), len(data.Rows), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input flow table (required)")
	cmd.Flags().StringVar(&modelName, "model", "iforest", "model family to train")
	cmd.Flags().StringVar(&dir, "out", "models", "output directory for model snapshots")
	cmd.Flags().BoolVar(&labeled, "labeled", false, "treat the input as a labeled predictions table")
	cmd.MarkFlagRequired("file")
	return cmd
}

// realignLabels maps the original labels onto the deduplicated rows by
// matching each kept record to its first occurrence in the input.
func realignLabels(original, kept []model.FlowRecord, labels []float64) []float64 {
	firstLabel := make(map[model.FlowRecord]float64, len(original))
	for i, r := range original {
		if _, ok := firstLabel[r]; !ok {
			firstLabel[r] = labels[i]
		}
	}

	out := make([]float64, len(kept))
	for i, r := range kept {
		out[i] = firstLabel[r]
	}
	return out
}
