package csvstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"BotSpectra/internal/model"
)

// predictionHeader is the summary header plus the verdict columns the
// visualizer consumes.
var predictionHeader = append(append([]string{}, summaryHeader...), "label", "probability")

// WritePredictions writes the predictions table for a single analysis run.
func WritePredictions(path string, preds []model.Prediction) error {
	rows := make([][]string, 0, len(preds))
	for _, p := range preds {
		row := flowFields(p.Flow)
		row = append(row, p.Label, strconv.FormatFloat(p.Probability, 'f', 6, 64))
		rows = append(rows, row)
	}
	return writeCSV(path, predictionHeader, rows)
}

// ReadPredictions loads a predictions table written by the analyzer.
func ReadPredictions(path string) ([]model.Prediction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open predictions: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("predictions file %s is empty", path)
	}
	if err := checkHeader(rows[0], predictionHeader); err != nil {
		return nil, fmt.Errorf("predictions file %s: %w", path, err)
	}

	preds := make([]model.Prediction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		flow, err := parseFlowRow(row)
		if err != nil {
			return nil, fmt.Errorf("bad row %d in %s: %w", i+2, path, err)
		}
		prob, err := strconv.ParseFloat(row[len(summaryHeader)+1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad probability on row %d in %s: %w", i+2, path, err)
		}
		preds = append(preds, model.Prediction{
			Flow:        flow,
			Label:       row[len(summaryHeader)],
			Probability: prob,
		})
	}
	return preds, nil
}
