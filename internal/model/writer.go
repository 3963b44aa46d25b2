package model

import "context"

// PredictionWriter defines a generic interface for persisting prediction runs.
type PredictionWriter interface {
	// WritePredictions persists the predictions of a single analysis run.
	WritePredictions(ctx context.Context, result AnalysisResult, preds []Prediction) error
}
