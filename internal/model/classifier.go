package model

// Classifier is the common interface for all detection models. Supervised
// models require labels during Fit; unsupervised models ignore them.
type Classifier interface {
	// Fit trains the model. data is a row-major feature matrix, labels holds
	// 0 (benign) / 1 (botnet) per row and may be nil for unsupervised models.
	Fit(data [][]float64, labels []float64) error

	// Predict returns a verdict per input row.
	Predict(data [][]float64) ([]Verdict, error)

	// Name returns the registry name of the model.
	Name() string

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}
