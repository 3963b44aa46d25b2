// Package gboost implements gradient-boosted decision stumps with logistic
// loss: a small supervised classifier for labeled flow datasets.
package gboost

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"sort"
	"sync"

	"BotSpectra/internal/ml"
	"BotSpectra/internal/model"
)

const Name = "gboost"

func init() {
	ml.Register(Name, func() model.Classifier { return New() })
}

// stump is one boosting round: a single split with a leaf value added to the
// running log-odds on each side. Fields are exported for gob serialization.
type stump struct {
	Feature int
	Split   float64
	Left    float64
	Right   float64
}

// Model is a gradient boosting classifier over decision stumps.
type Model struct {
	mu sync.RWMutex

	rounds       int
	learningRate float64
	candidates   int // candidate split thresholds evaluated per feature
	lambda       float64

	base    float64 // initial log-odds from the class balance
	stumps  []stump
	trained bool
}

// Option configures a Model.
type Option func(*Model)

// WithRounds sets the number of boosting rounds.
func WithRounds(n int) Option {
	return func(m *Model) { m.rounds = n }
}

// WithLearningRate sets the shrinkage applied to each stump.
func WithLearningRate(r float64) Option {
	return func(m *Model) { m.learningRate = r }
}

// New creates a Model with the given options.
func New(opts ...Option) *Model {
	m := &Model{
		rounds:       100,
		learningRate: 0.1,
		candidates:   16,
		lambda:       1.0,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the registry name.
func (m *Model) Name() string { return Name }

// Fit trains the booster. labels must hold one 0/1 value per row.
func (m *Model) Fit(data [][]float64, labels []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if len(labels) != len(data) {
		return errors.New("gboost requires one label per training row")
	}

	var positives float64
	for _, y := range labels {
		if y != 0 && y != 1 {
			return errors.New("labels must be 0 or 1")
		}
		positives += y
	}
	// Clamp the prior away from degenerate all-one / all-zero datasets.
	prior := math.Min(math.Max(positives/float64(len(labels)), 1e-4), 1-1e-4)
	m.base = math.Log(prior / (1 - prior))

	// Running log-odds per sample.
	scores := make([]float64, len(data))
	for i := range scores {
		scores[i] = m.base
	}

	grad := make([]float64, len(data))
	hess := make([]float64, len(data))
	m.stumps = make([]stump, 0, m.rounds)

	for round := 0; round < m.rounds; round++ {
		for i := range data {
			p := sigmoid(scores[i])
			grad[i] = p - labels[i]
			hess[i] = p * (1 - p)
		}

		best, ok := m.bestStump(data, grad, hess)
		if !ok {
			break // No split improves the loss any further.
		}

		best.Left *= m.learningRate
		best.Right *= m.learningRate
		m.stumps = append(m.stumps, best)

		for i, row := range data {
			if row[best.Feature] < best.Split {
				scores[i] += best.Left
			} else {
				scores[i] += best.Right
			}
		}
	}

	if len(m.stumps) == 0 {
		return errors.New("training produced no usable splits")
	}

	m.trained = true
	return nil
}

// bestStump searches candidate thresholds on every feature for the split with
// the highest gain and returns its Newton-step leaf values.
func (m *Model) bestStump(data [][]float64, grad, hess []float64) (stump, bool) {
	var totalG, totalH float64
	for i := range grad {
		totalG += grad[i]
		totalH += hess[i]
	}
	rootScore := totalG * totalG / (totalH + m.lambda)

	var best stump
	bestGain := 1e-9
	found := false

	numFeatures := len(data[0])
	for feature := 0; feature < numFeatures; feature++ {
		for _, split := range m.splitCandidates(data, feature) {
			var leftG, leftH float64
			for i, row := range data {
				if row[feature] < split {
					leftG += grad[i]
					leftH += hess[i]
				}
			}
			rightG := totalG - leftG
			rightH := totalH - leftH

			gain := leftG*leftG/(leftH+m.lambda) +
				rightG*rightG/(rightH+m.lambda) - rootScore
			if gain > bestGain {
				bestGain = gain
				best = stump{
					Feature: feature,
					Split:   split,
					Left:    -leftG / (leftH + m.lambda),
					Right:   -rightG / (rightH + m.lambda),
				}
				found = true
			}
		}
	}
	return best, found
}

// splitCandidates returns evenly spaced quantiles of one feature.
func (m *Model) splitCandidates(data [][]float64, feature int) []float64 {
	values := make([]float64, len(data))
	for i, row := range data {
		values[i] = row[feature]
	}
	sort.Float64s(values)

	var out []float64
	for c := 1; c <= m.candidates; c++ {
		idx := len(values) * c / (m.candidates + 1)
		if idx >= len(values) {
			idx = len(values) - 1
		}
		v := values[idx]
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}

// Predict returns the botnet probability per row; rows at or above 0.5 are
// labeled botnet.
func (m *Model) Predict(data [][]float64) ([]model.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	verdicts := make([]model.Verdict, len(data))
	for i, row := range data {
		score := m.base
		for _, s := range m.stumps {
			if row[s.Feature] < s.Split {
				score += s.Left
			} else {
				score += s.Right
			}
		}
		p := sigmoid(score)
		label := model.LabelBenign
		if p >= 0.5 {
			label = model.LabelBotnet
		}
		verdicts[i] = model.Verdict{Label: label, Probability: p}
	}
	return verdicts, nil
}

// modelState is the gob payload for Save/Load.
type modelState struct {
	Rounds       int
	LearningRate float64
	Base         float64
	Stumps       []stump
}

// Save serializes the trained model.
func (m *Model) Save() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	state := modelState{
		Rounds:       m.rounds,
		LearningRate: m.learningRate,
		Base:         m.base,
		Stumps:       m.stumps,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load restores a trained model.
func (m *Model) Load(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var state modelState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}

	m.rounds = state.Rounds
	m.learningRate = state.LearningRate
	m.base = state.Base
	m.stumps = state.Stumps
	m.trained = true
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
