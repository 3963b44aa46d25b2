// Package kmeans implements a clustering detector: flows far from every
// learned cluster centroid are flagged as anomalous.
package kmeans

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"

	"BotSpectra/internal/ml"
	"BotSpectra/internal/model"
)

const Name = "kmeans"

func init() {
	ml.Register(Name, func() model.Classifier { return New() })
}

// Model is a k-means based detector. It is unsupervised: Fit ignores labels
// and calibrates the distance threshold from the contamination rate.
type Model struct {
	mu sync.RWMutex

	k             int
	maxIterations int
	contamination float64
	rng           *rand.Rand

	centroids [][]float64
	scaleDist float64 // distance that maps to score 1.0
	threshold float64
	trained   bool
}

// Option configures a Model.
type Option func(*Model)

// WithClusters sets the number of centroids.
func WithClusters(k int) Option {
	return func(m *Model) { m.k = k }
}

// WithContamination sets the expected fraction of anomalies in training data.
func WithContamination(c float64) Option {
	return func(m *Model) { m.contamination = c }
}

// WithSeed makes centroid initialization deterministic.
func WithSeed(seed int64) Option {
	return func(m *Model) { m.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Model with the given options.
func New(opts ...Option) *Model {
	m := &Model{
		k:             8,
		maxIterations: 50,
		contamination: 0.1,
		threshold:     0.5,
		rng:           rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the registry name.
func (m *Model) Name() string { return Name }

// Fit runs k-means on the data. labels is ignored.
func (m *Model) Fit(data [][]float64, labels []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}

	k := m.k
	if k > len(data) {
		k = len(data)
	}

	// k-means++ style seeding: first centroid at random, the rest biased
	// towards points far from the chosen set.
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(data[m.rng.Intn(len(data))]))
	for len(centroids) < k {
		dists := make([]float64, len(data))
		var total float64
		for i, row := range data {
			d := nearestDistance(row, centroids)
			dists[i] = d * d
			total += dists[i]
		}
		if total == 0 {
			centroids = append(centroids, clone(data[m.rng.Intn(len(data))]))
			continue
		}
		target := m.rng.Float64() * total
		var acc float64
		for i, d := range dists {
			acc += d
			if acc >= target {
				centroids = append(centroids, clone(data[i]))
				break
			}
		}
	}

	// Lloyd iterations.
	assignments := make([]int, len(data))
	for iter := 0; iter < m.maxIterations; iter++ {
		changed := false
		for i, row := range data {
			best := nearestIndex(row, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		dims := len(data[0])
		sums := make([][]float64, len(centroids))
		counts := make([]int, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range data {
			c := assignments[i]
			counts[c]++
			for d, v := range row {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // Empty cluster keeps its previous centroid.
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	m.centroids = centroids

	// Calibrate scoring against the training distances.
	dists := make([]float64, len(data))
	for i, row := range data {
		dists[i] = nearestDistance(row, centroids)
	}
	m.scaleDist = percentile(dists, 99)
	if m.scaleDist == 0 {
		m.scaleDist = 1
	}

	scores := make([]float64, len(data))
	for i, d := range dists {
		scores[i] = m.toScore(d)
	}
	if m.contamination > 0 {
		m.threshold = percentile(scores, 100*(1-m.contamination))
	}

	m.trained = true
	return nil
}

// Predict scores each row by its distance to the nearest centroid.
func (m *Model) Predict(data [][]float64) ([]model.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	verdicts := make([]model.Verdict, len(data))
	for i, row := range data {
		s := m.toScore(nearestDistance(row, m.centroids))
		label := model.LabelBenign
		if s >= m.threshold {
			label = model.LabelBotnet
		}
		verdicts[i] = model.Verdict{Label: label, Probability: s}
	}
	return verdicts, nil
}

// toScore maps a centroid distance into [0, 1) with a saturating curve, so
// points far beyond anything seen in training approach 1.
func (m *Model) toScore(dist float64) float64 {
	return 1 - math.Exp(-dist/m.scaleDist)
}

// modelState is the gob payload for Save/Load.
type modelState struct {
	K             int
	Contamination float64
	Centroids     [][]float64
	ScaleDist     float64
	Threshold     float64
}

// Save serializes the trained model.
func (m *Model) Save() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	state := modelState{
		K:             m.k,
		Contamination: m.contamination,
		Centroids:     m.centroids,
		ScaleDist:     m.scaleDist,
		Threshold:     m.threshold,
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

	m.k = state.K
	m.contamination = state.Contamination
	m.centroids = state.Centroids
	m.scaleDist = state.ScaleDist
	m.threshold = state.Threshold
	m.trained = true
	return nil
}

func clone(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func nearestIndex(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := euclidean(row, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func nearestDistance(row []float64, centroids [][]float64) float64 {
	bestDist := math.Inf(1)
	for _, c := range centroids {
		if d := euclidean(row, c); d < bestDist {
			bestDist = d
		}
	}
	return bestDist
}

// percentile returns the p-th percentile of the data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
