// Package iforest implements an isolation forest detector for flow data.
// Flows that are easy to isolate with random splits score close to 1.
package iforest

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

const Name = "iforest"

func init() {
	ml.Register(Name, func() model.Classifier { return New() })
}

// treeNode is one node of an isolation tree. Leaves carry only Size.
// Fields are exported for gob serialization.
type treeNode struct {
	Feature int
	Split   float64
	Left    *treeNode
	Right   *treeNode
	Size    int
}

// Forest is an isolation forest classifier. It is unsupervised: Fit ignores
// labels and calibrates the anomaly threshold from the contamination rate.
type Forest struct {
	mu sync.RWMutex

	numTrees      int
	sampleSize    int
	contamination float64
	maxDepth      int
	rng           *rand.Rand

	trees     []*treeNode
	avgPath   float64
	threshold float64
	trained   bool
}

// Option configures a Forest.
type Option func(*Forest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *Forest) { f.numTrees = n }
}

// WithSampleSize sets the subsample size used to grow each tree.
func WithSampleSize(n int) Option {
	return func(f *Forest) { f.sampleSize = n }
}

// WithContamination sets the expected fraction of anomalies in training data.
func WithContamination(c float64) Option {
	return func(f *Forest) { f.contamination = c }
}

// WithSeed makes training deterministic.
func WithSeed(seed int64) Option {
	return func(f *Forest) { f.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Forest with the given options.
func New(opts ...Option) *Forest {
	f := &Forest{
		numTrees:      100,
		sampleSize:    256,
		contamination: 0.1,
		threshold:     0.5,
		rng:           rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the registry name.
func (f *Forest) Name() string { return Name }

// Fit grows the forest on the provided data. labels is ignored.
func (f *Forest) Fit(data [][]float64, labels []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}

	numSamples := len(data)
	numFeatures := len(data[0])

	sampleSize := f.sampleSize
	if sampleSize > numSamples {
		sampleSize = numSamples
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(2, float64(sampleSize)))))

	f.trees = make([]*treeNode, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		indices := f.rng.Perm(numSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.trees[i] = f.grow(sample, numFeatures, 0)
	}

	f.avgPath = expectedPath(float64(sampleSize))
	f.trained = true

	// Calibrate the decision threshold so roughly the contaminated fraction
	// of the training data scores above it.
	if f.contamination > 0 {
		scores := make([]float64, len(data))
		for i, row := range data {
			scores[i] = f.score(row)
		}
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}

	return nil
}

func (f *Forest) grow(data [][]float64, numFeatures, depth int) *treeNode {
	n := len(data)
	if depth >= f.maxDepth || n <= 1 {
		return &treeNode{Size: n}
	}

	feature := f.rng.Intn(numFeatures)
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &treeNode{Size: n}
	}

	split := minVal + f.rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &treeNode{
		Feature: feature,
		Split:   split,
		Left:    f.grow(left, numFeatures, depth+1),
		Right:   f.grow(right, numFeatures, depth+1),
	}
}

// Predict scores each row and labels it by the calibrated threshold. The
// anomaly score doubles as the botnet probability.
func (f *Forest) Predict(data [][]float64) ([]model.Verdict, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, errors.New("model not trained")
	}

	verdicts := make([]model.Verdict, len(data))
	for i, row := range data {
		s := f.score(row)
		label := model.LabelBenign
		if s >= f.threshold {
			label = model.LabelBotnet
		}
		verdicts[i] = model.Verdict{Label: label, Probability: s}
	}
	return verdicts, nil
}

// score computes the anomaly score 2^(-E[path] / c(n)) for one sample.
func (f *Forest) score(sample []float64) float64 {
	var total float64
	for _, root := range f.trees {
		total += pathLength(sample, root, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/f.avgPath)
}

func pathLength(sample []float64, n *treeNode, depth int) float64 {
	if n.Left == nil && n.Right == nil {
		return float64(depth) + expectedPath(float64(n.Size))
	}
	if sample[n.Feature] < n.Split {
		return pathLength(sample, n.Left, depth+1)
	}
	return pathLength(sample, n.Right, depth+1)
}

// expectedPath is the average path length of an unsuccessful BST search,
// c(n) = 2*H(n-1) - 2*(n-1)/n.
func expectedPath(n float64) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	return 2*(math.Log(n-1)+eulerMascheroni) - 2*(n-1)/n
}

// Threshold returns the calibrated anomaly threshold.
func (f *Forest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// forestState is the gob payload for Save/Load.
type forestState struct {
	NumTrees      int
	SampleSize    int
	Contamination float64
	MaxDepth      int
	Trees         []*treeNode
	AvgPath       float64
	Threshold     float64
}

// Save serializes the trained forest.
func (f *Forest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, errors.New("model not trained")
	}

	state := forestState{
		NumTrees:      f.numTrees,
		SampleSize:    f.sampleSize,
		Contamination: f.contamination,
		MaxDepth:      f.maxDepth,
		Trees:         f.trees,
		AvgPath:       f.avgPath,
		Threshold:     f.threshold,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load restores a trained forest.
func (f *Forest) Load(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var state forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}

	f.numTrees = state.NumTrees
	f.sampleSize = state.SampleSize
	f.contamination = state.Contamination
	f.maxDepth = state.MaxDepth
	f.trees = state.Trees
	f.avgPath = state.AvgPath
	f.threshold = state.Threshold
	f.trained = true
	return nil
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
