package gboost

import (
	"math/rand"
	"testing"

	"BotSpectra/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds a dataset where the positive class lives above x0 = 1.
func separable(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	labels := make([]float64, n)
	for i := range data {
		if i%2 == 0 {
			data[i] = []float64{rng.Float64(), rng.NormFloat64()}
			labels[i] = 0
		} else {
			data[i] = []float64{2 + rng.Float64(), rng.NormFloat64()}
			labels[i] = 1
		}
	}
	return data, labels
}

func TestFitValidation(t *testing.T) {
	m := New(WithRounds(5))
	assert.Error(t, m.Fit(nil, nil))

	data, labels := separable(20, 1)
	assert.Error(t, m.Fit(data, labels[:10]), "label count must match row count")

	bad := make([]float64, 20)
	bad[0] = 2
	assert.Error(t, m.Fit(data, bad))
}

func TestLearnsSeparableData(t *testing.T) {
	data, labels := separable(400, 7)
	m := New(WithRounds(50), WithLearningRate(0.2))
	require.NoError(t, m.Fit(data, labels))

	verdicts, err := m.Predict([][]float64{
		{0.2, 0.1},
		{2.5, -0.3},
	})
	require.NoError(t, err)

	assert.Equal(t, model.LabelBenign, verdicts[0].Label)
	assert.Less(t, verdicts[0].Probability, 0.5)
	assert.Equal(t, model.LabelBotnet, verdicts[1].Label)
	assert.Greater(t, verdicts[1].Probability, 0.5)
}

func TestPredictBeforeFit(t *testing.T) {
	_, err := New().Predict([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	data, labels := separable(200, 3)
	m := New(WithRounds(30))
	require.NoError(t, m.Fit(data, labels))

	blob, err := m.Save()
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Load(blob))

	sample := [][]float64{{0.1, 0}, {2.9, 0}}
	want, err := m.Predict(sample)
	require.NoError(t, err)
	got, err := restored.Predict(sample)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
