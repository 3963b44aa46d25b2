package ml_test

import (
	"math/rand"
	"testing"

	"BotSpectra/internal/ml"
	_ "BotSpectra/internal/ml/iforest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownModel(t *testing.T) {
	_, err := ml.New("no-such-model")
	assert.ErrorContains(t, err, "unknown model")
}

func TestNamesIncludeRegistered(t *testing.T) {
	assert.Contains(t, ml.Names(), "iforest")
}

func TestSaveAndLoadFromDir(t *testing.T) {
	clf, err := ml.New("iforest")
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	data := make([][]float64, 100)
	for i := range data {
		data[i] = []float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	require.NoError(t, clf.Fit(data, nil))

	dir := t.TempDir()
	path, err := ml.SaveToDir(dir, clf)
	require.NoError(t, err)
	assert.FileExists(t, path)

	restored, err := ml.LoadFromDir(dir, "iforest")
	require.NoError(t, err)

	want, err := clf.Predict(data[:5])
	require.NoError(t, err)
	got, err := restored.Predict(data[:5])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadFromDirMissingFile(t *testing.T) {
	_, err := ml.LoadFromDir(t.TempDir(), "iforest")
	assert.Error(t, err)
}
