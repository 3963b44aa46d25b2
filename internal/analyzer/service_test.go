package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"BotSpectra/internal/config"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/csvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClassifier labels every row it sees as botnet or benign alternately.
type fakeClassifier struct {
	name string
}

func (f *fakeClassifier) Fit(data [][]float64, labels []float64) error { return nil }
func (f *fakeClassifier) Name() string                                 { return f.name }
func (f *fakeClassifier) Save() ([]byte, error)                        { return nil, nil }
func (f *fakeClassifier) Load(data []byte) error                       { return nil }

func (f *fakeClassifier) Predict(data [][]float64) ([]model.Verdict, error) {
	verdicts := make([]model.Verdict, len(data))
	for i := range data {
		if i%2 == 0 {
			verdicts[i] = model.Verdict{Label: model.LabelBotnet, Probability: 0.9}
		} else {
			verdicts[i] = model.Verdict{Label: model.LabelBenign, Probability: 0.1}
		}
	}
	return verdicts, nil
}

func testFlows() []model.FlowRecord {
	flows := make([]model.FlowRecord, 4)
	for i := range flows {
		flows[i] = model.FlowRecord{
			SrcIP: fmt.Sprintf("192.168.1.%d", i+1), DstIP: "10.0.0.1",
			SrcPort: uint16(40000 + i), DstPort: 80, Protocol: "TCP",
			PacketsSrc: 10, PacketsDst: 8, BytesSrc: 1000, BytesDst: 800,
			Duration: 1.5,
		}
	}
	return flows
}

func newTestService(t *testing.T, loader ModelLoader) (*Service, string) {
	t.Helper()
	shared := t.TempDir()
	cfg := &config.Config{
		SharedDir: shared,
		HTTP:      config.HTTPConfig{Token: "secret", RateEvery: 60, RateBurst: 10},
		Analyzer:  config.AnalyzerConfig{DefaultModel: "fake", ModelDir: shared},
	}
	svc := New(cfg, nil, nil, nil, zap.NewNop()).WithLoader(loader)
	return svc, shared
}

func postAnalyze(t *testing.T, handler http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(data))
	req.Header.Set(server.TokenHeader, "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleAnalyzeWritesPredictions(t *testing.T) {
	loaded := 0
	loader := func(name string) (model.Classifier, error) {
		loaded++
		return &fakeClassifier{name: name}, nil
	}
	svc, shared := newTestService(t, loader)

	input := filepath.Join(shared, "flows_summary.csv")
	require.NoError(t, csvstore.WriteFlowSummary(input, testFlows()))

	rec := postAnalyze(t, svc.Router(), analyzeRequest{FilePath: input, Model: "fake"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status string        `json:"status"`
		Result analyzeResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "fake", resp.Result.Model)
	assert.Equal(t, 4, resp.Result.Flows)
	assert.Equal(t, 2, resp.Result.Botnet)
	assert.InDelta(t, 0.5, resp.Result.BotnetRatio, 1e-9)

	preds, err := csvstore.ReadPredictions(resp.Result.PredictionsPath)
	require.NoError(t, err)
	require.Len(t, preds, 4)
	assert.Equal(t, model.LabelBotnet, preds[0].Label)
	assert.Equal(t, model.LabelBenign, preds[1].Label)
}

func TestHandleAnalyzeDefaults(t *testing.T) {
	var requested string
	loader := func(name string) (model.Classifier, error) {
		requested = name
		return &fakeClassifier{name: name}, nil
	}
	svc, shared := newTestService(t, loader)

	// No file_path in the request: the service falls back to the shared summary.
	input := filepath.Join(shared, "flows_summary.csv")
	require.NoError(t, csvstore.WriteFlowSummary(input, testFlows()))

	rec := postAnalyze(t, svc.Router(), analyzeRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fake", requested)
}

func TestHandleAnalyzeCachesModels(t *testing.T) {
	loaded := 0
	loader := func(name string) (model.Classifier, error) {
		loaded++
		return &fakeClassifier{name: name}, nil
	}
	svc, shared := newTestService(t, loader)

	input := filepath.Join(shared, "flows_summary.csv")
	require.NoError(t, csvstore.WriteFlowSummary(input, testFlows()))

	handler := svc.Router()
	for i := 0; i < 3; i++ {
		rec := postAnalyze(t, handler, analyzeRequest{FilePath: input})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, loaded)
}

func TestHandleAnalyzeConcurrentRequests(t *testing.T) {
	loader := func(name string) (model.Classifier, error) {
		return &fakeClassifier{name: name}, nil
	}
	svc, shared := newTestService(t, loader)

	input := filepath.Join(shared, "flows_summary.csv")
	require.NoError(t, csvstore.WriteFlowSummary(input, testFlows()))

	handler := svc.Router()

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := postAnalyze(t, handler, analyzeRequest{
				FilePath: input,
				Model:    fmt.Sprintf("fake-%d", i),
			})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
}

func TestHandleAnalyzeUnknownModel(t *testing.T) {
	loader := func(name string) (model.Classifier, error) {
		return nil, fmt.Errorf("no snapshot for %q", name)
	}
	svc, _ := newTestService(t, loader)

	rec := postAnalyze(t, svc.Router(), analyzeRequest{Model: "nonexistent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["detail"], "nonexistent")
}

func TestHandleAnalyzeMissingInput(t *testing.T) {
	loader := func(name string) (model.Classifier, error) {
		return &fakeClassifier{name: name}, nil
	}
	svc, shared := newTestService(t, loader)

	rec := postAnalyze(t, svc.Router(), analyzeRequest{
		FilePath: filepath.Join(shared, "does_not_exist.csv"),
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleAnalyzeRequiresToken(t *testing.T) {
	svc, _ := newTestService(t, func(name string) (model.Classifier, error) {
		return &fakeClassifier{name: name}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
