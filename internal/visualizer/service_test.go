package visualizer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"BotSpectra/internal/config"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/clickhouse"
	"BotSpectra/internal/storage/csvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPredictions() []model.Prediction {
	flow := func(src string, bytes uint64) model.FlowRecord {
		return model.FlowRecord{
			SrcIP: src, DstIP: "10.0.0.1",
			SrcPort: 40000, DstPort: 80, Protocol: "TCP",
			PacketsSrc: 10, PacketsDst: 8, BytesSrc: bytes, BytesDst: bytes / 2,
			Duration: 2.5,
		}
	}
	return []model.Prediction{
		{Flow: flow("192.168.1.10", 5000), Label: model.LabelBotnet, Probability: 0.92},
		{Flow: flow("192.168.1.11", 1000), Label: model.LabelBenign, Probability: 0.12},
		{Flow: flow("192.168.1.12", 800), Label: model.LabelBenign, Probability: 0.30},
	}
}

func newTestService(t *testing.T, querier clickhouse.Querier) (*Service, string) {
	t.Helper()
	shared := t.TempDir()
	cfg := &config.Config{
		SharedDir:  shared,
		HTTP:       config.HTTPConfig{Token: "secret", RateEvery: 60, RateBurst: 10},
		Visualizer: config.VisualizerConfig{ListenAddr: ":8002"},
	}
	return New(cfg, querier, zap.NewNop()), shared
}

func loadPredictions(t *testing.T, svc *Service, path string) {
	t.Helper()
	body, err := json.Marshal(visualizeRequest{FilePath: path})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewReader(body))
	req.Header.Set(server.TokenHeader, "secret")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandleVisualizeLoadsDataset(t *testing.T) {
	svc, shared := newTestService(t, nil)

	path := filepath.Join(shared, "predictions.csv")
	require.NoError(t, csvstore.WritePredictions(path, testPredictions()))

	body, err := json.Marshal(visualizeRequest{FilePath: path})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewReader(body))
	req.Header.Set(server.TokenHeader, "secret")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status string          `json:"status"`
		Result visualizeResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 3, resp.Result.Flows)
	assert.Equal(t, 1, resp.Result.Botnet)
}

func TestHandleVisualizeDefaultsToSharedPredictions(t *testing.T) {
	svc, shared := newTestService(t, nil)

	path := filepath.Join(shared, "predictions.csv")
	require.NoError(t, csvstore.WritePredictions(path, testPredictions()))

	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(server.TokenHeader, "secret")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandleVisualizeMissingFile(t *testing.T) {
	svc, shared := newTestService(t, nil)

	body, err := json.Marshal(visualizeRequest{FilePath: filepath.Join(shared, "nope.csv")})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/visualize", bytes.NewReader(body))
	req.Header.Set(server.TokenHeader, "secret")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleResults(t *testing.T) {
	svc, shared := newTestService(t, nil)

	path := filepath.Join(shared, "predictions.csv")
	require.NoError(t, csvstore.WritePredictions(path, testPredictions()))
	loadPredictions(t, svc, path)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results?limit=2&offset=1", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "192.168.1.11", resp.Results[0].Flow.SrcIP)
}

func TestHandleResultsBeforeLoad(t *testing.T) {
	svc, _ := newTestService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDashboard(t *testing.T) {
	svc, shared := newTestService(t, nil)

	path := filepath.Join(shared, "predictions.csv")
	require.NoError(t, csvstore.WritePredictions(path, testPredictions()))
	loadPredictions(t, svc, path)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, "192.168.1.10")
	assert.Contains(t, html, "botnet")
	assert.Contains(t, html, "TCP")
}

func TestHandleDashboardEmpty(t *testing.T) {
	svc, _ := newTestService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No predictions loaded")
}

type fakeQuerier struct {
	runs []clickhouse.RunSummary
}

func (f *fakeQuerier) History(ctx context.Context, limit int) ([]clickhouse.RunSummary, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func TestHandleHistory(t *testing.T) {
	querier := &fakeQuerier{runs: []clickhouse.RunSummary{
		{RunID: "20250520_101500", Timestamp: time.Now(), Model: "iforest", Flows: 120, Botnet: 12, BotnetRatio: 0.1},
	}}
	svc, _ := newTestService(t, querier)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "20250520_101500")
}

func TestHandleHistoryWithoutWarehouse(t *testing.T) {
	svc, _ := newTestService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildDashboardAggregates(t *testing.T) {
	view := buildDashboard(testPredictions(), "predictions.csv", time.Now())

	assert.True(t, view.HasData)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 1, view.Botnet)
	assert.Equal(t, 2, view.Benign)
	assert.InDelta(t, 1.0/3.0, view.BotnetRatio, 1e-9)

	require.Len(t, view.Protocols, 1)
	assert.Equal(t, "TCP", view.Protocols[0].Protocol)
	assert.Equal(t, 3, view.Protocols[0].Flows)

	require.NotEmpty(t, view.TopTalkers)
	assert.Equal(t, "192.168.1.10", view.TopTalkers[0].SrcIP)
}
