package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BotSpectra/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientGather(t *testing.T) {
	var gotToken string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gather", r.URL.Path)
		gotToken = r.Header.Get(server.TokenHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		server.Completed(w, GatherResult{SummaryPath: "/shared/flows_summary.csv", Packets: 42, Flows: 7})
	}))
	defer ts.Close()

	client := NewClient(Endpoints{Gatherer: ts.URL}, "secret", zap.NewNop())
	result, err := client.Gather(context.Background(), 30, "eth0")
	require.NoError(t, err)

	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, float64(30), gotBody["duration"])
	assert.Equal(t, "eth0", gotBody["interface"])
	assert.Equal(t, 7, result.Flows)
}

func TestClientSurfacesDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.WriteDetail(w, http.StatusBadRequest, "duration must be a positive number of seconds")
	}))
	defer ts.Close()

	client := NewClient(Endpoints{Gatherer: ts.URL}, "secret", zap.NewNop())
	_, err := client.Gather(context.Background(), -1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration must be a positive")
}

func TestClientRetriesConnectionFailure(t *testing.T) {
	// Reserve an address with no listener behind it.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := ts.URL
	ts.Close()

	client := NewClient(Endpoints{Analyzer: addr}, "secret", zap.NewNop())
	client.retries = 2
	client.backoff = 10 * time.Millisecond

	start := time.Now()
	_, err := client.Analyze(context.Background(), "flows.csv", "iforest")
	require.Error(t, err)
	// Two retries means at least two backoff sleeps before giving up.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestClientDoesNotRetryHTTPErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		server.WriteDetail(w, http.StatusUnauthorized, "Invalid or missing token")
	}))
	defer ts.Close()

	client := NewClient(Endpoints{Visualizer: ts.URL}, "wrong", zap.NewNop())
	_, err := client.Visualize(context.Background(), "predictions.csv")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
