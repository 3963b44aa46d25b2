package gatherer

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BotSpectra/internal/config"
	"BotSpectra/internal/engine/flow"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/csvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource returns a canned conversation instead of touching a device.
type fakeSource struct {
	iface    string
	duration time.Duration
}

func (f *fakeSource) Run(ctx context.Context, iface string, duration time.Duration, pcapPath string) ([]*model.PacketInfo, error) {
	f.iface = iface
	f.duration = duration

	base := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	ft := model.FiveTuple{
		SrcIP: net.ParseIP("192.168.1.10"), DstIP: net.ParseIP("10.0.0.1"),
		SrcPort: 40000, DstPort: 80, Protocol: 6,
	}
	return []*model.PacketInfo{
		{Timestamp: base, FiveTuple: ft, Length: 100},
		{Timestamp: base.Add(time.Second), FiveTuple: ft, Length: 200},
	}, nil
}

func newTestService(t *testing.T, source PacketSource) *Service {
	t.Helper()
	cfg := &config.Config{
		SharedDir: t.TempDir(),
		HTTP:      config.HTTPConfig{Token: "secret", RateEvery: 60, RateBurst: 5},
		Gatherer:  config.GathererConfig{Interface: "eth0", MaxDuration: 300},
	}
	builder := flow.NewBuilder(flow.DefaultConfig(), zap.NewNop())
	return New(cfg, source, builder, nil, zap.NewNop())
}

func postGather(t *testing.T, handler http.Handler, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/gather", bytes.NewReader(data))
	if token != "" {
		req.Header.Set(server.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleGatherWritesArtifacts(t *testing.T) {
	source := &fakeSource{}
	svc := newTestService(t, source)

	rec := postGather(t, svc.Router(), "secret", gatherRequest{Duration: 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status string       `json:"status"`
		Result gatherResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 2, resp.Result.Packets)
	assert.Equal(t, 1, resp.Result.Flows)
	assert.Equal(t, "eth0", source.iface)
	assert.Equal(t, 30*time.Second, source.duration)

	flows, err := csvstore.ReadFlowSummary(resp.Result.SummaryPath)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "192.168.1.10", flows[0].SrcIP)
}

func TestHandleGatherInterfaceOverride(t *testing.T) {
	source := &fakeSource{}
	svc := newTestService(t, source)

	rec := postGather(t, svc.Router(), "secret", gatherRequest{Duration: 10, Interface: "wlan0"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wlan0", source.iface)
}

func TestHandleGatherValidation(t *testing.T) {
	svc := newTestService(t, &fakeSource{})
	handler := svc.Router()

	tests := []struct {
		name     string
		duration int
	}{
		{"zero duration", 0},
		{"negative duration", -5},
		{"duration above max", 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postGather(t, handler, "secret", gatherRequest{Duration: tt.duration})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleGatherRequiresToken(t *testing.T) {
	svc := newTestService(t, &fakeSource{})
	rec := postGather(t, svc.Router(), "", gatherRequest{Duration: 30})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGatherMalformedBody(t *testing.T) {
	svc := newTestService(t, &fakeSource{})
	req := httptest.NewRequest(http.MethodPost, "/gather", bytes.NewReader([]byte("{not json")))
	req.Header.Set(server.TokenHeader, "secret")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
