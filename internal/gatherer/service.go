// Package gatherer implements the traffic gathering service: bounded live
// capture, flow derivation, and the CSV artifacts on the shared volume.
package gatherer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"BotSpectra/internal/config"
	"BotSpectra/internal/engine/flow"
	"BotSpectra/internal/events"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/csvstore"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PacketSource captures traffic for a bounded duration. It is implemented by
// capture.Capturer; tests substitute a fake.
type PacketSource interface {
	Run(ctx context.Context, iface string, duration time.Duration, pcapPath string) ([]*model.PacketInfo, error)
}

// Service handles gathering requests.
type Service struct {
	cfg       *config.Config
	capturer  PacketSource
	builder   *flow.Builder
	publisher *events.Publisher
	log       *zap.Logger
}

// New creates the gathering service. publisher may be nil.
func New(cfg *config.Config, capturer PacketSource, builder *flow.Builder, publisher *events.Publisher, log *zap.Logger) *Service {
	return &Service{
		cfg:       cfg,
		capturer:  capturer,
		builder:   builder,
		publisher: publisher,
		log:       log,
	}
}

// Router builds the service's HTTP routes.
func (s *Service) Router() *mux.Router {
	rl := server.NewRateLimit(time.Duration(s.cfg.HTTP.RateEvery)*time.Second, s.cfg.HTTP.RateBurst)

	r := mux.NewRouter()
	r.Use(server.RequestLogger(s.log))
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	gather := r.PathPrefix("/gather").Subrouter()
	gather.Use(server.TokenAuth(s.cfg.HTTP.Token), rl.Middleware)
	gather.HandleFunc("", s.handleGather).Methods(http.MethodPost)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// gatherRequest is the POST /gather body.
type gatherRequest struct {
	Duration  int    `json:"duration"`
	Interface string `json:"interface"`
}

// gatherResult is the "result" payload of a successful gather.
type gatherResult struct {
	PcapPath    string `json:"pcap_path"`
	RawPath     string `json:"raw_path"`
	SummaryPath string `json:"summary_path"`
	Packets     int    `json:"packets"`
	Flows       int    `json:"flows"`
}

func (s *Service) handleGather(w http.ResponseWriter, r *http.Request) {
	var req gatherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Duration <= 0 {
		server.WriteDetail(w, http.StatusBadRequest, "duration must be a positive number of seconds")
		return
	}
	if req.Duration > s.cfg.Gatherer.MaxDuration {
		server.WriteDetail(w, http.StatusBadRequest,
			fmt.Sprintf("duration exceeds the configured maximum of %d seconds", s.cfg.Gatherer.MaxDuration))
		return
	}

	iface := req.Interface
	if iface == "" {
		iface = s.cfg.Gatherer.Interface
	}

	result, err := s.gather(r.Context(), iface, time.Duration(req.Duration)*time.Second)
	if err != nil {
		s.log.Error("gathering failed", zap.Error(err))
		server.WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	server.Completed(w, result)
}

// gather runs one capture and derives the flow artifacts from it.
func (s *Service) gather(ctx context.Context, iface string, duration time.Duration) (*gatherResult, error) {
	if err := os.MkdirAll(s.cfg.SharedDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shared dir: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	result := &gatherResult{
		PcapPath:    filepath.Join(s.cfg.SharedDir, fmt.Sprintf("traffic_%s.pcap", timestamp)),
		RawPath:     filepath.Join(s.cfg.SharedDir, "flows_raw.csv"),
		SummaryPath: filepath.Join(s.cfg.SharedDir, "flows_summary.csv"),
	}

	packets, err := s.capturer.Run(ctx, iface, duration, result.PcapPath)
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	result.Packets = len(packets)

	if err := csvstore.WriteRawPackets(result.RawPath, packets); err != nil {
		return nil, fmt.Errorf("failed to write raw packet table: %w", err)
	}

	flows := s.builder.Build(packets)
	result.Flows = len(flows)
	if err := csvstore.WriteFlowSummary(result.SummaryPath, flows); err != nil {
		return nil, fmt.Errorf("failed to write flow summary: %w", err)
	}

	if err := s.publisher.PublishCaptureComplete(events.CaptureComplete{
		PcapPath:    result.PcapPath,
		RawPath:     result.RawPath,
		SummaryPath: result.SummaryPath,
		Packets:     result.Packets,
		Flows:       result.Flows,
		FinishedAt:  time.Now().UTC(),
	}); err != nil {
		// The artifacts are already on the shared volume; a lost event is not fatal.
		s.log.Warn("failed to publish capture event", zap.Error(err))
	}

	return result, nil
}
