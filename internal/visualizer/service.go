// Package visualizer serves the detection dashboard: it loads prediction
// tables from the shared volume and renders verdict summaries over HTTP.
package visualizer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"BotSpectra/internal/config"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/clickhouse"
	"BotSpectra/internal/storage/csvstore"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Service renders the dashboard over the most recently loaded predictions.
type Service struct {
	cfg     *config.Config
	querier clickhouse.Querier
	log     *zap.Logger

	mu       sync.RWMutex
	dataset  []model.Prediction
	source   string
	loadedAt time.Time
}

// New creates the dashboard service. querier may be nil, in which case the
// history endpoint reports that no warehouse is configured.
func New(cfg *config.Config, querier clickhouse.Querier, log *zap.Logger) *Service {
	return &Service{cfg: cfg, querier: querier, log: log}
}

// Router builds the service's HTTP routes.
func (s *Service) Router() *mux.Router {
	rl := server.NewRateLimit(time.Duration(s.cfg.HTTP.RateEvery)*time.Second, s.cfg.HTTP.RateBurst)

	r := mux.NewRouter()
	r.Use(server.RequestLogger(s.log))
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/results", s.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/history", s.handleHistory).Methods(http.MethodGet)

	visualize := r.PathPrefix("/visualize").Subrouter()
	visualize.Use(server.TokenAuth(s.cfg.HTTP.Token), rl.Middleware)
	visualize.HandleFunc("", s.handleVisualize).Methods(http.MethodPost)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// visualizeRequest is the POST /visualize body. The file path defaults to
// the analyzer's predictions table on the shared volume.
type visualizeRequest struct {
	FilePath string `json:"file_path"`
}

// visualizeResult is the "result" payload of a successful load.
type visualizeResult struct {
	Source string `json:"source"`
	Flows  int    `json:"flows"`
	Botnet int    `json:"botnet"`
}

func (s *Service) handleVisualize(w http.ResponseWriter, r *http.Request) {
	var req visualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.FilePath == "" {
		req.FilePath = filepath.Join(s.cfg.SharedDir, "predictions.csv")
	}

	flows, botnet, err := s.LoadPredictions(req.FilePath)
	if err != nil {
		s.log.Error("failed to load predictions", zap.String("path", req.FilePath), zap.Error(err))
		server.WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	server.Completed(w, visualizeResult{Source: req.FilePath, Flows: flows, Botnet: botnet})
}

// LoadPredictions reads a predictions table and makes it the active dataset.
// Besides the visualize endpoint it is called when a verdict event arrives,
// so the dashboard follows the analyzer without manual loads.
func (s *Service) LoadPredictions(path string) (flows, botnet int, err error) {
	preds, err := csvstore.ReadPredictions(path)
	if err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	s.dataset = preds
	s.source = path
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()

	for _, p := range preds {
		if p.Label == model.LabelBotnet {
			botnet++
		}
	}

	s.log.Info("predictions loaded",
		zap.String("source", path),
		zap.Int("flows", len(preds)),
		zap.Int("botnet", botnet),
	)
	return len(preds), botnet, nil
}

// snapshot returns the active dataset under the read lock.
func (s *Service) snapshot() ([]model.Prediction, string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.source, s.loadedAt
}

func (s *Service) handleDashboard(w http.ResponseWriter, r *http.Request) {
	preds, source, loadedAt := s.snapshot()

	view := buildDashboard(preds, source, loadedAt)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, view); err != nil {
		s.log.Error("failed to render dashboard", zap.Error(err))
	}
}

// resultsResponse is the JSON shape of GET /api/v1/results.
type resultsResponse struct {
	Source   string             `json:"source"`
	LoadedAt time.Time          `json:"loaded_at"`
	Total    int                `json:"total"`
	Results  []model.Prediction `json:"results"`
}

func (s *Service) handleResults(w http.ResponseWriter, r *http.Request) {
	preds, source, loadedAt := s.snapshot()
	if preds == nil {
		server.WriteDetail(w, http.StatusNotFound, "no predictions loaded; POST /visualize first")
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	if offset > len(preds) {
		offset = len(preds)
	}
	end := offset + limit
	if end > len(preds) {
		end = len(preds)
	}

	server.WriteJSON(w, http.StatusOK, resultsResponse{
		Source:   source,
		LoadedAt: loadedAt,
		Total:    len(preds),
		Results:  preds[offset:end],
	})
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		server.WriteDetail(w, http.StatusNotFound, "run history requires a configured warehouse")
		return
	}

	runs, err := s.querier.History(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		s.log.Error("failed to query run history", zap.Error(err))
		server.WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
