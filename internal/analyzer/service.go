// Package analyzer implements the traffic analysis service: it scores flow
// summaries with a trained detection model and writes the verdicts back to
// the shared volume.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"BotSpectra/internal/alerting"
	"BotSpectra/internal/config"
	"BotSpectra/internal/events"
	"BotSpectra/internal/ml"
	"BotSpectra/internal/ml/preprocess"
	"BotSpectra/internal/model"
	"BotSpectra/internal/server"
	"BotSpectra/internal/storage/csvstore"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ModelLoader resolves a model name to a trained classifier. The default
// loads gob snapshots from the model directory; tests substitute fakes.
type ModelLoader func(name string) (model.Classifier, error)

// Service handles analysis requests.
type Service struct {
	cfg       *config.Config
	loader    ModelLoader
	store     model.PredictionWriter
	publisher *events.Publisher
	alerter   *alerting.Alerter
	log       *zap.Logger

	registry *prometheus.Registry
	metrics  *metrics

	mu     sync.Mutex
	models map[string]model.Classifier
}

// New creates the analysis service. store, publisher, and alerter may be nil.
func New(cfg *config.Config, store model.PredictionWriter, publisher *events.Publisher, alerter *alerting.Alerter, log *zap.Logger) *Service {
	registry := prometheus.NewRegistry()
	s := &Service{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		alerter:   alerter,
		log:       log,
		registry:  registry,
		metrics:   newMetrics(registry),
		models:    make(map[string]model.Classifier),
	}
	s.loader = func(name string) (model.Classifier, error) {
		return ml.LoadFromDir(cfg.Analyzer.ModelDir, name)
	}
	return s
}

// WithLoader overrides the model loader. Used by tests.
func (s *Service) WithLoader(loader ModelLoader) *Service {
	s.loader = loader
	return s
}

// Router builds the service's HTTP routes.
func (s *Service) Router() *mux.Router {
	rl := server.NewRateLimit(time.Duration(s.cfg.HTTP.RateEvery)*time.Second, s.cfg.HTTP.RateBurst)

	r := mux.NewRouter()
	r.Use(server.RequestLogger(s.log))
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	analyze := r.PathPrefix("/analyze").Subrouter()
	analyze.Use(server.TokenAuth(s.cfg.HTTP.Token), rl.Middleware)
	analyze.HandleFunc("", s.handleAnalyze).Methods(http.MethodPost)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// analyzeRequest is the POST /analyze body. Both fields are optional: the
// file path defaults to the gatherer's summary on the shared volume and the
// model to the configured default.
type analyzeRequest struct {
	FilePath string `json:"file_path"`
	Model    string `json:"model"`
}

// analyzeResult is the "result" payload of a successful analysis.
type analyzeResult struct {
	RunID           string  `json:"run_id"`
	Model           string  `json:"model"`
	InputPath       string  `json:"input_path"`
	PredictionsPath string  `json:"predictions_path"`
	Flows           int     `json:"flows"`
	Botnet          int     `json:"botnet"`
	BotnetRatio     float64 `json:"botnet_ratio"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.FilePath == "" {
		req.FilePath = filepath.Join(s.cfg.SharedDir, "flows_summary.csv")
	}
	if req.Model == "" {
		req.Model = s.cfg.Analyzer.DefaultModel
	}

	clf, err := s.classifier(req.Model)
	if err != nil {
		s.metrics.requests.WithLabelValues(req.Model, "error").Inc()
		server.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.analyze(r.Context(), clf, req.FilePath)
	if err != nil {
		s.metrics.requests.WithLabelValues(req.Model, "error").Inc()
		s.log.Error("analysis failed", zap.String("model", req.Model), zap.Error(err))
		server.WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.requests.WithLabelValues(req.Model, "ok").Inc()
	server.Completed(w, result)
}

// classifier returns a trained model, loading and caching it on first use.
// Requests are served concurrently, so the cache is held under the lock.
func (s *Service) classifier(name string) (model.Classifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clf, ok := s.models[name]; ok {
		return clf, nil
	}
	clf, err := s.loader(name)
	if err != nil {
		return nil, fmt.Errorf("model %q is not available: %w", name, err)
	}
	s.models[name] = clf
	return clf, nil
}

// analyze scores one flow summary and writes the predictions table.
func (s *Service) analyze(ctx context.Context, clf model.Classifier, inputPath string) (*analyzeResult, error) {
	started := time.Now().UTC()
	runID := started.Format("20060102_150405")

	flows, err := csvstore.ReadFlowSummary(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow summary: %w", err)
	}

	data, err := preprocess.Transform(flows)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess flows: %w", err)
	}

	verdicts, err := clf.Predict(data.Matrix)
	if err != nil {
		return nil, fmt.Errorf("model %q failed to predict: %w", clf.Name(), err)
	}
	if len(verdicts) != len(data.Rows) {
		return nil, fmt.Errorf("model %q returned %d verdicts for %d rows", clf.Name(), len(verdicts), len(data.Rows))
	}

	preds := make([]model.Prediction, len(verdicts))
	botnet := 0
	for i, v := range verdicts {
		preds[i] = model.Prediction{Flow: data.Rows[i], Label: v.Label, Probability: v.Probability}
		if v.Label == model.LabelBotnet {
			botnet++
		}
	}

	outputPath := filepath.Join(s.cfg.SharedDir, "predictions.csv")
	if err := csvstore.WritePredictions(outputPath, preds); err != nil {
		return nil, fmt.Errorf("failed to write predictions: %w", err)
	}

	elapsed := time.Since(started)
	run := model.AnalysisResult{
		RunID:      runID,
		Model:      clf.Name(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		Rows:       len(preds),
		Botnet:     botnet,
		StartedAt:  started,
		Elapsed:    elapsed,
	}
	if run.Rows > 0 {
		run.BotnetRatio = float64(botnet) / float64(run.Rows)
	}

	s.metrics.duration.Observe(elapsed.Seconds())
	s.metrics.flowsSeen.Add(float64(run.Rows))
	s.metrics.botnet.Add(float64(botnet))

	// The CSV on the shared volume is the contract with the visualizer; the
	// warehouse, event bus, and alerter are best effort on top of it.
	if s.store != nil {
		if err := s.store.WritePredictions(ctx, run, preds); err != nil {
			s.log.Error("failed to persist predictions", zap.String("run_id", runID), zap.Error(err))
		}
	}
	if err := s.publisher.PublishVerdict(events.Verdict{
		RunID:       run.RunID,
		Model:       run.Model,
		InputPath:   run.InputPath,
		OutputPath:  run.OutputPath,
		Flows:       run.Rows,
		Botnet:      run.Botnet,
		BotnetRatio: run.BotnetRatio,
		FinishedAt:  time.Now().UTC(),
	}); err != nil {
		s.log.Warn("failed to publish verdict event", zap.Error(err))
	}
	if s.alerter != nil {
		s.alerter.Evaluate(run)
	}

	s.log.Info("analysis completed",
		zap.String("run_id", run.RunID),
		zap.String("model", run.Model),
		zap.Int("flows", run.Rows),
		zap.Int("botnet", run.Botnet),
		zap.Duration("elapsed", elapsed),
	)

	return &analyzeResult{
		RunID:           run.RunID,
		Model:           run.Model,
		InputPath:       run.InputPath,
		PredictionsPath: run.OutputPath,
		Flows:           run.Rows,
		Botnet:          run.Botnet,
		BotnetRatio:     run.BotnetRatio,
		ElapsedSeconds:  elapsed.Seconds(),
	}, nil
}
