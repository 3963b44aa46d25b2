// Package alerting evaluates analysis results against configured thresholds
// and sends notifications when a run looks like an active botnet.
package alerting

import (
	"fmt"

	"BotSpectra/internal/config"
	"BotSpectra/internal/model"

	"go.uber.org/zap"
)

// Alerter checks each analysis run against the configured thresholds.
type Alerter struct {
	cfg      config.AlerterConfig
	notifier model.Notifier
	log      *zap.Logger
}

// New creates an Alerter. notifier may be nil, in which case triggered alerts
// are only logged.
func New(cfg config.AlerterConfig, notifier model.Notifier, log *zap.Logger) *Alerter {
	return &Alerter{cfg: cfg, notifier: notifier, log: log}
}

// Evaluate inspects one analysis result and sends a notification when the
// botnet ratio threshold is reached. Runs smaller than MinFlows are ignored.
func (a *Alerter) Evaluate(result model.AnalysisResult) {
	if !a.cfg.Enabled {
		return
	}
	if result.Rows < a.cfg.MinFlows {
		a.log.Debug("skipping alert evaluation for small run",
			zap.String("run_id", result.RunID),
			zap.Int("rows", result.Rows),
		)
		return
	}
	if result.BotnetRatio < a.cfg.BotnetRatio {
		return
	}

	a.log.Warn("botnet threshold exceeded",
		zap.String("run_id", result.RunID),
		zap.Float64("ratio", result.BotnetRatio),
		zap.Float64("threshold", a.cfg.BotnetRatio),
	)

	if a.notifier == nil {
		return
	}

	subject := fmt.Sprintf("BotSpectra alert: %.1f%% of flows classified as botnet", 100*result.BotnetRatio)
	body := fmt.Sprintf(
		"<h1>BotSpectra Alert</h1>"+
			"<p>Analysis run <b>%s</b> (model <b>%s</b>) classified %d of %d flows as botnet traffic (%.1f%%).</p>"+
			"<p>Input: %s<br>Predictions: %s</p>",
		result.RunID, result.Model, result.Botnet, result.Rows,
		100*result.BotnetRatio, result.InputPath, result.OutputPath,
	)

	if err := a.notifier.Send(subject, body); err != nil {
		a.log.Error("failed to send alert notification", zap.Error(err))
		return
	}
	a.log.Info("alert notification sent", zap.String("run_id", result.RunID))
}
