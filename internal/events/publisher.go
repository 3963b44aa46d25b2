package events

import (
	"encoding/json"
	"fmt"

	"BotSpectra/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher publishes pipeline events to NATS as JSON documents.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
}

// NewPublisher connects to NATS. A nil Publisher is safe to use: all publish
// methods become no-ops, so services run unchanged without an event bus.
func NewPublisher(cfg config.NATSConfig, log *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("connected to NATS", zap.String("url", cfg.URL))
	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix, log: log}, nil
}

func (p *Publisher) publish(subject string, payload any) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(p.prefix+"."+subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// PublishCaptureComplete announces a finished capture.
func (p *Publisher) PublishCaptureComplete(ev CaptureComplete) error {
	return p.publish("capture.complete", ev)
}

// PublishVerdict announces a finished analysis run.
func (p *Publisher) PublishVerdict(ev Verdict) error {
	return p.publish("analysis.verdict", ev)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
	p.log.Info("NATS connection drained and closed")
}
