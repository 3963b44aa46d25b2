package events

import (
	"encoding/json"
	"fmt"

	"BotSpectra/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// VerdictHandler processes a received analysis verdict.
type VerdictHandler func(ev Verdict)

// Subscriber listens for pipeline events.
type Subscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	prefix string
	log    *zap.Logger
}

// NewSubscriber connects to NATS.
func NewSubscriber(cfg config.NATSConfig, log *zap.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("connected to NATS", zap.String("url", cfg.URL))
	return &Subscriber{nc: nc, prefix: cfg.SubjectPrefix, log: log}, nil
}

// StartVerdicts subscribes to analysis verdicts and dispatches them to the
// handler.
func (s *Subscriber) StartVerdicts(handler VerdictHandler) error {
	subject := s.prefix + ".analysis.verdict"
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Verdict
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.log.Warn("dropping malformed verdict event", zap.Error(err))
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.sub = sub
	s.log.Info("subscribed", zap.String("subject", subject))
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
