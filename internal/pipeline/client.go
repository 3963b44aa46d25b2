// Package pipeline drives the three services over HTTP in sequence, the way
// an operator would run a full capture-analyze-visualize pass.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"BotSpectra/internal/server"

	"go.uber.org/zap"
)

// Endpoints holds the base URLs of the three services.
type Endpoints struct {
	Gatherer   string
	Analyzer   string
	Visualizer string
}

// Client calls the pipeline services with the shared token.
type Client struct {
	http      *http.Client
	endpoints Endpoints
	token     string
	retries   int
	backoff   time.Duration
	log       *zap.Logger
}

// NewClient creates a pipeline client. Requests that fail to reach a service
// are retried with a fixed backoff; HTTP error responses are not retried.
func NewClient(endpoints Endpoints, token string, log *zap.Logger) *Client {
	return &Client{
		http:      &http.Client{},
		endpoints: endpoints,
		token:     token,
		retries:   3,
		backoff:   2 * time.Second,
		log:       log,
	}
}

// GatherResult mirrors the gatherer's response payload.
type GatherResult struct {
	PcapPath    string `json:"pcap_path"`
	RawPath     string `json:"raw_path"`
	SummaryPath string `json:"summary_path"`
	Packets     int    `json:"packets"`
	Flows       int    `json:"flows"`
}

// AnalyzeResult mirrors the analyzer's response payload.
type AnalyzeResult struct {
	RunID           string  `json:"run_id"`
	Model           string  `json:"model"`
	InputPath       string  `json:"input_path"`
	PredictionsPath string  `json:"predictions_path"`
	Flows           int     `json:"flows"`
	Botnet          int     `json:"botnet"`
	BotnetRatio     float64 `json:"botnet_ratio"`
}

// VisualizeResult mirrors the visualizer's response payload.
type VisualizeResult struct {
	Source string `json:"source"`
	Flows  int    `json:"flows"`
	Botnet int    `json:"botnet"`
}

// Gather asks the gatherer for a bounded capture.
func (c *Client) Gather(ctx context.Context, duration int, iface string) (*GatherResult, error) {
	var result GatherResult
	err := c.post(ctx, c.endpoints.Gatherer+"/gather", map[string]any{
		"duration":  duration,
		"interface": iface,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("gather stage failed: %w", err)
	}
	return &result, nil
}

// Analyze asks the analyzer to score a flow summary.
func (c *Client) Analyze(ctx context.Context, filePath, model string) (*AnalyzeResult, error) {
	var result AnalyzeResult
	err := c.post(ctx, c.endpoints.Analyzer+"/analyze", map[string]any{
		"file_path": filePath,
		"model":     model,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("analyze stage failed: %w", err)
	}
	return &result, nil
}

// Visualize asks the dashboard to load a predictions table.
func (c *Client) Visualize(ctx context.Context, filePath string) (*VisualizeResult, error) {
	var result VisualizeResult
	err := c.post(ctx, c.endpoints.Visualizer+"/visualize", map[string]any{
		"file_path": filePath,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("visualize stage failed: %w", err)
	}
	return &result, nil
}

// post sends one authenticated request and decodes the completed envelope.
func (c *Client) post(ctx context.Context, url string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(server.TokenHeader, c.token)

		resp, err = c.http.Do(req)
		if err == nil {
			break
		}
		if attempt >= c.retries || !retryable(err) {
			return fmt.Errorf("request to %s failed: %w", url, err)
		}
		c.log.Warn("service unreachable, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil || detail.Detail == "" {
			return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
		}
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, detail.Detail)
	}

	var envelope struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Status != "completed" {
		return fmt.Errorf("unexpected status %q from %s", envelope.Status, url)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// retryable reports whether the transport error is worth another attempt.
func retryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
