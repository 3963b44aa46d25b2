// Package events carries pipeline notifications over NATS. The shared volume
// remains the data hand-off; events only announce that new artifacts exist.
package events

import "time"

// CaptureComplete announces that the gatherer finished a capture and wrote
// its artifacts to the shared volume.
type CaptureComplete struct {
	PcapPath    string    `json:"pcap_path"`
	RawPath     string    `json:"raw_path"`
	SummaryPath string    `json:"summary_path"`
	Packets     int       `json:"packets"`
	Flows       int       `json:"flows"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Verdict announces the outcome of an analysis run.
type Verdict struct {
	RunID       string    `json:"run_id"`
	Model       string    `json:"model"`
	InputPath   string    `json:"input_path"`
	OutputPath  string    `json:"output_path"`
	Flows       int       `json:"flows"`
	Botnet      int       `json:"botnet"`
	BotnetRatio float64   `json:"botnet_ratio"`
	FinishedAt  time.Time `json:"finished_at"`
}
