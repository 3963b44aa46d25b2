package clickhouse

import (
	"context"
	"fmt"
	"time"

	"BotSpectra/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// RunSummary aggregates one stored analysis run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model"`
	Flows       uint64    `json:"flows"`
	Botnet      uint64    `json:"botnet"`
	BotnetRatio float64   `json:"botnet_ratio"`
}

// Querier defines the interface the dashboard uses to read past runs.
type Querier interface {
	History(ctx context.Context, limit int) ([]RunSummary, error)
}

// querier implements Querier for ClickHouse.
type querier struct {
	conn driver.Conn
}

// NewQuerier creates a querier for stored prediction runs.
func NewQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &querier{conn: conn}, nil
}

const historyQuery = `
	SELECT
		RunID,
		any(Timestamp) AS Started,
		any(Model) AS Model,
		COUNT(*) AS Flows,
		countIf(Label = 'botnet') AS Botnet
	FROM botnet_predictions
	GROUP BY RunID
	ORDER BY Started DESC
	LIMIT ?
`

// History returns the most recent stored runs, newest first.
func (q *querier) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := q.conn.Query(ctx, historyQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.Timestamp, &s.Model, &s.Flows, &s.Botnet); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		if s.Flows > 0 {
			s.BotnetRatio = float64(s.Botnet) / float64(s.Flows)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
