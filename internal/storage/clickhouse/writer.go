// Package clickhouse persists prediction runs so past analyses can be
// queried from the dashboard.
package clickhouse

import (
	"context"
	"fmt"

	"BotSpectra/internal/config"
	"BotSpectra/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS botnet_predictions (
    RunID       String,
    Timestamp   DateTime,
    Model       String,
    SrcIP       String,
    DstIP       String,
    SrcPort     UInt16,
    DstPort     UInt16,
    Protocol    String,
    PacketsSrc  UInt64,
    PacketsDst  UInt64,
    BytesSrc    UInt64,
    BytesDst    UInt64,
    Duration    Float64,
    Label       String,
    Probability Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Timestamp);
`

// Writer implements model.PredictionWriter for ClickHouse.
type Writer struct {
	conn driver.Conn
	log  *zap.Logger
}

// NewWriter connects to ClickHouse and ensures the predictions table exists.
func NewWriter(cfg config.ClickHouseConfig, log *zap.Logger) (*Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Info("connected to clickhouse", zap.String("host", cfg.Host))

	return &Writer{conn: conn, log: log}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// WritePredictions batch-inserts the predictions of a single analysis run.
func (w *Writer) WritePredictions(ctx context.Context, result model.AnalysisResult, preds []model.Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO botnet_predictions")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, p := range preds {
		err = batch.Append(
			result.RunID,
			result.StartedAt,
			result.Model,
			p.Flow.SrcIP,
			p.Flow.DstIP,
			p.Flow.SrcPort,
			p.Flow.DstPort,
			p.Flow.Protocol,
			p.Flow.PacketsSrc,
			p.Flow.PacketsDst,
			p.Flow.BytesSrc,
			p.Flow.BytesDst,
			p.Flow.Duration,
			p.Label,
			p.Probability,
		)
		if err != nil {
			return fmt.Errorf("failed to append prediction to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.log.Info("wrote predictions to clickhouse",
		zap.String("run_id", result.RunID),
		zap.Int("rows", len(preds)),
	)
	return nil
}

// Close releases the connection.
func (w *Writer) Close() error {
	return w.conn.Close()
}
