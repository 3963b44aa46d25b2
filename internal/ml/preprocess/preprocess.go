// Package preprocess turns flow summary tables into numeric matrices the
// detection models can consume.
package preprocess

import (
	"fmt"
	"math"

	"BotSpectra/internal/model"
)

// Columns of the produced matrix, in order. Numeric columns are
// standard-scaled; categorical columns are label-encoded and left unscaled.
var columns = []string{
	"src_ip", "dst_ip", "src_port", "dst_port", "protocol",
	"num_packets_src", "num_packets_dst", "bytes_src", "bytes_dst", "duration",
}

// numericIdx marks which matrix columns are scaled.
var numericIdx = []int{2, 3, 5, 6, 7, 8, 9}

// categoricalIdx marks which matrix columns are label-encoded strings.
var categoricalIdx = []int{0, 1, 4}

// Result holds a preprocessed dataset together with the deduplicated records
// each matrix row came from, so verdicts can be mapped back to flows.
type Result struct {
	Matrix [][]float64
	Rows   []model.FlowRecord
}

// Columns returns the feature names in matrix order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// Transform cleans and encodes a flow summary: exact duplicate rows are
// dropped, categorical values are label-encoded in first-seen order, and
// numeric columns are standard-scaled against this dataset.
func Transform(records []model.FlowRecord) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no flow records to preprocess")
	}

	// Drop duplicates while preserving order.
	seen := make(map[model.FlowRecord]struct{}, len(records))
	var kept []model.FlowRecord
	for _, r := range records {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		kept = append(kept, r)
	}

	encoders := make([]map[string]float64, len(columns))
	for _, idx := range categoricalIdx {
		encoders[idx] = make(map[string]float64)
	}

	matrix := make([][]float64, len(kept))
	for i, r := range kept {
		row := make([]float64, len(columns))
		row[2] = float64(r.SrcPort)
		row[3] = float64(r.DstPort)
		row[5] = float64(r.PacketsSrc)
		row[6] = float64(r.PacketsDst)
		row[7] = float64(r.BytesSrc)
		row[8] = float64(r.BytesDst)
		row[9] = r.Duration

		row[0] = encode(encoders[0], r.SrcIP)
		row[1] = encode(encoders[1], r.DstIP)
		row[4] = encode(encoders[4], r.Protocol)

		matrix[i] = row
	}

	scaleColumns(matrix, numericIdx)

	return &Result{Matrix: matrix, Rows: kept}, nil
}

// encode assigns label codes in first-seen order.
func encode(enc map[string]float64, value string) float64 {
	if code, ok := enc[value]; ok {
		return code
	}
	code := float64(len(enc))
	enc[value] = code
	return code
}

// scaleColumns applies z = (x - mean) / std per column. A constant column
// scales to all zeros.
func scaleColumns(matrix [][]float64, idx []int) {
	n := float64(len(matrix))
	for _, col := range idx {
		var sum float64
		for _, row := range matrix {
			sum += row[col]
		}
		mean := sum / n

		var sqDiff float64
		for _, row := range matrix {
			d := row[col] - mean
			sqDiff += d * d
		}
		std := math.Sqrt(sqDiff / n)

		for _, row := range matrix {
			if std == 0 {
				row[col] = 0
				continue
			}
			row[col] = (row[col] - mean) / std
		}
	}
}
