// Package csvstore reads and writes the flat-file artifacts exchanged over
// the shared volume: raw packet tables, flow summaries, and predictions.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"BotSpectra/internal/model"
)

// summaryHeader is the column contract between the gatherer and the analyzer.
var summaryHeader = []string{
	"src_ip", "dst_ip", "src_port", "dst_port", "protocol",
	"num_packets_src", "num_packets_dst", "bytes_src", "bytes_dst", "duration",
}

var rawHeader = []string{
	"timestamp", "src_ip", "dst_ip", "src_port", "dst_port", "protocol", "bytes",
}

// writeCSV writes rows through a temp file and renames it into place, so a
// reader on the shared volume never observes a half-written table.
func writeCSV(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".csvstore-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// CreateTemp makes the file owner-only; the artifacts must be readable by
	// the other services sharing the volume.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move csv into place: %w", err)
	}
	return nil
}

// WriteRawPackets writes the per-packet table derived from a capture.
func WriteRawPackets(path string, packets []*model.PacketInfo) error {
	rows := make([][]string, 0, len(packets))
	for _, p := range packets {
		rows = append(rows, []string{
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			p.FiveTuple.SrcIP.String(),
			p.FiveTuple.DstIP.String(),
			strconv.Itoa(int(p.FiveTuple.SrcPort)),
			strconv.Itoa(int(p.FiveTuple.DstPort)),
			model.ProtocolName(p.FiveTuple.Protocol),
			strconv.Itoa(p.Length),
		})
	}
	return writeCSV(path, rawHeader, rows)
}

// WriteFlowSummary writes the per-flow summary table.
func WriteFlowSummary(path string, records []model.FlowRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, flowFields(r))
	}
	return writeCSV(path, summaryHeader, rows)
}

func flowFields(r model.FlowRecord) []string {
	return []string{
		r.SrcIP,
		r.DstIP,
		strconv.Itoa(int(r.SrcPort)),
		strconv.Itoa(int(r.DstPort)),
		r.Protocol,
		strconv.FormatUint(r.PacketsSrc, 10),
		strconv.FormatUint(r.PacketsDst, 10),
		strconv.FormatUint(r.BytesSrc, 10),
		strconv.FormatUint(r.BytesDst, 10),
		strconv.FormatFloat(r.Duration, 'f', -1, 64),
	}
}

// checkHeader verifies that a table's columns match the expected contract by
// name and order, so a reshuffled file cannot mis-parse into wrong fields.
func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("has %d columns, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i] != name {
			return fmt.Errorf("column %d is %q, want %q", i+1, got[i], name)
		}
	}
	return nil
}

// ReadFlowSummary loads a flow summary table written by the gatherer.
func ReadFlowSummary(path string) ([]model.FlowRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flow summary: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read flow summary: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("flow summary %s is empty", path)
	}
	if err := checkHeader(rows[0], summaryHeader); err != nil {
		return nil, fmt.Errorf("flow summary %s: %w", path, err)
	}

	records := make([]model.FlowRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseFlowRow(row)
		if err != nil {
			return nil, fmt.Errorf("bad row %d in %s: %w", i+2, path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseFlowRow(row []string) (model.FlowRecord, error) {
	var rec model.FlowRecord
	if len(row) < len(summaryHeader) {
		return rec, fmt.Errorf("expected %d fields, got %d", len(summaryHeader), len(row))
	}

	srcPort, err := strconv.ParseUint(row[2], 10, 16)
	if err != nil {
		return rec, fmt.Errorf("src_port: %w", err)
	}
	dstPort, err := strconv.ParseUint(row[3], 10, 16)
	if err != nil {
		return rec, fmt.Errorf("dst_port: %w", err)
	}
	packetsSrc, err := strconv.ParseUint(row[5], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("num_packets_src: %w", err)
	}
	packetsDst, err := strconv.ParseUint(row[6], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("num_packets_dst: %w", err)
	}
	bytesSrc, err := strconv.ParseUint(row[7], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("bytes_src: %w", err)
	}
	bytesDst, err := strconv.ParseUint(row[8], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("bytes_dst: %w", err)
	}
	duration, err := strconv.ParseFloat(row[9], 64)
	if err != nil {
		return rec, fmt.Errorf("duration: %w", err)
	}

	rec = model.FlowRecord{
		SrcIP:      row[0],
		DstIP:      row[1],
		SrcPort:    uint16(srcPort),
		DstPort:    uint16(dstPort),
		Protocol:   row[4],
		PacketsSrc: packetsSrc,
		PacketsDst: packetsDst,
		BytesSrc:   bytesSrc,
		BytesDst:   bytesDst,
		Duration:   duration,
	}
	return rec, nil
}
