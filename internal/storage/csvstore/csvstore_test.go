package csvstore

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"BotSpectra/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFlows() []model.FlowRecord {
	return []model.FlowRecord{
		{
			SrcIP: "192.168.1.10", DstIP: "10.0.0.1", SrcPort: 40000, DstPort: 80,
			Protocol: "TCP", PacketsSrc: 12, PacketsDst: 10,
			BytesSrc: 2400, BytesDst: 18000, Duration: 4.25,
		},
		{
			SrcIP: "172.16.0.5", DstIP: "8.8.8.8", SrcPort: 5353, DstPort: 53,
			Protocol: "UDP", PacketsSrc: 2, PacketsDst: 2,
			BytesSrc: 140, BytesDst: 300, Duration: 0.02,
		},
	}
}

// The summary written by the gatherer must load in the analyzer unchanged.
func TestFlowSummaryHandoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows_summary.csv")

	require.NoError(t, WriteFlowSummary(path, sampleFlows()))

	got, err := ReadFlowSummary(path)
	require.NoError(t, err)
	assert.Equal(t, sampleFlows(), got)
}

// Predictions written by the analyzer must load in the visualizer unchanged.
func TestPredictionsHandoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")

	preds := []model.Prediction{
		{Flow: sampleFlows()[0], Label: model.LabelBotnet, Probability: 0.91},
		{Flow: sampleFlows()[1], Label: model.LabelBenign, Probability: 0.07},
	}
	require.NoError(t, WritePredictions(path, preds))

	got, err := ReadPredictions(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.LabelBotnet, got[0].Label)
	assert.InDelta(t, 0.91, got[0].Probability, 1e-9)
	assert.Equal(t, preds[0].Flow, got[0].Flow)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFlowSummary(filepath.Join(dir, "flows_summary.csv"), sampleFlows()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "flows_summary.csv", entries[0].Name())
}

// The services may run as different users, so the artifacts must be
// world-readable on the shared volume.
func TestWrittenFilesAreReadableAcrossServices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows_summary.csv")
	require.NoError(t, WriteFlowSummary(path, sampleFlows()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestReadFlowSummaryRejectsReorderedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reordered.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(file)

	// Same ten columns with src and dst swapped.
	require.NoError(t, w.Write([]string{
		"dst_ip", "src_ip", "dst_port", "src_port", "protocol",
		"num_packets_dst", "num_packets_src", "bytes_dst", "bytes_src", "duration",
	}))
	require.NoError(t, w.Write([]string{
		"10.0.0.1", "192.168.1.10", "80", "40000", "TCP", "10", "12", "18000", "2400", "4.25",
	}))
	w.Flush()
	require.NoError(t, file.Close())

	_, err = ReadFlowSummary(path)
	assert.ErrorContains(t, err, "column 1")
}

func TestReadFlowSummaryRejectsWrongShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(file)
	require.NoError(t, w.Write([]string{"src_ip", "dst_ip"}))
	w.Flush()
	require.NoError(t, file.Close())

	_, err = ReadFlowSummary(path)
	assert.Error(t, err)
}

func TestReadFlowSummaryRejectsBadNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_rows.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(file)
	require.NoError(t, w.Write(summaryHeader))
	require.NoError(t, w.Write([]string{
		"1.2.3.4", "5.6.7.8", "eighty", "443", "TCP", "1", "1", "10", "10", "0.5",
	}))
	w.Flush()
	require.NoError(t, file.Close())

	_, err = ReadFlowSummary(path)
	assert.ErrorContains(t, err, "src_port")
}
