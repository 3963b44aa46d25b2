package model

import (
	"fmt"
	"net"
	"time"
)

// FiveTuple represents the 5-tuple of a network packet.
type FiveTuple struct {
	SrcIP    net.IP
	DstIP    net.IP
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	Timestamp time.Time
	FiveTuple FiveTuple
	Length    int
}

// FlowRecord is one row of a flow summary: a single conversation segment
// between two endpoints with directional packet and byte counts. The "source"
// side is the endpoint that sent the first packet of the segment.
type FlowRecord struct {
	SrcIP      string  `json:"src_ip"`
	DstIP      string  `json:"dst_ip"`
	SrcPort    uint16  `json:"src_port"`
	DstPort    uint16  `json:"dst_port"`
	Protocol   string  `json:"protocol"`
	PacketsSrc uint64  `json:"num_packets_src"`
	PacketsDst uint64  `json:"num_packets_dst"`
	BytesSrc   uint64  `json:"bytes_src"`
	BytesDst   uint64  `json:"bytes_dst"`
	Duration   float64 `json:"duration"` // seconds
}

// Verdict is the output of a classifier for a single flow record.
type Verdict struct {
	Label       string
	Probability float64
}

const (
	LabelBotnet = "botnet"
	LabelBenign = "benign"
)

// Prediction pairs a flow record with the verdict a model produced for it.
type Prediction struct {
	Flow        FlowRecord `json:"flow"`
	Label       string     `json:"label"`
	Probability float64    `json:"probability"`
}

// AnalysisResult summarizes a single analysis run.
type AnalysisResult struct {
	RunID       string
	Model       string
	InputPath   string
	OutputPath  string
	Rows        int
	Botnet      int
	BotnetRatio float64
	StartedAt   time.Time
	Elapsed     time.Duration
}

// protocolNames maps IP protocol numbers to the names used in flow summaries.
var protocolNames = map[uint8]string{
	1:   "ICMP",
	2:   "IGMP",
	6:   "TCP",
	17:  "UDP",
	41:  "IPv6",
	47:  "GRE",
	50:  "ESP",
	51:  "AH",
	58:  "IPv6-ICMP",
	88:  "EIGRP",
	89:  "OSPFIGP",
	132: "SCTP",
	137: "MPLS-in-IP",
}

// ProtocolName returns the textual name for an IP protocol number.
func ProtocolName(proto uint8) string {
	if name, ok := protocolNames[proto]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Protocol Codification: %d", proto)
}
