// Package pcap reads previously captured traffic from pcap files.
package pcap

import (
	"BotSpectra/internal/engine/protocol"
	"BotSpectra/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

// Reader reads packets from a pcap file.
type Reader struct {
	handle *pcap.Handle
	log    *zap.Logger
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string, log *zap.Logger) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle, log: log}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadAll parses every packet in the file and returns the IPv4 TCP/UDP
// subset. Unparseable packets are counted and skipped.
func (r *Reader) ReadAll() ([]*model.PacketInfo, error) {
	var packets []*model.PacketInfo
	skipped := 0

	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		info, err := protocol.ParsePacket(packet)
		if err != nil {
			skipped++
			continue
		}
		packets = append(packets, info)
	}

	if skipped > 0 {
		r.log.Debug("skipped unparseable packets", zap.Int("count", skipped))
	}
	return packets, nil
}
