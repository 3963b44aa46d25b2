// Package capture performs duration-bounded live traffic capture.
package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"BotSpectra/internal/engine/protocol"
	"BotSpectra/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"
)

// Capturer opens a network interface and records traffic for a bounded
// duration, writing the raw capture to a pcap file on the shared volume.
type Capturer struct {
	snaplen int32
	promisc bool
	log     *zap.Logger
}

// New creates a Capturer.
func New(snaplen int32, promisc bool, log *zap.Logger) *Capturer {
	return &Capturer{snaplen: snaplen, promisc: promisc, log: log}
}

// Run captures traffic on iface for the given duration and writes it to
// pcapPath. It returns the parsed IPv4 TCP/UDP packets for downstream flow
// building. Cancelling the context stops the capture early.
func (c *Capturer) Run(ctx context.Context, iface string, duration time.Duration, pcapPath string) ([]*model.PacketInfo, error) {
	handle, err := pcap.OpenLive(iface, c.snaplen, c.promisc, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", iface, err)
	}
	defer handle.Close()

	file, err := os.Create(pcapPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file: %w", err)
	}
	defer file.Close()

	writer := pcapgo.NewWriter(file)
	linkType := handle.LinkType()
	if linkType == layers.LinkTypeNull {
		linkType = layers.LinkTypeEthernet
	}
	if err := writer.WriteFileHeader(uint32(c.snaplen), linkType); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	c.log.Info("capture started",
		zap.String("interface", iface),
		zap.Duration("duration", duration),
		zap.String("pcap", pcapPath),
	)

	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetChan := packetSource.Packets()

	var packets []*model.PacketInfo
	captured := 0

	for {
		select {
		case <-ctx.Done():
			c.log.Warn("capture cancelled", zap.Int("packets", captured))
			return packets, ctx.Err()
		case <-deadline.C:
			c.log.Info("capture finished", zap.Int("packets", captured), zap.Int("flowable", len(packets)))
			return packets, nil
		case packet, ok := <-packetChan:
			if !ok {
				c.log.Info("capture source closed", zap.Int("packets", captured))
				return packets, nil
			}
			captured++

			meta := packet.Metadata()
			if err := writer.WritePacket(meta.CaptureInfo, packet.Data()); err != nil {
				return packets, fmt.Errorf("failed to write packet to pcap: %w", err)
			}

			info, err := protocol.ParsePacket(packet)
			if err != nil {
				continue // Non-IPv4 or non-TCP/UDP traffic still lands in the pcap.
			}
			packets = append(packets, info)

			if captured%10000 == 0 {
				c.log.Debug("capture progress", zap.Int("packets", captured))
			}
		}
	}
}
