// Package flow derives conversation summaries from captured packets.
package flow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"BotSpectra/internal/model"

	"go.uber.org/zap"
)

// Config controls how packets are grouped into flows.
type Config struct {
	// IdleTimeout is the inter-packet gap that splits a conversation into
	// separate flow segments.
	IdleTimeout time.Duration
	// MinPackets drops conversations with fewer packets than this.
	MinPackets int
	// NumWorkers is the number of goroutines segmenting conversations.
	NumWorkers int
}

// DefaultConfig returns the builder settings matching the capture pipeline
// defaults: 30s idle gap, single-packet conversations dropped.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Second,
		MinPackets:  2,
		NumWorkers:  4,
	}
}

// Builder turns a batch of parsed packets into flow records.
type Builder struct {
	cfg Config
	log *zap.Logger
}

// NewBuilder creates a Builder with the given configuration.
func NewBuilder(cfg Config, log *zap.Logger) *Builder {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.MinPackets <= 0 {
		cfg.MinPackets = 2
	}
	return &Builder{cfg: cfg, log: log}
}

// conversation is the set of packets exchanged between two endpoints,
// regardless of direction.
type conversation struct {
	packets []*model.PacketInfo
}

// endpoint renders one side of a conversation for keying.
func endpoint(ip fmt.Stringer, port uint16) string {
	return fmt.Sprintf("%s:%d", ip, port)
}

// conversationKey builds a direction-independent key for a packet by ordering
// the two endpoints, so both halves of a conversation land in the same group.
func conversationKey(ft model.FiveTuple) string {
	a := endpoint(ft.SrcIP, ft.SrcPort)
	b := endpoint(ft.DstIP, ft.DstPort)
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s-%s-%d", a, b, ft.Protocol)
}

// Build groups packets into conversations, splits each conversation into flow
// segments wherever the idle gap exceeds the configured timeout, and returns
// one summary record per segment. Conversations below MinPackets are dropped.
func (b *Builder) Build(packets []*model.PacketInfo) []model.FlowRecord {
	groups := make(map[string]*conversation)
	for _, p := range packets {
		key := conversationKey(p.FiveTuple)
		conv, ok := groups[key]
		if !ok {
			conv = &conversation{}
			groups[key] = conv
		}
		conv.packets = append(conv.packets, p)
	}

	b.log.Info("grouped packets into conversations",
		zap.Int("packets", len(packets)),
		zap.Int("conversations", len(groups)),
	)

	// Segment conversations concurrently; each conversation is independent.
	work := make(chan *conversation, len(groups))
	results := make(chan []model.FlowRecord, len(groups))

	var wg sync.WaitGroup
	wg.Add(b.cfg.NumWorkers)
	for i := 0; i < b.cfg.NumWorkers; i++ {
		go func() {
			defer wg.Done()
			for conv := range work {
				results <- b.segment(conv)
			}
		}()
	}

	for _, conv := range groups {
		if len(conv.packets) < b.cfg.MinPackets {
			continue
		}
		work <- conv
	}
	close(work)
	wg.Wait()
	close(results)

	var records []model.FlowRecord
	for segs := range results {
		records = append(records, segs...)
	}

	// Deterministic output order for the CSV hand-off.
	sort.Slice(records, func(i, j int) bool {
		if records[i].SrcIP != records[j].SrcIP {
			return records[i].SrcIP < records[j].SrcIP
		}
		if records[i].DstIP != records[j].DstIP {
			return records[i].DstIP < records[j].DstIP
		}
		if records[i].SrcPort != records[j].SrcPort {
			return records[i].SrcPort < records[j].SrcPort
		}
		return records[i].Duration < records[j].Duration
	})

	b.log.Info("built flow summary", zap.Int("flows", len(records)))
	return records
}

// segment sorts a conversation by time and cuts it into flow records at idle
// gaps longer than the configured timeout.
func (b *Builder) segment(conv *conversation) []model.FlowRecord {
	pkts := conv.packets
	sort.Slice(pkts, func(i, j int) bool {
		return pkts[i].Timestamp.Before(pkts[j].Timestamp)
	})

	var records []model.FlowRecord
	start := 0
	for i := 1; i <= len(pkts); i++ {
		if i < len(pkts) && pkts[i].Timestamp.Sub(pkts[i-1].Timestamp) <= b.cfg.IdleTimeout {
			continue
		}
		records = append(records, summarize(pkts[start:i]))
		start = i
	}
	return records
}

// summarize folds one flow segment into a record. The endpoint that sent the
// first packet becomes the record's source side.
func summarize(pkts []*model.PacketInfo) model.FlowRecord {
	first := pkts[0].FiveTuple
	rec := model.FlowRecord{
		SrcIP:    first.SrcIP.String(),
		DstIP:    first.DstIP.String(),
		SrcPort:  first.SrcPort,
		DstPort:  first.DstPort,
		Protocol: model.ProtocolName(first.Protocol),
	}

	for _, p := range pkts {
		if p.FiveTuple.SrcIP.Equal(first.SrcIP) && p.FiveTuple.SrcPort == first.SrcPort {
			rec.PacketsSrc++
			rec.BytesSrc += uint64(p.Length)
		} else {
			rec.PacketsDst++
			rec.BytesDst += uint64(p.Length)
		}
	}

	rec.Duration = pkts[len(pkts)-1].Timestamp.Sub(pkts[0].Timestamp).Seconds()
	return rec
}
