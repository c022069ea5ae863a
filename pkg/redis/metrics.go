package redis

import (
	"sync/atomic"
	"time"
)

// tierMetrics counts shared tier traffic. Latencies are summed in nanoseconds.
type tierMetrics struct {
	reads   atomic.Uint64
	hits    atomic.Uint64
	misses  atomic.Uint64
	errors  atomic.Uint64
	writes  atomic.Uint64
	readNs  atomic.Uint64
	writeNs atomic.Uint64

	bytesSaved      atomic.Uint64
	invalidatedKeys atomic.Uint64
}

// TierStats is a point-in-time view of shared tier traffic
type TierStats struct {
	Reads           uint64        `json:"reads"`
	Hits            uint64        `json:"hits"`
	Misses          uint64        `json:"misses"`
	Errors          uint64        `json:"errors"`
	Writes          uint64        `json:"writes"`
	HitRate         float64       `json:"hit_rate"` // percentage of reads
	AvgReadLatency  time.Duration `json:"avg_read_latency"`
	AvgWriteLatency time.Duration `json:"avg_write_latency"`
	BytesSaved      uint64        `json:"compression_bytes_saved"`
	InvalidatedKeys uint64        `json:"invalidated_keys"`
}

func (m *tierMetrics) read(d time.Duration, hit bool, err error) {
	m.reads.Add(1)
	m.readNs.Add(uint64(d.Nanoseconds()))
	switch {
	case err != nil:
		m.errors.Add(1)
	case hit:
		m.hits.Add(1)
	default:
		m.misses.Add(1)
	}
}

func (m *tierMetrics) write(d time.Duration, err error) {
	m.writes.Add(1)
	m.writeNs.Add(uint64(d.Nanoseconds()))
	if err != nil {
		m.errors.Add(1)
	}
}

func (m *tierMetrics) snapshot() TierStats {
	s := TierStats{
		Reads:           m.reads.Load(),
		Hits:            m.hits.Load(),
		Misses:          m.misses.Load(),
		Errors:          m.errors.Load(),
		Writes:          m.writes.Load(),
		BytesSaved:      m.bytesSaved.Load(),
		InvalidatedKeys: m.invalidatedKeys.Load(),
	}
	if s.Reads > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Reads) * 100
		s.AvgReadLatency = time.Duration(m.readNs.Load() / s.Reads)
	}
	if s.Writes > 0 {
		s.AvgWriteLatency = time.Duration(m.writeNs.Load() / s.Writes)
	}
	return s
}
