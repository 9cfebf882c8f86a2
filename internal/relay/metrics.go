package relay

import "sync"

// Counter names.
const (
	MetricJoins               = "joins"
	MetricLeaves              = "leaves"
	MetricDisplaced           = "displaced"
	MetricRelayed             = "relayed"
	MetricDroppedNoTarget     = "dropped_no_target"
	MetricDroppedUnidentified = "dropped_unidentified"
	MetricDeliveryFailed      = "delivery_failed"
	MetricBroadcasts          = "broadcasts"
)

// Metrics is a concurrency-safe set of named counters.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
