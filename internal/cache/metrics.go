package cache

import "sync/atomic"

// Metrics tracks per-tier hit and miss counters with atomics so the
// cache stays safe under concurrent use.
type Metrics struct {
	L1Hits   int64
	L1Misses int64
	L2Hits   int64
	L2Misses int64
	L2Errors int64
	Sets     int64
}

func (m *Metrics) l1Hit()   { atomic.AddInt64(&m.L1Hits, 1) }
func (m *Metrics) l1Miss()  { atomic.AddInt64(&m.L1Misses, 1) }
func (m *Metrics) l2Hit()   { atomic.AddInt64(&m.L2Hits, 1) }
func (m *Metrics) l2Miss()  { atomic.AddInt64(&m.L2Misses, 1) }
func (m *Metrics) l2Error() { atomic.AddInt64(&m.L2Errors, 1) }
func (m *Metrics) set()     { atomic.AddInt64(&m.Sets, 1) }

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	L1Hits   int64 `json:"l1_hits"`
	L1Misses int64 `json:"l1_misses"`
	L2Hits   int64 `json:"l2_hits"`
	L2Misses int64 `json:"l2_misses"`
	L2Errors int64 `json:"l2_errors"`
	Sets     int64 `json:"sets"`
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		L1Hits:   atomic.LoadInt64(&m.L1Hits),
		L1Misses: atomic.LoadInt64(&m.L1Misses),
		L2Hits:   atomic.LoadInt64(&m.L2Hits),
		L2Misses: atomic.LoadInt64(&m.L2Misses),
		L2Errors: atomic.LoadInt64(&m.L2Errors),
		Sets:     atomic.LoadInt64(&m.Sets),
	}
}
