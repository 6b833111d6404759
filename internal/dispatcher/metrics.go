package dispatcher

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects dispatch statistics keyed by result source.
type Metrics struct {
	mu sync.RWMutex

	sources map[string]*SourceMetrics

	totalDispatches uint64
	totalFailures   uint64
	totalFallbacks  uint64
	totalUnhandled  uint64
	totalRejected   uint64

	totalDuration time.Duration
}

// SourceMetrics holds counters for one answer source: a plugin name,
// SourceLLM, or SourceNone.
type SourceMetrics struct {
	Source        string
	DispatchCount uint64
	ErrorCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastDispatch  time.Time
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		sources: make(map[string]*SourceMetrics),
	}
}

// record accounts for one completed dispatch.
func (m *Metrics) record(result DispatchResult, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += duration

	if result.Err != nil {
		m.totalFailures++
	}
	if result.Source == SourceLLM {
		m.totalFallbacks++
	}
	if !result.Handled {
		m.totalUnhandled++
	}

	sm := m.sources[result.Source]
	if sm == nil {
		sm = &SourceMetrics{
			Source:      result.Source,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.sources[result.Source] = sm
	}

	sm.DispatchCount++
	sm.TotalDuration += duration
	sm.LastDispatch = time.Now()

	if duration < sm.MinDuration {
		sm.MinDuration = duration
	}
	if duration > sm.MaxDuration {
		sm.MaxDuration = duration
	}

	if result.Err != nil {
		sm.ErrorCount++
	}
}

// recordBusy accounts for a command rejected by the busy guard.
func (m *Metrics) recordBusy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRejected++
}

// TotalDispatches returns the number of commands dispatched.
func (m *Metrics) TotalDispatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches
}

// TotalFailures returns the number of dispatches that carried an error.
func (m *Metrics) TotalFailures() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalFailures
}

// TotalFallbacks returns the number of commands answered by the model.
func (m *Metrics) TotalFallbacks() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalFallbacks
}

// TotalUnhandled returns the number of commands nothing could answer.
func (m *Metrics) TotalUnhandled() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalUnhandled
}

// TotalRejected returns the number of commands turned away busy.
func (m *Metrics) TotalRejected() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRejected
}

// AverageDuration returns the mean dispatch duration.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalDispatches == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalDispatches)
}

// SourceStats returns a copy of the counters for one source, or nil if
// that source has never answered.
func (m *Metrics) SourceStats(source string) *SourceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sm := m.sources[source]
	if sm == nil {
		return nil
	}

	out := *sm
	return &out
}

// TopSources returns the n most used sources, busiest first.
func (m *Metrics) TopSources(n int) []*SourceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sources := make([]*SourceMetrics, 0, len(m.sources))
	for _, sm := range m.sources {
		out := *sm
		sources = append(sources, &out)
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].DispatchCount > sources[j].DispatchCount
	})

	if n > len(sources) {
		n = len(sources)
	}
	return sources[:n]
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources = make(map[string]*SourceMetrics)
	m.totalDispatches = 0
	m.totalFailures = 0
	m.totalFallbacks = 0
	m.totalUnhandled = 0
	m.totalRejected = 0
	m.totalDuration = 0
}

// MetricsSnapshot is a point-in-time copy of the global counters.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalFailures   uint64
	TotalFallbacks  uint64
	TotalUnhandled  uint64
	TotalRejected   uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	SourceCount     int
	Timestamp       time.Time
}

// Snapshot returns the current global counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		TotalDispatches: m.totalDispatches,
		TotalFailures:   m.totalFailures,
		TotalFallbacks:  m.totalFallbacks,
		TotalUnhandled:  m.totalUnhandled,
		TotalRejected:   m.totalRejected,
		TotalDuration:   m.totalDuration,
		SourceCount:     len(m.sources),
		Timestamp:       time.Now(),
	}

	if m.totalDispatches > 0 {
		snapshot.AverageDuration = m.totalDuration / time.Duration(m.totalDispatches)
	}

	return snapshot
}

// AverageSourceDuration returns the mean dispatch duration for the source.
func (sm *SourceMetrics) AverageSourceDuration() time.Duration {
	if sm.DispatchCount == 0 {
		return 0
	}
	return sm.TotalDuration / time.Duration(sm.DispatchCount)
}

// ErrorRate returns the share of dispatches that failed, as a percentage.
func (sm *SourceMetrics) ErrorRate() float64 {
	if sm.DispatchCount == 0 {
		return 0
	}
	return float64(sm.ErrorCount) / float64(sm.DispatchCount) * 100
}
