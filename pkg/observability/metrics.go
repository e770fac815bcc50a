package observability

import (
	"sort"
	"sync"
	"time"
)

// Metrics records counters and timings for a run.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag represents a key-value pair for metric labeling.
type Tag struct {
	Key   string
	Value string
}

// T creates a new Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(name string, value int64, tags ...Tag)           {}
func (NoopMetrics) Timing(name string, duration time.Duration, tags ...Tag) {}

// InMemoryMetrics keeps metrics in memory so a run can summarise them.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	timings  map[string][]time.Duration
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters: make(map[string]int64),
		timings:  make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[formatKey(name, tags)] += value
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := formatKey(name, tags)
	m.timings[key] = append(m.timings[key], duration)
}

// GetCounter returns the current value of a counter.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[formatKey(name, tags)]
}

// GetTimings returns all recorded timings.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timings[formatKey(name, tags)]
}

// MeanTiming returns the average of the recorded timings, or 0.
func (m *InMemoryMetrics) MeanTiming(name string, tags ...Tag) time.Duration {
	timings := m.GetTimings(name, tags...)
	if len(timings) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range timings {
		total += d
	}
	return total / time.Duration(len(timings))
}

// Counters returns a sorted snapshot of counter keys and values.
func (m *InMemoryMetrics) Counters() []CounterValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CounterValue, 0, len(m.counters))
	for key, value := range m.counters {
		out = append(out, CounterValue{Key: key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CounterValue is one entry of a counter snapshot.
type CounterValue struct {
	Key   string
	Value int64
}

func formatKey(name string, tags []Tag) string {
	key := name
	for _, t := range tags {
		key += ":" + t.Key + "=" + t.Value
	}
	return key
}

// Metric names recorded by a purge run.
const (
	MetricDeleted      = "purge.deleted"
	MetricAlreadyGone  = "purge.already_gone"
	MetricFailed       = "purge.failed"
	MetricSkipped      = "purge.skipped"
	MetricPauses       = "purge.pauses"
	MetricRateLimited  = "purge.rate_limited"
	MetricDeleteCall   = "purge.delete_call"
	MetricPagesFetched = "fetch.pages"
)
