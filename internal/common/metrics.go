package common

import (
	"fmt"
	"sync"
	"time"
)

// Metrics accumulates poll outcomes for one monitored region.
type Metrics struct {
	mu           sync.Mutex
	start        time.Time
	end          time.Time
	updates      int64
	noUpdates    int64
	crcFailures  int64
	bytesDecoded int64
	lastUpdate   time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

// AddUpdate records a successful decode of size bytes.
func (m *Metrics) AddUpdate(size int64) {
	m.mu.Lock()
	m.updates++
	if size > 0 {
		m.bytesDecoded += size
	}
	m.lastUpdate = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) IncNoUpdate() {
	m.mu.Lock()
	m.noUpdates++
	m.mu.Unlock()
}

func (m *Metrics) IncChecksumFailure() {
	m.mu.Lock()
	m.crcFailures++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Duration:         m.elapsedLocked(),
		Updates:          m.updates,
		NoUpdates:        m.noUpdates,
		ChecksumFailures: m.crcFailures,
		BytesDecoded:     m.bytesDecoded,
		LastUpdate:       m.lastUpdate,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration         time.Duration
	Updates          int64
	NoUpdates        int64
	ChecksumFailures int64
	BytesDecoded     int64
	LastUpdate       time.Time
}

// Polls returns the total number of read attempts that completed without
// error, whether or not they carried new data.
func (s MetricsSnapshot) Polls() int64 {
	return s.Updates + s.NoUpdates
}

// UpdateRate returns successful decodes per second over the observed
// duration.
func (s MetricsSnapshot) UpdateRate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Updates) / s.Duration.Seconds()
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}
