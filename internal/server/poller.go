package server

import (
	"sync"
	"time"

	"example.com/rrdgate/internal/common"
	"example.com/rrdgate/internal/region"
	"example.com/rrdgate/internal/rrd"
)

// Poller owns one region's reader and polls it on a fixed cadence. The
// reader's checksum cache lives for the poller's lifetime, so steady-state
// polls cost a checksum comparison and nothing else.
type Poller struct {
	name     string
	provider region.Provider
	reader   *rrd.Reader
	metrics  *common.Metrics
	interval time.Duration

	mu      sync.RWMutex
	latest  rrd.Snapshot
	has     bool
	seq     uint64
	lastErr error

	stopOnce sync.Once
	started  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewPoller wraps provider with a fresh reader. The poller takes ownership
// of the provider and closes it on Stop.
func NewPoller(name string, provider region.Provider, interval time.Duration) *Poller {
	p := &Poller{
		name:     name,
		provider: provider,
		reader:   rrd.NewReader(),
		metrics:  common.NewMetrics(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.reader.SetMetrics(p.metrics)
	return p
}

func (p *Poller) Name() string { return p.name }

// Latest returns the most recently decoded snapshot, if one exists.
func (p *Poller) Latest() (rrd.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.has
}

// Seq returns a counter that increments once per decoded update.
func (p *Poller) Seq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seq
}

// LastError returns the error from the most recent poll, if it failed.
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Poller) Metrics() common.MetricsSnapshot {
	return p.metrics.Snapshot()
}

// Poll performs one read of the region. A "no update" outcome is a
// successful poll.
func (p *Poller) Poll() error {
	buf, err := p.provider.Bytes()
	if err == nil {
		var snap rrd.Snapshot
		var updated bool
		snap, updated, err = p.reader.Read(buf)
		if err == nil && updated {
			p.mu.Lock()
			p.latest = snap
			p.has = true
			p.seq++
			p.lastErr = nil
			p.mu.Unlock()
			return nil
		}
	}
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

// Start launches the poll loop.
func (p *Poller) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	p.metrics.Start()
	go func() {
		defer close(p.done)
		if err := p.Poll(); err != nil {
			common.Logf("region %s: poll: %v", p.name, err)
		}
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.Poll(); err != nil {
					common.Logf("region %s: poll: %v", p.name, err)
				}
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and closes the provider. Safe to call more than
// once; only meaningful after Start.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.mu.RLock()
		started := p.started
		p.mu.RUnlock()
		if started {
			<-p.done
		}
		p.metrics.Stop()
		if err := p.provider.Close(); err != nil {
			common.Logf("region %s: close: %v", p.name, err)
		}
	})
}
