package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/rrdgate/internal/check"
	"example.com/rrdgate/internal/common"
	"example.com/rrdgate/internal/export"
	"example.com/rrdgate/internal/region"
)

// Server polls the configured regions and serves their latest decoded
// snapshots.
type Server struct {
	pollers  []*Poller
	byName   map[string]*Poller
	interval time.Duration
	maxAge   time.Duration
	registry *prometheus.Registry
	started  time.Time
}

// NewServer opens every configured region and prepares its poller. Call
// Start to begin polling and Close to release everything.
func NewServer(opts Options) (*Server, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := &Server{
		byName:   make(map[string]*Poller, len(opts.Regions)),
		interval: opts.PollInterval,
		maxAge:   opts.MaxAge,
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
	}
	for _, rc := range opts.Regions {
		var provider region.Provider
		var err error
		if rc.Mapped {
			provider, err = region.OpenMapped(rc.Path)
		} else {
			provider, err = region.OpenFile(rc.Path)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		p := NewPoller(rc.Name, provider, opts.PollInterval)
		s.pollers = append(s.pollers, p)
		s.byName[rc.Name] = p
	}
	sources := make([]export.SnapshotSource, len(s.pollers))
	for i, p := range s.pollers {
		sources[i] = p
	}
	if err := s.registry.Register(export.NewCollector(sources...)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Start launches every poller.
func (s *Server) Start() {
	for _, p := range s.pollers {
		p.Start()
	}
}

// Close stops the pollers and closes their regions.
func (s *Server) Close() {
	for _, p := range s.pollers {
		p.Stop()
	}
}

func (s *Server) poller(r *http.Request) (*Poller, bool) {
	name := r.URL.Query().Get("region")
	if name == "" && len(s.pollers) == 1 {
		return s.pollers[0], true
	}
	p, ok := s.byName[name]
	return p, ok
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown region"})
		return
	}
	snap, ok := p.Latest()
	if !ok {
		status := errorResponse{Error: "no snapshot decoded yet"}
		if err := p.LastError(); err != nil {
			status.Error = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, export.NewSnapshotDoc(snap))
}

func (s *Server) handleDatasources(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown region"})
		return
	}
	snap, ok := p.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no snapshot decoded yet"})
		return
	}
	writeJSON(w, http.StatusOK, export.NewSnapshotDoc(snap).Datasources)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown region"})
		return
	}
	snap, ok := p.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no snapshot decoded yet"})
		return
	}
	findings := check.Evaluate(p.Name(), snap, check.Config{MaxAge: s.maxAge})
	writeJSON(w, http.StatusOK, check.MakeAcceptance(findings))
}

type regionStatus struct {
	Region           string `json:"region"`
	Updates          int64  `json:"updates"`
	NoUpdates        int64  `json:"noUpdates"`
	ChecksumFailures int64  `json:"checksumFailures"`
	BytesDecoded     string `json:"bytesDecoded"`
	LastUpdate       string `json:"lastUpdate,omitempty"`
	LastError        string `json:"lastError,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := make([]regionStatus, 0, len(s.pollers))
	for _, p := range s.pollers {
		m := p.Metrics()
		rs := regionStatus{
			Region:           p.Name(),
			Updates:          m.Updates,
			NoUpdates:        m.NoUpdates,
			ChecksumFailures: m.ChecksumFailures,
			BytesDecoded:     common.FormatBytes(m.BytesDecoded),
		}
		if !m.LastUpdate.IsZero() {
			rs.LastUpdate = m.LastUpdate.UTC().Format(time.RFC3339)
		}
		if err := p.LastError(); err != nil {
			rs.LastError = err.Error()
		}
		out = append(out, rs)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStream long-polls the region and writes one NDJSON record per
// decoded update until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	p, ok := s.poller(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown region"})
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	writer := export.NewNDJSONWriter(w)

	var lastSeq uint64
	if snap, ok := p.Latest(); ok {
		lastSeq = p.Seq()
		if err := writer.WriteSnapshot(export.NewSnapshotDoc(snap)); err != nil {
			return
		}
	}
	tick := s.interval / 2
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			seq := p.Seq()
			if seq == lastSeq {
				continue
			}
			lastSeq = seq
			snap, ok := p.Latest()
			if !ok {
				continue
			}
			if err := writer.WriteSnapshot(export.NewSnapshotDoc(snap)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		common.Logf("write response: %v", err)
	}
}
