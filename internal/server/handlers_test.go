package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"example.com/rrdgate/internal/check"
	"example.com/rrdgate/internal/export"
)

func newTestServer(t *testing.T) (*Server, http.Handler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rrd")
	writeRegionFile(t, path, 1470332776, 3.5)
	s, err := NewServer(Options{
		Regions:      []RegionConfig{{Name: "test.rrd", Path: path}},
		PollInterval: 50 * time.Millisecond,
		MaxAge:       0,
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	t.Cleanup(s.Close)
	return s, NewRouter(s), path
}

func TestHandleSnapshot(t *testing.T) {
	s, router, _ := newTestServer(t)

	// Nothing decoded yet.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before first poll = %d, want 503", rec.Code)
	}

	if err := s.pollers[0].Poll(); err != nil {
		t.Fatalf("poll returned error: %v", err)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var doc export.SnapshotDoc
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Timestamp != 1470332776 {
		t.Fatalf("timestamp = %d", doc.Timestamp)
	}
	if len(doc.Datasources) != 1 || doc.Datasources[0].Name != "cpu0" {
		t.Fatalf("datasources = %+v", doc.Datasources)
	}
	if doc.Datasources[0].Value != 3.5 {
		t.Fatalf("value = %v, want 3.5", doc.Datasources[0].Value)
	}
}

func TestHandleSnapshotUnknownRegion(t *testing.T) {
	s, router, _ := newTestServer(t)
	if err := s.pollers[0].Poll(); err != nil {
		t.Fatalf("poll returned error: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot?region=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCheck(t *testing.T) {
	s, router, _ := newTestServer(t)
	if err := s.pollers[0].Poll(); err != nil {
		t.Fatalf("poll returned error: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/check", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var rep check.AcceptanceReport
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !rep.Summary.Pass {
		t.Fatalf("report did not pass: %+v", rep)
	}
}

func TestHandleStatusAndHealthz(t *testing.T) {
	s, router, _ := newTestServer(t)
	if err := s.pollers[0].Poll(); err != nil {
		t.Fatalf("poll returned error: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var statuses []regionStatus
	if err := json.NewDecoder(rec.Body).Decode(&statuses); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Region != "test.rrd" || statuses[0].Updates != 1 {
		t.Fatalf("statuses = %+v", statuses)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	s, router, _ := newTestServer(t)
	if err := s.pollers[0].Poll(); err != nil {
		t.Fatalf("poll returned error: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "rrdgate_datasource_value") {
		t.Fatalf("metrics output missing datasource value family:\n%s", body)
	}
	if !strings.Contains(body, `name="cpu0"`) {
		t.Fatal("metrics output missing cpu0 series")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "no regions", opts: Options{}, wantErr: true},
		{name: "missing path", opts: Options{Regions: []RegionConfig{{Name: "x"}}}, wantErr: true},
		{
			name: "duplicate names",
			opts: Options{Regions: []RegionConfig{
				{Path: "/var/lib/a/test.rrd"},
				{Path: "/var/lib/b/test.rrd"},
			}},
			wantErr: true,
		},
		{name: "defaults", opts: Options{Regions: []RegionConfig{{Path: "/tmp/test.rrd"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("validate succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("validate returned error: %v", err)
			}
			if tc.opts.Regions[0].Name != "test.rrd" {
				t.Fatalf("defaulted name = %q", tc.opts.Regions[0].Name)
			}
			if tc.opts.PollInterval != 5*time.Second {
				t.Fatalf("defaulted interval = %v", tc.opts.PollInterval)
			}
		})
	}
}
