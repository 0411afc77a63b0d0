package check

import (
	"math"
	"testing"
	"time"

	"example.com/rrdgate/internal/rrd"
)

func fixedNow() time.Time {
	return time.Unix(1_700_000_100, 0)
}

func floatSource(name string, value, min, max float64) rrd.Source {
	return rrd.Source{
		Owner: rrd.Owner{Kind: rrd.OwnerHost},
		Datasource: rrd.Datasource{
			Name:  name,
			Type:  rrd.Gauge,
			Value: rrd.FloatValue(value),
			Min:   min,
			Max:   max,
		},
	}
}

func TestEvaluateCleanSnapshot(t *testing.T) {
	snap := rrd.Snapshot{
		Timestamp: 1_700_000_090,
		Sources: []rrd.Source{
			floatSource("cpu0", 0.5, 0, 1),
			floatSource("mem", 12, math.Inf(-1), math.Inf(1)),
		},
	}
	findings := Evaluate("test.rrd", snap, Config{MaxAge: time.Minute, Now: fixedNow})
	if len(findings) != 0 {
		t.Fatalf("got %d findings, want 0: %+v", len(findings), findings)
	}
	rep := MakeAcceptance(findings)
	if !rep.Summary.Pass {
		t.Fatal("clean snapshot did not pass")
	}
}

func TestEvaluateRules(t *testing.T) {
	tests := []struct {
		name     string
		snap     rrd.Snapshot
		cfg      Config
		ruleId   string
		severity Severity
	}{
		{
			name: "value above max",
			snap: rrd.Snapshot{
				Timestamp: 1_700_000_099,
				Sources:   []rrd.Source{floatSource("cpu0", 1.5, 0, 1)},
			},
			ruleId:   "RRD001",
			severity: ERROR,
		},
		{
			name: "value below min",
			snap: rrd.Snapshot{
				Timestamp: 1_700_000_099,
				Sources:   []rrd.Source{floatSource("cpu0", -0.5, 0, 1)},
			},
			ruleId:   "RRD001",
			severity: ERROR,
		},
		{
			name: "duplicate name",
			snap: rrd.Snapshot{
				Timestamp: 1_700_000_099,
				Sources: []rrd.Source{
					floatSource("cpu0", 0.5, 0, 1),
					floatSource("cpu0", 0.6, 0, 1),
				},
			},
			ruleId:   "RRD002",
			severity: WARN,
		},
		{
			name: "empty name",
			snap: rrd.Snapshot{
				Timestamp: 1_700_000_099,
				Sources:   []rrd.Source{floatSource("", 0.5, 0, 1)},
			},
			ruleId:   "RRD003",
			severity: ERROR,
		},
		{
			name: "stale snapshot",
			snap: rrd.Snapshot{
				Timestamp: 1_700_000_000,
				Sources:   []rrd.Source{floatSource("cpu0", 0.5, 0, 1)},
			},
			cfg:      Config{MaxAge: time.Minute},
			ruleId:   "RRD004",
			severity: WARN,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.Now = fixedNow
			findings := Evaluate("test.rrd", tc.snap, cfg)
			if len(findings) != 1 {
				t.Fatalf("got %d findings, want 1: %+v", len(findings), findings)
			}
			if findings[0].RuleId != tc.ruleId {
				t.Fatalf("rule = %s, want %s", findings[0].RuleId, tc.ruleId)
			}
			if findings[0].Severity != tc.severity {
				t.Fatalf("severity = %s, want %s", findings[0].Severity, tc.severity)
			}
		})
	}
}

func TestEvaluateIntegerBounds(t *testing.T) {
	src := rrd.Source{
		Owner: rrd.Owner{Kind: rrd.OwnerVM, UUID: "abc"},
		Datasource: rrd.Datasource{
			Name:  "reads",
			Type:  rrd.Derive,
			Value: rrd.Int64Value(-3),
			Min:   0,
			Max:   math.Inf(1),
		},
	}
	findings := Evaluate("test.rrd", rrd.Snapshot{Timestamp: 1, Sources: []rrd.Source{src}}, Config{Now: fixedNow})
	if len(findings) != 1 || findings[0].RuleId != "RRD001" {
		t.Fatalf("findings = %+v, want single RRD001", findings)
	}
	if findings[0].Owner != "vm abc" {
		t.Fatalf("owner = %q, want %q", findings[0].Owner, "vm abc")
	}
}

func TestMakeAcceptanceCounts(t *testing.T) {
	findings := []Diagnostic{
		{RuleId: "RRD001", Severity: ERROR},
		{RuleId: "RRD002", Severity: WARN},
		{RuleId: "RRD004", Severity: WARN},
	}
	rep := MakeAcceptance(findings)
	if rep.Summary.Total != 3 || rep.Summary.Errors != 1 || rep.Summary.Warnings != 2 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if rep.Summary.Pass {
		t.Fatal("report with errors passed")
	}
	if rep2 := MakeAcceptance(nil); !rep2.Summary.Pass {
		t.Fatal("empty report did not pass")
	}
}
