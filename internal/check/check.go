// Package check evaluates decoded snapshots against the schema the
// producer declared for them: bounds, naming and freshness. It consumes
// the decoder's output only; nothing here touches the wire format.
package check

import (
	"fmt"
	"time"

	"example.com/rrdgate/internal/rrd"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// Diagnostic is one finding about one datasource (or the snapshot as a
// whole when Datasource is empty).
type Diagnostic struct {
	Ts         time.Time `json:"ts"`
	Region     string    `json:"region,omitempty"`
	Datasource string    `json:"datasource,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	RuleId     string    `json:"ruleId"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	Findings []Diagnostic `json:"findings,omitempty"`
}

// Config tunes the snapshot checks.
type Config struct {
	// MaxAge flags snapshots whose producer timestamp (seconds) is older
	// than this. Zero disables the freshness check.
	MaxAge time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Evaluate runs every check against the snapshot and returns the findings
// in datasource order.
func Evaluate(regionName string, snap rrd.Snapshot, cfg Config) []Diagnostic {
	now := cfg.now()
	var findings []Diagnostic
	add := func(src *rrd.Source, ruleId string, sev Severity, format string, args ...interface{}) {
		d := Diagnostic{
			Ts:       now,
			Region:   regionName,
			RuleId:   ruleId,
			Severity: sev,
			Message:  fmt.Sprintf(format, args...),
		}
		if src != nil {
			d.Datasource = src.Name
			d.Owner = src.Owner.String()
		}
		findings = append(findings, d)
	}

	if cfg.MaxAge > 0 {
		produced := time.Unix(int64(snap.Timestamp), 0)
		if age := now.Sub(produced); age > cfg.MaxAge {
			add(nil, "RRD004", WARN, "snapshot is %s old (limit %s)", age.Round(time.Second), cfg.MaxAge)
		}
	}

	seen := make(map[string]int)
	for i := range snap.Sources {
		src := &snap.Sources[i]
		key := src.Owner.String() + "/" + src.Name
		if src.Name == "" {
			add(src, "RRD003", ERROR, "datasource has an empty name")
		} else if first, dup := seen[key]; dup {
			add(src, "RRD002", WARN, "duplicate of datasource %d", first)
		} else {
			seen[key] = i
		}

		value, ok := numericValue(src.Value)
		if !ok {
			add(src, "RRD005", ERROR, "value kind is %s", src.Value.Kind)
			continue
		}
		if value < src.Min || value > src.Max {
			add(src, "RRD001", ERROR, "value %g outside declared bounds [%g, %g]", value, src.Min, src.Max)
		}
	}
	return findings
}

func numericValue(v rrd.Value) (float64, bool) {
	switch v.Kind {
	case rrd.KindFloat:
		return v.Float, true
	case rrd.KindInt64:
		return float64(v.Int64), true
	default:
		return 0, false
	}
}

// MakeAcceptance folds findings into a report. INFO findings count toward
// the total only; the snapshot passes when there are no errors.
func MakeAcceptance(findings []Diagnostic) AcceptanceReport {
	var rep AcceptanceReport
	rep.Findings = findings
	for _, d := range findings {
		rep.Summary.Total++
		switch d.Severity {
		case ERROR:
			rep.Summary.Errors++
		case WARN:
			rep.Summary.Warnings++
		}
	}
	rep.Summary.Pass = rep.Summary.Errors == 0
	return rep
}
