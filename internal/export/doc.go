// Package export renders decoded snapshots for consumers: JSON documents,
// NDJSON streams and Prometheus metrics.
package export

import (
	"math"
	"strconv"

	"example.com/rrdgate/internal/rrd"
)

// SnapshotDoc is the JSON representation of one decoded snapshot.
type SnapshotDoc struct {
	Timestamp   uint64          `json:"timestamp"`
	Datasources []DatasourceDoc `json:"datasources"`
}

// DatasourceDoc mirrors the producer's metadata fields plus the current
// value. Bounds are strings because they may be infinite, which JSON
// numbers cannot carry; the spellings match what the producer writes.
type DatasourceDoc struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Owner       string      `json:"owner"`
	Units       string      `json:"units,omitempty"`
	Type        string      `json:"type"`
	ValueType   string      `json:"value_type"`
	Value       interface{} `json:"value"`
	Min         string      `json:"min"`
	Max         string      `json:"max"`
	Default     bool        `json:"default"`
}

// NewSnapshotDoc converts a decoded snapshot into its JSON document form.
func NewSnapshotDoc(snap rrd.Snapshot) SnapshotDoc {
	doc := SnapshotDoc{
		Timestamp:   snap.Timestamp,
		Datasources: make([]DatasourceDoc, 0, len(snap.Sources)),
	}
	for _, src := range snap.Sources {
		doc.Datasources = append(doc.Datasources, DatasourceDoc{
			Name:        src.Name,
			Description: src.Description,
			Owner:       src.Owner.String(),
			Units:       src.Units,
			Type:        string(src.Type),
			ValueType:   src.Value.Kind.String(),
			Value:       jsonValue(src.Value),
			Min:         FormatBound(src.Min),
			Max:         FormatBound(src.Max),
			Default:     src.Default,
		})
	}
	return doc
}

func jsonValue(v rrd.Value) interface{} {
	switch v.Kind {
	case rrd.KindFloat:
		// NaN and infinities have no JSON number encoding.
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return FormatBound(v.Float)
		}
		return v.Float
	case rrd.KindInt64:
		return v.Int64
	default:
		return nil
	}
}

// FormatBound renders a float the way the producer spells bounds: "inf"
// and "-inf" for the infinities, plain decimal otherwise.
func FormatBound(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
