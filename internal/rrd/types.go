package rrd

import (
	"fmt"
	"strings"
)

// OwnerKind identifies the entity a datasource is attributed to.
type OwnerKind uint8

const (
	OwnerHost OwnerKind = iota
	OwnerVM
	OwnerSR
)

// Owner names the entity a datasource belongs to. VM and SR owners carry a
// UUID; the UUID is treated as an opaque string and never validated here.
type Owner struct {
	Kind OwnerKind
	UUID string
}

func (o Owner) String() string {
	switch o.Kind {
	case OwnerVM:
		return "vm " + o.UUID
	case OwnerSR:
		return "sr " + o.UUID
	default:
		return "host"
	}
}

// ParseOwner parses the textual owner form used by the metadata blob:
// "host", "vm <uuid>" or "sr <uuid>", case-insensitive.
func ParseOwner(s string) (Owner, error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1 && strings.EqualFold(fields[0], "host"):
		return Owner{Kind: OwnerHost}, nil
	case len(fields) == 2 && strings.EqualFold(fields[0], "vm"):
		return Owner{Kind: OwnerVM, UUID: fields[1]}, nil
	case len(fields) == 2 && strings.EqualFold(fields[0], "sr"):
		return Owner{Kind: OwnerSR, UUID: fields[1]}, nil
	}
	return Owner{}, fmt.Errorf("unrecognized owner %q", s)
}

// ValueKind tags the wire representation of a datasource value. The kind is
// fixed by the metadata for the lifetime of a schema generation; readers
// only ever overwrite the payload, never the tag.
type ValueKind uint8

const (
	KindUnknown ValueKind = iota
	KindFloat
	KindInt64
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt64:
		return "int64"
	default:
		return "unknown"
	}
}

// Value is the tagged union holding one decoded measurement. KindUnknown
// appears only transiently on freshly parsed descriptors before the reader
// attaches real values; seeing it during value decoding is a bug.
type Value struct {
	Kind  ValueKind
	Float float64
	Int64 int64
}

// FloatValue returns a float-tagged value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Int64Value returns an integer-tagged value.
func Int64Value(i int64) Value { return Value{Kind: KindInt64, Int64: i} }

// DSType describes how a datasource value accumulates over time.
type DSType string

const (
	Absolute DSType = "absolute"
	Gauge    DSType = "gauge"
	Derive   DSType = "derive"
)

// Datasource is the schema plus current value for one named telemetry
// series. Fields other than Value are immutable within a schema generation.
type Datasource struct {
	Name        string
	Description string
	Value       Value
	Type        DSType
	Default     bool
	Min         float64
	Max         float64
	Units       string

	// Transform is an optional post-decode transform applied by a
	// downstream aggregation stage. It is carried through untouched and
	// never invoked during decoding.
	Transform func(float64) float64
}

// Source pairs a datasource with its owner.
type Source struct {
	Owner Owner
	Datasource
}

// Snapshot is the result of one successful decode: the producer timestamp
// and the sources in metadata declaration order.
type Snapshot struct {
	Timestamp uint64
	Sources   []Source
}
