package rrd

import (
	"errors"
	"math"
	"testing"
)

func TestParseMetadataDefaults(t *testing.T) {
	doc := []byte(`{"datasources": {"cpu0": {"value_type": "float", "type": "gauge", "owner": "host"}}}`)
	sources, err := ParseMetadata(doc)
	if err != nil {
		t.Fatalf("ParseMetadata returned error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	src := sources[0]
	if src.Name != "cpu0" {
		t.Fatalf("name = %q, want cpu0", src.Name)
	}
	if src.Owner.Kind != OwnerHost {
		t.Fatalf("owner kind = %v, want host", src.Owner.Kind)
	}
	if src.Type != Gauge {
		t.Fatalf("type = %q, want gauge", src.Type)
	}
	if src.Value.Kind != KindFloat {
		t.Fatalf("value kind = %v, want float", src.Value.Kind)
	}
	if !math.IsInf(src.Min, -1) {
		t.Fatalf("min = %v, want -Inf", src.Min)
	}
	if !math.IsInf(src.Max, 1) {
		t.Fatalf("max = %v, want +Inf", src.Max)
	}
	if src.Default {
		t.Fatal("default = true, want false")
	}
	if src.Description != "" || src.Units != "" {
		t.Fatalf("description/units = %q/%q, want empty", src.Description, src.Units)
	}
}

func TestParseMetadataFullDocument(t *testing.T) {
	doc := []byte(`{
		"datasources": {
			"mem_used": {
				"description": "memory in use",
				"units": "bytes",
				"type": "Gauge",
				"value_type": "Int64",
				"min": "0",
				"max": "1073741824",
				"owner": "VM 931388d6-559e-11e6-ab0a-73658ca1c515",
				"default": "true"
			},
			"io_total": {
				"value_type": "int64",
				"type": "derive",
				"owner": "sr 4cc1f2e0-5405-11e6-8c2f-572fc76ac144"
			}
		}
	}`)
	sources, err := ParseMetadata(doc)
	if err != nil {
		t.Fatalf("ParseMetadata returned error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	mem := sources[0]
	if mem.Name != "mem_used" {
		t.Fatalf("first source = %q, declaration order not preserved", mem.Name)
	}
	if mem.Owner.Kind != OwnerVM || mem.Owner.UUID != "931388d6-559e-11e6-ab0a-73658ca1c515" {
		t.Fatalf("owner = %v %q", mem.Owner.Kind, mem.Owner.UUID)
	}
	if mem.Type != Gauge || mem.Value.Kind != KindInt64 {
		t.Fatalf("type/kind = %q/%v", mem.Type, mem.Value.Kind)
	}
	if mem.Min != 0 || mem.Max != 1073741824 {
		t.Fatalf("bounds = [%v, %v]", mem.Min, mem.Max)
	}
	if !mem.Default {
		t.Fatal("default not parsed")
	}
	io := sources[1]
	if io.Owner.Kind != OwnerSR {
		t.Fatalf("second owner kind = %v, want sr", io.Owner.Kind)
	}
	if io.Type != Derive {
		t.Fatalf("second type = %q, want derive", io.Type)
	}
	// type omitted entirely defaults to absolute
	doc2 := []byte(`{"datasources": {"x": {"value_type": "float"}}}`)
	sources2, err := ParseMetadata(doc2)
	if err != nil {
		t.Fatalf("ParseMetadata returned error: %v", err)
	}
	if sources2[0].Type != Absolute {
		t.Fatalf("omitted type = %q, want absolute", sources2[0].Type)
	}
}

func TestParseMetadataInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "top level not a mapping", doc: `["datasources"]`},
		{name: "top level scalar", doc: `"datasources"`},
		{name: "datasources is a string", doc: `{"datasources": "cpu0"}`},
		{name: "datasources missing", doc: `{"other": {}}`},
		{name: "datasource entry not a mapping", doc: `{"datasources": {"cpu0": 7}}`},
		{name: "unknown type", doc: `{"datasources": {"cpu0": {"value_type": "float", "type": "counter"}}}`},
		{name: "missing value_type", doc: `{"datasources": {"cpu0": {"type": "gauge"}}}`},
		{name: "unknown value_type", doc: `{"datasources": {"cpu0": {"value_type": "double"}}}`},
		{name: "bad owner", doc: `{"datasources": {"cpu0": {"value_type": "float", "owner": "cluster"}}}`},
		{name: "owner missing uuid", doc: `{"datasources": {"cpu0": {"value_type": "float", "owner": "vm"}}}`},
		{name: "bad min", doc: `{"datasources": {"cpu0": {"value_type": "float", "min": "low"}}}`},
		{name: "bad default", doc: `{"datasources": {"cpu0": {"value_type": "float", "default": "maybe"}}}`},
		{name: "truncated json", doc: `{"datasources": {"cpu0": {"value_type": "float"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(tc.doc))
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestParseMetadataBounds(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		min  float64
		max  float64
	}{
		{
			name: "librrd inf spellings",
			doc:  `{"datasources": {"x": {"value_type": "float", "min": "-inf", "max": "inf"}}}`,
			min:  math.Inf(-1),
			max:  math.Inf(1),
		},
		{
			name: "infinity spellings",
			doc:  `{"datasources": {"x": {"value_type": "float", "min": "-Infinity", "max": "Infinity"}}}`,
			min:  math.Inf(-1),
			max:  math.Inf(1),
		},
		{
			name: "numeric bounds",
			doc:  `{"datasources": {"x": {"value_type": "float", "min": -1.5, "max": 99}}}`,
			min:  -1.5,
			max:  99,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sources, err := ParseMetadata([]byte(tc.doc))
			if err != nil {
				t.Fatalf("ParseMetadata returned error: %v", err)
			}
			if sources[0].Min != tc.min && !(math.IsInf(sources[0].Min, -1) && math.IsInf(tc.min, -1)) {
				t.Fatalf("min = %v, want %v", sources[0].Min, tc.min)
			}
			if sources[0].Max != tc.max && !(math.IsInf(sources[0].Max, 1) && math.IsInf(tc.max, 1)) {
				t.Fatalf("max = %v, want %v", sources[0].Max, tc.max)
			}
		})
	}
}

func TestParseOwner(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		kind    OwnerKind
		uuid    string
		wantErr bool
	}{
		{name: "host", in: "host", kind: OwnerHost},
		{name: "host case insensitive", in: "HOST", kind: OwnerHost},
		{name: "vm", in: "vm 931388d6-559e-11e6-ab0a-73658ca1c515", kind: OwnerVM, uuid: "931388d6-559e-11e6-ab0a-73658ca1c515"},
		{name: "sr extra whitespace", in: "  SR   abc-123 ", kind: OwnerSR, uuid: "abc-123"},
		{name: "unknown", in: "cluster", wantErr: true},
		{name: "host with uuid", in: "host abc", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			owner, err := ParseOwner(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseOwner(%q) succeeded, want error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOwner(%q) returned error: %v", tc.in, err)
			}
			if owner.Kind != tc.kind || owner.UUID != tc.uuid {
				t.Fatalf("ParseOwner(%q) = %v %q", tc.in, owner.Kind, owner.UUID)
			}
		})
	}
}
