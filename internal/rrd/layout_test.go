package rrd

import "testing"

func TestLayoutOffsets(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		metaLen int
	}{
		{name: "empty", count: 0, metaLen: 0},
		{name: "single source", count: 1, metaLen: 64},
		{name: "many sources", count: 37, metaLen: 4096},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLayout(tc.count, tc.metaLen)
			offsets := []int{
				l.HeaderStart,
				l.DataCRCStart,
				l.MetaCRCStart,
				l.CountStart,
				l.TimestampStart,
				l.ValuesStart,
				l.MetaLenStart,
				l.MetaStart,
			}
			for i := 1; i < len(offsets); i++ {
				if offsets[i] < offsets[i-1] {
					t.Fatalf("offset %d (%d) precedes offset %d (%d)", i, offsets[i], i-1, offsets[i-1])
				}
			}
			want := len(Header) + 4 + 4 + 4 + 8 + 8*tc.count + 4 + tc.metaLen
			if l.TotalSize != want {
				t.Fatalf("TotalSize = %d, want %d", l.TotalSize, want)
			}
			if l.MetaStart-l.MetaLenStart != 4 {
				t.Fatalf("metadata length field is %d bytes", l.MetaStart-l.MetaLenStart)
			}
		})
	}
}

func TestLayoutDataRange(t *testing.T) {
	l := NewLayout(3, 10)
	start, end := l.DataRange()
	if start != l.TimestampStart {
		t.Fatalf("data range starts at %d, want timestamp offset %d", start, l.TimestampStart)
	}
	if end != l.MetaLenStart {
		t.Fatalf("data range ends at %d, want metadata length offset %d", end, l.MetaLenStart)
	}
	if end-start != 8+3*8 {
		t.Fatalf("data range spans %d bytes, want %d", end-start, 8+3*8)
	}
}

func TestLayoutMetaStartIndependentOfMetaLen(t *testing.T) {
	a := NewLayout(5, 0)
	b := NewLayout(5, 9999)
	if a.MetaStart != b.MetaStart {
		t.Fatalf("MetaStart depends on metadata length: %d vs %d", a.MetaStart, b.MetaStart)
	}
}
