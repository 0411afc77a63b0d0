package rrd

import (
	"bytes"
	"errors"
	"fmt"

	"example.com/rrdgate/internal/common"
)

var (
	// ErrInvalidHeader reports a region that does not begin with the
	// DATASOURCES literal.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrChecksumMismatch reports a stored checksum that does not match
	// the checksum recomputed over the covered byte range.
	ErrChecksumMismatch = errors.New("invalid checksum")
)

// Reader decodes successive snapshots of one DATASOURCES region. It caches
// the last verified checksums and the last decoded source list so that an
// unchanged region costs one checksum comparison and an unchanged schema
// skips the metadata re-parse entirely.
//
// The producer overwrites the region without any locking; the two
// checksums are a best-effort torn-read detector and a failure is expected
// to be retried by the caller on its own cadence. A Reader is not safe for
// concurrent use.
type Reader struct {
	dataCRC    uint32
	dataSeeded bool
	metaCRC    uint32
	metaSeeded bool
	sources    []Source

	metrics *common.Metrics
}

// NewReader returns a reader with an empty cache. The first successful
// Read always takes the slow path.
func NewReader() *Reader {
	return &Reader{}
}

// SetMetrics attaches a poll metrics recorder to the reader.
func (r *Reader) SetMetrics(m *common.Metrics) {
	r.metrics = m
}

// Read decodes the current contents of buf. It returns the decoded
// snapshot and updated=true when the region carries new verified data,
// updated=false when the data checksum is unchanged since the last
// successful read, and an error otherwise. On error the cache is left as
// it was, except that a data checksum verified in this call stays
// committed before metadata handling begins.
func (r *Reader) Read(buf []byte) (Snapshot, bool, error) {
	l := NewLayout(0, 0)

	header, err := readHeader(buf, l)
	if err != nil {
		return Snapshot{}, false, err
	}
	if !bytes.Equal(header, []byte(Header)) {
		return Snapshot{}, false, fmt.Errorf("%w: %q", ErrInvalidHeader, header)
	}

	dataCRC, err := readDataChecksum(buf, l)
	if err != nil {
		return Snapshot{}, false, err
	}
	if r.dataSeeded && dataCRC == r.dataCRC {
		if r.metrics != nil {
			r.metrics.IncNoUpdate()
		}
		return Snapshot{}, false, nil
	}

	metaCRC, err := readMetadataChecksum(buf, l)
	if err != nil {
		return Snapshot{}, false, err
	}
	count, err := readCount(buf, l)
	if err != nil {
		return Snapshot{}, false, err
	}
	timestamp, err := readTimestamp(buf, l)
	if err != nil {
		return Snapshot{}, false, err
	}

	l = NewLayout(count, 0)
	start, end := l.DataRange()
	region, err := slice(buf, start, end-start)
	if err != nil {
		return Snapshot{}, false, err
	}
	if got := Checksum(region); got != dataCRC {
		if r.metrics != nil {
			r.metrics.IncChecksumFailure()
		}
		return Snapshot{}, false, fmt.Errorf("%w: data crc stored %08x computed %08x", ErrChecksumMismatch, dataCRC, got)
	}
	// The data region is verified; commit its checksum even if metadata
	// handling below fails, so a torn metadata write does not force an
	// endless re-verify of unchanged data.
	r.dataCRC = dataCRC
	r.dataSeeded = true

	var schema []Source
	slow := !r.metaSeeded || metaCRC != r.metaCRC
	if slow {
		metaLen, err := readMetadataLength(buf, l)
		if err != nil {
			return Snapshot{}, false, err
		}
		meta, err := readMetadata(buf, l, metaLen)
		if err != nil {
			return Snapshot{}, false, err
		}
		if got := Checksum(meta); got != metaCRC {
			if r.metrics != nil {
				r.metrics.IncChecksumFailure()
			}
			return Snapshot{}, false, fmt.Errorf("%w: metadata crc stored %08x computed %08x", ErrChecksumMismatch, metaCRC, got)
		}
		schema, err = ParseMetadata(meta)
		if err != nil {
			return Snapshot{}, false, err
		}
	} else {
		schema = r.sources
	}

	if count != len(schema) {
		return Snapshot{}, false, fmt.Errorf("%w: count %d does not match %d datasources", ErrInvalidPayload, count, len(schema))
	}

	out := make([]Source, len(schema))
	copy(out, schema)
	if err := readValues(buf, l, out); err != nil {
		return Snapshot{}, false, err
	}

	// Everything decoded; commit the schema generation and the decoded
	// list as the cache for the next fast-path read.
	r.metaCRC = metaCRC
	r.metaSeeded = true
	r.sources = out
	if r.metrics != nil {
		r.metrics.AddUpdate(int64(NewLayout(count, 0).MetaLenStart))
	}
	return Snapshot{Timestamp: timestamp, Sources: out}, true, nil
}
