package rrd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTruncated reports a field extending past the end of the supplied
	// buffer. The collaborator guarantees the buffer covers the full
	// region, so truncation is fatal for the read attempt.
	ErrTruncated = errors.New("region truncated")

	// ErrUnknownValueKind reports a cached descriptor whose value tag is
	// neither float nor int64. The tag is fixed at metadata parse time, so
	// this indicates a corrupted cache, not bad producer data.
	ErrUnknownValueKind = errors.New("unknown datasource value kind")
)

func slice(buf []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, off, len(buf))
	}
	return buf[off : off+n], nil
}

func readHeader(buf []byte, l Layout) ([]byte, error) {
	return slice(buf, l.HeaderStart, headerSize)
}

func readUint32(buf []byte, off int) (uint32, error) {
	b, err := slice(buf, off, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func readDataChecksum(buf []byte, l Layout) (uint32, error) {
	return readUint32(buf, l.DataCRCStart)
}

func readMetadataChecksum(buf []byte, l Layout) (uint32, error) {
	return readUint32(buf, l.MetaCRCStart)
}

func readCount(buf []byte, l Layout) (int, error) {
	n, err := readUint32(buf, l.CountStart)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func readTimestamp(buf []byte, l Layout) (uint64, error) {
	b, err := slice(buf, l.TimestampStart, timestampSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// readValues fills in the value payloads for sources from the value array.
// Each 8-byte entry is reinterpreted according to the descriptor's value
// tag: bit-for-bit as an IEEE-754 double for float sources, as a raw
// 64-bit integer otherwise. Order follows the descriptor list.
func readValues(buf []byte, l Layout, sources []Source) error {
	for i := range sources {
		b, err := slice(buf, l.ValuesStart+i*valueSize, valueSize)
		if err != nil {
			return err
		}
		bits := binary.BigEndian.Uint64(b)
		switch sources[i].Value.Kind {
		case KindFloat:
			sources[i].Value.Float = math.Float64frombits(bits)
		case KindInt64:
			sources[i].Value.Int64 = int64(bits)
		default:
			return fmt.Errorf("%w: datasource %q", ErrUnknownValueKind, sources[i].Name)
		}
	}
	return nil
}

func readMetadataLength(buf []byte, l Layout) (int, error) {
	n, err := readUint32(buf, l.MetaLenStart)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func readMetadata(buf []byte, l Layout, metaLen int) ([]byte, error) {
	return slice(buf, l.MetaStart, metaLen)
}
