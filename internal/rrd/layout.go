package rrd

// Header is the literal the producer writes at the start of every region.
const Header = "DATASOURCES"

const (
	headerSize    = len(Header)
	checksumSize  = 4
	countSize     = 4
	timestampSize = 8
	valueSize     = 8
	metaLenSize   = 4
)

// Layout holds the byte offsets of every region field for a given
// datasource count and metadata length. All multi-byte fields are
// big-endian. Offsets are pure functions of the count; only TotalSize
// depends on the metadata length.
type Layout struct {
	HeaderStart    int
	DataCRCStart   int
	MetaCRCStart   int
	CountStart     int
	TimestampStart int
	ValuesStart    int
	MetaLenStart   int
	MetaStart      int
	TotalSize      int
}

// NewLayout computes the region layout for count datasources and a
// metadata blob of metaLen bytes.
func NewLayout(count, metaLen int) Layout {
	var l Layout
	l.HeaderStart = 0
	l.DataCRCStart = l.HeaderStart + headerSize
	l.MetaCRCStart = l.DataCRCStart + checksumSize
	l.CountStart = l.MetaCRCStart + checksumSize
	l.TimestampStart = l.CountStart + countSize
	l.ValuesStart = l.TimestampStart + timestampSize
	l.MetaLenStart = l.ValuesStart + count*valueSize
	l.MetaStart = l.MetaLenStart + metaLenSize
	l.TotalSize = l.MetaStart + metaLen
	return l
}

// DataRange returns the [start, end) byte range covered by the data
// checksum: the timestamp followed by the value array.
func (l Layout) DataRange() (int, int) {
	return l.TimestampStart, l.MetaLenStart
}
