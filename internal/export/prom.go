package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"example.com/rrdgate/internal/common"
	"example.com/rrdgate/internal/rrd"
)

var (
	valueDesc = prometheus.NewDesc(
		"rrdgate_datasource_value",
		"Current value of a decoded datasource.",
		[]string{"region", "name", "owner", "type", "units"},
		nil,
	)
	timestampDesc = prometheus.NewDesc(
		"rrdgate_snapshot_timestamp_seconds",
		"Producer timestamp of the last decoded snapshot.",
		[]string{"region"},
		nil,
	)
	updatesDesc = prometheus.NewDesc(
		"rrdgate_updates_total",
		"Successful snapshot decodes.",
		[]string{"region"},
		nil,
	)
	noUpdatesDesc = prometheus.NewDesc(
		"rrdgate_no_updates_total",
		"Polls that found the data checksum unchanged.",
		[]string{"region"},
		nil,
	)
	crcFailuresDesc = prometheus.NewDesc(
		"rrdgate_checksum_failures_total",
		"Polls rejected by a checksum mismatch.",
		[]string{"region"},
		nil,
	)
)

// SnapshotSource is the read side of a poller: the latest decoded
// snapshot, if any, plus its poll metrics.
type SnapshotSource interface {
	Name() string
	Latest() (rrd.Snapshot, bool)
	Metrics() common.MetricsSnapshot
}

// Collector exposes the latest snapshot of each region as Prometheus
// metrics. Metric identity comes from the datasource name and owner, so a
// schema change on the producer side simply changes the exported series.
type Collector struct {
	sources []SnapshotSource
}

func NewCollector(sources ...SnapshotSource) *Collector {
	return &Collector{sources: sources}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- valueDesc
	ch <- timestampDesc
	ch <- updatesDesc
	ch <- noUpdatesDesc
	ch <- crcFailuresDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, source := range c.sources {
		region := source.Name()
		m := source.Metrics()
		ch <- prometheus.MustNewConstMetric(updatesDesc, prometheus.CounterValue, float64(m.Updates), region)
		ch <- prometheus.MustNewConstMetric(noUpdatesDesc, prometheus.CounterValue, float64(m.NoUpdates), region)
		ch <- prometheus.MustNewConstMetric(crcFailuresDesc, prometheus.CounterValue, float64(m.ChecksumFailures), region)

		snap, ok := source.Latest()
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(timestampDesc, prometheus.GaugeValue, float64(snap.Timestamp), region)
		for _, src := range snap.Sources {
			value, ok := numericValue(src.Value)
			if !ok {
				continue
			}
			kind := prometheus.GaugeValue
			if src.Type == rrd.Derive {
				kind = prometheus.CounterValue
			}
			ch <- prometheus.MustNewConstMetric(
				valueDesc, kind, value,
				region, src.Name, src.Owner.String(), string(src.Type), src.Units,
			)
		}
	}
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
