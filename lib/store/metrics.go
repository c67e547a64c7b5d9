package store

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"strings"
	"time"
)

// storeMetrics are the counters of one store, exported by metrics.WritePrometheus.
// Stores with the same name share their counters.
type storeMetrics struct {
	added     *metrics.Counter
	removed   *metrics.Counter
	restored  *metrics.Counter
	expired   *metrics.Counter
	updates   *metrics.Counter
	compacted *metrics.Counter
	snapshots *metrics.Counter
	loaded    *metrics.Counter
	loadTime  *metrics.Histogram
}

func newStoreMetrics(name string) *storeMetrics {
	label := fmt.Sprintf(`{store="%s"}`, sanitizeLabel(name))
	return &storeMetrics{
		added:     metrics.GetOrCreateCounter("recstore_records_added_total" + label),
		removed:   metrics.GetOrCreateCounter("recstore_records_removed_total" + label),
		restored:  metrics.GetOrCreateCounter("recstore_records_restored_total" + label),
		expired:   metrics.GetOrCreateCounter("recstore_records_expired_total" + label),
		updates:   metrics.GetOrCreateCounter("recstore_field_updates_total" + label),
		compacted: metrics.GetOrCreateCounter("recstore_records_compacted_total" + label),
		snapshots: metrics.GetOrCreateCounter("recstore_snapshots_total" + label),
		loaded:    metrics.GetOrCreateCounter("recstore_loads_total" + label),
		loadTime:  metrics.GetOrCreateHistogram("recstore_load_duration_seconds" + label),
	}
}

func (m *storeMetrics) observeLoad(start time.Time) {
	m.loaded.Inc()
	m.loadTime.UpdateDuration(start)
}

// sanitizeLabel replaces characters that are not allowed unescaped in label values
func sanitizeLabel(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
