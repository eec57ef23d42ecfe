package rewriter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes used as the "outcome" label.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Metrics holds the Prometheus collectors updated by a Runner.
type Metrics struct {
	FilesProcessed *prometheus.CounterVec
	TagsInserted   *prometheus.CounterVec
	ImportsAdded   prometheus.Counter
	FileDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FilesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testtag",
			Name:      "files_processed_total",
			Help:      "Source files processed, by outcome.",
		}, []string{"outcome"}),
		TagsInserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testtag",
			Name:      "tags_inserted_total",
			Help:      "Tag annotations inserted, by tag value.",
		}, []string{"tag"}),
		ImportsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "testtag",
			Name:      "imports_added_total",
			Help:      "Tag imports added.",
		}),
		FileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "testtag",
			Name:      "file_duration_seconds",
			Help:      "Time spent parsing and rewriting one file.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

func (m *Metrics) observe(res FileResult) {
	if m == nil {
		return
	}
	outcome := OutcomeUnchanged
	switch {
	case res.Err != nil:
		outcome = OutcomeFailed
	case res.Changed:
		outcome = OutcomeChanged
	}
	m.FilesProcessed.WithLabelValues(outcome).Inc()
	for _, tag := range res.Tags {
		m.TagsInserted.WithLabelValues(string(tag.Tag)).Inc()
	}
	if res.ImportAdded {
		m.ImportsAdded.Inc()
	}
	m.FileDuration.Observe(res.Duration.Seconds())
}
