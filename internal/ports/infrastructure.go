package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-matcher/internal/domain"
)

// DocumentSource supplies the submissions to be matched.
// Implementations could read from a document store API, files, or memory.
type DocumentSource interface {
	// Documents returns the documents with the given IDs, in the order of
	// ids. An empty ids slice returns every known document. Unknown IDs are
	// skipped rather than reported as errors.
	Documents(ctx context.Context, ids []string) ([]domain.Document, error)
}

// ArchiveSource supplies the authored text of candidates.
type ArchiveSource interface {
	// Archives returns every archive record. Records without a candidate ID
	// are still returned; they contribute to corpus statistics.
	Archives(ctx context.Context) ([]domain.ArchiveRecord, error)
}

// GroupSource supplies candidate groups.
type GroupSource interface {
	// Groups returns the groups with the given IDs in the order of ids.
	// Unknown IDs yield an error wrapping ErrNotFound.
	Groups(ctx context.Context, ids []string) ([]domain.Group, error)
}

// RecordStore persists metadata records keyed by document ID.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// GetByDocumentIDs returns the stored records for the given document
	// IDs. Documents with no stored record are absent from the result.
	// Returned records are copies the caller may modify.
	GetByDocumentIDs(ctx context.Context, documentIDs []string) ([]*domain.MetadataRecord, error)

	// Put stores record, replacing any record with the same document ID.
	// It assigns record.ID when it is empty.
	Put(ctx context.Context, record *domain.MetadataRecord) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like records created or updated.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric, such as the
	// size of a fitted dictionary.
	RecordGauge(metric string, value float64, labels map[string]string)
}

// NoopMetrics discards every metric. It is the default collector when none
// is configured.
type NoopMetrics struct{}

// RecordLatency implements MetricsCollector.
func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}

// RecordCounter implements MetricsCollector.
func (NoopMetrics) RecordCounter(string, float64, map[string]string) {}

// RecordGauge implements MetricsCollector.
func (NoopMetrics) RecordGauge(string, float64, map[string]string) {}

var _ MetricsCollector = NoopMetrics{}

// Metric names recorded by the matcher. Collectors may route them to
// dedicated instruments; unknown names fall back to generic counters and
// gauges.
const (
	MetricRecordsCreated    = "records_created"
	MetricRecordsUpdated    = "records_updated"
	MetricCandidatesOmitted = "candidates_omitted"
	MetricDictionarySize    = "dictionary_size"
	MetricCorpusSize        = "corpus_size"
)
