package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

// AggregateRequest describes one aggregation pass.
type AggregateRequest struct {
	// DocumentIDs lists the documents to score. Duplicates collapse to the
	// first occurrence.
	DocumentIDs []string

	// Groups are scored in order for every document.
	Groups []domain.Group

	// Scorers produce the features of every (candidate, document) pair.
	Scorers []ports.FeatureScorer

	// Namespace scopes the ownership of newly created records.
	Namespace string

	// Existing holds previously stored records to update rather than
	// recreate. They are modified in place.
	Existing []*domain.MetadataRecord
}

// MetadataAggregator drives the cross product of documents, groups,
// candidates and scorers and folds the positive scores into one metadata
// record per document.
//
// Scorers are only read during Aggregate, so documents may be processed in
// parallel. Each document's record is written by exactly one goroutine.
type MetadataAggregator struct {
	now            func() time.Time
	metrics        ports.MetricsCollector
	maxConcurrency int
	tracer         trace.Tracer
}

// AggregatorOption configures a MetadataAggregator.
type AggregatorOption func(*MetadataAggregator)

// WithClock overrides the timestamp source used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *MetadataAggregator) { a.now = now }
}

// WithAggregatorMetrics sets the collector for record and latency metrics.
func WithAggregatorMetrics(m ports.MetricsCollector) AggregatorOption {
	return func(a *MetadataAggregator) { a.metrics = m }
}

// WithMaxConcurrency bounds how many documents are scored at once. Values
// below 1 mean sequential processing.
func WithMaxConcurrency(n int) AggregatorOption {
	return func(a *MetadataAggregator) { a.maxConcurrency = n }
}

// NewMetadataAggregator creates an aggregator that processes documents
// sequentially with a UTC wall clock and no metrics.
func NewMetadataAggregator(opts ...AggregatorOption) *MetadataAggregator {
	a := &MetadataAggregator{
		now:            func() time.Time { return time.Now().UTC() },
		metrics:        ports.NoopMetrics{},
		maxConcurrency: 1,
		tracer:         otel.Tracer("metadata-aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxConcurrency < 1 {
		a.maxConcurrency = 1
	}
	if a.metrics == nil {
		a.metrics = ports.NoopMetrics{}
	}
	return a
}

// Aggregate scores every requested document and returns one record per
// distinct document ID, in first-occurrence order.
//
// The scorer set is validated first; a contract violation rejects the whole
// call before any scoring. A record found in req.Existing keeps every field
// except Groups, which is replaced, and UpdatedAt. Other documents get a new
// record owned by req.Namespace.
//
// If ctx is cancelled mid-pass the records of completed documents are
// returned together with a *domain.PartialResultError wrapping ctx.Err().
func (a *MetadataAggregator) Aggregate(
	ctx context.Context,
	req AggregateRequest,
) ([]*domain.MetadataRecord, error) {
	ctx, span := a.tracer.Start(ctx, "MetadataAggregator.Aggregate",
		trace.WithAttributes(
			attribute.String("aggregate.namespace", req.Namespace),
			attribute.Int("aggregate.documents", len(req.DocumentIDs)),
			attribute.Int("aggregate.groups", len(req.Groups)),
			attribute.Int("aggregate.scorers", len(req.Scorers)),
		),
	)
	defer span.End()

	if err := ValidateScorers(req.Scorers); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scorer contract violation")
		return nil, err
	}

	existing := indexByDocument(req.Existing)
	ids := dedupe(req.DocumentIDs)
	groupIDs := make([]string, len(req.Groups))
	for i, g := range req.Groups {
		groupIDs[i] = g.ID
	}

	results := make([]*domain.MetadataRecord, len(ids))

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)

	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			groups, err := a.scoreDocument(ctx, id, groupIDs, req.Groups, req.Scorers, req.Namespace)
			if err != nil {
				return err
			}
			results[i] = a.upsert(id, groups, existing[id], req.Namespace)
			a.metrics.RecordLatency("aggregate_document", time.Since(start),
				map[string]string{"namespace": req.Namespace})
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	records := make([]*domain.MetadataRecord, 0, len(ids))
	var completed, pending []string
	for i, rec := range results {
		if rec == nil {
			pending = append(pending, ids[i])
			continue
		}
		records = append(records, rec)
		completed = append(completed, ids[i])
	}

	span.SetAttributes(attribute.Int("aggregate.records", len(records)))

	if waitErr != nil && len(pending) > 0 {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, "aggregation interrupted")
		return records, &domain.PartialResultError{
			Completed: completed,
			Pending:   pending,
			Err:       waitErr,
		}
	}
	return records, nil
}

// scoreDocument builds the group scores of one document. It stops between
// groups when ctx is done.
func (a *MetadataAggregator) scoreDocument(
	ctx context.Context,
	documentID string,
	groupIDs []string,
	groups []domain.Group,
	scorers []ports.FeatureScorer,
	namespace string,
) (domain.GroupScores, error) {
	out := domain.NewGroupScores(groupIDs)
	omitted := 0

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("document %s: %w", documentID, err)
		}
		candidates := out[group.ID]
		for _, candidateID := range group.Members {
			fv := make(domain.FeatureVector, len(scorers))
			for _, s := range scorers {
				fv.Put(s.Name(), s.Score(candidateID, documentID))
			}
			if fv.Empty() {
				omitted++
				continue
			}
			candidates[candidateID] = fv
		}
	}

	if omitted > 0 {
		a.metrics.RecordCounter(ports.MetricCandidatesOmitted, float64(omitted),
			map[string]string{"namespace": namespace})
	}
	return out, nil
}

func (a *MetadataAggregator) upsert(
	documentID string,
	groups domain.GroupScores,
	rec *domain.MetadataRecord,
	namespace string,
) *domain.MetadataRecord {
	now := a.now()
	labels := map[string]string{"namespace": namespace}

	if rec != nil {
		rec.ReplaceGroups(groups, now)
		a.metrics.RecordCounter(ports.MetricRecordsUpdated, 1, labels)
		return rec
	}

	a.metrics.RecordCounter(ports.MetricRecordsCreated, 1, labels)
	return domain.NewMetadataRecord(documentID, namespace, groups, now)
}

// indexByDocument maps document IDs to records. The first record wins when
// several share a document ID; nil entries are skipped.
func indexByDocument(records []*domain.MetadataRecord) map[string]*domain.MetadataRecord {
	index := make(map[string]*domain.MetadataRecord, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if _, ok := index[rec.DocumentID]; !ok {
			index[rec.DocumentID] = rec
		}
	}
	return index
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
