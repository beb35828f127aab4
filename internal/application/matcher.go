// Package application provides the core orchestration of the matcher:
// configuration, scorer construction, aggregation and the matching run.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var requestValidator = validator.New()

// Sources bundles the external collaborators a Matcher reads from and
// writes to.
type Sources struct {
	Documents ports.DocumentSource
	Archives  ports.ArchiveSource
	Groups    ports.GroupSource
	Store     ports.RecordStore
}

// RunRequest selects what one matching run covers.
type RunRequest struct {
	// DocumentIDs restricts the run to these documents. Empty means every
	// document the source knows.
	DocumentIDs []string
	// GroupIDs names the candidate groups to score.
	GroupIDs []string `validate:"required,min=1,dive,required"`
	// Namespace owns records created by this run.
	Namespace string `validate:"required"`
}

// RunResult summarizes a matching run.
type RunResult struct {
	// Records are the persisted records in document order.
	Records []*domain.MetadataRecord
	// Created and Updated count new and replaced records.
	Created int
	Updated int
	// Documents, Archives and Groups count the fetched inputs.
	Documents int
	Archives  int
	Groups    int
	// Duration is the wall time of the run.
	Duration time.Duration
}

// corpusSizer is implemented by scorers that report the size of their
// fitted model.
type corpusSizer interface {
	DictionarySize() int
	CorpusSize() int
}

// Matcher runs the full match flow: fetch inputs, fit the scorers, load
// existing records, aggregate and persist. It performs no retries; every
// collaborator failure is returned as a *ports.UpstreamError.
type Matcher struct {
	src        Sources
	scorers    []ports.FeatureScorer
	aggregator *MetadataAggregator
	logger     *slog.Logger
	metrics    ports.MetricsCollector
	timeout    time.Duration
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) MatcherOption {
	return func(m *Matcher) { m.logger = l }
}

// WithMetrics sets the collector for fit and run metrics.
func WithMetrics(c ports.MetricsCollector) MatcherOption {
	return func(m *Matcher) { m.metrics = c }
}

// WithTimeout bounds every Run. Zero means no limit.
func WithTimeout(d time.Duration) MatcherOption {
	return func(m *Matcher) { m.timeout = d }
}

// WithAggregator replaces the default sequential aggregator.
func WithAggregator(a *MetadataAggregator) MatcherOption {
	return func(m *Matcher) { m.aggregator = a }
}

// NewMatcher creates a Matcher. Every source must be set, and the scorer
// set must pass the structural part of the scorer contract; self-validation
// of fittable scorers happens after they are fitted in Run.
func NewMatcher(src Sources, scorers []ports.FeatureScorer, opts ...MatcherOption) (*Matcher, error) {
	switch {
	case src.Documents == nil:
		return nil, fmt.Errorf("document source: %w", domain.ErrEmptyValue)
	case src.Archives == nil:
		return nil, fmt.Errorf("archive source: %w", domain.ErrEmptyValue)
	case src.Groups == nil:
		return nil, fmt.Errorf("group source: %w", domain.ErrEmptyValue)
	case src.Store == nil:
		return nil, fmt.Errorf("record store: %w", domain.ErrEmptyValue)
	}
	if err := checkScorerSet(scorers); err != nil {
		return nil, err
	}

	m := &Matcher{
		src:     src,
		scorers: append([]ports.FeatureScorer(nil), scorers...),
		logger:  slog.Default(),
		metrics: ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.aggregator == nil {
		m.aggregator = NewMetadataAggregator(WithAggregatorMetrics(m.metrics))
	}
	return m, nil
}

// Scorers returns the scorers in feature order.
func (m *Matcher) Scorers() []ports.FeatureScorer {
	return append([]ports.FeatureScorer(nil), m.scorers...)
}

// Run executes one matching pass.
//
// When the run is interrupted during aggregation, the completed records are
// still persisted and returned along with the *domain.PartialResultError.
func (m *Matcher) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := requestValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	log := m.logger.With("namespace", req.Namespace)

	docs, err := m.src.Documents.Documents(ctx, req.DocumentIDs)
	if err != nil {
		return nil, ports.NewUpstreamError("documents", "Documents", err)
	}
	archives, err := m.src.Archives.Archives(ctx)
	if err != nil {
		return nil, ports.NewUpstreamError("archives", "Archives", err)
	}
	groups, err := m.src.Groups.Groups(ctx, req.GroupIDs)
	if err != nil {
		return nil, ports.NewUpstreamError("groups", "Groups", err)
	}

	docIDs := make([]string, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
	}
	if requested := len(dedupe(req.DocumentIDs)); requested > len(docs) {
		log.WarnContext(ctx, "some requested documents were not found",
			"requested", requested,
			"found", len(docs),
		)
	}
	log.InfoContext(ctx, "sources fetched",
		"documents", len(docs),
		"archives", len(archives),
		"groups", len(groups),
	)

	if err := m.fit(ctx, log, docs, archives); err != nil {
		return nil, err
	}

	existing, err := m.src.Store.GetByDocumentIDs(ctx, docIDs)
	if err != nil {
		return nil, ports.NewUpstreamError("store", "GetByDocumentIDs", err)
	}
	stored := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		if rec != nil {
			stored[rec.DocumentID] = struct{}{}
		}
	}

	records, aggErr := m.aggregator.Aggregate(ctx, AggregateRequest{
		DocumentIDs: docIDs,
		Groups:      groups,
		Scorers:     m.scorers,
		Namespace:   req.Namespace,
		Existing:    existing,
	})
	var partial *domain.PartialResultError
	if aggErr != nil && !errors.As(aggErr, &partial) {
		log.ErrorContext(ctx, "aggregation failed", "error", aggErr)
		return nil, aggErr
	}

	persistCtx := ctx
	if partial != nil {
		// Completed records stay valid after the deadline.
		persistCtx = context.WithoutCancel(ctx)
		log.WarnContext(ctx, "aggregation interrupted",
			"completed", len(partial.Completed),
			"pending", len(partial.Pending),
			"error", partial.Err,
		)
	}

	result := &RunResult{
		Records:   make([]*domain.MetadataRecord, 0, len(records)),
		Documents: len(docs),
		Archives:  len(archives),
		Groups:    len(groups),
	}
	for _, rec := range records {
		if err := m.src.Store.Put(persistCtx, rec); err != nil {
			return nil, ports.NewUpstreamError("store", "Put", fmt.Errorf("document %s: %w", rec.DocumentID, err))
		}
		if _, ok := stored[rec.DocumentID]; ok {
			result.Updated++
		} else {
			result.Created++
		}
		result.Records = append(result.Records, rec)
	}

	result.Duration = time.Since(start)
	m.metrics.RecordLatency("run", result.Duration, map[string]string{"namespace": req.Namespace})
	log.InfoContext(ctx, "records persisted",
		"created", result.Created,
		"updated", result.Updated,
		"duration", result.Duration,
	)

	if partial != nil {
		return result, aggErr
	}
	return result, nil
}

// fit fits every fittable scorer on the fetched documents and archives,
// in scorer order.
func (m *Matcher) fit(ctx context.Context, log *slog.Logger, docs []domain.Document, archives []domain.ArchiveRecord) error {
	records := domain.DocumentRecords(docs)
	for _, s := range m.scorers {
		f, ok := s.(ports.FittableScorer)
		if !ok {
			continue
		}

		labels := map[string]string{"scorer": s.Name()}
		start := time.Now()
		if err := f.Fit(ctx, records, archives); err != nil {
			m.metrics.RecordCounter("fit", 1, map[string]string{"scorer": s.Name(), "status": "error"})
			log.ErrorContext(ctx, "fit failed", "scorer", s.Name(), "error", err)
			return fmt.Errorf("fit scorer %s: %w", s.Name(), err)
		}
		elapsed := time.Since(start)
		m.metrics.RecordLatency("fit", elapsed, labels)
		m.metrics.RecordCounter("fit", 1, map[string]string{"scorer": s.Name(), "status": "success"})

		attrs := []any{"scorer", s.Name(), "duration", elapsed}
		if sized, ok := s.(corpusSizer); ok {
			m.metrics.RecordGauge(ports.MetricDictionarySize, float64(sized.DictionarySize()), labels)
			m.metrics.RecordGauge(ports.MetricCorpusSize, float64(sized.CorpusSize()), labels)
			attrs = append(attrs, "dictionary_size", sized.DictionarySize(), "corpus_size", sized.CorpusSize())
		}
		log.DebugContext(ctx, "scorer fitted", attrs...)
	}
	return nil
}

// Rank returns, for every scorer that can rank, the candidates ordered by
// descending score against documentID. The map is keyed by scorer name.
func (m *Matcher) Rank(documentID string) map[string][]domain.RankedCandidate {
	out := make(map[string][]domain.RankedCandidate)
	for _, s := range m.scorers {
		if r, ok := s.(ports.Ranker); ok {
			out[s.Name()] = r.Rank(documentID)
		}
	}
	return out
}
