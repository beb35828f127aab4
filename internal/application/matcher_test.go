package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-matcher/infrastructure/scorers"
	"github.com/ahrav/go-matcher/infrastructure/store"
	"github.com/ahrav/go-matcher/infrastructure/tokenize"
	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
	"github.com/ahrav/go-matcher/internal/testutils"
)

func newExampleStore() *store.Memory {
	m := store.NewMemory()
	m.AddDocuments(testutils.ExampleDocuments()...)
	m.AddArchives(testutils.ExampleArchives()...)
	m.AddGroups(testutils.ExampleGroups()...)
	return m
}

func memorySources(m *store.Memory) Sources {
	return Sources{Documents: m, Archives: m, Groups: m, Store: m}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func exampleRequest() RunRequest {
	return RunRequest{GroupIDs: []string{"G1"}, Namespace: testutils.ExampleNamespace}
}

// TestMatcher_Run fits a real TF-IDF model from the sources and checks the
// persisted records across two passes.
func TestMatcher_Run(t *testing.T) {
	mem := newExampleStore()
	model, err := scorers.NewContentSimilarityModel("tfidf", tokenize.NewRegexTokenizer(),
		scorers.DefaultContentSimilarityConfig())
	require.NoError(t, err)
	keywords, err := scorers.NewKeywordOverlapScorer("keywords", scorers.DefaultKeywordOverlapConfig())
	require.NoError(t, err)

	clock := firstPass
	agg := NewMetadataAggregator(WithClock(func() time.Time { return clock }))
	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{model, keywords},
		WithAggregator(agg), WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), exampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 1, res.Archives)
	assert.Equal(t, 1, res.Groups)
	require.Len(t, res.Records, 2)

	stored := mem.Records()
	require.Len(t, stored, 2)
	d1 := stored[0]
	assert.NotEmpty(t, d1.ID)
	assert.Equal(t, testutils.ExampleNamespace+domain.MetadataInvitationSuffix, d1.Invitation)
	assert.Greater(t, d1.Groups["G1"]["C1"]["tfidf"], 0.0)
	assert.Equal(t, 1.0, d1.Groups["G1"]["C1"]["keywords"])

	// A second pass updates the same records in place.
	clock = secondPass
	res, err = m.Run(context.Background(), exampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Updated)

	again := mem.Records()
	require.Len(t, again, 2)
	assert.Equal(t, d1.ID, again[0].ID)
	assert.Equal(t, firstPass, again[0].CreatedAt)
	assert.Equal(t, secondPass, again[0].UpdatedAt)
	assert.Equal(t, d1.Groups, again[0].Groups)

	ranked := m.Rank("D1")
	require.Contains(t, ranked, "tfidf")
	require.Len(t, ranked["tfidf"], 1)
	assert.Equal(t, "C1", ranked["tfidf"][0].CandidateID)
	assert.NotContains(t, ranked, "keywords")
}

func TestMatcher_RunFitsScorersOnSources(t *testing.T) {
	mem := newExampleStore()
	mem.AddArchives(domain.ArchiveRecord{Content: "background"})
	s := testutils.NewMockScorer("s").Set("C1", "D2", 0.5)

	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{s}, WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), RunRequest{
		DocumentIDs: []string{"D2", "missing"},
		GroupIDs:    []string{"G1"},
		Namespace:   "ns",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), s.FitCalls())
	docs, archives := s.FitInputs()
	require.Len(t, docs, 1)
	assert.Equal(t, "D2", docs[0].DocumentID)
	assert.Len(t, archives, 2)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "D2", res.Records[0].DocumentID)
	assert.Equal(t, 0.5, res.Records[0].Groups["G1"]["C1"]["s"])
}

// TestMatcher_RunSkipsUnknownDocuments checks that an ID unknown to the
// document source yields no record and no error.
func TestMatcher_RunSkipsUnknownDocuments(t *testing.T) {
	mem := newExampleStore()
	s := testutils.NewMockScorer("s").Set("C1", "D1", 1)

	var logs bytes.Buffer
	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{s},
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), RunRequest{
		DocumentIDs: []string{"D1", "D404", "D1"},
		GroupIDs:    []string{"G1"},
		Namespace:   "ns",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "D1", res.Records[0].DocumentID)

	stored, err := mem.GetByDocumentIDs(context.Background(), []string{"D1", "D404"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "D1", stored[0].DocumentID)

	assert.Contains(t, logs.String(), "some requested documents were not found")
	assert.Contains(t, logs.String(), "requested=2 found=1")
}

// failingSource fails every source and store operation with err.
type failingSource struct {
	err error
}

func (f failingSource) Documents(context.Context, []string) ([]domain.Document, error) {
	return nil, f.err
}

func (f failingSource) Archives(context.Context) ([]domain.ArchiveRecord, error) {
	return nil, f.err
}

func (f failingSource) Groups(context.Context, []string) ([]domain.Group, error) {
	return nil, f.err
}

func (f failingSource) GetByDocumentIDs(context.Context, []string) ([]*domain.MetadataRecord, error) {
	return nil, f.err
}

func (f failingSource) Put(context.Context, *domain.MetadataRecord) error { return f.err }

func TestMatcher_RunUpstreamErrors(t *testing.T) {
	down := failingSource{err: ports.ErrServiceUnavailable}

	tests := []struct {
		name   string
		src    func(m *store.Memory) Sources
		source string
		op     string
	}{
		{
			name:   "documents",
			src:    func(m *store.Memory) Sources { s := memorySources(m); s.Documents = down; return s },
			source: "documents",
			op:     "Documents",
		},
		{
			name:   "archives",
			src:    func(m *store.Memory) Sources { s := memorySources(m); s.Archives = down; return s },
			source: "archives",
			op:     "Archives",
		},
		{
			name:   "groups",
			src:    func(m *store.Memory) Sources { s := memorySources(m); s.Groups = down; return s },
			source: "groups",
			op:     "Groups",
		},
		{
			name:   "store read",
			src:    func(m *store.Memory) Sources { s := memorySources(m); s.Store = down; return s },
			source: "store",
			op:     "GetByDocumentIDs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutils.NewMockScorer("s").Set("C1", "D1", 1)
			m, err := NewMatcher(tt.src(newExampleStore()), []ports.FeatureScorer{s}, WithLogger(quietLogger()))
			require.NoError(t, err)

			_, err = m.Run(context.Background(), exampleRequest())
			require.Error(t, err)

			var ue *ports.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.source, ue.Source)
			assert.Equal(t, tt.op, ue.Operation)
			assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
			assert.Equal(t, 503, ports.StatusCode(err))

			var ce *domain.ContractError
			assert.False(t, errors.As(err, &ce), "collaborator failures are not contract violations")
		})
	}
}

// writeFailingStore reads from a Memory but rejects every write.
type writeFailingStore struct {
	*store.Memory
}

func (writeFailingStore) Put(context.Context, *domain.MetadataRecord) error {
	return ports.ErrForbidden
}

func TestMatcher_RunStoreWriteError(t *testing.T) {
	mem := newExampleStore()
	src := memorySources(mem)
	src.Store = writeFailingStore{mem}
	s := testutils.NewMockScorer("s").Set("C1", "D1", 1)

	m, err := NewMatcher(src, []ports.FeatureScorer{s}, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), exampleRequest())
	var ue *ports.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Put", ue.Operation)
	assert.ErrorIs(t, err, ports.ErrForbidden)
	assert.Contains(t, err.Error(), "document D1")
}

func TestMatcher_RunUnknownGroup(t *testing.T) {
	m, err := NewMatcher(memorySources(newExampleStore()),
		[]ports.FeatureScorer{testutils.NewMockScorer("s")}, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), RunRequest{GroupIDs: []string{"G404"}, Namespace: "ns"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.Equal(t, 404, ports.StatusCode(err))
}

func TestMatcher_RunFitError(t *testing.T) {
	mem := newExampleStore()
	s := testutils.NewMockScorer("s")
	s.FitErr = errors.New("corpus too small")
	metrics := &recordingMetrics{counters: map[string]float64{}}

	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{s},
		WithLogger(quietLogger()), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), exampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fit scorer s")
	assert.Equal(t, int64(0), s.ScoreCalls())
	assert.Empty(t, mem.Records())
	assert.Equal(t, 1.0, metrics.counters["fit"])
}

func TestMatcher_RunUnfittedValidatorBlocksScoring(t *testing.T) {
	mem := newExampleStore()
	inner := testutils.NewMockScorer("s")
	s := testutils.ValidatingScorer{FeatureScorer: inner, Err: domain.ErrNotFitted}

	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{s}, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), exampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContractViolation)
	assert.ErrorIs(t, err, domain.ErrNotFitted)
	assert.Equal(t, int64(0), inner.ScoreCalls())
	assert.Empty(t, mem.Records())
}

func TestMatcher_RunInvalidRequest(t *testing.T) {
	m, err := NewMatcher(memorySources(newExampleStore()),
		[]ports.FeatureScorer{testutils.NewMockScorer("s")}, WithLogger(quietLogger()))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  RunRequest
	}{
		{name: "no groups", req: RunRequest{Namespace: "ns"}},
		{name: "empty group ID", req: RunRequest{GroupIDs: []string{""}, Namespace: "ns"}},
		{name: "no namespace", req: RunRequest{GroupIDs: []string{"G1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

// TestMatcher_RunPersistsPartialResults cancels the run while the second
// document is scored and checks that the first record is still stored.
func TestMatcher_RunPersistsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := newExampleStore()
	mem.AddDocuments(domain.Document{ID: "D3", Content: "delta"})
	mem.AddGroups(domain.Group{ID: "G2", Members: []string{"C2"}})

	s := testutils.NewMockScorer("s")
	s.Default = 1
	s.OnScore = func(_, documentID string) {
		if documentID == "D2" {
			cancel()
		}
	}

	var logs bytes.Buffer
	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{s},
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	res, err := m.Run(ctx, RunRequest{GroupIDs: []string{"G1", "G2"}, Namespace: "ns"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIncomplete)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, res)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "D1", res.Records[0].DocumentID)

	stored := mem.Records()
	require.Len(t, stored, 1)
	assert.Equal(t, "D1", stored[0].DocumentID)
	assert.Contains(t, logs.String(), "aggregation interrupted")
}

func TestMatcher_RunRecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{counters: map[string]float64{}}
	model, err := scorers.NewContentSimilarityModel("tfidf", tokenize.NewRegexTokenizer(),
		scorers.DefaultContentSimilarityConfig())
	require.NoError(t, err)

	m, err := NewMatcher(memorySources(newExampleStore()), []ports.FeatureScorer{model},
		WithLogger(quietLogger()), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), exampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 2.0, metrics.counters[ports.MetricRecordsCreated])
	assert.Equal(t, 1.0, metrics.counters["fit"])
	assert.Equal(t, 3.0, metrics.gauges[ports.MetricCorpusSize])
	assert.Equal(t, float64(model.DictionarySize()), metrics.gauges[ports.MetricDictionarySize])
	assert.GreaterOrEqual(t, metrics.latencies, 4, "fit, two documents and the run")
}

func TestNewMatcher_Errors(t *testing.T) {
	mem := newExampleStore()
	s := []ports.FeatureScorer{testutils.NewMockScorer("s")}

	tests := []struct {
		name    string
		src     Sources
		scorers []ports.FeatureScorer
		wantErr error
	}{
		{name: "no documents", src: Sources{Archives: mem, Groups: mem, Store: mem}, scorers: s, wantErr: domain.ErrEmptyValue},
		{name: "no archives", src: Sources{Documents: mem, Groups: mem, Store: mem}, scorers: s, wantErr: domain.ErrEmptyValue},
		{name: "no groups", src: Sources{Documents: mem, Archives: mem, Store: mem}, scorers: s, wantErr: domain.ErrEmptyValue},
		{name: "no store", src: Sources{Documents: mem, Archives: mem, Groups: mem}, scorers: s, wantErr: domain.ErrEmptyValue},
		{
			name:    "duplicate scorer names",
			src:     memorySources(mem),
			scorers: []ports.FeatureScorer{testutils.NewMockScorer("s"), testutils.NewMockScorer("s")},
			wantErr: domain.ErrContractViolation,
		},
		{
			name:    "nil model pointer",
			src:     memorySources(mem),
			scorers: []ports.FeatureScorer{(*scorers.ContentSimilarityModel)(nil)},
			wantErr: domain.ErrContractViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatcher(tt.src, tt.scorers)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	m, err := NewMatcher(memorySources(mem), s)
	require.NoError(t, err)
	assert.Equal(t, s, m.Scorers())
}

func TestMatcher_RunTimeout(t *testing.T) {
	s := testutils.NewMockScorer("s")
	s.Default = 1
	s.OnScore = func(string, string) { time.Sleep(20 * time.Millisecond) }

	mem := newExampleStore()
	mem.AddGroups(domain.Group{ID: "G2", Members: []string{"C2"}})
	m, err := NewMatcher(memorySources(mem), []ports.FeatureScorer{s},
		WithLogger(quietLogger()), WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), RunRequest{GroupIDs: []string{"G1", "G2"}, Namespace: "ns"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrIncomplete)
}
