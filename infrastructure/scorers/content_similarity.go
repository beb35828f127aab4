package scorers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-matcher/infrastructure/tokenize"
	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var (
	_ ports.FittableScorer = (*ContentSimilarityModel)(nil)
	_ ports.Ranker         = (*ContentSimilarityModel)(nil)
	_ ports.Validator      = (*ContentSimilarityModel)(nil)
)

// ContentSimilarityModel scores candidates against documents by the TF-IDF
// weighted overlap between a document's text and the candidate's archive.
//
// Fit builds a token dictionary over every document and archive record,
// tagged or not, so inverse document frequencies reflect the full corpus.
// Only tagged records become queryable per-entity bags. Score returns the
// unnormalized inner product of the two weighted vectors; values are only
// comparable with other scores of the same fitted model.
//
// Concurrency: Fit swaps in a completely new fitted state under a write
// lock, so a refit never mixes bags from an earlier fit. Score and Rank only
// read that state and are safe to call from many goroutines.
type ContentSimilarityModel struct {
	// name is the feature name scores are stored under.
	name string
	// config contains the validated configuration parameters.
	config ContentSimilarityConfig
	// tokenizer turns record content into token sequences.
	tokenizer ports.Tokenizer
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
	// observe, when set, receives the dictionary size after every record.
	observe func(dictionarySize int)

	mu    sync.RWMutex
	state *fittedState
}

// fittedState is everything Fit derives. It is never mutated after being
// published.
type fittedState struct {
	dictionary *Dictionary
	weights    *TermWeightModel
	corpusSize int

	documentBags  map[string]domain.TokenBag
	candidateBags map[string]domain.TokenBag
	documents     map[string]SparseVector
	candidates    map[string]SparseVector
}

// ContentSimilarityConfig controls tokenization and weighting.
type ContentSimilarityConfig struct {
	// Mode is passed to the tokenizer: "words" for unigrams or "chunks" for
	// phrase-like runs of content words.
	Mode string `yaml:"mode" json:"mode" validate:"required,oneof=words chunks"`

	// Normalize L2-normalizes each weighted vector so Score becomes a
	// cosine similarity in [0, 1]. Off by default.
	Normalize bool `yaml:"normalize" json:"normalize"`
}

// DefaultContentSimilarityConfig returns word tokenization with
// unnormalized weights.
func DefaultContentSimilarityConfig() ContentSimilarityConfig {
	return ContentSimilarityConfig{Mode: tokenize.ModeWords}
}

// ContentOption configures optional behavior of a ContentSimilarityModel.
type ContentOption func(*ContentSimilarityModel)

// WithFitObserver registers fn to receive the dictionary size after each
// record is added during Fit.
func WithFitObserver(fn func(dictionarySize int)) ContentOption {
	return func(m *ContentSimilarityModel) { m.observe = fn }
}

// NewContentSimilarityModel creates an unfitted model.
//
// Returns ErrEmptyScorerName if name is empty, ErrNilTokenizer if tokenizer
// is nil, or a configuration validation error.
func NewContentSimilarityModel(
	name string,
	tokenizer ports.Tokenizer,
	config ContentSimilarityConfig,
	opts ...ContentOption,
) (*ContentSimilarityModel, error) {
	if name == "" {
		return nil, ErrEmptyScorerName
	}
	if tokenizer == nil {
		return nil, ErrNilTokenizer
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m := &ContentSimilarityModel{
		name:      name,
		config:    config,
		tokenizer: tokenizer,
		tracer:    otel.Tracer("content-similarity-model"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the feature name of this scorer.
func (m *ContentSimilarityModel) Name() string { return m.name }

// Fit builds the dictionary, per-entity token bags and the term-weight
// model. Document records are processed before archive records, each in
// input order, which fixes the token ID assignment.
//
// On error, including context cancellation, the previously fitted state is
// left untouched.
func (m *ContentSimilarityModel) Fit(
	ctx context.Context,
	docs []domain.DocumentRecord,
	archives []domain.ArchiveRecord,
) error {
	ctx, span := m.tracer.Start(ctx, "ContentSimilarityModel.Fit",
		trace.WithAttributes(
			attribute.String("scorer.name", m.name),
			attribute.String("config.mode", m.config.Mode),
			attribute.Int("fit.document_records", len(docs)),
			attribute.Int("fit.archive_records", len(archives)),
		),
	)
	defer span.End()

	dict := NewDictionary()
	corpus := make([][]string, 0, len(docs)+len(archives))
	// Entity -> indices into corpus, so bags are derived from the final
	// dictionary once every record has been seen.
	docSeqs := make(map[string][]int)
	candSeqs := make(map[string][]int)

	add := func(content string) {
		tokens := m.tokenizer.Tokenize(content, m.config.Mode)
		dict.Add(tokens)
		corpus = append(corpus, tokens)
		if m.observe != nil {
			m.observe(dict.Len())
		}
	}

	for _, rec := range docs {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fit cancelled")
			return fmt.Errorf("fit %s: %w", m.name, err)
		}
		add(rec.Content)
		if rec.Tagged() {
			docSeqs[rec.DocumentID] = append(docSeqs[rec.DocumentID], len(corpus)-1)
		}
	}

	for _, rec := range archives {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fit cancelled")
			return fmt.Errorf("fit %s: %w", m.name, err)
		}
		add(rec.Content)
		if rec.Tagged() {
			candSeqs[rec.CandidateID] = append(candSeqs[rec.CandidateID], len(corpus)-1)
		}
	}

	corpusBags := make([]domain.TokenBag, len(corpus))
	tokenCount := 0
	for i, tokens := range corpus {
		corpusBags[i] = dict.Bag(tokens)
		tokenCount += corpusBags[i].Total()
	}
	weights := NewTermWeightModel(corpusBags, m.config.Normalize)

	st := &fittedState{
		dictionary:    dict,
		weights:       weights,
		corpusSize:    len(corpus),
		documentBags:  accumulate(docSeqs, corpusBags),
		candidateBags: accumulate(candSeqs, corpusBags),
	}
	st.documents = weighAll(st.documentBags, weights)
	st.candidates = weighAll(st.candidateBags, weights)

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()

	span.SetAttributes(
		attribute.Int("fit.corpus_size", st.corpusSize),
		attribute.Int("fit.dictionary_size", dict.Len()),
		attribute.Int("fit.token_count", tokenCount),
		attribute.Int("fit.documents", len(st.documents)),
		attribute.Int("fit.candidates", len(st.candidates)),
	)
	return nil
}

// accumulate merges the corpus bags referenced by each entity into a single
// bag per entity.
func accumulate(seqs map[string][]int, corpus []domain.TokenBag) map[string]domain.TokenBag {
	out := make(map[string]domain.TokenBag, len(seqs))
	for id, idxs := range seqs {
		bag := domain.NewTokenBag()
		for _, i := range idxs {
			bag.Merge(corpus[i])
		}
		out[id] = bag
	}
	return out
}

func weighAll(bags map[string]domain.TokenBag, weights *TermWeightModel) map[string]SparseVector {
	out := make(map[string]SparseVector, len(bags))
	for id, bag := range bags {
		out[id] = weights.Weigh(bag)
	}
	return out
}

// Score returns the TF-IDF inner product between the candidate's archive
// and the document. Unknown candidates or documents and an unfitted model
// all score 0.
func (m *ContentSimilarityModel) Score(candidateID, documentID string) float64 {
	st := m.snapshot()
	if st == nil {
		return 0
	}
	return Dot(st.documents[documentID], st.candidates[candidateID])
}

// Rank returns every candidate seen during Fit ordered by descending score
// against documentID, ties broken by candidate ID.
func (m *ContentSimilarityModel) Rank(documentID string) []domain.RankedCandidate {
	st := m.snapshot()
	if st == nil {
		return nil
	}

	doc := st.documents[documentID]
	ranked := make([]domain.RankedCandidate, 0, len(st.candidates))
	for id, vec := range st.candidates {
		ranked = append(ranked, domain.RankedCandidate{CandidateID: id, Score: Dot(doc, vec)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	return ranked
}

// Validate reports whether the model is configured and fitted.
func (m *ContentSimilarityModel) Validate() error {
	if err := validate.Struct(m.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if m.snapshot() == nil {
		return fmt.Errorf("%s: %w", m.name, domain.ErrNotFitted)
	}
	return nil
}

// DictionarySize returns the number of distinct tokens of the current fit.
func (m *ContentSimilarityModel) DictionarySize() int {
	if st := m.snapshot(); st != nil {
		return st.dictionary.Len()
	}
	return 0
}

// CorpusSize returns the number of token sequences of the current fit.
func (m *ContentSimilarityModel) CorpusSize() int {
	if st := m.snapshot(); st != nil {
		return st.corpusSize
	}
	return 0
}

// DocumentBag returns a copy of the accumulated bag of a document.
func (m *ContentSimilarityModel) DocumentBag(documentID string) domain.TokenBag {
	return m.bag(func(st *fittedState) domain.TokenBag { return st.documentBags[documentID] })
}

// CandidateBag returns a copy of the accumulated bag of a candidate.
func (m *ContentSimilarityModel) CandidateBag(candidateID string) domain.TokenBag {
	return m.bag(func(st *fittedState) domain.TokenBag { return st.candidateBags[candidateID] })
}

// TokenID looks up a token in the current dictionary.
func (m *ContentSimilarityModel) TokenID(token string) (int, bool) {
	st := m.snapshot()
	if st == nil {
		return 0, false
	}
	return st.dictionary.ID(token)
}

// IDF returns the inverse document frequency of token in the current fit,
// 0 for unknown tokens.
func (m *ContentSimilarityModel) IDF(token string) float64 {
	st := m.snapshot()
	if st == nil {
		return 0
	}
	id, ok := st.dictionary.ID(token)
	if !ok {
		return 0
	}
	return st.weights.IDF(id)
}

func (m *ContentSimilarityModel) bag(pick func(*fittedState) domain.TokenBag) domain.TokenBag {
	out := domain.NewTokenBag()
	if st := m.snapshot(); st != nil {
		out.Merge(pick(st))
	}
	return out
}

func (m *ContentSimilarityModel) snapshot() *fittedState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// NewContentSimilarityFromConfig creates a ContentSimilarityModel from a
// configuration map. This is the boundary adapter for YAML/JSON
// configuration.
func NewContentSimilarityFromConfig(
	name string,
	config map[string]any,
	tokenizer ports.Tokenizer,
) (ports.FeatureScorer, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	// Start with defaults, then overlay user config.
	cfg := DefaultContentSimilarityConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewContentSimilarityModel(name, tokenizer, cfg)
}
