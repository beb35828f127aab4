package application

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ahrav/go-matcher/infrastructure/scorers"
	"github.com/ahrav/go-matcher/internal/ports"
)

// Built-in scorer types.
const (
	// ScorerTypeContentSimilarity is the TF-IDF content similarity model.
	ScorerTypeContentSimilarity = "content_similarity"
	// ScorerTypeTFIDF is an alias of ScorerTypeContentSimilarity.
	ScorerTypeTFIDF = "tfidf"
	// ScorerTypeKeywordOverlap is the fuzzy keyword coverage scorer.
	ScorerTypeKeywordOverlap = "keyword_overlap"
)

// Verify interface compliance at compile time.
var _ ports.ScorerRegistry = (*DefaultScorerRegistry)(nil)

// DefaultScorerRegistry implements ports.ScorerRegistry. It comes with the
// built-in scorer types registered and injects the shared tokenizer into the
// scorers that need one.
type DefaultScorerRegistry struct {
	// factories maps scorer type strings to their factory functions.
	factories map[string]ports.ScorerFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
	// tokenizer is handed to text based scorers.
	tokenizer ports.Tokenizer
}

// NewDefaultScorerRegistry creates a registry whose text scorers use
// tokenizer.
func NewDefaultScorerRegistry(tokenizer ports.Tokenizer) *DefaultScorerRegistry {
	r := &DefaultScorerRegistry{
		factories: make(map[string]ports.ScorerFactory),
		tokenizer: tokenizer,
	}
	r.registerBuiltinFactories()
	return r
}

func (r *DefaultScorerRegistry) registerBuiltinFactories() {
	// Capture the current tokenizer to avoid data races.
	tok := r.tokenizer

	content := func(name string, params map[string]any) (ports.FeatureScorer, error) {
		return scorers.NewContentSimilarityFromConfig(name, params, tok)
	}
	r.factories[ScorerTypeContentSimilarity] = content
	r.factories[ScorerTypeTFIDF] = content

	r.factories[ScorerTypeKeywordOverlap] = scorers.NewKeywordOverlapFromConfig
}

// CreateScorer creates a scorer of scorerType named name.
func (r *DefaultScorerRegistry) CreateScorer(
	scorerType string,
	name string,
	params map[string]any,
) (ports.FeatureScorer, error) {
	r.mu.RLock()
	factory, exists := r.factories[scorerType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported scorer type: %s", scorerType)
	}
	if name == "" {
		return nil, fmt.Errorf("scorer name cannot be empty")
	}
	if params == nil {
		params = make(map[string]any)
	}

	s, err := factory(name, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer %s of type %s: %w", name, scorerType, err)
	}
	return s, nil
}

// RegisterScorerFactory registers factory for scorerType, replacing any
// existing registration.
func (r *DefaultScorerRegistry) RegisterScorerFactory(
	scorerType string,
	factory ports.ScorerFactory,
) error {
	if scorerType == "" {
		return fmt.Errorf("scorer type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scorerType] = factory
	return nil
}

// GetSupportedTypes returns the registered scorer types in sorted order.
func (r *DefaultScorerRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// SetTokenizer swaps the tokenizer used by text scorers created afterwards.
func (r *DefaultScorerRegistry) SetTokenizer(tokenizer ports.Tokenizer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokenizer = tokenizer
	r.registerBuiltinFactories()
}

// BuildScorers creates every scorer listed in cfgs, in order.
func BuildScorers(registry ports.ScorerRegistry, cfgs []ScorerConfig) ([]ports.FeatureScorer, error) {
	out := make([]ports.FeatureScorer, 0, len(cfgs))
	for i, c := range cfgs {
		params := map[string]any{}
		if !c.Parameters.IsZero() {
			if err := c.Parameters.Decode(&params); err != nil {
				return nil, fmt.Errorf("scorers[%d] %s: decode parameters: %w", i, c.Name, err)
			}
		}
		s, err := registry.CreateScorer(c.Type, c.Name, params)
		if err != nil {
			return nil, fmt.Errorf("scorers[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
