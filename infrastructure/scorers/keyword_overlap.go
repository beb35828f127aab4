package scorers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var _ ports.FittableScorer = (*KeywordOverlapScorer)(nil)

// KeywordOverlapScorer measures how many of a document's subject keywords
// are covered by a candidate's declared expertise. Keywords are compared
// after Unicode case folding using normalized Levenshtein similarity, so
// near spellings such as "optimisation" and "optimization" match.
//
// The score is the fraction of document keywords with at least one
// matching candidate keyword, in (0, 1]. Documents or candidates without
// keywords score 0.
type KeywordOverlapScorer struct {
	name   string
	config KeywordOverlapConfig

	mu         sync.RWMutex
	documents  map[string][]string
	candidates map[string][]string
}

// KeywordOverlapConfig controls fuzzy matching.
type KeywordOverlapConfig struct {
	// Threshold is the minimum similarity (0.0-1.0) for two keywords to be
	// considered the same.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"min=0.0,max=1.0"`
}

// DefaultKeywordOverlapConfig returns a threshold that tolerates small
// spelling differences.
func DefaultKeywordOverlapConfig() KeywordOverlapConfig {
	return KeywordOverlapConfig{Threshold: 0.85}
}

// NewKeywordOverlapScorer creates an unfitted scorer.
func NewKeywordOverlapScorer(name string, config KeywordOverlapConfig) (*KeywordOverlapScorer, error) {
	if name == "" {
		return nil, ErrEmptyScorerName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &KeywordOverlapScorer{
		name:       name,
		config:     config,
		documents:  make(map[string][]string),
		candidates: make(map[string][]string),
	}, nil
}

// Name returns the feature name of this scorer.
func (k *KeywordOverlapScorer) Name() string { return k.name }

// Fit collects the folded, de-duplicated keywords of every tagged record.
// Keywords of records sharing an ID accumulate. Content is ignored.
func (k *KeywordOverlapScorer) Fit(
	ctx context.Context,
	docs []domain.DocumentRecord,
	archives []domain.ArchiveRecord,
) error {
	documents := make(map[string]map[string]struct{})
	candidates := make(map[string]map[string]struct{})

	for _, rec := range docs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fit %s: %w", k.name, err)
		}
		if rec.Tagged() {
			collect(documents, rec.DocumentID, rec.Keywords)
		}
	}
	for _, rec := range archives {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fit %s: %w", k.name, err)
		}
		if rec.Tagged() {
			collect(candidates, rec.CandidateID, rec.Keywords)
		}
	}

	k.mu.Lock()
	k.documents = flatten(documents)
	k.candidates = flatten(candidates)
	k.mu.Unlock()
	return nil
}

func collect(into map[string]map[string]struct{}, id string, keywords []string) {
	set, ok := into[id]
	if !ok {
		set = make(map[string]struct{})
		into[id] = set
	}
	caser := cases.Fold()
	for _, kw := range keywords {
		kw = strings.TrimSpace(caser.String(kw))
		if kw != "" {
			set[kw] = struct{}{}
		}
	}
}

func flatten(sets map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(sets))
	for id, set := range sets {
		if len(set) == 0 {
			continue
		}
		list := make([]string, 0, len(set))
		for kw := range set {
			list = append(list, kw)
		}
		sort.Strings(list)
		out[id] = list
	}
	return out
}

// Score returns the fraction of the document's keywords matched by the
// candidate's keywords.
func (k *KeywordOverlapScorer) Score(candidateID, documentID string) float64 {
	k.mu.RLock()
	docKeywords := k.documents[documentID]
	candKeywords := k.candidates[candidateID]
	k.mu.RUnlock()

	if len(docKeywords) == 0 || len(candKeywords) == 0 {
		return 0
	}

	matched := 0
	for _, dk := range docKeywords {
		for _, ck := range candKeywords {
			if similarity(dk, ck) >= k.config.Threshold {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(docKeywords))
}

// similarity computes 1 - distance/maxRunes, in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	sim := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// NewKeywordOverlapFromConfig creates a KeywordOverlapScorer from a
// configuration map.
func NewKeywordOverlapFromConfig(name string, config map[string]any) (ports.FeatureScorer, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultKeywordOverlapConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewKeywordOverlapScorer(name, cfg)
}
