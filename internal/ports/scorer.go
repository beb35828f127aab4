// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-matcher/internal/domain"
)

// FeatureScorer is the pluggable scoring strategy of the matcher. Each
// scorer computes one named feature describing how well a candidate fits a
// document.
//
// Score must be a pure function of the scorer's fitted state and its two
// arguments: no side effects and identical results for identical inputs.
// A scorer that cannot compute a meaningful score returns a value <= 0
// instead of failing; the aggregator treats such values as no signal.
// Implementations must be safe for concurrent Score calls once fitted.
type FeatureScorer interface {
	// Name returns the feature name under which scores are stored.
	// It must be non-empty and unique among the scorers of one pass.
	Name() string

	// Score returns the fit between candidateID and documentID.
	//
	// Example:
	//
	//	if s := scorer.Score("~Ada_Lovelace1", "forum-42"); s > 0 {
	//	    vec[scorer.Name()] = s
	//	}
	Score(candidateID, documentID string) float64
}

// FittableScorer is a FeatureScorer that must learn corpus state before it
// can answer queries. Fit replaces any state from a previous fit; it must
// complete before concurrent Score calls begin.
type FittableScorer interface {
	FeatureScorer

	// Fit builds the scorer's state from document and archive records.
	// Records without an entity ID contribute corpus statistics only.
	Fit(ctx context.Context, docs []domain.DocumentRecord, archives []domain.ArchiveRecord) error
}

// Ranker orders every known candidate by descending score for a document.
// Ties are broken by ascending candidate ID so the order is reproducible.
type Ranker interface {
	Rank(documentID string) []domain.RankedCandidate
}

// Validator is implemented by scorers that can check their own readiness.
// The aggregator calls Validate during contract validation, before any
// scoring starts.
type Validator interface {
	Validate() error
}

// Tokenizer converts raw text into an ordered token sequence. It must be
// deterministic for identical input so fitted models are reproducible.
// The mode selects the tokenization strategy, for example "words" or
// "chunks"; unknown modes fall back to the implementation's default.
type Tokenizer interface {
	Tokenize(text, mode string) []string
}
