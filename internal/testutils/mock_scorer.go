package testutils

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var _ ports.FittableScorer = (*MockScorer)(nil)

// MockScorer is a scripted scorer for aggregator and matcher tests.
// Scores are looked up by (candidate, document) pair; unscripted pairs return
// Default. Every call is counted so tests can assert that no scoring happened.
type MockScorer struct {
	name string

	mu     sync.RWMutex
	scores map[pairKey]float64

	// Default is returned for pairs without a scripted score.
	Default float64

	// FitErr, when set, is returned by Fit.
	FitErr error

	// OnScore, when set, runs before each Score returns.
	OnScore func(candidateID, documentID string)

	scoreCalls atomic.Int64
	fitCalls   atomic.Int64

	lastDocs     []domain.DocumentRecord
	lastArchives []domain.ArchiveRecord
}

type pairKey struct{ candidate, document string }

// NewMockScorer creates a scorer named name that scores 0 for every pair.
func NewMockScorer(name string) *MockScorer {
	return &MockScorer{name: name, scores: make(map[pairKey]float64)}
}

// Set scripts the score of one pair and returns the scorer for chaining.
func (m *MockScorer) Set(candidateID, documentID string, score float64) *MockScorer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[pairKey{candidateID, documentID}] = score
	return m
}

// Name implements ports.FeatureScorer.
func (m *MockScorer) Name() string { return m.name }

// Score implements ports.FeatureScorer.
func (m *MockScorer) Score(candidateID, documentID string) float64 {
	m.scoreCalls.Add(1)
	if m.OnScore != nil {
		m.OnScore(candidateID, documentID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.scores[pairKey{candidateID, documentID}]; ok {
		return s
	}
	return m.Default
}

// Fit implements ports.FittableScorer by recording its inputs.
func (m *MockScorer) Fit(ctx context.Context, docs []domain.DocumentRecord, archives []domain.ArchiveRecord) error {
	m.fitCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FitErr != nil {
		return m.FitErr
	}
	m.mu.Lock()
	m.lastDocs = docs
	m.lastArchives = archives
	m.mu.Unlock()
	return nil
}

// ScoreCalls returns how many times Score ran.
func (m *MockScorer) ScoreCalls() int64 { return m.scoreCalls.Load() }

// FitCalls returns how many times Fit ran.
func (m *MockScorer) FitCalls() int64 { return m.fitCalls.Load() }

// FitInputs returns the records passed to the last successful Fit.
func (m *MockScorer) FitInputs() ([]domain.DocumentRecord, []domain.ArchiveRecord) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastDocs, m.lastArchives
}

// ValidatingScorer wraps a scorer with a Validate method returning Err.
type ValidatingScorer struct {
	ports.FeatureScorer
	Err error
}

// Validate implements ports.Validator.
func (v ValidatingScorer) Validate() error { return v.Err }
