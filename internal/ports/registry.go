package ports

// ScorerFactory creates a feature scorer named name from its
// type-specific parameters.
type ScorerFactory func(name string, params map[string]any) (FeatureScorer, error)

// ScorerRegistry builds scorers from configuration by type name.
type ScorerRegistry interface {
	// CreateScorer instantiates a scorer of the given type.
	CreateScorer(scorerType, name string, params map[string]any) (FeatureScorer, error)

	// RegisterScorerFactory adds or replaces the factory for a type.
	RegisterScorerFactory(scorerType string, factory ScorerFactory) error

	// GetSupportedTypes lists the registered scorer types.
	GetSupportedTypes() []string
}
