// Package scorers provides the feature scorers that implement the
// ports.FeatureScorer interface for the matcher.
package scorers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by scorer constructors.
var (
	// ErrEmptyScorerName is returned when attempting to create a scorer with an empty name.
	ErrEmptyScorerName = errors.New("scorer name cannot be empty")

	// ErrNilTokenizer is returned when a content scorer is created without a tokenizer.
	ErrNilTokenizer = errors.New("tokenizer cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
