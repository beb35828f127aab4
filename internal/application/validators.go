package application

import (
	"errors"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

// ValidateScorers checks that every scorer satisfies the feature scorer
// contract before any scoring work begins. A nil entry, an empty name or a
// name used twice is a contract violation, as is a scorer implementing
// ports.Validator whose Validate fails.
//
// ValidateScorers returns a *domain.ContractError for the first offending
// scorer; the error always wraps domain.ErrContractViolation.
func ValidateScorers(scorers []ports.FeatureScorer) error {
	if err := checkScorerSet(scorers); err != nil {
		return err
	}

	for i, s := range scorers {
		v, ok := s.(ports.Validator)
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			return &domain.ContractError{
				Index:  i,
				Scorer: s.Name(),
				Reason: "self-validation failed",
				Err:    errors.Join(domain.ErrContractViolation, err),
			}
		}
	}
	return nil
}

// checkScorerSet performs the structural part of ValidateScorers, which
// holds before and after a fit.
func checkScorerSet(scorers []ports.FeatureScorer) error {
	seen := make(map[string]int, len(scorers))
	for i, s := range scorers {
		if isNilScorer(s) {
			return domain.NewContractError(i, "", "scorer is nil")
		}
		name := s.Name()
		if name == "" {
			return domain.NewContractError(i, "", "scorer name is empty")
		}
		if first, dup := seen[name]; dup {
			return domain.NewContractError(i, name, fmt.Sprintf("name already used by scorer[%d]", first))
		}
		seen[name] = i
	}
	return nil
}

// isNilScorer reports whether s is nil or holds a nil pointer.
func isNilScorer(s ports.FeatureScorer) bool {
	if s == nil {
		return true
	}
	rv := reflect.ValueOf(s)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// ValidateScorerParameters validates the parameters block of a configured
// scorer against the constraints of its type, so configuration errors are
// reported at load time with the scorer's position.
func ValidateScorerParameters(scorerType string, params yaml.Node) error {
	paramMap := map[string]any{}
	if !params.IsZero() {
		if err := params.Decode(&paramMap); err != nil {
			return fmt.Errorf("failed to decode parameters: %w", err)
		}
	}

	switch scorerType {
	case ScorerTypeContentSimilarity, ScorerTypeTFIDF:
		return validateContentSimilarityParams(paramMap)
	case ScorerTypeKeywordOverlap:
		return validateKeywordOverlapParams(paramMap)
	default:
		return fmt.Errorf("unknown scorer type: %s", scorerType)
	}
}

func validateContentSimilarityParams(params map[string]any) error {
	if mode, ok := params["mode"]; ok {
		s, ok := mode.(string)
		if !ok {
			return fmt.Errorf("mode must be a string")
		}
		if s != "words" && s != "chunks" {
			return fmt.Errorf("mode must be one of words, chunks; got %q", s)
		}
	}
	if normalize, ok := params["normalize"]; ok {
		if _, ok := normalize.(bool); !ok {
			return fmt.Errorf("normalize must be a boolean")
		}
	}
	return nil
}

func validateKeywordOverlapParams(params map[string]any) error {
	threshold, ok := params["threshold"]
	if !ok {
		return nil
	}

	var v float64
	switch t := threshold.(type) {
	case float64:
		v = t
	case int:
		v = float64(t)
	default:
		return fmt.Errorf("threshold must be a number")
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}
	return nil
}
