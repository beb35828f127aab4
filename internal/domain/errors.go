package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during matching operations.
var (
	// ErrContractViolation indicates that a component does not satisfy the
	// feature scorer contract.
	ErrContractViolation = errors.New("feature scorer contract violation")

	// ErrNotFitted indicates that a scorer was used before its fit phase.
	ErrNotFitted = errors.New("scorer not fitted")

	// ErrEmptyValue indicates that a required value is empty or nil.
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrIncomplete indicates that an aggregation pass stopped before every
	// document was processed.
	ErrIncomplete = errors.New("aggregation incomplete")
)

// ContractError reports which scorer failed contract validation and why.
type ContractError struct {
	// Index is the position of the offending scorer in the supplied list.
	Index int

	// Scorer is the scorer's name, when it has one.
	Scorer string

	// Reason describes the violated requirement.
	Reason string

	// Err is the underlying cause, typically ErrContractViolation or a
	// wrapped validation failure.
	Err error
}

// Error implements the error interface for ContractError.
func (e *ContractError) Error() string {
	return fmt.Sprintf("contract error: scorer[%d]=%q, reason=%s, err=%v", e.Index, e.Scorer, e.Reason, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *ContractError) Unwrap() error { return e.Err }

// NewContractError creates a ContractError wrapping ErrContractViolation.
func NewContractError(index int, scorer, reason string) *ContractError {
	return &ContractError{
		Index:  index,
		Scorer: scorer,
		Reason: reason,
		Err:    ErrContractViolation,
	}
}

// PartialResultError is returned when an aggregation pass was interrupted.
// Completed lists the documents whose records are valid and were returned;
// every other requested document is not yet processed.
type PartialResultError struct {
	Completed []string
	Pending   []string
	Err       error
}

// Error implements the error interface for PartialResultError.
func (e *PartialResultError) Error() string {
	return fmt.Sprintf("%v: completed=%d, pending=%d, err=%v", ErrIncomplete, len(e.Completed), len(e.Pending), e.Err)
}

// Unwrap exposes both ErrIncomplete and the interrupting cause.
func (e *PartialResultError) Unwrap() []error { return []error{ErrIncomplete, e.Err} }

// ValidationError collects every failure found while checking one input
// entity, so a caller sees all of them at once instead of only the first.
type ValidationError struct {
	Entity string
	Errs   []error
}

// Error joins the collected failures.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(msgs, "; "))
}

// Unwrap exposes every collected failure to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error { return e.Errs }

// Add records a failure. Nil errors are ignored.
func (e *ValidationError) Add(err error) {
	if err != nil {
		e.Errs = append(e.Errs, err)
	}
}

// Err returns e when a failure was recorded and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e
}

// NewValidationError creates an empty ValidationError for entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity}
}
