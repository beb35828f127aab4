package ports

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-matcher/internal/domain"
)

// TestUpstreamError tests creation, formatting and unwrapping of
// UpstreamError.
func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError("store", "Put", ErrServiceUnavailable)

	assert.Equal(t, "upstream error: source=store, operation=Put, err=service unavailable", err.Error())
	assert.Equal(t, "store", err.Source)
	assert.Equal(t, "Put", err.Operation)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.False(t, errors.Is(err, domain.ErrContractViolation),
		"upstream failures must stay distinct from contract violations")
}

// TestConfigError tests the ConfigError type.
func TestConfigError(t *testing.T) {
	err := NewConfigError("matcher.namespace", ErrConfigNotFound)

	assert.Equal(t, "config error: key=matcher.namespace, err=configuration not found", err.Error())
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

// TestStatusCode verifies the error to HTTP status mapping honoured by the
// transport boundary.
func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: http.StatusOK},
		{name: "bad token", err: NewUpstreamError("auth", "Verify", ErrAuthenticationFailed), want: http.StatusBadRequest},
		{name: "forbidden config", err: fmt.Errorf("load: %w", ErrForbidden), want: http.StatusForbidden},
		{name: "unknown config", err: NewConfigError("config_note", ErrConfigNotFound), want: http.StatusNotFound},
		{name: "unknown group", err: NewUpstreamError("groups", "Groups", ErrNotFound), want: http.StatusNotFound},
		{name: "store down", err: NewUpstreamError("store", "Put", ErrServiceUnavailable), want: http.StatusServiceUnavailable},
		{name: "contract violation", err: domain.NewContractError(0, "", "nil"), want: http.StatusInternalServerError},
		{name: "internal fault", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestCommonInfrastructureErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrServiceUnavailable, "service unavailable"},
		{ErrNotFound, "not found"},
		{ErrAuthenticationFailed, "authentication failed"},
		{ErrForbidden, "forbidden"},
		{ErrConfigNotFound, "configuration not found"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}
