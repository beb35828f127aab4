package store

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var _ ports.RecordStore = (*RateLimited)(nil)

// RateLimited paces writes to a RecordStore with a token bucket. Reads pass
// through unthrottled.
type RateLimited struct {
	next    ports.RecordStore
	limiter *rate.Limiter
}

// NewRateLimited allows writesPerSecond sustained writes with bursts of up
// to burst. A burst below one is raised to one.
func NewRateLimited(next ports.RecordStore, writesPerSecond float64, burst int) (*RateLimited, error) {
	if next == nil {
		return nil, fmt.Errorf("record store: %w", domain.ErrEmptyValue)
	}
	if writesPerSecond <= 0 {
		return nil, fmt.Errorf("%w: writes per second must be positive, got %v",
			domain.ErrInvalidConfiguration, writesPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(writesPerSecond), burst)}, nil
}

// GetByDocumentIDs implements ports.RecordStore.
func (r *RateLimited) GetByDocumentIDs(ctx context.Context, documentIDs []string) ([]*domain.MetadataRecord, error) {
	return r.next.GetByDocumentIDs(ctx, documentIDs)
}

// Put waits for a write token, then delegates. A context that ends while
// waiting fails the write.
func (r *RateLimited) Put(ctx context.Context, record *domain.MetadataRecord) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Put(ctx, record)
}
