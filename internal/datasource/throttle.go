package datasource

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/conduit-lang/recordkit/internal/orm/fault"
)

// ThrottledStore limits the rate statements reach the wrapped store
type ThrottledStore struct {
	store   Store
	limiter *rate.Limiter
}

// NewThrottledStore wraps store with a limiter allowing perSecond statements
// per second with the given burst
func NewThrottledStore(store Store, perSecond float64, burst int) *ThrottledStore {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledStore{
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Connect connects the wrapped store
func (t *ThrottledStore) Connect(ctx context.Context) error {
	return t.store.Connect(ctx)
}

// Query waits for the limiter, then runs the statement
func (t *ThrottledStore) Query(ctx context.Context, statement string) (*Cursor, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fault.Failed("throttle", err)
	}
	return t.store.Query(ctx, statement)
}

// Shutdown shuts down the wrapped store
func (t *ThrottledStore) Shutdown(ctx context.Context) error {
	return t.store.Shutdown(ctx)
}
