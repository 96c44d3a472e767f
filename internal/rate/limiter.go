package rate

import (
	"context"
	"fmt"

	xrate "golang.org/x/time/rate"
)

// Limiter gates outbound API calls so we respect Gmail rate limits.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket paces calls at a fixed rate, shared by every worker client.
type TokenBucket struct {
	l *xrate.Limiter
}

// NewTokenBucket returns a limiter that releases rps tokens per second with a
// burst of rps.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	return &TokenBucket{l: xrate.NewLimiter(xrate.Limit(rps), rps)}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.l.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait canceled: %w", err)
	}
	return nil
}

var _ Limiter = (*TokenBucket)(nil)
