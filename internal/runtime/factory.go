package runtime

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	gc "github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/rate"
)

// Factory builds independent Gmail clients that share one token source and
// one limiter. Each call returns a fresh service and HTTP transport.
type Factory struct {
	ts      oauth2.TokenSource
	limiter rate.Limiter
	opts    []option.ClientOption
}

func NewFactory(ts oauth2.TokenSource, limiter rate.Limiter, opts ...option.ClientOption) *Factory {
	return &Factory{ts: ts, limiter: limiter, opts: opts}
}

func (f *Factory) NewClient(ctx context.Context) (gc.Client, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(f.ts)}, f.opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc, f.limiter), nil
}
