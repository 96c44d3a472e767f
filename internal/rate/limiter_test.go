package rate

import (
	"context"
	"errors"
	"testing"
)

func TestTokenBucketAllowsBurst(t *testing.T) {
	tb := NewTokenBucket(3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestTokenBucketCanceled(t *testing.T) {
	tb := NewTokenBucket(1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := tb.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	cancel()
	err := tb.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
