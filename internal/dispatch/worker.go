package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/metrics"
	"github.com/joshsymonds/mailpurge/internal/retry"
)

type worker struct {
	id     int
	d      *dispatcher
	client gmail.Client
}

// run consumes chunks until jobs closes. Chunks dequeued after the signal
// fired or the group started aborting are dropped without a remote call.
// Remote calls use ctx, not gctx, so a call already issued runs to completion.
func (w *worker) run(ctx, gctx context.Context, jobs <-chan chunk, results chan<- int) error {
	for c := range jobs {
		if w.d.stopping(gctx) {
			w.d.opts.Metrics.Chunk(w.d.action.Name(), metrics.OutcomeSkipped, 0)
			continue
		}
		n, err := w.process(ctx, gctx, c)
		if n > 0 {
			results <- n
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *worker) handle(ctx context.Context) (gmail.Client, error) {
	if w.client != nil {
		return w.client, nil
	}
	c, err := w.d.opts.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker %d: build client: %w", w.id, err)
	}
	w.client = c
	return c, nil
}

func (w *worker) process(ctx, gctx context.Context, c chunk) (int, error) {
	name := w.d.action.Name()
	client, err := w.handle(ctx)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	err = retry.Do(ctx, w.d.policy("batch", c.seq), func() error {
		return w.d.action.Bulk(ctx, client, c.ids)
	})
	if err == nil {
		w.d.opts.Metrics.Chunk(name, metrics.OutcomeBulk, time.Since(start))
		w.d.opts.Metrics.Processed(name, len(c.ids))
		w.d.log.Debug("chunk done", "chunk", c.seq, "size", len(c.ids), "worker", w.id)
		return len(c.ids), nil
	}
	if gmail.Classify(err) == gmail.ClassPermission {
		w.d.opts.Metrics.Chunk(name, metrics.OutcomeFatal, time.Since(start))
		return 0, &gmail.PermissionError{Action: name, Err: err}
	}

	w.d.log.Warn("bulk call failed; falling back to single calls",
		"chunk", c.seq,
		"size", len(c.ids),
		"error", err,
	)
	ok := 0
	for _, id := range c.ids {
		if w.d.stopping(gctx) {
			break
		}
		itemErr := retry.Do(ctx, w.d.policy("single", c.seq), func() error {
			return w.d.action.Single(ctx, client, id)
		})
		if itemErr != nil {
			w.d.opts.Metrics.ItemFailed(name)
			w.d.log.Debug("single call failed", "chunk", c.seq, "id", id, "error", itemErr)
			continue
		}
		ok++
	}
	w.d.opts.Metrics.Chunk(name, metrics.OutcomeFallback, time.Since(start))
	w.d.opts.Metrics.Processed(name, ok)
	return ok, nil
}
