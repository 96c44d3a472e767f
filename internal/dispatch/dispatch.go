// Package dispatch drains a message ID stream into fixed-size chunks and
// applies a bulk action to them on a bounded pool of workers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/metrics"
	"github.com/joshsymonds/mailpurge/internal/progress"
	"github.com/joshsymonds/mailpurge/internal/retry"
	"github.com/joshsymonds/mailpurge/internal/source"
)

const (
	DefaultChunkSize = gmail.MaxBatchSize
	DefaultWorkers   = 4
	MaxWorkers       = 8

	// At most queueFactor*workers chunks are outstanding (queued or in flight).
	queueFactor = 4
)

// ClientFactory builds the client a worker owns for its lifetime.
type ClientFactory func(ctx context.Context) (gmail.Client, error)

// Options tune one Run.
type Options struct {
	Estimate  int
	Limit     int // stop after this many IDs; <= 0 means no limit
	ChunkSize int
	Workers   int
	NewClient ClientFactory
	Progress  progress.Func
	Signal    *progress.Signal
	Policy    retry.Policy
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

// ClampChunkSize returns n bounded to [1, MaxBatchSize]; n <= 0 selects the default.
func ClampChunkSize(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}
	if n > gmail.MaxBatchSize {
		return gmail.MaxBatchSize
	}
	return n
}

// ClampWorkers returns n bounded to [1, MaxWorkers]; n <= 0 selects the default.
func ClampWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

type chunk struct {
	seq int
	ids []gmail.MessageID
}

type dispatcher struct {
	action    Action
	opts      Options
	log       *slog.Logger
	chunkSize int
	workers   int
	tracker   *progress.Tracker
}

// Run applies action to every ID in src and returns how many messages were
// mutated successfully. A permission failure on a bulk call aborts the run
// with a *gmail.PermissionError; a source failure stops submission and is
// returned after in-flight chunks finish. Firing opts.Signal stops the run
// without error.
func Run(ctx context.Context, src source.IDs, action Action, opts Options) (int, error) {
	if opts.NewClient == nil {
		return 0, errors.New("dispatch: client factory is required")
	}
	if opts.Policy.Retryable == nil {
		opts.Policy.Retryable = gmail.IsTransient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	d := &dispatcher{
		action:    action,
		opts:      opts,
		log:       logger.With("action", action.Name()),
		chunkSize: ClampChunkSize(opts.ChunkSize),
		workers:   ClampWorkers(opts.Workers),
		tracker:   progress.NewTracker(opts.Estimate, opts.Progress),
	}
	return d.run(ctx, src)
}

func (d *dispatcher) run(ctx context.Context, src source.IDs) (int, error) {
	d.tracker.Start()
	if d.opts.Signal.Fired() {
		d.tracker.Finish()
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan chunk, (queueFactor-1)*d.workers)
	results := make(chan int, queueFactor*d.workers)
	for i := 0; i < d.workers; i++ {
		w := &worker{id: i, d: d}
		g.Go(func() error { return w.run(ctx, gctx, jobs, results) })
	}
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(results)
	}()

	feedErr := d.feed(gctx, src, jobs, results)
	close(jobs)
	for n := range results {
		d.tracker.Add(n)
	}
	workErr := <-waitErr
	d.tracker.Finish()
	done, total := d.tracker.Snapshot()

	switch {
	case workErr != nil:
		d.log.Error("dispatch aborted", "processed", done, "error", workErr)
		return done, workErr
	case feedErr != nil:
		d.log.Error("source failed", "processed", done, "error", feedErr)
		return done, feedErr
	case ctx.Err() != nil:
		return done, ctx.Err()
	}
	d.log.Info("dispatch finished",
		"processed", done,
		"estimated", total,
		"canceled", d.opts.Signal.Fired(),
	)
	return done, nil
}

// feed is the only place chunk boundaries are decided. It blocks while the
// queue is full and keeps folding completed counts into the tracker.
func (d *dispatcher) feed(gctx context.Context, src source.IDs, jobs chan<- chunk, results <-chan int) error {
	buf := make([]gmail.MessageID, 0, d.chunkSize)
	emitted := 0
	seq := 0

	submit := func() bool {
		if d.stopping(gctx) {
			return false
		}
		seq++
		c := chunk{seq: seq, ids: buf}
		buf = make([]gmail.MessageID, 0, d.chunkSize)
		for {
			select {
			case jobs <- c:
				return true
			case n := <-results:
				d.tracker.Add(n)
			case <-gctx.Done():
				return false
			case <-d.opts.Signal.Done():
				return false
			}
		}
	}

	for id, err := range src {
		if err != nil {
			return fmt.Errorf("drain source: %w", err)
		}
		if d.stopping(gctx) {
			return nil
		}
		buf = append(buf, id)
		emitted++
		full := len(buf) >= d.chunkSize
		limited := d.opts.Limit > 0 && emitted >= d.opts.Limit
		if full && !submit() {
			return nil
		}
		d.drainReady(results)
		if limited {
			break
		}
	}
	if len(buf) > 0 {
		submit()
	}
	return nil
}

func (d *dispatcher) drainReady(results <-chan int) {
	for {
		select {
		case n := <-results:
			d.tracker.Add(n)
		default:
			return
		}
	}
}

func (d *dispatcher) stopping(gctx context.Context) bool {
	return gctx.Err() != nil || d.opts.Signal.Fired()
}

// policy decorates the configured retry policy with metrics and logging.
func (d *dispatcher) policy(op string, seq int) retry.Policy {
	p := d.opts.Policy
	prev := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		d.opts.Metrics.Retry(op)
		d.log.Debug("retrying",
			"op", op,
			"chunk", seq,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if prev != nil {
			prev(attempt, delay, err)
		}
	}
	return p
}
