// Package bulk exposes the user-facing bulk actions: trash, delete, label
// changes and emptying the trash, selected by query or by label set.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joshsymonds/mailpurge/internal/dispatch"
	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/journal"
	"github.com/joshsymonds/mailpurge/internal/metrics"
	"github.com/joshsymonds/mailpurge/internal/retry"
	"github.com/joshsymonds/mailpurge/internal/source"
)

var (
	ErrEmptyQuery    = errors.New("query is empty")
	ErrNoLabels      = errors.New("no labels given")
	ErrNoLabelChange = errors.New("nothing to add or remove")
)

// Journal receives every finished action.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

type Service struct {
	// Client serves listings and estimates on the calling goroutine.
	Client gmail.Lister
	// NewClient builds the per-worker mutation clients.
	NewClient dispatch.ClientFactory
	Policy    retry.Policy
	Metrics   *metrics.Recorder
	Journal   Journal
	Log       *slog.Logger
	Now       func() time.Time
}

func (s *Service) TrashByQuery(ctx context.Context, req QueryRequest) (Result, error) {
	return s.byQuery(ctx, dispatch.Trash(), req.Query, !req.IncludeStarred, req.Options)
}

func (s *Service) DeleteByQuery(ctx context.Context, req QueryRequest) (Result, error) {
	return s.byQuery(ctx, dispatch.Delete(), req.Query, !req.IncludeStarred, req.Options)
}

func (s *Service) TrashByLabels(ctx context.Context, req LabelRequest) (Result, error) {
	return s.byLabels(ctx, dispatch.Trash(), req)
}

func (s *Service) DeleteByLabels(ctx context.Context, req LabelRequest) (Result, error) {
	return s.byLabels(ctx, dispatch.Delete(), req)
}

// ModifyLabelsByQuery adds and removes labels on every message matching the query.
func (s *Service) ModifyLabelsByQuery(ctx context.Context, req ModifyRequest) (Result, error) {
	ops := gmail.ModifyOps{AddLabels: req.Add, RemoveLabels: req.Remove}
	if ops.Empty() {
		return Result{Action: "label"}, ErrNoLabelChange
	}
	return s.byQuery(ctx, dispatch.Modify(ops), req.Query, !req.IncludeStarred, req.Options)
}

// EmptyTrash permanently deletes everything in the trash. Starred messages
// in the trash are deleted too.
func (s *Service) EmptyTrash(ctx context.Context, opts Options) (Result, error) {
	q := gmail.Query{LabelIDs: []gmail.LabelID{gmail.LabelTrash}, IncludeSpamTrash: true}
	res := Result{
		Action:    "empty-trash",
		StartedAt: s.now(),
	}
	return s.run(ctx, dispatch.Delete(), q, opts, res, func(est, processed int) int {
		return queryMatched(est, processed, opts.Max)
	})
}

func (s *Service) byQuery(ctx context.Context, action dispatch.Action, raw string, protect bool, opts Options) (Result, error) {
	res := Result{Action: action.Name(), StartedAt: s.now()}
	if strings.TrimSpace(raw) == "" {
		return res, ErrEmptyQuery
	}
	q := gmail.Query{Raw: gmail.ProtectStarred(raw, protect)}
	res.QueryUsed = q.Raw
	return s.run(ctx, action, q, opts, res, func(est, processed int) int {
		return queryMatched(est, processed, opts.Max)
	})
}

// run estimates q, pages it through the dispatcher and finalizes res.
func (s *Service) run(
	ctx context.Context,
	action dispatch.Action,
	q gmail.Query,
	opts Options,
	res Result,
	matched func(est, processed int) int,
) (Result, error) {
	policy := s.listPolicy()
	est, err := source.Estimate(ctx, s.Client, policy, q)
	if err != nil {
		return s.finish(ctx, res, fmt.Errorf("estimate: %w", err))
	}
	res.Estimated = est

	src := source.Pages(ctx, s.Client, policy, q, opts.Max)
	processed, err := dispatch.Run(ctx, src, action, s.dispatchOptions(opts, est))
	res.Processed = processed
	res.Matched = matched(est, processed)
	res.Canceled = opts.Signal.Fired() || ctx.Err() != nil
	return s.finish(ctx, res, err)
}

func (s *Service) byLabels(ctx context.Context, action dispatch.Action, req LabelRequest) (Result, error) {
	res := Result{Action: action.Name(), StartedAt: s.now(), Mode: req.Mode}
	if len(req.Labels) == 0 {
		return res, ErrNoLabels
	}
	set := source.LabelSet{Labels: req.Labels, Mode: req.Mode, ProtectStarred: !req.IncludeStarred}
	sel, err := source.Combine(ctx, s.Client, s.listPolicy(), set, req.Query, req.Max)
	res.Labels = sel.Labels
	res.SkippedLabels = sel.Skipped
	res.QueryUsed = sel.Query
	if err != nil {
		return s.finish(ctx, res, err)
	}
	res.Estimated = sel.Estimate

	if sel.Empty {
		res.Empty = true
		if req.Progress != nil {
			req.Progress(0, 0)
		}
		s.logger().Info("nothing to select after label protection",
			"action", res.Action,
			"skipped", sel.Skipped,
		)
		return s.finish(ctx, res, nil)
	}

	processed, err := dispatch.Run(ctx, sel.IDs, action, s.dispatchOptions(req.Options, sel.Estimate))
	res.Processed = processed
	res.Matched = labelMatched(sel.Estimate, processed)
	res.Canceled = req.Signal.Fired() || ctx.Err() != nil
	return s.finish(ctx, res, err)
}

func (s *Service) dispatchOptions(opts Options, estimate int) dispatch.Options {
	return dispatch.Options{
		Estimate:  estimate,
		Limit:     opts.Max,
		ChunkSize: opts.BatchSize,
		Workers:   opts.Workers,
		NewClient: s.NewClient,
		Progress:  opts.Progress,
		Signal:    opts.Signal,
		Policy:    s.policy(),
		Metrics:   s.Metrics,
		Logger:    s.logger(),
	}
}

// finish stamps res, logs it and appends it to the journal. Journal
// failures are logged and never replace the action's own outcome.
func (s *Service) finish(ctx context.Context, res Result, err error) (Result, error) {
	res.FinishedAt = s.now()
	log := s.logger()
	attrs := []any{
		"action", res.Action,
		"processed", res.Processed,
		"matched", res.Matched,
		"estimated", res.Estimated,
		"canceled", res.Canceled,
		"took", res.Duration().Round(time.Millisecond),
	}
	if err != nil {
		log.Error("action failed", append(attrs, "error", err)...)
	} else {
		log.Info("action finished", attrs...)
	}

	if s.Journal != nil {
		entry := journal.Entry{
			Action:     res.Action,
			Query:      res.QueryUsed,
			Processed:  res.Processed,
			Matched:    res.Matched,
			Estimated:  res.Estimated,
			Canceled:   res.Canceled,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
		}
		for _, l := range res.Labels {
			entry.Labels = append(entry.Labels, string(l))
		}
		if res.byLabels() {
			entry.Mode = res.Mode.String()
		}
		if err != nil {
			entry.Err = err.Error()
		}
		// The action already happened; a hard-canceled ctx must not lose the record.
		if _, jerr := s.Journal.Record(context.WithoutCancel(ctx), entry); jerr != nil {
			log.Warn("journal record failed", "action", res.Action, "error", jerr)
		}
	}
	return res, err
}

func (s *Service) policy() retry.Policy {
	if s.Policy.Retryable == nil {
		p := s.Policy
		p.Retryable = gmail.IsTransient
		return p
	}
	return s.Policy
}

func (s *Service) listPolicy() retry.Policy {
	p := s.policy()
	prev := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.Metrics.Retry("list")
		s.logger().Debug("retrying", "op", "list", "attempt", attempt, "delay", delay, "error", err)
		if prev != nil {
			prev(attempt, delay, err)
		}
	}
	return p
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return s.Log
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

