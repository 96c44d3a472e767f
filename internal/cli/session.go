package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshsymonds/mailpurge/internal/bulk"
	"github.com/joshsymonds/mailpurge/internal/config"
	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/journal"
	"github.com/joshsymonds/mailpurge/internal/metrics"
	"github.com/joshsymonds/mailpurge/internal/rate"
	"github.com/joshsymonds/mailpurge/internal/retry"
	"github.com/joshsymonds/mailpurge/internal/runtime"
)

// LabelDirectory resolves label names to IDs.
type LabelDirectory interface {
	ListLabels(ctx context.Context) (map[string]gmail.LabelID, map[gmail.LabelID]string, error)
	EnsureLabel(ctx context.Context, name string) (gmail.LabelID, error)
}

// Session is everything one command needs to talk to Gmail.
type Session struct {
	Service *bulk.Service
	Labels  LabelDirectory
	closers []func() error
}

// Close flushes metrics and closes the journal.
func (s *Session) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Connect authenticates with scope and builds the bulk service: a listing
// client, a per-worker client factory sharing one limiter, the journal and
// the metrics recorder.
func Connect(ctx context.Context, cfg *config.Config, scope runtime.Scope, log *slog.Logger) (*Session, error) {
	ts, err := runtime.Authenticate(ctx, runtime.AuthOptions{Dir: cfg.CredentialsDir, Scope: scope})
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	var limiter rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewTokenBucket(cfg.RPS)
	}
	factory := runtime.NewFactory(ts, limiter)
	client, err := factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gmail client: %w", err)
	}

	rec := metrics.New()
	sess := &Session{
		Labels: client,
		Service: &bulk.Service{
			Client:    client,
			NewClient: factory.NewClient,
			Policy:    retry.Default(gmail.IsTransient),
			Metrics:   rec,
			Log:       log,
		},
	}
	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath)
		if err != nil {
			log.Warn("journal unavailable; continuing without history", "path", cfg.JournalPath, "error", err)
		} else {
			sess.Service.Journal = store
			sess.closers = append(sess.closers, store.Close)
		}
	}
	if cfg.MetricsTextfile != "" {
		sess.closers = append(sess.closers, func() error { return rec.WriteTextfile(cfg.MetricsTextfile) })
	}
	return sess, nil
}
