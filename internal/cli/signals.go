package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailpurge/internal/progress"
)

// WatchInterrupts fires sig on the first SIGINT or SIGTERM so running
// actions stop after their in-flight batches, and cancels the returned
// context on the second. stop releases the signal handler.
func WatchInterrupts(parent context.Context, sig *progress.Signal, notice io.Writer) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go escalate(ctx, ch, sig, cancel, notice)
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}

func escalate(ctx context.Context, ch <-chan os.Signal, sig *progress.Signal, cancel context.CancelFunc, notice io.Writer) {
	select {
	case <-ch:
	case <-ctx.Done():
		return
	}
	sig.Fire()
	_, _ = io.WriteString(notice, "\nFinishing in-flight batches; interrupt again to abort.\n")
	select {
	case <-ch:
		cancel()
	case <-ctx.Done():
	}
}
