package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/mailpurge/internal/bulk"
	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/runtime"
	"github.com/joshsymonds/mailpurge/internal/source"
)

var errAborted = errors.New("aborted")

// runFlags are shared by every command that dispatches work.
type runFlags struct {
	max       int
	batchSize int
	workers   int
	yes       bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.max, "max", 0, "stop after this many messages (0 = no cap)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "messages per bulk call (max 1000)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent workers (max 8)")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "skip the confirmation prompt")
}

// queryFlags build a Gmail search query from a raw query plus clauses.
type queryFlags struct {
	query     string
	olderThan time.Duration
	exclude   []string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Gmail search query")
	cmd.Flags().DurationVar(&f.olderThan, "older-than", 0, "only messages older than this (e.g. 720h)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude-label", nil, "skip messages with this label name (repeatable)")
}

// selective reports whether the flags narrow the mailbox on their own;
// exclusions alone would match nearly everything.
func (f *queryFlags) selective() bool {
	return strings.TrimSpace(f.query) != "" || f.olderThan > 0
}

func (f *queryFlags) build(now time.Time) string {
	clauses := []string{f.query, gmail.Before(now, f.olderThan)}
	for _, name := range f.exclude {
		clauses = append(clauses, gmail.ExcludeLabel(name))
	}
	return gmail.Compose(clauses...)
}

// selectFlags pick messages by query and/or labels.
type selectFlags struct {
	runFlags
	queryFlags
	labels    []string
	allLabels bool
	noProtect bool
}

func (f *selectFlags) register(cmd *cobra.Command) {
	f.runFlags.register(cmd)
	f.queryFlags.register(cmd)
	cmd.Flags().StringSliceVarP(&f.labels, "label", "l", nil, "label name or ID (repeatable)")
	cmd.Flags().BoolVar(&f.allLabels, "all-labels", false, "require every label instead of any")
	cmd.Flags().BoolVar(&f.noProtect, "no-protect-starred", false, "include starred messages")
}

func (a *App) newTrashCmd() *cobra.Command {
	var f selectFlags
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Move matching messages to the trash",
		Long: `Move every message matching --query or --label to the trash.

Examples:
  mailpurge trash --query "from:noreply@example.com older_than:1y"
  mailpurge trash --label Promotions --label Social`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSelect(cmd, &f, false)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *App) newDeleteCmd() *cobra.Command {
	var f selectFlags
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Permanently delete matching messages",
		Long: `Permanently delete every message matching --query or --label.
Deleted messages cannot be recovered. Requires the full mail scope.

Examples:
  mailpurge delete --query "in:spam" --yes
  mailpurge delete --label Old --label Archive --all-labels`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSelect(cmd, &f, true)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *App) runSelect(cmd *cobra.Command, f *selectFlags, permanent bool) error {
	query := f.build(a.now())
	if !f.selective() && len(f.labels) == 0 {
		return errors.New("either --query or --label is required")
	}
	protect := a.cfg.ProtectStarred
	if cmd.Flags().Changed("no-protect-starred") {
		protect = !f.noProtect
	}
	mode := a.cfg.Mode()
	if cmd.Flags().Changed("all-labels") {
		mode = source.ModeAny
		if f.allLabels {
			mode = source.ModeAll
		}
	}

	scope := runtime.ScopeModify
	if permanent {
		scope = runtime.ScopeFull
		what := describeSelection(query, f.labels, mode)
		if err := a.confirm(f.yes, fmt.Sprintf("Permanently delete all messages %s?", what)); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	sess, err := a.Connect(ctx, a.cfg, scope, a.log)
	if err != nil {
		return err
	}
	defer a.closeSession(sess)

	opts, finish := a.options(cmd, &f.runFlags)
	var res bulk.Result
	if len(f.labels) > 0 {
		ids, err := resolveLabels(ctx, sess.Labels, f.labels)
		if err != nil {
			return err
		}
		req := bulk.LabelRequest{Labels: ids, Mode: mode, Query: query, IncludeStarred: !protect, Options: opts}
		if permanent {
			res, err = sess.Service.DeleteByLabels(ctx, req)
		} else {
			res, err = sess.Service.TrashByLabels(ctx, req)
		}
		finish()
		renderResult(a.Out, res, err)
		return err
	}

	req := bulk.QueryRequest{Query: query, IncludeStarred: !protect, Options: opts}
	if permanent {
		res, err = sess.Service.DeleteByQuery(ctx, req)
	} else {
		res, err = sess.Service.TrashByQuery(ctx, req)
	}
	finish()
	renderResult(a.Out, res, err)
	return err
}

func (a *App) newLabelCmd() *cobra.Command {
	var (
		f         runFlags
		qf        queryFlags
		add       []string
		remove    []string
		noProtect bool
	)
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Add or remove labels on matching messages",
		Long: `Add and remove labels on every message matching --query.
Labels given with --add are created when missing.

Examples:
  mailpurge label --query "from:billing@example.com" --add Receipts --remove INBOX
  mailpurge label --query "is:unread older_than:30d" --remove UNREAD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := qf.build(a.now())
			if !qf.selective() {
				return errors.New("--query or --older-than is required")
			}
			if len(add) == 0 && len(remove) == 0 {
				return errors.New("at least one of --add or --remove is required")
			}
			protect := a.cfg.ProtectStarred
			if cmd.Flags().Changed("no-protect-starred") {
				protect = !noProtect
			}

			ctx := cmd.Context()
			sess, err := a.Connect(ctx, a.cfg, runtime.ScopeModify, a.log)
			if err != nil {
				return err
			}
			defer a.closeSession(sess)

			addIDs, err := ensureLabels(ctx, sess.Labels, add)
			if err != nil {
				return err
			}
			removeIDs, err := resolveLabels(ctx, sess.Labels, remove)
			if err != nil {
				return err
			}
			opts, finish := a.options(cmd, &f)
			res, err := sess.Service.ModifyLabelsByQuery(ctx, bulk.ModifyRequest{
				Query:          query,
				Add:            addIDs,
				Remove:         removeIDs,
				IncludeStarred: !protect,
				Options:        opts,
			})
			finish()
			renderResult(a.Out, res, err)
			return err
		},
	}
	f.register(cmd)
	qf.register(cmd)
	cmd.Flags().StringSliceVar(&add, "add", nil, "label to add (repeatable)")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "label to remove (repeatable)")
	cmd.Flags().BoolVar(&noProtect, "no-protect-starred", false, "include starred messages")
	return cmd
}

func (a *App) newEmptyTrashCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "empty-trash",
		Short: "Permanently delete everything in the trash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.confirm(f.yes, "Permanently delete every message in the trash, starred ones included?"); err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.Connect(ctx, a.cfg, runtime.ScopeFull, a.log)
			if err != nil {
				return err
			}
			defer a.closeSession(sess)

			opts, finish := a.options(cmd, &f)
			res, err := sess.Service.EmptyTrash(ctx, opts)
			finish()
			renderResult(a.Out, res, err)
			return err
		},
	}
	f.register(cmd)
	return cmd
}

// options merges flags over config and attaches the progress bar.
func (a *App) options(cmd *cobra.Command, f *runFlags) (bulk.Options, func()) {
	opts := bulk.Options{
		Max:       a.cfg.MaxItems,
		BatchSize: a.cfg.BatchSize,
		Workers:   a.cfg.Workers,
		Signal:    a.Signal,
	}
	if cmd.Flags().Changed("max") {
		opts.Max = f.max
	}
	if cmd.Flags().Changed("batch-size") {
		opts.BatchSize = f.batchSize
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = f.workers
	}
	bar := newProgressPrinter(a.Err)
	opts.Progress = bar.Update
	return opts, bar.Finish
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) confirm(yes bool, prompt string) error {
	if yes {
		return nil
	}
	fmt.Fprintf(a.Err, "%s [y/N] ", prompt)
	sc := bufio.NewScanner(a.In)
	if !sc.Scan() {
		return errAborted
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

func (a *App) closeSession(s *Session) {
	if err := s.Close(); err != nil {
		a.log.Warn("close session", "error", err)
	}
}

func describeSelection(query string, labels []string, mode source.Mode) string {
	var parts []string
	if len(labels) > 0 {
		joiner := " or "
		if mode == source.ModeAll {
			joiner = " and "
		}
		parts = append(parts, "labelled "+strings.Join(labels, joiner))
	}
	if strings.TrimSpace(query) != "" {
		parts = append(parts, fmt.Sprintf("matching %q", strings.TrimSpace(query)))
	}
	return strings.Join(parts, " and ")
}
