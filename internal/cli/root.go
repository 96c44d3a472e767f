// Package cli wires the mailpurge cobra commands to the bulk action service.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/mailpurge/internal/config"
	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/progress"
	"github.com/joshsymonds/mailpurge/internal/runtime"
)

// Exit codes returned by ExitCode.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitPermission = 3
)

// ConnectFunc opens an authenticated session for one command.
type ConnectFunc func(ctx context.Context, cfg *config.Config, scope runtime.Scope, log *slog.Logger) (*Session, error)

// App holds the IO and collaborators shared by all commands.
type App struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Signal *progress.Signal
	// Connect defaults to Connect.
	Connect ConnectFunc
	Now     func() time.Time

	configDir string
	logLevel  string
	dir       string
	cfg       *config.Config
	log       *slog.Logger
}

// NewApp returns an App on the process streams.
func NewApp(sig *progress.Signal) *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Signal: sig, Connect: Connect}
}

// Command builds the root command.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "mailpurge",
		Short: "Bulk trash, delete and relabel Gmail messages",
		Long: `mailpurge applies bulk actions to every Gmail message matching a search
query or a set of labels, batching up to 1000 messages per API call.

Starred messages are protected unless --no-protect-starred is given.

Examples:
  mailpurge trash --query "older_than:2y category:promotions"
  mailpurge delete --label Newsletters --label Receipts --yes
  mailpurge label --query "list:announce@example.com" --add Lists/Announce --remove INBOX
  mailpurge empty-trash`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "",
		"config directory (default is $XDG_CONFIG_HOME/mailpurge)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn, error")

	root.AddCommand(
		a.newTrashCmd(),
		a.newDeleteCmd(),
		a.newLabelCmd(),
		a.newEmptyTrashCmd(),
		a.newHistoryCmd(),
		a.newAuthCmd(),
		a.newConfigCmd(),
	)
	return root
}

func (a *App) loadConfig(cmd *cobra.Command, _ []string) error {
	dir := a.configDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return err
		}
		dir = d
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.dir = dir
	a.cfg = cfg
	a.log = runtime.NewLogger(cfg.LogLevel, a.Err)
	return nil
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, gmail.ErrPermission):
		return ExitPermission
	default:
		return ExitFailure
	}
}
