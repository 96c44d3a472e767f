package main

import (
	"context"
	"os"

	"github.com/joshsymonds/mailpurge/internal/cli"
	"github.com/joshsymonds/mailpurge/internal/progress"
	"github.com/joshsymonds/mailpurge/internal/runtime"
)

func main() {
	os.Exit(run())
}

func run() int {
	sig := &progress.Signal{}
	ctx, stop := cli.WatchInterrupts(context.Background(), sig, os.Stderr)
	defer stop()

	app := cli.NewApp(sig)
	if err := app.Command().ExecuteContext(ctx); err != nil {
		runtime.DefaultLogger().Error("mailpurge failed", "error", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
