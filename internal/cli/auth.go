package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/mailpurge/internal/config"
	"github.com/joshsymonds/mailpurge/internal/runtime"
)

func (a *App) newAuthCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailpurge against your Gmail account",
		Long: `Run the OAuth consent flow and cache the token next to client_secret.json.

Trash and label actions need the modify scope. Permanent deletes need the
full mail scope; pass --full to request it up front.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope := runtime.ScopeModify
			if full {
				scope = runtime.ScopeFull
			}
			_, err := runtime.Authenticate(cmd.Context(), runtime.AuthOptions{
				Dir:   a.cfg.CredentialsDir,
				Scope: scope,
				Force: true,
				In:    a.In,
				Out:   a.Err,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.Out, successStyle.Render(fmt.Sprintf("Authorized with %s scope.", scope)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "request the full mail scope needed for permanent deletes")
	return cmd
}

func (a *App) newConfigCmd() *cobra.Command {
	var initFile bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if initFile {
				path := config.Path(a.dir)
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists", path)
				}
				if err := config.Save(a.dir, a.cfg); err != nil {
					return err
				}
				fmt.Fprintln(a.Out, successStyle.Render("Wrote "+path))
				return nil
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = a.Out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&initFile, "init", false, "write the effective configuration to config.yaml")
	return cmd
}
