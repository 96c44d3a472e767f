package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshsymonds/mailpurge/internal/journal"
)

var (
	whenCol   = lipgloss.NewStyle().Width(16)
	actionCol = lipgloss.NewStyle().Width(12)
	countCol  = lipgloss.NewStyle().Width(10).Align(lipgloss.Right).PaddingRight(2)
)

func (a *App) newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished bulk actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.JournalPath == "" {
				return fmt.Errorf("journal is disabled (journal_path is empty)")
			}
			store, err := journal.Open(a.cfg.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.Out, "No actions recorded yet.")
				return nil
			}
			fmt.Fprintln(a.Out, headerStyle.Render(
				whenCol.Render("WHEN")+actionCol.Render("ACTION")+countCol.Render("DONE")+"SELECTION"))
			for _, e := range entries {
				fmt.Fprintln(a.Out, whenCol.Render(humanize.Time(e.FinishedAt))+
					actionCol.Render(e.Action)+
					countCol.Render(humanize.Comma(int64(e.Processed)))+
					describeEntry(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 = all)")
	return cmd
}

func describeEntry(e journal.Entry) string {
	var parts []string
	if len(e.Labels) > 0 {
		parts = append(parts, fmt.Sprintf("labels[%s]=%s", e.Mode, strings.Join(e.Labels, ",")))
	}
	if e.Query != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Query))
	}
	switch {
	case e.Err != "":
		parts = append(parts, errorStyle.Render("failed: "+e.Err))
	case e.Canceled:
		parts = append(parts, warnStyle.Render("canceled"))
	}
	return strings.Join(parts, " ")
}
