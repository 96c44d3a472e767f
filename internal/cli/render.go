package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/joshsymonds/mailpurge/internal/bulk"
	"github.com/joshsymonds/mailpurge/internal/gmail"
)

var (
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	yellow = lipgloss.Color("#F59E0B")
	gray   = lipgloss.Color("#6B7280")

	successStyle = lipgloss.NewStyle().Bold(true).Foreground(green)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	labelStyle   = lipgloss.NewStyle().Foreground(gray).Width(10)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

const redrawEvery = 100 * time.Millisecond

// progressPrinter draws a static bar on one terminal line. It is only called
// from the dispatching goroutine.
type progressPrinter struct {
	w    io.Writer
	bar  progress.Model
	now  func() time.Time
	last time.Time

	done, total int
	pending     bool
	drawn       bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		now: time.Now,
	}
}

func (p *progressPrinter) Update(done, total int) {
	p.done, p.total = done, total
	p.pending = true
	if now := p.now(); !p.drawn || now.Sub(p.last) >= redrawEvery {
		p.last = now
		p.draw()
	}
}

// Finish draws the last state if it was throttled and ends the line.
func (p *progressPrinter) Finish() {
	if p.pending {
		p.draw()
	}
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}

func (p *progressPrinter) draw() {
	pct := 1.0
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total)
	}
	fmt.Fprintf(p.w, "\r%s %s/%s", p.bar.ViewAs(pct),
		humanize.Comma(int64(p.done)), humanize.Comma(int64(p.total)))
	p.pending = false
	p.drawn = true
}

var pastTense = map[string]string{
	"trash":       "Trashed",
	"delete":      "Deleted",
	"label":       "Relabeled",
	"empty-trash": "Deleted from trash",
}

func renderResult(w io.Writer, res bulk.Result, err error) {
	if res.Action == "" {
		return
	}
	verb := pastTense[res.Action]
	if verb == "" {
		verb = res.Action
	}

	switch {
	case res.Empty:
		fmt.Fprintln(w, warnStyle.Render("Nothing to do: every selected label is protected."))
	case err != nil:
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s %s messages before failing: %v",
			verb, humanize.Comma(int64(res.Processed)), err)))
	default:
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("%s %s messages", verb, humanize.Comma(int64(res.Processed)))))
	}

	row := func(k, v string) { fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(k), v) }
	if !res.Empty {
		row("matched", fmt.Sprintf("~%s (estimated %s)",
			humanize.Comma(int64(res.Matched)), humanize.Comma(int64(res.Estimated))))
	}
	if res.QueryUsed != "" {
		row("query", res.QueryUsed)
	}
	if len(res.Labels) > 0 {
		row("labels", joinLabels(res.Labels)+" ("+res.Mode.String()+")")
	}
	if len(res.SkippedLabels) > 0 {
		row("skipped", joinLabels(res.SkippedLabels))
	}
	if !res.FinishedAt.IsZero() {
		row("took", res.Duration().Round(time.Millisecond).String())
	}
	if res.Canceled {
		fmt.Fprintln(w, warnStyle.Render("Stopped early on interrupt; in-flight batches were completed."))
	}
	if ExitCode(err) == ExitPermission {
		fmt.Fprintln(w, warnStyle.Render("Run `mailpurge auth` (add --full for permanent deletes) to grant the missing scope."))
	}
}

func joinLabels(ids []gmail.LabelID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
