package bulk

import (
	"time"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/progress"
	"github.com/joshsymonds/mailpurge/internal/source"
)

// Options are the dispatch knobs shared by every action.
type Options struct {
	// Max caps how many messages are fetched; <= 0 means no cap.
	Max       int
	BatchSize int
	Workers   int
	Progress  progress.Func
	Signal    *progress.Signal
}

// QueryRequest selects messages with a Gmail search query. Starred messages
// are excluded unless IncludeStarred is set.
type QueryRequest struct {
	Query          string
	IncludeStarred bool
	Options
}

// LabelRequest selects messages by label IDs combined with Mode. Query
// optionally narrows the selection further.
type LabelRequest struct {
	Labels         []gmail.LabelID
	Mode           source.Mode
	Query          string
	IncludeStarred bool
	Options
}

// ModifyRequest adds and removes labels on every message matching Query.
type ModifyRequest struct {
	Query          string
	Add            []gmail.LabelID
	Remove         []gmail.LabelID
	IncludeStarred bool
	Options
}

// Result summarizes one finished action.
//
// Matched reconciles the server estimate with the processed count: for query
// actions with a cap below the estimate it is min(estimate, processed),
// otherwise max(processed, estimate). It is an approximation, not an exact
// match count.
type Result struct {
	Action        string
	Processed     int
	Matched       int
	Estimated     int
	QueryUsed     string
	Labels        []gmail.LabelID
	Mode          source.Mode
	SkippedLabels []gmail.LabelID
	// Empty reports that label protection left nothing to select.
	Empty      bool
	Canceled   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func (r Result) byLabels() bool { return len(r.Labels) > 0 || len(r.SkippedLabels) > 0 || r.Empty }

func queryMatched(estimate, processed, max int) int {
	if max > 0 && estimate > max {
		return min(estimate, processed)
	}
	return labelMatched(estimate, processed)
}

func labelMatched(estimate, processed int) int {
	return max(processed, estimate)
}
