package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/retry"
)

// Mode selects how several labels combine.
type Mode int

const (
	// ModeAny is the union of the labels, de-duplicated client side.
	ModeAny Mode = iota
	// ModeAll is the intersection, computed by the server.
	ModeAll
)

func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "any"
}

// ParseMode accepts any/or/union and all/and/intersection.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "or", "union":
		return ModeAny, nil
	case "all", "and", "intersection":
		return ModeAll, nil
	default:
		return ModeAny, fmt.Errorf("unknown label mode %q", s)
	}
}

// LabelSet selects messages by label.
type LabelSet struct {
	Labels         []gmail.LabelID
	Mode           Mode
	ProtectStarred bool
}

// Normalize drops blanks and duplicates and, under starred protection, the
// STARRED label, which is returned in skipped.
func (s LabelSet) Normalize() (labels, skipped []gmail.LabelID) {
	seen := make(map[gmail.LabelID]struct{}, len(s.Labels))
	for _, raw := range s.Labels {
		lid := gmail.LabelID(strings.TrimSpace(string(raw)))
		if lid == "" {
			continue
		}
		if _, dup := seen[lid]; dup {
			continue
		}
		seen[lid] = struct{}{}
		if s.ProtectStarred && lid == gmail.LabelStarred {
			skipped = append(skipped, lid)
			continue
		}
		labels = append(labels, lid)
	}
	return labels, skipped
}

// Selection is a ready-to-drain ID stream plus what it was built from.
type Selection struct {
	IDs      IDs
	Estimate int
	Query    string
	Labels   []gmail.LabelID
	Skipped  []gmail.LabelID
	Mode     Mode
	// Empty is set when no label survived normalization; IDs yields nothing.
	Empty bool
}

// Combine builds the stream for set, narrowed by the raw query. Estimates are
// computed before returning; in ModeAny the estimate is the sum of per-label
// estimates and overcounts messages carrying several of the labels.
func Combine(
	ctx context.Context,
	lister gmail.Lister,
	policy retry.Policy,
	set LabelSet,
	raw string,
	limit int,
) (Selection, error) {
	labels, skipped := set.Normalize()
	sel := Selection{
		Query:   gmail.ProtectStarred(raw, set.ProtectStarred),
		Labels:  labels,
		Skipped: skipped,
		Mode:    set.Mode,
	}
	if len(labels) == 0 {
		sel.Empty = true
		sel.IDs = func(func(gmail.MessageID, error) bool) {}
		return sel, nil
	}

	base := gmail.Query{Raw: sel.Query}
	if set.Mode == ModeAll {
		q := base
		q.LabelIDs = labels
		est, err := Estimate(ctx, lister, policy, q)
		if err != nil {
			return Selection{}, fmt.Errorf("estimate labels %v: %w", labels, err)
		}
		sel.Estimate = est
		sel.IDs = Pages(ctx, lister, policy, q, limit)
		return sel, nil
	}

	for _, lid := range labels {
		q := base
		q.LabelIDs = []gmail.LabelID{lid}
		est, err := Estimate(ctx, lister, policy, q)
		if err != nil {
			return Selection{}, fmt.Errorf("estimate label %s: %w", lid, err)
		}
		sel.Estimate += est
	}
	sel.IDs = union(ctx, lister, policy, base, labels, limit)
	return sel, nil
}

func union(
	ctx context.Context,
	lister gmail.Lister,
	policy retry.Policy,
	base gmail.Query,
	labels []gmail.LabelID,
	limit int,
) IDs {
	return func(yield func(gmail.MessageID, error) bool) {
		seen := make(map[gmail.MessageID]struct{})
		yielded := 0
		for _, lid := range labels {
			q := base
			q.LabelIDs = []gmail.LabelID{lid}
			for id, err := range Pages(ctx, lister, policy, q, 0) {
				if err != nil {
					yield("", err)
					return
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if !yield(id, nil) {
					return
				}
				yielded++
				if limit > 0 && yielded >= limit {
					return
				}
			}
		}
	}
}
