package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/joshsymonds/mailpurge/internal/gmail"
)

// resolveLabels maps label names to IDs. System labels and existing IDs pass
// through; names match case-sensitively first, then case-insensitively.
func resolveLabels(ctx context.Context, dir LabelDirectory, names []string) ([]gmail.LabelID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	byName, byID, err := dir.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	out := make([]gmail.LabelID, 0, len(names))
	for _, name := range names {
		id, ok := lookupLabel(name, byName, byID)
		if !ok {
			return nil, fmt.Errorf("unknown label %q", name)
		}
		out = append(out, id)
	}
	return out, nil
}

// ensureLabels resolves names like resolveLabels and creates user labels
// that do not exist yet.
func ensureLabels(ctx context.Context, dir LabelDirectory, names []string) ([]gmail.LabelID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	byName, byID, err := dir.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	out := make([]gmail.LabelID, 0, len(names))
	for _, name := range names {
		if id, ok := lookupLabel(name, byName, byID); ok {
			out = append(out, id)
			continue
		}
		id, err := dir.EnsureLabel(ctx, strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("ensure label %q: %w", name, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func lookupLabel(name string, byName map[string]gmail.LabelID, byID map[gmail.LabelID]string) (gmail.LabelID, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if sys := gmail.LabelID(strings.ToUpper(name)); gmail.IsReserved(sys) {
		return sys, true
	}
	if id, ok := byName[name]; ok {
		return id, true
	}
	if _, ok := byID[gmail.LabelID(name)]; ok {
		return gmail.LabelID(name), true
	}
	for n, id := range byName {
		if strings.EqualFold(n, name) {
			return id, true
		}
	}
	return "", false
}
