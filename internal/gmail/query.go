package gmail

import (
	"fmt"
	"strings"
	"time"
)

// StarredExclusion is the clause that keeps starred mail out of a query.
const StarredExclusion = "-is:starred"

// ProtectStarred trims raw and, when protect is set, appends the starred
// exclusion unless it is already present.
func ProtectStarred(raw string, protect bool) string {
	q := strings.TrimSpace(raw)
	if protect && !strings.Contains(q, StarredExclusion) {
		q = strings.TrimSpace(q + " " + StarredExclusion)
	}
	return q
}

// Compose joins the non-blank clauses with single spaces.
func Compose(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// Before matches messages received more than age before now. Gmail accepts
// epoch seconds, which avoids the day granularity of older_than.
func Before(now time.Time, age time.Duration) string {
	if age <= 0 {
		return ""
	}
	return fmt.Sprintf("before:%d", now.Add(-age).Unix())
}

// ExcludeLabel drops messages carrying the named label.
func ExcludeLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return fmt.Sprintf(`-label:"%s"`, name)
}
