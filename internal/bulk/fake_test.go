package bulk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/joshsymonds/mailpurge/internal/dispatch"
	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/journal"
	"github.com/joshsymonds/mailpurge/internal/retry"
)

type bulkCall struct {
	op  string
	ids []gmail.MessageID
	ops gmail.ModifyOps
}

// fakeMailbox answers listings from fixed query and label results and
// records every mutation.
type fakeMailbox struct {
	mu        sync.Mutex
	queries   map[string][]gmail.MessageID
	labels    map[gmail.LabelID][]gmail.MessageID
	estimates map[string]int
	pageSize  int
	bulkErr   error

	lists   []gmail.Query
	bulks   []bulkCall
	singles []gmail.MessageID
}

func newMailbox() *fakeMailbox {
	return &fakeMailbox{
		queries:   map[string][]gmail.MessageID{},
		labels:    map[gmail.LabelID][]gmail.MessageID{},
		estimates: map[string]int{},
	}
}

func listKey(q gmail.Query) string {
	return fmt.Sprintf("%s|%v|%v", q.Raw, q.LabelIDs, q.IncludeSpamTrash)
}

func (f *fakeMailbox) matching(q gmail.Query) []gmail.MessageID {
	if len(q.LabelIDs) == 0 {
		return f.queries[q.Raw]
	}
	var out []gmail.MessageID
	for _, id := range f.labels[q.LabelIDs[0]] {
		inAll := true
		for _, lid := range q.LabelIDs[1:] {
			found := false
			for _, other := range f.labels[lid] {
				if other == id {
					found = true
					break
				}
			}
			if !found {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, id)
		}
	}
	return out
}

func (f *fakeMailbox) List(ctx context.Context, q gmail.Query, pageToken string, pageSize int) (gmail.ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, q)

	ids := f.matching(q)
	if f.pageSize > 0 && f.pageSize < pageSize {
		pageSize = f.pageSize
	}
	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := min(start+pageSize, len(ids))
	page := gmail.ListPage{
		IDs:                append([]gmail.MessageID(nil), ids[start:end]...),
		ResultSizeEstimate: len(ids),
	}
	if est, ok := f.estimates[listKey(q)]; ok {
		page.ResultSizeEstimate = est
	}
	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeMailbox) record(op string, ids []gmail.MessageID, ops gmail.ModifyOps) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulks = append(f.bulks, bulkCall{op: op, ids: append([]gmail.MessageID(nil), ids...), ops: ops})
	return f.bulkErr
}

func (f *fakeMailbox) BatchModify(ctx context.Context, ids []gmail.MessageID, ops gmail.ModifyOps) error {
	return f.record("batchModify", ids, ops)
}

func (f *fakeMailbox) BatchDelete(ctx context.Context, ids []gmail.MessageID) error {
	return f.record("batchDelete", ids, gmail.ModifyOps{})
}

func (f *fakeMailbox) single(id gmail.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, id)
	return nil
}

func (f *fakeMailbox) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	return f.single(id)
}

func (f *fakeMailbox) Trash(ctx context.Context, id gmail.MessageID) error { return f.single(id) }

func (f *fakeMailbox) Delete(ctx context.Context, id gmail.MessageID) error { return f.single(id) }

func (f *fakeMailbox) ListLabels(ctx context.Context) (map[string]gmail.LabelID, map[gmail.LabelID]string, error) {
	return nil, nil, nil
}

func (f *fakeMailbox) EnsureLabel(ctx context.Context, name string) (gmail.LabelID, error) {
	return gmail.LabelID(name), nil
}

func (f *fakeMailbox) snapshot() (lists []gmail.Query, bulks []bulkCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gmail.Query(nil), f.lists...), append([]bulkCall(nil), f.bulks...)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (j *fakeJournal) Record(ctx context.Context, e journal.Entry) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return 0, j.err
	}
	j.entries = append(j.entries, e)
	return int64(len(j.entries)), nil
}

func newService(mb *fakeMailbox) (*Service, *fakeJournal) {
	j := &fakeJournal{}
	policy := retry.Default(gmail.IsTransient)
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &Service{
		Client:    mb,
		NewClient: dispatch.ClientFactory(func(context.Context) (gmail.Client, error) { return mb, nil }),
		Policy:    policy,
		Journal:   j,
		Log:       slogDiscard(),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}, j
}

func makeIDs(prefix string, n int) []gmail.MessageID {
	out := make([]gmail.MessageID, n)
	for i := range out {
		out[i] = gmail.MessageID(fmt.Sprintf("%s%05d", prefix, i))
	}
	return out
}

type progressLog struct {
	mu     sync.Mutex
	events [][2]int
}

func (p *progressLog) record(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, [2]int{done, total})
}

func (p *progressLog) all() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int(nil), p.events...)
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
