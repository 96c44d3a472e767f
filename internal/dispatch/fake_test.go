package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/retry"
	"github.com/joshsymonds/mailpurge/internal/source"
)

type fakeClient struct {
	mu           sync.Mutex
	batchCalls   [][]gmail.MessageID
	batchOps     []gmail.ModifyOps
	deleteCalls  [][]gmail.MessageID
	singleCalls  []gmail.MessageID
	batchErr     func(call int, ids []gmail.MessageID) error
	singleErr    func(id gmail.MessageID) error
	inFlight     int
	maxInFlight  int
	batchLatency time.Duration
}

func (f *fakeClient) List(ctx context.Context, q gmail.Query, pageToken string, pageSize int) (gmail.ListPage, error) {
	_ = ctx
	_ = q
	_ = pageToken
	_ = pageSize
	return gmail.ListPage{}, nil
}

func (f *fakeClient) bulk(ids []gmail.MessageID, into *[][]gmail.MessageID) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	*into = append(*into, append([]gmail.MessageID(nil), ids...))
	call := len(*into)
	hook := f.batchErr
	f.mu.Unlock()

	if f.batchLatency > 0 {
		time.Sleep(f.batchLatency)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	if hook != nil {
		return hook(call, ids)
	}
	return nil
}

func (f *fakeClient) BatchModify(ctx context.Context, ids []gmail.MessageID, ops gmail.ModifyOps) error {
	_ = ctx
	f.mu.Lock()
	f.batchOps = append(f.batchOps, ops)
	f.mu.Unlock()
	return f.bulk(ids, &f.batchCalls)
}

func (f *fakeClient) BatchDelete(ctx context.Context, ids []gmail.MessageID) error {
	_ = ctx
	return f.bulk(ids, &f.deleteCalls)
}

func (f *fakeClient) single(id gmail.MessageID) error {
	f.mu.Lock()
	f.singleCalls = append(f.singleCalls, id)
	hook := f.singleErr
	f.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	return nil
}

func (f *fakeClient) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	_ = ctx
	_ = ops
	return f.single(id)
}

func (f *fakeClient) Trash(ctx context.Context, id gmail.MessageID) error {
	_ = ctx
	return f.single(id)
}

func (f *fakeClient) Delete(ctx context.Context, id gmail.MessageID) error {
	_ = ctx
	return f.single(id)
}

func (f *fakeClient) ListLabels(ctx context.Context) (map[string]gmail.LabelID, map[gmail.LabelID]string, error) {
	_ = ctx
	return map[string]gmail.LabelID{}, map[gmail.LabelID]string{}, nil
}

func (f *fakeClient) EnsureLabel(ctx context.Context, name string) (gmail.LabelID, error) {
	_ = ctx
	return gmail.LabelID(name), nil
}

func (f *fakeClient) snapshot() (batches [][]gmail.MessageID, singles []gmail.MessageID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]gmail.MessageID(nil), f.batchCalls...), append([]gmail.MessageID(nil), f.singleCalls...)
}

func factoryFor(c gmail.Client) ClientFactory {
	return func(context.Context) (gmail.Client, error) { return c, nil }
}

func sliceSource(ids []gmail.MessageID) source.IDs {
	return func(yield func(gmail.MessageID, error) bool) {
		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}
}

func makeIDs(n int) []gmail.MessageID {
	out := make([]gmail.MessageID, n)
	for i := range out {
		out[i] = gmail.MessageID(fmt.Sprintf("m-%05d", i))
	}
	return out
}

func noSleepPolicy() retry.Policy {
	p := retry.Default(gmail.IsTransient)
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
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
