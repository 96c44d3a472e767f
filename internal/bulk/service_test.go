package bulk

import (
	"context"
	"errors"
	"slices"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/progress"
	"github.com/joshsymonds/mailpurge/internal/source"
)

func TestTrashByQueryChunksAndRevisesEstimate(t *testing.T) {
	mb := newMailbox()
	mb.queries["from:test@x.com -is:starred"] = makeIDs("q", 2500)
	mb.estimates[listKey(gmail.Query{Raw: "from:test@x.com -is:starred"})] = 2000
	svc, j := newService(mb)
	var prog progressLog

	res, err := svc.TrashByQuery(context.Background(), QueryRequest{
		Query:   "from:test@x.com",
		Options: Options{BatchSize: 1000, Workers: 4, Progress: prog.record},
	})
	if err != nil {
		t.Fatalf("TrashByQuery: %v", err)
	}
	if res.Processed != 2500 || res.Estimated != 2000 || res.Matched != 2500 {
		t.Fatalf("result = %+v", res)
	}
	if res.QueryUsed != "from:test@x.com -is:starred" {
		t.Fatalf("query used = %q", res.QueryUsed)
	}

	_, bulks := mb.snapshot()
	var sizes []int
	for _, b := range bulks {
		if b.op != "batchModify" || len(b.ops.AddLabels) != 1 || b.ops.AddLabels[0] != gmail.LabelTrash {
			t.Fatalf("unexpected bulk call %s %+v", b.op, b.ops)
		}
		sizes = append(sizes, len(b.ids))
	}
	slices.Sort(sizes)
	if !slices.Equal(sizes, []int{500, 1000, 1000}) {
		t.Fatalf("chunk sizes = %v", sizes)
	}

	events := prog.all()
	last := events[len(events)-1]
	if last != [2]int{2500, 2500} {
		t.Fatalf("final progress = %v", last)
	}
	if len(j.entries) != 1 || j.entries[0].Action != "trash" || j.entries[0].Processed != 2500 {
		t.Fatalf("journal = %+v", j.entries)
	}
	if j.entries[0].Mode != "" {
		t.Fatalf("query action journaled mode %q", j.entries[0].Mode)
	}
}

func TestQueryMatchedWithCapBelowEstimate(t *testing.T) {
	mb := newMailbox()
	mb.queries["older_than:1y -is:starred"] = makeIDs("q", 2500)
	svc, _ := newService(mb)

	res, err := svc.DeleteByQuery(context.Background(), QueryRequest{
		Query:   "older_than:1y",
		Options: Options{Max: 100, BatchSize: 40},
	})
	if err != nil {
		t.Fatalf("DeleteByQuery: %v", err)
	}
	if res.Processed != 100 || res.Matched != 100 || res.Estimated != 2500 {
		t.Fatalf("result = %+v", res)
	}
	_, bulks := mb.snapshot()
	total := 0
	for _, b := range bulks {
		if b.op != "batchDelete" {
			t.Fatalf("op = %s", b.op)
		}
		total += len(b.ids)
	}
	if total != 100 {
		t.Fatalf("deleted %d", total)
	}
}

func TestDeleteByLabelsAnyUnion(t *testing.T) {
	mb := newMailbox()
	mb.labels["A"] = []gmail.MessageID{"1", "2", "3"}
	mb.labels["B"] = []gmail.MessageID{"3", "4"}
	svc, j := newService(mb)

	res, err := svc.DeleteByLabels(context.Background(), LabelRequest{
		Labels:         []gmail.LabelID{"A", "B"},
		Mode:           source.ModeAny,
		IncludeStarred: true,
	})
	if err != nil {
		t.Fatalf("DeleteByLabels: %v", err)
	}
	if res.Estimated != 5 || res.Processed != 4 || res.Matched != 5 {
		t.Fatalf("result = %+v", res)
	}
	if res.QueryUsed != "" {
		t.Fatalf("query used = %q", res.QueryUsed)
	}

	_, bulks := mb.snapshot()
	var deleted []gmail.MessageID
	for _, b := range bulks {
		deleted = append(deleted, b.ids...)
	}
	slices.Sort(deleted)
	if !slices.Equal(deleted, []gmail.MessageID{"1", "2", "3", "4"}) {
		t.Fatalf("deleted = %v", deleted)
	}
	if j.entries[0].Mode != "any" || len(j.entries[0].Labels) != 2 {
		t.Fatalf("journal = %+v", j.entries[0])
	}
}

func TestTrashByLabelsAllIntersects(t *testing.T) {
	mb := newMailbox()
	mb.labels["A"] = []gmail.MessageID{"1", "2", "3"}
	mb.labels["B"] = []gmail.MessageID{"3", "4"}
	svc, _ := newService(mb)

	res, err := svc.TrashByLabels(context.Background(), LabelRequest{
		Labels: []gmail.LabelID{"A", "B"},
		Mode:   source.ModeAll,
	})
	if err != nil {
		t.Fatalf("TrashByLabels: %v", err)
	}
	if res.Processed != 1 || res.Estimated != 1 || res.QueryUsed != "-is:starred" {
		t.Fatalf("result = %+v", res)
	}
}

func TestOnlyStarredLabelIsEmpty(t *testing.T) {
	mb := newMailbox()
	mb.labels[gmail.LabelStarred] = []gmail.MessageID{"s1"}
	svc, j := newService(mb)
	var prog progressLog

	res, err := svc.TrashByLabels(context.Background(), LabelRequest{
		Labels:  []gmail.LabelID{gmail.LabelStarred},
		Options: Options{Progress: prog.record},
	})
	if err != nil {
		t.Fatalf("TrashByLabels: %v", err)
	}
	if !res.Empty || res.Processed != 0 || !slices.Equal(res.SkippedLabels, []gmail.LabelID{gmail.LabelStarred}) {
		t.Fatalf("result = %+v", res)
	}
	lists, bulks := mb.snapshot()
	if len(lists) != 0 || len(bulks) != 0 {
		t.Fatalf("network calls: %d lists, %d bulks", len(lists), len(bulks))
	}
	if events := prog.all(); len(events) != 1 || events[0] != [2]int{0, 0} {
		t.Fatalf("progress = %v", events)
	}
	if len(j.entries) != 1 {
		t.Fatalf("journal entries = %d", len(j.entries))
	}
}

func TestPermissionErrorSurfaces(t *testing.T) {
	mb := newMailbox()
	mb.queries["label:old -is:starred"] = makeIDs("q", 50)
	mb.bulkErr = &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "insufficientPermissions"}},
	}
	svc, j := newService(mb)

	res, err := svc.DeleteByQuery(context.Background(), QueryRequest{
		Query:   "label:old",
		Options: Options{BatchSize: 10, Workers: 1},
	})
	if !errors.Is(err, gmail.ErrPermission) {
		t.Fatalf("err = %v", err)
	}
	if res.Processed != 0 {
		t.Fatalf("processed = %d", res.Processed)
	}
	if len(mb.singles) != 0 {
		t.Fatalf("permission failure fell back to %d single calls", len(mb.singles))
	}
	if len(j.entries) != 1 || j.entries[0].Err == "" {
		t.Fatalf("journal = %+v", j.entries)
	}
}

func TestSignalFiredBeforeStart(t *testing.T) {
	mb := newMailbox()
	mb.queries["x -is:starred"] = makeIDs("q", 30)
	svc, _ := newService(mb)
	sig := &progress.Signal{}
	sig.Fire()

	res, err := svc.TrashByQuery(context.Background(), QueryRequest{
		Query:   "x",
		Options: Options{Signal: sig},
	})
	if err != nil {
		t.Fatalf("TrashByQuery: %v", err)
	}
	if res.Processed != 0 || !res.Canceled {
		t.Fatalf("result = %+v", res)
	}
	if _, bulks := mb.snapshot(); len(bulks) != 0 {
		t.Fatalf("bulk calls = %d", len(bulks))
	}
}

func TestEmptyTrashIncludesStarredAndSpamTrash(t *testing.T) {
	mb := newMailbox()
	mb.labels[gmail.LabelTrash] = makeIDs("t", 12)
	svc, _ := newService(mb)

	res, err := svc.EmptyTrash(context.Background(), Options{BatchSize: 5})
	if err != nil {
		t.Fatalf("EmptyTrash: %v", err)
	}
	if res.Action != "empty-trash" || res.Processed != 12 || res.QueryUsed != "" {
		t.Fatalf("result = %+v", res)
	}
	lists, bulks := mb.snapshot()
	for _, q := range lists {
		if !q.IncludeSpamTrash || q.Raw != "" || !slices.Equal(q.LabelIDs, []gmail.LabelID{gmail.LabelTrash}) {
			t.Fatalf("list query = %+v", q)
		}
	}
	for _, b := range bulks {
		if b.op != "batchDelete" {
			t.Fatalf("op = %s", b.op)
		}
	}
}

func TestModifyLabelsByQuery(t *testing.T) {
	mb := newMailbox()
	mb.queries["list:news -is:starred"] = makeIDs("n", 7)
	svc, _ := newService(mb)

	res, err := svc.ModifyLabelsByQuery(context.Background(), ModifyRequest{
		Query:  "list:news",
		Add:    []gmail.LabelID{"Label_7"},
		Remove: []gmail.LabelID{gmail.LabelInbox},
	})
	if err != nil {
		t.Fatalf("ModifyLabelsByQuery: %v", err)
	}
	if res.Action != "label" || res.Processed != 7 {
		t.Fatalf("result = %+v", res)
	}
	_, bulks := mb.snapshot()
	if len(bulks) != 1 || bulks[0].ops.RemoveLabels[0] != gmail.LabelInbox || bulks[0].ops.AddLabels[0] != "Label_7" {
		t.Fatalf("bulks = %+v", bulks)
	}

	if _, err := svc.ModifyLabelsByQuery(context.Background(), ModifyRequest{Query: "x"}); !errors.Is(err, ErrNoLabelChange) {
		t.Fatalf("err = %v", err)
	}
}

func TestRejectsEmptySelections(t *testing.T) {
	mb := newMailbox()
	svc, j := newService(mb)
	ctx := context.Background()

	if _, err := svc.TrashByQuery(ctx, QueryRequest{Query: "  "}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("blank query err = %v", err)
	}
	if _, err := svc.DeleteByLabels(ctx, LabelRequest{}); !errors.Is(err, ErrNoLabels) {
		t.Fatalf("no labels err = %v", err)
	}
	if lists, _ := mb.snapshot(); len(lists) != 0 {
		t.Fatalf("list calls = %d", len(lists))
	}
	if len(j.entries) != 0 {
		t.Fatalf("rejected requests were journaled")
	}
}

func TestJournalFailureDoesNotFailAction(t *testing.T) {
	mb := newMailbox()
	mb.queries["x -is:starred"] = makeIDs("q", 3)
	svc, j := newService(mb)
	j.err = errors.New("disk full")

	res, err := svc.TrashByQuery(context.Background(), QueryRequest{Query: "x"})
	if err != nil {
		t.Fatalf("TrashByQuery: %v", err)
	}
	if res.Processed != 3 || res.Duration() <= 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestMatchedFormula(t *testing.T) {
	cases := []struct {
		est, processed, max, want int
	}{
		{est: 2000, processed: 2500, max: 0, want: 2500},
		{est: 3000, processed: 2500, max: 0, want: 3000},
		{est: 2500, processed: 100, max: 100, want: 100},
		{est: 50, processed: 50, max: 100, want: 50},
	}
	for _, tc := range cases {
		if got := queryMatched(tc.est, tc.processed, tc.max); got != tc.want {
			t.Errorf("queryMatched(%d, %d, %d) = %d want %d", tc.est, tc.processed, tc.max, got, tc.want)
		}
	}
}
