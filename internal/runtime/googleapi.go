// internal/runtime/googleapi.go adapts *gmail.Service to our small interface
package runtime

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	gc "github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/rate"
)

const user = "me"

// listFields limits messages.list responses to what the source consumes.
const listFields googleapi.Field = "messages/id,nextPageToken,resultSizeEstimate"

type googleClient struct {
	svc     *gmail.Service
	limiter rate.Limiter
}

// NewGoogleAPIClient wraps svc. limiter may be nil.
func NewGoogleAPIClient(svc *gmail.Service, limiter rate.Limiter) *googleClient {
	return &googleClient{svc: svc, limiter: limiter}
}

func (g *googleClient) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	if err := g.wait(ctx); err != nil {
		return gc.ListPage{}, err
	}
	call := g.svc.Users.Messages.List(user).
		MaxResults(int64(pageSize)).
		IncludeSpamTrash(q.IncludeSpamTrash).
		Fields(listFields)
	if q.Raw != "" {
		call = call.Q(q.Raw)
	}
	if len(q.LabelIDs) > 0 {
		call = call.LabelIds(toStringsL(q.LabelIDs)...)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, err
	}
	page := gc.ListPage{
		IDs:                make([]gc.MessageID, 0, len(res.Messages)),
		NextPageToken:      res.NextPageToken,
		ResultSizeEstimate: int(res.ResultSizeEstimate),
	}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, gc.MessageID(m.Id))
	}
	return page, nil
}

func (g *googleClient) BatchModify(ctx context.Context, ids []gc.MessageID, ops gc.ModifyOps) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	req := &gmail.BatchModifyMessagesRequest{Ids: toStrings(ids)}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStringsL(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = toStringsL(ops.RemoveLabels)
	}
	return g.svc.Users.Messages.BatchModify(user, req).Context(ctx).Do()
}

func (g *googleClient) BatchDelete(ctx context.Context, ids []gc.MessageID) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	req := &gmail.BatchDeleteMessagesRequest{Ids: toStrings(ids)}
	return g.svc.Users.Messages.BatchDelete(user, req).Context(ctx).Do()
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    toStringsL(ops.AddLabels),
		RemoveLabelIds: toStringsL(ops.RemoveLabels),
	}
	_, err := g.svc.Users.Messages.Modify(user, string(id), req).Context(ctx).Do()
	return err
}

func (g *googleClient) Trash(ctx context.Context, id gc.MessageID) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	_, err := g.svc.Users.Messages.Trash(user, string(id)).Context(ctx).Do()
	return err
}

func (g *googleClient) Delete(ctx context.Context, id gc.MessageID) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	return g.svc.Users.Messages.Delete(user, string(id)).Context(ctx).Do()
}

func (g *googleClient) ListLabels(ctx context.Context) (map[string]gc.LabelID, map[gc.LabelID]string, error) {
	if err := g.wait(ctx); err != nil {
		return nil, nil, err
	}
	lr, err := g.svc.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, nil, err
	}
	byName := map[string]gc.LabelID{}
	byID := map[gc.LabelID]string{}
	for _, l := range lr.Labels {
		byName[l.Name] = gc.LabelID(l.Id)
		byID[gc.LabelID(l.Id)] = l.Name
	}
	return byName, byID, nil
}

func (g *googleClient) EnsureLabel(ctx context.Context, name string) (gc.LabelID, error) {
	byName, _, err := g.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := byName[name]; ok {
		return id, nil
	}
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	created, err := g.svc.Users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.LabelID(created.Id), nil
}

func toStrings(ids []gc.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toStringsL(ids []gc.LabelID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

var _ gc.Client = (*googleClient)(nil)
