package dispatch

import (
	"context"

	"github.com/joshsymonds/mailpurge/internal/gmail"
)

// Action is one kind of mutation, applied in bulk or to a single message.
type Action interface {
	Name() string
	Bulk(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error
	Single(ctx context.Context, c gmail.Client, id gmail.MessageID) error
}

type trashAction struct{}

// Trash moves messages to the trash: batchModify adding TRASH, messages.trash per item.
func Trash() Action { return trashAction{} }

func (trashAction) Name() string { return "trash" }

func (trashAction) Bulk(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
	return c.BatchModify(ctx, ids, gmail.ModifyOps{AddLabels: []gmail.LabelID{gmail.LabelTrash}})
}

func (trashAction) Single(ctx context.Context, c gmail.Client, id gmail.MessageID) error {
	return c.Trash(ctx, id)
}

type deleteAction struct{}

// Delete removes messages permanently: batchDelete, messages.delete per item.
func Delete() Action { return deleteAction{} }

func (deleteAction) Name() string { return "delete" }

func (deleteAction) Bulk(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
	return c.BatchDelete(ctx, ids)
}

func (deleteAction) Single(ctx context.Context, c gmail.Client, id gmail.MessageID) error {
	return c.Delete(ctx, id)
}

type modifyAction struct{ ops gmail.ModifyOps }

// Modify adds and removes labels: batchModify, messages.modify per item.
func Modify(ops gmail.ModifyOps) Action { return modifyAction{ops: ops} }

func (modifyAction) Name() string { return "label" }

func (m modifyAction) Bulk(ctx context.Context, c gmail.Client, ids []gmail.MessageID) error {
	return c.BatchModify(ctx, ids, m.ops)
}

func (m modifyAction) Single(ctx context.Context, c gmail.Client, id gmail.MessageID) error {
	return c.Modify(ctx, id, m.ops)
}
