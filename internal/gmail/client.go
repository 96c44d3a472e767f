package gmail

import "context"

// Client is the narrow Gmail surface required by mailpurge.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	BatchModify(ctx context.Context, ids []MessageID, ops ModifyOps) error
	BatchDelete(ctx context.Context, ids []MessageID) error
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	Trash(ctx context.Context, id MessageID) error
	Delete(ctx context.Context, id MessageID) error
	ListLabels(ctx context.Context) (map[string]LabelID, map[LabelID]string, error)
	EnsureLabel(ctx context.Context, name string) (LabelID, error)
}

// Lister is the read-only slice of Client used for discovery.
type Lister interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
}
