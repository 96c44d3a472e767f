// internal/gmail/types.go
package gmail

type MessageID string
type LabelID string

// Reserved system labels.
const (
	LabelStarred LabelID = "STARRED"
	LabelTrash   LabelID = "TRASH"
	LabelInbox   LabelID = "INBOX"
	LabelUnread  LabelID = "UNREAD"
	LabelSpam    LabelID = "SPAM"
)

// MaxPageSize is the largest page messages.list will return.
const MaxPageSize = 500

// MaxBatchSize is the ceiling for batchModify and batchDelete.
const MaxBatchSize = 1000

type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

// Empty reports whether the ops would change nothing.
func (o ModifyOps) Empty() bool { return len(o.AddLabels) == 0 && len(o.RemoveLabels) == 0 }

type Query struct {
	Raw              string // Gmail query string, already formed (e.g., `from:news@x.com -is:starred`)
	LabelIDs         []LabelID
	IncludeSpamTrash bool
}

// ListPage is one page of a messages.list response.
type ListPage struct {
	IDs                []MessageID
	NextPageToken      string
	ResultSizeEstimate int
}

// IsReserved reports whether id names a Gmail system label.
func IsReserved(id LabelID) bool {
	switch id {
	case LabelStarred, LabelTrash, LabelInbox, LabelUnread, LabelSpam,
		"IMPORTANT", "SENT", "DRAFT", "CHAT",
		"CATEGORY_PERSONAL", "CATEGORY_SOCIAL", "CATEGORY_PROMOTIONS",
		"CATEGORY_UPDATES", "CATEGORY_FORUMS":
		return true
	}
	return false
}
