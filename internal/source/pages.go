// Package source turns cursor-paginated message listings into lazy ID streams.
package source

import (
	"context"
	"fmt"
	"iter"

	"github.com/joshsymonds/mailpurge/internal/gmail"
	"github.com/joshsymonds/mailpurge/internal/retry"
)

// IDs is a lazy, finite stream of message IDs. A listing failure is yielded
// once with an empty ID and ends the stream.
type IDs = iter.Seq2[gmail.MessageID, error]

// Pages lists q page by page, yielding IDs until the server stops returning a
// cursor or limit IDs have been yielded. limit <= 0 means no limit.
func Pages(ctx context.Context, lister gmail.Lister, policy retry.Policy, q gmail.Query, limit int) IDs {
	return func(yield func(gmail.MessageID, error) bool) {
		token := ""
		yielded := 0
		for {
			page, err := listPage(ctx, lister, policy, q, token)
			if err != nil {
				yield("", err)
				return
			}
			for _, id := range page.IDs {
				if !yield(id, nil) {
					return
				}
				yielded++
				if limit > 0 && yielded >= limit {
					return
				}
			}
			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// Estimate issues a single page request and returns the server's size estimate.
func Estimate(ctx context.Context, lister gmail.Lister, policy retry.Policy, q gmail.Query) (int, error) {
	page, err := listPage(ctx, lister, policy, q, "")
	if err != nil {
		return 0, err
	}
	if page.ResultSizeEstimate < 0 {
		return 0, nil
	}
	return page.ResultSizeEstimate, nil
}

func listPage(
	ctx context.Context,
	lister gmail.Lister,
	policy retry.Policy,
	q gmail.Query,
	token string,
) (gmail.ListPage, error) {
	page, err := retry.Value(ctx, policy, func() (gmail.ListPage, error) {
		return lister.List(ctx, q, token, gmail.MaxPageSize)
	})
	if err != nil {
		return gmail.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}
