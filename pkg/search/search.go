// Package search discovers candidate accounts whose profile matches a
// brand name, paginating the account search surface.
package search

import (
	"context"
	"fmt"

	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

const (
	// pageSize is the number of results per search page.
	pageSize = 20
	// maxAccounts caps how many candidates a single brand search yields.
	maxAccounts = 50
)

// FindAccounts queries the search surface for accounts matching the
// brand name, merging pages and deduplicating by account id in
// first-seen order. Pagination stops at a short page, at maxAccounts,
// or when the surface rejects the page index; any other error
// propagates.
func FindAccounts(ctx context.Context, c twitter.Client, name string) ([]twitter.User, error) {
	query := fmt.Sprintf("%q", name)
	seen := make(map[int64]bool)
	var out []twitter.User

	for page := 1; ; page++ {
		users, err := c.SearchUsers(ctx, query, page)
		if err != nil {
			// The surface reports an out-of-range page instead of an
			// empty one; treat it as end of results.
			if twitter.IsInvalidPage(err) {
				return out, nil
			}
			return nil, err
		}

		for _, u := range users {
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			out = append(out, u)
			if len(out) >= maxAccounts {
				return out, nil
			}
		}

		if len(users) < pageSize {
			return out, nil
		}
	}
}
