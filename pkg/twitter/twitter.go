// Package twitter wraps the parts of the Twitter REST API the pipeline
// needs behind a narrow Client interface, with structured error codes.
package twitter

import (
	"context"
	"strings"
	"time"
)

// User is a Twitter account as returned by search, lookup or timeline
// endpoints.
type User struct {
	ID             int64
	Username       string
	Name           string
	Verified       bool
	Protected      bool
	CreatedAt      time.Time
	FollowersCount int
	FollowingCount int
	// LatestTweetID is the id of the account's most recent status, when
	// the endpoint includes it. 0 when unknown.
	LatestTweetID int64
}

// Mention is a single @-mention inside a tweet's entities.
type Mention struct {
	ID       int64
	Username string
}

// Tweet is a single status. Reply and quote targets are 0 when absent.
type Tweet struct {
	ID               int64
	Text             string
	CreatedAt        time.Time
	InReplyToTweetID int64
	InReplyToUserID  int64
	QuotedTweetID    int64
	Author           *User
	Mentions         []Mention
}

// IsReply reports whether the tweet replies to another status.
func (t Tweet) IsReply() bool { return t.InReplyToTweetID != 0 }

// MentionsUsername reports whether the tweet @-mentions the given
// username, case-insensitively.
func (t Tweet) MentionsUsername(username string) bool {
	for _, m := range t.Mentions {
		if strings.EqualFold(m.Username, username) {
			return true
		}
	}
	return false
}

// Post is the result of a successful status creation.
type Post struct {
	ID int64
}

// LookupError is a per-id failure from a bulk user lookup.
type LookupError struct {
	ResourceID int64
	Detail     string
}

// Client is the API surface the detection pipeline depends on.
// Implementations must return *APIError for platform-reported failures
// so callers can branch on error codes.
type Client interface {
	// SearchUsers returns one page of accounts whose profile matches the
	// query. Pages start at 1.
	SearchUsers(ctx context.Context, query string, page int) ([]User, error)
	// Timeline returns up to count recent statuses of the account, newest
	// first. sinceID of 0 means no lower bound.
	Timeline(ctx context.Context, userID, sinceID int64, count int) ([]Tweet, error)
	// Tweet fetches a single status by id.
	Tweet(ctx context.Context, id int64) (Tweet, error)
	// User fetches a single account by id.
	User(ctx context.Context, id int64) (User, error)
	// UserByUsername fetches a single account by username.
	UserByUsername(ctx context.Context, username string) (User, error)
	// UsersByIDs bulk-fetches accounts. Accounts that could not be
	// returned (suspended, deleted) come back as LookupErrors instead of
	// failing the whole call.
	UsersByIDs(ctx context.Context, ids []int64) ([]User, []LookupError, error)
	// PostReply creates a status replying to inReplyToID.
	PostReply(ctx context.Context, text string, inReplyToID int64) (Post, error)
	// Post creates a standalone status.
	Post(ctx context.Context, text string) (Post, error)
}
