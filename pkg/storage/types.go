package storage

import "time"

// Brand is a tracked legitimate entity potentially impersonated by
// scammers. When HasAccount is set, AccountID and Username identify its
// official profile and are always non-empty.
type Brand struct {
	ID             int64
	Name           string
	HasAccount     bool
	AccountID      int64
	Username       string
	AddedAt        time.Time
	LastSearchedAt time.Time
}

// Scammer is an account confirmed to be impersonating a brand. ID is
// the platform account id. SinceID is the tweet-id watermark of the
// incremental sweep cursor; 0 means no watermark yet, in which case
// StartTime bounds the scan window instead.
type Scammer struct {
	ID        int64
	Username  string
	BrandID   int64
	CreatedAt time.Time // account creation on the platform
	AddedAt   time.Time
	IsActive  bool
	SinceID   int64
	StartTime time.Time
}

// Alert is an append-only ledger record of a warning already delivered
// for a (scammer, victim) pair. ID is the posted status id, or the
// offending tweet id when the send was absorbed as a duplicate.
type Alert struct {
	ID              int64
	CreatedAt       time.Time
	ScammerID       int64
	VictimID        int64
	VictimUsername  string
	VictimCreatedAt time.Time
	TweetID         int64
	TweetText       string
	TweetCreatedAt  time.Time
}
