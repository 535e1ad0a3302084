// Package alert posts warnings to victims of impersonation scams, with
// a reply-then-standalone fallback and duplicate-content absorption.
package alert

import (
	"context"
	"fmt"

	"github.com/impostorwatch/impostorwatch/pkg/classify"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

// Input is everything a dispatch needs: the impersonated brand, the
// impersonator, the victim, and the offending tweet.
type Input struct {
	Brand   classify.Brand
	Scammer twitter.User
	Victim  twitter.User
	Tweet   twitter.Tweet
}

// Result is the outcome of a dispatch. Duplicate means the identical
// warning was already posted by a previous run; callers treat this as
// success and key the ledger record off the offending tweet id.
type Result struct {
	PostID    int64
	Duplicate bool
}

// Warning builds the warning text for a brand.
func Warning(brand classify.Brand) string {
	if _, username, ok := brand.Account.Official(); ok {
		return fmt.Sprintf("Cuidado, asegurate de estar hablando con la cuenta oficial (@%s)", username)
	}
	return fmt.Sprintf("Cuidado, %s no brinda atención oficial por este medio", brand.Name)
}

// TweetURL is the public URL of a user's status.
func TweetURL(username string, tweetID int64) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%d", username, tweetID)
}

// Dispatch posts the warning. The primary strategy replies directly
// under the offending tweet; when that reply is forbidden (target
// blocked or hidden from us) it falls back to a standalone post that
// mentions the victim and links the offending tweet. A duplicate-status
// rejection on either path is absorbed as success.
func Dispatch(ctx context.Context, c twitter.Client, in Input) (Result, error) {
	warning := Warning(in.Brand)

	post, err := c.PostReply(ctx, warning, in.Tweet.ID)
	if twitter.IsForbiddenReply(err) {
		fallback := fmt.Sprintf("@%s %s %s", in.Victim.Username, warning, TweetURL(in.Scammer.Username, in.Tweet.ID))
		post, err = c.Post(ctx, fallback)
	}
	if twitter.IsDuplicate(err) {
		return Result{Duplicate: true}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("dispatching alert for tweet %d: %w", in.Tweet.ID, err)
	}
	return Result{PostID: post.ID}, nil
}
