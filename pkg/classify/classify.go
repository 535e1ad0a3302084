// Package classify decides whether a candidate account is impersonating
// a brand and actively scamming a victim. It combines display-name
// similarity with reply-chain resolution.
package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/similarity"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

const (
	// NameThreshold is the minimum display-name similarity for a
	// candidate to be worth a timeline scan.
	NameThreshold = 0.65
	// TimelineCount is the timeline page size used when scanning a
	// candidate's tweets.
	TimelineCount = 200
)

// ScanCutoff is the fixed lower bound of the tweet scan window. Replies
// older than this are never evaluated.
var ScanCutoff = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Account is the brand's presence on the platform: either an official
// account or none. Zero value means no account.
type Account struct {
	official bool
	id       int64
	username string
}

// OfficialAccount builds the variant for a brand with a verified
// account.
func OfficialAccount(id int64, username string) Account {
	return Account{official: true, id: id, username: username}
}

// NoAccount builds the variant for a brand with no official presence.
func NoAccount() Account {
	return Account{}
}

// Official returns the account id and username when the brand has an
// official account.
func (a Account) Official() (int64, string, bool) {
	return a.id, a.username, a.official
}

// Brand is the tracked entity candidates are compared against.
type Brand struct {
	Name    string
	Account Account
}

// Verdict is the classifier's decision for one candidate or tweet.
// Victim and Tweet are set only for reply-based verdicts; an exact-name
// verdict carries neither.
type Verdict struct {
	IsScam bool
	Victim *twitter.User
	Tweet  *twitter.Tweet
}

// Resolution is the outcome of resolving a reply chain.
type Resolution struct {
	Target              *twitter.Tweet
	TargetMentionsBrand bool
}

// Classifier evaluates candidates against brands. It is stateless; all
// I/O goes through the client.
type Classifier struct {
	client twitter.Client
}

func New(client twitter.Client) *Classifier {
	return &Classifier{client: client}
}

// ClassifyCandidate applies the full rule chain to a discovered
// candidate, scanning its recent replies when the name is close enough.
func (cl *Classifier) ClassifyCandidate(ctx context.Context, brand Brand, user twitter.User) (Verdict, error) {
	if v, decided := decideByProfile(brand, user); decided {
		return v, nil
	}

	tweets, err := cl.client.Timeline(ctx, user.ID, 0, TimelineCount)
	if err != nil {
		if twitter.IsBlocked(err) || twitter.IsSuspended(err) {
			utils.Log.Debugf("Timeline for %s unavailable: %v", user.Username, err)
			return Verdict{}, nil
		}
		return Verdict{}, fmt.Errorf("timeline for %s: %w", user.Username, err)
	}

	for _, tweet := range scanWindow(tweets, ScanCutoff) {
		v, err := cl.ClassifyTweet(ctx, brand, user, tweet)
		if err != nil {
			if twitter.IsBlocked(err) || twitter.IsSuspended(err) {
				utils.Log.Debugf("Stopping scan of %s: %v", user.Username, err)
				return Verdict{}, nil
			}
			return Verdict{}, err
		}
		if v.IsScam {
			return v, nil
		}
	}
	return Verdict{}, nil
}

// ClassifyTweet decides whether a single reply tweet from the candidate
// is a scam interaction. Non-reply tweets are never scams.
func (cl *Classifier) ClassifyTweet(ctx context.Context, brand Brand, user twitter.User, tweet twitter.Tweet) (Verdict, error) {
	if !tweet.IsReply() {
		return Verdict{}, nil
	}

	_, username, hasOfficial := brand.Account.Official()
	if !hasOfficial {
		// The brand has no official account, so any reply thread the
		// impersonator joins is scam context: the parent author is the
		// victim.
		res, err := cl.ResolveReply(ctx, tweet, brand)
		if err != nil || res.Target == nil || res.Target.Author == nil {
			return Verdict{}, err
		}
		return Verdict{IsScam: true, Victim: res.Target.Author, Tweet: &tweet}, nil
	}

	// Scammers don't usually mention the brand's official account in
	// their tweets.
	if tweet.MentionsUsername(username) {
		return Verdict{}, nil
	}

	res, err := cl.ResolveReply(ctx, tweet, brand)
	if err != nil {
		return Verdict{}, err
	}
	if res.TargetMentionsBrand && res.Target.Author != nil {
		return Verdict{IsScam: true, Victim: res.Target.Author, Tweet: &tweet}, nil
	}
	return Verdict{}, nil
}

// ResolveReply fetches the tweet the reply targets and checks whether
// it addresses the brand's official account. A missing, suspended or
// protected target resolves to an empty Resolution rather than an
// error; anything else propagates after being logged.
func (cl *Classifier) ResolveReply(ctx context.Context, tweet twitter.Tweet, brand Brand) (Resolution, error) {
	target, err := cl.client.Tweet(ctx, tweet.InReplyToTweetID)
	if err != nil {
		if twitter.IsNotFound(err) || twitter.IsSuspended(err) || twitter.IsProtected(err) {
			return Resolution{}, nil
		}
		utils.Log.Errorf("Error retrieving tweet %d: %v", tweet.InReplyToTweetID, err)
		return Resolution{}, err
	}
	res := Resolution{Target: &target}
	if _, username, ok := brand.Account.Official(); ok {
		res.TargetMentionsBrand = target.MentionsUsername(username)
	}
	return res, nil
}

func decideByProfile(brand Brand, user twitter.User) (Verdict, bool) {
	if user.Verified {
		return Verdict{}, true
	}
	if user.Protected {
		return Verdict{}, true
	}
	if id, _, ok := brand.Account.Official(); ok && user.ID == id {
		return Verdict{}, true
	}
	// Exact-name squatting is conclusive on its own.
	if len([]rune(brand.Name)) > 3 && strings.EqualFold(strings.TrimSpace(brand.Name), strings.TrimSpace(user.Name)) {
		return Verdict{IsScam: true}, true
	}
	if similarity.Score(brand.Name, user.Name) < NameThreshold {
		return Verdict{}, true
	}
	return Verdict{}, false
}

// scanWindow filters to reply tweets at/after the cutoff, in ascending
// id order so repeated runs over the same data reach the same first
// match.
func scanWindow(tweets []twitter.Tweet, cutoff time.Time) []twitter.Tweet {
	var out []twitter.Tweet
	for _, t := range tweets {
		if t.IsReply() && !t.CreatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
