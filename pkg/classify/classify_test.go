package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

type fakeClient struct {
	twitter.Client
	timeline      []twitter.Tweet
	timelineErr   error
	timelineCalls int
	tweets        map[int64]twitter.Tweet
	tweetErr      map[int64]error
	tweetCalls    int
}

func (f *fakeClient) Timeline(_ context.Context, _ int64, _ int64, _ int) ([]twitter.Tweet, error) {
	f.timelineCalls++
	if f.timelineErr != nil {
		return nil, f.timelineErr
	}
	return f.timeline, nil
}

func (f *fakeClient) Tweet(_ context.Context, id int64) (twitter.Tweet, error) {
	f.tweetCalls++
	if err, ok := f.tweetErr[id]; ok {
		return twitter.Tweet{}, err
	}
	if t, ok := f.tweets[id]; ok {
		return t, nil
	}
	return twitter.Tweet{}, &twitter.APIError{Code: twitter.CodeTweetNotFound, Status: 404, Message: "not found"}
}

var acmeBrand = Brand{
	Name:    "Acme Bank",
	Account: OfficialAccount(1000, "AcmeBank_OK"),
}

func recentReply(id, parentID int64, mentions ...twitter.Mention) twitter.Tweet {
	return twitter.Tweet{
		ID:               id,
		CreatedAt:        time.Now().UTC(),
		InReplyToTweetID: parentID,
		Mentions:         mentions,
	}
}

func TestVerifiedCandidateNeverScam(t *testing.T) {
	cl := New(&fakeClient{})
	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 1, Name: "Acme Bank", Verified: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("verified candidate classified as scam")
	}
}

func TestProtectedCandidateNeverScam(t *testing.T) {
	cl := New(&fakeClient{})
	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 1, Name: "Acme Bank", Protected: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("protected candidate classified as scam")
	}
}

func TestBrandOwnAccountNeverScam(t *testing.T) {
	cl := New(&fakeClient{})
	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 1000, Name: "Acme Bank",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("brand's own account classified as scam")
	}
}

// Scenario A: exact display-name match is conclusive with no tweets.
func TestExactNameMatchIsScamWithoutTweets(t *testing.T) {
	c := &fakeClient{timelineErr: errors.New("timeline must not be fetched")}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank", Username: "AcmeBank_Helper",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsScam {
		t.Fatal("exact name match not classified as scam")
	}
}

func TestShortExactNameNotConclusive(t *testing.T) {
	brand := Brand{Name: "ACM", Account: OfficialAccount(1000, "acm_ok")}
	cl := New(&fakeClient{})

	v, err := cl.ClassifyCandidate(context.Background(), brand, twitter.User{ID: 2, Name: "ACM"})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("3-char exact match should not be conclusive")
	}
}

// A near-name variant must pass the similarity gate and reach the
// timeline scan; the gate short-circuiting here would hide reply-chain
// regressions behind vacuous not-scam verdicts.
func TestNearNameVariantReachesTimelineScan(t *testing.T) {
	c := &fakeClient{}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank Help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("empty timeline classified as scam")
	}
	if c.timelineCalls != 1 {
		t.Fatalf("timeline fetched %d times, want 1", c.timelineCalls)
	}
}

func TestLowSimilarityShortCircuits(t *testing.T) {
	c := &fakeClient{timelineErr: errors.New("timeline must not be fetched")}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Gardening Tips Daily",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("unrelated name classified as scam")
	}
}

// Scenario B: the candidate's reply already mentions the official
// account, so it is skipped without resolving the chain.
func TestReplyMentioningBrandIsSkipped(t *testing.T) {
	c := &fakeClient{
		timeline: []twitter.Tweet{
			recentReply(10, 5, twitter.Mention{ID: 1000, Username: "AcmeBank_OK"}),
		},
	}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank Help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("reply tagging the real brand classified as scam")
	}
	if c.tweetCalls != 0 {
		t.Fatalf("reply chain resolved %d times, expected none", c.tweetCalls)
	}
}

// Scenario C: the original tweet mentions the official account, so the
// candidate replying to it is a scam and the original author is the
// victim.
func TestReplyToBrandThreadIsScam(t *testing.T) {
	victim := twitter.User{ID: 77, Username: "nachidami"}
	c := &fakeClient{
		timeline: []twitter.Tweet{
			recentReply(10, 5, twitter.Mention{ID: 77, Username: "nachidami"}),
		},
		tweets: map[int64]twitter.Tweet{
			5: {
				ID:       5,
				Author:   &victim,
				Mentions: []twitter.Mention{{ID: 1000, Username: "AcmeBank_OK"}},
			},
		},
	}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank Help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsScam {
		t.Fatal("reply into a brand thread not classified as scam")
	}
	if v.Victim == nil || v.Victim.ID != 77 {
		t.Fatalf("expected victim 77, got %+v", v.Victim)
	}
	if v.Tweet == nil || v.Tweet.ID != 10 {
		t.Fatalf("expected offending tweet 10, got %+v", v.Tweet)
	}
}

func TestNoAccountBrandAnyReplyIsScam(t *testing.T) {
	victim := twitter.User{ID: 88, Username: "somevictim"}
	brand := Brand{Name: "Acme Credit Union", Account: NoAccount()}
	c := &fakeClient{
		timeline: []twitter.Tweet{recentReply(10, 5)},
		tweets: map[int64]twitter.Tweet{
			5: {ID: 5, Author: &victim},
		},
	}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), brand, twitter.User{
		ID: 2, Name: "Acme Credit Union Help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsScam {
		t.Fatal("no-account brand reply not classified as scam")
	}
	if v.Victim == nil || v.Victim.ID != 88 {
		t.Fatalf("expected victim 88, got %+v", v.Victim)
	}
}

func TestResolverNegativeCodesAreNotScam(t *testing.T) {
	negatives := []*twitter.APIError{
		{Code: twitter.CodeTweetNotFound, Status: 404, Message: "not found"},
		{Code: twitter.CodeSuspended, Message: "suspended"},
		{Code: twitter.CodeProtectedTweet, Status: 403, Message: "protected"},
	}
	for _, apiErr := range negatives {
		c := &fakeClient{
			timeline: []twitter.Tweet{recentReply(10, 5)},
			tweetErr: map[int64]error{5: apiErr},
		}
		cl := New(c)

		v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
			ID: 2, Name: "Acme Bank Help",
		})
		if err != nil {
			t.Fatalf("code %d: unexpected error %v", apiErr.Code, err)
		}
		if v.IsScam {
			t.Fatalf("code %d: classified as scam", apiErr.Code)
		}
	}
}

func TestResolverUnexpectedErrorPropagates(t *testing.T) {
	boom := &twitter.APIError{Code: twitter.CodeRateLimited, Message: "slow down"}
	c := &fakeClient{
		timeline: []twitter.Tweet{recentReply(10, 5)},
		tweetErr: map[int64]error{5: boom},
	}
	cl := New(c)

	_, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank Help",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected rate limit error to propagate, got %v", err)
	}
}

func TestBlockedTimelineIsNotScam(t *testing.T) {
	c := &fakeClient{timelineErr: &twitter.APIError{Code: twitter.CodeBlocked, Message: "blocked"}}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank Help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("blocked timeline classified as scam")
	}
}

func TestOldRepliesAreOutsideScanWindow(t *testing.T) {
	c := &fakeClient{
		timeline: []twitter.Tweet{
			{
				ID:               10,
				CreatedAt:        time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC),
				InReplyToTweetID: 5,
			},
		},
	}
	cl := New(c)

	v, err := cl.ClassifyCandidate(context.Background(), acmeBrand, twitter.User{
		ID: 2, Name: "Acme Bank Help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsScam {
		t.Fatal("pre-cutoff reply classified as scam")
	}
	if c.tweetCalls != 0 {
		t.Fatal("reply chain resolved for a pre-cutoff tweet")
	}
}
