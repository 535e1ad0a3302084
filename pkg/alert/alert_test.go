package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/impostorwatch/impostorwatch/pkg/classify"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

type fakeClient struct {
	twitter.Client
	replyErr error
	postErr  error
	replies  []postedReply
	posts    []string
	nextID   int64
}

type postedReply struct {
	text        string
	inReplyToID int64
}

func (f *fakeClient) PostReply(_ context.Context, text string, inReplyToID int64) (twitter.Post, error) {
	if f.replyErr != nil {
		return twitter.Post{}, f.replyErr
	}
	f.replies = append(f.replies, postedReply{text: text, inReplyToID: inReplyToID})
	f.nextID++
	return twitter.Post{ID: f.nextID}, nil
}

func (f *fakeClient) Post(_ context.Context, text string) (twitter.Post, error) {
	if f.postErr != nil {
		return twitter.Post{}, f.postErr
	}
	f.posts = append(f.posts, text)
	f.nextID++
	return twitter.Post{ID: f.nextID}, nil
}

func testInput() Input {
	return Input{
		Brand:   classify.Brand{Name: "Acme Bank", Account: classify.OfficialAccount(1000, "AcmeBank_OK")},
		Scammer: twitter.User{ID: 2, Username: "BadGuy"},
		Victim:  twitter.User{ID: 77, Username: "Victim1"},
		Tweet:   twitter.Tweet{ID: 56789},
	}
}

func TestDispatchPrimaryReply(t *testing.T) {
	c := &fakeClient{}
	res, err := Dispatch(context.Background(), c, testInput())
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicate {
		t.Fatal("unexpected duplicate result")
	}
	if len(c.replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(c.replies))
	}
	r := c.replies[0]
	if r.inReplyToID != 56789 {
		t.Fatalf("expected reply under tweet 56789, got %d", r.inReplyToID)
	}
	want := "Cuidado, asegurate de estar hablando con la cuenta oficial (@AcmeBank_OK)"
	if r.text != want {
		t.Fatalf("reply text:\nwant: %q\ngot:  %q", want, r.text)
	}
}

// Scenario D: forbidden reply falls back to a standalone post of the
// form "@victim <warning> <tweetURL>".
func TestDispatchForbiddenReplyFallsBack(t *testing.T) {
	c := &fakeClient{
		replyErr: &twitter.APIError{Code: twitter.CodeForbiddenReply, Status: 403, Message: "reply not visible"},
	}
	res, err := Dispatch(context.Background(), c, testInput())
	if err != nil {
		t.Fatal(err)
	}
	if res.PostID == 0 {
		t.Fatal("expected a post id from the fallback")
	}
	if len(c.posts) != 1 {
		t.Fatalf("expected 1 standalone post, got %d", len(c.posts))
	}
	want := "@Victim1 Cuidado, asegurate de estar hablando con la cuenta oficial (@AcmeBank_OK) https://twitter.com/BadGuy/status/56789"
	if c.posts[0] != want {
		t.Fatalf("fallback text:\nwant: %q\ngot:  %q", want, c.posts[0])
	}
}

// Scenario E: duplicate content is absorbed as success.
func TestDispatchDuplicateIsAbsorbed(t *testing.T) {
	c := &fakeClient{
		replyErr: &twitter.APIError{Code: twitter.CodeDuplicateStatus, Status: 403, Message: "Status is a duplicate."},
	}
	res, err := Dispatch(context.Background(), c, testInput())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Duplicate {
		t.Fatal("expected duplicate sentinel result")
	}
	if res.PostID != 0 {
		t.Fatalf("duplicate result should carry no post id, got %d", res.PostID)
	}
}

func TestDispatchDuplicateOnFallbackIsAbsorbed(t *testing.T) {
	c := &fakeClient{
		replyErr: &twitter.APIError{Code: twitter.CodeForbiddenReply, Status: 403, Message: "reply not visible"},
		postErr:  &twitter.APIError{Code: twitter.CodeDuplicateStatus, Status: 403, Message: "Status is a duplicate."},
	}
	res, err := Dispatch(context.Background(), c, testInput())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Duplicate {
		t.Fatal("expected duplicate sentinel result")
	}
}

func TestDispatchOtherErrorsPropagate(t *testing.T) {
	boom := &twitter.APIError{Code: twitter.CodeOverQuota, Message: "over quota"}
	c := &fakeClient{replyErr: boom}

	_, err := Dispatch(context.Background(), c, testInput())
	if !errors.Is(err, boom) {
		t.Fatalf("expected quota error to propagate, got %v", err)
	}
}

func TestWarningForBrandWithoutAccount(t *testing.T) {
	brand := classify.Brand{Name: "Acme Credit Union", Account: classify.NoAccount()}
	want := "Cuidado, Acme Credit Union no brinda atención oficial por este medio"
	if got := Warning(brand); got != want {
		t.Fatalf("warning text:\nwant: %q\ngot:  %q", want, got)
	}
}
