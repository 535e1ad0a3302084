package twitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const (
	apiBase    = "https://api.twitter.com"
	timeLayout = time.RubyDate // "Mon Jan 02 15:04:05 -0700 2006"
)

// Credentials holds the tokens used against the API. BearerToken is the
// app-only token used for reads; WriteToken is the user-context token
// used for posting.
type Credentials struct {
	BearerToken string
	WriteToken  string
}

// HTTPClient implements Client over the Twitter REST API.
type HTTPClient struct {
	creds Credentials
	http  *retryablehttp.Client
}

// NewHTTPClient builds a client with sane retry defaults. Retries cover
// transport faults and 5xx only; 4xx responses (including rate limits)
// surface as *APIError so the pipeline can apply its own policy.
func NewHTTPClient(creds Credentials) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}
	return &HTTPClient{creds: creds, http: rc}
}

func (c *HTTPClient) SearchUsers(ctx context.Context, query string, page int) ([]User, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", "20")
	params.Set("page", strconv.Itoa(page))
	body, err := c.get(ctx, "/1.1/users/search.json", params)
	if err != nil {
		return nil, err
	}
	var users []User
	for _, j := range gjson.Parse(body).Array() {
		users = append(users, userFromJSON(j))
	}
	return users, nil
}

func (c *HTTPClient) Timeline(ctx context.Context, userID, sinceID int64, count int) ([]Tweet, error) {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(userID, 10))
	params.Set("count", strconv.Itoa(count))
	params.Set("tweet_mode", "extended")
	if sinceID > 0 {
		params.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	body, err := c.get(ctx, "/1.1/statuses/user_timeline.json", params)
	if err != nil {
		return nil, err
	}
	var tweets []Tweet
	for _, j := range gjson.Parse(body).Array() {
		tweets = append(tweets, tweetFromJSON(j))
	}
	return tweets, nil
}

func (c *HTTPClient) Tweet(ctx context.Context, id int64) (Tweet, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("tweet_mode", "extended")
	body, err := c.get(ctx, "/1.1/statuses/show.json", params)
	if err != nil {
		return Tweet{}, err
	}
	return tweetFromJSON(gjson.Parse(body)), nil
}

func (c *HTTPClient) User(ctx context.Context, id int64) (User, error) {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(id, 10))
	body, err := c.get(ctx, "/1.1/users/show.json", params)
	if err != nil {
		return User{}, err
	}
	return userFromJSON(gjson.Parse(body)), nil
}

func (c *HTTPClient) UserByUsername(ctx context.Context, username string) (User, error) {
	params := url.Values{}
	params.Set("screen_name", username)
	body, err := c.get(ctx, "/1.1/users/show.json", params)
	if err != nil {
		return User{}, err
	}
	return userFromJSON(gjson.Parse(body)), nil
}

func (c *HTTPClient) UsersByIDs(ctx context.Context, ids []int64) ([]User, []LookupError, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("ids", strings.Join(strIDs, ","))
	params.Set("user.fields", "created_at,protected,verified,public_metrics")
	body, err := c.get(ctx, "/2/users", params)
	if err != nil {
		return nil, nil, err
	}

	var users []User
	for _, j := range gjson.Get(body, "data").Array() {
		users = append(users, User{
			ID:             j.Get("id").Int(),
			Username:       j.Get("username").Str,
			Name:           j.Get("name").Str,
			Verified:       j.Get("verified").Bool(),
			Protected:      j.Get("protected").Bool(),
			CreatedAt:      parseRFC3339(j.Get("created_at").Str),
			FollowersCount: int(j.Get("public_metrics.followers_count").Int()),
			FollowingCount: int(j.Get("public_metrics.following_count").Int()),
		})
	}
	var lookupErrs []LookupError
	for _, j := range gjson.Get(body, "errors").Array() {
		lookupErrs = append(lookupErrs, LookupError{
			ResourceID: j.Get("resource_id").Int(),
			Detail:     j.Get("detail").Str,
		})
	}
	return users, lookupErrs, nil
}

func (c *HTTPClient) PostReply(ctx context.Context, text string, inReplyToID int64) (Post, error) {
	form := url.Values{}
	form.Set("status", text)
	form.Set("in_reply_to_status_id", strconv.FormatInt(inReplyToID, 10))
	form.Set("auto_populate_reply_metadata", "true")
	return c.postStatus(ctx, form)
}

func (c *HTTPClient) Post(ctx context.Context, text string) (Post, error) {
	form := url.Values{}
	form.Set("status", text)
	return c.postStatus(ctx, form)
}

func (c *HTTPClient) postStatus(ctx context.Context, form url.Values) (Post, error) {
	body, err := c.do(ctx, "POST", "/1.1/statuses/update.json", form, c.creds.WriteToken)
	if err != nil {
		return Post{}, err
	}
	return Post{ID: gjson.Get(body, "id").Int()}, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) (string, error) {
	return c.do(ctx, "GET", path, params, c.creds.BearerToken)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, token string) (string, error) {
	endpoint := apiBase + path
	var bodyReader io.Reader
	if method == "GET" {
		endpoint += "?" + params.Encode()
	} else {
		bodyReader = strings.NewReader(params.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if method != "GET" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("twitter: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	body := string(raw)

	if resp.StatusCode >= 400 {
		return "", parseAPIError(resp.StatusCode, resp.Header, body)
	}
	return body, nil
}

// parseAPIError maps a platform error payload onto an *APIError. Rate
// limit responses carry the window reset in the x-rate-limit-reset
// header as a unix timestamp.
func parseAPIError(status int, header http.Header, body string) *APIError {
	e := &APIError{
		Status:  status,
		Code:    int(gjson.Get(body, "errors.0.code").Int()),
		Message: gjson.Get(body, "errors.0.message").Str,
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if status == http.StatusTooManyRequests {
		e.Code = CodeRateLimited
	}
	if e.Code == CodeRateLimited {
		if unix, err := strconv.ParseInt(header.Get("x-rate-limit-reset"), 10, 64); err == nil {
			e.Reset = time.Unix(unix, 0)
		}
	}
	return e
}

func userFromJSON(j gjson.Result) User {
	return User{
		ID:             j.Get("id").Int(),
		Username:       j.Get("screen_name").Str,
		Name:           j.Get("name").Str,
		Verified:       j.Get("verified").Bool(),
		Protected:      j.Get("protected").Bool(),
		CreatedAt:      parseCreatedAt(j.Get("created_at").Str),
		FollowersCount: int(j.Get("followers_count").Int()),
		FollowingCount: int(j.Get("friends_count").Int()),
		LatestTweetID:  j.Get("status.id").Int(),
	}
}

func tweetFromJSON(j gjson.Result) Tweet {
	t := Tweet{
		ID:               j.Get("id").Int(),
		Text:             j.Get("full_text").Str,
		CreatedAt:        parseCreatedAt(j.Get("created_at").Str),
		InReplyToTweetID: j.Get("in_reply_to_status_id").Int(),
		InReplyToUserID:  j.Get("in_reply_to_user_id").Int(),
		QuotedTweetID:    j.Get("quoted_status_id").Int(),
	}
	if t.Text == "" {
		t.Text = j.Get("text").Str
	}
	if u := j.Get("user"); u.Exists() {
		author := userFromJSON(u)
		t.Author = &author
	}
	for _, m := range j.Get("entities.user_mentions").Array() {
		t.Mentions = append(t.Mentions, Mention{
			ID:       m.Get("id").Int(),
			Username: m.Get("screen_name").Str,
		})
	}
	return t
}

func parseCreatedAt(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
