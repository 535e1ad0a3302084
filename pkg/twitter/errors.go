package twitter

import (
	"errors"
	"fmt"
	"time"
)

// Platform error codes the pipeline branches on.
const (
	CodeInvalidPage     = 44  // search page index out of range
	CodeSuspended       = 63  // user has been suspended
	CodeRateLimited     = 88  // rate limit exceeded, reset time attached
	CodeBlocked         = 136 // the account blocked us
	CodeTweetNotFound   = 144 // no status found with that id
	CodeProtectedTweet  = 179 // not authorized to see this status
	CodeOverQuota       = 185 // user is over the daily status update limit
	CodeDuplicateStatus = 187 // status is a duplicate
	CodeForbiddenReply  = 385 // reply target deleted or not visible
)

// APIError is a structured failure reported by the platform.
type APIError struct {
	Code    int
	Message string
	Status  int // HTTP status
	// Reset is the time the rate limit window ends. Only meaningful for
	// CodeRateLimited.
	Reset time.Time
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter: %s (code %d, http %d)", e.Message, e.Code, e.Status)
}

func hasCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsInvalidPage reports a search pagination error, which finders treat
// as end of results.
func IsInvalidPage(err error) bool { return hasCode(err, CodeInvalidPage) }

// IsSuspended reports that the target account has been suspended.
func IsSuspended(err error) bool { return hasCode(err, CodeSuspended) }

// IsRateLimited reports a rate-limit rejection. RateLimitReset extracts
// the window end.
func IsRateLimited(err error) bool { return hasCode(err, CodeRateLimited) }

// IsBlocked reports that the account we are inspecting blocked us.
func IsBlocked(err error) bool { return hasCode(err, CodeBlocked) }

// IsNotFound reports a missing tweet or user.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeTweetNotFound || apiErr.Status == 404
}

// IsProtected reports that the target tweet belongs to a protected
// account.
func IsProtected(err error) bool { return hasCode(err, CodeProtectedTweet) }

// IsOverQuota reports that the posting quota is exhausted.
func IsOverQuota(err error) bool { return hasCode(err, CodeOverQuota) }

// IsDuplicate reports that an identical status was already posted.
func IsDuplicate(err error) bool { return hasCode(err, CodeDuplicateStatus) }

// IsForbiddenReply reports that the reply target is deleted or hidden
// from the poster.
func IsForbiddenReply(err error) bool { return hasCode(err, CodeForbiddenReply) }

// RateLimitReset returns the reset time attached to a rate-limit error,
// or the zero time when err is not one.
func RateLimitReset(err error) time.Time {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == CodeRateLimited {
		return apiErr.Reset
	}
	return time.Time{}
}
