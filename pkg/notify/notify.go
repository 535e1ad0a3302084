// Package notify pushes operational events to a Telegram channel. It is
// a best-effort side channel: sends run in the background, swallow
// their own errors, and never affect pipeline state.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

// Victims below these thresholds are not worth a channel message; the
// alert itself is still sent.
const (
	relevantFollowers = 7000
	relevantFollowing = 2000
)

type Notifier struct {
	botToken string
	chatID   string
	http     *retryablehttp.Client
}

// New builds a notifier. An empty bot token yields a notifier that only
// logs locally.
func New(botToken, chatID string) *Notifier {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	rc.HTTPClient.Timeout = 10 * time.Second
	return &Notifier{botToken: botToken, chatID: chatID, http: rc}
}

// ScammerFound announces a newly confirmed impersonator.
func (n *Notifier) ScammerFound(scammer twitter.User, brandName string) {
	n.push(scammerFoundMessage(scammer, brandName))
}

func scammerFoundMessage(scammer twitter.User, brandName string) string {
	msg := fmt.Sprintf("Found new scammer [%s](https://twitter.com/%s) for %s",
		scammer.Username, scammer.Username, brandName)
	if !scammer.CreatedAt.IsZero() {
		msg += fmt.Sprintf(", account created %s ago", accountAge(scammer.CreatedAt))
	}
	return msg
}

// AlertSent announces a delivered warning when the victim is relevant
// enough to mention.
func (n *Notifier) AlertSent(victim, scammer twitter.User, tweetURL string) {
	if !relevantVictim(victim) {
		return
	}
	n.push(fmt.Sprintf("Alerted [%s](https://twitter.com/%s) (%d/%d) about [%s](%s)",
		victim.Username, victim.Username, victim.FollowingCount, victim.FollowersCount,
		scammer.Username, tweetURL))
}

func relevantVictim(u twitter.User) bool {
	return u.FollowersCount > relevantFollowers && u.FollowingCount < relevantFollowing
}

// accountAge renders a coarse human-readable account age.
func accountAge(created time.Time) string {
	d := time.Since(created)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= 365*24*time.Hour:
		return plural(int(d.Hours()/(365*24)), "year")
	case d >= 30*24*time.Hour:
		return plural(int(d.Hours()/(30*24)), "month")
	case d >= 24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	default:
		return "less than a day"
	}
}

// Error reports an operational error with full detail.
func (n *Notifier) Error(err error) {
	n.push(fmt.Sprintf("```\nError: %v\n```", err))
}

// Ping fires a GET at the given URL in the background, for heartbeat
// endpoints. Failures are logged and dropped.
func Ping(url string) {
	if url == "" {
		return
	}
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			utils.Log.Debugf("Heartbeat ping failed: %v", err)
			return
		}
		resp.Body.Close()
	}()
}

// push logs the message and, when configured, sends it to the channel
// without waiting for completion.
func (n *Notifier) push(message string) {
	utils.Log.Info(message)
	if n == nil || n.botToken == "" {
		return
	}
	go func() {
		if err := n.send(message); err != nil {
			utils.Log.Debugf("Notification failed: %v", err)
		}
	}()
}

func (n *Notifier) send(message string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     message,
		"disable_notification":     true,
		"disable_web_page_preview": true,
		"parse_mode":               "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	req, err := retryablehttp.NewRequest("POST", url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram: http %d", resp.StatusCode)
	}
	return nil
}
