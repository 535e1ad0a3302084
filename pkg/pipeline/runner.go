package pipeline

import (
	"context"
	"time"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/notify"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

const defaultQuotaCooldown = 10 * time.Minute

// Job is one unit of scheduled work, typically a Pipeline method.
type Job func(ctx context.Context) error

// Runner executes a job on a fixed interval. Runs never overlap: the
// next tick starts only after the previous run finished, and rate-limit
// or quota errors pause the loop instead of killing it.
type Runner struct {
	Interval      time.Duration
	HeartbeatURL  string
	Notifier      *notify.Notifier
	QuotaCooldown time.Duration // defaults to 10m if 0
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, name string, job Job) error {
	cooldown := r.QuotaCooldown
	if cooldown == 0 {
		cooldown = defaultQuotaCooldown
	}

	for {
		utils.Log.Infof("Starting %s run", name)
		err := job(ctx)

		wait := r.Interval
		switch {
		case err == nil:
			utils.Log.Infof("%s run finished", name)
			if r.HeartbeatURL != "" {
				notify.Ping(r.HeartbeatURL)
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case twitter.IsRateLimited(err):
			if reset := twitter.RateLimitReset(err); reset.After(time.Now()) {
				wait = time.Until(reset) + time.Second
			}
			utils.Log.Warnf("Rate limited, pausing %s for %s", name, wait.Round(time.Second))
			r.Notifier.Error(err)
		case twitter.IsOverQuota(err):
			wait = cooldown
			utils.Log.Warnf("Monthly quota exceeded, pausing %s for %s", name, wait)
			r.Notifier.Error(err)
		default:
			utils.Log.Errorf("%s run failed: %v", name, err)
			r.Notifier.Error(err)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
