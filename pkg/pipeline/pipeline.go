// Package pipeline drives the detection-and-alert sweeps: incremental
// polling of tracked scammers, candidate discovery for brands, and
// suspension-status refresh, with rate-limit aware scheduling.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/impostorwatch/impostorwatch/internal/utils"
	"github.com/impostorwatch/impostorwatch/pkg/alert"
	"github.com/impostorwatch/impostorwatch/pkg/classify"
	"github.com/impostorwatch/impostorwatch/pkg/notify"
	"github.com/impostorwatch/impostorwatch/pkg/search"
	"github.com/impostorwatch/impostorwatch/pkg/storage"
	"github.com/impostorwatch/impostorwatch/pkg/twitter"
)

const (
	// statusBatchSize is how many accounts one bulk lookup covers.
	statusBatchSize = 100
	// defaultConcurrency bounds the per-entity fan-out within a run.
	defaultConcurrency = 3
	// defaultPostDelay spaces consecutive alert posts.
	defaultPostDelay = 10 * time.Second
)

// Config holds everything a Pipeline needs for its jobs.
type Config struct {
	Client   twitter.Client
	DB       *storage.DB
	Brands   *storage.BrandCache
	Notifier *notify.Notifier

	Concurrency int           // defaults to 3 if <= 0
	PostDelay   time.Duration // defaults to 10s if 0
}

type Pipeline struct {
	client     twitter.Client
	db         *storage.DB
	brands     *storage.BrandCache
	notifier   *notify.Notifier
	classifier *classify.Classifier

	concurrency int
	postDelay   time.Duration

	// Posting order and rate limits are shared global resources, so the
	// dispatch step is always serialized.
	postMu   sync.Mutex
	lastPost time.Time
}

func New(cfg Config) *Pipeline {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	postDelay := cfg.PostDelay
	if postDelay == 0 {
		postDelay = defaultPostDelay
	}
	return &Pipeline{
		client:      cfg.Client,
		db:          cfg.DB,
		brands:      cfg.Brands,
		notifier:    cfg.Notifier,
		classifier:  classify.New(cfg.Client),
		concurrency: concurrency,
		postDelay:   postDelay,
	}
}

// Sweep runs one full pass over all active tracked scammers: fetch new
// tweets since each cursor, classify, dispatch alerts for positive
// verdicts, and advance the cursors.
func (p *Pipeline) Sweep(ctx context.Context) error {
	if err := p.brands.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing brand cache: %w", err)
	}
	scammers, err := p.db.ActiveScammers(ctx)
	if err != nil {
		return fmt.Errorf("loading active scammers: %w", err)
	}
	utils.Log.Infof("Sweeping %d active scammers", len(scammers))

	errs := p.fanOut(ctx, len(scammers), func(ctx context.Context, i int) error {
		return p.sweepScammer(ctx, scammers[i])
	})
	return p.settle(errs)
}

// sweepScammer processes one tracked scammer: cursor fetch, classify,
// dispatch, cursor advance.
func (p *Pipeline) sweepScammer(ctx context.Context, s storage.Scammer) error {
	brandRec, ok := p.brands.ByID(s.BrandID)
	if !ok {
		utils.Log.Warnf("Scammer %s references unknown brand %d, skipping", s.Username, s.BrandID)
		return nil
	}
	brand := brandFromRecord(brandRec)

	user, err := p.client.User(ctx, s.ID)
	if err != nil {
		if twitter.IsSuspended(err) || twitter.IsNotFound(err) {
			utils.Log.Infof("Scammer %s is gone, deactivating", s.Username)
			_, derr := p.db.DeactivateScammers(ctx, []int64{s.ID})
			return derr
		}
		return fmt.Errorf("looking up scammer %s: %w", s.Username, err)
	}

	// Skip idle accounts without fetching full timelines.
	if user.LatestTweetID != 0 && s.SinceID != 0 && user.LatestTweetID <= s.SinceID {
		utils.Log.Debugf("No new tweets from %s, skipping", s.Username)
		return nil
	}

	tweets, err := p.client.Timeline(ctx, s.ID, s.SinceID, classify.TimelineCount)
	if err != nil {
		if twitter.IsBlocked(err) {
			utils.Log.Infof("%s blocked us", s.Username)
			return nil
		}
		if twitter.IsSuspended(err) {
			_, derr := p.db.DeactivateScammers(ctx, []int64{s.ID})
			return derr
		}
		return fmt.Errorf("timeline for %s: %w", s.Username, err)
	}

	cutoff := scanCutoffFor(s)
	maxID := s.SinceID
	for _, t := range tweets {
		if t.ID > maxID {
			maxID = t.ID
		}
	}

	for _, tweet := range sweepWindow(tweets, cutoff) {
		done, err := p.db.HasAlertedTweet(ctx, s.ID, tweet.ID)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		verdict, err := p.classifier.ClassifyTweet(ctx, brand, user, tweet)
		if err != nil {
			if twitter.IsBlocked(err) || twitter.IsSuspended(err) {
				utils.Log.Debugf("Stopping scan of %s: %v", s.Username, err)
				break
			}
			return err
		}
		if !verdict.IsScam || verdict.Victim == nil {
			continue
		}

		if err := p.alertVictim(ctx, brand, user, *verdict.Victim, tweet); err != nil {
			return err
		}
	}

	if maxID > s.SinceID {
		if err := p.db.AdvanceCursor(ctx, s.ID, maxID); err != nil {
			return fmt.Errorf("advancing cursor for %s: %w", s.Username, err)
		}
	}
	return nil
}

// alertVictim runs the ledger gate, the serialized dispatch, and the
// ledger write for one positive verdict.
func (p *Pipeline) alertVictim(ctx context.Context, brand classify.Brand, scammer, victim twitter.User, tweet twitter.Tweet) error {
	alerted, err := p.db.HasAlerted(ctx, scammer.ID, victim.ID)
	if err != nil {
		return err
	}
	if alerted {
		utils.Log.Debugf("Already alerted %s about %s", victim.Username, scammer.Username)
		return nil
	}

	res, err := p.dispatch(ctx, alert.Input{Brand: brand, Scammer: scammer, Victim: victim, Tweet: tweet})
	if err != nil {
		return err
	}

	alertID := res.PostID
	if res.Duplicate {
		// The content was delivered by a prior run; key the record off
		// the offending tweet so the ledger still closes the pair.
		alertID = tweet.ID
	}
	if err := p.db.RecordAlert(ctx, storage.Alert{
		ID:              alertID,
		ScammerID:       scammer.ID,
		VictimID:        victim.ID,
		VictimUsername:  victim.Username,
		VictimCreatedAt: victim.CreatedAt,
		TweetID:         tweet.ID,
		TweetText:       tweet.Text,
		TweetCreatedAt:  tweet.CreatedAt,
	}); err != nil {
		return fmt.Errorf("recording alert for %s: %w", victim.Username, err)
	}

	p.notifier.AlertSent(victim, scammer, alert.TweetURL(scammer.Username, tweet.ID))
	return nil
}

// dispatch serializes posts and enforces the inter-post delay.
func (p *Pipeline) dispatch(ctx context.Context, in alert.Input) (alert.Result, error) {
	p.postMu.Lock()
	defer p.postMu.Unlock()

	if wait := p.postDelay - time.Since(p.lastPost); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return alert.Result{}, ctx.Err()
		}
	}
	res, err := alert.Dispatch(ctx, p.client, in)
	p.lastPost = time.Now()
	return res, err
}

// Discover searches for new impersonators of every brand and starts
// tracking the confirmed ones.
func (p *Pipeline) Discover(ctx context.Context) error {
	if err := p.brands.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing brand cache: %w", err)
	}
	known, err := p.db.ScammerIDs(ctx)
	if err != nil {
		return fmt.Errorf("loading known scammers: %w", err)
	}
	brands := p.brands.All()

	var knownMu sync.Mutex
	errs := p.fanOut(ctx, len(brands), func(ctx context.Context, i int) error {
		return p.discoverBrand(ctx, brands[i], known, &knownMu)
	})
	return p.settle(errs)
}

func (p *Pipeline) discoverBrand(ctx context.Context, rec storage.Brand, known map[int64]bool, knownMu *sync.Mutex) error {
	utils.Log.Infof("Analyzing brand %s", rec.Name)
	brand := brandFromRecord(rec)

	users, err := search.FindAccounts(ctx, p.client, rec.Name)
	if err != nil {
		return fmt.Errorf("searching accounts for %s: %w", rec.Name, err)
	}

	for _, user := range users {
		knownMu.Lock()
		seen := known[user.ID]
		knownMu.Unlock()
		if seen {
			continue
		}

		verdict, err := p.classifier.ClassifyCandidate(ctx, brand, user)
		if err != nil {
			return err
		}
		if !verdict.IsScam {
			continue
		}

		utils.Log.Infof("Found scammer %s (%s)", user.Username, rec.Name)
		if err := p.db.UpsertScammer(ctx, storage.Scammer{
			ID:        user.ID,
			Username:  user.Username,
			BrandID:   rec.ID,
			CreatedAt: user.CreatedAt,
			StartTime: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("saving scammer %s: %w", user.Username, err)
		}
		knownMu.Lock()
		known[user.ID] = true
		knownMu.Unlock()

		p.notifier.ScammerFound(user, rec.Name)
	}

	return p.db.TouchBrandSearched(ctx, rec.ID)
}

// RefreshStatuses bulk-checks tracked scammers and deactivates the ones
// the platform reports as suspended.
func (p *Pipeline) RefreshStatuses(ctx context.Context) error {
	scammers, err := p.db.ActiveScammers(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(scammers); start += statusBatchSize {
		end := start + statusBatchSize
		if end > len(scammers) {
			end = len(scammers)
		}
		ids := make([]int64, 0, end-start)
		for _, s := range scammers[start:end] {
			ids = append(ids, s.ID)
		}

		_, lookupErrs, err := p.client.UsersByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("bulk user lookup: %w", err)
		}

		var suspended []int64
		for _, le := range lookupErrs {
			if strings.Contains(strings.ToLower(le.Detail), "suspended") {
				suspended = append(suspended, le.ResourceID)
			}
		}
		if len(suspended) > 0 {
			n, err := p.db.DeactivateScammers(ctx, suspended)
			if err != nil {
				return err
			}
			utils.Log.Infof("Deactivated %d suspended scammers", n)
		}
	}
	return nil
}

// fanOut runs fn over n items with the configured concurrency bound and
// collects the non-nil errors.
func (p *Pipeline) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	if n == 0 {
		return nil
	}
	indexes := make(chan int, n)

	var mu sync.Mutex
	var errs []error

	var wg sync.WaitGroup
	for w := 0; w < p.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := fn(ctx, i); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return errs
}

// settle applies the run-level error policy: a rate-limit or quota
// error wins and propagates so the runner can pause the whole
// orchestrator; anything else is reported and the run continues to its
// end.
func (p *Pipeline) settle(errs []error) error {
	var reported error
	for _, err := range errs {
		if twitter.IsRateLimited(err) || twitter.IsOverQuota(err) {
			return err
		}
		utils.Log.Errorf("Sweep error: %v", err)
		p.notifier.Error(err)
		if reported == nil {
			reported = err
		}
	}
	return reported
}

func brandFromRecord(b storage.Brand) classify.Brand {
	account := classify.NoAccount()
	if b.HasAccount {
		account = classify.OfficialAccount(b.AccountID, b.Username)
	}
	return classify.Brand{Name: b.Name, Account: account}
}

// scanCutoffFor picks the scan window lower bound: the fixed cutoff, or
// the scammer's tracking start when there is no tweet-id watermark yet.
func scanCutoffFor(s storage.Scammer) time.Time {
	if s.SinceID == 0 && s.StartTime.After(classify.ScanCutoff) {
		return s.StartTime
	}
	return classify.ScanCutoff
}

// sweepWindow filters to reply tweets at/after the cutoff in ascending
// id order, so repeated sweeps evaluate tweets deterministically.
func sweepWindow(tweets []twitter.Tweet, cutoff time.Time) []twitter.Tweet {
	var out []twitter.Tweet
	for _, t := range tweets {
		if t.IsReply() && !t.CreatedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
