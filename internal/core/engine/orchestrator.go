package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/metrics"
)

// Endpoint group names used for per-check status reporting.
const (
	GroupUserLookup = "user-lookup"
	GroupSearch     = "search"
	GroupTimeline   = "timeline"
)

// Platform is the upstream API surface the orchestrator drives. Credential
// selection, rate-limit capture, and the per-status failure policy live
// behind this interface.
type Platform interface {
	Profile(ctx context.Context, screenName string) (core.ProfileLookup, error)
	SearchPresence(ctx context.Context, screenName string) (bool, error)
	SearchSuggestion(ctx context.Context, screenName string) (bool, error)
	Timeline(ctx context.Context, userID, cursor string) (core.TimelinePage, error)
	ReplyVisibility(ctx context.Context, conversationID, tweetID string) (core.ReplyVisibility, error)
}

// AvailabilityProber batch-checks collected tweet URLs.
type AvailabilityProber interface {
	ProbeBatch(ctx context.Context, tweets []core.TweetRef) []core.TweetAvailability
}

// HistoryStore persists finished check records.
type HistoryStore interface {
	SaveCheckResult(ctx context.Context, result core.CheckResult) error
}

// Orchestrator runs the full account check: profile, search presence, search
// suggestion, and the optional timeline and reply sub-checks. Sub-check
// failures degrade to empty partial results; only an unresolvable profile
// fails the whole check.
type Orchestrator struct {
	Platform Platform
	Prober   AvailabilityProber
	History  HistoryStore
	Logger   *logging.Logger

	// Retries bounds attempts per upstream operation; Backoff is the base
	// wait, multiplied by the attempt number.
	Retries int
	Backoff time.Duration

	// TimelineTarget caps how many tweets the timeline walk collects.
	TimelineTarget int

	Clock func() time.Time
	Sleep func(time.Duration)
}

// Check executes the workflow for one screen name. The returned result is
// persisted under a fresh session id before Check returns, regardless of
// which flags were observed.
func (o *Orchestrator) Check(ctx context.Context, req core.CheckRequest) (core.CheckResult, error) {
	if o == nil || o.Platform == nil {
		return core.CheckResult{}, fmt.Errorf("orchestrator is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	screenName := canonicalizeScreenName(req.ScreenName)
	if screenName == "" {
		return core.CheckResult{}, fmt.Errorf("screen name is required")
	}

	started := o.now()
	result := core.CheckResult{
		SessionID:  uuid.New().String(),
		ScreenName: screenName,
		Groups:     make(map[string]core.GroupStatus),
	}

	lookup, err := o.resolveProfile(ctx, screenName, &result)
	if err != nil {
		// Pool exhaustion on the primary fetch is the one hard failure.
		result.CompletedAt = o.now()
		o.persist(ctx, result)
		metrics.RecordCheck("failed", o.now().Sub(started))
		return result, err
	}

	switch {
	case lookup.NotFound:
		result.Flags.NotFound = true
	case lookup.Suspended:
		result.Flags.Suspended = true
	case lookup.Protected:
		result.Flags.Protected = true
	default:
		result.Profile = lookup.Profile
		o.runSearchChecks(ctx, screenName, &result)
		if req.CheckTimeline && lookup.Profile != nil {
			o.runTimelineChecks(ctx, lookup.Profile.UserID, req.CheckReplies, &result)
		}
	}

	result.CompletedAt = o.now()
	o.persist(ctx, result)
	o.recordOutcome(result, o.now().Sub(started))
	return result, nil
}

// resolveProfile retries the primary lookup and maps retry exhaustion to a
// not-found result rather than an error.
func (o *Orchestrator) resolveProfile(ctx context.Context, screenName string, result *core.CheckResult) (core.ProfileLookup, error) {
	var lookup core.ProfileLookup
	err := o.withRetries(ctx, func() error {
		var err error
		lookup, err = o.Platform.Profile(ctx, screenName)
		return err
	})
	if err == nil {
		return lookup, nil
	}

	o.recordGroupFailure(result, GroupUserLookup, err)
	if errors.Is(err, core.ErrPoolExhausted) {
		return core.ProfileLookup{}, err
	}

	o.logDegraded("Profile lookup exhausted retries", screenName, err)
	return core.ProfileLookup{NotFound: true}, nil
}

func (o *Orchestrator) runSearchChecks(ctx context.Context, screenName string, result *core.CheckResult) {
	var present bool
	err := o.withRetries(ctx, func() error {
		var err error
		present, err = o.Platform.SearchPresence(ctx, screenName)
		return err
	})
	if err != nil {
		o.recordGroupFailure(result, GroupSearch, err)
		o.logDegraded("Search presence check degraded", screenName, err)
		return
	}
	result.Flags.SearchBan = !present

	// A search ban implies a suggestion ban without a second call. The
	// implication runs one way only: a clear search result never clears
	// the suggestion check.
	if result.Flags.SearchBan {
		result.Flags.SearchSuggestionBan = true
		return
	}

	var suggested bool
	err = o.withRetries(ctx, func() error {
		var err error
		suggested, err = o.Platform.SearchSuggestion(ctx, screenName)
		return err
	})
	if err != nil {
		o.recordGroupFailure(result, GroupSearch, err)
		o.logDegraded("Search suggestion check degraded", screenName, err)
		return
	}
	result.Flags.SearchSuggestionBan = !suggested
}

func (o *Orchestrator) runTimelineChecks(ctx context.Context, userID string, checkReplies bool, result *core.CheckResult) {
	tweets, err := o.collectTimeline(ctx, userID)
	if err != nil {
		o.recordGroupFailure(result, GroupTimeline, err)
		o.logDegraded("Timeline collection degraded", userID, err)
		return
	}
	if len(tweets) == 0 {
		return
	}

	if o.Prober != nil {
		result.Tweets = o.Prober.ProbeBatch(ctx, tweets)
	}

	if checkReplies {
		o.runReplyCheck(ctx, tweets, result)
	}
}

// collectTimeline pages by cursor until the target count is reached, a page
// yields no new tweets, or the upstream stops returning a cursor.
func (o *Orchestrator) collectTimeline(ctx context.Context, userID string) ([]core.TweetRef, error) {
	target := o.TimelineTarget
	if target <= 0 {
		target = 40
	}

	var collected []core.TweetRef
	cursor := ""
	for len(collected) < target {
		var page core.TimelinePage
		err := o.withRetries(ctx, func() error {
			var err error
			page, err = o.Platform.Timeline(ctx, userID, cursor)
			return err
		})
		if err != nil {
			if len(collected) > 0 {
				// Keep what we have; a partial timeline is still useful.
				return collected, nil
			}
			return nil, err
		}

		if len(page.Tweets) == 0 {
			break
		}
		collected = append(collected, page.Tweets...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	if len(collected) > target {
		collected = collected[:target]
	}
	return collected, nil
}

// runReplyCheck inspects the newest collected reply inside its parent
// conversation: an absent reply means a ghost ban, a reply hidden behind the
// low-quality cut means a reply deboost.
func (o *Orchestrator) runReplyCheck(ctx context.Context, tweets []core.TweetRef, result *core.CheckResult) {
	var reply *core.TweetRef
	for i := range tweets {
		if tweets[i].InReplyToID != "" {
			reply = &tweets[i]
			break
		}
	}
	if reply == nil {
		return
	}

	var visibility core.ReplyVisibility
	err := o.withRetries(ctx, func() error {
		var err error
		visibility, err = o.Platform.ReplyVisibility(ctx, reply.InReplyToID, reply.ID)
		return err
	})
	if err != nil {
		o.recordGroupFailure(result, GroupTimeline, err)
		o.logDegraded("Reply visibility check degraded", reply.ID, err)
		return
	}

	result.Flags.GhostBan = !visibility.Found
	result.Flags.ReplyDeboost = visibility.Deboosted
}

// withRetries runs op up to Retries+1 times with a linearly increasing wait.
// Pool exhaustion aborts immediately; a fresh credential cannot appear by
// waiting within a single check.
func (o *Orchestrator) withRetries(ctx context.Context, op func() error) error {
	retries := o.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := o.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			o.sleep(time.Duration(attempt) * backoff)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = op(); err == nil {
			return nil
		}
		if errors.Is(err, core.ErrPoolExhausted) {
			return err
		}
	}
	return err
}

func (o *Orchestrator) recordGroupFailure(result *core.CheckResult, group string, err error) {
	status := result.Groups[group]
	if errors.Is(err, core.ErrUpstreamRateLimited) || errors.Is(err, core.ErrPoolExhausted) {
		status.RateLimited = true
	} else {
		status.Failed = true
	}
	result.Groups[group] = status
}

func (o *Orchestrator) persist(ctx context.Context, result core.CheckResult) {
	if o.History == nil {
		return
	}
	if err := o.History.SaveCheckResult(ctx, result); err != nil && o.Logger != nil {
		o.Logger.Error("Failed to persist check result",
			zap.String("session_id", result.SessionID),
			zap.String("screen_name", result.ScreenName),
			zap.Error(err))
	}
}

func (o *Orchestrator) recordOutcome(result core.CheckResult, duration time.Duration) {
	flags := result.Flags
	for flag, set := range map[string]bool{
		"not_found":             flags.NotFound,
		"suspended":             flags.Suspended,
		"protected":             flags.Protected,
		"search_ban":            flags.SearchBan,
		"search_suggestion_ban": flags.SearchSuggestionBan,
		"ghost_ban":             flags.GhostBan,
		"reply_deboost":         flags.ReplyDeboost,
	} {
		if set {
			metrics.RecordRestriction(flag)
		}
	}

	outcome := "clear"
	switch {
	case flags.NotFound:
		outcome = "not_found"
	case flags.Suspended:
		outcome = "suspended"
	case flags.Protected:
		outcome = "protected"
	case flags.SearchBan || flags.SearchSuggestionBan || flags.GhostBan || flags.ReplyDeboost:
		outcome = "restricted"
	}
	metrics.RecordCheck(outcome, duration)
}

func (o *Orchestrator) logDegraded(message, subject string, err error) {
	if o.Logger == nil {
		return
	}
	o.Logger.Warn(message,
		zap.String("subject", subject),
		zap.Error(err))
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) sleep(d time.Duration) {
	if o != nil && o.Sleep != nil {
		o.Sleep(d)
		return
	}
	time.Sleep(d)
}

func canonicalizeScreenName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}
