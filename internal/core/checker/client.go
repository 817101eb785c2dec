// Package checker talks to the upstream platform API. It owns credential
// selection, rate-limit header capture, and the per-status failure policy;
// the orchestrator above it only sees classified errors.
package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
	"github.com/shadowlens/shadowlens/internal/notify"
)

// Upstream endpoint names. Endpoints sharing a quota bucket belong to the
// same group for rate-limit bookkeeping.
const (
	EndpointUserByScreenName = "UserByScreenName"
	EndpointSearchTimeline   = "SearchTimeline"
	EndpointSearchTypeahead  = "SearchTypeahead"
	EndpointUserTweets       = "UserTweets"
	EndpointTweetDetail      = "TweetDetail"
)

// endpointGroups maps each endpoint to every member of its quota bucket.
var endpointGroups = map[string][]string{
	EndpointUserByScreenName: {EndpointUserByScreenName},
	EndpointSearchTimeline:   {EndpointSearchTimeline, EndpointSearchTypeahead},
	EndpointSearchTypeahead:  {EndpointSearchTimeline, EndpointSearchTypeahead},
	EndpointUserTweets:       {EndpointUserTweets, EndpointTweetDetail},
	EndpointTweetDetail:      {EndpointUserTweets, EndpointTweetDetail},
}

// Client implements the orchestrator's Platform interface against the real
// upstream API.
type Client struct {
	HTTP    *http.Client
	Pool    *engine.CredentialPool
	Tracker *engine.RateLimitTracker

	Notifier *notify.Notifier
	Logger   *logging.Logger

	// BaseURL is the API root; StatusBaseURL is the public site root used
	// to build tweet URLs.
	BaseURL       string
	StatusBaseURL string

	Timeout time.Duration
}

// getJSON performs one credential-backed call against an endpoint and
// decodes the response into out. A decode failure counts as an operational
// failure for the credential that produced it.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.getJSONValidated(ctx, endpoint, params, out, nil)
}

// getJSONValidated is getJSON with an optional post-decode check: a validate
// failure is treated exactly like a decode failure, so endpoint-specific
// payload shapes (a user lookup without a result, say) ban the credential
// and stay retryable.
func (c *Client) getJSONValidated(ctx context.Context, endpoint string, params url.Values, out any, validate func() error) error {
	if c == nil || c.Pool == nil {
		return fmt.Errorf("checker client is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if allowed, retryAt := c.Tracker.CanProceed(endpointGroups[endpoint]...); !allowed {
		return fmt.Errorf("%s quota exhausted until %s: %w",
			endpoint, retryAt.UTC().Format(time.RFC3339), core.ErrUpstreamRateLimited)
	}

	cred, err := c.Pool.Select(ctx)
	if err != nil {
		return err
	}

	requestURL := c.BaseURL + "/" + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	// Pool reports must land even when the call context has already expired;
	// a credential that timed out still has to be banned.
	reportCtx := context.WithoutCancel(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		// Timeouts and transport failures ban the credential temporarily;
		// the orchestrator retries with the next one.
		c.reportOperational(reportCtx, endpoint, cred)
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	c.captureRateLimit(endpoint, resp)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resetSec := headerInt64(resp, "x-rate-limit-reset")
		if resetSec == 0 {
			resetSec = time.Now().Add(15 * time.Minute).Unix()
		}
		if reportErr := c.Pool.ReportRateLimited(reportCtx, cred, resetSec); reportErr != nil {
			c.logReportFailure(endpoint, "rate limited", reportErr)
		}
		return fmt.Errorf("%s returned 429: %w", endpoint, core.ErrUpstreamRateLimited)

	case resp.StatusCode == http.StatusUnauthorized:
		if reportErr := c.Pool.ReportAuthInvalid(reportCtx, cred); reportErr != nil {
			c.logReportFailure(endpoint, "auth invalid", reportErr)
		}
		return fmt.Errorf("%s returned 401: %w", endpoint, core.ErrUpstreamAuthInvalid)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.Notifier.Send(
			fmt.Sprintf("upstream %s returned unexpected status %d", endpoint, resp.StatusCode),
			notify.TagAnomaly)
		return fmt.Errorf("%s returned unexpected status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.reportOperational(reportCtx, endpoint, cred)
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.reportOperational(reportCtx, endpoint, cred)
		if c.Logger != nil {
			c.Logger.Warn("Upstream payload failed to decode",
				zap.String("endpoint", endpoint),
				zap.Error(err))
		}
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if validate != nil {
		if err := validate(); err != nil {
			c.reportOperational(reportCtx, endpoint, cred)
			return fmt.Errorf("%s payload rejected: %w", endpoint, err)
		}
	}
	return nil
}

// reportOperational applies the operational-failure ban and logs, rather
// than swallows, a failed ban write.
func (c *Client) reportOperational(ctx context.Context, endpoint string, cred core.Credential) {
	if err := c.Pool.ReportOperational(ctx, cred); err != nil {
		c.logReportFailure(endpoint, "operational", err)
	}
}

func (c *Client) logReportFailure(endpoint, kind string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error("Credential failure report did not persist",
		zap.String("endpoint", endpoint),
		zap.String("kind", kind),
		zap.Error(err))
}

// captureRateLimit feeds the latest quota headers into the tracker.
func (c *Client) captureRateLimit(endpoint string, resp *http.Response) {
	if c.Tracker == nil || resp.Header.Get("x-rate-limit-remaining") == "" {
		return
	}
	remaining := int(headerInt64(resp, "x-rate-limit-remaining"))
	resetSec := headerInt64(resp, "x-rate-limit-reset")
	c.Tracker.Update(endpoint, remaining, resetSec*1000)
}

func headerInt64(resp *http.Response, name string) int64 {
	value, err := strconv.ParseInt(resp.Header.Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) timeout() time.Duration {
	if c != nil && c.Timeout > 0 {
		return c.Timeout
	}
	return 20 * time.Second
}

func (c *Client) statusBaseURL() string {
	if c != nil && c.StatusBaseURL != "" {
		return c.StatusBaseURL
	}
	return "https://x.com"
}
