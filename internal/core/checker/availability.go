package checker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shadowlens/shadowlens/internal/core"
)

// quoteLinkPattern matches an embedded status link inside oembed markup. A
// probed tweet that quotes another carries exactly such a link.
var quoteLinkPattern = regexp.MustCompile(`https://(?:x|twitter)\.com/[A-Za-z0-9_]+/status/(\d+)`)

// Prober batch-checks tweet availability through the public oembed surface.
// No credential is needed; the endpoint answers for anyone.
type Prober struct {
	HTTP   *http.Client
	Logger *logging.Logger

	// OembedURL is the oembed endpoint root; Batch bounds concurrent
	// probes within one timeline check.
	OembedURL string
	Batch     int
	Timeout   time.Duration
}

type oembedResponse struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// ProbeBatch checks each collected tweet with bounded concurrency. Results
// keep the input order. Probe failures mark the tweet unavailable rather
// than failing the batch.
func (p *Prober) ProbeBatch(ctx context.Context, tweets []core.TweetRef) []core.TweetAvailability {
	if p == nil || len(tweets) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]core.TweetAvailability, len(tweets))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.batch())
	for i, tweet := range tweets {
		group.Go(func() error {
			results[i] = p.probe(ctx, tweet)
			return nil
		})
	}
	_ = group.Wait()

	return results
}

// probe checks one tweet and, when the tweet quotes another, follows that
// single embedded link. The recursion is bounded to exactly one level.
func (p *Prober) probe(ctx context.Context, tweet core.TweetRef) core.TweetAvailability {
	result := core.TweetAvailability{TweetID: tweet.ID, URL: tweet.URL}

	available, quotedID := p.fetch(ctx, tweet.URL, tweet.ID)
	result.Available = available
	if quotedID == "" {
		return result
	}

	quotedURL := "https://x.com/i/status/" + quotedID
	result.QuotedURL = quotedURL
	quotedOK, _ := p.fetch(ctx, quotedURL, quotedID)
	result.QuotedOK = &quotedOK
	return result
}

// fetch resolves one URL through oembed. It returns availability plus the id
// of an embedded quoted status other than selfID, if any.
func (p *Prober) fetch(ctx context.Context, tweetURL, selfID string) (bool, string) {
	endpoint := p.OembedURL
	if endpoint == "" {
		endpoint = "https://publish.x.com/oembed"
	}

	params := url.Values{}
	params.Set("url", tweetURL)

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return false, ""
	}

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		p.logProbeFailure(tweetURL, err)
		return false, ""
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return false, ""
	}

	var payload oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		p.logProbeFailure(tweetURL, err)
		return false, ""
	}

	// The markup links the probed tweet itself; only a different status id
	// counts as a quote.
	for _, match := range quoteLinkPattern.FindAllStringSubmatch(payload.HTML, -1) {
		if match[1] != selfID {
			return true, match[1]
		}
	}
	return true, ""
}

func (p *Prober) batch() int {
	if p != nil && p.Batch > 0 {
		return p.Batch
	}
	return 5
}

func (p *Prober) timeout() time.Duration {
	if p != nil && p.Timeout > 0 {
		return p.Timeout
	}
	return 10 * time.Second
}

func (p *Prober) logProbeFailure(tweetURL string, err error) {
	if p.Logger == nil {
		return
	}
	p.Logger.Debug("Availability probe failed",
		zap.String("url", tweetURL),
		zap.Error(err))
}
