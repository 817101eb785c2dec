// Package notify delivers fire-and-forget alerts to an external webhook.
// Every credential ban, deletion, lockdown, and gateway denial goes through
// here; delivery failure is logged and never propagated to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Tags group alerts by channel on the receiving side.
const (
	TagPool     = "pool"
	TagGateway  = "gateway"
	TagLockdown = "lockdown"
	TagAnomaly  = "anomaly"
)

// Notifier posts alert messages to a webhook. A Notifier with an empty URL
// (or a nil Notifier) is a no-op, so callers never need to branch.
type Notifier struct {
	URL     string
	Client  *http.Client
	Logger  *logging.Logger
	Timeout time.Duration
}

type payload struct {
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

// Send delivers text to the webhook in the background.
func (n *Notifier) Send(text, tag string) {
	if n == nil || strings.TrimSpace(n.URL) == "" {
		return
	}
	go n.deliver(text, tag)
}

func (n *Notifier) deliver(text, tag string) {
	body, err := json.Marshal(payload{Content: text, Tag: tag})
	if err != nil {
		n.logFailure(tag, err)
		return
	}

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		n.logFailure(tag, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		n.logFailure(tag, err)
		return
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode >= 300 {
		if n.Logger != nil {
			n.Logger.Warn("Alert webhook rejected message",
				zap.String("tag", tag),
				zap.Int("status", resp.StatusCode))
		}
	}
}

func (n *Notifier) logFailure(tag string, err error) {
	if n.Logger == nil {
		return
	}
	n.Logger.Warn("Alert delivery failed",
		zap.String("tag", tag),
		zap.Error(err))
}
