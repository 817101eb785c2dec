package core

import (
	"errors"
	"time"
)

// ListType identifies an access-control list.
type ListType string

const (
	ListTypeBlacklist ListType = "blacklist"
	ListTypeWhitelist ListType = "whitelist"
)

// Valid reports whether the list type is one of the two known lists.
func (t ListType) Valid() bool {
	return t == ListTypeBlacklist || t == ListTypeWhitelist
}

// Credential is one rotating upstream auth token. ResetAt is the earliest
// instant at which the credential may be selected again.
type Credential struct {
	ID         int64     `json:"id"`
	Token      string    `json:"-"`
	Account    string    `json:"account"`
	LastUsedAt time.Time `json:"last_used_at"`
	ResetAt    time.Time `json:"reset_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Eligible reports whether the credential may be selected at the given time.
func (c Credential) Eligible(now time.Time) bool {
	return !c.ResetAt.After(now)
}

// AccessSettings is the singleton pair of enforcement flags.
type AccessSettings struct {
	BlacklistEnabled bool `json:"blacklist_enabled"`
	WhitelistEnabled bool `json:"whitelist_enabled"`
}

// AccessEntry is a single IP on one of the two lists.
type AccessEntry struct {
	IP        string    `json:"ip"`
	ListType  ListType  `json:"list_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Challenge is an issued proof-of-work puzzle, valid once within its window.
type Challenge struct {
	ID       string    `json:"challenge_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// RestrictionFlags records which visibility restrictions a check observed.
type RestrictionFlags struct {
	NotFound            bool `json:"not_found"`
	Suspended           bool `json:"suspended"`
	Protected           bool `json:"protected"`
	SearchBan           bool `json:"search_ban"`
	SearchSuggestionBan bool `json:"search_suggestion_ban"`
	GhostBan            bool `json:"ghost_ban"`
	ReplyDeboost        bool `json:"reply_deboost"`
}

// GroupStatus reports per-endpoint-group trouble encountered during a check.
type GroupStatus struct {
	RateLimited bool `json:"rate_limited"`
	Failed      bool `json:"failed"`
}

// Profile is the resolved upstream account snapshot attached to a result.
type Profile struct {
	UserID         string `json:"user_id,omitempty"`
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name,omitempty"`
	FollowersCount int    `json:"followers_count,omitempty"`
	StatusesCount  int    `json:"statuses_count,omitempty"`
	Sensitive      bool   `json:"possibly_sensitive,omitempty"`
}

// TweetAvailability is the outcome of probing one collected tweet.
type TweetAvailability struct {
	TweetID   string `json:"tweet_id"`
	URL       string `json:"url"`
	Available bool   `json:"available"`
	QuotedURL string `json:"quoted_url,omitempty"`
	QuotedOK  *bool  `json:"quoted_available,omitempty"`
}

// CheckResult is the immutable per-request record. It is produced once per
// check and persisted as history; it is never mutated after creation.
type CheckResult struct {
	SessionID   string                 `json:"session_id"`
	ScreenName  string                 `json:"screen_name"`
	Flags       RestrictionFlags       `json:"flags"`
	Profile     *Profile               `json:"profile,omitempty"`
	Tweets      []TweetAvailability    `json:"tweets,omitempty"`
	Groups      map[string]GroupStatus `json:"groups,omitempty"`
	CompletedAt time.Time              `json:"completed_at"`
}

// CheckRequest is the inbound check operation. IP arrives already decrypted
// by the routing layer; ConnIP is the connection-level address for auditing.
type CheckRequest struct {
	ScreenName    string
	IP            string
	ConnIP        string
	CheckTimeline bool
	CheckReplies  bool
}

// Sentinel errors shared across the core packages.
var (
	// ErrPoolExhausted means no credential is currently eligible.
	ErrPoolExhausted = errors.New("credential pool exhausted")

	// ErrAccessDenied is the single opaque rejection for gateway and
	// proof-of-work failures; callers must not learn which check failed.
	ErrAccessDenied = errors.New("access denied")

	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrNonceInvalid      = errors.New("nonce does not solve challenge")

	// ErrUpstreamRateLimited and ErrUpstreamAuthInvalid classify upstream
	// failures for the credential pool's failure policy.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	ErrUpstreamAuthInvalid = errors.New("upstream auth invalid")
)
