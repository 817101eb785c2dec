package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleResult() *core.CheckResult {
	quotedOK := true
	return &core.CheckResult{
		SessionID:  "s-1",
		ScreenName: "jack",
		Flags: core.RestrictionFlags{
			SearchBan:           true,
			SearchSuggestionBan: true,
		},
		Profile: &core.Profile{
			UserID:         "7",
			ScreenName:     "jack",
			FollowersCount: 42,
			StatusesCount:  100,
		},
		Tweets: []core.TweetAvailability{
			{
				TweetID:   "1",
				URL:       "https://x.com/jack/status/1",
				Available: true,
				QuotedURL: "https://x.com/i/status/50",
				QuotedOK:  &quotedOK,
			},
		},
	}
}

func TestFormatters(t *testing.T) {
	result := sampleResult()

	tableRendered, err := NewFormatter(FormatTable).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "@jack: account active")
	require.Contains(t, tableRendered, "Search Ban")
	require.Contains(t, tableRendered, "DETECTED")
	require.Contains(t, tableRendered, "2 restriction(s) detected")
	require.Contains(t, tableRendered, "https://x.com/jack/status/1")

	jsonRendered, err := NewFormatter(FormatJSON).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"screen_name\": \"jack\"")
	require.Contains(t, jsonRendered, "\"search_ban\": true")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatResult(result)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "## @jack shadowban check")
	require.Contains(t, markdownRendered, "| Check | Status | Notes |")
	require.Contains(t, markdownRendered, "quotes https://x.com/i/status/50: yes")
}

func TestCheckRowsCarryGroupTrouble(t *testing.T) {
	result := &core.CheckResult{
		ScreenName: "jack",
		Groups: map[string]core.GroupStatus{
			engine.GroupSearch:   {RateLimited: true},
			engine.GroupTimeline: {Failed: true},
		},
	}

	rows := checkRows(result)
	require.Len(t, rows, 4)
	require.Equal(t, "rate limited", rows[0].Notes)
	require.Equal(t, "rate limited", rows[1].Notes)
	require.Equal(t, "check failed", rows[2].Notes)
	require.Equal(t, "check failed", rows[3].Notes)
}

func TestAccountStatusPrecedence(t *testing.T) {
	require.Equal(t, "suspended", accountStatus(&core.CheckResult{
		Flags: core.RestrictionFlags{Suspended: true, NotFound: true},
	}))
	require.Equal(t, "not found", accountStatus(&core.CheckResult{
		Flags: core.RestrictionFlags{NotFound: true},
	}))
	require.Equal(t, "protected", accountStatus(&core.CheckResult{
		Flags: core.RestrictionFlags{Protected: true},
	}))
	require.Equal(t, "active", accountStatus(&core.CheckResult{}))
}

func TestFormatResultListJSON(t *testing.T) {
	rendered, err := FormatResultList(FormatJSON, []core.CheckResult{*sampleResult()})
	require.NoError(t, err)
	require.Contains(t, rendered, "\"session_id\": \"s-1\"")
}

func TestFormatResultListNonJSON(t *testing.T) {
	rendered, err := FormatResultList(FormatMarkdown, []core.CheckResult{*sampleResult()})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## "))
}

func TestMarkdownEscaping(t *testing.T) {
	require.Equal(t, "foo\\|bar", escapeMarkdownCell("foo|bar"))
}
