package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/shadowlens/shadowlens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatResult renders a check result as a table.
func (f *TableFormatter) FormatResult(result *core.CheckResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: account %s\n", displayName(result), accountStatus(result)))
	if profile := result.Profile; profile != nil && profile.UserID != "" {
		sb.WriteString(fmt.Sprintf("followers: %d, tweets: %d\n",
			profile.FollowersCount, profile.StatusesCount))
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Check", "Status", "Notes"})
	for _, row := range checkRows(result) {
		t.AppendRow(table.Row{row.Check, row.Status, row.Notes})
	}
	t.AppendFooter(table.Row{"", summaryLine(result), ""})
	sb.WriteString(t.Render())

	if len(result.Tweets) > 0 {
		sb.WriteString("\n")
		sb.WriteString(renderTweetTable(result.Tweets))
	}

	return sb.String(), nil
}

func renderTweetTable(tweets []core.TweetAvailability) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tweet", "Available", "Quoted Tweet"})

	for _, tweet := range tweets {
		quoted := ""
		if tweet.QuotedOK != nil {
			quoted = fmt.Sprintf("%s (%s)", tweet.QuotedURL, availabilityLabel(*tweet.QuotedOK))
		}
		t.AppendRow(table.Row{tweet.URL, availabilityLabel(tweet.Available), quoted})
	}

	return t.Render()
}

func availabilityLabel(available bool) string {
	if available {
		return "yes"
	}
	return "NO"
}
