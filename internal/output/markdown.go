package output

import (
	"fmt"
	"strings"

	"github.com/shadowlens/shadowlens/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatResult renders a check result as Markdown.
func (f *MarkdownFormatter) FormatResult(result *core.CheckResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s shadowban check\n\n", escapeMarkdownCell(displayName(result))))
	sb.WriteString(fmt.Sprintf("Account: %s\n\n", accountStatus(result)))

	sb.WriteString("| Check | Status | Notes |\n")
	sb.WriteString("|-------|--------|-------|\n")
	for _, row := range checkRows(result) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(row.Check),
			escapeMarkdownCell(row.Status),
			escapeMarkdownCell(row.Notes),
		))
	}
	sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(result)))

	if len(result.Tweets) > 0 {
		sb.WriteString("\n### Tweet availability\n\n")
		for _, tweet := range result.Tweets {
			line := fmt.Sprintf("- %s: %s", tweet.URL, availabilityLabel(tweet.Available))
			if tweet.QuotedOK != nil {
				line += fmt.Sprintf(" (quotes %s: %s)", tweet.QuotedURL, availabilityLabel(*tweet.QuotedOK))
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
