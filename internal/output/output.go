// Package output renders check results for the CLI in table, JSON, and
// markdown form.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shadowlens/shadowlens/internal/core"
	"github.com/shadowlens/shadowlens/internal/core/engine"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a single check result.
type Formatter interface {
	FormatResult(result *core.CheckResult) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatResultList renders multiple check results using the requested format.
func FormatResultList(format Format, results []core.CheckResult) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	formatter := NewFormatter(format)
	rendered := make([]string, 0, len(results))
	for i := range results {
		value, err := formatter.FormatResult(&results[i])
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		rendered = append(rendered, value)
	}

	return strings.Join(rendered, "\n\n"), nil
}

type checkRow struct {
	Check  string
	Status string
	Notes  string
}

// checkRows flattens the restriction flags into display rows, annotating
// each with the state of the endpoint group that produced it.
func checkRows(result *core.CheckResult) []checkRow {
	searchNote := groupNote(result, engine.GroupSearch)
	timelineNote := groupNote(result, engine.GroupTimeline)

	return []checkRow{
		{Check: "Search Ban", Status: flagLabel(result.Flags.SearchBan), Notes: searchNote},
		{Check: "Search Suggestion Ban", Status: flagLabel(result.Flags.SearchSuggestionBan), Notes: searchNote},
		{Check: "Ghost Ban", Status: flagLabel(result.Flags.GhostBan), Notes: timelineNote},
		{Check: "Reply Deboosting", Status: flagLabel(result.Flags.ReplyDeboost), Notes: timelineNote},
	}
}

func flagLabel(detected bool) string {
	if detected {
		return "DETECTED"
	}
	return "clear"
}

// accountStatus describes the account-level outcome that either replaces or
// accompanies the restriction rows.
func accountStatus(result *core.CheckResult) string {
	switch {
	case result.Flags.Suspended:
		return "suspended"
	case result.Flags.NotFound:
		return "not found"
	case result.Flags.Protected:
		return "protected"
	default:
		return "active"
	}
}

func groupNote(result *core.CheckResult, group string) string {
	status, ok := result.Groups[group]
	if !ok {
		return ""
	}
	switch {
	case status.RateLimited:
		return "rate limited"
	case status.Failed:
		return "check failed"
	default:
		return ""
	}
}

func restrictionCount(result *core.CheckResult) int {
	count := 0
	for _, detected := range []bool{
		result.Flags.SearchBan,
		result.Flags.SearchSuggestionBan,
		result.Flags.GhostBan,
		result.Flags.ReplyDeboost,
	} {
		if detected {
			count++
		}
	}
	return count
}

func summaryLine(result *core.CheckResult) string {
	count := restrictionCount(result)
	if count == 0 {
		return "no restrictions detected"
	}
	return fmt.Sprintf("%d restriction(s) detected", count)
}

func displayName(result *core.CheckResult) string {
	return "@" + result.ScreenName
}
