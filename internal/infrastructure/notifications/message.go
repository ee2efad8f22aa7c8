package notifications

import (
	"fmt"
	"strings"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
)

var sourceTitles = map[entities.AlertSource]string{
	entities.AlertSourceICU:   "ICU admission risk",
	entities.AlertSourceStaff: "Staff workload",
	entities.AlertSourceLoad:  "Emergency load",
	entities.AlertSourceBatch: "Batch forecast",
}

// formatValue renders the metric the alert was raised on
func formatValue(event *entities.AlertEvent) string {
	switch event.Source {
	case entities.AlertSourceICU:
		return fmt.Sprintf("%.1f%%", event.Value*100)
	case entities.AlertSourceBatch:
		return fmt.Sprintf("%.0f rows", event.Value)
	default:
		return fmt.Sprintf("%.0f", event.Value)
	}
}

func sourceTitle(source entities.AlertSource) string {
	if title, ok := sourceTitles[source]; ok {
		return title
	}
	return string(source)
}

// plainMessage formats an alert for channels without markup
func plainMessage(event *entities.AlertEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s alert: %s\n", event.Level, sourceTitle(event.Source))
	fmt.Fprintf(&b, "%s\n", event.Message)
	fmt.Fprintf(&b, "Value: %s\n", formatValue(event))
	fmt.Fprintf(&b, "Raised: %s", event.RaisedAt.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

// markdownMessage formats an alert for Telegram MarkdownV2
func markdownMessage(event *entities.AlertEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s alert: %s*\n\n", escapeMarkdownV2(string(event.Level)), escapeMarkdownV2(sourceTitle(event.Source)))
	fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(event.Message))
	fmt.Fprintf(&b, "Value: *%s*\n", escapeMarkdownV2(formatValue(event)))
	fmt.Fprintf(&b, "📅 %s", escapeMarkdownV2(event.RaisedAt.Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

// escapeMarkdownV2 escapes the characters Telegram MarkdownV2 reserves
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
