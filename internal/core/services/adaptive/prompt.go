package adaptive

import "strings"

const (
	preferencesHeader = "=== LEARNED USER PREFERENCES ==="
	preferencesFooter = "=== END LEARNED USER PREFERENCES ==="
)

// BuildAdaptiveSystemPrompt appends the learned preferences to base.
// It returns base unchanged when the insight carries no guidance.
func BuildAdaptiveSystemPrompt(base string, insight *Insight) string {
	if !insight.HasGuidance() {
		return base
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(base, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(preferencesHeader)
	sb.WriteByte('\n')

	writeSection(&sb, "The user loves", insight.Loves)
	writeSection(&sb, "The user dislikes (avoid these)", insight.Hates)
	writeSection(&sb, "Apply these adjustments", insight.Suggestions)

	sb.WriteString(preferencesFooter)
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title)
	sb.WriteString(":\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteByte('\n')
	}
}
