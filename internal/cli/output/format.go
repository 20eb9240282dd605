package output

import (
	"fmt"
	"math"
	"strings"
)

// FormatHeader returns a markdown header of the given level.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text + "\n"
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCodeBlock wraps content in a fenced code block.
func FormatCodeBlock(lang, content string) string {
	return "```" + lang + "\n" + strings.TrimRight(content, "\n") + "\n```\n"
}

// FormatFloat renders a number with the given precision; NaN renders as a
// dash so empty groups stay visible in tables.
func FormatFloat(v float64, precision int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.*f", precision, v)
}
