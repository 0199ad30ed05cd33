package vectordb

import (
	"fmt"
	"strings"
)

// FormatMatches renders query matches as human-readable text.
func FormatMatches(matches []Match) string {
	if len(matches) == 0 {
		return "No similar transactions found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d similar transaction(s):\n\n", len(matches)))

	for i, m := range matches {
		md := m.Document.Metadata
		sb.WriteString(fmt.Sprintf("%d. [%s] %s (similarity: %.4f)\n", i+1, md.Category, m.Document.Content, m.Similarity))

		var details []string
		if md.Amount != "" {
			details = append(details, "amount "+md.Amount)
		}
		if md.Direction != "" {
			details = append(details, md.Direction)
		}
		if md.PaymentMethod != "" {
			details = append(details, md.PaymentMethod)
		}
		if md.PayTime != "" {
			details = append(details, md.PayTime)
		}
		if len(details) > 0 {
			sb.WriteString("   " + strings.Join(details, ", ") + "\n")
		}
	}

	return sb.String()
}
