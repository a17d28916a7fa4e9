package adapters

import "strings"

// MergeLabels combines issue labels with per-call option labels, dropping
// empties and duplicates while preserving first-seen order.
func MergeLabels(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, l := range append(append([]string{}, a...), b...) {
		if l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// LastLine returns the final non-empty line of CLI output; gh and glab print
// the created issue URL there.
func LastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
