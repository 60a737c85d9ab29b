package vlm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripReasoning removes a thinking model's reasoning block. With a closing
// marker the answer is whatever follows the last one, trimmed, and may be
// empty. A lone opening marker is dropped. It reports whether any marker
// was found.
func StripReasoning(content string) (string, bool) {
	if i := strings.LastIndex(content, thinkClose); i >= 0 {
		return strings.TrimSpace(content[i+len(thinkClose):]), true
	}
	if strings.Contains(content, thinkOpen) {
		return strings.TrimSpace(strings.ReplaceAll(content, thinkOpen, "")), true
	}
	return content, false
}
