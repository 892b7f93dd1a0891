// Package handoff inspects operator message text for control signals:
// explicit hand-back keywords and the operator mention prefix.
package handoff

import "strings"

// DefaultKeywords are the hand-back commands operators already use.
var DefaultKeywords = []string{"@ai", "/handoff", "/ai"}

// Detector holds the configured control-signal vocabulary.
type Detector struct {
	// Keywords hand control back to AI. Matching is case-insensitive
	// and substring-based, so "@ai thanks" and "please /handoff now"
	// both qualify.
	Keywords []string

	// MentionPrefix marks a message as operator-authored when the text
	// starts with it (case-sensitive).
	MentionPrefix string
}

// NewDetector builds a detector, falling back to DefaultKeywords when
// keywords is empty.
func NewDetector(keywords []string, mentionPrefix string) Detector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return Detector{Keywords: keywords, MentionPrefix: mentionPrefix}
}

// ParseKeywords splits a comma-separated keyword list, trimming
// whitespace and dropping blank entries.
func ParseKeywords(csv string) []string {
	var out []string
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// IsHandoff reports whether text contains any configured hand-back
// keyword.
func (d Detector) IsHandoff(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, keyword := range d.Keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// OperatorMessage reports whether text starts with the mention prefix,
// and if so returns the text with the prefix and any following
// whitespace removed.
func (d Detector) OperatorMessage(text string) (bool, string) {
	if d.MentionPrefix == "" || !strings.HasPrefix(text, d.MentionPrefix) {
		return false, text
	}
	return true, strings.TrimLeft(text[len(d.MentionPrefix):], " \t")
}
