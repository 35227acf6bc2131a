package search

import "strings"

// SamplePrompt is a question that always triggers a search.
const SamplePrompt = "What are the latest technology news today?"

// DefaultKeywords mark an utterance as needing fresh information.
var DefaultKeywords = []string{
	"latest", "current", "recent", "now", "today", "upcoming",
	"new version", "update", "version number", "release date",
	"as of today", "as of now", "currently", "right now", "present",
	"news", "breaking", "live", "score", "weather", "stock", "price",
	"who is", "what is", "when is", "where is",
}

// Trigger decides whether a user message should be augmented with web results.
type Trigger struct {
	keywords []string
}

// NewTrigger builds a Trigger from keywords; an empty list selects DefaultKeywords.
func NewTrigger(keywords []string) *Trigger {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	t := &Trigger{keywords: make([]string, 0, len(keywords))}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			t.keywords = append(t.keywords, k)
		}
	}
	return t
}

// ShouldSearch reports whether text contains any trigger keyword, ignoring case.
// Matching is by substring, so "know" fires on "now".
func (t *Trigger) ShouldSearch(text string) bool {
	lowered := strings.ToLower(text)
	for _, k := range t.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}
