// Package moderation screens user input and model output against a banned-word
// policy. Matching is a case-insensitive substring test with no context
// awareness: paraphrases pass and innocent words containing a banned term
// ("harmful") are caught.
package moderation

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRedactionToken replaces banned terms in model output.
const DefaultRedactionToken = "[REDACTED]"

// DefaultBannedWords is the built-in policy. List order is match precedence.
var DefaultBannedWords = []string{
	"kill", "bomb", "hack", "terror", "attack",
	"suicide", "murder", "violence", "harm", "dangerous",
}

// Policy is the swappable moderation data. A banned term must not overlap
// either edge of the redaction token: with token "[REDACTED]" the term "x["
// would match again across the token's opening bracket on every pass.
type Policy struct {
	BannedWords    []string `yaml:"banned_words"`
	RedactionToken string   `yaml:"redaction_token"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		BannedWords:    append([]string(nil), DefaultBannedWords...),
		RedactionToken: DefaultRedactionToken,
	}
}

// LoadPolicy reads a YAML policy file. A missing redaction token falls back to the default.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if p.RedactionToken == "" {
		p.RedactionToken = DefaultRedactionToken
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Validate reports the first banned term that overlaps an edge of the
// redaction token.
func (p Policy) Validate() error {
	token := p.RedactionToken
	if token == "" {
		token = DefaultRedactionToken
	}
	for _, w := range p.BannedWords {
		if overlapsToken(strings.ToLower(strings.TrimSpace(w)), strings.ToLower(token)) {
			return fmt.Errorf("banned term %q overlaps redaction token %q", w, token)
		}
	}
	return nil
}

// overlapsToken reports whether a proper suffix of term starts token or a
// proper prefix of term ends it.
func overlapsToken(term, token string) bool {
	for i := 1; i < len(term); i++ {
		if strings.HasPrefix(token, term[i:]) || strings.HasSuffix(token, term[:i]) {
			return true
		}
	}
	return false
}

// Filter applies a Policy.
type Filter struct {
	terms   []string // lower-cased, list order
	token   string
	pattern *regexp.Regexp
}

// NewFilter compiles p. Blank terms and terms rejected by Validate are ignored.
func NewFilter(p Policy) *Filter {
	token := p.RedactionToken
	if token == "" {
		token = DefaultRedactionToken
	}

	f := &Filter{token: token}
	// The token is the first alternative so text that was already filtered
	// matches it before any banned term inside it.
	alts := []string{regexp.QuoteMeta(token)}
	for _, w := range p.BannedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || overlapsToken(w, strings.ToLower(token)) {
			continue
		}
		f.terms = append(f.terms, w)
		alts = append(alts, regexp.QuoteMeta(w))
	}
	f.pattern = regexp.MustCompile("(?i)" + strings.Join(alts, "|"))
	return f
}

// Terms returns the active banned terms in precedence order.
func (f *Filter) Terms() []string {
	return append([]string(nil), f.terms...)
}

// CheckInput reports whether text may be sent on. When it may not, reason
// names the first banned term of the policy list found in text.
func (f *Filter) CheckInput(text string) (allowed bool, reason string) {
	lowered := strings.ToLower(text)
	for _, term := range f.terms {
		if strings.Contains(lowered, term) {
			return false, RejectionMessage(term)
		}
	}
	return true, ""
}

// FilterOutput replaces every occurrence of every banned term with the
// redaction token. violated is true iff at least one replacement was made.
func (f *Filter) FilterOutput(text string) (filtered string, violated bool) {
	if len(f.terms) == 0 {
		return text, false
	}
	filtered = f.pattern.ReplaceAllStringFunc(text, func(m string) string {
		if m == f.token {
			return m
		}
		violated = true
		return f.token
	})
	return filtered, violated
}

// RejectionMessage is the user-visible reply for rejected input.
func RejectionMessage(term string) string {
	return fmt.Sprintf("❌ Your input violated the moderation policy. Banned keyword: '%s'", term)
}
