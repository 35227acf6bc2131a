package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/comigor/assistant-go/internal/fault"
)

const (
	// NoResultsText is returned when the query matched nothing.
	NoResultsText = "🔍 No results found for your query."
	// ErrorPrefix starts every failed-search text.
	ErrorPrefix = "❌ Error during web search: "
)

// Status is the outcome of one query.
type Status int

const (
	StatusOK Status = iota
	StatusNoResults
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoResults:
		return "no_results"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Results is the outcome of a query. Text is always set: the formatted items,
// NoResultsText, or ErrorPrefix followed by the failure.
type Results struct {
	Status Status
	Items  []Item
	Text   string
	Err    error
}

// Usable reports whether the results may be embedded in a prompt.
func (r Results) Usable() bool {
	return r.Status == StatusOK
}

// Searcher queries a web search backend.
type Searcher interface {
	Search(ctx context.Context, query string) Results
}

// NewResults formats items, or returns the no-results outcome when there are none.
func NewResults(items []Item) Results {
	if len(items) == 0 {
		return Results{Status: StatusNoResults, Text: NoResultsText}
	}
	formatted := make([]string, 0, len(items))
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = "No Title"
		}
		formatted = append(formatted, fmt.Sprintf("**%s**\n%s\n🔗 %s", title, it.Snippet, it.Link))
	}
	return Results{Status: StatusOK, Items: items, Text: strings.Join(formatted, "\n\n")}
}

// Failed builds the failure outcome for err. The text names the underlying cause.
func Failed(err error) Results {
	cause := err
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Err != nil {
		cause = fe.Err
	}
	return Results{Status: StatusFailed, Text: ErrorPrefix + cause.Error(), Err: err}
}

// IsErrorText reports whether text is a failed-search text.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, "❌")
}

// IsNoResultsText reports whether text is the no-results sentinel.
func IsNoResultsText(text string) bool {
	return strings.HasPrefix(text, "🔍 No results")
}
