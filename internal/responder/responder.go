// Package responder turns one user message into the assistant's reply:
// moderation on the way in, optional web search augmentation, the completion
// call, and moderation on the way out.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/assistant-go/internal/fault"
	"github.com/comigor/assistant-go/internal/llm"
	"github.com/comigor/assistant-go/internal/logger"
	"github.com/comigor/assistant-go/internal/moderation"
	"github.com/comigor/assistant-go/internal/search"
)

const (
	// RedactionBanner prefixes a reply whose output moderation made replacements.
	RedactionBanner = "⚠️ The AI's response contained unsafe content and was redacted:\n\n"
	// Attribution is appended to replies built from usable search results.
	Attribution = "\n\n🔍 *Information sourced from real-time web search*"
	// ErrorPrefix starts the reply when the completion call fails.
	ErrorPrefix = "Error generating response: "

	defaultMaxTokens = 1000
)

var (
	errNoChoices = errors.New("completion returned no choices")
	errRedacted  = errors.New("model output contained banned terms")
)

// Reply is the outcome of Generate. Text is always the user-visible string.
type Reply struct {
	Text     string
	Rejected bool // input moderation refused the message
	Searched bool // usable search results were embedded in the prompt
	Redacted bool // output moderation replaced at least one term
	Err      error // classifies any outcome other than a clean answer
}

// Deps are the collaborators of a Generator.
type Deps struct {
	LLM       llm.Client
	Filter    *moderation.Filter
	Trigger   *search.Trigger
	Searcher  search.Searcher
	Model     string
	MaxTokens int
}

// Generator produces replies.
type Generator struct {
	llm       llm.Client
	filter    *moderation.Filter
	trigger   *search.Trigger
	searcher  search.Searcher
	model     string
	maxTokens int
}

// New builds a Generator. A nil Filter or Trigger selects the defaults; a nil
// Searcher disables augmentation.
func New(d Deps) *Generator {
	g := &Generator{
		llm:       d.LLM,
		filter:    d.Filter,
		trigger:   d.Trigger,
		searcher:  d.Searcher,
		model:     d.Model,
		maxTokens: d.MaxTokens,
	}
	if g.filter == nil {
		g.filter = moderation.NewFilter(moderation.DefaultPolicy())
	}
	if g.trigger == nil {
		g.trigger = search.NewTrigger(nil)
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	return g
}

// AugmentPrompt embeds search results into the user's question.
func AugmentPrompt(userInput, results string) string {
	return fmt.Sprintf("User question: %s\n\nRecent information from web search:\n%s\n\n"+
		"Please provide a helpful response incorporating this up-to-date information. "+
		"Be concise and focus on the most relevant details.", userInput, results)
}

// Generate answers userInput given the prior conversation in messages. Failures
// are reported in Reply.Text and Reply.Err; Generate never panics on them.
func (g *Generator) Generate(ctx context.Context, userInput string, messages []openai.ChatCompletionMessage) Reply {
	if allowed, reason := g.filter.CheckInput(userInput); !allowed {
		logger.L.Info("input rejected by moderation")
		return Reply{
			Text:     reason,
			Rejected: true,
			Err:      fault.New(fault.ModerationRejection, "moderate", errors.New(reason)),
		}
	}

	prompt := userInput
	searched := false
	if g.searcher != nil && g.trigger.ShouldSearch(userInput) {
		logger.L.Debug("triggering real-time search", "query", userInput)
		res := g.searcher.Search(ctx, userInput)
		if res.Usable() {
			prompt = AugmentPrompt(userInput, res.Text)
			searched = true
		} else {
			logger.L.Debug("search not usable, sending original prompt", "status", res.Status.String(), "error", res.Err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  append(append([]openai.ChatCompletionMessage(nil), messages...), openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}),
		MaxTokens: g.maxTokens,
	}
	resp, err := g.llm.CreateChatCompletion(ctx, req)
	if err == nil && len(resp.Choices) == 0 {
		err = errNoChoices
	}
	if err != nil {
		logger.L.Error("completion failed", "error", err)
		return Reply{Text: ErrorPrefix + err.Error(), Err: fault.External("completion", err)}
	}

	text, violated := g.filter.FilterOutput(strings.TrimSpace(resp.Choices[0].Message.Content))
	out := Reply{Text: text, Searched: searched, Redacted: violated}
	if violated {
		logger.L.Warn("model output redacted")
		out.Text = RedactionBanner + text
		out.Err = fault.New(fault.ModerationRedaction, "moderate", errRedacted)
	}
	if searched {
		out.Text += Attribution
	}
	return out
}
