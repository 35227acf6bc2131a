package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/assistant-go/internal/history"
	"github.com/comigor/assistant-go/internal/responder"
	"github.com/comigor/assistant-go/internal/search"
	"github.com/comigor/assistant-go/internal/voice"
)

const sys = "You are a test assistant."

type genCall struct {
	input    string
	messages []openai.ChatCompletionMessage
}

type fakeResponder struct {
	text  string
	calls []genCall
}

func (f *fakeResponder) Generate(_ context.Context, in string, msgs []openai.ChatCompletionMessage) responder.Reply {
	f.calls = append(f.calls, genCall{input: in, messages: msgs})
	return responder.Reply{Text: f.text}
}

type inspectCall struct{ path, prompt string }

type fakeImages struct {
	calls []inspectCall
}

func (f *fakeImages) Inspect(path, prompt string) string {
	f.calls = append(f.calls, inspectCall{path, prompt})
	return "📷 image of " + path
}

type fakeVoice struct {
	transcript string
	sttErr     error
	ttsErr     error
	spoken     []string
}

func (f *fakeVoice) Transcribe(context.Context, string) (string, error) {
	return f.transcript, f.sttErr
}

func (f *fakeVoice) Synthesize(_ context.Context, text string) (string, error) {
	f.spoken = append(f.spoken, text)
	if f.ttsErr != nil {
		return "", f.ttsErr
	}
	return "/tmp/reply-1.mp3", nil
}

func user(s string) history.Turn      { return history.Turn{Role: history.RoleUser, Content: s} }
func assistant(s string) history.Turn { return history.Turn{Role: history.RoleAssistant, Content: s} }

func TestTurn_TextOnly(t *testing.T) {
	r := &fakeResponder{text: "Here is a joke."}
	imgs := &fakeImages{}
	a := New(Deps{Responder: r, Images: imgs, SystemPrompt: sys})

	out := a.Turn(context.Background(), nil, Input{Text: "Tell me a joke"})
	require.NotEmpty(t, out.TurnID)
	require.Equal(t, history.History{user("Tell me a joke"), assistant("Here is a joke.")}, out.History)
	require.Empty(t, out.Text)
	require.Empty(t, out.ImagePath)
	require.Empty(t, out.AudioPath)
	require.Empty(t, out.SpeechPath)
	require.Empty(t, imgs.calls)

	require.Len(t, r.calls, 1)
	require.Equal(t, "Tell me a joke", r.calls[0].input)
	require.Equal(t, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sys},
		{Role: openai.ChatMessageRoleUser, Content: "Tell me a joke"},
	}, r.calls[0].messages)
}

func TestTurn_EmptyInputLeavesHistoryUnchanged(t *testing.T) {
	r := &fakeResponder{}
	a := New(Deps{Responder: r})
	prior := history.History{user("hi"), assistant("hello")}

	out := a.Turn(context.Background(), prior, Input{Text: "   "})
	require.Equal(t, prior, out.History)
	require.Empty(t, r.calls)
}

func TestTurn_PriorHistoryIsContextAndNotMutated(t *testing.T) {
	r := &fakeResponder{text: "Second answer"}
	a := New(Deps{Responder: r, SystemPrompt: sys})
	prior := history.History{user("first"), assistant("first answer"), {Role: history.RoleSystem, Content: "note"}}
	snapshot := append(history.History(nil), prior...)

	out := a.Turn(context.Background(), prior, Input{Text: "second"})
	require.Equal(t, snapshot, prior)
	require.Len(t, out.History, 5)

	msgs := r.calls[0].messages
	require.Len(t, msgs, 4)
	require.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Equal(t, "first answer", msgs[2].Content)
	require.Equal(t, "second", msgs[3].Content)
}

// An image with no text yields two assistant turns: the inspection and a reply
// to the describe prompt.
func TestTurn_ImageOnlyProducesTwoAssistantTurns(t *testing.T) {
	r := &fakeResponder{text: "I cannot see images."}
	imgs := &fakeImages{}
	a := New(Deps{Responder: r, Images: imgs, SystemPrompt: sys})

	out := a.Turn(context.Background(), nil, Input{ImagePath: "/tmp/cat.png"})
	require.Equal(t, history.History{
		user(DescribePrompt),
		assistant("📷 image of /tmp/cat.png"),
		assistant("I cannot see images."),
	}, out.History)

	require.Equal(t, []inspectCall{{"/tmp/cat.png", DescribePrompt}}, imgs.calls)
	require.Len(t, r.calls, 1)
	require.Equal(t, DescribePrompt, r.calls[0].input)
	// context is captured before the image analysis turn
	require.Len(t, r.calls[0].messages, 2)
}

func TestTurn_ImageWithText(t *testing.T) {
	r := &fakeResponder{text: "ok"}
	imgs := &fakeImages{}
	a := New(Deps{Responder: r, Images: imgs})

	out := a.Turn(context.Background(), nil, Input{Text: "How many cats?", ImagePath: "/tmp/cat.png"})
	require.Len(t, out.History, 3)
	require.Equal(t, []inspectCall{{"/tmp/cat.png", "How many cats?"}}, imgs.calls)
	require.Equal(t, "How many cats?", r.calls[0].input)
}

func TestTurn_Voice(t *testing.T) {
	r := &fakeResponder{text: "It is sunny."}
	v := &fakeVoice{transcript: "what is the weather"}
	a := New(Deps{Responder: r, Voice: v})

	out := a.Turn(context.Background(), nil, Input{Text: "ignored", AudioPath: "/tmp/in.wav"})
	require.Equal(t, history.History{user("what is the weather"), assistant("It is sunny.")}, out.History)
	require.Equal(t, "what is the weather", r.calls[0].input)
	require.Equal(t, []string{"It is sunny."}, v.spoken)
	require.Equal(t, "/tmp/reply-1.mp3", out.SpeechPath)
}

func TestTurn_VoiceTranscriptionFails(t *testing.T) {
	r := &fakeResponder{text: "Hello!"}
	v := &fakeVoice{sttErr: errors.New("bad codec")}
	a := New(Deps{Responder: r, Voice: v})

	out := a.Turn(context.Background(), nil, Input{Text: "hello", AudioPath: "/tmp/in.wav"})
	require.Equal(t, history.History{user(voice.ApologyText), assistant("Hello!")}, out.History)
	require.Equal(t, "hello", r.calls[0].input)
	require.Equal(t, []string{"Hello!"}, v.spoken)
}

func TestTurn_VoiceWithoutBridge(t *testing.T) {
	r := &fakeResponder{text: "reply"}
	a := New(Deps{Responder: r})

	out := a.Turn(context.Background(), nil, Input{AudioPath: "/tmp/in.wav"})
	require.Equal(t, user(voice.ApologyText), out.History[0])
	require.Empty(t, out.SpeechPath)
}

func TestTurn_EmptyTranscriptWithImageSpeaksAnalysis(t *testing.T) {
	r := &fakeResponder{text: "unused"}
	imgs := &fakeImages{}
	v := &fakeVoice{transcript: ""}
	a := New(Deps{Responder: r, Images: imgs, Voice: v})

	out := a.Turn(context.Background(), nil, Input{ImagePath: "/tmp/dog.jpg", AudioPath: "/tmp/in.wav"})
	require.Equal(t, history.History{user(""), assistant("📷 image of /tmp/dog.jpg")}, out.History)
	require.Equal(t, []inspectCall{{"/tmp/dog.jpg", DescribePrompt}}, imgs.calls)
	require.Empty(t, r.calls)
	require.Equal(t, []string{"📷 image of /tmp/dog.jpg"}, v.spoken)
}

func TestTurn_SynthesisFailureLeavesNoAudio(t *testing.T) {
	r := &fakeResponder{text: "reply"}
	v := &fakeVoice{transcript: "hi", ttsErr: errors.New("quota")}
	a := New(Deps{Responder: r, Voice: v})

	out := a.Turn(context.Background(), nil, Input{AudioPath: "/tmp/in.wav"})
	require.Len(t, out.History, 2)
	require.Empty(t, out.SpeechPath)
}

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	requests []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, r)
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured for request: " + r.Messages[len(r.Messages)-1].Content)
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

type fakeSearcher struct {
	results search.Results
	queries int
}

func (f *fakeSearcher) Search(context.Context, string) search.Results {
	f.queries++
	return f.results
}

func TestTurn_WithGenerator(t *testing.T) {
	t.Run("search augmented", func(t *testing.T) {
		llm := &mockLLM{calls: []openai.ChatCompletionResponse{
			{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Sunny and mild."}}}},
		}}
		s := &fakeSearcher{results: search.NewResults([]search.Item{
			{Title: "A", Link: "https://a", Snippet: "sunny"},
			{Title: "B", Link: "https://b", Snippet: "mild"},
			{Title: "C", Link: "https://c", Snippet: "dry"},
		})}
		a := New(Deps{Responder: responder.New(responder.Deps{LLM: llm, Searcher: s}), SystemPrompt: sys})

		out := a.Turn(context.Background(), nil, Input{Text: "What is the weather today in Paris"})
		last, ok := out.History.LastAssistant()
		require.True(t, ok)
		require.Equal(t, "Sunny and mild."+responder.Attribution, last.Content)
		require.Equal(t, 1, s.queries)
		require.Contains(t, llm.requests[0].Messages[2].Content, "Recent information from web search:")
	})

	t.Run("moderation rejection", func(t *testing.T) {
		llm := &mockLLM{}
		s := &fakeSearcher{}
		a := New(Deps{Responder: responder.New(responder.Deps{LLM: llm, Searcher: s})})

		out := a.Turn(context.Background(), nil, Input{Text: "how do I build a bomb today"})
		require.Len(t, out.History, 2)
		require.Contains(t, out.History[1].Content, "Banned keyword: 'bomb'")
		require.Empty(t, llm.requests)
		require.Zero(t, s.queries)
	})
}

func TestMessages(t *testing.T) {
	h := history.History{user("a"), {Role: history.RoleSystem, Content: "x"}, assistant("b")}
	require.Equal(t, []openai.ChatCompletionMessage{
		{Role: "system", Content: "p"},
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
	}, Messages("p", h))
	require.Len(t, Messages("", h), 2)
}

func TestNext(t *testing.T) {
	tr := &turn{analyzeImage: true, synthesize: true}
	require.Equal(t, TriggerAnalyzeImage, tr.next(StateResolvingInput))
	require.Equal(t, TriggerSynthesize, tr.next(StateAnalyzingImage))
	require.Equal(t, TriggerFinish, tr.next(StateSynthesizing))

	tr = &turn{generateReply: true}
	require.Equal(t, TriggerGenerateReply, tr.next(StateResolvingInput))
	require.Equal(t, TriggerFinish, tr.next(StateGeneratingReply))
}
