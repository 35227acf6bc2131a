package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless" // FSM library
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/assistant-go/internal/history"
	"github.com/comigor/assistant-go/internal/imageinfo"
	"github.com/comigor/assistant-go/internal/logger"
	"github.com/comigor/assistant-go/internal/responder"
	"github.com/comigor/assistant-go/internal/voice"
)

// DescribePrompt is the resolved text of an image-only turn.
const DescribePrompt = "Please describe this image"

// FSM States
type FSMState stateless.State

var (
	StateIdle            FSMState = "Idle"
	StateResolvingInput  FSMState = "ResolvingInput"
	StateAnalyzingImage  FSMState = "AnalyzingImage"
	StateGeneratingReply FSMState = "GeneratingReply"
	StateSynthesizing    FSMState = "Synthesizing"
	StateDone            FSMState = "Done" // Terminal
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerStart         FSMTrigger = "Start"
	TriggerAnalyzeImage  FSMTrigger = "AnalyzeImage"
	TriggerGenerateReply FSMTrigger = "GenerateReply"
	TriggerSynthesize    FSMTrigger = "Synthesize"
	TriggerFinish        FSMTrigger = "Finish"
)

var errNoVoice = errors.New("voice bridge not configured")

// Responder answers a resolved user message.
type Responder interface {
	Generate(ctx context.Context, userInput string, messages []openai.ChatCompletionMessage) responder.Reply
}

// ImageInspector describes an image file.
type ImageInspector interface {
	Inspect(path, prompt string) string
}

// VoiceBridge converts between audio files and text.
type VoiceBridge interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Synthesize(ctx context.Context, text string) (string, error)
}

// Deps are the collaborators of an Assistant. Responder is required; a nil
// Images uses imageinfo.New and a nil Voice makes every audio turn fail
// transcription.
type Deps struct {
	Responder    Responder
	Images       ImageInspector
	Voice        VoiceBridge
	SystemPrompt string
}

// Input is what the user submitted for one turn. Empty fields are absent.
type Input struct {
	Text      string
	ImagePath string
	AudioPath string
}

// Output is the result of a turn. Text, ImagePath and AudioPath are always
// empty: a front-end resets its input fields to them.
type Output struct {
	TurnID     string
	History    history.History
	Text       string
	ImagePath  string
	AudioPath  string
	SpeechPath string // synthesized reply, empty when none was produced
}

// Assistant runs conversation turns.
type Assistant struct {
	responder    Responder
	images       ImageInspector
	voice        VoiceBridge
	systemPrompt string
}

// New creates an Assistant.
func New(d Deps) *Assistant {
	a := &Assistant{
		responder:    d.Responder,
		images:       d.Images,
		voice:        d.Voice,
		systemPrompt: d.SystemPrompt,
	}
	if a.images == nil {
		a.images = imageinfo.New()
	}
	return a
}

// Messages builds the completion context: the system prompt followed by the
// user and assistant turns of hist.
func Messages(systemPrompt string, hist history.History) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(hist)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, t := range hist.Conversational() {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

// turn is the per-invocation FSM context.
type turn struct {
	in  Input
	log *slog.Logger

	hist     history.History
	text     string // resolved user text
	messages []openai.ChatCompletionMessage
	speech   string

	analyzeImage  bool
	generateReply bool
	synthesize    bool
}

// next returns the trigger for the first enabled step after the given state.
func (t *turn) next(after FSMState) FSMTrigger {
	steps := []struct {
		state   FSMState
		trigger FSMTrigger
		enabled bool
	}{
		{StateAnalyzingImage, TriggerAnalyzeImage, t.analyzeImage},
		{StateGeneratingReply, TriggerGenerateReply, t.generateReply},
		{StateSynthesizing, TriggerSynthesize, t.synthesize},
	}
	passed := after == StateResolvingInput
	for _, s := range steps {
		if passed && s.enabled {
			return s.trigger
		}
		if s.state == after {
			passed = true
		}
	}
	return TriggerFinish
}

// Turn processes one user submission against hist and returns the updated
// history. hist is not modified. Failures of the external services become
// turn content; Turn itself never fails.
func (a *Assistant) Turn(ctx context.Context, hist history.History, in Input) Output {
	turnID := uuid.NewString()
	t := &turn{in: in, hist: hist, log: logger.ForTurn(turnID)}

	fsm := stateless.NewStateMachine(StateIdle)

	fsm.Configure(StateIdle).
		Permit(TriggerStart, StateResolvingInput)

	// State: ResolvingInput
	// Action: pick the user text from audio, typed text or an image-only
	// submission and append it as a user turn.
	fsm.Configure(StateResolvingInput).
		OnEntry(func(ctx context.Context, args ...any) error {
			t.log.Debug("FSM: Entering StateResolvingInput")
			if !a.resolve(ctx, t) {
				t.log.Debug("empty input, nothing to do")
				return fsm.FireCtx(ctx, TriggerFinish)
			}
			return fsm.FireCtx(ctx, t.next(StateResolvingInput))
		}).
		Permit(TriggerAnalyzeImage, StateAnalyzingImage).
		Permit(TriggerGenerateReply, StateGeneratingReply).
		Permit(TriggerSynthesize, StateSynthesizing).
		Permit(TriggerFinish, StateDone)

	fsm.Configure(StateAnalyzingImage).
		OnEntry(func(ctx context.Context, args ...any) error {
			prompt := t.text
			if strings.TrimSpace(prompt) == "" {
				prompt = DescribePrompt
			}
			t.log.Debug("analyzing image", "path", in.ImagePath)
			analysis := a.images.Inspect(in.ImagePath, prompt)
			t.hist = t.hist.Append(history.Turn{Role: history.RoleAssistant, Content: analysis})
			return fsm.FireCtx(ctx, t.next(StateAnalyzingImage))
		}).
		Permit(TriggerGenerateReply, StateGeneratingReply).
		Permit(TriggerSynthesize, StateSynthesizing).
		Permit(TriggerFinish, StateDone)

	fsm.Configure(StateGeneratingReply).
		OnEntry(func(ctx context.Context, args ...any) error {
			reply := a.responder.Generate(ctx, t.text, t.messages)
			t.log.Info("reply generated",
				"rejected", reply.Rejected, "searched", reply.Searched, "redacted", reply.Redacted, "error", reply.Err)
			t.hist = t.hist.Append(history.Turn{Role: history.RoleAssistant, Content: reply.Text})
			return fsm.FireCtx(ctx, t.next(StateGeneratingReply))
		}).
		Permit(TriggerSynthesize, StateSynthesizing).
		Permit(TriggerFinish, StateDone)

	// State: Synthesizing
	// Action: speak the latest assistant turn. A failure leaves no audio.
	fsm.Configure(StateSynthesizing).
		OnEntry(func(ctx context.Context, args ...any) error {
			last, ok := t.hist.LastAssistant()
			if ok && a.voice != nil {
				path, err := a.voice.Synthesize(ctx, last.Content)
				if err != nil {
					t.log.Error("TTS generation failed", "error", err)
				}
				t.speech = path
			}
			return fsm.FireCtx(ctx, TriggerFinish)
		}).
		Permit(TriggerFinish, StateDone)

	fsm.Configure(StateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			t.log.Debug("FSM: Entering StateDone", "turns", len(t.hist)-len(hist))
			return nil
		})

	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		t.log.Error("turn state machine failed", "error", err)
	}

	return Output{TurnID: turnID, History: t.hist, SpeechPath: t.speech}
}

// resolve sets the user text and appends the user turn. It reports false when
// the submission is empty.
func (a *Assistant) resolve(ctx context.Context, t *turn) bool {
	in := t.in
	switch {
	case in.AudioPath != "":
		t.synthesize = true
		text, err := a.transcribe(ctx, in.AudioPath)
		if err != nil {
			t.log.Error("failed to transcribe audio", "error", err)
			t.hist = t.hist.Append(history.Turn{Role: history.RoleUser, Content: voice.ApologyText})
			t.text = in.Text
			break
		}
		t.text = text
		t.hist = t.hist.Append(history.Turn{Role: history.RoleUser, Content: text})
	case strings.TrimSpace(in.Text) != "":
		t.text = in.Text
		t.hist = t.hist.Append(history.Turn{Role: history.RoleUser, Content: in.Text})
	case in.ImagePath != "":
		t.text = DescribePrompt
		t.hist = t.hist.Append(history.Turn{Role: history.RoleUser, Content: DescribePrompt})
	default:
		return false
	}

	t.messages = Messages(a.systemPrompt, t.hist)
	t.analyzeImage = in.ImagePath != ""
	t.generateReply = strings.TrimSpace(t.text) != "" || in.ImagePath == ""
	return true
}

func (a *Assistant) transcribe(ctx context.Context, path string) (string, error) {
	if a.voice == nil {
		return "", errNoVoice
	}
	return a.voice.Transcribe(ctx, path)
}
