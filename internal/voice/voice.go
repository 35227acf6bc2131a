// Package voice bridges audio files and text through the hosted speech APIs.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/assistant-go/internal/config"
	"github.com/comigor/assistant-go/internal/fault"
	"github.com/comigor/assistant-go/internal/llm"
	"github.com/comigor/assistant-go/internal/logger"
)

// ApologyText stands in for the user turn when a recording cannot be transcribed.
const ApologyText = "Sorry, I couldn't process that audio"

// Bridge transcribes recordings and synthesizes replies.
type Bridge struct {
	client    llm.AudioClient
	sttModel  string
	ttsModel  openai.SpeechModel
	ttsVoice  openai.SpeechVoice
	speechDir string
}

// New returns a Bridge using client for both directions.
func New(client llm.AudioClient, cfg config.VoiceConfig) *Bridge {
	b := &Bridge{
		client:    client,
		sttModel:  cfg.STTModel,
		ttsModel:  openai.SpeechModel(cfg.TTSModel),
		ttsVoice:  openai.SpeechVoice(cfg.TTSVoice),
		speechDir: cfg.SpeechDir,
	}
	if b.sttModel == "" {
		b.sttModel = openai.Whisper1
	}
	if b.ttsModel == "" {
		b.ttsModel = openai.TTSModel1
	}
	if b.ttsVoice == "" {
		b.ttsVoice = openai.VoiceAlloy
	}
	return b
}

// Transcribe returns the trimmed transcript of the recording at path. An empty
// transcript is not an error.
func (b *Bridge) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fault.New(fault.InvalidInput, "transcribe", err)
	}
	logger.L.Debug("transcribing voice input", "path", path, "model", b.sttModel)

	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.sttModel,
		FilePath: path,
	})
	if err != nil {
		return "", fault.External("transcribe", err)
	}
	text := strings.TrimSpace(resp.Text)
	logger.L.Debug("transcribed", "text", text)
	return text, nil
}

// Synthesize renders text as mp3 into a new file in the speech directory and
// returns its path. The caller owns the file.
func (b *Bridge) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fault.New(fault.InvalidInput, "synthesize", errors.New("empty text"))
	}

	resp, err := b.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          b.ttsModel,
		Input:          text,
		Voice:          b.ttsVoice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return "", fault.External("synthesize", err)
	}
	defer resp.Close()

	if b.speechDir != "" {
		if err := os.MkdirAll(b.speechDir, 0o755); err != nil {
			return "", fault.External("synthesize", err)
		}
	}
	f, err := os.CreateTemp(b.speechDir, "reply-*.mp3")
	if err != nil {
		return "", fault.External("synthesize", err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fault.External("synthesize", fmt.Errorf("write %s: %w", f.Name(), err))
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fault.External("synthesize", err)
	}
	return f.Name(), nil
}
