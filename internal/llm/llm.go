package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/assistant-go/internal/config"
)

// NewClient creates an OpenAI-compatible client for the chat-completion API.
func NewClient(cfg config.LLMConfig) *openai.Client {
	return newClient(cfg.APIKey, cfg.BaseURL)
}

// NewAudioClient creates an OpenAI-compatible client for the transcription and speech endpoints.
func NewAudioClient(cfg config.VoiceConfig) *openai.Client {
	return newClient(cfg.APIKey, cfg.BaseURL)
}

func newClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}
