package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultSystemPrompt is prepended to every completion request. It is never stored in history.
const DefaultSystemPrompt = `You are a helpful, intelligent assistant with real-time web search capabilities.
Follow these guidelines:
1. Provide accurate and helpful information
2. Be concise and clear in your responses
3. Use web search results when real-time information is needed
4. Never produce harmful, unethical, or dangerous content
5. If you cannot answer a question appropriately, explain why politely`

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Search     SearchConfig     `mapstructure:"search"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Server     ServerConfig     `mapstructure:"server"`
	History    HistoryConfig    `mapstructure:"history"`
	Log        LogConfig        `mapstructure:"log"`
}

// LLMConfig holds the chat-completion configuration
type LLMConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// SearchConfig holds the Google Custom Search configuration
type SearchConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	EngineID   string   `mapstructure:"engine_id"`
	Endpoint   string   `mapstructure:"endpoint"` // empty = Google's default
	NumResults int      `mapstructure:"num_results"`
	Keywords   []string `mapstructure:"keywords"` // empty = built-in trigger list
}

// VoiceConfig holds the speech-to-text and text-to-speech configuration
type VoiceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	STTModel  string `mapstructure:"stt_model"`
	TTSModel  string `mapstructure:"tts_model"`
	TTSVoice  string `mapstructure:"tts_voice"`
	SpeechDir string `mapstructure:"speech_dir"`
}

// ModerationConfig selects the banned-word policy
type ModerationConfig struct {
	PolicyFile  string   `mapstructure:"policy_file"`
	BannedWords []string `mapstructure:"banned_words"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
	UploadDir     string `mapstructure:"upload_dir"`
}

// HistoryConfig holds the conversation store configuration
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"` // ":memory:" keeps nothing on disk
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the credential variables read at start-up.
var envBindings = map[string]string{
	"llm.api_key":      "TOGETHER_API_KEY",
	"search.api_key":   "GOOGLE_API_KEY",
	"search.engine_id": "GOOGLE_CSE_ID",
	"voice.api_key":    "OPENAI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://api.together.xyz/v1")
	v.SetDefault("llm.model", "meta-llama/Llama-3-70b-chat-hf")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)

	v.SetDefault("search.num_results", 3)

	v.SetDefault("voice.base_url", "https://api.openai.com/v1")
	v.SetDefault("voice.stt_model", "whisper-1")
	v.SetDefault("voice.tts_model", "tts-1")
	v.SetDefault("voice.tts_voice", "alloy")
	v.SetDefault("voice.speech_dir", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "7860")
	v.SetDefault("server.max_upload_size", 25<<20)
	v.SetDefault("server.upload_dir", "")

	v.SetDefault("history.db_path", ":memory:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from config.yaml in the working directory, or
// from the file named by CONFIG_PATH. A missing config.yaml is not an error;
// credentials are taken from the environment and are not validated here.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile loads the configuration from path, falling back to ./config.yaml when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
