package main

import (
	"context"
	"fmt"

	"github.com/comigor/assistant-go/internal/assistant"
	"github.com/comigor/assistant-go/internal/config"
	"github.com/comigor/assistant-go/internal/history"
	"github.com/comigor/assistant-go/internal/imageinfo"
	"github.com/comigor/assistant-go/internal/llm"
	"github.com/comigor/assistant-go/internal/logger"
	"github.com/comigor/assistant-go/internal/moderation"
	"github.com/comigor/assistant-go/internal/responder"
	"github.com/comigor/assistant-go/internal/search"
	"github.com/comigor/assistant-go/internal/voice"
)

// app is the wired object graph shared by serve and chat.
type app struct {
	assistant *assistant.Assistant
	store     *history.Store
}

func (a *app) Close() error {
	return a.store.Close()
}

// policyFromConfig resolves the moderation policy: the built-in list, replaced
// by the policy file when set, replaced by an inline list when set.
func policyFromConfig(cfg config.ModerationConfig) (moderation.Policy, error) {
	policy := moderation.DefaultPolicy()
	if cfg.PolicyFile != "" {
		p, err := moderation.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return moderation.Policy{}, err
		}
		policy = p
	}
	if len(cfg.BannedWords) > 0 {
		policy.BannedWords = cfg.BannedWords
	}
	if err := policy.Validate(); err != nil {
		return moderation.Policy{}, err
	}
	return policy, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	policy, err := policyFromConfig(cfg.Moderation)
	if err != nil {
		return nil, fmt.Errorf("moderation policy: %w", err)
	}
	filter := moderation.NewFilter(policy)
	logger.L.Debug("moderation policy loaded", "terms", len(filter.Terms()))

	gen := responder.New(responder.Deps{
		LLM:       llm.NewClient(cfg.LLM),
		Filter:    filter,
		Trigger:   search.NewTrigger(cfg.Search.Keywords),
		Searcher:  search.NewGoogleClient(ctx, cfg.Search),
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})

	a := assistant.New(assistant.Deps{
		Responder:    gen,
		Images:       imageinfo.New(),
		Voice:        voice.New(llm.NewAudioClient(cfg.Voice), cfg.Voice),
		SystemPrompt: cfg.LLM.SystemPrompt,
	})

	return &app{assistant: a, store: history.Open(cfg.History.DBPath)}, nil
}
