package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/assistant-go/internal/config"
	"github.com/comigor/assistant-go/internal/moderation"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{name: "version flag", args: []string{"--version"}, want: "dev"},
		{name: "help flag", args: []string{"--help"}, want: "assistant serve"},
		{name: "unknown subcommand", args: []string{"dance"}, wantErr: true},
		{name: "serve takes no args", args: []string{"serve", "extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			var stdout, stderr bytes.Buffer
			cmd.SetOut(&stdout)
			cmd.SetErr(&stderr)

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Contains(t, stdout.String(), tt.want)
		})
	}
}

func TestRootOptions_Load(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	envFile := filepath.Join(dir, "creds.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TOGETHER_API_KEY=from-dotenv\n"), 0o644))
	cfgFile := filepath.Join(dir, "assistant.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("llm:\n  model: test-model\nlog:\n  level: warn\n"), 0o644))
	t.Setenv("TOGETHER_API_KEY", "")
	os.Unsetenv("TOGETHER_API_KEY")

	opts := &rootOptions{configPath: cfgFile, envFile: envFile, logLevel: "debug"}
	cmd := newChatCmd(opts)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, opts.load(cmd))

	require.Equal(t, "test-model", opts.cfg.LLM.Model)
	require.Equal(t, "from-dotenv", opts.cfg.LLM.APIKey)
}

func TestRootOptions_LoadErrors(t *testing.T) {
	chdir(t, t.TempDir())

	opts := &rootOptions{envFile: "missing.env"}
	require.Error(t, opts.load(newServeCmd(opts)))

	opts = &rootOptions{configPath: "missing.yaml"}
	require.Error(t, opts.load(newServeCmd(opts)))
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := policyFromConfig(config.ModerationConfig{})
	require.NoError(t, err)
	require.Equal(t, moderation.DefaultBannedWords, p.BannedWords)

	file := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(file, []byte("banned_words: [spoiler]\nredaction_token: '***'\n"), 0o644))
	p, err = policyFromConfig(config.ModerationConfig{PolicyFile: file})
	require.NoError(t, err)
	require.Equal(t, []string{"spoiler"}, p.BannedWords)
	require.Equal(t, "***", p.RedactionToken)

	p, err = policyFromConfig(config.ModerationConfig{PolicyFile: file, BannedWords: []string{"foo"}})
	require.NoError(t, err)
	require.Equal(t, []string{"foo"}, p.BannedWords)
	require.Equal(t, "***", p.RedactionToken)

	_, err = policyFromConfig(config.ModerationConfig{PolicyFile: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)

	_, err = policyFromConfig(config.ModerationConfig{BannedWords: []string{"kill", "x["}})
	require.Error(t, err)
}

func TestBuildApp(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	chdir(t, t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.assistant)
	require.NoError(t, a.Close())

	cfg.Moderation.PolicyFile = "does-not-exist.yaml"
	_, err = buildApp(context.Background(), cfg)
	require.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
