package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/comigor/assistant-go/internal/config"
	"github.com/comigor/assistant-go/internal/logger"
)

var version = "dev"

// rootOptions are shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Moderated chat assistant with web search, voice and image input",
		Long: `A conversational assistant backed by an OpenAI-compatible completion API.

Messages are screened against a banned-word policy, questions about recent
events are augmented with Google Custom Search results, voice recordings are
transcribed and replies can be spoken back.

Quick Start:
  assistant serve                 # HTTP API on :7860
  assistant chat                  # interactive terminal session`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ./config.yaml or $CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "Path to a .env file with API credentials (default ./.env if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newServeCmd(opts), newChatCmd(opts))
	return cmd
}

// load reads credentials and configuration and sets up logging.
func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	format := cfg.Log.Format
	if cmd.Name() == "chat" {
		format = "console"
	}
	logger.Init(cmd.ErrOrStderr(), format, level)

	o.cfg = cfg
	return nil
}
