package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/comigor/assistant-go/internal/assistant"
	"github.com/comigor/assistant-go/internal/history"
	"github.com/comigor/assistant-go/internal/search"
)

const chatSession = "terminal"

const chatHelp = `Commands:
  /image <path>   attach an image to the next message
  /send           send the attached image without text
  /audio <path>   send a voice recording
  /test-search    ask the sample search question
  /history        show the conversation
  /clear          start over
  /quit           leave`

type turner interface {
	Turn(ctx context.Context, hist history.History, in assistant.Input) assistant.Output
}

type conversation interface {
	Load(ctx context.Context, sessionID string) history.History
	Append(ctx context.Context, sessionID string, turns ...history.Turn) error
	Clear(ctx context.Context, sessionID string) error
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return newChat(a.assistant, a.store, cmd.OutOrStdout()).run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type chat struct {
	turner turner
	store  conversation
	out    io.Writer

	image string // attached to the next submission

	promptStyle    lipgloss.Style
	assistantStyle lipgloss.Style
	userStyle      lipgloss.Style
	infoStyle      lipgloss.Style
}

func newChat(t turner, store conversation, out io.Writer) *chat {
	r := lipgloss.NewRenderer(out)
	return &chat{
		turner:         t,
		store:          store,
		out:            out,
		promptStyle:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		assistantStyle: r.NewStyle().Foreground(lipgloss.Color("212")),
		userStyle:      r.NewStyle().Foreground(lipgloss.Color("42")),
		infoStyle:      r.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
	}
}

func (c *chat) run(ctx context.Context, in io.Reader) error {
	c.info("Type a message, or /help for commands.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, c.promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if quit := c.handle(ctx, line); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether the session should end.
func (c *chat) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		c.info(chatHelp)
	case "/image":
		if arg == "" {
			c.info("usage: /image <path>")
			return false
		}
		c.image = arg
		c.info("image attached: type a message or /send")
	case "/send":
		c.submit(ctx, assistant.Input{})
	case "/audio":
		if arg == "" {
			c.info("usage: /audio <path>")
			return false
		}
		c.submit(ctx, assistant.Input{AudioPath: arg})
	case "/test-search":
		fmt.Fprintln(c.out, c.userStyle.Render("you: "+search.SamplePrompt))
		c.submit(ctx, assistant.Input{Text: search.SamplePrompt})
	case "/history":
		for _, t := range c.store.Load(ctx, chatSession) {
			c.print(t)
		}
	case "/clear":
		if err := c.store.Clear(ctx, chatSession); err != nil {
			c.info("could not clear history: " + err.Error())
			return false
		}
		c.image = ""
		c.info("history cleared")
	default:
		if strings.HasPrefix(cmd, "/") {
			c.info("unknown command " + cmd + ", try /help")
			return false
		}
		c.submit(ctx, assistant.Input{Text: line})
	}
	return false
}

func (c *chat) submit(ctx context.Context, in assistant.Input) {
	in.ImagePath = c.image
	c.image = ""

	hist := c.store.Load(ctx, chatSession)
	out := c.turner.Turn(ctx, hist, in)
	if len(out.History) <= len(hist) {
		c.info("nothing to send")
		return
	}
	added := out.History[len(hist):]
	if err := c.store.Append(ctx, chatSession, added...); err != nil {
		c.info("history not saved: " + err.Error())
	}

	for i, t := range added {
		// typed text is already on screen
		if i == 0 && t.Role == history.RoleUser && in.Text != "" {
			continue
		}
		c.print(t)
	}
	if out.SpeechPath != "" {
		c.info("🔊 spoken reply saved to " + out.SpeechPath)
	}
}

func (c *chat) print(t history.Turn) {
	switch t.Role {
	case history.RoleAssistant:
		fmt.Fprintln(c.out, c.assistantStyle.Render("assistant: "+t.Content))
	case history.RoleUser:
		fmt.Fprintln(c.out, c.userStyle.Render("you: "+t.Content))
	default:
		c.info(t.Content)
	}
}

func (c *chat) info(msg string) {
	fmt.Fprintln(c.out, c.infoStyle.Render(msg))
}
