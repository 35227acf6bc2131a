package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var levelVar = new(slog.LevelVar)

// L is the process-wide logger. It writes JSON to stdout until Init is called.
var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// Init replaces L with a handler writing to w. format is "json", "text" or
// "console" (colored when w is a terminal).
func Init(w io.Writer, format, level string) {
	var h slog.Handler
	switch strings.ToLower(format) {
	case "console":
		h = tint.NewHandler(w, &tint.Options{
			Level:      levelVar,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(w),
		})
	case "text":
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	}
	L = slog.New(h)
	SetLevel(level)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// ForTurn returns a child logger tagged with the turn id.
func ForTurn(turnID string) *slog.Logger {
	return L.With("turn_id", turnID)
}
