// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/assistant-go/internal/assistant"
	"github.com/comigor/assistant-go/internal/history"
	"github.com/comigor/assistant-go/internal/logger"
	"github.com/comigor/assistant-go/internal/search"
)

// SessionID names the single conversation the server owns.
const SessionID = "default"

const defaultMaxUploadSize = 25 << 20

// Turner runs one conversation turn.
type Turner interface {
	Turn(ctx context.Context, hist history.History, in assistant.Input) assistant.Output
}

// Store keeps the conversation between requests.
type Store interface {
	Load(ctx context.Context, sessionID string) history.History
	Append(ctx context.Context, sessionID string, turns ...history.Turn) error
	Clear(ctx context.Context, sessionID string) error
}

// Handler serves the chat API.
type Handler struct {
	turner    Turner
	store     Store
	uploadDir string
	speechDir string
	maxUpload int64

	mu sync.Mutex // one turn at a time
}

// Options configure a Handler.
type Options struct {
	UploadDir     string // empty = os.TempDir()
	SpeechDir     string // where synthesized replies are written; empty = os.TempDir()
	MaxUploadSize int64
}

// NewHandler creates a Handler.
func NewHandler(turner Turner, store Store, opts Options) *Handler {
	h := &Handler{
		turner:    turner,
		store:     store,
		uploadDir: opts.UploadDir,
		speechDir: opts.SpeechDir,
		maxUpload: opts.MaxUploadSize,
	}
	if h.speechDir == "" {
		h.speechDir = os.TempDir()
	}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUploadSize
	}
	return h
}

// TurnResponse is the body returned by POST /api/turn.
type TurnResponse struct {
	TurnID   string          `json:"turn_id"`
	Reply    string          `json:"reply"`
	History  history.History `json:"history"`
	AudioURL string          `json:"audio_url,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// NewRouter builds the router with the global middleware and h's routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/turn", h.PostTurn)
		r.Get("/history", h.GetHistory)
		r.Delete("/history", h.ClearHistory)
		r.Get("/audio/{name}", h.GetAudio)
		r.Get("/search/sample", h.GetSearchSample)
	})
}

// PostTurn runs a turn from a multipart form with optional "text", "image"
// and "audio" parts.
func (h *Handler) PostTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := assistant.Input{Text: r.FormValue("text")}
	var uploads []string
	cleanup := func() {
		for _, p := range uploads {
			os.Remove(p)
		}
		uploads = nil
	}
	defer cleanup()

	for _, field := range []string{"image", "audio"} {
		path, err := h.saveUpload(r, field)
		if err != nil {
			logger.L.Warn("upload failed", "field", field, "error", err)
			Error(w, http.StatusBadRequest, "invalid "+field+" upload")
			return
		}
		if path == "" {
			continue
		}
		uploads = append(uploads, path)
		if field == "image" {
			in.ImagePath = path
		} else {
			in.AudioPath = path
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	hist := h.store.Load(ctx, SessionID)
	out := h.turner.Turn(ctx, hist, in)
	cleanup()

	resp := TurnResponse{TurnID: out.TurnID, History: out.History}
	if len(out.History) > len(hist) {
		if err := h.store.Append(ctx, SessionID, out.History[len(hist):]...); err != nil {
			logger.L.Warn("history persistence failed", "error", err)
		}
		if last, ok := out.History.LastAssistant(); ok {
			resp.Reply = last.Content
		}
	}
	if resp.History == nil {
		resp.History = history.History{}
	}
	if out.SpeechPath != "" {
		resp.AudioURL = "/api/audio/" + filepath.Base(out.SpeechPath)
	}
	JSON(w, http.StatusOK, resp)
}

// saveUpload copies the file part named field into the upload directory. It
// returns an empty path when the part is absent.
func (h *Handler) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	return h.writeTemp(file, header, field)
}

func (h *Handler) writeTemp(src multipart.File, header *multipart.FileHeader, field string) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.CreateTemp(h.uploadDir, field+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// GetHistory returns the stored conversation.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	hist := h.store.Load(r.Context(), SessionID)
	if hist == nil {
		hist = history.History{}
	}
	JSON(w, http.StatusOK, map[string]any{"history": hist})
}

// ClearHistory resets the conversation.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.Clear(r.Context(), SessionID); err != nil {
		logger.L.Error("failed to clear history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"history": history.History{}})
}

// GetAudio serves a synthesized reply.
func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || !strings.HasPrefix(name, "reply-") || filepath.Ext(name) != ".mp3" {
		Error(w, http.StatusNotFound, "not found")
		return
	}
	path := filepath.Join(h.speechDir, name)
	if _, err := os.Stat(path); err != nil {
		Error(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

// GetSearchSample returns a prompt that exercises web search.
func (h *Handler) GetSearchSample(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"prompt": search.SamplePrompt})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}
