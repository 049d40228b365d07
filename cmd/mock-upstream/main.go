// Command mock-upstream runs a deterministic chat proxy for local
// development and tests of chatrelay. It accepts both the enveloped and
// the bare message array payloads and echoes the last user message back.
//
// Faults are injected with directives in the last user message:
//
//	[status:503]   answer with that HTTP status and an error body
//	[error]        answer 200 with an {"error": {...}} body
//	[malformed]    answer 200 with a body that is not JSON
//	[slow:2s]      wait before answering
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_REPLY_SHAPE - choices, content or response (default: choices)
//	MOCK_FAIL_FIRST  - answer 503 to the first N requests (default: 0)
//	MOCK_API_KEY     - require this Bearer credential when set
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
)

type mockConfig struct {
	Port       int    `env:"PORT" envDefault:"9090"`
	ReplyShape string `env:"REPLY_SHAPE" envDefault:"choices"`
	FailFirst  int    `env:"FAIL_FIRST"`
	APIKey     string `env:"API_KEY"`
}

func main() {
	var cfg mockConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MOCK_"}); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           newMockHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock upstream starting", "port", cfg.Port, "reply_shape", cfg.ReplyShape, "fail_first", cfg.FailFirst)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock upstream failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock upstream shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatEnvelope struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// --- Handler ---

type mockHandler struct {
	cfg      mockConfig
	requests atomic.Int64
}

func newMockHandler(cfg mockConfig) http.Handler {
	h := &mockHandler{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", h.handleChat)
	mux.HandleFunc("POST /v1/chat/completions", h.handleChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

var (
	statusDirective = regexp.MustCompile(`\[status:(\d{3})\]`)
	slowDirective   = regexp.MustCompile(`\[slow:([^\]]+)\]`)
)

func (h *mockHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	n := h.requests.Add(1)

	if h.cfg.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+h.cfg.APIKey {
		writeErrorBody(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	if n <= int64(h.cfg.FailFirst) {
		slog.Info("failing request on purpose", "request", n, "fail_first", h.cfg.FailFirst)
		writeErrorBody(w, http.StatusServiceUnavailable, "warming up")
		return
	}

	msgs, model, err := decodeMessages(r)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, err.Error())
		return
	}
	last := lastUserMessage(msgs)

	if m := slowDirective.FindStringSubmatch(last); m != nil {
		if d, err := time.ParseDuration(m[1]); err == nil {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
	}

	if m := statusDirective.FindStringSubmatch(last); m != nil {
		code, _ := strconv.Atoi(m[1])
		writeErrorBody(w, code, fmt.Sprintf("injected status %d", code))
		return
	}
	if strings.Contains(last, "[error]") {
		writeErrorBody(w, http.StatusOK, "injected error object")
		return
	}
	if strings.Contains(last, "[malformed]") {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("<html>not json</html>"))
		return
	}

	slog.Debug("mock reply", "model", model, "messages", len(msgs))
	writeReply(w, h.cfg.ReplyShape, echo(msgs, last))
}

// decodeMessages accepts either an envelope object or a bare message array.
func decodeMessages(r *http.Request) ([]chatMessage, string, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, "", fmt.Errorf("invalid JSON: %v", err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var msgs []chatMessage
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, "", fmt.Errorf("invalid message array: %v", err)
		}
		return msgs, "", nil
	}

	var envelope chatEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, "", fmt.Errorf("invalid envelope: %v", err)
	}
	if len(envelope.Messages) == 0 {
		return nil, "", errors.New("messages is required")
	}
	return envelope.Messages, envelope.Model, nil
}

func lastUserMessage(msgs []chatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

// echo builds the deterministic reply text. The number of earlier turns
// is included so callers can see how much context arrived.
func echo(msgs []chatMessage, last string) string {
	return fmt.Sprintf("echo (%d turns): %s", len(msgs), last)
}

func writeReply(w http.ResponseWriter, shape, text string) {
	var body any
	switch shape {
	case "content":
		body = map[string]any{"content": text}
	case "response":
		body = map[string]any{"response": text}
	default:
		body = map[string]any{
			"id":     "chatcmpl-mock",
			"object": "chat.completion",
			"choices": []any{
				map[string]any{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": text},
					"finish_reason": "stop",
				},
			},
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeErrorBody(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "mock_error"},
	})
}
