package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spurhq/spurbot/internal/chat"
	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/log"
)

type fakeOrchestrator struct {
	historyFn func(ctx context.Context, sessionID string) ([]conversation.Message, error)
	postFn    func(ctx context.Context, sessionID, message string) (*chat.Result, error)
}

func (f *fakeOrchestrator) History(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	return f.historyFn(ctx, sessionID)
}

func (f *fakeOrchestrator) PostMessage(ctx context.Context, sessionID, message string) (*chat.Result, error) {
	return f.postFn(ctx, sessionID, message)
}

func newTestServer(t *testing.T, orch orchestrator) *Server {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: orch,
		RateBurst:    1000,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	return srv
}

func TestNewServer_RequiresOrchestrator(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() accepted a nil orchestrator")
	}
}

func TestHistory_OK(t *testing.T) {
	sessionID := uuid.New()
	orch := &fakeOrchestrator{
		historyFn: func(_ context.Context, got string) ([]conversation.Message, error) {
			if got != sessionID.String() {
				t.Errorf("History(%q), want %q", got, sessionID)
			}
			return []conversation.Message{
				{ID: uuid.New(), ConversationID: sessionID, Sender: conversation.SenderUser, Text: "hi", CreatedAt: time.Now()},
			}, nil
		},
	}
	srv := newTestServer(t, orch)

	req := httptest.NewRequest(http.MethodGet, "/history/"+sessionID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("history() = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Text != "hi" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestHistory_EmptyTranscript(t *testing.T) {
	orch := &fakeOrchestrator{
		historyFn: func(context.Context, string) ([]conversation.Message, error) {
			return nil, nil
		},
	}
	srv := newTestServer(t, orch)

	req := httptest.NewRequest(http.MethodGet, "/history/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("history() = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Errorf("body = %s, want an empty messages array", rec.Body.String())
	}
}

func TestHistory_InvalidSession(t *testing.T) {
	orch := &fakeOrchestrator{
		historyFn: func(_ context.Context, sessionID string) ([]conversation.Message, error) {
			return nil, fmt.Errorf("%w: %q", chat.ErrInvalidSessionID, sessionID)
		},
	}
	srv := newTestServer(t, orch)

	req := httptest.NewRequest(http.MethodGet, "/history/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("history() = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "invalid_session") {
		t.Errorf("body = %s, want invalid_session code", rec.Body.String())
	}
}

func TestHistory_StorageError(t *testing.T) {
	orch := &fakeOrchestrator{
		historyFn: func(context.Context, string) ([]conversation.Message, error) {
			return nil, errors.New("connection refused")
		},
	}
	srv := newTestServer(t, orch)

	req := httptest.NewRequest(http.MethodGet, "/history/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("history() = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("internal error details leaked to the client")
	}
}

func postMessage(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostMessage_OK(t *testing.T) {
	sessionID := uuid.New()
	orch := &fakeOrchestrator{
		postFn: func(_ context.Context, gotSession, gotMessage string) (*chat.Result, error) {
			if gotSession != "" {
				t.Errorf("sessionID = %q, want empty", gotSession)
			}
			if gotMessage != "Do you ship to the UK?" {
				t.Errorf("message = %q", gotMessage)
			}
			return &chat.Result{Reply: "Yes, we ship to the UK.", SessionID: sessionID}, nil
		},
	}
	srv := newTestServer(t, orch)

	rec := postMessage(t, srv, `{"message":"Do you ship to the UK?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("postMessage() = %d, want %d", rec.Code, http.StatusOK)
	}

	var body messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Reply != "Yes, we ship to the UK." {
		t.Errorf("reply = %q", body.Reply)
	}
	if body.SessionID != sessionID.String() {
		t.Errorf("sessionId = %q, want %q", body.SessionID, sessionID)
	}
	if strings.Contains(rec.Body.String(), "degraded") {
		t.Error("degraded field present on a healthy turn")
	}
}

func TestPostMessage_Degraded(t *testing.T) {
	orch := &fakeOrchestrator{
		postFn: func(context.Context, string, string) (*chat.Result, error) {
			return &chat.Result{Reply: "fallback", SessionID: uuid.New(), Degraded: true}, nil
		},
	}
	srv := newTestServer(t, orch)

	rec := postMessage(t, srv, `{"message":"hello"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("postMessage() = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"degraded":true`) {
		t.Errorf("body = %s, want degraded:true", rec.Body.String())
	}
}

func TestPostMessage_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"empty message", chat.ErrEmptyMessage, "message_required"},
		{"too long", chat.ErrMessageTooLong, "message_too_long"},
		{"bad session id", chat.ErrInvalidSessionID, "invalid_session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &fakeOrchestrator{
				postFn: func(context.Context, string, string) (*chat.Result, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(t, orch)

			rec := postMessage(t, srv, `{"message":"x"}`)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("postMessage() = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Errorf("body = %s, want code %q", rec.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestPostMessage_BadJSON(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{
		postFn: func(context.Context, string, string) (*chat.Result, error) {
			t.Error("orchestrator called for malformed JSON")
			return nil, nil
		},
	})

	rec := postMessage(t, srv, `{"message":`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("postMessage() = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPostMessage_StorageError(t *testing.T) {
	orch := &fakeOrchestrator{
		postFn: func(context.Context, string, string) (*chat.Result, error) {
			return nil, errors.New("persist user message: connection refused")
		},
	}
	srv := newTestServer(t, orch)

	rec := postMessage(t, srv, `{"message":"hello"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("postMessage() = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health() = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReady_WithoutPool(t *testing.T) {
	srv := newTestServer(t, &fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("readiness() = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimit(t *testing.T) {
	orch := &fakeOrchestrator{
		historyFn: func(context.Context, string) ([]conversation.Message, error) {
			return nil, nil
		},
	}
	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: orch,
		RateBurst:    2,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}

	target := "/history/" + uuid.NewString()
	var lastCode int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want %d", lastCode, http.StatusTooManyRequests)
	}
}

func TestRecovery(t *testing.T) {
	orch := &fakeOrchestrator{
		historyFn: func(context.Context, string) ([]conversation.Message, error) {
			panic("boom")
		},
	}
	srv := newTestServer(t, orch)

	req := httptest.NewRequest(http.MethodGet, "/history/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("panicking handler = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: &fakeOrchestrator{},
		CORSOrigins:  []string{"http://localhost:5173"},
		RateBurst:    1000,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/message", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: &fakeOrchestrator{},
		CORSOrigins:  []string{"http://localhost:5173"},
		RateBurst:    1000,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/message", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}
