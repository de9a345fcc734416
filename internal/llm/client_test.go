package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/spurhq/spurbot/internal/conversation"
)

// step scripts one GenerateContent call of the fake.
type step struct {
	text string
	err  error
}

type fakeGenerator struct {
	steps []step
	calls int

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config

	s := f.steps[min(f.calls-1, len(f.steps)-1)]
	if s.err != nil {
		return nil, s.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: s.text}}}},
		},
	}, nil
}

func newTestClient(gen Generator) *Client {
	return New(gen, Config{
		ModelName:   "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   2048,
		Retry: RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
}

func history() []conversation.Message {
	convID := uuid.New()
	return []conversation.Message{
		{ID: uuid.New(), ConversationID: convID, Sender: conversation.SenderUser, Text: "Do you ship to Canada?"},
		{ID: uuid.New(), ConversationID: convID, Sender: conversation.SenderAssistant, Text: "Yes, we ship to Canada."},
	}
}

func TestReply_Success(t *testing.T) {
	gen := &fakeGenerator{steps: []step{{text: "Standard shipping takes 3-5 business days."}}}
	c := newTestClient(gen)

	reply, degraded := c.Reply(context.Background(), history(), "How long does shipping take?")

	if degraded {
		t.Error("Reply() reported degraded on success")
	}
	if reply != "Standard shipping takes 3-5 business days." {
		t.Errorf("Reply() = %q", reply)
	}
	if gen.gotModel != "gemini-2.5-flash" {
		t.Errorf("model = %q, want gemini-2.5-flash", gen.gotModel)
	}
}

func TestReply_BuildsContents(t *testing.T) {
	gen := &fakeGenerator{steps: []step{{text: "ok"}}}
	c := newTestClient(gen)

	c.Reply(context.Background(), history(), "And to Germany?")

	if len(gen.gotContents) != 3 {
		t.Fatalf("sent %d contents, want 3", len(gen.gotContents))
	}

	wantRoles := []genai.Role{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, content := range gen.gotContents {
		if genai.Role(content.Role) != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, content.Role, wantRoles[i])
		}
	}
	if got := gen.gotContents[2].Parts[0].Text; got != "And to Germany?" {
		t.Errorf("final content = %q, want the new message", got)
	}
	if gen.gotConfig.SystemInstruction == nil {
		t.Error("system instruction not set")
	}
}

func TestReply_EmptyResponse(t *testing.T) {
	gen := &fakeGenerator{steps: []step{{text: "   "}}}
	c := newTestClient(gen)

	reply, degraded := c.Reply(context.Background(), nil, "hello")

	if !degraded || reply != FallbackReply {
		t.Errorf("Reply() = %q, %v, want fallback, true", reply, degraded)
	}
}

func TestReply_NonRetryableError(t *testing.T) {
	gen := &fakeGenerator{steps: []step{{err: errors.New("400 invalid argument")}}}
	c := newTestClient(gen)

	reply, degraded := c.Reply(context.Background(), nil, "hello")

	if !degraded || reply != FallbackReply {
		t.Errorf("Reply() = %q, %v, want fallback, true", reply, degraded)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent errors)", gen.calls)
	}
}

func TestReply_RetryableThenSuccess(t *testing.T) {
	gen := &fakeGenerator{steps: []step{
		{err: errors.New("503 service unavailable")},
		{text: "All good now."},
	}}
	c := newTestClient(gen)

	reply, degraded := c.Reply(context.Background(), nil, "hello")

	if degraded {
		t.Error("Reply() reported degraded after successful retry")
	}
	if reply != "All good now." {
		t.Errorf("Reply() = %q", reply)
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
}

func TestReply_RetryExhausted(t *testing.T) {
	gen := &fakeGenerator{steps: []step{{err: errors.New("rate limit exceeded")}}}
	c := newTestClient(gen)

	reply, degraded := c.Reply(context.Background(), nil, "hello")

	if !degraded || reply != FallbackReply {
		t.Errorf("Reply() = %q, %v, want fallback, true", reply, degraded)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", gen.calls)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("Quota Exceeded for project"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("context deadline exceeded (timeout)"), true},
		{errors.New("400 invalid argument"), false},
		{errors.New("API key not valid"), false},
	}

	for _, tt := range tests {
		if got := retryableError(tt.err); got != tt.want {
			t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
