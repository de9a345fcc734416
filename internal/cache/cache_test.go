package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spurhq/spurbot/internal/cache"
	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/log"
)

func newTestCache(t *testing.T, ttl time.Duration) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.New(client, ttl, log.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func sampleMessages(sessionID string) []conversation.Message {
	convID := uuid.MustParse(sessionID)
	return []conversation.Message{
		{ID: uuid.New(), ConversationID: convID, Sender: conversation.SenderUser, Text: "hi", CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), ConversationID: convID, Sender: conversation.SenderAssistant, Text: "hello!", CreatedAt: time.Now().UTC()},
	}
}

func TestKey(t *testing.T) {
	if got := cache.Key("abc"); got != "conversation:abc" {
		t.Errorf("Key(abc) = %q, want %q", got, "conversation:abc")
	}
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	if msgs, ok := c.Get(context.Background(), uuid.NewString()); ok || msgs != nil {
		t.Errorf("Get(unknown) = %v, %v, want nil, false", msgs, ok)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	sessionID := uuid.NewString()
	want := sampleMessages(sessionID)

	c.Put(ctx, sessionID, want)

	got, ok := c.Get(ctx, sessionID)
	if !ok {
		t.Fatal("Get() missed after Put()")
	}
	if len(got) != len(want) {
		t.Fatalf("Get() returned %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Text != want[i].Text || got[i].Sender != want[i].Sender {
			t.Errorf("messages[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPut_SetsTTL(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	sessionID := uuid.NewString()
	c.Put(ctx, sessionID, sampleMessages(sessionID))

	if ttl := mr.TTL(cache.Key(sessionID)); ttl != time.Hour {
		t.Errorf("TTL = %v, want %v", ttl, time.Hour)
	}

	mr.FastForward(time.Hour + time.Second)
	if _, ok := c.Get(ctx, sessionID); ok {
		t.Error("Get() hit after TTL expiry")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	sessionID := uuid.NewString()
	c.Put(ctx, sessionID, sampleMessages(sessionID))
	c.Invalidate(ctx, sessionID)

	if _, ok := c.Get(ctx, sessionID); ok {
		t.Error("Get() hit after Invalidate()")
	}
}

func TestGet_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)

	sessionID := uuid.NewString()
	mr.Set(cache.Key(sessionID), "{not json")

	if _, ok := c.Get(context.Background(), sessionID); ok {
		t.Error("Get() returned ok for a corrupt entry")
	}
}

func TestOperations_AbsorbServerDown(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	sessionID := uuid.NewString()
	msgs := sampleMessages(sessionID)
	mr.Close()

	// None of these may panic or surface an error.
	c.Put(ctx, sessionID, msgs)
	c.Invalidate(ctx, sessionID)
	if _, ok := c.Get(ctx, sessionID); ok {
		t.Error("Get() reported a hit with the server down")
	}
}
