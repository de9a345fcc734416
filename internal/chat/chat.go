// Package chat orchestrates the support conversation flow: session
// resolution, durable message logging, cache maintenance, and completion.
//
// The orchestrator is stateless and uses dependency injection; all
// coordination state lives in PostgreSQL and Redis.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/log"
)

// MessageLog is the durable conversation store the orchestrator writes to.
// *conversation.Store satisfies it.
type MessageLog interface {
	Create(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Append(ctx context.Context, conversationID uuid.UUID, sender, text string) (*conversation.Message, error)
	List(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	ListRecent(ctx context.Context, conversationID uuid.UUID, n int) ([]conversation.Message, error)
}

// HistoryCache is the read accelerator in front of the message log.
// Implementations absorb their own failures. *cache.Cache satisfies it.
type HistoryCache interface {
	Get(ctx context.Context, sessionID string) ([]conversation.Message, bool)
	Put(ctx context.Context, sessionID string, messages []conversation.Message)
	Invalidate(ctx context.Context, sessionID string)
}

// Completer produces the assistant's reply. The boolean reports degraded
// mode (fallback text instead of a model answer). *llm.Client satisfies it.
type Completer interface {
	Reply(ctx context.Context, history []conversation.Message, message string) (string, bool)
}

// Config contains all required parameters for the orchestrator.
type Config struct {
	Log       MessageLog
	Completer Completer
	Cache     HistoryCache // nil runs without caching

	ContextWindow   int // Recent messages handed to the completer
	MaxMessageChars int // Inbound message length limit, in runes

	Logger log.Logger
}

func (cfg Config) validate() error {
	if cfg.Log == nil {
		return errors.New("message log is required")
	}
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.ContextWindow < 1 {
		return errors.New("context window must be positive")
	}
	if cfg.MaxMessageChars < 1 {
		return errors.New("max message chars must be positive")
	}
	return nil
}

// Result is the outcome of one posted message.
type Result struct {
	Reply     string
	SessionID uuid.UUID
	Degraded  bool // Reply is the fallback text, not a model answer
}

// Orchestrator coordinates one conversation turn end to end.
type Orchestrator struct {
	log             MessageLog
	completer       Completer
	cache           HistoryCache
	contextWindow   int
	maxMessageChars int
	logger          log.Logger
}

// New creates an orchestrator from required configuration.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Orchestrator{
		log:             cfg.Log,
		completer:       cfg.Completer,
		cache:           cfg.Cache,
		contextWindow:   cfg.ContextWindow,
		maxMessageChars: cfg.MaxMessageChars,
		logger:          logger,
	}, nil
}

// History returns the full message history for a session, oldest first.
//
// Reads are cache-aside: a cache hit skips the database entirely; a miss
// reads the database and populates the cache, but only with a non-empty
// history so an empty marker can never mask newly written rows.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	if o.cache != nil {
		if messages, ok := o.cache.Get(ctx, id.String()); ok {
			o.logger.Debug("history served from cache", "session_id", id, "messages", len(messages))
			return messages, nil
		}
	}

	messages, err := o.log.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if o.cache != nil && len(messages) > 0 {
		o.cache.Put(ctx, id.String(), messages)
	}

	return messages, nil
}

// PostMessage runs one conversation turn: resolve the session, persist the
// customer's message, generate a reply, persist it, and return it.
//
// The cache entry is invalidated after each of the two appends; the cache
// only ever lags, it never serves a history missing a persisted write.
func (o *Orchestrator) PostMessage(ctx context.Context, sessionID string, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(message); n > o.maxMessageChars {
		return nil, fmt.Errorf("%w: %d chars exceeds limit of %d", ErrMessageTooLong, n, o.maxMessageChars)
	}

	conv, err := o.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	key := conv.ID.String()

	userMsg, err := o.log.Append(ctx, conv.ID, conversation.SenderUser, message)
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	o.invalidate(ctx, key)

	window, err := o.log.ListRecent(ctx, conv.ID, o.contextWindow)
	if err != nil {
		return nil, fmt.Errorf("load context window: %w", err)
	}
	// The window includes the message just appended; the completer receives
	// it separately as the current message.
	if n := len(window); n > 0 && window[n-1].ID == userMsg.ID {
		window = window[:n-1]
	}

	reply, degraded := o.completer.Reply(ctx, window, message)

	// The fallback reply is persisted too: the customer saw it, so the
	// transcript must show it.
	if _, err := o.log.Append(ctx, conv.ID, conversation.SenderAssistant, reply); err != nil {
		return nil, fmt.Errorf("persist assistant reply: %w", err)
	}
	o.invalidate(ctx, key)

	if degraded {
		o.logger.Warn("turn completed in degraded mode", "session_id", conv.ID)
	}

	return &Result{
		Reply:     reply,
		SessionID: conv.ID,
		Degraded:  degraded,
	}, nil
}

// resolveSession maps the supplied session id to a conversation, creating
// one as needed. A blank id starts a fresh session; a well-formed unknown
// id is recreated under that exact id, so a client whose conversation row
// vanished keeps a working session token.
func (o *Orchestrator) resolveSession(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	if sessionID == "" {
		conv, err := o.log.Create(ctx, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		o.logger.Debug("started new session", "session_id", conv.ID)
		return conv, nil
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	exists, err := o.log.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if exists {
		return &conversation.Conversation{ID: id}, nil
	}

	conv, err := o.log.Create(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recreate session: %w", err)
	}
	o.logger.Info("recreated missing session", "session_id", id)
	return conv, nil
}

func (o *Orchestrator) invalidate(ctx context.Context, key string) {
	if o.cache != nil {
		o.cache.Invalidate(ctx, key)
	}
}
