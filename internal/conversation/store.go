package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spurhq/spurbot/internal/log"
)

// PostgreSQL error code for foreign key violations (SQLSTATE 23503).
const fkViolationCode = "23503"

// Store persists conversations and their messages in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a message store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Create inserts a conversation with the given id, or returns the existing
// one when the id is already present. Pass uuid.Nil to mint a fresh id.
//
// The insert uses ON CONFLICT DO NOTHING so two concurrent creates for the
// same id both succeed; the follow-up read returns whichever row won.
func (s *Store) Create(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	conv := &Conversation{ID: id}
	err = s.pool.QueryRow(ctx,
		`SELECT created_at FROM conversations WHERE id = $1`, id).Scan(&conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", id, err)
	}

	s.logger.Debug("conversation ready", "conversation_id", id)
	return conv, nil
}

// Exists reports whether a conversation with the given id is persisted.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation %s: %w", id, err)
	}
	return exists, nil
}

// Append persists one message at the tail of the conversation's log.
// Returns ErrNotFound when the conversation does not exist.
func (s *Store) Append(ctx context.Context, conversationID uuid.UUID, sender, text string) (*Message, error) {
	msg := &Message{
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender, text)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		conversationID, sender, text).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == fkViolationCode {
			return nil, fmt.Errorf("append to conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

// List returns all messages of a conversation in ascending creation order.
// An existing conversation with no messages yields an empty slice.
func (s *Store) List(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender, text, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecent returns the most recent n messages of a conversation, still in
// ascending creation order. The inner query selects the newest rows, the
// outer one restores chronological order for prompt assembly.
func (s *Store) ListRecent(ctx context.Context, conversationID uuid.UUID, n int) ([]Message, error) {
	if n < 1 {
		return nil, fmt.Errorf("list recent messages: limit must be positive, got %d", n)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender, text, created_at FROM (
		     SELECT id, seq, conversation_id, sender, text, created_at
		     FROM messages
		     WHERE conversation_id = $1
		     ORDER BY seq DESC
		     LIMIT $2
		 ) recent
		 ORDER BY seq`,
		conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
