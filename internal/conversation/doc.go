// Package conversation provides durable, conversation-scoped message storage
// backed by PostgreSQL.
//
// A Conversation is an identifier-addressed, append-only message log. Messages
// are immutable once persisted and totally ordered by creation time within
// their conversation; every read preserves that order.
//
// The Store is the single writer surface: create a conversation, append a
// message, list history. It holds no in-process locks; concurrency control
// belongs to PostgreSQL.
package conversation
