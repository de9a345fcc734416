package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spurhq/spurbot/internal/chat"
	"github.com/spurhq/spurbot/internal/conversation"
	"github.com/spurhq/spurbot/internal/log"
)

// maxRequestBody bounds POST /message payloads. The message itself is
// limited separately by the orchestrator; this guards the JSON decoder.
const maxRequestBody = 64 << 10 // 64 KiB

// orchestrator is the slice of the chat orchestrator the handlers need.
type orchestrator interface {
	History(ctx context.Context, sessionID string) ([]conversation.Message, error)
	PostMessage(ctx context.Context, sessionID, message string) (*chat.Result, error)
}

type chatHandler struct {
	orch   orchestrator
	logger log.Logger
}

// historyResponse is the wire shape of GET /history/{sessionId}.
type historyResponse struct {
	Messages []conversation.Message `json:"messages"`
}

// history returns the full transcript of one session, oldest first.
// An unknown session yields an empty transcript, not an error.
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	messages, err := h.orch.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidSessionID) {
			writeError(w, http.StatusBadRequest, "invalid_session", "session id must be a valid UUID", h.logger)
			return
		}
		h.logger.Error("fetching history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "history_failed", "could not fetch history", h.logger)
		return
	}

	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages}, h.logger)
}

// messageRequest is the wire shape of POST /message.
type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// messageResponse is the wire shape of a successful POST /message.
type messageResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// postMessage runs one conversation turn.
func (h *chatHandler) postMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}

	res, err := h.orch.PostMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message_required", "message is required", h.logger)
		case errors.Is(err, chat.ErrMessageTooLong):
			writeError(w, http.StatusBadRequest, "message_too_long", "message is too long", h.logger)
		case errors.Is(err, chat.ErrInvalidSessionID):
			writeError(w, http.StatusBadRequest, "invalid_session", "session id must be a valid UUID", h.logger)
		default:
			h.logger.Error("posting message", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Reply:     res.Reply,
		SessionID: res.SessionID.String(),
		Degraded:  res.Degraded,
	}, h.logger)
}
