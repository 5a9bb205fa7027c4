package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfman30/gemini-bridge/internal/bridge"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

const maxReplyBody = 64 << 10

// Replier answers one query for a conversation.
type Replier interface {
	Reply(ctx context.Context, query string, bctx bridge.Context) bridge.Reply
}

// ReplyHandler exposes the bot over HTTP.
type ReplyHandler struct {
	bot    Replier
	logger *logging.Logger
}

func NewReplyHandler(bot Replier, logger *logging.Logger) *ReplyHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReplyHandler{bot: bot, logger: logger}
}

type replyRequest struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Query     string `json:"query"`
}

// Content is null when the bot has nothing to send.
type replyResponse struct {
	Type      bridge.ReplyType `json:"type"`
	Content   *string          `json:"content"`
	SessionID string           `json:"session_id"`
}

// Reply handles POST /v1/reply.
func (h *ReplyHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReplyBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply := h.bot.Reply(r.Context(), req.Query, bridge.Context{
		Type:      bridge.ParseContextType(req.Type),
		SessionID: sessionID,
	})
	if reply.Type == bridge.ReplyError {
		h.logger.Warn("reply returned error", "session_id", sessionID, "content", reply.Content)
	}

	resp := replyResponse{Type: reply.Type, SessionID: sessionID}
	if !reply.Empty() {
		resp.Content = &reply.Content
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
