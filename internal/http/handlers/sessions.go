package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/gemini-bridge/internal/http/middleware"
	"github.com/wolfman30/gemini-bridge/internal/session"
	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

// SessionClearer drops a conversation's history.
type SessionClearer interface {
	Clear(ctx context.Context, id string) error
}

// AdminSessionsHandler hosts operator endpoints for conversation state.
type AdminSessionsHandler struct {
	sessions SessionClearer
	logger   *logging.Logger
}

func NewAdminSessionsHandler(sessions SessionClearer, logger *logging.Logger) *AdminSessionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{sessions: sessions, logger: logger}
}

// Clear handles DELETE /admin/sessions/{sessionID}.
func (h *AdminSessionsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if id == "" {
		jsonError(w, "missing session id", http.StatusBadRequest)
		return
	}

	if err := h.sessions.Clear(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrInvalidID) {
			jsonError(w, "invalid session id", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to clear session", "session_id", id, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	subject, _ := middleware.AdminSubject(r.Context())
	h.logger.Info("session cleared by admin", "session_id", id, "admin", subject)
	w.WriteHeader(http.StatusNoContent)
}
