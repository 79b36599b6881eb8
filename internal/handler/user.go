package handler

import (
	"log/slog"
	"net/http"

	"github.com/tahmid/notestack/internal/auth"
	"github.com/tahmid/notestack/internal/service"
)

// UserHandler serves the authenticated user's own account.
type UserHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(authSvc *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{authSvc: authSvc, logger: logger}
}

// HandleMe returns the caller's profile. The frontend uses this on load to
// check whether the stored token is still good.
//
// HTTP: GET /api/users/me (authenticated)
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "authentication required",
		})
		return
	}

	user, err := h.authSvc.GetUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDeleteMe deletes the caller's account, their notes, and the stored
// files behind them.
//
// HTTP: DELETE /api/users/me (authenticated)
func (h *UserHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "authentication required",
		})
		return
	}

	if err := h.authSvc.DeleteAccount(r.Context(), identity.UserID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
