package http

import (
	"log/slog"
	"net/http"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/service"
	"github.com/stonenotes/stonenotes/pkg/httputil"
)

// UserHandler handles HTTP requests for the caller's own account.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// GetProfile handles GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.Identify(r.Context())
	if !ok {
		writeUnauthenticated(w, r)
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}
