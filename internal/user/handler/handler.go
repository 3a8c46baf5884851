// Package handler exposes the user profile endpoint.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"peryon/internal/transport/http/shared"
	"peryon/internal/user/store"
	dErrors "peryon/pkg/domain-errors"
	"peryon/pkg/platform/sentinel"
)

// ProfileResponse is the public view of a user.
type ProfileResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	StravaID string `json:"stravaId"`
}

// Handler serves user lookups.
type Handler struct {
	users  store.Store
	logger *slog.Logger
}

// New constructs the user handler.
func New(users store.Store, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// Register mounts the user routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/user/{userID}", h.GetUser)
}

// GetUser returns a user's public profile. Tokens never appear here.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "user not found"))
			return
		}
		h.logger.ErrorContext(r.Context(), "user lookup failed", "error", err, "user_id", id)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, ProfileResponse{
		ID:       user.ID.String(),
		Name:     user.FullName(),
		Email:    user.Email,
		StravaID: strconv.FormatInt(user.StravaID, 10),
	})
}
