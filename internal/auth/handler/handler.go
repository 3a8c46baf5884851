// Package handler exposes the authentication flow over HTTP: the browser
// callback Strava redirects to, the session redemption endpoint the mobile
// app calls, and the token refresh endpoint.
package handler

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"peryon/internal/auth/device"
	"peryon/internal/auth/models"
	"peryon/internal/auth/service"
	"peryon/internal/platform/middleware"
	"peryon/internal/transport/http/shared"
	dErrors "peryon/pkg/domain-errors"
)

// redirectPage is served to the system browser after the callback. A plain
// 302 to a custom scheme is unreliable across mobile browsers, so the page
// redirects via JavaScript and leaves a tappable link as fallback.
var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Peryon</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <p>Returning to the app&hellip;</p>
  <p><a href="{{.RedirectURL}}">Tap here if nothing happens.</a></p>
  <script>window.location.href = {{.RedirectURL}};</script>
</body>
</html>
`))

// redirectData feeds redirectPage. The deep link uses the app's custom
// scheme, which html/template's URL filter would otherwise reject, so it is
// passed pre-typed. The value is built from url.Values, never raw input.
type redirectData struct {
	RedirectURL template.URL
}

// Handler serves the auth endpoints.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// New constructs the auth handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the auth routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/strava/mobile-callback", h.MobileCallback)
	r.Post("/auth/strava/session", h.RedeemSession)
	r.Post("/api/auth/refresh", h.Refresh)
}

// MobileCallback receives the provider redirect after the user authorizes
// (or declines) on Strava and answers with the deep-link handoff page.
func (h *Handler) MobileCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Scope:            q.Get("scope"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		RedirectURI:      callbackURI(r),
	}

	res, err := h.service.HandleCallback(r.Context(), params)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "callback failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := redirectPage.Execute(w, redirectData{RedirectURL: template.URL(res.RedirectURL)}); err != nil {
		h.logger.ErrorContext(r.Context(), "render redirect page", "error", err)
	}
}

// callbackURI reconstructs this endpoint's public URL. The token endpoint
// validates the redirect URI against the one the authorization request used.
func callbackURI(r *http.Request) string {
	scheme := "https"
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	} else if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

// RedeemSession exchanges a single-use handoff token for the user's
// credential bundle.
func (h *Handler) RedeemSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	grant, err := h.service.RedeemSession(r.Context(), req.SessionToken, device.ParseUserAgent(r.UserAgent()))
	if err != nil {
		h.logger.WarnContext(r.Context(), "session redemption failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, models.SessionResponse{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresIn:    grant.ExpiresIn,
		User: models.SessionUserResponse{
			ID:             grant.User.ID.String(),
			FirstName:      grant.User.FirstName,
			LastName:       grant.User.LastName,
			Email:          grant.User.Email,
			StravaID:       strconv.FormatInt(grant.User.StravaID, 10),
			ProfilePicture: grant.User.ProfilePicture,
		},
	})
}

// Refresh rotates the caller's Strava credential bundle.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.WarnContext(r.Context(), "token refresh failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, res)
}
