package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provisio/internal/platform/middleware"
	dErrors "provisio/pkg/domain-errors"
	"provisio/pkg/httputil"
)

// Handler exposes setup, login, and logout. These routes are public: setup is
// self-locking and login is the door itself.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/setup", h.HandleSetupStatus)
	r.Post("/setup", h.HandleSetup)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
}

type credentialsRequest struct {
	Password string `json:"password"`
}

func (h *Handler) HandleSetupStatus(w http.ResponseWriter, r *http.Request) {
	installed, err := h.service.Installed(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"installed": installed})
}

func (h *Handler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[credentialsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Setup(ctx, req.Password); err != nil {
		h.logger.WarnContext(ctx, "setup rejected", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "admin credential installed", "request_id", requestID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[credentialsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := h.service.Login(ctx, req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.logger.WarnContext(ctx, "login rejected", "request_id", requestID)
		} else {
			h.logger.ErrorContext(ctx, "login failed", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.service.ttl.Seconds()),
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := TokenFromRequest(r); token != "" {
		if err := h.service.Logout(ctx, token); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
