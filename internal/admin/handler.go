package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provisio/internal/license"
	"provisio/internal/platform/middleware"
	"provisio/internal/settings"
	"provisio/internal/tenant"
	dErrors "provisio/pkg/domain-errors"
	"provisio/pkg/httputil"
)

// Handler wires the cross-tenant admin operations that are not owned by a
// single domain package: users, licenses, and settings.
type Handler struct {
	users    *UserDirectory
	licenses *license.Service
	tenants  *tenant.Service
	settings *settings.Service
	logger   *slog.Logger
}

func NewHandler(users *UserDirectory, licenses *license.Service, tenants *tenant.Service, settingsSvc *settings.Service, logger *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		licenses: licenses,
		tenants:  tenants,
		settings: settingsSvc,
		logger:   logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/users", h.HandleListUsers)
	r.Delete("/users/{tenantID}/{id}", h.HandleDeleteUser)
	r.Patch("/users/{tenantID}/{id}/password", h.HandleResetPassword)
	r.Get("/licenses", h.HandleListLicenses)
	r.Get("/settings", h.HandleGetSettings)
	r.Post("/settings", h.HandleUpdateSettings)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.users.List(ctx, snap)
	if err != nil {
		h.logger.ErrorContext(ctx, "user listing failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	tenantID := chi.URLParam(r, "tenantID")
	accountID := chi.URLParam(r, "id")

	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.users.Delete(ctx, snap, tenantID, accountID); err != nil {
		h.logger.WarnContext(ctx, "user deletion rejected",
			"error", err, "tenant_id", tenantID, "account_id", accountID, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "user deleted",
		"tenant_id", tenantID, "account_id", accountID, "request_id", requestID)
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	tenantID := chi.URLParam(r, "tenantID")
	accountID := chi.URLParam(r, "id")

	req, ok := httputil.DecodeJSON[resetPasswordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters"))
		return
	}

	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.users.ResetPassword(ctx, snap, tenantID, accountID, req.Password); err != nil {
		h.logger.WarnContext(ctx, "password reset rejected",
			"error", err, "tenant_id", tenantID, "account_id", accountID, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListLicenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenants, err := h.tenants.List(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	usages, err := h.licenses.Aggregate(ctx, tenants)
	if err != nil {
		h.logger.ErrorContext(ctx, "license aggregation failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usages)
}

func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.settings.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	next, ok := httputil.DecodeJSON[settings.Settings](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.settings.Update(ctx, next); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "settings updated", "request_id", requestID)
	httputil.WriteJSON(w, http.StatusOK, next)
}
