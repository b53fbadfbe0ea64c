package provision

import (
	"log/slog"
	"net"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"provisio/internal/platform/middleware"
	"provisio/internal/settings"
	"provisio/internal/tenant"
	"provisio/pkg/httputil"
)

// Handler exposes the public registration surface.
type Handler struct {
	workflow *Service
	tenants  *tenant.Service
	settings *settings.Service
	logger   *slog.Logger
}

func NewHandler(workflow *Service, tenants *tenant.Service, settingsSvc *settings.Service, logger *slog.Logger) *Handler {
	return &Handler{workflow: workflow, tenants: tenants, settings: settingsSvc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.HandlePage)
	r.Post("/", h.HandleRegister)
}

type tenantOption struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	SKUs  []string `json:"skus"`
}

type pageResponse struct {
	Tenants        []tenantOption `json:"tenants"`
	CaptchaSiteKey string         `json:"captchaSiteKey,omitempty"`
	RequireInvite  bool           `json:"requireInvite"`
}

// HandlePage returns the data the registration form needs: selectable tenants
// with their license names, plus captcha and invite configuration. Credentials
// never leave the server.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tenants, err := h.tenants.List(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	options := make([]tenantOption, 0, len(tenants))
	for _, t := range tenants {
		names := t.SKUNames()
		sort.Strings(names)
		options = append(options, tenantOption{ID: t.ID, Label: t.Label, SKUs: names})
	}

	httputil.WriteJSON(w, http.StatusOK, pageResponse{
		Tenants:        options,
		CaptchaSiteKey: snap.CaptchaSiteKey,
		RequireInvite:  snap.RequireInvite,
	})
}

type registerRequest struct {
	TenantID     string `json:"tenantId"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	SKU          string `json:"sku"`
	InviteCode   string `json:"inviteCode,omitempty"`
	CaptchaToken string `json:"captchaToken,omitempty"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	Partial bool   `json:"partial,omitempty"`
	Address string `json:"address,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[registerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.workflow.Provision(ctx, &Request{
		TenantID:     req.TenantID,
		Username:     req.Username,
		Password:     req.Password,
		SKUName:      req.SKU,
		InviteCode:   req.InviteCode,
		CaptchaToken: req.CaptchaToken,
		RemoteIP:     clientIP(r),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"error", err, "tenant_id", req.TenantID, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	if result.Partial {
		httputil.WriteJSON(w, http.StatusMultiStatus, registerResponse{
			Success: false,
			Partial: true,
			Address: result.Address,
			Message: result.LicenseError,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		Success: true,
		Address: result.Address,
	})
}

// clientIP prefers the edge-supplied header and falls back to the socket peer.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
