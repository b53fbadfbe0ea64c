package tenant

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provisio/internal/platform/middleware"
	"provisio/pkg/httputil"
)

// Handler exposes the admin tenant CRUD surface.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/tenants", h.HandleList)
	r.Post("/tenants", h.HandleCreate)
	r.Get("/tenants/{id}", h.HandleGet)
	r.Patch("/tenants/{id}", h.HandleUpdate)
	r.Delete("/tenants/{id}", h.HandleDelete)
}

// CreateRequest mirrors CreateCommand at the wire level.
type CreateRequest struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	ClientID      string          `json:"clientId"`
	ClientSecret  string          `json:"clientSecret"`
	DirectoryID   string          `json:"directoryId"`
	DefaultDomain string          `json:"defaultDomain"`
	SKUMap        json.RawMessage `json:"skuMap"`
}

// UpdateRequest is a partial update; absent fields stay unchanged.
type UpdateRequest struct {
	Label         *string         `json:"label"`
	ClientID      *string         `json:"clientId"`
	ClientSecret  *string         `json:"clientSecret"`
	DirectoryID   *string         `json:"directoryId"`
	DefaultDomain *string         `json:"defaultDomain"`
	SKUMap        json.RawMessage `json:"skuMap"`
}

// Response redacts the client secret.
type Response struct {
	ID            string            `json:"id"`
	Label         string            `json:"label"`
	ClientID      string            `json:"clientId"`
	DirectoryID   string            `json:"directoryId"`
	DefaultDomain string            `json:"defaultDomain"`
	SKUMap        map[string]string `json:"skuMap"`
}

func toResponse(t *Tenant) *Response {
	return &Response{
		ID:            t.ID,
		Label:         t.Label,
		ClientID:      t.ClientID,
		DirectoryID:   t.DirectoryID,
		DefaultDomain: t.DefaultDomain,
		SKUMap:        t.SKUMap,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.Create(ctx, &CreateCommand{
		ID:            req.ID,
		Label:         req.Label,
		ClientID:      req.ClientID,
		ClientSecret:  req.ClientSecret,
		DirectoryID:   req.DirectoryID,
		DefaultDomain: req.DefaultDomain,
		SKUMap:        req.SKUMap,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "create tenant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenants, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list tenants failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	out := make([]*Response, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	t, err := h.service.Update(ctx, chi.URLParam(r, "id"), &UpdateCommand{
		Label:         req.Label,
		ClientID:      req.ClientID,
		ClientSecret:  req.ClientSecret,
		DirectoryID:   req.DirectoryID,
		DefaultDomain: req.DefaultDomain,
		SKUMap:        req.SKUMap,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "update tenant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
