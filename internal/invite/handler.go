package invite

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provisio/internal/platform/middleware"
	"provisio/pkg/httputil"
)

// Handler exposes the admin invite ledger surface.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/invites", h.HandleList)
	r.Post("/invites", h.HandleGenerate)
	r.Delete("/invites/{code}", h.HandleDelete)
	r.Post("/invites/delete", h.HandleBulkDelete)
}

// GenerateRequest mirrors GenerateCommand at the wire level.
type GenerateRequest struct {
	CharClasses  []string `json:"charClasses"`
	Length       int      `json:"length"`
	Quantity     int      `json:"quantity"`
	PerCodeLimit int      `json:"perCodeLimit"`
	Scopes       []Scope  `json:"allowedScopes"`
}

type BulkDeleteRequest struct {
	Codes []string `json:"codes"`
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[GenerateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	invites, err := h.service.Generate(ctx, &GenerateCommand{
		CharClasses:  req.CharClasses,
		Length:       req.Length,
		Quantity:     req.Quantity,
		PerCodeLimit: req.PerCodeLimit,
		Scopes:       req.Scopes,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "generate invites failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, invites)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invites, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list invites failed", "error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invites)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.BulkDelete(ctx, []string{chi.URLParam(r, "code")}); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[BulkDeleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.BulkDelete(ctx, req.Codes); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
