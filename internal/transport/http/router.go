// Package httptransport assembles the HTTP surface: the public registration
// endpoints, the session-gated admin API, and operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provisio/internal/admin"
	"provisio/internal/invite"
	"provisio/internal/platform/middleware"
	"provisio/internal/provision"
	"provisio/internal/session"
	"provisio/internal/tenant"
	dErrors "provisio/pkg/domain-errors"
	"provisio/pkg/httputil"
)

// Deps carries the wired handlers and services the router mounts.
type Deps struct {
	Logger *slog.Logger

	Provision *provision.Handler
	Session   *session.Handler
	Sessions  *session.Service
	Tenants   *tenant.Handler
	Invites   *invite.Handler
	Admin     *admin.Handler

	// Health reports store reachability; nil means no external store.
	Health func(ctx context.Context) error
}

// NewRouter wires all endpoints with the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	d.Provision.Register(r)

	r.Route("/admin", func(ar chi.Router) {
		d.Session.Register(ar)

		ar.Route("/api", func(api chi.Router) {
			api.Use(session.Require(d.Sessions))
			d.Tenants.Register(api)
			d.Invites.Register(api)
			d.Admin.Register(api)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			if err := d.Health(req.Context()); err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "store unreachable"))
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
