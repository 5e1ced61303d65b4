// Package api exposes the Nimbus drive over HTTP.
//
// Authentication is out of scope: callers identify themselves with the
// X-Nimbus-Actor header, which an upstream proxy is expected to have
// verified.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/api/handlers"
	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/metrics"
	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// Dependencies carries everything the API needs to serve requests.
type Dependencies struct {
	Drive   *drive.Drive
	Entries metadata.Store
	Blobs   blob.Store
	Users   users.Store
}

// NewRouter builds the HTTP router with all routes and middleware.
func NewRouter(deps Dependencies, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	health := handlers.NewHealthHandler(deps.Entries, deps.Blobs, deps.Users)
	userHandler := handlers.NewUserHandler(deps.Drive, deps.Users)
	entryHandler := handlers.NewEntryHandler(deps.Drive)
	trashHandler := handlers.NewTrashHandler(deps.Drive)
	shareHandler := handlers.NewShareHandler(deps.Drive, deps.Users)

	r.Get("/health", health.Live)
	r.Get("/health/ready", health.Ready)

	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Provision)
			r.Get("/", userHandler.List)
			r.Get("/{username}", userHandler.Get)
			r.Get("/{username}/usage", userHandler.Usage)
			r.Post("/{username}/reconcile", userHandler.Reconcile)
		})

		// Everything below acts on behalf of a user.
		r.Group(func(r chi.Router) {
			r.Use(handlers.ActorResolver(deps.Users))

			r.Get("/entries", entryHandler.List)
			r.Post("/files", entryHandler.Upload)
			r.Post("/directories", entryHandler.Mkdir)

			r.Route("/entries/{id}", func(r chi.Router) {
				r.Get("/", entryHandler.Get)
				r.Get("/content", entryHandler.Download)
				r.Post("/rename", entryHandler.Rename)
				r.Post("/move", entryHandler.Move)
				r.Delete("/", trashHandler.Delete)

				r.Put("/shares/{grantee}", shareHandler.Share)
				r.Delete("/shares/{grantee}", shareHandler.Revoke)
				r.Put("/permissions", shareHandler.SetPermissions)
			})

			r.Get("/trash", trashHandler.List)
			r.Post("/trash/{id}/restore", trashHandler.Restore)
			r.Delete("/trash/{id}", trashHandler.Purge)

			r.Get("/shared", shareHandler.SharedWithMe)
		})
	})

	return r
}

// requestLogger logs each request with its status, size and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.Info("%s %s -> %d (%d bytes in %s)",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}
