// Package remoteserver is a minimal archive-z2 HTTP remote: it
// serves a repository directory laid out the way the fetch side expects
// to read it — a `config` file, `refs/heads/<ref>` files, `refs/summary`,
// and loose objects under `objects/` — over three route families. It
// exists for integration tests (pair it with
// pkg/fetcher.HTTPFetcher end-to-end) and as the reference "serve a repo"
// command, the same role pkg/api plays for the control plane: a thin
// chi router plus a graceful-shutdown *http.Server wrapper.
package remoteserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/ostreesync/internal/logger"
)

// NewRouter builds the chi router serving the repository rooted at root.
// Routes:
//
//	GET /config              - the repo's key/value config file
//	GET /refs/heads/{ref...} - a ref's current digest, trimmed text
//	GET /refs/summary        - every ref as "<digest> <ref>" lines
//	GET /objects/{path...}   - loose objects and their .meta siblings
func NewRouter(root string) http.Handler {
	repo := &repo{root: root}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/config", repo.serveConfig)
	r.Get("/refs/summary", repo.serveSummary)
	r.Get("/refs/heads/*", repo.serveRefHead)
	r.Get("/objects/*", repo.serveObject)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.DebugCtx(r.Context(), "remote request started",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(r.Context(), "remote request completed",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start).String())
	})
}
