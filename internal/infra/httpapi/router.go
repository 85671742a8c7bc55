package httpapi

import (
	"net/http"

	"github.com/framescope/framescope/internal/infra/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))

	ops := metrics.Handler()
	r.Handle("/metrics", ops)
	r.Handle("/healthz", ops)

	r.Post("/upload", h.Upload)
	r.Get("/frames/{sessionID}/{file}", h.ServeFrame)
	r.Get("/download-all/{sessionID}", h.DownloadAll)
	return r
}
