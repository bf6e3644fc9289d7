package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"imagegate/internal/handlers"
	"imagegate/internal/metrics"
	"imagegate/internal/middleware"
)

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, images *handlers.ImagesHandler, requestTimeout time.Duration) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())

	// routes
	r.Route("/api/images", func(r chi.Router) {
		// resize carries the whole fetch+transcode pipeline; its
		// timeout must cover the source download budget.
		r.With(middleware.Timeout(requestTimeout)).
			Get("/resize", images.Resize)
		r.Get("/files/{key}", images.Download)
	})

	// health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
