package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/halvard/tally/internal/dispatch"
	"github.com/halvard/tally/internal/statsvc"
)

// RouterOptions configure the API router.
type RouterOptions struct {
	AuthEnabled bool
	AuthToken   string
	RateRPS     float64
	RateBurst   int
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(dispatcher *dispatch.Dispatcher, svc *statsvc.Service, opts RouterOptions) chi.Router {
	h := NewHandler(dispatcher, svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.AuthToken))

	// Webhook ingestion, rate limited separately from reads.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(opts.RateRPS, opts.RateBurst))
		r.Post("/events", h.HandleEvent)
	})

	// Aggregate reads.
	r.Get("/stats", h.GetStats)
	r.Get("/uploaders", h.GetUploaders)
	r.Get("/links", h.GetLinks)

	return r
}
