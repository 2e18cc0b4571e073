package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tribe-otp/internal/application/verification"
	"github.com/tribe-otp/internal/config"
	"github.com/tribe-otp/internal/transport/http/handler"
	appmiddleware "github.com/tribe-otp/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by middleware.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 per client IP.
	codeRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, cfg.TrustProxyHeaders)

	verificationSvc := verification.NewService(verification.ServiceDeps{
		Store:     deps.CodeStore,
		Mailer:    deps.Mailer,
		SMSSender: deps.SMSSender,
		CodeTTL:   deps.CodeTTL,
	})

	healthH := handler.NewHealthHandler(deps.Ready)
	verificationH := handler.NewVerificationHandler(verificationSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(codeRL.Limit)
			r.Post("/verification-codes/request", verificationH.Request)
			r.Post("/verification-codes/verify", verificationH.Verify)
		})
	})

	return r
}
