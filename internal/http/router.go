package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terrakit/terrakit/internal/http/appointment"
	"github.com/terrakit/terrakit/internal/http/audit"
	"github.com/terrakit/terrakit/internal/http/changes"
	"github.com/terrakit/terrakit/internal/http/confirmation"
	"github.com/terrakit/terrakit/internal/http/importparcels"
	authmw "github.com/terrakit/terrakit/internal/http/middleware"
	"github.com/terrakit/terrakit/internal/http/planquote"
	"github.com/terrakit/terrakit/internal/http/sale"
)

func New(
	salesV1 *sale.Handler,
	confirmationV1 *confirmation.Handler,
	appointmentsV1 *appointment.Handler,
	auditV1 *audit.Handler,
	importV1 *importparcels.Handler,
	plansV1 *planquote.Handler,
	changesV1 *changes.Handler,
	jwtSecret string,
	allowedOrigins []string,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.Auth(jwtSecret))

		r.Route("/sales", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			salesV1.Routes(r)
		})

		r.Route("/confirmation", func(r chi.Router) {
			confirmationV1.Routes(r)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			appointmentsV1.Routes(r)
		})

		r.Route("/audit", func(r chi.Router) {
			auditV1.Routes(r)
		})

		r.Route("/import", importV1.Routes)

		r.Route("/plans", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			plansV1.Routes(r)
		})

		r.Route("/changes", func(r chi.Router) {
			changesV1.Routes(r)
		})
	})

	return router
}
