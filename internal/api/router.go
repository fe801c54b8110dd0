// Package api assembles the HTTP surface of the invoice service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-extractor/internal/api/handlers"
	"github.com/dvloznov/invoice-extractor/internal/api/middleware"
)

// NewRouter registers the API routes behind the standard middleware chain.
func NewRouter(log zerolog.Logger, invoices *handlers.InvoicesHandler, jobs *handlers.JobsHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", invoices.ListInvoices)
			r.Get("/export", invoices.Export)
			r.Post("/parse", invoices.Parse)
			r.Post("/jobs", invoices.CreateJob)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobs.ListJobs)
			r.Get("/{id}", jobs.GetJob)
		})
	})

	return r
}
