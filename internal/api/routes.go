package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers bundles the API's handlers for route registration.
type Handlers struct {
	Auth   *AuthHandler
	Jobs   *JobHandler
	Batch  *BatchHandler
	Labels *LabelHandler
	Users  *UserHandler
}

// Routes returns a function registering every /api route on a chi router.
// authenticate guards everything except registration and login.
func (h *Handlers) Routes(authenticate func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/jobs", h.Jobs.CreateJob)
			r.Route("/jobs/{id}", func(r chi.Router) {
				r.Get("/", h.Jobs.GetJob)
				r.Post("/items", h.Jobs.UploadItems)
				r.Get("/progress", h.Jobs.Progress)
				r.Post("/aggregate", h.Jobs.Aggregate)
				r.Get("/batches/available", h.Batch.Available)
				r.Get("/batches/next", h.Batch.Next)
			})

			r.Route("/batches/{id}", func(r chi.Router) {
				r.Post("/claim", h.Batch.Claim)
				r.Delete("/claim", h.Batch.Unclaim)
				r.Post("/complete", h.Batch.Complete)
				r.Get("/items", h.Batch.Items)
			})

			r.Put("/items/{id}/labels", h.Labels.Submit)
			r.Get("/users/{id}/rating", h.Users.Rating)
		})
	}
}
