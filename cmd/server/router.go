package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/imagegen-api/internal/api"
	apiMiddleware "github.com/phrazzld/imagegen-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	parameterHandler := api.NewParameterHandler(app.parameterService)
	templateHandler := api.NewTemplateHandler(app.templateService)
	generationHandler := api.NewGenerationHandler(app.generationService)
	resultHandler := api.NewTaskResultHandler(app.results)

	r.Route("/api", func(r chi.Router) {
		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", parameterHandler.ListParameters)
			r.Post("/", parameterHandler.CreateParameter)
			r.Get("/{id}", parameterHandler.GetParameter)
			r.Put("/{id}", parameterHandler.UpdateParameter)
			r.Delete("/{id}", parameterHandler.DeleteParameter)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.ListTemplates)
			r.Post("/", templateHandler.CreateTemplate)
			r.Post("/validate", templateHandler.ValidateTemplate)
			r.Get("/{id}", templateHandler.GetTemplate)
			r.Put("/{id}", templateHandler.UpdateTemplate)
			r.Delete("/{id}", templateHandler.DeleteTemplate)
			r.Get("/{id}/variants", templateHandler.PreviewVariants)
		})

		r.Route("/generations", func(r chi.Router) {
			r.Get("/", generationHandler.ListGenerations)
			r.Post("/", generationHandler.CreateGeneration)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", generationHandler.GetGeneration)
				r.Delete("/", generationHandler.DeleteGeneration)
				r.Post("/start", generationHandler.StartGeneration)
				r.Post("/stop", generationHandler.StopGeneration)
				r.Get("/progress", generationHandler.GetProgress)
				r.Delete("/tasks/{taskID}", generationHandler.DeleteTask)
				r.Post("/tasks/clear", generationHandler.ClearTasks)
				r.Post("/tasks/clear-all", generationHandler.ClearAllTasks)
				r.Post("/enqueue", generationHandler.EnqueueGeneration)
				r.Post("/cancel-queued", generationHandler.CancelQueued)
				r.Post("/sync", generationHandler.SyncResults)
			})
		})

		r.Route("/task-results", func(r chi.Router) {
			r.Get("/", resultHandler.TakeResults)
			r.Group(func(r chi.Router) {
				if app.signer != nil {
					r.Use(apiMiddleware.NewSignatureMiddleware(app.signer).Verify)
				}
				r.Post("/", resultHandler.PutResult)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
