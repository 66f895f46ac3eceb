// Package httpapi exposes the REST and websocket API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/subautotrans/subautotrans/internal/service"
)

type Server struct {
	svc    *service.Service
	hub    *Hub
	router chi.Router
	server *http.Server
}

func NewServer(svc *service.Service, hub *Hub) *Server {
	s := &Server{
		svc: svc,
		hub: hub,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws/progress", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleInfo)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.handleCreateTask)
			r.Get("/", s.handleListTasks)
			r.Get("/stats", s.handleTaskStats)
			r.Post("/directory", s.handleCreateDirectoryTasks)
			r.Post("/pause-all", s.handlePauseAll)
			r.Post("/pause-selected", s.handlePauseSelected)
			r.Delete("/all", s.handleDeleteAll)
			r.Post("/delete-selected", s.handleDeleteSelected)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Delete("/", s.handleCancelTask)
				r.Post("/retry", s.handleRetryTask)
			})
		})

		r.Route("/watchers", func(r chi.Router) {
			r.Post("/", s.handleCreateWatcher)
			r.Get("/", s.handleListWatchers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWatcher)
				r.Delete("/", s.handleDeleteWatcher)
				r.Post("/toggle", s.handleToggleWatcher)
				r.Post("/scan", s.handleScanWatcher)
			})
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
	})

	s.router = r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
