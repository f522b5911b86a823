// Package api provides the HTTP API server and handlers for the Leafread application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leafreadapp/leafread-server/internal/http/response"
	"github.com/leafreadapp/leafread-server/internal/service"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	bookService     *service.BookService
	settingsService *service.SettingsService
	searchService   *service.SearchService
	router          *chi.Mux
	corsOrigins     []string
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// corsOrigins lists the browser UI origins allowed to call the API.
func NewServer(bookService *service.BookService, settingsService *service.SettingsService, searchService *service.SearchService, corsOrigins []string, logger *slog.Logger) *Server {
	s := &Server{
		bookService:     bookService,
		settingsService: settingsService,
		searchService:   searchService,
		router:          chi.NewRouter(),
		corsOrigins:     corsOrigins,
		logger:          logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// The reader UI runs on a different local origin.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Books.
		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/", s.handleCreateBook)
			r.Post("/import", s.handleImportBook)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBook)
				r.Delete("/", s.handleDeleteBook)
				r.Get("/export", s.handleExportBook)
				r.Put("/current-page", s.handleSetCurrentPage)
				r.Put("/settings", s.handleUpdateBookSettings)
				r.Get("/nav", s.handleNavItems)
				r.Get("/search", s.handleSearchPages)

				r.Route("/pages", func(r chi.Router) {
					r.Post("/", s.handleAddPage)
					r.Delete("/{pageID}", s.handleDeletePage)
				})

				r.Route("/bookmarks", func(r chi.Router) {
					r.Post("/", s.handleAddBookmark)
					r.Patch("/{bookmarkID}", s.handleUpdateBookmark)
					r.Delete("/{bookmarkID}", s.handleDeleteBookmark)
				})
			})
		})

		// Trash.
		r.Route("/trash", func(r chi.Router) {
			r.Get("/", s.handleListTrash)
			r.Post("/{id}/restore", s.handleRestoreBook)
		})

		// Settings.
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Patch("/", s.handleUpdateSettings)
		})
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}
