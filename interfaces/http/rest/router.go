package rest

import (
	"net/http"

	"kgraph-backend/infrastructure/di"
	"kgraph-backend/interfaces/http/rest/handlers"
	"kgraph-backend/interfaces/http/rest/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	return &Router{
		container: container,
		logger:    container.Logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	if rt.container.Config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Namespace-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireBearer())

		nodeHandler := handlers.NewNodeHandler(rt.container.AccessService, rt.container.GraphService, rt.logger)
		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateNode)
			r.Post("/upsert", nodeHandler.UpsertNode)
			r.Get("/", nodeHandler.ListNodes)
			r.Get("/{nodeID}", nodeHandler.GetNode)
			r.Put("/{nodeID}", nodeHandler.UpdateNode)
			r.Patch("/{nodeID}", nodeHandler.PatchNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
			r.Get("/{nodeID}/relationships", nodeHandler.GetRelationships)
		})

		r.Route("/relationships", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateRelationship)
			r.Delete("/", nodeHandler.DeleteRelationship)
		})

		// Scoped read escape hatch
		r.Post("/query", nodeHandler.RunQuery)

		eventHandler := handlers.NewEventHandler(rt.container.AccessService, rt.container.EventService, rt.logger)
		r.Route("/events", func(r chi.Router) {
			r.Post("/", eventHandler.CreateEvent)
		})
		r.Route("/cursors", func(r chi.Router) {
			r.Post("/", eventHandler.CreateCursor)
			r.Get("/", eventHandler.GetCursor)
			r.Patch("/{cursorID}", eventHandler.UpdateCursor)
			r.Get("/{cursorID}/events", eventHandler.ReadEvents)
		})

		ingestHandler := handlers.NewIngestHandler(rt.container.AccessService, rt.container.IngestService, rt.logger)
		r.Post("/documents", ingestHandler.Ingest)

		searchHandler := handlers.NewSearchHandler(rt.container.AccessService, rt.container.SearchService, rt.logger)
		r.Post("/search", searchHandler.Search)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
