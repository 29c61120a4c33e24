package server

import (
	"log/slog"
	"net/http"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/handlers"
	"olist-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, dashboard config.DashboardConfig, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, dashboard),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger, dashboard),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("POST /admin/reload", s.apiHandlers.HandleReload)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/monthly", s.apiHandlers.HandleMonthly)
	s.mux.HandleFunc("GET /api/cities", s.apiHandlers.HandleCities)
	s.mux.HandleFunc("GET /api/selection", s.apiHandlers.HandleSelection)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/monthly", s.sseHandlers.HandleMonthly)
	s.mux.HandleFunc("GET /sse/cities", s.sseHandlers.HandleCities)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
