package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/voluntr/oppsearch/internal/metrics"
	"github.com/voluntr/oppsearch/internal/repository"
	"github.com/voluntr/oppsearch/internal/search"
)

// Server - тонкий HTTP-фасад над поисковым контроллером.
// Вся логика живёт в internal/search, здесь только JSON и коды ответов.
type Server struct {
	controller *search.Controller
	searchLog  repository.SearchLogRepository
	logger     *zap.Logger
	router     chi.Router
}

func NewServer(controller *search.Controller, searchLog repository.SearchLogRepository, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		controller: controller,
		searchLog:  searchLog,
		logger:     logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/smart", s.handleSmartSearch)
		r.Post("/search/multi", s.handleMultiSearch)
		r.Post("/search/retry", s.handleRetrySearch)
		r.Post("/locations/validate", s.handleValidateLocations)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleClearCache)
		r.Put("/cache/config", s.handleConfigureCache)

		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/runs", s.handleRecentRuns)
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second, // дольше таймаута middleware
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}
