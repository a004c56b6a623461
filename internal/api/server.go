// Package api exposes the recommendation pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ajeetk7ev/JobLytic/internal/config"
	"github.com/ajeetk7ev/JobLytic/internal/errors"
	"github.com/ajeetk7ev/JobLytic/internal/prefs"
	"github.com/ajeetk7ev/JobLytic/internal/recommend"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	logger     *zap.Logger
	service    *recommend.Service
	normalizer *prefs.Normalizer
	engine     *gin.Engine
	http       *http.Server
}

func NewServer(logger *zap.Logger, cfg *config.Config, service *recommend.Service, normalizer *prefs.Normalizer) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		logger:     logger,
		service:    service,
		normalizer: normalizer,
		engine:     engine,
		http: &http.Server{
			Addr:    ":" + cfg.HTTPPort,
			Handler: engine,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api/v1")
	{
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/recommend", s.recommendJobs)
		api.GET("/jobs/search", s.searchJobs)
	}
}

// Start binds the HTTP listener to the fx lifecycle.
func (s *Server) Start(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
			go func() {
				if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.logger.Error("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.http.Shutdown(ctx)
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listJobs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}

	postings, err := s.service.Fresh(c.Request.Context(), limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": postings, "total": len(postings)})
}

func (s *Server) recommendJobs(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return
	}

	resp, err := s.service.Recommend(c.Request.Context(), userID, pageParam(c), c.Request.URL.Query())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) searchJobs(c *gin.Context) {
	filters := s.normalizer.Filters(c.Request.URL.Query())

	resp, err := s.service.Search(c.Request.Context(), c.Query("query"), pageParam(c), filters)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// renderError maps the error taxonomy onto HTTP statuses. Internal detail
// stays in the logs; the client sees the domain message only.
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.TypeOf(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeSynthesis, errors.ErrTypeUpstream:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
		"type":  string(errors.TypeOf(err)),
	})
}
