// Package server exposes the orchestrator over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/metrics"
	"github.com/zen-systems/fieldscore/pkg/orchestrator"
)

// Server routes HTTP requests to an orchestrator. Analysis endpoints always
// answer 200 with an envelope; only undecodable bodies get a 400.
type Server struct {
	orch   *orchestrator.Orchestrator
	engine *gin.Engine
}

// New creates a server and registers its routes.
func New(o *orchestrator.Orchestrator) *Server {
	metrics.Register()

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{orch: o, engine: engine}
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	{
		v1.GET("/models", s.handleModels)
		v1.POST("/evidence", s.handleEvidence)
		v1.POST("/thematic", s.handleThematic)
		v1.POST("/story", s.handleStory)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "fieldscore",
		"adapters": s.orch.Router().Adapters(),
	})
}

func (s *Server) handleModels(c *gin.Context) {
	r := s.orch.Router()
	c.JSON(http.StatusOK, gin.H{
		"routes":   r.GetRoutes(),
		"adapters": r.Adapters(),
		"aliases":  r.GetAliases().ListAliases(),
	})
}

func (s *Server) handleEvidence(c *gin.Context) {
	var req orchestrator.EvidenceRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.orch.Evidence(c.Request.Context(), req))
}

func (s *Server) handleThematic(c *gin.Context) {
	var req orchestrator.ThematicRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.orch.Thematic(c.Request.Context(), req))
}

func (s *Server) handleStory(c *gin.Context) {
	var req orchestrator.StoryRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.orch.Story(c.Request.Context(), req))
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, envelope.Failure(envelope.CodeInput, "invalid request body: "+err.Error()))
		return false
	}
	return true
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	}
}
