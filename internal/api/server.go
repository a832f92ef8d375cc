// Package api is a thin gin HTTP host demonstrating the core pipeline's
// public Convert API. It is explicitly outside the core's scope (spec
// §1 excludes HTTP serving): a real deployment's host layer is
// responsible for its own request handling, auth, and rate limiting.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/config"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/internal/pipeline"
)

// Server wraps the pipeline behind a single conversion endpoint.
type Server struct {
	configManager *config.Manager
	pipeline      *pipeline.Pipeline
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer constructs the HTTP host around an already-wired Pipeline.
func NewServer(configManager *config.Manager, p *pipeline.Pipeline, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		configManager: configManager,
		pipeline:      p,
		logger:        logger,
		router:        router,
	}
	s.setupRoutes()
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/convert", s.handleConvert)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

type convertRequest struct {
	Text           string `json:"text" binding:"required"`
	RequestID      string `json:"request_id"`
	ValidationMode string `json:"validation_mode"`
}

func (s *Server) handleConvert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := domain.ValidationMode(req.ValidationMode)
	if mode == "" {
		mode = domain.ValidationMode(s.configManager.GetConfig().Pipeline.DefaultValidationMode)
	}

	requestID := req.RequestID
	if requestID == "" {
		if v, ok := c.Get("request_id"); ok {
			requestID, _ = v.(string)
		}
	}

	result, err := s.pipeline.Convert(c.Request.Context(), req.Text, requestID, mode)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", req.RequestID).Error("conversion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if result.Status != pipeline.StatusCompleted {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept-Encoding, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
