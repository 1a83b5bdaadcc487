package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
	"github.com/Apps-1-2-3/medai-assistant/internal/engine"
	"github.com/Apps-1-2-3/medai-assistant/internal/history"
	"github.com/Apps-1-2-3/medai-assistant/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	config      *domain.Config
	logger      *logrus.Logger
	recommender *engine.Recommender
	store       history.Store // optional
	router      *gin.Engine
	server      *http.Server
	limiter     *middleware.RateLimiter // optional
}

// NewServer creates a new HTTP server instance. store may be nil when
// consultation history is disabled.
func NewServer(cfg *domain.Config, logger *logrus.Logger, recommender *engine.Recommender, store history.Store) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(requestLogger(logger))
	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(float64(cfg.Server.RateLimit), cfg.Server.RateBurst)
		router.Use(limiter.Handler())
	}

	server := &Server{
		config:      cfg,
		logger:      logger,
		recommender: recommender,
		store:       store,
		router:      router,
		limiter:     limiter,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler exposes the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.limiter != nil {
		defer s.limiter.Close()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/recommendations", s.handleRecommend)
		v1.GET("/consultations", s.handleListConsultations)
		v1.GET("/consultations/:id", s.handleGetConsultation)
		v1.GET("/consultations/export", s.handleExportConsultations)
		v1.DELETE("/consultations/:id", s.handleDeleteConsultation)
		v1.GET("/reference/interactions", s.handleListInteractionRules)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// handleRecommend evaluates a patient record and returns recommendations,
// influence explanations and interaction warnings. Evaluation itself never
// fails; only malformed input is rejected.
func (s *Server) handleRecommend(c *gin.Context) {
	var patient domain.PatientRecord
	if err := c.ShouldBindJSON(&patient); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid patient record", err.Error())
		return
	}

	result, source := s.recommender.Recommend(c.Request.Context(), &patient)

	response := domain.ConsultationResponse{
		Recommendations: result.Recommendations,
		Explanations:    result.Explanations,
		Interactions:    result.Interactions,
		Source:          source,
		Timestamp:       time.Now().UTC(),
	}

	if s.store != nil {
		consultation := consultationFromResult(&patient, result, source)
		if err := s.store.Save(c.Request.Context(), consultation); err != nil {
			// Persistence failures never block the clinical response.
			s.logger.WithError(err).WithField("correlation_id", c.GetString("correlation_id")).
				Error("Failed to save consultation record")
		} else {
			response.ConsultationID = consultation.ID
		}
	}

	c.JSON(http.StatusOK, response)
}

// handleListConsultations returns stored consultations newest-first.
func (s *Server) handleListConsultations(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrInvalidInput, "Consultation history is disabled", "")
		return
	}

	limit := parseIntQuery(c, "limit", 20, 1, 100)
	offset := parseIntQuery(c, "offset", 0, 0, 1<<30)

	consultations, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to list consultations", err.Error())
		return
	}

	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to count consultations", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"consultations": consultations,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

// handleGetConsultation retrieves a single consultation by ID.
func (s *Server) handleGetConsultation(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrInvalidInput, "Consultation history is disabled", "")
		return
	}

	id := c.Param("id")
	consultation, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to load consultation", err.Error())
		return
	}
	if consultation == nil {
		s.respondError(c, http.StatusNotFound, "NOT_FOUND", "Consultation not found", "")
		return
	}

	c.JSON(http.StatusOK, consultation)
}

// handleDeleteConsultation removes a consultation record.
func (s *Server) handleDeleteConsultation(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrInvalidInput, "Consultation history is disabled", "")
		return
	}

	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to delete consultation", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// handleExportConsultations streams the full history as a JSON document.
func (s *Server) handleExportConsultations(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrInvalidInput, "Consultation history is disabled", "")
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=consultations.json")
	if err := s.store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Failed to export consultations")
	}
}

// handleListInteractionRules serves the built-in interaction reference catalog.
func (s *Server) handleListInteractionRules(c *gin.Context) {
	rules := s.recommender.InteractionCatalog()
	c.JSON(http.StatusOK, gin.H{
		"interactions": rules,
		"count":        len(rules),
	})
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	apiErr := domain.NewAPIError(code, message, details, c.GetString("correlation_id"))
	c.AbortWithStatusJSON(status, gin.H{"error": apiErr})
}

// consultationFromResult builds a history record from the intake and result.
func consultationFromResult(p *domain.PatientRecord, result *domain.RecommendationResult, source string) *history.Consultation {
	return &history.Consultation{
		PatientAge:         p.Age,
		PatientGender:      string(p.Gender),
		HeartRate:          p.HeartRate,
		BloodType:          p.BloodType,
		Allergies:          p.Allergies,
		MedicalHistory:     p.MedicalHistory,
		Symptoms:           p.Symptoms,
		CurrentMedications: p.CurrentMedications,
		Recommendations:    result.Recommendations,
		Explanations:       result.Explanations,
		Interactions:       result.Interactions,
		Source:             source,
	}
}

func parseIntQuery(c *gin.Context, name string, def, min, max int) int {
	value := def
	if raw, ok := c.GetQuery(name); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return def
		}
		value = parsed
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// requestLogger logs each request with its correlation ID and latency.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"latency_ms":     time.Since(start).Milliseconds(),
			"correlation_id": c.GetString("correlation_id"),
			"client_ip":      c.ClientIP(),
		}).Info("Request completed")
	}
}
