// Package api serves the settings and analytics endpoints used by the
// dashboard. All bodies are JSON with camelCase keys.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/KimpiegamesYT1/vissstick/internal/logger"
	"github.com/KimpiegamesYT1/vissstick/internal/models"
	"github.com/KimpiegamesYT1/vissstick/internal/monitor"
	"github.com/KimpiegamesYT1/vissstick/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultLogDays = 30

// Store is the persistence the API reads and writes.
type Store interface {
	GetParameters() (models.PredictionParameters, error)
	SaveParameters(p models.PredictionParameters) error
	GetEventsSince(dateKey string) ([]models.TransitionEvent, error)
	AddEvent(event *models.TransitionEvent) error
	DeleteEvent(id string) error
	GetStats() (models.LogStats, error)
}

// Forecaster computes predictions and reconstructed sessions.
type Forecaster interface {
	PredictWeek() ([7]models.Prediction, error)
	Sessions(days, minDuration int) (map[string]models.Session, error)
}

// StatusProvider exposes the live monitor state.
type StatusProvider interface {
	Snapshot() monitor.Status
}

// Server holds the API dependencies
type Server struct {
	store      Store
	forecaster Forecaster
	status     StatusProvider
	now        func() time.Time

	// serializes read-modify-write of the parameters record
	paramsMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the clock used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a new API server. status may be nil when no monitor runs in
// this process.
func New(store Store, forecaster Forecaster, status StatusProvider, opts ...Option) *Server {
	s := &Server{
		store:      store,
		forecaster: forecaster,
		status:     status,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin engine with all routes registered
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.GET("/parameters", s.handleGetParameters)
	api.PUT("/parameters", s.handleUpdateParameters)
	api.GET("/logs", s.handleGetLogs)
	api.POST("/logs", s.handleAddLog)
	api.DELETE("/logs/:id", s.handleDeleteLog)
	api.GET("/logs/filtered", s.handleGetSessions)
	api.GET("/predictions", s.handleGetPredictions)
	api.GET("/stats", s.handleGetStats)
	api.GET("/status", s.handleGetStatus)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Parameters ---

func (s *Server) handleGetParameters(c *gin.Context) {
	params, err := s.store.GetParameters()
	if err != nil {
		s.internalError(c, "load parameters", err)
		return
	}
	c.JSON(http.StatusOK, params)
}

func (s *Server) handleUpdateParameters(c *gin.Context) {
	var patch models.ParametersPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()

	current, err := s.store.GetParameters()
	if err != nil {
		s.internalError(c, "load parameters", err)
		return
	}

	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.SaveParameters(updated); err != nil {
		s.internalError(c, "save parameters", err)
		return
	}

	logger.Info("Prediction parameters updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "parameters": updated})
}

// --- Event log ---

type addLogRequest struct {
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
	IsOpening *bool  `json:"isOpening" binding:"required"`
}

func (s *Server) handleGetLogs(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultLogDays, 1)
	if !ok {
		return
	}

	since := models.DateKeyOf(s.now().AddDate(0, 0, -(days - 1)))
	events, err := s.store.GetEventsSince(since)
	if err != nil {
		s.internalError(c, "load events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) handleAddLog(c *gin.Context) {
	var req addLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := models.TransitionEvent{
		ID:        uuid.New().String(),
		DateKey:   req.Date,
		TimeOfDay: req.Time,
		IsOpening: *req.IsOpening,
		CreatedAt: s.now(),
	}
	if err := s.store.AddEvent(&event); err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrDuplicateEvent):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.internalError(c, "add event", err)
		}
		return
	}

	logger.Info("Manual %s event added for %s %s", event.Direction(), event.DateKey, event.TimeOfDay)
	c.JSON(http.StatusCreated, event)
}

func (s *Server) handleDeleteLog(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteEvent(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, "delete event", err)
		return
	}

	logger.Info("Event %s deleted", id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleGetSessions(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultLogDays, 1)
	if !ok {
		return
	}

	params, err := s.store.GetParameters()
	if err != nil {
		s.internalError(c, "load parameters", err)
		return
	}
	minDuration, ok := intQuery(c, "minDuration", params.MinSessionDurationMinutes, 0)
	if !ok {
		return
	}

	sessions, err := s.forecaster.Sessions(days, minDuration)
	if err != nil {
		s.internalError(c, "reconstruct sessions", err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// --- Analytics ---

type predictionResponse struct {
	OpenTime   *string `json:"openTime"`
	CloseTime  *string `json:"closeTime"`
	DataPoints int     `json:"dataPoints"`
}

func (s *Server) handleGetPredictions(c *gin.Context) {
	week, err := s.forecaster.PredictWeek()
	if err != nil {
		s.internalError(c, "compute predictions", err)
		return
	}

	resp := make(map[string]predictionResponse, len(week))
	for d, p := range week {
		entry := predictionResponse{DataPoints: p.DataPoints}
		if p.HasData() {
			open := models.FormatMinutes(p.OpenMinutes)
			closeAt := models.FormatMinutes(p.CloseMinutes)
			entry.OpenTime = &open
			entry.CloseTime = &closeAt
		}
		resp[strconv.Itoa(d)] = entry
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetStats(c *gin.Context) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.internalError(c, "load stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitor not running"})
		return
	}
	c.JSON(http.StatusOK, s.status.Snapshot())
}

func (s *Server) internalError(c *gin.Context, action string, err error) {
	logger.Error("API failed to %s: %v", action, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// intQuery reads an integer query parameter. On a malformed value or one
// below minValue it writes a 400 and returns false.
func intQuery(c *gin.Context, key string, def, minValue int) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minValue {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer of at least " + strconv.Itoa(minValue)})
		return 0, false
	}
	return v, true
}
