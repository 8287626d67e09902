// Package server is the thin HTTP collaborator in front of the
// pipeline. It only decodes requests, invokes the pipeline, and maps
// pipeline error codes onto the response envelope.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/focusflow-app/focusflow/internal/pipeline"
)

// Server wires the pipeline service into gin routes.
type Server struct {
	svc *pipeline.Service
}

// New creates the HTTP surface for a pipeline service.
func New(svc *pipeline.Service) *Server {
	return &Server{svc: svc}
}

// Router builds the gin engine with middleware and routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := router.Group("/v1/ai")
	v1.POST("/task-breakdown", s.handleTaskBreakdown)
	v1.POST("/weekly-insights", s.handleWeeklyInsights)
	return router
}

type breakdownRequest struct {
	Prompt           string    `json:"prompt"`
	Deadline         time.Time `json:"deadline,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	TimeLimitMinutes int       `json:"timeLimitMinutes,omitempty"`
}

type insightsRequest struct {
	Prompt string `json:"prompt,omitempty"`
	Stats  struct {
		CompletedTasks int      `json:"completedTasks"`
		FocusMinutes   int      `json:"focusMinutes"`
		Sessions       int      `json:"sessions"`
		CompletionRate float64  `json:"completionRate"`
		BestDay        string   `json:"bestDay,omitempty"`
		TopCategories  []string `json:"topCategories,omitempty"`
	} `json:"stats"`
}

func (s *Server) handleTaskBreakdown(c *gin.Context) {
	var req breakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorEnvelope(c, pipeline.CodeInvalidInput, http.StatusBadRequest, "Invalid request body.")
		return
	}
	result, err := s.svc.GenerateTaskBreakdown(c.Request.Context(), req.Prompt, pipeline.BreakdownContext{
		Deadline:         req.Deadline,
		Priority:         req.Priority,
		TimeLimitMinutes: req.TimeLimitMinutes,
	})
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleWeeklyInsights(c *gin.Context) {
	var req insightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorEnvelope(c, pipeline.CodeInvalidInput, http.StatusBadRequest, "Invalid request body.")
		return
	}
	result, err := s.svc.GenerateWeeklyInsights(c.Request.Context(), req.Prompt, pipeline.WeeklyStats{
		CompletedTasks: req.Stats.CompletedTasks,
		FocusMinutes:   req.Stats.FocusMinutes,
		Sessions:       req.Stats.Sessions,
		CompletionRate: req.Stats.CompletionRate,
		BestDay:        req.Stats.BestDay,
		TopCategories:  req.Stats.TopCategories,
	})
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writePipelineError maps a typed pipeline error onto the response
// envelope. Anything untyped has already slipped the classifier, so it
// is treated as the generic service error.
func writePipelineError(c *gin.Context, err error) {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		writeErrorEnvelope(c, perr.Code, perr.HTTPStatus, perr.Message)
		return
	}
	log.WithError(err).Error("unclassified error escaped pipeline")
	writeErrorEnvelope(c, pipeline.CodeServiceError, http.StatusInternalServerError,
		"The AI service encountered an unexpected problem. Please try again.")
}

func writeErrorEnvelope(c *gin.Context, code pipeline.Code, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(started).Round(time.Millisecond),
			"request": c.GetString("requestID"),
		}).Info("request handled")
	}
}
