package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	Runtime *Runtime
	// Service is nil when no database is configured; the job routes are
	// then not registered.
	Service *Service

	sessions *sessionStore
}

func NewHandler(rt *Runtime, svc *Service) *Handler {
	return &Handler{Runtime: rt, Service: svc, sessions: newSessionStore(sessionTTL)}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/mcp", h.MCPHandler)
	r.DELETE("/mcp", h.MCPDeleteHandler)

	api := r.Group("/api")
	{
		api.POST("/deep-research", h.streamReport)
		api.GET("/search/providers", h.listProviders)

		if h.Service != nil {
			api.POST("/reports", h.createJob)
			api.GET("/reports", h.listJobs)
			api.GET("/reports/:id", h.getJob)
			api.GET("/reports/:id/events", h.getJobEvents)
			api.GET("/reports/:id/logs", h.getJobLogs)
			api.POST("/reports/:id/resume", h.resumeJob)
			api.POST("/reports/:id/cancel", h.cancelJob)
		}
	}
}

func bindReport(c *gin.Context) (ReportRequest, bool) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return req, false
	}
	return req, true
}

func jobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func jobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrJobNotResumed), errors.Is(err, ErrJobNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) listProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": h.Runtime.Search.Providers(),
		"override":  h.Runtime.Search.Override,
		"default":   h.Runtime.Defaults.SearchAPI,
	})
}

func (h *Handler) createJob(c *gin.Context) {
	req, ok := bindReport(c)
	if !ok {
		return
	}
	job, err := h.Service.CreateJob(c.Request.Context(), req)
	if err != nil {
		jobError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.Service.ListJobs(c.Request.Context())
	if err != nil {
		jobError(c, err)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) getJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := h.Service.GetJob(c.Request.Context(), id)
	if err != nil {
		jobError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) getJobEvents(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	events, err := h.Service.GetJobEvents(c.Request.Context(), id)
	if err != nil {
		jobError(c, err)
		return
	}
	if events == nil {
		events = []EventEntry{}
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) getJobLogs(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	logs, err := h.Service.GetJobLogs(c.Request.Context(), id)
	if err != nil {
		jobError(c, err)
		return
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) resumeJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := h.Service.ResumeJob(c.Request.Context(), id)
	if err != nil {
		jobError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) cancelJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if err := h.Service.CancelJob(id); err != nil {
		jobError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}
