package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/deep-research/pkg/progress"
)

// streamReport runs a report inside the request and streams its progress as
// NDJSON: zero or more progress events, then exactly one complete or error
// event. A client disconnect cancels the run.
func (h *Handler) streamReport(c *gin.Context) {
	req, ok := bindReport(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	stream := progress.NewStream(progress.NewEncoder(c.Writer).Encode)

	logger := h.Runtime.logger().With("topic", req.Topic)
	o := req.Config
	o.Progress = stream
	engine := h.Runtime.Engine(o, logger)

	report, err := engine.Run(c.Request.Context(), req.Topic, req.Feedback)
	if err != nil {
		stream.Emit(progress.ErrorEvent(err))
	} else {
		stream.Emit(progress.CompleteEvent(report))
	}

	if err := stream.Close(); err != nil {
		logger.Warn("Progress stream delivery failed", "error", err)
	}
}
