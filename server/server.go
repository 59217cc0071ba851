// Package server exposes the HTTP surface the external scheduler pushes run
// triggers to, plus read-only operational endpoints.
package server

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ytcatalog/ingest"
	"ytcatalog/storage"
)

// Runner is the pipeline surface the server invokes.
type Runner interface {
	Run(ctx context.Context) ingest.RunResult
	Status(ctx context.Context) (*storage.RunMetadata, error)
}

// TriggerMessage is the inner message of a push-delivered trigger envelope.
type TriggerMessage struct {
	// Attributes is an optional string map, logged when present.
	Attributes map[string]string `json:"attributes"`
	// Data is optional base64-encoded text, decoded and logged when present.
	Data      string `json:"data"`
	MessageID string `json:"messageId"`
}

// TriggerEnvelope is the push payload delivered by the scheduler/event bus.
type TriggerEnvelope struct {
	Message      TriggerMessage `json:"message"`
	Subscription string         `json:"subscription"`
}

// TriggerResponse reports the run outcome to the scheduler.
type TriggerResponse struct {
	VideoCount int    `json:"video_count"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Server handles trigger deliveries and status reads.
type Server struct {
	runner Runner
	srv    *http.Server
}

// New creates a server bound to addr.
func New(addr string, runner Runner) *Server {
	s := &Server{runner: runner}

	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/trigger", s.handleTrigger)
	r.GET("/status", s.handleStatus)
	r.GET("/healthz", s.handleHealthz)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleTrigger decodes the push envelope and runs the pipeline. The
// scheduler contract requires a normal response in every case: a malformed
// envelope or payload aborts before the pipeline and still answers 2xx so
// the delivery is not redelivered forever.
func (s *Server) handleTrigger(c *gin.Context) {
	var envelope TriggerEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.WithError(err).Warn("trigger: malformed envelope, ignoring delivery")
		c.Status(http.StatusNoContent)
		return
	}

	if len(envelope.Message.Attributes) > 0 {
		log.WithField("attributes", envelope.Message.Attributes).Info("trigger: received")
	}
	if envelope.Message.Data != "" {
		payload, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			log.WithError(err).Warn("trigger: payload decode failed, ignoring delivery")
			c.Status(http.StatusNoContent)
			return
		}
		log.WithField("payload", string(payload)).Info("trigger: payload")
	}

	result := s.runner.Run(c.Request.Context())

	resp := TriggerResponse{VideoCount: result.VideoCount, Skipped: result.Skipped}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// handleStatus returns the current run-state document.
func (s *Server) handleStatus(c *gin.Context) {
	meta, err := s.runner.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
