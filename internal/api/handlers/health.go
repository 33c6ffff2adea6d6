package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// MuxerLocator reports the resolved muxer path, empty until known
type MuxerLocator interface {
	Path() string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	muxer  MuxerLocator
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(muxer MuxerLocator, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{muxer: muxer, logger: logger}
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	muxer := "pending"
	if h.muxer != nil && h.muxer.Path() != "" {
		muxer = "available"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"muxer":  muxer,
	})
}
