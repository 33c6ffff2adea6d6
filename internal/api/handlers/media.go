package handlers

import (
	"context"
	"net/http"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusChecker reports whether a media URL is available
type StatusChecker interface {
	CheckStatus(ctx context.Context, url string) *models.StatusResult
}

// FormatLister lists the formats offered for a media URL
type FormatLister interface {
	List(ctx context.Context, url string) *models.FormatCatalogResult
}

// MediaHandler handles media lookups
type MediaHandler struct {
	status  StatusChecker
	formats FormatLister
	logger  *logrus.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(status StatusChecker, formats FormatLister, logger *logrus.Logger) *MediaHandler {
	return &MediaHandler{
		status:  status,
		formats: formats,
		logger:  logger,
	}
}

// Status handles GET /api/media/status
func (h *MediaHandler) Status(w http.ResponseWriter, r *http.Request) {
	url, ok := mediaURL(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.status.CheckStatus(r.Context(), url))
}

// Formats handles GET /api/media/formats
func (h *MediaHandler) Formats(w http.ResponseWriter, r *http.Request) {
	url, ok := mediaURL(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.formats.List(r.Context(), url))
}

func mediaURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return "", false
	}
	return url, true
}
