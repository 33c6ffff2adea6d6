package handlers

import (
	"net/http"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/sirupsen/logrus"
)

// JobCounter counts stored jobs per status
type JobCounter interface {
	Counts() (map[models.JobStatus]int, error)
}

// StatusHandler handles status requests
type StatusHandler struct {
	jobs   JobCounter
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(jobs JobCounter, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalJobs   int `json:"total_jobs"`
	Pending     int `json:"pending"`
	Downloading int `json:"downloading"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := h.jobs.Counts()
	if err != nil {
		h.logger.WithError(err).Error("Failed to count jobs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		Pending:     counts[models.JobStatusPending],
		Downloading: counts[models.JobStatusDownloading],
		Completed:   counts[models.JobStatusCompleted],
		Failed:      counts[models.JobStatusFailed],
	}
	for _, n := range counts {
		response.TotalJobs += n
	}

	writeJSON(w, http.StatusOK, response)
}
