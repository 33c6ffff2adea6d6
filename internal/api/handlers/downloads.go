package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amaumene/ytarr/internal/controllers"
	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// JobService submits and looks up download jobs
type JobService interface {
	Submit(req controllers.DownloadRequest) (*models.Job, error)
	Get(id string) (*models.Job, error)
}

// DownloadRequestBody is the payload accepted by POST /api/downloads
type DownloadRequestBody struct {
	URL       string `json:"url"`
	ID        string `json:"id"`
	OutputDir string `json:"output_dir"`
	Quality   string `json:"quality"`
	Container string `json:"container"`
}

// DownloadsHandler handles download job requests
type DownloadsHandler struct {
	jobs      JobService
	outputDir string // requested output dirs must resolve under it
	logger    *logrus.Logger
}

// NewDownloadsHandler creates a new downloads handler
func NewDownloadsHandler(jobs JobService, outputDir string, logger *logrus.Logger) *DownloadsHandler {
	return &DownloadsHandler{
		jobs:      jobs,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Create handles POST /api/downloads
func (h *DownloadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body DownloadRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WithError(err).Debug("Failed to decode download request")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if body.Quality != "" {
		if _, err := utils.ParseQuality(body.Quality); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if body.ID != "" {
		if err := controllers.ValidateDownloadID(body.ID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	outputDir, err := controllers.ConfineDir(h.outputDir, body.OutputDir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.Submit(controllers.DownloadRequest{
		URL:       body.URL,
		ID:        body.ID,
		OutputDir: outputDir,
		Quality:   body.Quality,
		Container: body.Container,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to submit download")
		writeError(w, http.StatusInternalServerError, "failed to submit download")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"url":    job.URL,
	}).Info("Download job accepted")

	writeJSON(w, http.StatusAccepted, job)
}

// Get handles GET /api/downloads/{id}
func (h *DownloadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	job, err := h.jobs.Get(r.PathValue("id"))
	if errors.Is(err, models.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get job")
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}
