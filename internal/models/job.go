package models

import "time"

// Job represents an asynchronous download requested through the API
type Job struct {
	ID      string `json:"id" boltholdKey:"ID"`
	URL     string `json:"url"`
	VideoID string `json:"video_id"` // output file base name

	OutputDir string `json:"output_dir,omitempty"`
	Quality   string `json:"quality,omitempty"` // "best" or "<height>p"
	Container string `json:"container,omitempty"`

	// Tracking
	Status   JobStatus     `json:"status" boltholdIndex:"Status"`
	State    DownloadState `json:"state,omitempty"` // tier currently running or the final state
	Progress float64       `json:"progress"`

	// Result
	OutputPath         string `json:"output_path,omitempty"`
	AcceptedQuality    string `json:"accepted_quality,omitempty"`
	QualitySubstituted bool   `json:"quality_substituted"`
	FailureReason      string `json:"failure_reason,omitempty"`

	// Metadata
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
