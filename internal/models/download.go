package models

import "time"

// MuxerOnPath is the muxer location meaning "run ffmpeg from PATH"
const MuxerOnPath = "ffmpeg"

// DownloadAttemptPlan describes one extractor invocation for a tier
type DownloadAttemptPlan struct {
	Tier             DownloadState
	FormatExpression string
	ClientProfile    ClientProfile
	MuxerPath        string // empty when no muxer is available
	OutputPath       string
	LastResortArgs   bool // adds the compatibility user agent and referer
	AcceptedHeight   int  // 0 when unknown or audio only
	AudioOnly        bool
}

// HasMuxer reports whether the plan remuxes with a known muxer
func (p *DownloadAttemptPlan) HasMuxer() bool {
	return p.MuxerPath != ""
}

// VerificationResult is the outcome of checking a produced file
type VerificationResult struct {
	Exists    bool  `json:"exists"`
	SizeBytes int64 `json:"size_bytes"`
	Passed    bool  `json:"passed"`
}

// ProgressEvent reports download progress to a subscriber
type ProgressEvent struct {
	DownloadID string        `json:"download_id"`
	State      DownloadState `json:"state"`
	Percent    float64       `json:"percent"`
	SpeedBytes int64         `json:"speed_bytes,omitempty"`
	ETA        time.Duration `json:"eta,omitempty"`
	Message    string        `json:"message,omitempty"`
}

// DownloadResult is returned when the state machine reaches Done
type DownloadResult struct {
	Path               string             `json:"path"`
	State              DownloadState      `json:"state"` // tier that produced the file
	FormatExpression   string             `json:"format_expression"`
	RequestedQuality   string             `json:"requested_quality"`
	AcceptedQuality    string             `json:"accepted_quality"`
	QualitySubstituted bool               `json:"quality_substituted"`
	Verification       VerificationResult `json:"verification"`
}

// MediaInfo is the single-item metadata reported by a status check
type MediaInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Thumbnail  string  `json:"thumbnail"`
	Duration   float64 `json:"duration"`
	Channel    string  `json:"channel"`
	MaxQuality string  `json:"max_quality"`
}

// StatusResult is the outcome of a status check
type StatusResult struct {
	Available bool       `json:"available"`
	Info      *MediaInfo `json:"info,omitempty"`
	Error     string     `json:"error,omitempty"`
}
