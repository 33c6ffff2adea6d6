package models

// DownloadState represents a stage of the download state machine
type DownloadState string

const (
	StatePrimary         DownloadState = "primary"
	StateFFmpegWaitRetry DownloadState = "ffmpeg_wait_retry"
	StateFallback        DownloadState = "fallback"
	StateLastResort      DownloadState = "last_resort"
	StateDone            DownloadState = "done"
	StateFailed          DownloadState = "failed"
)

// IsTerminal reports whether the state machine stops in this state
func (s DownloadState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ClientProfile is the extractor player client emulated for a request
type ClientProfile string

const (
	ProfileAndroid ClientProfile = "android" // Primary tier and catalog queries
	ProfileIOS     ClientProfile = "ios"     // Fallback tier
	ProfileTV      ClientProfile = "TVHTML5" // Last resort, most compatible
)

// JobStatus represents the current processing status of a download job
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// IsFinished reports whether the job reached a final status
func (s JobStatus) IsFinished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
