package storage

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// partialMarkers identify artifacts left by an interrupted extractor run:
// "<id>.mp4.part", "<id>.f137.mp4", "<id>.temp.mp4", "<id>.mp4.ytdl", "<id>.part-Frag3"
var partialMarkers = regexp.MustCompile(`\.(part|temp|ytdl)\b|\.f\d+\.|-frag\d*|\.part-`)

// Verifier checks produced files and removes partial artifacts
type Verifier struct {
	fs      afero.Fs
	minSize int64
	logger  *logrus.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(fs afero.Fs, minSize int64, logger *logrus.Logger) *Verifier {
	return &Verifier{
		fs:      fs,
		minSize: minSize,
		logger:  logger,
	}
}

// MinSize returns the verification threshold in bytes
func (v *Verifier) MinSize() int64 {
	return v.minSize
}

// Verify checks that path exists and is at least the minimum plausible size
func (v *Verifier) Verify(path string) models.VerificationResult {
	info, err := v.fs.Stat(path)
	if err != nil || info.IsDir() {
		return models.VerificationResult{}
	}

	result := models.VerificationResult{
		Exists:    true,
		SizeBytes: info.Size(),
		Passed:    info.Size() >= v.minSize,
	}

	if !result.Passed {
		v.logger.WithFields(logrus.Fields{
			"path":     path,
			"size":     info.Size(),
			"min_size": v.minSize,
		}).Warn("Downloaded file is too small, treating it as corrupt")
	}

	return result
}

// CleanupPartials removes partial artifacts sharing the target's base name.
// A target below the size threshold is removed too. Errors are only logged.
func (v *Verifier) CleanupPartials(path string) {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	entries, err := afero.ReadDir(v.fs, dir)
	if err != nil {
		v.logger.WithError(err).WithField("dir", dir).Debug("Could not read output directory for cleanup")
		return
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, base+".") {
			continue
		}

		full := filepath.Join(dir, name)
		isTarget := full == filepath.Clean(path)
		if isTarget && entry.Size() >= v.minSize {
			continue
		}
		if !isTarget && !partialMarkers.MatchString(strings.ToLower(name)) {
			continue
		}

		if err := v.fs.Remove(full); err != nil {
			v.logger.WithError(err).WithField("file", full).Warn("Failed to remove partial file")
			continue
		}
		removed++
	}

	if removed > 0 {
		v.logger.WithFields(logrus.Fields{
			"dir":     dir,
			"base":    base,
			"removed": removed,
		}).Info("Cleaned up partial download files")
	}
}
