package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTier("primary", "failure")
	m.ObserveTier("fallback", "success")
	m.ObserveDownload("success")
	m.ObserveMuxer("path", "success")
	m.ObserveExtractorRun("download", "failure")
	m.ObserveLimiterWait("yt-dlp:u", 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TierAttempts.WithLabelValues("primary", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TierAttempts.WithLabelValues("fallback", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MuxerAcquisitions.WithLabelValues("path", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractorRuns.WithLabelValues("download", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LimiterWaitDuration))
}
