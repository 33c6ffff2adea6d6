package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Progress is one parsed "[download]" status line
type Progress struct {
	Percent    float64
	SpeedBytes int64
	ETA        time.Duration
}

var (
	percentRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	speedRegex   = regexp.MustCompile(`(\d+(?:\.\d+)?)([KMG]?)iB/s`)
	etaRegex     = regexp.MustCompile(`ETA\s+(?:(\d+):)?(\d{1,2}):(\d{2})`)
)

// ParseProgress parses a line like
// "[download]  45.0% of 123.45MiB at 1.23MiB/s ETA 00:12"
func ParseProgress(line string) (Progress, bool) {
	if !strings.Contains(line, "[download]") {
		return Progress{}, false
	}

	m := percentRegex.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil || percent > 100 {
		return Progress{}, false
	}

	p := Progress{Percent: percent}

	if m := speedRegex.FindStringSubmatch(line); m != nil {
		if speed, err := strconv.ParseFloat(m[1], 64); err == nil {
			switch m[2] {
			case "K":
				speed *= 1024
			case "M":
				speed *= 1024 * 1024
			case "G":
				speed *= 1024 * 1024 * 1024
			}
			p.SpeedBytes = int64(speed)
		}
	}

	if m := etaRegex.FindStringSubmatch(line); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		p.ETA = time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	}

	return p, true
}
