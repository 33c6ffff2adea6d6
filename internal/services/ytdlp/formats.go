package ytdlp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/utils"
)

// Format listing columns look like:
//
//	ID  EXT   RESOLUTION FPS CH |   FILESIZE   TBR PROTO | VCODEC        VBR ACODEC      ABR ASR MORE INFO
//	140 m4a   audio only      2 |    3.27MiB  129k https | audio only        mp4a.40.2  129k 44k medium, m4a_dash
//	22  mp4   1280x720    30  2 | ~ 20.40MiB  807k https | avc1.64001F       mp4a.40.2        44k 720p
var (
	lineIDRegex       = regexp.MustCompile(`^(\w[\w.=-]*)\s+`) // 22, 251-drc, hls-1080p, dash-video=800000
	numericIDRegex    = regexp.MustCompile(`^\d+(?:-\w+)?\s+`)
	containerRegex    = regexp.MustCompile(`^\S+\s+(\w+)`)
	resolutionRegex   = regexp.MustCompile(`\s(\d+x\d+|audio only|video only)`)
	heightRegex       = regexp.MustCompile(`\s\d+x(\d+)`)
	fpsRegex          = regexp.MustCompile(`\d+x\d+\s+(\d+)\s`)
	filesizeRegex     = regexp.MustCompile(`\|\s*(~?\s*[\d.]+[KMG]iB)`)
	bitrateRegex      = regexp.MustCompile(`\s(\d+(?:\.\d+)?)k\s`)
	protocolRegex     = regexp.MustCompile(`\s(https?|m3u8(?:_native)?|http_dash_segments|dash|mhtml)\s*\|`)
	videoCodecRegex   = regexp.MustCompile(`\|\s*((?:avc|av01|vp0?9|hev|hvc|h26)[\w.]*|audio only)`)
	audioCodecRegex   = regexp.MustCompile(`\s((?:mp4a|opus|vorbis|ac-?3|ec-?3|flac|mp3)[\w.]*)`)
	headerTokensRegex = regexp.MustCompile(`^(ID|format code)\s`)
)

const (
	maxPlausibleHeight  = 10000
	maxPlausibleBitrate = 1000000 // kbps
)

// ParseFormatListing turns the text output of --list-formats into a catalog.
// Unparsable lines are dropped; blacklisted formats are skipped.
func ParseFormatListing(output string, blacklist *utils.Blacklist) *models.FormatCatalogResult {
	catalog := models.EmptyCatalog()
	maxHeight := 0

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if !isFormatLine(line) {
			continue
		}

		format, ok := parseFormatLine(line)
		if !ok {
			continue
		}

		// Flags cover every listed format, blacklisted or not
		if strings.Contains(line, "m3u8") {
			catalog.HasSegmentedTransport = true
		}
		if format.IsCombined() {
			catalog.HasCombinedFormats = true
		}

		if blocked, _ := blacklist.IsBlacklisted(format); blocked {
			continue
		}

		catalog.Formats = append(catalog.Formats, format)
		if format.HeightPx > maxHeight {
			maxHeight = format.HeightPx
		}
	}

	if maxHeight > 0 {
		catalog.MaxHeightPx = maxHeight
	}
	return catalog
}

// isFormatLine reports whether a line is a candidate format row
func isFormatLine(line string) bool {
	if line == "" || headerTokensRegex.MatchString(line) || strings.HasPrefix(line, "[") {
		return false
	}
	if strings.Contains(line, "storyboard") || strings.Contains(line, "mhtml") {
		return false
	}
	if strings.Contains(line, "audio only") || strings.Contains(line, "video only") || numericIDRegex.MatchString(line) {
		return true
	}
	// Named ids only count on table rows
	return strings.Contains(line, "|") && lineIDRegex.MatchString(line)
}

// parseFormatLine extracts one MediaFormat; ok is false when the id or
// container cannot be read
func parseFormatLine(line string) (models.MediaFormat, bool) {
	idMatch := lineIDRegex.FindStringSubmatch(line)
	if idMatch == nil {
		return models.MediaFormat{}, false
	}
	containerMatch := containerRegex.FindStringSubmatch(line)
	if containerMatch == nil {
		return models.MediaFormat{}, false
	}

	f := models.MediaFormat{
		ID:          idMatch[1],
		Container:   containerMatch[1],
		IsAudioOnly: strings.Contains(line, "audio only"),
		IsVideoOnly: strings.Contains(line, "video only"),
	}

	if m := resolutionRegex.FindStringSubmatch(line); m != nil {
		f.ResolutionLabel = m[1]
	}
	if m := heightRegex.FindStringSubmatch(line); m != nil && !f.IsAudioOnly {
		if h, err := strconv.Atoi(m[1]); err == nil && h > 0 && h <= maxPlausibleHeight {
			f.HeightPx = h
		}
	}
	if m := fpsRegex.FindStringSubmatch(line); m != nil {
		if fps, err := strconv.Atoi(m[1]); err == nil && fps <= 480 {
			f.FrameRate = fps
		}
	}
	if m := filesizeRegex.FindStringSubmatch(line); m != nil {
		f.ApproxFilesize = strings.ReplaceAll(m[1], " ", "")
	}
	if m := bitrateRegex.FindStringSubmatch(line); m != nil {
		if kbps, err := strconv.ParseFloat(m[1], 64); err == nil && kbps > 0 && kbps < maxPlausibleBitrate {
			f.BitrateKbps = kbps
		}
	}
	if m := protocolRegex.FindStringSubmatch(line); m != nil {
		f.TransportProtocol = m[1]
	}
	if m := videoCodecRegex.FindStringSubmatch(line); m != nil && m[1] != "audio only" {
		f.VideoCodec = m[1]
	}
	if m := audioCodecRegex.FindStringSubmatch(line); m != nil && !f.IsVideoOnly {
		f.AudioCodec = m[1]
	}

	return f, true
}
