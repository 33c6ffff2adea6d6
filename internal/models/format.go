package models

import (
	"fmt"
	"strconv"
)

// DefaultMaxHeight is reported when no format height could be determined
const DefaultMaxHeight = 720

// MediaFormat is one encoding listed by the extractor
type MediaFormat struct {
	ID                string  `json:"id"`
	Container         string  `json:"container"`
	ResolutionLabel   string  `json:"resolution_label"`
	HeightPx          int     `json:"height_px"`
	FrameRate         int     `json:"frame_rate,omitempty"`
	ApproxFilesize    string  `json:"approx_filesize,omitempty"`
	BitrateKbps       float64 `json:"bitrate_kbps,omitempty"`
	TransportProtocol string  `json:"transport_protocol,omitempty"`
	VideoCodec        string  `json:"video_codec,omitempty"`
	AudioCodec        string  `json:"audio_codec,omitempty"`
	IsAudioOnly       bool    `json:"is_audio_only"`
	IsVideoOnly       bool    `json:"is_video_only"`
}

// IsCombined reports whether the format carries both audio and video
func (f MediaFormat) IsCombined() bool {
	return !f.IsAudioOnly && !f.IsVideoOnly
}

// NumericID returns the format id as a number, or -1 for non-numeric ids
func (f MediaFormat) NumericID() int {
	n, err := strconv.Atoi(f.ID)
	if err != nil {
		return -1
	}
	return n
}

// FormatCatalogResult aggregates the formats available for a media URL
type FormatCatalogResult struct {
	Formats               []MediaFormat `json:"formats"`
	HasSegmentedTransport bool          `json:"has_segmented_transport"`
	HasCombinedFormats    bool          `json:"has_combined_formats"`
	MaxHeightPx           int           `json:"max_height_px"`
}

// EmptyCatalog returns a catalog with no formats and the default max height
func EmptyCatalog() *FormatCatalogResult {
	return &FormatCatalogResult{
		Formats:     []MediaFormat{},
		MaxHeightPx: DefaultMaxHeight,
	}
}

// HasFormat reports whether a format id is present in the catalog
func (c *FormatCatalogResult) HasFormat(id string) bool {
	for _, f := range c.Formats {
		if f.ID == id {
			return true
		}
	}
	return false
}

// IsSegmentedOnly reports whether the catalog only offers segmented streams
func (c *FormatCatalogResult) IsSegmentedOnly() bool {
	return c.HasSegmentedTransport && !c.HasCombinedFormats
}

// QualityRequest is either "best" or a positive height ceiling in pixels
type QualityRequest struct {
	Best   bool
	Height int
}

// BestQuality requests the highest available quality
func BestQuality() QualityRequest {
	return QualityRequest{Best: true}
}

// HeightCeiling requests a quality at or below the given height
func HeightCeiling(height int) QualityRequest {
	return QualityRequest{Height: height}
}

// AtLeast reports whether the request allows the given height
func (q QualityRequest) AtLeast(height int) bool {
	return q.Best || q.Height >= height
}

// String renders the request as "best" or "<height>p"
func (q QualityRequest) String() string {
	if q.Best {
		return "best"
	}
	return fmt.Sprintf("%dp", q.Height)
}
