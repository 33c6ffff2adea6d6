package ytdlp

import (
	"testing"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/utils"
)

const sampleListing = `[youtube] Extracting URL: https://www.youtube.com/watch?v=dQw4w9WgXcQ
[youtube] dQw4w9WgXcQ: Downloading android player API JSON
[info] Available formats for dQw4w9WgXcQ:
ID  EXT   RESOLUTION FPS CH |   FILESIZE   TBR PROTO | VCODEC        VBR ACODEC      ABR ASR MORE INFO
------------------------------------------------------------------------------------------------------
sb0 mhtml 48x27        0    |                  mhtml | images                                storyboard
139 m4a   audio only      2 |    1.24MiB   49k https | audio only        mp4a.40.5   49k 22k low, m4a_dash
140 m4a   audio only      2 |    3.27MiB  129k https | audio only        mp4a.40.2  129k 44k medium, m4a_dash
251 webm  audio only      2 |    3.28MiB  130k https | audio only        opus       130k 48k medium, webm_dash
160 mp4   256x144     25    |    1.07MiB   42k https | avc1.4d400c   42k video only          144p, mp4_dash
18  mp4   640x360     25  2 | ~ 8.23MiB   325k https | avc1.42001E       mp4a.40.2       44k 360p
22  mp4   1280x720    25  2 | ~ 20.40MiB  807k https | avc1.64001F       mp4a.40.2       44k 720p
136 mp4   1280x720    25    |   17.83MiB  705k https | avc1.4d401f  705k video only          720p, mp4_dash
137 mp4   1920x1080   25    |   77.67MiB 3071k https | avc1.640028 3071k video only          1080p, mp4_dash
399 mp4   1920x1080   25    |   28.84MiB 1140k https | av01.0.08M.08 1140k video only        1080p, mp4_dash
`

func TestParseFormatListing(t *testing.T) {
	catalog := ParseFormatListing(sampleListing, nil)

	if len(catalog.Formats) != 9 {
		t.Fatalf("Expected 9 formats, got %d", len(catalog.Formats))
	}
	if catalog.MaxHeightPx != 1080 {
		t.Errorf("Expected max height 1080, got %d", catalog.MaxHeightPx)
	}
	if catalog.HasSegmentedTransport {
		t.Error("Listing has no m3u8 formats")
	}
	if !catalog.HasCombinedFormats {
		t.Error("Formats 18 and 22 are combined")
	}

	byID := make(map[string]models.MediaFormat)
	for _, f := range catalog.Formats {
		byID[f.ID] = f
	}

	audio := byID["140"]
	if !audio.IsAudioOnly || audio.HeightPx != 0 || audio.Container != "m4a" {
		t.Errorf("Format 140 mis-parsed: %+v", audio)
	}
	if audio.AudioCodec != "mp4a.40.2" || audio.BitrateKbps != 129 {
		t.Errorf("Format 140 codec/bitrate mis-parsed: %+v", audio)
	}

	combined := byID["22"]
	if !combined.IsCombined() || combined.HeightPx != 720 || combined.FrameRate != 25 {
		t.Errorf("Format 22 mis-parsed: %+v", combined)
	}
	if combined.VideoCodec != "avc1.64001F" || combined.AudioCodec != "mp4a.40.2" {
		t.Errorf("Format 22 codecs mis-parsed: %+v", combined)
	}
	if combined.ApproxFilesize != "~20.40MiB" || combined.TransportProtocol != "https" {
		t.Errorf("Format 22 size/protocol mis-parsed: %+v", combined)
	}

	video := byID["137"]
	if !video.IsVideoOnly || video.HeightPx != 1080 || video.AudioCodec != "" {
		t.Errorf("Format 137 mis-parsed: %+v", video)
	}

	if _, ok := byID["sb0"]; ok {
		t.Error("Storyboard rows must be skipped")
	}
}

func TestParseFormatListingSegmented(t *testing.T) {
	listing := `ID  EXT RESOLUTION FPS |   FILESIZE   TBR PROTO | VCODEC        ACODEC
91  mp4 256x144     15 | ~  1.82MiB  116k m3u8  | avc1.42c00b   mp4a.40.5
93  mp4 640x360     30 | ~  8.63MiB  550k m3u8  | avc1.4D401E   mp4a.40.2
95  mp4 1280x720    30 | ~ 23.60MiB 1504k m3u8  | avc1.4D401F   mp4a.40.2
`
	catalog := ParseFormatListing(listing, nil)

	if !catalog.HasSegmentedTransport {
		t.Error("Expected segmented transport")
	}
	if len(catalog.Formats) != 3 {
		t.Fatalf("Expected 3 formats, got %d", len(catalog.Formats))
	}
	if catalog.Formats[2].TransportProtocol != "m3u8" {
		t.Errorf("Expected m3u8 protocol, got %q", catalog.Formats[2].TransportProtocol)
	}
	if catalog.MaxHeightPx != 720 {
		t.Errorf("Expected max height 720, got %d", catalog.MaxHeightPx)
	}
}

func TestParseFormatListingNamedIDs(t *testing.T) {
	listing := `ID                 EXT RESOLUTION FPS |   FILESIZE   TBR PROTO | VCODEC       ACODEC
--------------------------------------------------------------------------------------
hls-540p           mp4 960x540     30 | ~ 40.12MiB 1200k m3u8  | avc1.4d401f  mp4a.40.2
hls-1080p          mp4 1920x1080   30 | ~120.00MiB 4500k m3u8  | avc1.640028  mp4a.40.2
dash-video=800000  mp4 1280x720    25 |   30.50MiB  800k dash  | avc1.64001f  video only
dash-audio=128000  m4a audio only     |    4.88MiB  128k dash  | audio only   mp4a.40.2
`
	catalog := ParseFormatListing(listing, nil)

	if len(catalog.Formats) != 4 {
		t.Fatalf("Expected 4 formats, got %d", len(catalog.Formats))
	}
	ids := []string{"hls-540p", "hls-1080p", "dash-video=800000", "dash-audio=128000"}
	for i, id := range ids {
		if catalog.Formats[i].ID != id {
			t.Errorf("Expected format %d to be %s, got %s", i, id, catalog.Formats[i].ID)
		}
	}
	if catalog.Formats[1].HeightPx != 1080 {
		t.Errorf("Expected 1080p, got %d", catalog.Formats[1].HeightPx)
	}
	if !catalog.Formats[3].IsAudioOnly {
		t.Error("Expected dash-audio to be audio only")
	}
	if catalog.MaxHeightPx != 1080 {
		t.Errorf("Expected max height 1080, got %d", catalog.MaxHeightPx)
	}
}

func TestParseFormatListingEmpty(t *testing.T) {
	for _, listing := range []string{"", "ERROR: [youtube] abc: Video unavailable", "garbage\nmore garbage"} {
		catalog := ParseFormatListing(listing, nil)
		if len(catalog.Formats) != 0 {
			t.Errorf("Expected no formats for %q", listing)
		}
		if catalog.MaxHeightPx != models.DefaultMaxHeight {
			t.Errorf("Expected default max height, got %d", catalog.MaxHeightPx)
		}
	}
}

func TestParseFormatListingBlacklist(t *testing.T) {
	catalog := ParseFormatListing(sampleListing, utils.NewBlacklist("av01", "251"))

	for _, f := range catalog.Formats {
		if f.ID == "399" || f.ID == "251" {
			t.Errorf("Blacklisted format %s was kept", f.ID)
		}
	}
	if len(catalog.Formats) != 7 {
		t.Errorf("Expected 7 formats, got %d", len(catalog.Formats))
	}
}

func TestParseProgress(t *testing.T) {
	p, ok := ParseProgress("[download]  45.0% of 123.45MiB at  1.50MiB/s ETA 01:05")
	if !ok {
		t.Fatal("Expected progress line to parse")
	}
	if p.Percent != 45.0 {
		t.Errorf("Expected 45%%, got %v", p.Percent)
	}
	if p.SpeedBytes != int64(1.5*1024*1024) {
		t.Errorf("Unexpected speed %d", p.SpeedBytes)
	}
	if p.ETA.Seconds() != 65 {
		t.Errorf("Unexpected ETA %v", p.ETA)
	}

	if _, ok := ParseProgress("[youtube] abc: Downloading webpage"); ok {
		t.Error("Non-download lines must not parse")
	}
	if _, ok := ParseProgress("[download] Destination: /tmp/abc.mp4"); ok {
		t.Error("Lines without a percentage must not parse")
	}
}
