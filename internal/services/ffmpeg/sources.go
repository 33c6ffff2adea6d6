package ffmpeg

import "github.com/amaumene/ytarr/internal/config"

// Source is a pair of archive locations tried in order
type Source struct {
	URL         string
	FallbackURL string
}

// URLs returns the non-empty locations in the order they are tried
func (s Source) URLs() []string {
	urls := make([]string, 0, 2)
	if s.URL != "" {
		urls = append(urls, s.URL)
	}
	if s.FallbackURL != "" && s.FallbackURL != s.URL {
		urls = append(urls, s.FallbackURL)
	}
	return urls
}

// DefaultSource returns the platform's primary archive and an older fallback
func DefaultSource(goos, goarch string) Source {
	switch goos {
	case "windows":
		return Source{
			URL:         "https://github.com/GyanD/codexffmpeg/releases/download/6.0/ffmpeg-6.0-essentials_build.zip",
			FallbackURL: "https://github.com/GyanD/codexffmpeg/releases/download/5.1.2/ffmpeg-5.1.2-essentials_build.zip",
		}
	case "darwin":
		return Source{
			URL:         "https://evermeet.cx/ffmpeg/ffmpeg-6.0.zip",
			FallbackURL: "https://evermeet.cx/ffmpeg/ffmpeg-5.1.2.zip",
		}
	default:
		if goarch == "arm64" {
			return Source{
				URL:         "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-arm64-static.tar.xz",
				FallbackURL: "https://johnvansickle.com/ffmpeg/builds/ffmpeg-git-arm64-static.tar.xz",
			}
		}
		return Source{
			URL:         "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz",
			FallbackURL: "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-i686-static.tar.xz",
		}
	}
}

// DirectSource returns the single archive used by direct acquisition
func DirectSource(goos, goarch string) Source {
	switch goos {
	case "windows":
		if goarch == "386" {
			return Source{URL: "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win32-gpl.zip"}
		}
		return Source{URL: "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win64-gpl.zip"}
	case "darwin":
		return Source{URL: "https://evermeet.cx/ffmpeg/getrelease/zip"}
	default:
		if goarch == "386" {
			return Source{URL: "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-i686-static.tar.xz"}
		}
		return Source{URL: "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz"}
	}
}

// sourcesFromConfig applies configured overrides on top of the platform defaults
func sourcesFromConfig(cfg *config.Config, goos, goarch string) (Source, Source) {
	primary := DefaultSource(goos, goarch)
	if cfg.FFmpegURL != "" {
		primary.URL = cfg.FFmpegURL
	}
	if cfg.FFmpegFallbackURL != "" {
		primary.FallbackURL = cfg.FFmpegFallbackURL
	}

	direct := DirectSource(goos, goarch)
	if cfg.FFmpegDirectURL != "" {
		direct.URL = cfg.FFmpegDirectURL
	}

	return primary, direct
}
