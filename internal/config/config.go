package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amaumene/ytarr/internal/utils"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Extractor
	YtDlpPath               string        // Override path for yt-dlp, empty to auto-detect
	ExtractorMinInterval    time.Duration // Minimum spacing between extractor starts per key
	ExtractorUpdateSchedule string        // Cron spec for yt-dlp self-update

	// Muxer
	FFmpegProbeTimeout    time.Duration // PATH probe bound (default: 5s)
	FFmpegPrimaryWait     time.Duration // Primary tier re-resolution bound (default: 30s)
	FFmpegRetryWait       time.Duration // FFmpegWaitRetry bound (default: 60s)
	FFmpegDownloadTimeout time.Duration // Overall archive download bound (default: 5m)
	FFmpegURL             string        // Primary archive override
	FFmpegFallbackURL     string        // Fallback archive override
	FFmpegDirectURL       string        // Direct acquisition override

	// Download
	OutputDir              string
	DefaultQuality         string // "best" or "<height>p" (default: 1080p)
	DefaultContainer       string // Merge container (default: mp4)
	MinFileSize            int64  // Verification threshold in bytes (default: 10240)
	CatalogCacheTTL        time.Duration
	DownloadTimeoutMinutes int // Minutes before a job is considered stuck (default: 30)
	JobRetentionDays       int // Days finished jobs are kept (default: 7)

	// Server
	ServerPort string

	// Paths
	BinDir        string // $CONFIG_DIR/bin
	BlacklistFile string // $CONFIG_DIR/blocklist.txt
	DatabaseFile  string // $CONFIG_DIR/ytarr.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DEFAULT_QUALITY", "1080p")
	viper.SetDefault("DEFAULT_CONTAINER", "mp4")
	viper.SetDefault("MIN_FILE_SIZE", 10240)
	viper.SetDefault("FFMPEG_PROBE_TIMEOUT_SECONDS", 5)
	viper.SetDefault("FFMPEG_PRIMARY_WAIT_SECONDS", 30)
	viper.SetDefault("FFMPEG_RETRY_WAIT_SECONDS", 60)
	viper.SetDefault("FFMPEG_DOWNLOAD_TIMEOUT_MINUTES", 5)
	viper.SetDefault("CATALOG_CACHE_MINUTES", 5)
	viper.SetDefault("EXTRACTOR_MIN_INTERVAL_MS", 0)
	viper.SetDefault("EXTRACTOR_UPDATE_SCHEDULE", "0 4 * * *")
	viper.SetDefault("DOWNLOAD_TIMEOUT_MINUTES", 30)
	viper.SetDefault("JOB_RETENTION_DAYS", 7)

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "ytarr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	outputDir := viper.GetString("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = filepath.Join(configDir, "downloads")
	}
	binDir := viper.GetString("BIN_DIR")
	if binDir == "" {
		binDir = filepath.Join(configDir, "bin")
	}

	config := &Config{
		// Extractor
		YtDlpPath:               viper.GetString("YTDLP_PATH"),
		ExtractorMinInterval:    time.Duration(viper.GetInt("EXTRACTOR_MIN_INTERVAL_MS")) * time.Millisecond,
		ExtractorUpdateSchedule: viper.GetString("EXTRACTOR_UPDATE_SCHEDULE"),

		// Muxer
		FFmpegProbeTimeout:    time.Duration(viper.GetInt("FFMPEG_PROBE_TIMEOUT_SECONDS")) * time.Second,
		FFmpegPrimaryWait:     time.Duration(viper.GetInt("FFMPEG_PRIMARY_WAIT_SECONDS")) * time.Second,
		FFmpegRetryWait:       time.Duration(viper.GetInt("FFMPEG_RETRY_WAIT_SECONDS")) * time.Second,
		FFmpegDownloadTimeout: time.Duration(viper.GetInt("FFMPEG_DOWNLOAD_TIMEOUT_MINUTES")) * time.Minute,
		FFmpegURL:             viper.GetString("FFMPEG_URL"),
		FFmpegFallbackURL:     viper.GetString("FFMPEG_FALLBACK_URL"),
		FFmpegDirectURL:       viper.GetString("FFMPEG_DIRECT_URL"),

		// Download
		OutputDir:              outputDir,
		DefaultQuality:         viper.GetString("DEFAULT_QUALITY"),
		DefaultContainer:       viper.GetString("DEFAULT_CONTAINER"),
		MinFileSize:            viper.GetInt64("MIN_FILE_SIZE"),
		CatalogCacheTTL:        time.Duration(viper.GetInt("CATALOG_CACHE_MINUTES")) * time.Minute,
		DownloadTimeoutMinutes: viper.GetInt("DOWNLOAD_TIMEOUT_MINUTES"),
		JobRetentionDays:       viper.GetInt("JOB_RETENTION_DAYS"),

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		BinDir:        binDir,
		BlacklistFile: filepath.Join(configDir, "blocklist.txt"),
		DatabaseFile:  filepath.Join(configDir, "ytarr.db"),

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would break the downloader at runtime
func (c *Config) Validate() error {
	if _, err := utils.ParseQuality(c.DefaultQuality); err != nil {
		return fmt.Errorf("DEFAULT_QUALITY must be \"best\" or a height like 1080p: %w", err)
	}
	if c.MinFileSize <= 0 {
		return fmt.Errorf("MIN_FILE_SIZE must be positive")
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.DefaultContainer == "" {
		return fmt.Errorf("DEFAULT_CONTAINER is required")
	}
	return nil
}
