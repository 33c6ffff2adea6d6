package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultQuality != "1080p" {
		t.Errorf("Expected default quality 1080p, got %s", cfg.DefaultQuality)
	}
	if cfg.MinFileSize != 10240 {
		t.Errorf("Expected min file size 10240, got %d", cfg.MinFileSize)
	}
	if cfg.FFmpegRetryWait != 60*time.Second {
		t.Errorf("Expected 60s retry wait, got %v", cfg.FFmpegRetryWait)
	}
	if cfg.BinDir != filepath.Join(dir, "bin") {
		t.Errorf("Unexpected bin dir %s", cfg.BinDir)
	}
	if cfg.OutputDir != filepath.Join(dir, "downloads") {
		t.Errorf("Unexpected output dir %s", cfg.OutputDir)
	}
	if cfg.DatabaseFile != filepath.Join(dir, "ytarr.db") {
		t.Errorf("Unexpected database file %s", cfg.DatabaseFile)
	}
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("DEFAULT_QUALITY", "best")
	t.Setenv("YTDLP_PATH", "/usr/local/bin/yt-dlp")
	t.Setenv("EXTRACTOR_MIN_INTERVAL_MS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefaultQuality != "best" {
		t.Errorf("Expected best, got %s", cfg.DefaultQuality)
	}
	if cfg.YtDlpPath != "/usr/local/bin/yt-dlp" {
		t.Errorf("Unexpected yt-dlp path %s", cfg.YtDlpPath)
	}
	if cfg.ExtractorMinInterval != 250*time.Millisecond {
		t.Errorf("Unexpected interval %v", cfg.ExtractorMinInterval)
	}
}

func TestLoadRejectsInvalidQuality(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("DEFAULT_QUALITY", "ultra")

	if _, err := Load(); err == nil {
		t.Fatal("Expected an invalid DEFAULT_QUALITY to be rejected")
	}
}
