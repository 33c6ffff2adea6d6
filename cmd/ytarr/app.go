package main

import (
	"github.com/amaumene/ytarr/internal/config"
	"github.com/amaumene/ytarr/internal/controllers"
	"github.com/amaumene/ytarr/internal/metrics"
	"github.com/amaumene/ytarr/internal/services/ffmpeg"
	"github.com/amaumene/ytarr/internal/services/limiter"
	"github.com/amaumene/ytarr/internal/services/process"
	"github.com/amaumene/ytarr/internal/services/storage"
	"github.com/amaumene/ytarr/internal/services/ytdlp"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// app holds the components shared by every command
type app struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	resolver  *ffmpeg.Resolver
	catalog   *controllers.CatalogController
	downloads *controllers.DownloadController
	status    *controllers.StatusController
	logger    *logrus.Logger
}

func newApp(cfg *config.Config, logger *logrus.Logger) *app {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Load blacklist
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load blacklist, continuing without it")
		blacklist = utils.NewBlacklist()
	} else {
		logger.WithField("terms", blacklist.Len()).Debug("Blacklist loaded")
	}

	fs := afero.NewOsFs()
	runner := process.NewExecRunner(logger)
	extractor := ytdlp.NewClient(cfg, runner, fs, m, logger)
	l := limiter.New(cfg.ExtractorMinInterval, m, logger)

	resolver := ffmpeg.NewResolver(cfg, runner, fs, ffmpeg.NewHTTPFetcher(cfg.FFmpegDownloadTimeout, logger), m, logger)
	verifier := storage.NewVerifier(fs, cfg.MinFileSize, logger)

	catalog := controllers.NewCatalogController(l, extractor, blacklist, cfg.CatalogCacheTTL, logger)
	downloads := controllers.NewDownloadController(cfg, l, extractor, catalog, resolver, verifier, m, logger)
	status := controllers.NewStatusController(l, extractor, catalog, logger)

	return &app{
		cfg:       cfg,
		registry:  registry,
		resolver:  resolver,
		catalog:   catalog,
		downloads: downloads,
		status:    status,
		logger:    logger,
	}
}
