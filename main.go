package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screencast/internal/catalog"
	"screencast/internal/database"
	"screencast/internal/filesystem"
	"screencast/internal/handlers"
	"screencast/internal/logging"
	"screencast/internal/media"
	"screencast/internal/memory"
	"screencast/internal/metrics"
	"screencast/internal/middleware"
	"screencast/internal/playback"
	"screencast/internal/startup"
	"screencast/internal/storage"
	"screencast/internal/upload"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// services holds what handleShutdown has to stop.
type services struct {
	server        *http.Server
	metricsServer *http.Server
	collector     *metrics.Collector
	memMonitor    *memory.Monitor
	db            *database.Database
	vips          bool
}

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.Configure(config.MemoryLimit, config.MemoryRatio)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"recordings": config.StorageDir,
		"database":   config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	metrics.InitializeMetrics()
	buildInfo := startup.GetBuildInfo()
	metrics.SetAppInfo(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion, config.Persistence)

	// Object storage
	store, err := storage.NewLocalStore(config.StorageDir, config.BaseURL)
	if err != nil {
		startup.LogFatal("Failed to initialize storage: %v", err)
	}
	startup.LogStorageInit(config.StorageDir, config.BaseURL+"/objects")

	svc := &services{}

	// The record strategy keeps its catalog in SQLite
	if config.UsesDatabase() {
		dbStart := time.Now()
		db, err := database.New(context.Background(), config.DatabasePath)
		if err != nil {
			startup.LogFatal("Failed to initialize database: %v", err)
		}
		svc.db = db
		startup.LogDatabaseInit(time.Since(dbStart))
	}

	cat, err := catalog.New(config.Persistence, store, svc.db)
	if err != nil {
		startup.LogFatal("Failed to initialize catalog: %v", err)
	}
	startup.LogCatalogInit(config.Persistence)

	// Thumbnails
	extractor := media.NewFFmpegExtractor()
	config.ThumbnailsEnabled = startup.LogThumbnailInit(config.ThumbnailsEnabled, extractor.Binary)
	if config.ThumbnailsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, encoding thumbnails with the standard library: %v", err)
		} else {
			svc.vips = true
		}
	}
	thumbs := media.NewGenerator(extractor, config.ThumbnailsEnabled)

	svc.memMonitor = memory.NewMonitor(memory.DefaultConfig())
	svc.memMonitor.Start()

	publisher := upload.NewPublisher(store, cat, thumbs, config.BaseURL)
	h := handlers.New(playback.NewService(cat), publisher, store, thumbs, config)
	h.SetMemoryMonitor(svc.memMonitor)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	logged := middleware.Logger(middleware.LogOptions{
		Objects:      config.LogStaticFiles,
		HealthChecks: config.LogHealthChecks,
	})
	handler := middleware.Compression(logged(middleware.Metrics(router)))

	// Uploads and range requests can be long, so there is no write timeout
	svc.server = &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Minute,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		dbPath := ""
		if svc.db != nil {
			dbPath = svc.db.Path()
		}
		svc.collector = metrics.NewCollector(cat, dbPath, time.Minute)
		svc.collector.Start()
		svc.metricsServer = startMetricsServer(config.MetricsPort)
	}

	shutdownDone := make(chan struct{})
	go func() {
		handleShutdown(svc)
		close(shutdownDone)
	}()

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		BaseURL:         config.BaseURL,
		StartupDuration: time.Since(startTime),
	})
	if err := svc.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	// ListenAndServe returns as soon as Shutdown starts
	<-shutdownDone
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Route)
	h.RegisterRoutes(r)
	return r
}

func startMetricsServer(port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(svc *services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := svc.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if svc.metricsServer != nil {
		startup.LogShutdownStep("Stopping metrics")
		svc.collector.Stop()
		if err := svc.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
		startup.LogShutdownStepComplete("Metrics stopped")
	}

	svc.memMonitor.Stop()

	if svc.db != nil {
		startup.LogShutdownStep("Closing database")
		if err := svc.db.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Database closed")
		}
	}

	if svc.vips {
		media.ShutdownVips()
	}

	startup.LogShutdownComplete()
}
