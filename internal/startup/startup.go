package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"screencast/internal/logging"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Persistence strategies accepted by PERSISTENCE.
const (
	PersistenceRecords = "records"
	PersistenceBlobs   = "blobs"
)

// DefaultMaxUploadSize caps an ingested recording at 2GiB.
const DefaultMaxUploadSize int64 = 2 << 30

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	BaseURL         string
	StorageDir      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	Persistence     string
	MaxUploadSize   int64
	LogStaticFiles  bool
	LogHealthChecks bool
	MetricsEnabled  bool

	// MemoryLimit is the container memory limit in bytes (0 = unset) and
	// MemoryRatio the share of it given to GOMEMLIMIT.
	MemoryLimit int64
	MemoryRatio float64

	// Derived paths
	DatabasePath string

	// ThumbnailsEnabled is THUMBNAILS_ENABLED, cleared when ffmpeg is missing.
	ThumbnailsEnabled bool
}

// UsesDatabase reports whether the record strategy is active.
func (c *Config) UsesDatabase() bool {
	return c.Persistence == PersistenceRecords
}

// newViper returns a viper instance bound to the environment with every
// default in place.
func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("METRICS_PORT", "9090")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("STORAGE_DIR", "/data/recordings")
	v.SetDefault("DATABASE_DIR", "/database")
	v.SetDefault("PERSISTENCE", PersistenceRecords)
	v.SetDefault("THUMBNAILS_ENABLED", true)
	v.SetDefault("MAX_UPLOAD_SIZE", DefaultMaxUploadSize)
	v.SetDefault("LOG_STATIC_FILES", false)
	v.SetDefault("LOG_HEALTH_CHECKS", true)
	v.SetDefault("MEMORY_LIMIT", 0)
	v.SetDefault("MEMORY_RATIO", 0.85)
	return v
}

// readConfig builds a Config from the environment without touching the
// filesystem.
func readConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("PORT"),
		MetricsPort:       v.GetString("METRICS_PORT"),
		MetricsEnabled:    v.GetBool("METRICS_ENABLED"),
		StorageDir:        v.GetString("STORAGE_DIR"),
		DatabaseDir:       v.GetString("DATABASE_DIR"),
		Persistence:       strings.ToLower(strings.TrimSpace(v.GetString("PERSISTENCE"))),
		ThumbnailsEnabled: v.GetBool("THUMBNAILS_ENABLED"),
		MaxUploadSize:     v.GetInt64("MAX_UPLOAD_SIZE"),
		LogStaticFiles:    v.GetBool("LOG_STATIC_FILES"),
		LogHealthChecks:   v.GetBool("LOG_HEALTH_CHECKS"),
		MemoryLimit:       v.GetInt64("MEMORY_LIMIT"),
		MemoryRatio:       v.GetFloat64("MEMORY_RATIO"),
	}

	cfg.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	switch cfg.Persistence {
	case PersistenceRecords, PersistenceBlobs:
	default:
		return nil, fmt.Errorf("unknown PERSISTENCE %q (want %s or %s)", cfg.Persistence, PersistenceRecords, PersistenceBlobs)
	}

	if cfg.MaxUploadSize <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_SIZE, using default: %d", DefaultMaxUploadSize)
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "screencast.db")
	return cfg, nil
}

// loadDotEnv loads .env from the working directory when one exists.
// Variables already set in the environment win.
func loadDotEnv() {
	err := godotenv.Load()
	switch {
	case err == nil:
		logging.Info("  Loaded .env file")
	case errors.Is(err, fs.ErrNotExist):
	default:
		logging.Warn("  Failed to load .env file: %v", err)
	}
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	loadDotEnv()

	config, err := readConfig(newViper())
	if err != nil {
		return nil, err
	}

	logging.Info("  BASE_URL:            %s", config.BaseURL)
	logging.Info("  STORAGE_DIR:         %s", config.StorageDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  PERSISTENCE:         %s", config.Persistence)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  THUMBNAILS_ENABLED:  %v", config.ThumbnailsEnabled)
	logging.Info("  MAX_UPLOAD_SIZE:     %d", config.MaxUploadSize)
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  MEMORY_LIMIT:        %d", config.MemoryLimit)
	logging.Info("  MEMORY_RATIO:        %.2f", config.MemoryRatio)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.StorageDir, err = filepath.Abs(config.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory path: %w", err)
	}
	logging.Info("  Storage directory (absolute): %s", config.StorageDir)

	if err := ensureDirectory(config.StorageDir, "storage"); err != nil {
		return nil, fmt.Errorf("storage directory error: %w", err)
	}
	if err := testWriteAccess(config.StorageDir); err != nil {
		return nil, fmt.Errorf("storage directory is not writable: %w", err)
	}
	logging.Info("  [OK] Storage directory is writable")

	if config.UsesDatabase() {
		config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
		}
		config.DatabasePath = filepath.Join(config.DatabaseDir, "screencast.db")
		logging.Info("  Database directory (absolute): %s", config.DatabaseDir)

		if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
			return nil, fmt.Errorf("database directory error: %w", err)
		}

		logging.Debug("  Testing database directory write access...")
		if err := testWriteAccess(config.DatabaseDir); err != nil {
			return nil, fmt.Errorf("database directory is not writable (required for records): %w", err)
		}
		logging.Info("  [OK] Database directory is writable")
	} else {
		logging.Info("  Database directory not used (PERSISTENCE=%s)", config.Persistence)
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    %s", enabledString(config.UsesDatabase()))
	logging.Info("    Thumbnails:  %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogStorageInit logs object storage initialization
func LogStorageInit(root, publicPrefix string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STORAGE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Root:        %s", root)
	logging.Info("  Public URLs: %s/{path}", publicPrefix)
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogCatalogInit logs which persistence strategy serves the catalog
func LogCatalogInit(kind string) {
	logging.Info("  [OK] Catalog strategy: %s", kind)
}

// LogThumbnailInit checks FFmpeg and reports whether thumbnails will be
// generated. It returns the effective setting.
func LogThumbnailInit(enabled bool, binary string) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !enabled {
		logging.Info("  Thumbnails disabled (THUMBNAILS_ENABLED=false)")
		logging.Info("  Recordings will be published without a poster image")
		return false
	}

	if err := checkFFmpeg(binary); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Thumbnails will be disabled")
		return false
	}
	logging.Info("  [OK] FFmpeg is available")
	return true
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			pathTemplate, err = route.GetPathRegexp()
			if err != nil {
				return err
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Prefix routes have no methods
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Object request logging: ON")
	} else {
		logging.Info("    Object request logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	BaseURL         string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	logging.Info("    Share links:   %s/v/{shareId}", config.BaseURL)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   _____                                          __
  / ___/_____________  ___  ____  _________ ______/ /_
  \__ \/ ___/ ___/ _ \/ _ \/ __ \/ ___/ __ '/ ___/ __/
 ___/ / /__/ /  /  __/  __/ / / / /__/ /_/ (__  ) /_
/____/\___/_/   \___/\___/_/ /_/\___/\__,_/____/\__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg(binary string) error {
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}
