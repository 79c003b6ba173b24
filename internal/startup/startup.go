package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/classifier"
	"media-pipeline/internal/logging"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

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
	DataDir   string
	UploadDir string
	Port      string

	MetricsEnabled  bool
	LogHealthChecks bool

	RedisAddr    string
	RedisChannel string

	PipelineWorkers   int
	PipelineQueueSize int
	ProbeTimeout      time.Duration
	ThumbnailTimeout  time.Duration
	MaxUploadBytes    int64

	Thresholds     classifier.Thresholds
	ClassifierSeed int64

	// Derived paths
	DatabasePath string
	ThumbnailDir string
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file in the working directory, when present, is loaded first.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Info("Loaded environment from .env file")
	}

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	uploadDir := getEnv("UPLOAD_DIR", "")
	port := getEnv("PORT", "8080")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	redisAddr := getEnv("REDIS_ADDR", "")
	redisChannel := getEnv("REDIS_CHANNEL", "media-pipeline:events")
	pipelineWorkers := getEnvInt("PIPELINE_WORKERS", 0)
	queueSize := getEnvInt("PIPELINE_QUEUE_SIZE", 64)
	probeTimeout := getEnvDuration("PROBE_TIMEOUT", 30*time.Second)
	thumbnailTimeout := getEnvDuration("THUMBNAIL_TIMEOUT", 30*time.Second)
	maxUploadMB := getEnvInt("MAX_UPLOAD_MB", 2048)
	classifierSeed := int64(getEnvInt("CLASSIFIER_SEED", 0))

	logging.Info("  DATA_DIR:            %s", dataDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	if redisAddr != "" {
		logging.Info("  REDIS_ADDR:          %s", redisAddr)
		logging.Info("  REDIS_CHANNEL:       %s", redisChannel)
	} else {
		logging.Info("  REDIS_ADDR:          (unset, in-process event bus)")
	}
	logging.Info("  PIPELINE_WORKERS:    %s", autoString(pipelineWorkers))
	logging.Info("  PIPELINE_QUEUE_SIZE: %d", queueSize)
	logging.Info("  PROBE_TIMEOUT:       %s", probeTimeout)
	logging.Info("  THUMBNAIL_TIMEOUT:   %s", thumbnailTimeout)
	logging.Info("  MAX_UPLOAD_MB:       %d", maxUploadMB)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	thresholds := loadThresholds()

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	if uploadDir == "" {
		uploadDir = filepath.Join(dataDir, "uploads")
	}
	uploadDir, err = filepath.Abs(uploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory path: %w", err)
	}
	logging.Info("  Upload directory (absolute): %s", uploadDir)

	config := &Config{
		DataDir:           dataDir,
		UploadDir:         uploadDir,
		Port:              port,
		MetricsEnabled:    metricsEnabled,
		LogHealthChecks:   logHealthChecks,
		RedisAddr:         redisAddr,
		RedisChannel:      redisChannel,
		PipelineWorkers:   pipelineWorkers,
		PipelineQueueSize: queueSize,
		ProbeTimeout:      probeTimeout,
		ThumbnailTimeout:  thumbnailTimeout,
		MaxUploadBytes:    int64(maxUploadMB) * 1024 * 1024,
		Thresholds:        thresholds,
		ClassifierSeed:    classifierSeed,
		DatabasePath:      filepath.Join(dataDir, "media-pipeline.db"),
		ThumbnailDir:      filepath.Join(dataDir, "thumbnails"),
	}

	// All three directories are required: uploads hold source bytes,
	// thumbnails hold derived stills, and the data root holds the
	// database.
	for _, dir := range []struct{ path, name string }{
		{dataDir, "data"},
		{uploadDir, "upload"},
		{config.ThumbnailDir, "thumbnail"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable", dir.name)
	}

	return config, nil
}

// loadThresholds builds classification thresholds from the defaults plus
// any SENSITIVITY_THRESHOLD_* overrides.
func loadThresholds() classifier.Thresholds {
	th := classifier.DefaultThresholds()

	for _, cat := range classifier.Categories {
		key := "SENSITIVITY_THRESHOLD_" + strings.ToUpper(cat.Key)
		if v := getEnvInt(key, -1); v >= 0 && v <= 100 {
			th.Categories[cat.Key] = v
			logging.Info("  %s: %d", key, v)
		}
	}
	if v := getEnvInt("SENSITIVITY_THRESHOLD_OVERALL", -1); v >= 0 && v <= 100 {
		th.Overall = v
		logging.Info("  SENSITIVITY_THRESHOLD_OVERALL: %d", v)
	}
	return th
}

func autoString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

// LogStoreInit logs asset store initialization
func LogStoreInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ASSET STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Asset store initialized in %v", duration)
}

// LogMediaToolsInit checks for the external tools the probe and thumbnail
// stages shell out to. Both stages degrade gracefully when a tool is
// missing, so failures here are warnings.
func LogMediaToolsInit() {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLS")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		if err := checkTool(tool); err != nil {
			logging.Warn("  %s check failed: %v", tool, err)
			logging.Warn("  Assets will complete without the fields %s provides", tool)
		} else {
			logging.Info("  [OK] %s is available", tool)
		}
	}
}

// LogPipelineInit logs pipeline startup
func LogPipelineInit(workers, queueSize int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers:    %s", autoString(workers))
	logging.Info("  Queue size: %d", queueSize)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
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
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
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
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
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
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
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

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___      ___  _          ___
   /  |/  /__  ____/ (_)__ _/ _ \(_)__  ___ / (_)__  ___
  / /|_/ / _ \/ __  / / __ '/ ___/ / _ \/ -_) / / _ \/ -_)
 / /  / /  __/ /_/ / / /_/ / /  / / ,_/\__/_/_/_//_/\__/
/_/  /_/\___/\__,_/_/\__,_/_/  /_/_/

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

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

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
		// Write access was confirmed regardless
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
