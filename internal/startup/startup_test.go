package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("TEST_UNSET_VAR")
	if got := getEnv("TEST_UNSET_VAR", "default"); got != "default" {
		t.Errorf("getEnv unset = %q, want default", got)
	}

	t.Setenv("TEST_SET_VAR", "custom")
	if got := getEnv("TEST_SET_VAR", "default"); got != "custom" {
		t.Errorf("getEnv set = %q, want custom", got)
	}

	t.Setenv("TEST_EMPTY_VAR", "")
	if got := getEnv("TEST_EMPTY_VAR", "default"); got != "default" {
		t.Errorf("getEnv empty = %q, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
		set          bool
	}{
		{"unset uses default", "", true, true, false},
		{"true", "true", false, true, true},
		{"false", "false", true, false, true},
		{"numeric one", "1", false, true, true},
		{"invalid uses default", "banana", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.set {
				t.Setenv(key, tt.value)
			} else {
				os.Unsetenv(key)
			}
			if got := getEnvBool(key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Unsetenv("TEST_INT_VAR")
	if got := getEnvInt("TEST_INT_VAR", 42); got != 42 {
		t.Errorf("getEnvInt unset = %d, want 42", got)
	}

	t.Setenv("TEST_INT_VAR", "7")
	if got := getEnvInt("TEST_INT_VAR", 42); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}

	t.Setenv("TEST_INT_VAR", "seven")
	if got := getEnvInt("TEST_INT_VAR", 42); got != 42 {
		t.Errorf("getEnvInt invalid = %d, want 42", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Unsetenv("TEST_DUR_VAR")
	if got := getEnvDuration("TEST_DUR_VAR", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration unset = %v, want 1m", got)
	}

	t.Setenv("TEST_DUR_VAR", "45s")
	if got := getEnvDuration("TEST_DUR_VAR", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration = %v, want 45s", got)
	}

	t.Setenv("TEST_DUR_VAR", "soon")
	if got := getEnvDuration("TEST_DUR_VAR", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration invalid = %v, want 1m", got)
	}
}

func TestLoadThresholds(t *testing.T) {
	for _, key := range []string{
		"SENSITIVITY_THRESHOLD_VIOLENCE",
		"SENSITIVITY_THRESHOLD_ADULT",
		"SENSITIVITY_THRESHOLD_HATE",
		"SENSITIVITY_THRESHOLD_DRUGS",
		"SENSITIVITY_THRESHOLD_LANGUAGE",
		"SENSITIVITY_THRESHOLD_OVERALL",
	} {
		os.Unsetenv(key)
	}

	th := loadThresholds()
	if th.Categories["violence"] != 70 || th.Overall != 65 {
		t.Errorf("defaults not applied: %+v", th)
	}

	t.Setenv("SENSITIVITY_THRESHOLD_VIOLENCE", "90")
	t.Setenv("SENSITIVITY_THRESHOLD_OVERALL", "50")
	t.Setenv("SENSITIVITY_THRESHOLD_ADULT", "150") // out of range, ignored

	th = loadThresholds()
	if th.Categories["violence"] != 90 {
		t.Errorf("violence threshold = %d, want 90", th.Categories["violence"])
	}
	if th.Overall != 50 {
		t.Errorf("overall threshold = %d, want 50", th.Overall)
	}
	if th.Categories["adult"] != 60 {
		t.Errorf("out-of-range adult threshold applied: %d", th.Categories["adult"])
	}
}

func TestEnsureDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	// Creates a missing directory.
	missing := filepath.Join(base, "new")
	if err := ensureDirectory(missing, "test"); err != nil {
		t.Fatalf("ensureDirectory(missing) = %v", err)
	}
	if info, err := os.Stat(missing); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	// Accepts an existing directory.
	if err := ensureDirectory(missing, "test"); err != nil {
		t.Fatalf("ensureDirectory(existing) = %v", err)
	}

	// Rejects a plain file.
	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "test"); err == nil {
		t.Error("ensureDirectory(file) = nil, want error")
	}
}

func TestTestWriteAccess(t *testing.T) {
	t.Parallel()

	if err := testWriteAccess(t.TempDir()); err != nil {
		t.Errorf("testWriteAccess(tempdir) = %v", err)
	}
	if err := testWriteAccess(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("testWriteAccess(missing) = nil, want error")
	}
}

func TestGetRouteGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/api/assets/{id}/stream", "api/assets"},
		{"/api/events", "api/events"},
		{"/health", "health"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	t.Parallel()

	router := mux.NewRouter()
	noop := func(w http.ResponseWriter, r *http.Request) {}
	router.HandleFunc("/api/assets", noop).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/api/assets/{id}", noop).Methods(http.MethodGet)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3 (method expansion)", len(routes))
	}
}

func TestLoadConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("DATA_DIR", base)
	t.Setenv("UPLOAD_DIR", "")
	t.Setenv("PORT", "9999")
	t.Setenv("PIPELINE_QUEUE_SIZE", "16")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.UploadDir != filepath.Join(base, "uploads") {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
	if cfg.ThumbnailDir != filepath.Join(base, "thumbnails") {
		t.Errorf("ThumbnailDir = %q", cfg.ThumbnailDir)
	}
	if cfg.DatabasePath != filepath.Join(base, "media-pipeline.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.PipelineQueueSize != 16 {
		t.Errorf("PipelineQueueSize = %d", cfg.PipelineQueueSize)
	}
	if cfg.MaxUploadBytes != 8*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}

	// Required directories exist and are writable.
	for _, dir := range []string{cfg.UploadDir, cfg.ThumbnailDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}
