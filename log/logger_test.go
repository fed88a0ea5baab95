package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orcbuild/config"
)

func newTestLogger(t *testing.T) (*Logger, *config.Config) {
	t.Helper()
	cfg := &config.Config{LogsPath: filepath.Join(t.TempDir(), "logs")}
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(logger.Close)
	return logger, cfg
}

func TestNewLogger(t *testing.T) {
	_, cfg := newTestLogger(t)

	if _, err := os.Stat(cfg.LogsPath); os.IsNotExist(err) {
		t.Error("Logs directory was not created")
	}

	expectedFiles := []string{
		"00_last_results.log",
		"01_success_list.log",
		"02_failure_list.log",
		"03_skipped_list.log",
		"04_debug.log",
	}
	for _, filename := range expectedFiles {
		if _, err := os.Stat(filepath.Join(cfg.LogsPath, filename)); os.IsNotExist(err) {
			t.Errorf("Log file %s was not created", filename)
		}
	}
}

func TestLogger_Success(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Success("devel", "git")

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "01_success_list.log"))
	if err != nil {
		t.Fatalf("Failed to read success log: %v", err)
	}
	if !strings.Contains(string(content), "devel/git") {
		t.Errorf("Success log does not contain devel/git")
	}

	content, err = os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	if !strings.Contains(string(content), "SUCCESS") || !strings.Contains(string(content), "devel/git") {
		t.Error("Results log missing SUCCESS entry for devel/git")
	}
}

func TestLogger_Failed(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Failed("www", "nginx", "configure")

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "02_failure_list.log"))
	if err != nil {
		t.Fatalf("Failed to read failure log: %v", err)
	}
	if !strings.Contains(string(content), "www/nginx") || !strings.Contains(string(content), "configure") {
		t.Errorf("Failure log missing expected entry: %s", content)
	}

	content, err = os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	if !strings.Contains(string(content), "FAILED") {
		t.Error("Results log does not contain FAILED")
	}
}

func TestLogger_Skipped(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Skipped("editors", "vim")

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "03_skipped_list.log"))
	if err != nil {
		t.Fatalf("Failed to read skipped log: %v", err)
	}
	if !strings.Contains(string(content), "editors/vim") {
		t.Errorf("Skipped log does not contain editors/vim")
	}
}

func TestLogger_Debug(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Debug("checking dependency tree for %s", "git")

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "04_debug.log"))
	if err != nil {
		t.Fatalf("Failed to read debug log: %v", err)
	}
	if !strings.Contains(string(content), "checking dependency tree for git") {
		t.Errorf("Debug log does not contain expected message")
	}
}

func TestLogger_Error(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Error("out of disk space")

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	if !strings.Contains(string(content), "ERROR") || !strings.Contains(string(content), "out of disk space") {
		t.Error("Results log missing ERROR entry")
	}

	content, err = os.ReadFile(filepath.Join(cfg.LogsPath, "04_debug.log"))
	if err != nil {
		t.Fatalf("Failed to read debug log: %v", err)
	}
	if !strings.Contains(string(content), "out of disk space") {
		t.Error("Debug log missing error message")
	}
}

func TestLogger_Info(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Info("starting build process")

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	if !strings.Contains(string(content), "INFO") || !strings.Contains(string(content), "starting build process") {
		t.Error("Results log missing INFO entry")
	}
}

func TestLogger_Warn(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.Warn("package %s has %d missing dependencies", "git", 3)

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	if !strings.Contains(string(content), "WARN") || !strings.Contains(string(content), "package git has 3 missing dependencies") {
		t.Error("Results log missing WARN entry")
	}
}

func TestLogger_WriteSummary(t *testing.T) {
	logger, cfg := newTestLogger(t)

	logger.WriteSummary(100, 85, 10, 5, 45*time.Minute)

	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "BUILD SUMMARY") {
		t.Error("Summary does not contain BUILD SUMMARY header")
	}
	for _, expected := range []string{"Total packages:", "Success:", "Failed:", "Skipped:", "Duration:"} {
		if !strings.Contains(contentStr, expected) {
			t.Errorf("Summary does not contain %q", expected)
		}
	}
}

func TestLogger_Close(t *testing.T) {
	logger, _ := newTestLogger(t)
	logger.Close()
	logger.Close() // must not panic
}

func TestNewLogger_CreateDirError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Cannot test directory creation errors as root")
	}

	cfg := &config.Config{LogsPath: "/proc/invalid/logs"}
	if _, err := NewLogger(cfg); err == nil {
		t.Error("Expected error when creating logger in invalid directory")
	}
}

func TestLogger_ImplementsLibraryLogger(t *testing.T) {
	logger, cfg := newTestLogger(t)

	var _ LibraryLogger = logger

	logger.Info("build %s started for worker %d", "test-build", 5)
	content, err := os.ReadFile(filepath.Join(cfg.LogsPath, "00_last_results.log"))
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	if !strings.Contains(string(content), "build test-build started for worker 5") {
		t.Error("Info with formatting did not work correctly")
	}
}

func TestLogger_Factory(t *testing.T) {
	logger, cfg := newTestLogger(t)

	factory := logger.Factory()
	pl := factory("devel", "git")
	if pl == nil {
		t.Fatal("expected non-nil PackageLogger")
	}
	pl.Info("hello from %s", "git")

	entries, err := os.ReadDir(filepath.Join(cfg.LogsPath, "devel"))
	if err != nil {
		t.Fatalf("expected per-namespace log directory: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected a package log file under the namespace directory")
	}
}
