package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"orcbuild/config"
)

// Logger manages the run-wide log files: one running results stream
// plus per-outcome rollups (success/failure/skipped), written
// alongside the per-package build logs that PackageLogger owns.
type Logger struct {
	cfg         *config.Config
	resultsFile *os.File
	successFile *os.File
	failureFile *os.File
	skippedFile *os.File
	debugFile   *os.File
	mu          sync.Mutex
}

// NewLogger creates the run-wide logger, opening files under
// cfg.LogsPath.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	l := &Logger{cfg: cfg}

	var err error
	if l.resultsFile, err = os.Create(filepath.Join(cfg.LogsPath, "00_last_results.log")); err != nil {
		return nil, err
	}
	if l.successFile, err = os.Create(filepath.Join(cfg.LogsPath, "01_success_list.log")); err != nil {
		return nil, err
	}
	if l.failureFile, err = os.Create(filepath.Join(cfg.LogsPath, "02_failure_list.log")); err != nil {
		return nil, err
	}
	if l.skippedFile, err = os.Create(filepath.Join(cfg.LogsPath, "03_skipped_list.log")); err != nil {
		return nil, err
	}
	if l.debugFile, err = os.Create(filepath.Join(cfg.LogsPath, "04_debug.log")); err != nil {
		return nil, err
	}

	l.writeHeaders()
	return l, nil
}

// Close closes every open log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range []*os.File{l.resultsFile, l.successFile, l.failureFile, l.skippedFile, l.debugFile} {
		if f != nil {
			f.Close()
		}
	}
}

func (l *Logger) writeHeaders() {
	timestamp := time.Now().Format(time.RFC3339)

	fmt.Fprintf(l.resultsFile, "orcbuild run log - %s\n", timestamp)
	fmt.Fprintf(l.resultsFile, "%s\n\n", strings.Repeat("=", 70))

	fmt.Fprintf(l.successFile, "Successful builds - %s\n\n", timestamp)
	fmt.Fprintf(l.failureFile, "Failed builds - %s\n\n", timestamp)
	fmt.Fprintf(l.skippedFile, "Skipped packages - %s\n\n", timestamp)
	fmt.Fprintf(l.debugFile, "Debug log - %s\n\n", timestamp)
}

// Success records a successful package build.
func (l *Logger) Success(ns, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	ref := ns + "/" + name
	fmt.Fprintf(l.resultsFile, "[%s] SUCCESS: %s\n", ts, ref)
	fmt.Fprintf(l.successFile, "%s\n", ref)

	l.resultsFile.Sync()
	l.successFile.Sync()
}

// Failed records a failed package build, naming the pipeline phase it
// failed at.
func (l *Logger) Failed(ns, name, phase string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	ref := ns + "/" + name
	fmt.Fprintf(l.resultsFile, "[%s] FAILED: %s (phase: %s)\n", ts, ref, phase)
	fmt.Fprintf(l.failureFile, "%s (phase: %s)\n", ref, phase)

	l.resultsFile.Sync()
	l.failureFile.Sync()
}

// Skipped records a forced-mode skip.
func (l *Logger) Skipped(ns, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	ref := ns + "/" + name
	fmt.Fprintf(l.resultsFile, "[%s] SKIPPED: %s\n", ts, ref)
	fmt.Fprintf(l.skippedFile, "%s\n", ref)

	l.resultsFile.Sync()
	l.skippedFile.Sync()
}

// Debug appends a line to the run-wide debug log.
func (l *Logger) Debug(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(l.debugFile, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
	l.debugFile.Sync()
}

// Error appends an error line to both the results and debug logs.
func (l *Logger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	msg := fmt.Sprintf("[%s] ERROR: %s\n", ts, fmt.Sprintf(format, args...))
	l.resultsFile.WriteString(msg)
	l.debugFile.WriteString(msg)
	l.resultsFile.Sync()
	l.debugFile.Sync()
}

// Info appends an info line to the results log.
func (l *Logger) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(l.resultsFile, "[%s] INFO: %s\n", ts, fmt.Sprintf(format, args...))
	l.resultsFile.Sync()
}

// Warn appends a warning line to the results log.
func (l *Logger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(l.resultsFile, "[%s] WARN: %s\n", ts, fmt.Sprintf(format, args...))
	l.resultsFile.Sync()
}

// WriteSummary appends an end-of-run summary block.
func (l *Logger) WriteSummary(total, success, failed, skipped int, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.resultsFile, "\n%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(l.resultsFile, "BUILD SUMMARY\n")
	fmt.Fprintf(l.resultsFile, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(l.resultsFile, "Total packages:    %d\n", total)
	fmt.Fprintf(l.resultsFile, "Success:           %d\n", success)
	fmt.Fprintf(l.resultsFile, "Failed:            %d\n", failed)
	fmt.Fprintf(l.resultsFile, "Skipped:           %d\n", skipped)
	fmt.Fprintf(l.resultsFile, "Duration:          %s\n", duration)
	fmt.Fprintf(l.resultsFile, "%s\n", strings.Repeat("=", 70))

	l.resultsFile.Sync()
}

// Factory returns a graph.LoggerFactory-compatible func: it opens a
// PackageLogger per (namespace, name) under cfg.LogsPath, falling back
// to NoOpLogger if the file can't be created (reported via Error).
func (l *Logger) Factory() func(ns, name string) LibraryLogger {
	return func(ns, name string) LibraryLogger {
		pl, err := NewPackageLogger(l.cfg.LogsPath, ns, name)
		if err != nil {
			l.Error("opening package logger for %s/%s: %v", ns, name, err)
			return NoOpLogger{}
		}
		return pl
	}
}
