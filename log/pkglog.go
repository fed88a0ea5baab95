package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PackageLogger is the per-package build log: one file per (namespace,
// name) under the run's logs directory, holding phase markers and raw
// command output (§7's per-package log requirement). It satisfies
// LibraryLogger so graph.Package can use it directly as its Logger.
type PackageLogger struct {
	ns, name string
	path     string
	file     *os.File
	mu       sync.Mutex
}

// NewPackageLogger opens (creating if necessary) the log file for
// (ns, name) under logsPath/<ns>/<name>.log.
func NewPackageLogger(logsPath, ns, name string) (*PackageLogger, error) {
	dir := filepath.Join(logsPath, ns)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating package log directory: %w", err)
	}

	path := filepath.Join(dir, name+".log")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating package log file: %w", err)
	}

	pl := &PackageLogger{ns: ns, name: name, path: path, file: f}
	pl.WriteHeader()
	return pl, nil
}

// Path returns the filesystem path of this package's log file.
func (pl *PackageLogger) Path() string { return pl.path }

// Close closes the underlying file.
func (pl *PackageLogger) Close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.file.Close()
}

// Write implements io.Writer so PackageLogger can be wired directly as
// a runner.CommandRunner's stdout/stderr sink.
func (pl *PackageLogger) Write(p []byte) (int, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	n, err := pl.file.Write(p)
	pl.file.Sync()
	return n, err
}

var _ io.Writer = (*PackageLogger)(nil)

func (pl *PackageLogger) Info(format string, args ...any) {
	pl.writeLine("INFO", fmt.Sprintf(format, args...))
}

func (pl *PackageLogger) Debug(format string, args ...any) {
	pl.writeLine("DEBUG", fmt.Sprintf(format, args...))
}

func (pl *PackageLogger) Warn(format string, args ...any) {
	pl.writeLine("WARN", fmt.Sprintf(format, args...))
}

func (pl *PackageLogger) Error(format string, args ...any) {
	pl.writeLine("ERROR", fmt.Sprintf(format, args...))
}

func (pl *PackageLogger) writeLine(level, msg string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fmt.Fprintf(pl.file, "[%s] %s: %s\n", time.Now().Format("15:04:05"), level, msg)
	pl.file.Sync()
}

func (pl *PackageLogger) WriteHeader() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(pl.file, "Build Log: %s/%s\n", pl.ns, pl.name)
	fmt.Fprintf(pl.file, "Started: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(pl.file, "%s\n\n", strings.Repeat("=", 70))
	pl.file.Sync()
}

func (pl *PackageLogger) WritePhase(phase string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	fmt.Fprintf(pl.file, "\n")
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(pl.file, "Phase: %s\n", phase)
	fmt.Fprintf(pl.file, "Time: %s\n", time.Now().Format("15:04:05"))
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	pl.file.Sync()
}

func (pl *PackageLogger) WriteSuccess(duration time.Duration) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	fmt.Fprintf(pl.file, "\n")
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(pl.file, "BUILD SUCCESS\n")
	fmt.Fprintf(pl.file, "Completed: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(pl.file, "Duration: %s\n", duration)
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	pl.file.Sync()
}

func (pl *PackageLogger) WriteFailure(duration time.Duration, reason string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	fmt.Fprintf(pl.file, "\n")
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	fmt.Fprintf(pl.file, "BUILD FAILED\n")
	fmt.Fprintf(pl.file, "Reason: %s\n", reason)
	fmt.Fprintf(pl.file, "Completed: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(pl.file, "Duration: %s\n", duration)
	fmt.Fprintf(pl.file, "%s\n", strings.Repeat("=", 70))
	pl.file.Sync()
}
