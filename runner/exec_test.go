package runner

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orcbuild/graph"
	"orcbuild/log"
)

func TestRunner_SuccessExitZero(t *testing.T) {
	dir := t.TempDir()
	r := New(log.NoOpLogger{})
	cmd := graph.NewPackageCmd(dir, []string{"true"}, "widget")
	if err := r.Run(cmd); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestRunner_NonZeroExitIsError(t *testing.T) {
	dir := t.TempDir()
	r := New(log.NoOpLogger{})
	cmd := graph.NewPackageCmd(dir, []string{"false"}, "widget")
	if err := r.Run(cmd); err == nil {
		t.Fatal("Run() = nil, want error for non-zero exit")
	}
}

func TestRunner_SkipIsNoop(t *testing.T) {
	r := New(log.NoOpLogger{})
	cmd := graph.NewPackageCmd("/nonexistent", []string{"false"}, "widget")
	cmd.MarkSkip()
	if err := r.Run(cmd); err != nil {
		t.Fatalf("Run() on skipped cmd = %v, want nil", err)
	}
}

func TestRunner_MissingBinaryIsError(t *testing.T) {
	dir := t.TempDir()
	r := New(log.NoOpLogger{})
	cmd := graph.NewPackageCmd(dir, []string{"this-binary-does-not-exist-anywhere"}, "widget")
	if err := r.Run(cmd); err == nil {
		t.Fatal("Run() = nil, want error for missing binary")
	}
}

func TestRunner_EnvOverlayVisible(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "out.txt")
	r := New(log.NoOpLogger{})
	cmd := graph.NewPackageCmd(dir, []string{"sh", "-c", "echo $BS_PACKAGE_NAME > " + marker}, "widget")
	if err := r.Run(cmd); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if got := string(data); got != "widget\n" {
		t.Errorf("BS_PACKAGE_NAME overlay = %q, want %q", got, "widget\n")
	}
}

func TestRunner_EmptyArgvIsError(t *testing.T) {
	r := New(log.NoOpLogger{})
	cmd := &graph.PackageCmd{Dir: t.TempDir()}
	if err := r.Run(cmd); err == nil {
		t.Fatal("Run() = nil, want error for empty argv")
	}
}

func TestRunner_TimeoutKillsProcess(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Logger: log.NoOpLogger{}, Timeout: 50 * time.Millisecond}
	cmd := graph.NewPackageCmd(dir, []string{"sleep", "5"}, "widget")

	start := time.Now()
	err := r.Run(cmd)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Run() = nil, want error for timed-out command")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run() took %v, expected the timeout to cut it short", elapsed)
	}
}

func TestRunner_FetchURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("distfile contents\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "dl", "widget-1.0.tar.gz")
	r := New(log.NoOpLogger{})
	cmd := &graph.PackageCmd{Dir: dir, Argv: []string{"fetch-url", srv.URL, dest}}
	if err := r.Run(cmd); err != nil {
		t.Fatalf("Run(fetch-url) = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read fetched file: %v", err)
	}
	if string(data) != "distfile contents\n" {
		t.Errorf("fetched content = %q, want %q", data, "distfile contents\n")
	}
}

func TestRunner_FetchURLBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := New(log.NoOpLogger{})
	cmd := &graph.PackageCmd{Dir: dir, Argv: []string{"fetch-url", srv.URL, filepath.Join(dir, "dl", "x")}}
	if err := r.Run(cmd); err == nil {
		t.Fatal("Run(fetch-url) = nil, want error for 404 response")
	}
}

func TestRunner_CapturesMemoryLoggerLines(t *testing.T) {
	dir := t.TempDir()
	ml := log.NewMemoryLogger()
	r := New(ml)
	cmd := graph.NewPackageCmd(dir, []string{"true"}, "widget")
	if err := r.Run(cmd); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if ml.Count() == 0 {
		t.Error("expected at least one logged line for a run command")
	}
}
