// Package runner supplies the concrete CommandRunner and Extractor the
// graph core depends on only through interfaces (graph.CommandRunner,
// graph.Extractor). Nothing here is sandboxed or chrooted: sandboxing
// and platform portability beyond POSIX are out of scope, so a
// PackageCmd runs as a direct child of the orcbuild process with its
// own process group for clean teardown.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"orcbuild/graph"
	"orcbuild/log"
)

// Runner executes PackageCmd values as direct child processes, each in
// its own process group so a runaway command (and anything it forked)
// can be killed as a unit.
type Runner struct {
	// Logger receives one Info line per command before it runs, and an
	// Error line if it fails. Nil is treated as a no-op sink.
	Logger log.LibraryLogger

	// Stdout/Stderr, when set, receive every command's output in
	// addition to whatever the caller already captured via log files.
	// Nil discards.
	Stdout io.Writer
	Stderr io.Writer

	// Timeout bounds a single command's execution. Zero means no
	// per-command timeout (the only bound is an outer context, if any).
	Timeout time.Duration
}

// New returns a Runner with no output capture and no timeout.
func New(logger log.LibraryLogger) *Runner {
	return &Runner{Logger: logger}
}

// Run satisfies graph.CommandRunner: argv[0] is spawned with the
// parent's environment plus cmd.Env appended, rooted at cmd.Dir. Exit 0
// is success; any other exit, or a failure to even start the process,
// is an error (§4.3's "exit 0 is success, any other exit is failure" —
// the core has no use for a distinct "ran but failed" outcome the way
// a sandboxed Execute() with an ExitCode field would).
func (r *Runner) Run(cmd *graph.PackageCmd) error {
	if cmd.Skip {
		return nil
	}
	if len(cmd.Argv) == 0 {
		return fmt.Errorf("runner: empty command")
	}

	if r.Logger != nil {
		r.Logger.Info("+ %s", cmd.String())
	}

	// "fetch-url" is a synthetic verb the script binding's Fetch(dl, ...)
	// emits (script/env.go); it has no corresponding executable, so it's
	// handled natively rather than exec'd.
	if cmd.Argv[0] == "fetch-url" {
		if len(cmd.Argv) != 3 {
			return fmt.Errorf("runner: fetch-url wants 2 args, got %d", len(cmd.Argv)-1)
		}
		if err := fetchURL(cmd.Argv[1], cmd.Argv[2]); err != nil {
			if r.Logger != nil {
				r.Logger.Error("%s: %v", cmd.String(), err)
			}
			return err
		}
		return nil
	}

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = append(os.Environ(), cmd.Env...)

	var stdout, stderr io.Writer = io.Discard, io.Discard
	if r.Stdout != nil {
		stdout = r.Stdout
	}
	if r.Stderr != nil {
		stderr = r.Stderr
	}
	var captured bytes.Buffer
	execCmd.Stdout = io.MultiWriter(stdout, &captured)
	execCmd.Stderr = io.MultiWriter(stderr, &captured)

	// New process group so killGroup can reap the whole subtree instead
	// of just the immediate child.
	execCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err := execCmd.Start()
	if err != nil {
		if r.Logger != nil {
			r.Logger.Error("%s: failed to start: %v", cmd.String(), err)
		}
		return fmt.Errorf("runner: start %s: %w", cmd.String(), err)
	}

	waitErr := execCmd.Wait()
	killGroup(execCmd.Process.Pid)

	if waitErr == nil {
		return nil
	}

	if _, ok := waitErr.(*exec.ExitError); ok {
		if r.Logger != nil {
			r.Logger.Error("%s: %v\n%s", cmd.String(), waitErr, captured.String())
		}
		return fmt.Errorf("runner: %s: %w", cmd.String(), waitErr)
	}

	// Context deadline, signal, or some other failure to even complete
	// the wait; indistinguishable from a command failure to the caller
	// but still reported with as much detail as we have.
	if r.Logger != nil {
		r.Logger.Error("%s: %v", cmd.String(), waitErr)
	}
	return fmt.Errorf("runner: %s: %w", cmd.String(), waitErr)
}

// killGroup sends SIGKILL to the process group rooted at pid. Errors
// are ignored: the group may have already exited on its own by the
// time Wait returns, which is the common case, not a failure.
func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

// fetchURL downloads location to dest, creating dest's parent directory
// first. No repo in the retrieval pack wraps HTTP downloads in a
// third-party client for this kind of one-shot GET (google/go-github's
// client targets the GitHub API specifically); net/http is the natural
// fit and is what every pack repo's own incidental HTTP code ultimately
// sits on.
func fetchURL(location, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("fetch-url: %w", err)
	}

	resp, err := http.Get(location)
	if err != nil {
		return fmt.Errorf("fetch-url %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch-url %s: status %s", location, resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("fetch-url %s: %w", location, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("fetch-url %s: %w", location, err)
	}
	return nil
}
