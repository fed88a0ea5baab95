package graph

import (
	"errors"
	"testing"
)

func TestNewPackageCmdEnvOverlay(t *testing.T) {
	c := NewPackageCmd("/build/src", []string{"make", "-j4"}, "vim")
	if c.Dir != "/build/src" {
		t.Errorf("Dir = %q", c.Dir)
	}
	if len(c.Argv) != 2 || c.Argv[0] != "make" || c.Argv[1] != "-j4" {
		t.Errorf("Argv = %v", c.Argv)
	}
	if len(c.Env) != 1 || c.Env[0] != "BS_PACKAGE_NAME=vim" {
		t.Errorf("Env = %v, want [BS_PACKAGE_NAME=vim]", c.Env)
	}
}

func TestPackageCmdAddArgAddEnvMarkSkip(t *testing.T) {
	c := NewPackageCmd("/build/src", []string{"make"}, "vim")
	c.AddArg("install")
	c.AddEnv("DESTDIR=/staging")
	c.MarkSkip()

	if len(c.Argv) != 2 || c.Argv[1] != "install" {
		t.Errorf("Argv = %v", c.Argv)
	}
	if len(c.Env) != 2 || c.Env[1] != "DESTDIR=/staging" {
		t.Errorf("Env = %v", c.Env)
	}
	if !c.Skip {
		t.Error("MarkSkip should set Skip")
	}
}

func TestPackageCmdString(t *testing.T) {
	empty := &PackageCmd{}
	if got := empty.String(); got != "<empty command>" {
		t.Errorf("String() on empty Argv = %q", got)
	}

	c := NewPackageCmd("/build/src", []string{"make", "-j4", "install"}, "vim")
	want := "make -j4 install (in /build/src)"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

type fakeRunner struct {
	ran  []*PackageCmd
	fail int // 1-indexed call to fail, 0 = never
}

func (f *fakeRunner) Run(cmd *PackageCmd) error {
	f.ran = append(f.ran, cmd)
	if f.fail != 0 && len(f.ran) == f.fail {
		return errors.New("exit status 1")
	}
	return nil
}

func TestCommandQueueReplaySkipsMarked(t *testing.T) {
	var q CommandQueue
	c1 := NewPackageCmd("/src", []string{"./configure"}, "vim")
	c2 := NewPackageCmd("/src", []string{"make"}, "vim")
	c2.MarkSkip()
	c3 := NewPackageCmd("/src", []string{"make", "install"}, "vim")
	q.Append(c1)
	q.Append(c2)
	q.Append(c3)

	r := &fakeRunner{}
	if err := q.Replay(r); err != nil {
		t.Fatalf("Replay returned error: %v", err)
	}
	if len(r.ran) != 2 {
		t.Fatalf("Replay ran %d commands, want 2 (skip excluded)", len(r.ran))
	}
	if r.ran[0] != c1 || r.ran[1] != c3 {
		t.Error("Replay should preserve insertion order around the skipped command")
	}
}

func TestCommandQueueReplayStopsOnFailure(t *testing.T) {
	var q CommandQueue
	q.Append(NewPackageCmd("/src", []string{"./configure"}, "vim"))
	q.Append(NewPackageCmd("/src", []string{"make"}, "vim"))
	q.Append(NewPackageCmd("/src", []string{"make", "install"}, "vim"))

	r := &fakeRunner{fail: 2}
	err := q.Replay(r)
	if err == nil {
		t.Fatal("Replay should surface the failure")
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("Replay error should be an *IOError, got %T", err)
	}
	if len(r.ran) != 2 {
		t.Errorf("Replay should stop after the failing command, ran %d", len(r.ran))
	}
}

func TestCommandQueueLen(t *testing.T) {
	var q CommandQueue
	if q.Len() != 0 {
		t.Fatalf("Len() on empty queue = %d", q.Len())
	}
	q.Append(NewPackageCmd("/src", []string{"make"}, "vim"))
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}
