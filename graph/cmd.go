package graph

import "fmt"

// PackageCmd is one shell-level command queued on a Package: a working
// directory, an argv, an environment overlay, and a skip flag (§3, §4.3).
type PackageCmd struct {
	Dir  string
	Argv []string
	Env  []string
	Skip bool
}

// NewPackageCmd builds a command rooted at dir with argv[0] as the
// program. Every command automatically receives BS_PACKAGE_NAME in its
// overlay (§4.3).
func NewPackageCmd(dir string, argv []string, pkgName string) *PackageCmd {
	return &PackageCmd{
		Dir:  dir,
		Argv: append([]string{}, argv...),
		Env:  []string{"BS_PACKAGE_NAME=" + pkgName},
	}
}

// AddArg appends one argument to argv.
func (c *PackageCmd) AddArg(s string) {
	c.Argv = append(c.Argv, s)
}

// AddEnv appends one KEY=VALUE overlay entry.
func (c *PackageCmd) AddEnv(s string) {
	c.Env = append(c.Env, s)
}

// MarkSkip sets the skip flag; a skipped command is a no-op that
// trivially succeeds.
func (c *PackageCmd) MarkSkip() {
	c.Skip = true
}

// String renders the command the way a log line would show it.
func (c *PackageCmd) String() string {
	if len(c.Argv) == 0 {
		return "<empty command>"
	}
	s := c.Argv[0]
	for _, a := range c.Argv[1:] {
		s += " " + a
	}
	return fmt.Sprintf("%s (in %s)", s, c.Dir)
}

// CommandRunner executes a PackageCmd's effect: spawn argv[0] with the
// parent environment plus the overlay, in Dir; exit 0 is success, any
// other exit is failure (§4.3). A concrete CommandRunner is an external
// collaborator supplied by the runner package; the core only depends on
// this interface.
type CommandRunner interface {
	Run(cmd *PackageCmd) error
}

// CommandQueue is the ordered sequence of PackageCmd a Package
// accumulates during script evaluation, replayed in insertion order at
// build time, skipping any command whose Skip flag is set.
type CommandQueue struct {
	cmds []*PackageCmd
}

// Append adds a command to the end of the queue.
func (q *CommandQueue) Append(c *PackageCmd) {
	q.cmds = append(q.cmds, c)
}

// Commands returns the queue contents in insertion order.
func (q *CommandQueue) Commands() []*PackageCmd {
	return q.cmds
}

// Len reports the number of queued commands.
func (q *CommandQueue) Len() int {
	return len(q.cmds)
}

// Replay runs every non-skipped command in insertion order, stopping at
// the first failure.
func (q *CommandQueue) Replay(runner CommandRunner) error {
	for _, c := range q.cmds {
		if c.Skip {
			continue
		}
		if err := runner.Run(c); err != nil {
			return &IOError{Op: "cmd:" + c.String(), Err: err}
		}
	}
	return nil
}
