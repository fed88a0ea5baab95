package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"orcbuild/builddb"
	"orcbuild/config"
	"orcbuild/graph"
	"orcbuild/log"
	"orcbuild/runner"
	"orcbuild/script"
)

var (
	jobs          int
	load          int
	clean         bool
	skipConfigure bool
	nop           bool
	fastForward   bool
	extractOnly   bool
	parseOnly     bool
	keepGoing     bool
)

var buildCmd = &cobra.Command{
	Use:   "build <base-script> [-- forced-package...]",
	Short: "Build a package and its dependency closure",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "job-limit feature passed to make -j (0: unset)")
	buildCmd.Flags().IntVarP(&load, "load", "l", 0, "load-limit feature passed to make -l (0: unset)")
	buildCmd.Flags().BoolVar(&clean, "clean", false, "remove each package's build directory before building")
	buildCmd.Flags().BoolVar(&skipConfigure, "skip-configure", false, "skip autoreconf/configure steps")
	buildCmd.Flags().BoolVar(&nop, "nop", false, "parse and schedule but run no commands (dry run)")
	buildCmd.Flags().BoolVar(&fastForward, "ff", false, "skip a package whose install artifact is already recorded")
	buildCmd.Flags().BoolVar(&extractOnly, "extract-only", false, "stop after the extraction phase")
	buildCmd.Flags().BoolVar(&parseOnly, "parse-only", false, "discover the graph and check for cycles, then stop")
	buildCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "after a failure, wait for in-flight builds to finish before returning (no new packages are dispatched)")
}

// runBuild wires a graph.World with the concrete runner/script/builddb
// collaborators and drives it through World.BasePackage (§4.8.1).
func runBuild(cmd *cobra.Command, args []string) error {
	baseScript := args[0]
	forced := args[1:]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if jobs > 0 {
		cfg.Features["job-limit"] = fmt.Sprintf("%d", jobs)
	}
	if load > 0 {
		cfg.Features["load-limit"] = fmt.Sprintf("%d", load)
	}

	runLogger, err := log.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("open run logger: %w", err)
	}
	defer runLogger.Close()

	db, err := builddb.OpenDB(filepath.Join(cfg.Pwd, "orcbuild.db"))
	if err != nil {
		return fmt.Errorf("open build database: %w", err)
	}
	defer db.Close()

	runID := uuid.New().String()
	if err := db.StartRun(runID, time.Now()); err != nil {
		runLogger.Error("starting run record: %v", err)
	}

	cmdRunner := &runner.Runner{Logger: log.NoOpLogger{}}
	buildEnvMaker := makeBuildEnvMaker(cmdRunner, clean, nop, extractOnly, fastForward, db)

	factory := runLogger.Factory()
	loggerFactory := func(ns, name string) graph.Logger { return factory(ns, name) }

	world := graph.NewWorld(cfg.Pwd, loggerFactory, buildEnvMaker)
	world.ThreadLimit = cfg.ThreadLimit
	world.DiscoveryLimit = cfg.DiscoveryLimit
	world.KeepGoing = cfg.KeepGoing || keepGoing
	world.ParseOnly = cfg.ParseOnly || parseOnly
	if len(forced) > 0 {
		world.ForcedMode = true
		world.ForcedSet = make(map[string]bool, len(forced))
		for _, f := range forced {
			world.ForcedSet[f] = true
		}
	}
	for k, v := range cfg.Features {
		world.SetFeature(k, v, true)
	}

	var stats builddb.RunStats
	var current string
	var statsMu sync.Mutex

	packageRef := func(p *graph.Package) string {
		ns := ""
		if p.NS() != nil {
			ns = p.NS().Name
		}
		return ns + "/" + p.Name
	}

	// publishSnapshot marshals the fields the monitor command's snapshot
	// struct reads (cmd/monitor.go) and writes them to the run record.
	// Called on both dispatch and completion so "remaining"/"current"
	// stay live between finishes, not just at them.
	publishSnapshot := func() {
		statsMu.Lock()
		snap, _ := json.Marshal(snapshot{
			ActiveWorkers: world.ThreadsRunning(),
			ThreadLimit:   world.ThreadLimit,
			Built:         stats.Success,
			Failed:        stats.Failed,
			Skipped:       stats.Skipped,
			Ignored:       stats.Ignored,
			Remaining:     world.Remaining(),
			Current:       current,
		})
		statsMu.Unlock()
		_ = db.UpdateRunSnapshot(runID, string(snap))
	}

	world.OnPackageStarted = func(p *graph.Package) {
		statsMu.Lock()
		current = packageRef(p)
		statsMu.Unlock()
		publishSnapshot()
	}

	world.OnPackageFinished = func(p *graph.Package, ok bool) {
		status := builddb.RunStatusSuccess
		if !ok {
			status = builddb.RunStatusFailed
		}
		ns := ""
		if p.NS() != nil {
			ns = p.NS().Name
		}
		_ = db.PutRunPackage(runID, &builddb.RunPackageRecord{
			Namespace: ns,
			Name:      p.Name,
			Status:    status,
			EndTime:   time.Now(),
		})

		statsMu.Lock()
		stats.Total++
		if ok {
			stats.Success++
		} else {
			stats.Failed++
		}
		if current == packageRef(p) {
			current = ""
		}
		statsMu.Unlock()
		publishSnapshot()
	}

	eval := &script.ManifestEvaluator{
		World:         world,
		Load:          os.ReadFile,
		SkipConfigure: skipConfigure,
	}

	// SIGINT/SIGTERM during a build: record the run as aborted so a
	// post-mortem can tell a clean completion from a cut-short one.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		statsMu.Lock()
		final := stats
		statsMu.Unlock()
		_ = db.FinishRun(runID, final, time.Now(), true)
		os.Exit(130)
	}()

	ok := world.BasePackage(baseScript, ".pkg", eval, runLogger)

	statsMu.Lock()
	final := stats
	statsMu.Unlock()
	_ = db.FinishRun(runID, final, time.Now(), false)

	if !ok {
		return fmt.Errorf("build failed")
	}
	fmt.Println("build succeeded")
	return nil
}

// makeBuildEnvMaker returns the per-package BuildEnv constructor the
// World calls at build time, wiring in the runner package's concrete
// CommandRunner/Extractor/Stager. --nop leaves Runner and Extractor nil
// so Package.build() skips extraction and command replay; --extract-only does
// the same but still runs extraction; --ff consults the install index
// (informational — see builddb's FingerprintChanged doc comment for
// why this is a single-invocation convenience, not a cache) to decide
// whether a package's commands should be skipped this run.
func makeBuildEnvMaker(cmdRunner *runner.Runner, wantClean, isNop, stopAfterExtract, fastForward bool, db *builddb.DB) func(p *graph.Package) *graph.BuildEnv {
	extractor := runner.Extractor{}
	stager := runner.Stager{}

	return func(p *graph.Package) *graph.BuildEnv {
		env := &graph.BuildEnv{
			Stager: stager,
			MkdirAll: func(path string) error {
				if wantClean {
					os.RemoveAll(path)
				}
				return os.MkdirAll(path, 0755)
			},
		}
		if !isNop {
			env.Extractor = extractor
		}

		skipCommands := isNop || stopAfterExtract
		if !skipCommands && fastForward && p.NS() != nil {
			if installID, err := db.LatestInstall(p.NS().Name, p.Name); err == nil && installID != "" {
				skipCommands = true
			}
		}
		if !skipCommands {
			env.Runner = cmdRunner
		}
		return env
	}
}
