package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"orcbuild/builddb"
	"orcbuild/config"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the active build run's live snapshot",
	RunE:  runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := builddb.OpenDB(filepath.Join(cfg.Pwd, "orcbuild.db"))
	if err != nil {
		return fmt.Errorf("open build database: %w", err)
	}
	defer db.Close()

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return runMonitorTUI(db)
	}
	return runMonitorPlain(db)
}

// snapshot mirrors the JSON blob cmd/build.go's publishSnapshot writes via
// UpdateRunSnapshot each time a package is dispatched or finishes. A missing/unparseable
// snapshot just means the run hasn't reported in yet.
type snapshot struct {
	ActiveWorkers int    `json:"active_workers"`
	ThreadLimit   int    `json:"thread_limit"`
	Built         int    `json:"built"`
	Failed        int    `json:"failed"`
	Skipped       int    `json:"skipped"`
	Ignored       int    `json:"ignored"`
	Remaining     int    `json:"remaining"`
	Current       string `json:"current,omitempty"`
}

func pollSnapshot(db *builddb.DB) (runID string, rec *builddb.RunRecord, snap *snapshot, err error) {
	runID, rec, err = db.ActiveRun()
	if err != nil || rec == nil {
		return runID, rec, nil, err
	}
	if rec.Snapshot == "" {
		return runID, rec, &snapshot{}, nil
	}
	var s snapshot
	if jerr := json.Unmarshal([]byte(rec.Snapshot), &s); jerr != nil {
		return runID, rec, &snapshot{}, nil
	}
	return runID, rec, &s, nil
}

// runMonitorPlain is the non-TTY fallback: a plain ticker that prints
// one status line per second, suitable for piping to a log file.
func runMonitorPlain(db *builddb.DB) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		runID, rec, snap, err := pollSnapshot(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
			continue
		}
		if rec == nil {
			fmt.Println("no active build")
			continue
		}
		elapsed := time.Since(rec.StartTime).Round(time.Second)
		fmt.Printf("run=%s elapsed=%s workers=%d/%d built=%d failed=%d skipped=%d remaining=%d\n",
			shortID(runID), elapsed, snap.ActiveWorkers, snap.ThreadLimit,
			snap.Built, snap.Failed, snap.Skipped, snap.Remaining)
	}
	return nil
}

// runMonitorTUI renders the same poll loop through a tview dashboard:
// a header with run identity/elapsed time, a stats panel, and a
// scrolling log of package completions pulled from ListRunPackages.
func runMonitorTUI(db *builddb.DB) error {
	app := tview.NewApplication()

	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBorder(true).SetTitle(" orcbuild monitor ").SetTitleAlign(tview.AlignLeft)
	header.SetText("[yellow]waiting for an active run...[white]")

	progress := tview.NewTextView().SetDynamicColors(true)
	progress.SetBorder(true).SetTitle(" Progress ")

	events := tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	events.SetBorder(true).SetTitle(" Recently finished ")
	events.SetChangedFunc(func() { app.Draw() })

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(progress, 6, 0, false).
		AddItem(events, 0, 1, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q')) {
			app.Stop()
			return nil
		}
		return ev
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastRunID string
		var seen map[string]bool

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				runID, rec, snap, err := pollSnapshot(db)
				if err != nil || rec == nil {
					app.QueueUpdateDraw(func() {
						header.SetText("[yellow]waiting for an active run...[white]")
						progress.SetText("")
					})
					continue
				}
				if runID != lastRunID {
					lastRunID = runID
					seen = make(map[string]bool)
					events.Clear()
				}

				elapsed := time.Since(rec.StartTime).Round(time.Second)
				headerText := fmt.Sprintf("[yellow]run:[white] %s  [green]elapsed:[white] %s", shortID(runID), elapsed)
				progressText := fmt.Sprintf(
					"[aqua]Workers:[white] %d/%d\n"+
						"[green]Built:[white]   %d\n"+
						"[red]Failed:[white]  %d\n"+
						"[yellow]Skipped:[white] %d   [yellow]Ignored:[white] %d   [white]Remaining: %d",
					snap.ActiveWorkers, snap.ThreadLimit, snap.Built, snap.Failed, snap.Skipped, snap.Ignored, snap.Remaining)

				finished := newlyFinished(db, runID, seen)

				app.QueueUpdateDraw(func() {
					header.SetText(headerText)
					progress.SetText(progressText)
					for _, line := range finished {
						fmt.Fprintln(events, line)
					}
					events.ScrollToEnd()
				})
			}
		}
	}()

	err := app.SetRoot(layout, true).EnableMouse(true).Run()
	close(stop)
	return err
}

// newlyFinished diffs ListRunPackages against seen, returning one
// formatted line per package whose outcome hasn't been printed yet,
// and marking those packages seen.
func newlyFinished(db *builddb.DB, runID string, seen map[string]bool) []string {
	records, err := db.ListRunPackages(runID)
	if err != nil {
		return nil
	}
	var lines []string
	for _, rec := range records {
		if rec.Status == builddb.RunStatusRunning {
			continue
		}
		key := rec.Namespace + "/" + rec.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		color := "white"
		switch rec.Status {
		case builddb.RunStatusSuccess:
			color = "green"
		case builddb.RunStatusFailed:
			color = "red"
		case builddb.RunStatusSkipped, builddb.RunStatusIgnored:
			color = "yellow"
		}
		lines = append(lines, fmt.Sprintf("[%s]%-8s[white] %s (%s)", color, rec.Status, key, rec.LastPhase))
	}
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
