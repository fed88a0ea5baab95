package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"orcbuild/config"
	"orcbuild/log"
)

var tailLines int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the run-wide and per-package logs under the configured logs path",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available summary and package logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log.ListLogs(cfg)
		return nil
	},
}

var logsViewCmd = &cobra.Command{
	Use:   "view <log-name|namespace/name>",
	Short: "Print a summary log (00/results, 01/success, ...) or a package log (namespace/name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if ns, name, ok := splitPackageRef(args[0]); ok {
			log.ViewPackageLog(cfg, ns, name)
			return nil
		}
		log.ViewLog(cfg, resolveLogName(args[0]))
		return nil
	},
}

var logsTailCmd = &cobra.Command{
	Use:   "tail <log-name>",
	Short: "Print the last N lines of a summary log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log.TailLog(cfg, resolveLogName(args[0]), tailLines)
		return nil
	},
}

var logsGrepCmd = &cobra.Command{
	Use:   "grep <log-name> <pattern>",
	Short: "Search a summary log for a substring pattern",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log.GrepLog(cfg, resolveLogName(args[0]), args[1])
		return nil
	},
}

var logsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print success/failed/skipped counts from the run-wide logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		summary := log.GetLogSummary(cfg)
		fmt.Printf("success: %d\n", summary["success"])
		fmt.Printf("failed:  %d\n", summary["failed"])
		fmt.Printf("skipped: %d\n", summary["skipped"])
		return nil
	},
}

func init() {
	logsTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "number of trailing lines to print")
	logsCmd.AddCommand(logsListCmd, logsViewCmd, logsTailCmd, logsGrepCmd, logsSummaryCmd)
	rootCmd.AddCommand(logsCmd)
}

// resolveLogName maps the shorthand names ListLogs advertises (00/results,
// 01/success, 02/failure, 03/skipped, 04/debug) onto the actual summary
// log filenames log.NewLogger writes. Anything else is passed through
// unchanged, so a caller can always name a file directly.
func resolveLogName(name string) string {
	switch name {
	case "00", "results":
		return "00_last_results.log"
	case "01", "success":
		return "01_success_list.log"
	case "02", "failure":
		return "02_failure_list.log"
	case "03", "skipped":
		return "03_skipped_list.log"
	case "04", "debug":
		return "04_debug.log"
	default:
		return name
	}
}

// splitPackageRef reports whether ref looks like a "namespace/name"
// package log reference rather than a summary log name.
func splitPackageRef(ref string) (ns, name string, ok bool) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}
