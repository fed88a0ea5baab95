// Package cmd implements the orcbuild CLI: a cobra root command plus
// the build, monitor and logs subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "orcbuild",
	Short: "A bounded-parallelism package build orchestrator",
	Long: `orcbuild discovers a package and its dependency graph from
namespace-scoped manifests, then drives a bounded-parallelism build to
completion, recording every attempt in a run-history ledger.`,
}

// Execute runs the root command, exiting the process with status 1 on
// any error the subcommand doesn't already handle.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to orcbuild.ini (default: none, built-in defaults apply)")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(monitorCmd)
}
