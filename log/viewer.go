package log

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"orcbuild/config"
)

// ListLogs lists all available log files.
func ListLogs(cfg *config.Config) {
	fmt.Println("Available log files:")
	fmt.Println()
	fmt.Println("Summary logs:")
	fmt.Println("  00 or results - 00_last_results.log")
	fmt.Println("  01 or success - 01_success_list.log")
	fmt.Println("  02 or failure - 02_failure_list.log")
	fmt.Println("  03 or skipped - 03_skipped_list.log")
	fmt.Println("  04 or debug   - 04_debug.log")
	fmt.Println()
	fmt.Println("Package logs:")
	fmt.Println("  Use namespace/name to view a package-specific log")
	fmt.Println()

	if _, err := os.Stat(cfg.LogsPath); err == nil {
		fmt.Println("Recent package logs:")
		filepath.Walk(cfg.LogsPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !info.IsDir() && strings.HasSuffix(path, ".log") && filepath.Dir(path) != cfg.LogsPath {
				relPath, _ := filepath.Rel(cfg.LogsPath, path)
				relPath = strings.TrimSuffix(relPath, ".log")
				fmt.Printf("  %s\n", relPath)
			}
			return nil
		})
	}
}

// ViewLog prints a run-wide log file by name.
func ViewLog(cfg *config.Config, logName string) {
	logPath := filepath.Join(cfg.LogsPath, logName)

	file, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return
	}
	defer file.Close()

	if usePager() {
		viewWithPager(logPath)
	} else {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
	}
}

// ViewPackageLog prints the per-package log for (ns, name).
func ViewPackageLog(cfg *config.Config, ns, name string) {
	logPath := filepath.Join(cfg.LogsPath, ns, name+".log")

	file, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening package log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Log file: %s\n", logPath)
		return
	}
	defer file.Close()

	if usePager() {
		viewWithPager(logPath)
	} else {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
	}
}

func usePager() bool {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}
	_, err := os.Stat("/usr/bin/" + pager)
	return err == nil
}

func viewWithPager(path string) {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}
	cmd := exec.Command(pager, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Run()
}

// TailLog prints the last N lines of a run-wide log file.
func TailLog(cfg *config.Config, logName string, lines int) {
	logPath := filepath.Join(cfg.LogsPath, logName)

	file, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	start := len(allLines) - lines
	if start < 0 {
		start = 0
	}
	for i := start; i < len(allLines); i++ {
		fmt.Println(allLines[i])
	}
}

// GrepLog searches a run-wide log file for a substring pattern.
func GrepLog(cfg *config.Config, logName, pattern string) {
	logPath := filepath.Join(cfg.LogsPath, logName)

	file, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.Contains(line, pattern) {
			fmt.Printf("%d: %s\n", lineNum, line)
		}
	}
}

// GetLogSummary returns success/failed/skipped counts from the
// run-wide logs.
func GetLogSummary(cfg *config.Config) map[string]int {
	summary := make(map[string]int)

	if lines, err := countLines(filepath.Join(cfg.LogsPath, "01_success_list.log")); err == nil {
		summary["success"] = lines
	}
	if lines, err := countLines(filepath.Join(cfg.LogsPath, "02_failure_list.log")); err == nil {
		summary["failed"] = lines
	}
	if lines, err := countLines(filepath.Join(cfg.LogsPath, "03_skipped_list.log")); err == nil {
		summary["skipped"] = lines
	}

	return summary
}

func countLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			count++
		}
	}
	return count, scanner.Err()
}
