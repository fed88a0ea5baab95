// Package config loads process-wide orcbuild settings: the pwd the
// World is rooted at, the thread/discovery limits, the named feature
// map (§6.2's job-limit/load-limit and friends), and the forced/
// keep-going/parse-only flags. It is read once at startup from an INI
// file via gopkg.in/ini.v1, the same library the manifest interpreter
// uses for per-package manifests.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/ini.v1"
)

// Config holds everything needed to construct a graph.World (§4.8, C9).
type Config struct {
	ConfigPath string
	Pwd        string
	LogsPath   string

	ThreadLimit    int
	DiscoveryLimit int

	KeepGoing bool
	ParseOnly bool
	Debug     bool

	// Features seeds World's feature map (job-limit, load-limit, and any
	// site-specific key the manifests want to read back via Feature()).
	Features map[string]string
}

// Default returns the built-in defaults applied before any config file
// or flag overrides them.
func Default() *Config {
	wd, _ := os.Getwd()
	return &Config{
		Pwd:            wd,
		LogsPath:       filepath.Join(wd, "logs"),
		ThreadLimit:    runtime.NumCPU(),
		DiscoveryLimit: runtime.NumCPU() * 2,
		Features:       make(map[string]string),
	}
}

// Load reads an orcbuild.ini file at path, if present, overlaying it
// onto Default(). A missing file is not an error — it just means
// "use the defaults".
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.ConfigPath = path

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	ini, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	core := ini.Section("core")
	if v := core.Key("pwd").String(); v != "" {
		cfg.Pwd = v
	}
	if v := core.Key("logs_path").String(); v != "" {
		cfg.LogsPath = v
	}
	cfg.ThreadLimit = core.Key("thread_limit").MustInt(cfg.ThreadLimit)
	cfg.DiscoveryLimit = core.Key("discovery_limit").MustInt(cfg.DiscoveryLimit)
	cfg.KeepGoing = core.Key("keep_going").MustBool(cfg.KeepGoing)
	cfg.ParseOnly = core.Key("parse_only").MustBool(cfg.ParseOnly)
	cfg.Debug = core.Key("debug").MustBool(cfg.Debug)

	if feat := ini.Section("features"); feat != nil {
		for _, key := range feat.Keys() {
			cfg.Features[key.Name()] = key.String()
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
// before it's used to build a World.
func (cfg *Config) Validate() error {
	if cfg.Pwd == "" {
		return fmt.Errorf("pwd is not configured")
	}
	info, err := os.Stat(cfg.Pwd)
	if err != nil {
		return fmt.Errorf("pwd %s: %w", cfg.Pwd, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("pwd %s is not a directory", cfg.Pwd)
	}
	if cfg.ThreadLimit < 0 {
		return fmt.Errorf("thread limit must be >= 0 (0 means unbounded)")
	}
	if cfg.DiscoveryLimit < 0 {
		return fmt.Errorf("discovery limit must be >= 0")
	}
	return nil
}

// WriteDefault writes a commented skeleton config file to path, the
// same way a freshly `init`ed orcbuild project would see one.
func WriteDefault(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintln(file, "; orcbuild configuration file")
	fmt.Fprintln(file, "")
	fmt.Fprintln(file, "[core]")
	fmt.Fprintf(file, "pwd = %s\n", cfg.Pwd)
	fmt.Fprintf(file, "logs_path = %s\n", cfg.LogsPath)
	fmt.Fprintf(file, "thread_limit = %d\n", cfg.ThreadLimit)
	fmt.Fprintf(file, "discovery_limit = %d\n", cfg.DiscoveryLimit)
	fmt.Fprintf(file, "keep_going = %v\n", cfg.KeepGoing)
	fmt.Fprintf(file, "parse_only = %v\n", cfg.ParseOnly)
	fmt.Fprintln(file, "")
	fmt.Fprintln(file, "[features]")
	for k, v := range cfg.Features {
		fmt.Fprintf(file, "%s = %s\n", k, v)
	}
	return nil
}
