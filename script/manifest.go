package script

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"orcbuild/graph"
)

// ManifestEvaluator implements graph.ScriptEvaluator by interpreting a
// data-only manifest file: one INI file per package, with a [package]
// section for metadata/dependencies and an [ops] section listing
// binding invocations in the exact order the script must run them
// (§6.2, design note option (b) — no embedded scripting engine).
//
// Manifest shape:
//
//	[package]
//	depends = otherns/other.pkg, otherns/third.pkg@suppress
//
//	[ops]
//	op = fetch https://example.org/src.tar.gz dl decompress
//	op = extract src.tar.gz
//	op = configure --prefix=/usr/local
//	op = make
//	op = make install
//
// Repeated `op` keys are read as INI shadow values, preserving file
// order.
type ManifestEvaluator struct {
	World *graph.World
	// Load reads the manifest bytes for a package given its ScriptFile
	// path. Kept as a seam so tests can substitute an in-memory map.
	Load func(path string) ([]byte, error)
	// SkipConfigure mirrors the CLI's --skip-configure flag (§6.3);
	// propagated to every package's Env.
	SkipConfigure bool
}

// Evaluate parses p.ScriptFile as a manifest and drives the Env bindings
// in file order.
func (m *ManifestEvaluator) Evaluate(p *graph.Package) error {
	raw, err := m.Load(p.ScriptFile)
	if err != nil {
		return &graph.IOError{Op: "load manifest " + p.ScriptFile, Err: err}
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, raw)
	if err != nil {
		return &graph.UsageError{Binding: "manifest", Reason: err.Error()}
	}

	if p.Dir == nil {
		p.Dir = graph.NewBuildDir(m.World.Pwd(), p.NS().Name, p.Name)
	}
	env := &Env{World: m.World, Pkg: p, Dir: p.Dir, SkipConfigure: m.SkipConfigure}

	if pkgSec := cfg.Section("package"); pkgSec != nil {
		for _, ref := range splitList(pkgSec.Key("depends").String()) {
			ns, name, file, suppress := parseDepRef(ref, p.NS().Name)
			if err := env.Depend(ns, name, file, suppress); err != nil {
				return err
			}
		}
		if v := pkgSec.Key("deps_extract").String(); v != "" {
			p.DepsExtract = env.Dir.Absolute(v, false)
		}
	}

	opsSec := cfg.Section("ops")
	ops := opsSec.Key("op").ValueWithShadows()
	for _, line := range ops {
		if err := dispatchOp(env, line); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDepRef parses "namespace/name.file@suppress" (namespace optional,
// defaulting to the dependent's own namespace).
func parseDepRef(ref, defaultNS string) (ns, name, file string, suppress bool) {
	ref = strings.TrimSpace(ref)
	if strings.HasSuffix(ref, "@suppress") {
		suppress = true
		ref = strings.TrimSuffix(ref, "@suppress")
	}
	ns = defaultNS
	if idx := strings.Index(ref, "/"); idx >= 0 {
		ns = ref[:idx]
		ref = ref[idx+1:]
	}
	file = ref
	name = strings.TrimSuffix(ref, ".pkg")
	return
}

func dispatchOp(env *Env, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	op := fields[0]
	args := fields[1:]

	switch op {
	case "depend":
		if len(args) < 3 {
			return &graph.UsageError{Binding: "depend", Reason: "requires namespace, name, file"}
		}
		suppress := len(args) > 3 && args[3] == "suppress"
		return env.Depend(args[0], args[1], args[2], suppress)

	case "fetch":
		if len(args) < 2 {
			return &graph.UsageError{Binding: "fetch", Reason: "requires location, method"}
		}
		decompress := len(args) > 2 && args[2] == "decompress"
		return env.Fetch(args[0], args[1], decompress)

	case "restore":
		if len(args) < 2 {
			return &graph.UsageError{Binding: "restore", Reason: "requires location, method"}
		}
		return env.Restore(args[0], args[1])

	case "extract":
		if len(args) < 1 {
			return &graph.UsageError{Binding: "extract", Reason: "requires filename"}
		}
		return env.Extract(args[0])

	case "cmd":
		if len(args) < 2 {
			return &graph.UsageError{Binding: "cmd", Reason: "requires dir, app"}
		}
		dir, app := args[0], args[1]
		var cargs, cenv []string
		if len(args) > 2 {
			cargs = splitList(args[2])
		}
		if len(args) > 3 {
			cenv = splitList(args[3])
		}
		return env.Cmd(dir, app, cargs, cenv)

	case "shell":
		if len(args) < 2 {
			return &graph.UsageError{Binding: "shell", Reason: "requires dir, script"}
		}
		return env.Shell(args[0], strings.Join(args[1:], " "), nil)

	case "autoreconf":
		return env.Autoreconf()

	case "configure":
		var cargs, cenv []string
		dir := ""
		if len(args) > 0 {
			cargs = splitList(args[0])
		}
		if len(args) > 1 {
			cenv = splitList(args[1])
		}
		if len(args) > 2 {
			dir = args[2]
		}
		return env.Configure(cargs, cenv, dir)

	case "make":
		var cargs, cenv []string
		dir := ""
		if len(args) > 0 {
			cargs = splitList(args[0])
		}
		if len(args) > 1 {
			cenv = splitList(args[1])
		}
		if len(args) > 2 {
			dir = args[2]
		}
		return env.Make(cargs, cenv, dir)

	case "patch":
		if len(args) < 3 {
			return &graph.UsageError{Binding: "patch", Reason: "requires dir, depth, patches"}
		}
		depth, err := strconv.Atoi(args[1])
		if err != nil {
			return &graph.UsageError{Binding: "patch", Reason: "depth must be an integer"}
		}
		return env.Patch(args[0], depth, splitList(args[2]))

	case "installfile":
		if len(args) < 1 {
			return &graph.UsageError{Binding: "installfile", Reason: "requires name"}
		}
		return env.InstallFile(args[0])

	case "mkdir":
		if len(args) < 2 {
			return &graph.UsageError{Binding: "mkdir", Reason: "requires dir, paths"}
		}
		return env.Mkdir(args[0], splitList(args[1]))

	case "sed":
		if len(args) < 3 {
			return &graph.UsageError{Binding: "sed", Reason: "requires dir, expression, files"}
		}
		return env.Sed(args[0], args[1], splitList(args[2]))

	case "invokebuild":
		if len(args) < 1 {
			return &graph.UsageError{Binding: "invokebuild", Reason: "requires target"}
		}
		var bargs, targs []string
		if len(args) > 1 {
			bargs = splitList(args[1])
		}
		if len(args) > 2 {
			targs = splitList(args[2])
		}
		return env.InvokeBuild(args[0], bargs, targs)

	default:
		return &graph.UsageError{Binding: op, Reason: fmt.Sprintf("unknown op %q", op)}
	}
}
