// Package script realizes the script-binding surface of §6.2: the fixed
// set of operations a scripting layer must be able to invoke on a
// BuildDir or Package during evaluation. The core (graph package) only
// requires that these operations be callable and that an ambient
// "current package" be resolvable; this package supplies a concrete Env
// implementation plus a data-only manifest interpreter, per the design
// note's recommended option (b) — embedding a real scripting language is
// out of scope (§1).
package script

import (
	"path/filepath"

	"orcbuild/graph"
)

// Env is the binding surface handed to a package's script body. It
// closes over the World, the current Package and its BuildDir, and
// exposes the §6.2 operations as plain methods. All bindings except
// Depend honour forced-mode: when the World is in forced mode and the
// current package is not in the forced set, they are no-ops. Depend
// always registers its edge.
type Env struct {
	World *graph.World
	Pkg   *graph.Package
	Dir   *graph.BuildDir

	// SkipConfigure mirrors the CLI's --skip-configure flag: when set,
	// Autoreconf and Configure become no-ops regardless of what the
	// manifest's ops list asks for.
	SkipConfigure bool
}

func (e *Env) skip() bool {
	return e.World.ForcedMode && !e.World.ForcedSet[e.Pkg.Name]
}

func (e *Env) newCmd(dir string, argv []string) *graph.PackageCmd {
	return graph.NewPackageCmd(dir, argv, e.Pkg.Name)
}

// Fetch appends an extraction/fetch step per method: dl, git,
// linkgit/copygit/sm, link/copy/copyfile, deps.
func (e *Env) Fetch(location, method string, decompress bool) error {
	if e.skip() {
		return nil
	}
	switch method {
	case "dl":
		dl := graph.DownloadDir(e.World.Pwd())
		dest := filepath.Join(dl, filepath.Base(location))
		e.Pkg.Commands.Append(e.newCmd(e.Dir.ShortPath, []string{"fetch-url", location, dest}))
		if decompress {
			e.Pkg.Extraction.Append(graph.NewTarUnit(dest))
		}
	case "git":
		e.Pkg.Commands.Append(e.newCmd(e.Dir.WorkSrc, []string{"git", "clone", location, "."}))
		e.Pkg.CodeUpdated.Store(true)
	case "linkgit":
		e.Pkg.Extraction.Append(graph.NewGitDirUnit(location, "", true))
	case "copygit":
		e.Pkg.Extraction.Append(graph.NewGitDirUnit(location, "", false))
	case "sm":
		e.Pkg.Extraction.Append(graph.NewGitDirUnit(location, "", false))
	case "link":
		e.Pkg.Commands.Append(e.newCmd(e.Dir.WorkSrc, []string{"ln", "-sf", e.Dir.AbsoluteFetch(location, e.Pkg.Name), "."}))
	case "copy", "copyfile":
		e.Pkg.Extraction.Append(graph.NewFileCopyUnit(e.Dir.AbsoluteFetch(location, e.Pkg.Name)))
	case "deps":
		e.Pkg.DepsExtract = e.Dir.Absolute(location, false)
	default:
		return &graph.UsageError{Binding: "fetch", Reason: "unknown method " + method}
	}
	return nil
}

// Restore implements the copyfile method: append a cp -dpRuf command
// that copies a named file into the work directory from the
// package/<pkg>/… area.
func (e *Env) Restore(location, method string) error {
	if e.skip() {
		return nil
	}
	if method != "copyfile" {
		return &graph.UsageError{Binding: "restore", Reason: "unknown method " + method}
	}
	src := e.Dir.AbsoluteFetch(location, e.Pkg.Name)
	e.Pkg.Commands.Append(e.newCmd(e.Dir.WorkSrc, []string{"cp", "-dpRuf", src, "."}))
	return nil
}

// Extract infers archive type from filename (.zip ⇒ Zip, else Tar) and
// queues the extraction unit.
func (e *Env) Extract(filename string) error {
	if e.skip() {
		return nil
	}
	if filepath.Ext(filename) == ".zip" {
		e.Pkg.Extraction.Append(graph.NewZipUnit(filename))
	} else {
		e.Pkg.Extraction.Append(graph.NewTarUnit(filename))
	}
	return nil
}

// Cmd queues a PackageCmd at dir (resolved relative to the short path)
// with argv=[app]+args and an optional environment overlay.
func (e *Env) Cmd(dir, app string, args []string, env []string) error {
	if e.skip() {
		return nil
	}
	argv := append([]string{app}, args...)
	c := e.newCmd(e.Dir.Relative(dir, false), argv)
	for _, kv := range env {
		c.AddEnv(kv)
	}
	e.Pkg.Commands.Append(c)
	return nil
}

// Shell queues `bash -c <script>` at the absolute form of dir.
func (e *Env) Shell(dir, shellScript string, env []string) error {
	if e.skip() {
		return nil
	}
	c := e.newCmd(e.Dir.Absolute(dir, false), []string{"bash", "-c", shellScript})
	for _, kv := range env {
		c.AddEnv(kv)
	}
	e.Pkg.Commands.Append(c)
	return nil
}

// Autoreconf queues autoreconf -i -B <staging>/usr/local/aclocal at
// work-src; skipped if e.SkipConfigure is set.
func (e *Env) Autoreconf() error {
	if e.skip() || e.SkipConfigure {
		return nil
	}
	c := e.newCmd(e.Dir.WorkSrc, []string{"autoreconf", "-i", "-B", e.Dir.AclocalPath()})
	e.Pkg.Commands.Append(c)
	return nil
}

// Configure queues ../<pkg>/configure <args> at work-build (or a
// supplied subdir); skipped if e.SkipConfigure is set.
func (e *Env) Configure(args []string, env []string, dir string) error {
	if e.skip() || e.SkipConfigure {
		return nil
	}
	wd := e.Dir.WorkBuild
	if dir != "" {
		wd = e.Dir.Absolute(dir, false)
	}
	argv := append([]string{filepath.Join("..", e.Pkg.Name, "configure")}, args...)
	c := e.newCmd(wd, argv)
	for _, kv := range env {
		c.AddEnv(kv)
	}
	e.Pkg.Commands.Append(c)
	return nil
}

// Make queues make [-j<N>] [-l<N>] <args> at work-build (or a supplied
// subdir); -j/-l come from the job-limit/load-limit features (§6.2 S5).
func (e *Env) Make(args []string, env []string, dir string) error {
	if e.skip() {
		return nil
	}
	wd := e.Dir.WorkBuild
	if dir != "" {
		wd = e.Dir.Absolute(dir, false)
	}
	argv := []string{"make"}
	if v, ok := e.World.Feature("job-limit"); ok {
		argv = append(argv, "-j"+v)
	}
	if v, ok := e.World.Feature("load-limit"); ok {
		argv = append(argv, "-l"+v)
	}
	argv = append(argv, args...)
	c := e.newCmd(wd, argv)
	for _, kv := range env {
		c.AddEnv(kv)
	}
	e.Pkg.Commands.Append(c)
	return nil
}

// Patch queues a PatchExtractionUnit for each entry in patches.
func (e *Env) Patch(patchDir string, depth int, patches []string) error {
	if e.skip() {
		return nil
	}
	for _, p := range patches {
		e.Pkg.Extraction.Append(graph.NewPatchUnit(depth, patchDir, e.Dir.AbsoluteFetch(p, e.Pkg.Name)))
	}
	return nil
}

// InstallFile records the package's own install artifact name.
func (e *Env) InstallFile(name string) error {
	if e.skip() {
		return nil
	}
	e.Pkg.InstallFile = name
	return nil
}

// Mkdir queues mkdir -p <paths> at the absolute form of dir.
func (e *Env) Mkdir(dir string, paths []string) error {
	if e.skip() {
		return nil
	}
	argv := append([]string{"-p"}, paths...)
	e.Pkg.Commands.Append(e.newCmd(e.Dir.Absolute(dir, false), append([]string{"mkdir"}, argv...)))
	return nil
}

// Sed queues sed -i -e <expression> <files> at the absolute form of dir.
func (e *Env) Sed(dir, expression string, files []string) error {
	if e.skip() {
		return nil
	}
	argv := append([]string{"-i", "-e", expression}, files...)
	e.Pkg.Commands.Append(e.newCmd(e.Dir.Absolute(dir, false), append([]string{"sed"}, argv...)))
	return nil
}

// InvokeBuild queues a recursive invocation of this build system with
// propagated flags (§6.2, §6.3).
func (e *Env) InvokeBuild(target string, buildsysArgs, targetArgs []string) error {
	if e.skip() {
		return nil
	}
	argv := []string{"self", target}
	argv = append(argv, buildsysArgs...)
	argv = append(argv, "--")
	argv = append(argv, targetArgs...)
	e.Pkg.Commands.Append(e.newCmd(e.Dir.ShortPath, argv))
	return nil
}

// Depend registers a dependency edge from the current package onto the
// package named (ns, name, file), creating the target if it doesn't yet
// exist. This is the binding that populates §3's depends list.
func (e *Env) Depend(ns, name, file string, suppressSideEffects bool) error {
	target := e.World.FindNameSpace(ns)
	dep, _ := target.FindPackage(name, file)
	if dep.Dir == nil {
		dep.Dir = graph.NewBuildDir(e.World.Pwd(), ns, name)
	}
	// Queuing the dependency for discovery is World.processPackages'
	// responsibility, run after this package's script returns — not
	// here, since that would race the one-shot SetProcessingQueued gate.
	return e.Pkg.AddDependency(dep, suppressSideEffects)
}
