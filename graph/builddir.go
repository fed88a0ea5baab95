package graph

import (
	"path/filepath"
	"strings"
)

// BuildDir is the pure path algebra derived from a package identity: the
// process's pwd, a namespace name and a package name. It owns no state
// and performs no I/O; Package.build() is responsible for creating the
// directories it names.
type BuildDir struct {
	pwd  string
	ns   string
	name string

	// Path is the absolute package root: <pwd>/output/<ns>/<pkg>.
	Path string
	// ShortPath is Path relative to pwd.
	ShortPath string
	// WorkSrc is <Path>/work/<pkg>, where extraction units populate source.
	WorkSrc string
	// WorkBuild is <Path>/build, the out-of-tree build directory.
	WorkBuild string
	// Staging is <Path>/staging, the install tree dependents consume.
	Staging string
}

// NewBuildDir derives the filesystem layout for one package.
func NewBuildDir(pwd, ns, name string) *BuildDir {
	path := filepath.Join(pwd, "output", ns, name)
	rel, err := filepath.Rel(pwd, path)
	if err != nil {
		rel = path
	}
	return &BuildDir{
		pwd:       pwd,
		ns:        ns,
		name:      name,
		Path:      path,
		ShortPath: rel,
		WorkSrc:   filepath.Join(path, "work", name),
		WorkBuild: filepath.Join(path, "build"),
		Staging:   filepath.Join(path, "staging"),
	}
}

// AclocalPath is staging/usr/local/aclocal, the autoreconf include path
// (§6.1).
func (d *BuildDir) AclocalPath() string {
	return filepath.Join(d.Staging, "usr", "local", "aclocal")
}

// Absolute resolves a caller-supplied relative path against Path.
// A leading "/" is returned verbatim. If allowDL is set, a path
// beginning with "dl/" is also returned verbatim (anchored instead at
// pwd by convention — callers that need the dl/ tree itself should use
// Relative/absolute_fetch). Otherwise the path is joined onto Path.
func (d *BuildDir) Absolute(rel string, allowDL bool) string {
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	if allowDL && strings.HasPrefix(rel, "dl/") {
		return rel
	}
	return filepath.Join(d.Path, rel)
}

// Relative resolves a caller-supplied relative path against ShortPath,
// with the same verbatim rules as Absolute.
func (d *BuildDir) Relative(rel string, allowDL bool) string {
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	if allowDL && strings.HasPrefix(rel, "dl/") {
		return rel
	}
	return filepath.Join(d.ShortPath, rel)
}

// AbsoluteFetch resolves a script-supplied location against the
// script-asset directory <pwd>/package/<pkgName>/<location>, unless the
// location is itself absolute, begins with "dl/", or begins with ".",
// in which case it is anchored at pwd instead.
func (d *BuildDir) AbsoluteFetch(location, pkgName string) string {
	if strings.HasPrefix(location, "/") ||
		strings.HasPrefix(location, "dl/") ||
		strings.HasPrefix(location, ".") {
		return filepath.Join(d.pwd, location)
	}
	return filepath.Join(d.pwd, "package", pkgName, location)
}

// DownloadDir is <pwd>/dl, shared across packages and created lazily on
// first download.
func DownloadDir(pwd string) string {
	return filepath.Join(pwd, "dl")
}

// AssetDir is <pwd>/package/<pkg>, the script-provided asset directory
// holding patches and copyfiles.
func AssetDir(pwd, pkgName string) string {
	return filepath.Join(pwd, "package", pkgName)
}
