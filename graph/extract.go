package graph

// ExtractionUnit is one atomic "bring source into place" action queued
// on a Package during script evaluation and replayed, strictly in
// insertion order, at extract time (§4.2). It is a pure value: it holds
// no scheduling state of its own.
type ExtractionUnit struct {
	Kind ExtractionKind

	// Tar / Zip
	ArchivePath string

	// Patch
	Depth     int
	TargetDir string
	PatchFile string

	// FileCopy
	SourceFile string

	// GitDir
	GitSrc    string
	GitDstSub string
	GitLink   bool
}

// ExtractionKind discriminates the ExtractionUnit variants of §3.
type ExtractionKind int

const (
	KindTar ExtractionKind = iota
	KindZip
	KindPatch
	KindFileCopy
	KindGitDir
)

func (k ExtractionKind) String() string {
	switch k {
	case KindTar:
		return "tar"
	case KindZip:
		return "zip"
	case KindPatch:
		return "patch"
	case KindFileCopy:
		return "filecopy"
	case KindGitDir:
		return "gitdir"
	default:
		return "unknown"
	}
}

// NewTarUnit queues extraction of a tar archive into work-src.
func NewTarUnit(path string) ExtractionUnit {
	return ExtractionUnit{Kind: KindTar, ArchivePath: path}
}

// NewZipUnit queues extraction of a zip archive into work-src.
func NewZipUnit(path string) ExtractionUnit {
	return ExtractionUnit{Kind: KindZip, ArchivePath: path}
}

// NewPatchUnit queues a patch applied at the given strip depth, within
// targetDir.
func NewPatchUnit(depth int, targetDir, patchFile string) ExtractionUnit {
	return ExtractionUnit{Kind: KindPatch, Depth: depth, TargetDir: targetDir, PatchFile: patchFile}
}

// NewFileCopyUnit queues a single file copy into work-src.
func NewFileCopyUnit(path string) ExtractionUnit {
	return ExtractionUnit{Kind: KindFileCopy, SourceFile: path}
}

// NewGitDirUnit queues a git working tree link or copy into work-src.
func NewGitDirUnit(src, dstSubdir string, link bool) ExtractionUnit {
	return ExtractionUnit{Kind: KindGitDir, GitSrc: src, GitDstSub: dstSubdir, GitLink: link}
}

// ExtractionQueue preserves insertion order and is replayed strictly
// sequentially within a Package at extract time. The executor must
// honour insertion order and must never reorder it — the script is
// already responsible for authoring the required order (§4.2).
type ExtractionQueue struct {
	units []ExtractionUnit
}

// Append adds a unit to the end of the queue.
func (q *ExtractionQueue) Append(u ExtractionUnit) {
	q.units = append(q.units, u)
}

// Units returns the queue contents in insertion order. The returned
// slice must be treated as read-only by callers.
func (q *ExtractionQueue) Units() []ExtractionUnit {
	return q.units
}

// Len reports the number of queued units.
func (q *ExtractionQueue) Len() int {
	return len(q.units)
}

// Extractor performs the effect of one ExtractionUnit against a build
// directory. The core is indifferent to how archives/patches/copies are
// actually carried out; a concrete Extractor is an external
// collaborator (§1) supplied by the runner package.
type Extractor interface {
	Extract(dir *BuildDir, unit ExtractionUnit) error
}

// Replay runs every unit in insertion order, stopping at the first
// failure.
func (q *ExtractionQueue) Replay(dir *BuildDir, ex Extractor) error {
	for _, u := range q.units {
		if err := ex.Extract(dir, u); err != nil {
			return &IOError{Op: "extract:" + u.Kind.String(), Err: err}
		}
	}
	return nil
}
