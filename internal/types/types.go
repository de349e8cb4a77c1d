// Package types provides common type definitions shared across the weft build
// pipeline. This package contains shared types to avoid circular dependencies
// between the planner, watcher, tracker, and transform packages.
package types

// WatchKind distinguishes file-level from directory-level watch points.
type WatchKind int

const (
	// WatchFile watches a single file path.
	WatchFile WatchKind = iota
	// WatchDirectory watches a directory's direct (non-recursive) children.
	WatchDirectory
)

// String returns the string representation of the WatchKind.
func (k WatchKind) String() string {
	switch k {
	case WatchFile:
		return "file"
	case WatchDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// WatchPoint is a single file or directory registered with the OS
// change-notification facility. A Directory point covers every tracked file
// directly inside it, not recursively.
type WatchPoint struct {
	// Kind indicates whether Path is a file or a directory.
	Kind WatchKind
	// Path is the watched location.
	Path string
	// Depth is the number of path segments from the common root, used only
	// for deterministic ordering of planner output.
	Depth int
	// CoveredPaths lists every tracked file this point is responsible for.
	// Every planned input path appears in exactly one point's CoveredPaths.
	CoveredPaths []string
}

// DependencyChange signals that a tracked dependency of an entrypoint changed
// on disk. It is a value object: emitted, never stored.
type DependencyChange struct {
	// Entrypoint is the top-level document path that must be regenerated.
	Entrypoint string
	// Dependency is the module or file path that changed.
	Dependency string
}

// Request carries per-render state associated with one top-level document
// transform: the parsed front-matter object and any properties renderer hooks
// want to share across includes of the same page.
type Request struct {
	// Path is the entrypoint document being rendered.
	Path string
	// Frontmatter is the parsed front-matter object, nil until a
	// front-matter tag has been processed.
	Frontmatter map[string]any
	// Props holds request-scoped properties shared between includes.
	Props map[string]any
}

// TransformResult is the outcome of one document transform.
type TransformResult struct {
	// InputPath is the entrypoint document that was transformed.
	InputPath string
	// HTML is the fully expanded output markup.
	HTML string
	// RendererModulePaths accumulates every renderer module touched anywhere
	// in the recursive expansion. Append-only per transform.
	RendererModulePaths []string
	// IncludesProcessed accumulates every include source encountered; the
	// dependency tracker consumes this set. Append-only per transform.
	IncludesProcessed []string
	// Request is the per-render state the transform ran under. Nil when the
	// fast path (no recognized tags) was taken.
	Request *Request
	// TagErrors holds the non-fatal, tag-scoped errors that were logged and
	// recovered during the transform.
	TagErrors []error
}
