// Package modules is the import/resolve facility behind include tags.
//
// An include's src attribute names a module: either a logical path registered
// in code (a renderer with an optional property schema and per-request props
// hook) or a file on disk (a pre-bundled static HTML directory, an HTML
// document with embedded tags, or a markdown document). Importing a module
// classifies it into an explicit tagged union; nothing downstream ever
// dispatches on an untyped value.
package modules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"

	wefterrors "github.com/weftworks/weft/internal/errors"
	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/types"
)

// Kind is the classified shape of an imported module.
type Kind int

const (
	// KindRenderer is a registered function- or component-shaped module.
	KindRenderer Kind = iota
	// KindBundle is a pre-bundled static HTML directory inlined as-is.
	KindBundle
	// KindDocument is an HTML or markdown document with embedded tags.
	KindDocument
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindRenderer:
		return "renderer"
	case KindBundle:
		return "bundle"
	case KindDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Props carries the properties handed to a renderer for one include tag.
type Props map[string]any

// RequestPropsFunc fetches additional properties for the current request,
// merged over attribute-derived ones before rendering.
type RequestPropsFunc func(ctx context.Context, req *types.Request) (Props, error)

// Renderer produces markup for a renderer include.
type Renderer interface {
	Render(ctx context.Context, props Props) (string, error)
}

// RenderFunc adapts a plain function to the Renderer interface.
type RenderFunc func(ctx context.Context, props Props) (string, error)

// Render implements Renderer.
func (f RenderFunc) Render(ctx context.Context, props Props) (string, error) {
	return f(ctx, props)
}

// RendererModule is a code-backed module registered under a logical path.
type RendererModule struct {
	// Renderer produces the markup spliced in place of the include tag.
	Renderer Renderer
	// Schema maps private-marker attributes to typed properties. Nil means
	// attributes pass through as strings.
	Schema Schema
	// RequestProps optionally fetches extra properties for the current
	// request before rendering.
	RequestProps RequestPropsFunc
	// ServerOnly marks modules whose renderer path must not be preloaded on
	// the client.
	ServerOnly bool
	// Frontmatter is the module's exported front-matter object, consumed by
	// front-matter tags with a src attribute.
	Frontmatter map[string]any
}

// Module is the classified result of an import.
type Module struct {
	// Kind discriminates the union; exactly one of the sections below is
	// populated.
	Kind Kind
	// Path is the resolved module path the import was keyed by.
	Path string

	// Renderer is set for KindRenderer.
	Renderer *RendererModule

	// Index is set for KindBundle: the bundle's index.html path.
	Index string

	// Body is the module's markup. For KindDocument it is the body with
	// front-matter stripped and markdown already rendered to HTML; for
	// KindBundle it is the index.html content verbatim.
	Body []byte
	// Frontmatter is set for KindDocument: the document's parsed
	// front-matter object, nil when the document has none.
	Frontmatter map[string]any
}

// Loader resolves and imports modules. Renderer modules are registered by the
// embedding program; file-backed modules are read from disk.
type Loader struct {
	logger   logging.Logger
	markdown goldmark.Markdown

	mu       sync.RWMutex
	registry map[string]*RendererModule
}

// NewLoader creates a Loader with an empty renderer registry.
func NewLoader(logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		logger:   logger.WithComponent("modules"),
		markdown: goldmark.New(),
		registry: make(map[string]*RendererModule),
	}
}

// Register binds a renderer module to a logical module path.
func (l *Loader) Register(path string, mod *RendererModule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registry[path] = mod
}

// Registered reports whether a logical module path has a renderer bound.
func (l *Loader) Registered(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.registry[path]
	return ok
}

// Resolve turns a module reference into the key Import will accept: logical
// registered paths resolve to themselves, everything else to an absolute file
// path relative to baseDir.
func (l *Loader) Resolve(path, baseDir string) (string, error) {
	if l.Registered(path) {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

// Import loads and classifies the module at a resolved path. Unrecognized
// shapes return a tag-scoped resolution error.
func (l *Loader) Import(path string) (*Module, error) {
	l.mu.RLock()
	reg, ok := l.registry[path]
	l.mu.RUnlock()
	if ok {
		return &Module{Kind: KindRenderer, Path: path, Renderer: reg}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, wefterrors.NewResolutionError("include", path, "module not found", err)
	}

	if info.IsDir() {
		index := filepath.Join(path, "index.html")
		// Bundles are pre-built output; the index is inlined verbatim, no
		// front-matter split or markdown rendering applies.
		body, err := os.ReadFile(index)
		if err != nil {
			return nil, wefterrors.NewResolutionError("include", path, "directory module has no index.html", err)
		}
		return &Module{Kind: KindBundle, Path: path, Index: index, Body: body}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return l.importDocument(path, false)
	case ".md", ".markdown":
		return l.importDocument(path, true)
	default:
		return nil, wefterrors.NewResolutionError("include", path,
			fmt.Sprintf("unrecognized module shape %q", filepath.Ext(path)), nil)
	}
}

func (l *Loader) importDocument(path string, markdown bool) (*Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, wefterrors.NewResolutionError("include", path, "reading module", err)
	}

	fm, body, err := SplitFrontmatter(source)
	if err != nil {
		// A malformed front-matter block is not fatal to the import; the
		// whole source is treated as body.
		l.logger.Warn(context.Background(), err, "ignoring malformed front-matter", "path", path)
		fm, body = nil, source
	}

	if markdown {
		var rendered strings.Builder
		if err := l.markdown.Convert(body, &rendered); err != nil {
			return nil, wefterrors.NewResolutionError("include", path, "rendering markdown", err)
		}
		body = []byte(rendered.String())
	}

	return &Module{Kind: KindDocument, Path: path, Body: body, Frontmatter: fm}, nil
}
