// Package transform implements the recursive document-rewriting engine.
//
// A Transformer expands recognized tags (front-matter, env, include) inside
// one HTML document: front-matter is extracted onto the request before
// anything else, env blocks are kept or dropped against the active build
// environment, and each include is imported, classified, rendered, and
// spliced in place of its tag. Because resolving one include can introduce
// new recognized tags, the engine re-runs on its own output until none remain
// or a pass ceiling trips.
package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	wefterrors "github.com/weftworks/weft/internal/errors"
	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/modules"
	"github.com/weftworks/weft/internal/types"
)

// DefaultRecursionLimit bounds the number of rewrite passes over one
// document. It is a heuristic safety valve against runaway inclusion graphs,
// not cycle detection.
const DefaultRecursionLimit = 100

// PropMarker prefixes include attributes that become renderer properties.
const PropMarker = ":"

// Options configures a Transformer.
type Options struct {
	// Environment is the active build environment name matched against env
	// tag allow/disallow lists. Comparison is exact.
	Environment string
	// RecursionLimit overrides DefaultRecursionLimit when positive.
	RecursionLimit int
}

// Transformer rewrites exactly one document. It is created per top-level
// render and cannot be reused after Transform returns.
type Transformer struct {
	logger logging.Logger
	loader *modules.Loader
	opts   Options

	mu     sync.Mutex
	closed bool

	req       *types.Request
	collector *wefterrors.Collector
	renderers *pathSet
	includes  *pathSet

	// tagSeen is set once any recognized tag has been processed; a
	// front-matter tag arriving after that point is ignored with a warning.
	tagSeen         bool
	frontmatterDone bool
}

// New creates a single-use Transformer.
func New(logger logging.Logger, loader *modules.Loader, opts Options) *Transformer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	return &Transformer{
		logger:    logger.WithComponent("transform"),
		loader:    loader,
		opts:      opts,
		collector: wefterrors.NewCollector(),
		renderers: newPathSet(),
		includes:  newPathSet(),
	}
}

// Transform expands every recognized tag in the input document and returns
// the output HTML together with the renderer modules and include sources
// touched anywhere in the recursive expansion.
func (t *Transformer) Transform(ctx context.Context, inputPath, input string) (*types.TransformResult, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transform: transformer for %s already used", inputPath)
	}
	t.closed = true
	t.mu.Unlock()

	// Fast path: no recognized tag names anywhere, so no request or pass
	// machinery is allocated.
	if !containsRecognizedTag(input) {
		return &types.TransformResult{InputPath: inputPath, HTML: input}, nil
	}

	t.req = &types.Request{Path: inputPath, Props: map[string]any{}}
	baseDir := filepath.Dir(inputPath)

	doc := input
	for pass := 0; containsRecognizedTag(doc); pass++ {
		if pass >= t.opts.RecursionLimit {
			return nil, wefterrors.NewRecursionLimitError(inputPath, t.opts.RecursionLimit)
		}

		out, processed, err := t.pass(ctx, doc, baseDir)
		if err != nil {
			return nil, err
		}
		if processed == 0 {
			// The remaining matches are not actionable tags (for example a
			// literal inside a comment); another pass would not change
			// anything.
			break
		}
		doc = out
	}

	return &types.TransformResult{
		InputPath:           inputPath,
		HTML:                doc,
		RendererModulePaths: t.renderers.values(),
		IncludesProcessed:   t.includes.values(),
		Request:             t.req,
		TagErrors:           t.collector.Errors(),
	}, nil
}

// pass performs one full left-to-right rewrite over the document.
// Front-matter and env tags are handled synchronously in document order;
// include tags for the pass are then resolved concurrently and spliced back
// in their original positions.
func (t *Transformer) pass(ctx context.Context, doc, baseDir string) (string, int, error) {
	segments, err := scan(doc)
	if err != nil {
		return "", 0, err
	}

	replacements := make([]string, len(segments))
	var includeIdx []int
	processed := 0

	for i, seg := range segments {
		if seg.tag == nil {
			replacements[i] = seg.literal
			continue
		}
		processed++

		switch seg.tag.name {
		case tagFrontmatter:
			replacements[i] = ""
			t.handleFrontmatter(ctx, seg.tag, baseDir)
		case tagEnv:
			if envAllows(seg.tag.attrs, t.opts.Environment) {
				replacements[i] = seg.tag.children
			} else {
				replacements[i] = ""
			}
			t.tagSeen = true
		case tagInclude:
			t.tagSeen = true
			includeIdx = append(includeIdx, i)
		}
	}

	// Sibling includes resolve concurrently; each rewrite is independent of
	// sibling completion order because every tag owns its own slot in the
	// replacements slice.
	g, gctx := errgroup.WithContext(ctx)
	for _, i := range includeIdx {
		tag := segments[i].tag
		slot := &replacements[i]
		g.Go(func() error {
			out, err := t.resolveInclude(gctx, tag, baseDir)
			if err != nil {
				return err
			}
			*slot = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, err
	}

	return strings.Join(replacements, ""), processed, nil
}

// handleFrontmatter parses the first front-matter tag onto the request.
// Every failure mode here is non-fatal: a late or duplicate tag, a malformed
// inline block, and an external module without a front-matter object are all
// warned about and dropped.
func (t *Transformer) handleFrontmatter(ctx context.Context, tag *tagOccurrence, baseDir string) {
	if t.tagSeen || t.frontmatterDone {
		t.logger.Warn(ctx, nil, "ignoring front-matter tag that is not the first recognized tag",
			"path", t.req.Path)
		t.tagSeen = true
		return
	}
	t.tagSeen = true
	t.frontmatterDone = true

	src, hasSrc := tag.attrs["src"]
	if !hasSrc {
		fm, err := modules.ParseFrontmatter([]byte(tag.children))
		if err != nil {
			t.logger.Warn(ctx, err, "ignoring malformed front-matter block", "path", t.req.Path)
			t.collector.Add(err)
			return
		}
		t.req.Frontmatter = fm
		return
	}

	resolved, err := t.loader.Resolve(src, baseDir)
	if err != nil {
		t.logger.Warn(ctx, err, "ignoring unresolvable front-matter source", "src", src)
		t.collector.Add(err)
		return
	}
	t.includes.add(resolved)

	mod, err := t.loader.Import(resolved)
	if err != nil {
		t.logger.Warn(ctx, err, "ignoring unimportable front-matter source", "src", src)
		t.collector.Add(err)
		return
	}

	switch {
	case mod.Kind == modules.KindDocument && mod.Frontmatter != nil:
		t.req.Frontmatter = mod.Frontmatter
	case mod.Kind == modules.KindRenderer && mod.Renderer.Frontmatter != nil:
		t.req.Frontmatter = mod.Renderer.Frontmatter
	default:
		t.logger.Warn(ctx, nil, "front-matter source exports no front-matter object",
			"src", src, "kind", mod.Kind.String())
	}
}

// resolveInclude turns one include tag into its replacement markup. A nil
// error with empty output means the tag was dropped after a tag-scoped
// failure; structural errors propagate and abort the transform.
func (t *Transformer) resolveInclude(ctx context.Context, tag *tagOccurrence, baseDir string) (string, error) {
	src, ok := tag.attrs["src"]
	if !ok || src == "" {
		return "", wefterrors.NewStructuralError(tagInclude, t.req.Path, "include tag missing required src attribute")
	}

	resolved, err := t.loader.Resolve(src, baseDir)
	if err != nil {
		return t.dropTag(ctx, wefterrors.NewResolutionError(tagInclude, src, "resolving include source", err)), nil
	}
	t.includes.add(resolved)

	mod, err := t.loader.Import(resolved)
	if err != nil {
		if wefterrors.IsStructural(err) {
			return "", err
		}
		return t.dropTag(ctx, err), nil
	}

	switch mod.Kind {
	case modules.KindBundle:
		return t.inlineBundle(mod)
	case modules.KindDocument:
		return t.spliceChildren(rewriteIncludeSrcs(string(mod.Body), filepath.Dir(mod.Path), t.loader.Registered), tag)
	case modules.KindRenderer:
		return t.renderInclude(ctx, mod, tag)
	default:
		return t.dropTag(ctx, wefterrors.NewResolutionError(tagInclude, resolved,
			fmt.Sprintf("unrecognized module kind %d", mod.Kind), nil)), nil
	}
}

func (t *Transformer) renderInclude(ctx context.Context, mod *modules.Module, tag *tagOccurrence) (string, error) {
	reg := mod.Renderer
	if !reg.ServerOnly {
		t.renderers.add(mod.Path)
	}

	props, propErrs := reg.Schema.CoerceProps(markedProps(tag.attrs))
	for _, err := range propErrs {
		t.logger.Warn(ctx, err, "dropping include property", "module", mod.Path)
		t.collector.Add(err)
	}

	if reg.RequestProps != nil {
		extra, err := reg.RequestProps(ctx, t.req)
		if err != nil {
			return t.dropTag(ctx, wefterrors.NewResolutionError(tagInclude, mod.Path, "request props hook failed", err)), nil
		}
		for k, v := range extra {
			props[k] = v
		}
	}

	markup, err := reg.Renderer.Render(ctx, props)
	if err != nil {
		return t.dropTag(ctx, wefterrors.NewResolutionError(tagInclude, mod.Path, "rendering include", err)), nil
	}

	return t.spliceChildren(markup, tag)
}

func (t *Transformer) inlineBundle(mod *modules.Module) (string, error) {
	// The index file, not just the bundle directory, is the dependency that
	// changes on disk; it must be tracked so edits to it invalidate the page.
	t.includes.add(mod.Index)
	// Nested include paths inside the bundle were authored relative to the
	// bundle directory; rewrite them so later passes resolve correctly from
	// the output location.
	return rewriteIncludeSrcs(string(mod.Body), filepath.Dir(mod.Index), t.loader.Registered), nil
}

// spliceChildren moves the include tag's original children into the rendered
// markup's slot. No slot and no children is the common case and a no-op;
// more than one slot marker, a duplicate slot name, or a non-empty slot body
// is a structural authoring error.
func (t *Transformer) spliceChildren(markup string, tag *tagOccurrence) (string, error) {
	out, found, err := fillSlot(markup, tag.children)
	if err != nil {
		return "", err
	}
	if !found && strings.TrimSpace(tag.children) != "" {
		t.logger.Debug(context.Background(), "include children dropped: rendered markup has no slot",
			"src", tag.attrs["src"])
	}
	return out, nil
}

// dropTag records a tag-scoped error and removes the tag from the output so
// one broken include degrades gracefully instead of failing the page.
func (t *Transformer) dropTag(ctx context.Context, err error) string {
	t.logger.Error(ctx, err, "dropping failed tag", "path", t.req.Path)
	t.collector.Add(err)
	return ""
}

// markedProps extracts attributes carrying the private property marker,
// stripping the marker.
func markedProps(attrs map[string]string) map[string]string {
	props := make(map[string]string)
	for key, val := range attrs {
		if strings.HasPrefix(key, PropMarker) {
			props[strings.TrimPrefix(key, PropMarker)] = val
		}
	}
	return props
}

// envAllows evaluates an env tag's allow/disallow lists against the active
// environment. Disallow wins over allow; a tag with neither list keeps its
// content.
func envAllows(attrs map[string]string, environment string) bool {
	if listContains(attrs["disallow"], environment) {
		return false
	}
	if allow, ok := attrs["allow"]; ok {
		return listContains(allow, environment)
	}
	return true
}

func listContains(list, name string) bool {
	if list == "" {
		return false
	}
	for _, entry := range strings.Split(list, ",") {
		if strings.TrimSpace(entry) == name {
			return true
		}
	}
	return false
}

// pathSet is an append-only ordered set; sibling includes append
// concurrently.
type pathSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func newPathSet() *pathSet {
	return &pathSet{seen: make(map[string]struct{})}
}

func (s *pathSet) add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[path]; ok {
		return
	}
	s.seen[path] = struct{}{}
	s.order = append(s.order, path)
}

func (s *pathSet) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
