// Package build owns the document-build lifecycle: entrypoint discovery,
// one-shot builds, and the incremental dev loop gluing the watcher, tracker,
// and transformer together.
//
// Data flow in the dev loop: transform results feed the dependency tracker,
// which re-arms the file watcher with the full tracked path set; file changes
// flow back through the tracker as per-entrypoint invalidations, get batched,
// and trigger regeneration of only the affected documents.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/weftworks/weft/internal/config"
	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/modules"
	"github.com/weftworks/weft/internal/tracker"
	"github.com/weftworks/weft/internal/transform"
	"github.com/weftworks/weft/internal/watcher"
)

// Driver owns the process-lifetime pipeline state. Construct with NewDriver,
// tear down with Shutdown.
type Driver struct {
	logger  logging.Logger
	cfg     *config.Config
	loader  *modules.Loader
	watcher *watcher.FileWatcher
	tracker *tracker.Tracker
	batcher *Batcher
}

// NewDriver wires up a driver around explicit, constructor-injected watcher
// and tracker state; there are no package-level singletons.
func NewDriver(logger logging.Logger, cfg *config.Config, loader *modules.Loader) *Driver {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := watcher.New(logger)
	return &Driver{
		logger:  logger.WithComponent("build"),
		cfg:     cfg,
		loader:  loader,
		watcher: w,
		tracker: tracker.New(logger, w),
		batcher: NewBatcher(cfg.Build.Debounce(), cfg.Build.BatchSize),
	}
}

// Loader returns the driver's module loader, so the embedding program can
// register renderer modules before building.
func (d *Driver) Loader() *modules.Loader {
	return d.loader
}

// Entrypoints discovers top-level documents under the source dir using the
// configured include/exclude globs. Paths are returned absolute and sorted.
func (d *Driver) Entrypoints() ([]string, error) {
	srcDir, err := filepath.Abs(d.cfg.Site.SrcDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, pattern := range d.cfg.Build.Include {
		matches, err := doublestar.Glob(os.DirFS(srcDir), pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if d.excluded(rel) {
				continue
			}
			seen[filepath.Join(srcDir, filepath.FromSlash(rel))] = struct{}{}
		}
	}

	entrypoints := make([]string, 0, len(seen))
	for path := range seen {
		entrypoints = append(entrypoints, path)
	}
	sort.Strings(entrypoints)
	return entrypoints, nil
}

func (d *Driver) excluded(rel string) bool {
	for _, pattern := range d.cfg.Build.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// BuildAll transforms every entrypoint once and tracks the results. A
// per-document fatal error is reported and the document skipped; the rest of
// the build continues. The returned error summarizes any skipped documents.
func (d *Driver) BuildAll(ctx context.Context) error {
	entrypoints, err := d.Entrypoints()
	if err != nil {
		return err
	}

	failed := 0
	for _, entrypoint := range entrypoints {
		if err := d.buildOne(ctx, entrypoint); err != nil {
			d.logger.Error(ctx, err, "document build failed", "entrypoint", entrypoint)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to build", failed, len(entrypoints))
	}
	return nil
}

// buildOne runs one full transform for an entrypoint: read, expand, write,
// track. A fresh transformer is created per render; it is single-use.
func (d *Driver) buildOne(ctx context.Context, entrypoint string) error {
	source, err := os.ReadFile(entrypoint)
	if err != nil {
		return fmt.Errorf("reading %s: %w", entrypoint, err)
	}

	tr := transform.New(d.logger, d.loader, transform.Options{
		Environment:    d.cfg.Site.Environment,
		RecursionLimit: d.cfg.Build.RecursionLimit,
	})
	result, err := tr.Transform(ctx, entrypoint, string(source))
	if err != nil {
		return err
	}

	if err := d.writeOutput(entrypoint, result.HTML); err != nil {
		return err
	}

	if err := d.tracker.Track(result); err != nil {
		return fmt.Errorf("tracking %s: %w", entrypoint, err)
	}

	d.logger.Info(ctx, "document built",
		"entrypoint", entrypoint,
		"includes", len(result.IncludesProcessed),
		"tag_errors", len(result.TagErrors))
	return nil
}

func (d *Driver) writeOutput(entrypoint, html string) error {
	srcDir, err := filepath.Abs(d.cfg.Site.SrcDir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(srcDir, entrypoint)
	if err != nil {
		return err
	}

	outPath := filepath.Join(d.cfg.Site.OutDir, rel)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(html), 0o644)
}

// WatchLoop runs the incremental dev loop until the context is cancelled:
// changed files become per-entrypoint invalidations, invalidations are
// batched, and each flushed batch regenerates only the affected documents.
func (d *Driver) WatchLoop(ctx context.Context) {
	go func() {
		for path := range d.watcher.Changes() {
			d.tracker.HandleFileChanged(path)
		}
	}()

	go func() {
		for event := range d.tracker.Events() {
			d.logger.Debug(ctx, "dependency changed",
				"entrypoint", event.Entrypoint, "dependency", event.Dependency)
			d.batcher.Add(event)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-d.batcher.Output():
			if !ok {
				return
			}
			for _, event := range batch {
				if err := d.buildOne(ctx, event.Entrypoint); err != nil {
					d.logger.Error(ctx, err, "rebuild failed", "entrypoint", event.Entrypoint)
				}
			}
		}
	}
}

// Shutdown tears down process-lifetime state: the watcher stream, the
// tracker's event channel, and the batcher. Idempotent.
func (d *Driver) Shutdown() {
	d.watcher.Complete()
	d.tracker.Close()
	d.batcher.Close()
}
