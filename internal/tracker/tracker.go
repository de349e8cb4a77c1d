// Package tracker maintains the many-to-many map from dependency paths to the
// entrypoint documents that transitively include them, and turns file-change
// notifications into per-entrypoint invalidation events.
package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/types"
)

// Rearmer is the watcher-facing side of the tracker: after every Track call
// the full set of tracked dependency keys is handed over for re-planning.
// *watcher.FileWatcher satisfies it.
type Rearmer interface {
	Next(paths []string) error
}

// Tracker records entrypoint -> dependency edges and emits DependencyChange
// events when a tracked dependency changes on disk.
//
// The map only grows within a session: edges from a previous version of a
// document that no longer includes a dependency are kept. Over-watching is
// safe; pruning would risk silently missing changes.
type Tracker struct {
	logger  logging.Logger
	watcher Rearmer
	events  chan types.DependencyChange

	mu sync.Mutex
	// deps maps a dependency path to the set of entrypoints including it.
	deps   map[string]map[string]struct{}
	closed bool
}

// New creates a Tracker wired to the given watcher. The watcher may be nil
// when change-driven rebuilding is not wanted (one-shot builds).
func New(logger logging.Logger, watcher Rearmer) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		logger:  logger.WithComponent("tracker"),
		watcher: watcher,
		// Sized for a bulk edit touching every tracked file at once. A send
		// on a full stream drops the event with a warning rather than
		// blocking under the tracker mutex; a drop is a missed rebuild, so
		// the buffer errs large.
		events: make(chan types.DependencyChange, 1024),
		deps:   make(map[string]map[string]struct{}),
	}
}

// Events returns the stream of invalidation events. Closed by Close.
func (t *Tracker) Events() <-chan types.DependencyChange {
	return t.events
}

// Track records every include source of the transform result as a dependency
// of the result's input path, then re-arms the watcher with the full current
// set of tracked dependency keys. The entrypoint is tracked as a dependency
// of itself so editing the document directly also triggers regeneration.
func (t *Tracker) Track(result *types.TransformResult) error {
	t.mu.Lock()
	t.add(result.InputPath, result.InputPath)
	for _, dep := range result.IncludesProcessed {
		t.add(dep, result.InputPath)
	}
	keys := t.dependencyKeysLocked()
	t.mu.Unlock()

	if t.watcher == nil {
		return nil
	}
	return t.watcher.Next(keys)
}

// HandleFileChanged is the watcher's emitted event, wired as this component's
// input. It emits one DependencyChange per entrypoint currently mapped from
// the changed dependency. A dependency with no owning entrypoint is not an
// error; it is logged and ignored.
func (t *Tracker) HandleFileChanged(dependency string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	owners := make([]string, 0, len(t.deps[dependency]))
	for entrypoint := range t.deps[dependency] {
		owners = append(owners, entrypoint)
	}
	if len(owners) == 0 {
		t.logger.Debug(context.Background(), "change for untracked dependency", "path", dependency)
		return
	}

	sort.Strings(owners)
	for _, entrypoint := range owners {
		select {
		case t.events <- types.DependencyChange{Entrypoint: entrypoint, Dependency: dependency}:
		default:
			t.logger.Warn(context.Background(), nil, "event stream full, dropping invalidation",
				"entrypoint", entrypoint, "dependency", dependency)
		}
	}
}

// Entrypoints returns the entrypoints currently mapped from a dependency.
func (t *Tracker) Entrypoints(dependency string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.deps[dependency]))
	for entrypoint := range t.deps[dependency] {
		out = append(out, entrypoint)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns all tracked dependency keys.
func (t *Tracker) Dependencies() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dependencyKeysLocked()
}

// Close shuts down the event stream. Idempotent.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.events)
}

func (t *Tracker) add(dependency, entrypoint string) {
	set, ok := t.deps[dependency]
	if !ok {
		set = make(map[string]struct{})
		t.deps[dependency] = set
	}
	set[entrypoint] = struct{}{}
}

func (t *Tracker) dependencyKeysLocked() []string {
	keys := make([]string, 0, len(t.deps))
	for dep := range t.deps {
		keys = append(keys, dep)
	}
	sort.Strings(keys)
	return keys
}
