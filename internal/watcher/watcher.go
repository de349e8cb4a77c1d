// Package watcher wraps the OS file-change notification primitive behind a
// re-armable stream of changed file paths.
//
// Each call to Next replaces the previous watch set: the planner computes
// directory- and file-level watch points for the new paths, one fsnotify
// registration is installed per point, and directory-level events are
// reconciled against the caller's whitelist so unrelated files that merely
// share a watched directory are never reported.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/planner"
	"github.com/weftworks/weft/internal/types"
)

// ErrTerminated is returned by Next after Complete or Error has been called.
// A terminated watcher cannot be re-armed; callers need a fresh instance.
var ErrTerminated = errors.New("watcher: already terminated")

// FileWatcher emits changed file paths for a re-armable set of watched files.
type FileWatcher struct {
	logger  logging.Logger
	changes chan string

	mu         sync.Mutex
	active     *generation
	terminated bool
}

// generation is one armed watch set. Re-arming cancels the previous
// generation and waits for its loop to exit before the next one starts, so
// events from distinct generations never interleave.
type generation struct {
	fsw       *fsnotify.Watcher
	cancel    context.CancelFunc
	done      chan struct{}
	whitelist map[string]struct{}
	points    []types.WatchPoint
}

// New creates a FileWatcher. The changes stream is buffered large enough for
// a bulk edit touching every watched file at once; a consumer that still
// falls behind loses events (logged) rather than blocking the watch loop,
// since a blocked loop would stall fsnotify delivery for the whole
// generation.
func New(logger logging.Logger) *FileWatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileWatcher{
		logger:  logger.WithComponent("watcher"),
		changes: make(chan string, 1024),
	}
}

// Changes returns the stream of changed file paths. The channel is closed by
// Complete or Error.
func (w *FileWatcher) Changes() <-chan string {
	return w.changes
}

// Next re-arms the watcher for a new path set, fully replacing the previous
// set. Paths that cannot be resolved to an existing absolute location are
// skipped with a warning; the remaining paths are still watched. Calling Next
// with an overlapping or identical set is safe and simply restarts watching.
func (w *FileWatcher) Next(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return ErrTerminated
	}

	w.stopActiveLocked()

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.logger.Warn(context.Background(), err, "skipping unresolvable watch path", "path", p)
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			w.logger.Warn(context.Background(), err, "skipping unwatchable path", "path", p)
			continue
		}
		resolved = append(resolved, abs)
	}

	points := planner.Plan(resolved)
	if len(points) == 0 {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	whitelist := make(map[string]struct{}, len(resolved))
	for _, p := range resolved {
		whitelist[p] = struct{}{}
	}

	installed := points[:0]
	for _, point := range points {
		if err := fsw.Add(point.Path); err != nil {
			w.logger.Warn(context.Background(), err, "skipping watch point", "path", point.Path, "kind", point.Kind.String())
			continue
		}
		installed = append(installed, point)
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := &generation{
		fsw:       fsw,
		cancel:    cancel,
		done:      make(chan struct{}),
		whitelist: whitelist,
		points:    installed,
	}
	w.active = gen

	go w.watchLoop(ctx, gen)
	return nil
}

// Complete shuts the watcher down and closes the changes stream. Idempotent.
func (w *FileWatcher) Complete() {
	w.terminate(nil)
}

// Error terminates the watcher after a caller-side failure. Idempotent; the
// error is logged, not re-raised, since the stream is already closing.
func (w *FileWatcher) Error(err error) {
	w.terminate(err)
}

// WatchPoints returns the watch points of the currently armed generation.
func (w *FileWatcher) WatchPoints() []types.WatchPoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	out := make([]types.WatchPoint, len(w.active.points))
	copy(out, w.active.points)
	return out
}

func (w *FileWatcher) terminate(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		if err != nil {
			w.logger.Error(context.Background(), err, "error on terminated watcher")
		}
		return
	}
	w.terminated = true

	if err != nil {
		w.logger.Error(context.Background(), err, "watcher terminating with error")
	}

	w.stopActiveLocked()
	close(w.changes)
}

// stopActiveLocked cancels the active generation and waits for its loop to
// exit. Must be called with w.mu held.
func (w *FileWatcher) stopActiveLocked() {
	if w.active == nil {
		return
	}
	w.active.cancel()
	<-w.active.done
	w.active = nil
}

func (w *FileWatcher) watchLoop(ctx context.Context, gen *generation) {
	defer close(gen.done)
	defer func() {
		// Cancellation is silent, successful termination; a close error
		// at this point has nowhere useful to go.
		if err := gen.fsw.Close(); err != nil && ctx.Err() == nil {
			w.logger.Warn(context.Background(), err, "closing fsnotify watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-gen.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, gen, event)
		case err, ok := <-gen.fsw.Errors:
			if !ok {
				return
			}
			// Log and keep watching; one bad event must not tear down
			// the whole generation.
			w.logger.Warn(ctx, err, "file watch error")
		}
	}
}

func (w *FileWatcher) handleEvent(ctx context.Context, gen *generation, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Directory points surface every child of the watched directory; only
	// whitelisted paths are the caller's business.
	path := filepath.Clean(event.Name)
	if _, ok := gen.whitelist[path]; !ok {
		return
	}

	select {
	case w.changes <- path:
	case <-ctx.Done():
	default:
		w.logger.Warn(ctx, nil, "change stream full, dropping event", "path", path)
	}
}
