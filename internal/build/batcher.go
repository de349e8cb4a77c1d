package build

import (
	"sync"
	"time"

	"github.com/weftworks/weft/internal/types"
)

// Batcher groups rapid dependency-change events together so a bulk edit (a
// checkout touching many files at once) triggers one rebuild, not one per
// file-system event. Events flush after a quiet delay, or immediately once
// the pending buffer reaches capacity.
type Batcher struct {
	delay    time.Duration
	capacity int
	output   chan []types.DependencyChange

	mu      sync.Mutex
	timer   *time.Timer
	pending []types.DependencyChange
	closed  bool
}

// NewBatcher creates a batcher flushing after delay or at capacity events.
func NewBatcher(delay time.Duration, capacity int) *Batcher {
	if capacity <= 0 {
		capacity = 10
	}
	return &Batcher{
		delay:    delay,
		capacity: capacity,
		output:   make(chan []types.DependencyChange, 4),
		pending:  make([]types.DependencyChange, 0, capacity),
	}
}

// Output returns the stream of flushed batches.
func (b *Batcher) Output() <-chan []types.DependencyChange {
	return b.output
}

// Add buffers one event, arming the flush timer.
func (b *Batcher) Add(event types.DependencyChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.pending = append(b.pending, event)

	if len(b.pending) >= b.capacity {
		b.flushLocked()
		return
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

// Close stops the timer and closes the output stream after flushing whatever
// is pending. Idempotent.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.flushLocked()
	b.closed = true
	close(b.output)
}

func (b *Batcher) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.pending) == 0 {
		return
	}

	// Deduplicate by entrypoint: one flush means at most one rebuild per
	// document regardless of how many of its dependencies changed.
	seen := make(map[string]struct{}, len(b.pending))
	batch := make([]types.DependencyChange, 0, len(b.pending))
	for _, event := range b.pending {
		if _, ok := seen[event.Entrypoint]; ok {
			continue
		}
		seen[event.Entrypoint] = struct{}{}
		batch = append(batch, event)
	}
	b.pending = b.pending[:0]

	select {
	case b.output <- batch:
	default:
		// Consumer has fallen behind; the next flush carries fresh events.
	}
}
