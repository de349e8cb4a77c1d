package build

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/types"
)

func event(entrypoint, dep string) types.DependencyChange {
	return types.DependencyChange{Entrypoint: entrypoint, Dependency: dep}
}

func receiveBatch(t *testing.T, b *Batcher, timeout time.Duration) []types.DependencyChange {
	t.Helper()
	select {
	case batch := <-b.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestBatcherFlushesAfterQuietDelay(t *testing.T) {
	b := NewBatcher(30*time.Millisecond, 10)
	defer b.Close()

	b.Add(event("/site/a.html", "/site/dep.html"))

	batch := receiveBatch(t, b, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "/site/a.html", batch[0].Entrypoint)
}

func TestBatcherDeduplicatesEntrypoints(t *testing.T) {
	b := NewBatcher(30*time.Millisecond, 10)
	defer b.Close()

	b.Add(event("/site/a.html", "/site/x.html"))
	b.Add(event("/site/a.html", "/site/y.html"))
	b.Add(event("/site/b.html", "/site/x.html"))

	batch := receiveBatch(t, b, time.Second)
	assert.Len(t, batch, 2, "two dependencies of one entrypoint must coalesce")
}

func TestBatcherFlushesImmediatelyAtCapacity(t *testing.T) {
	b := NewBatcher(10*time.Second, 3)
	defer b.Close()

	for i := 0; i < 3; i++ {
		b.Add(event(fmt.Sprintf("/site/%d.html", i), "/site/dep.html"))
	}

	// Delay is far away; only the capacity flush can deliver this.
	batch := receiveBatch(t, b, time.Second)
	assert.Len(t, batch, 3)
}

func TestBatcherCloseFlushesPendingAndIsIdempotent(t *testing.T) {
	b := NewBatcher(10*time.Second, 10)

	b.Add(event("/site/a.html", "/site/dep.html"))
	b.Close()
	b.Close()

	batch, ok := <-b.Output()
	require.True(t, ok)
	assert.Len(t, batch, 1)

	_, ok = <-b.Output()
	assert.False(t, ok)
}

func TestBatcherIgnoresAddAfterClose(t *testing.T) {
	b := NewBatcher(time.Millisecond, 10)
	b.Close()

	assert.NotPanics(t, func() {
		b.Add(event("/site/a.html", "/site/dep.html"))
	})
}
