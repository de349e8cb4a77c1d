package errors

import "sync"

// Collector accumulates the recoverable, tag-scoped errors raised during one
// document transform so they can be reported on the transform result without
// aborting sibling tags. Safe for concurrent use: sibling include resolution
// may have multiple failures in flight at once.
type Collector struct {
	mu     sync.Mutex
	errors []error
}

// NewCollector creates an empty error collector.
func NewCollector() *Collector {
	return &Collector{errors: make([]error, 0)}
}

// Add records an error. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of all collected errors.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errors))
	copy(out, c.errors)
	return out
}

// HasErrors reports whether anything was collected.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) > 0
}
