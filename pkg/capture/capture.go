// Package capture records a run's console output while still forwarding it
// to the live console.
package capture

import (
	"bytes"
	"io"
	"sync"
)

// Capture owns one transcript buffer and the tee writer that feeds it.
type Capture struct {
	origin io.Writer

	mu        sync.Mutex
	buf       bytes.Buffer
	active    bool
	originErr error
	tee       *tee
}

// New returns a capture that mirrors writes to origin. A nil origin
// discards the live copy.
func New(origin io.Writer) *Capture {
	if origin == nil {
		origin = io.Discard
	}
	return &Capture{origin: origin}
}

// Begin starts recording and returns the writer every producer should
// write to. Calling Begin on an active capture returns the same writer.
func (c *Capture) Begin() io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return c.tee
	}
	c.buf.Reset()
	c.originErr = nil
	c.active = true
	c.tee = &tee{c: c}
	return c.tee
}

// End stops recording and returns the transcript. Writers handed out by
// Begin keep forwarding to the origin after End.
func (c *Capture) End() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = false
	return c.buf.String()
}

// Active reports whether Begin has been called without a matching End.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Err returns the first error the origin writer reported during the
// current or last capture window.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.originErr
}

func (c *Capture) write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		c.buf.Write(p)
	}
	if _, err := c.origin.Write(p); err != nil && c.originErr == nil {
		c.originErr = err
	}
	return len(p), nil
}

// tee is the writer handed to jobs. Writes are serialized by the owning
// Capture so the buffer keeps true program order.
type tee struct {
	c *Capture
}

func (t *tee) Write(p []byte) (int, error) {
	return t.c.write(p)
}
