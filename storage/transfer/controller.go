package transfer

import (
	"context"
	"errors"
	"io"
)

// Meter is what a backend needs to report progress and honor pause and cancel.
type Meter interface {
	// Context is cancelled when the task is cancelled.
	Context() context.Context
	// Reader wraps r so that reads block while paused and count as progress.
	Reader(r io.Reader) io.Reader
	// Writer wraps w so that writes block while paused and count as progress.
	Writer(w io.Writer) io.Writer
	// SetTotal records the expected number of bytes, if known.
	SetTotal(total int64)
}

// Controller drives a Task. It is held by the code performing the transfer.
type Controller struct {
	t *Task
}

var _ Meter = (*Controller)(nil)

func (c *Controller) Task() *Task { return c.t }

func (c *Controller) Context() context.Context { return c.t.ctx }

// Start moves the task from Created to Resumed. It is a no-op in any other state.
func (c *Controller) Start() {
	t := c.t
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateCreated {
		return
	}
	t.state = StateResumed
	close(t.gate)
	t.emitLocked(EventResumed)
}

func (c *Controller) SetTotal(total int64) {
	t := c.t
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
}

// Finish moves the task to its terminal state and returns it. A nil err means success.
// A task that was already cancelled stays cancelled.
func (c *Controller) Finish(err error) State {
	t := c.t
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		return t.state
	}

	switch {
	case err == nil:
		t.state = StateSucceeded
		t.emitLocked(EventSucceeded)
	case errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled):
		t.state = StateCancelled
		t.err = ErrCancelled
		t.emitLocked(EventCancelled)
	default:
		t.state = StateFailed
		t.err = err
		t.emitLocked(EventFailed)
	}

	return t.state
}

func (c *Controller) Reader(r io.Reader) io.Reader {
	mr := &meteredReader{t: c.t, r: r}
	if s, ok := r.(io.Seeker); ok {
		return &meteredReadSeeker{meteredReader: mr, s: s}
	}
	return mr
}

func (c *Controller) Writer(w io.Writer) io.Writer {
	return &meteredWriter{t: c.t, w: w}
}

type meteredReader struct {
	t *Task
	r io.Reader
}

func (m *meteredReader) Read(p []byte) (int, error) {
	if err := m.t.wait(); err != nil {
		return 0, err
	}
	n, err := m.r.Read(p)
	if n > 0 {
		m.t.progress(int64(n))
	}
	return n, err
}

// meteredReadSeeker keeps the body seekable so SDKs can rewind it for signing or retries.
type meteredReadSeeker struct {
	*meteredReader
	s io.Seeker
}

func (m *meteredReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := m.s.Seek(offset, whence)
	if err == nil {
		m.t.rewind(pos)
	}
	return pos, err
}

type meteredWriter struct {
	t *Task
	w io.Writer
}

func (m *meteredWriter) Write(p []byte) (int, error) {
	if err := m.t.wait(); err != nil {
		return 0, err
	}
	n, err := m.w.Write(p)
	if n > 0 {
		m.t.progress(int64(n))
	}
	return n, err
}
