package channels

import (
	"context"
	"errors"
	"sync"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/utils"
)

var ErrClosed = errors.New("channel is closed")

// SafeChannel wraps a channel so that closing twice or writing after close returns
// instead of panicking. It closes when ctx is done.
type SafeChannel[T any] struct {
	ctx context.Context
	ch  chan T

	mu     sync.Mutex
	closed bool
}

// New returns an unbuffered channel, or a buffered one when size is given.
func New[T any](ctx context.Context, size ...int) *SafeChannel[T] {
	capacity := 0
	if len(size) > 0 && size[0] > 0 {
		capacity = size[0]
	}

	c := &SafeChannel[T]{ctx: ctx, ch: make(chan T, capacity)}

	go utils.Try(func() {
		<-ctx.Done()
		c.Close()
	}, log.FromContext(ctx))

	return c
}

func (c *SafeChannel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Write blocks until the value is received, the channel is closed or the context is done.
func (c *SafeChannel[T]) Write(data T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.ch <- data:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// TryWrite sends data only if a receiver or buffer slot is ready. It reports whether the
// value was sent.
func (c *SafeChannel[T]) TryWrite(data T) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	select {
	case c.ch <- data:
		return true, nil
	default:
		return false, nil
	}
}

func (c *SafeChannel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *SafeChannel[T]) Read() <-chan T {
	return c.ch
}
