package storage

import (
	"context"
	"sync"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
)

// Result is the outcome of an operation: a value or an error, never both.
type Result[T any] struct {
	value T
	err   *types.Error
}

func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure builds a failed result. A nil err is recorded as an unknown error so that a
// failure always carries one.
func Failure[T any](err error) Result[T] {
	e := types.Normalize(err)
	if e == nil {
		e = types.ErrUnknown
	}
	return Result[T]{err: e}
}

func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// Value is the success value, or the zero value for a failure.
func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// ErrorInfo is the normalized error of a failure, nil on success.
func (r Result[T]) ErrorInfo() *types.Error {
	return r.err
}

func (r Result[T]) Get() (T, error) {
	return r.value, r.Err()
}

// Future resolves exactly once with the Result of an asynchronous operation.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	result    Result[T]
	callbacks []func(Result[T])
	logger    log.LoggerInterface
}

func newFuture[T any](logger log.LoggerInterface) *Future[T] {
	return &Future[T]{
		done:   make(chan struct{}),
		logger: logger,
	}
}

// resolve stores r and runs the registered callbacks. Only the first call has any effect.
func (f *Future[T]) resolve(r Result[T]) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.result = r
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		f.run(cb, r)
	}
	return true
}

func (f *Future[T]) run(cb func(Result[T]), r Result[T]) {
	utils.TryCatch(func() {
		cb(r)
	}, func(e error, stackTrace string) {
		f.logger.ErrorStack(stackTrace, "storage: completion callback panicked: %v", e)
	})
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the result and whether it is available yet.
func (f *Future[T]) Result() (Result[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.resolved
}

// Wait blocks until the result is available or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-f.done:
		r, _ := f.Result()
		return r, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// Get waits for the result and unpacks it.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	r, err := f.Wait(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Get()
}

// OnComplete registers fn to receive the result. Callbacks run once, in registration order,
// on the goroutine that resolves the future; fn registered after resolution runs
// immediately on the caller's goroutine.
func (f *Future[T]) OnComplete(fn func(Result[T])) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	r := f.result
	f.mu.Unlock()

	f.run(fn, r)
}
