// Package transfer implements the handle returned for every upload and download.
//
// A Task moves through Created -> Resumed <-> Paused -> {Succeeded | Failed | Cancelled}.
// Callers observe it and may pause, resume or cancel it. The side that performs the transfer
// drives it through a Controller, wrapping its streams with Controller.Reader and
// Controller.Writer so that progress is reported and pause/cancel take effect.
package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

type Kind string

const (
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

type State int

const (
	StateCreated State = iota
	StateResumed
	StatePaused
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateResumed:
		return "resumed"
	case StatePaused:
		return "paused"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

type EventType string

const (
	EventResumed   EventType = "resumed"
	EventPaused    EventType = "paused"
	EventProgress  EventType = "progress"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

func (e EventType) isTerminal() bool {
	return e == EventSucceeded || e == EventFailed || e == EventCancelled
}

// ErrCancelled is the error of a task that was cancelled.
var ErrCancelled = errors.New("transfer cancelled")

// Snapshot is a point-in-time view of a task.
type Snapshot struct {
	ID        string
	Kind      Kind
	Path      string
	State     State
	Completed int64
	Total     int64
	Err       error
}

// Fraction returns completed/total, or 0 while the total is unknown.
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

type Event struct {
	Type EventType
	Snapshot
}

type ObserverHandle string

type observer struct {
	handle ObserverHandle
	typ    EventType
	all    bool
	fn     func(Event)
}

// Task is the handle of one in-flight transfer.
type Task struct {
	id   string
	kind Kind
	path string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	completed int64
	total     int64
	err       error
	gate      chan struct{}
	observers []observer
	queue     []Event
	last      *Event

	signal chan struct{}
	done   chan struct{}
}

// New creates a task in the Created state and the Controller that drives it.
// The controller's context is derived from ctx and is cancelled by Task.Cancel.
func New(ctx context.Context, kind Kind, path string) (*Task, *Controller) {
	tctx, cancel := context.WithCancel(ctx)

	t := &Task{
		id:     uuid.NewString(),
		kind:   kind,
		path:   path,
		ctx:    tctx,
		cancel: cancel,
		state:  StateCreated,
		gate:   make(chan struct{}),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go t.dispatch()

	return t, &Controller{t: t}
}

func (t *Task) ID() string { return t.id }

func (t *Task) Kind() Kind { return t.kind }

func (t *Task) Path() string { return t.path }

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Task) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        t.id,
		Kind:      t.kind,
		Path:      t.path,
		State:     t.state,
		Completed: t.completed,
		Total:     t.total,
		Err:       t.err,
	}
}

// Done is closed once the terminal event has been delivered to every observer.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Pause suspends a running transfer. It reports whether the state changed.
func (t *Task) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateResumed {
		return false
	}
	t.state = StatePaused
	t.gate = make(chan struct{})
	t.emitLocked(EventPaused)
	return true
}

// Resume continues a paused transfer. It reports whether the state changed.
func (t *Task) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePaused {
		return false
	}
	t.state = StateResumed
	close(t.gate)
	t.emitLocked(EventResumed)
	return true
}

// Cancel stops the transfer. It reports whether the state changed; a task that already
// finished cannot be cancelled.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		return false
	}
	t.state = StateCancelled
	t.err = ErrCancelled
	t.cancel()
	t.emitLocked(EventCancelled)
	return true
}

// Observe registers fn for events of type typ. If the task already reached the terminal
// state matching typ, fn is called with that event on a new goroutine.
func (t *Task) Observe(typ EventType, fn func(Event)) ObserverHandle {
	return t.addObserver(observer{typ: typ, fn: fn})
}

// ObserveAll registers fn for every event.
func (t *Task) ObserveAll(fn func(Event)) ObserverHandle {
	return t.addObserver(observer{all: true, fn: fn})
}

func (t *Task) addObserver(o observer) ObserverHandle {
	o.handle = ObserverHandle(uuid.NewString())

	t.mu.Lock()
	last := t.last
	finished := last != nil && last.Type.isTerminal()
	if !finished {
		t.observers = append(t.observers, o)
	}
	t.mu.Unlock()

	if finished && (o.all || o.typ == last.Type) {
		go o.fn(*last)
	}

	return o.handle
}

func (t *Task) OnResumed(fn func(Snapshot)) ObserverHandle {
	return t.Observe(EventResumed, func(e Event) { fn(e.Snapshot) })
}

func (t *Task) OnPaused(fn func(Snapshot)) ObserverHandle {
	return t.Observe(EventPaused, func(e Event) { fn(e.Snapshot) })
}

func (t *Task) OnProgress(fn func(completed, total int64)) ObserverHandle {
	return t.Observe(EventProgress, func(e Event) { fn(e.Completed, e.Total) })
}

func (t *Task) OnSucceeded(fn func(Snapshot)) ObserverHandle {
	return t.Observe(EventSucceeded, func(e Event) { fn(e.Snapshot) })
}

func (t *Task) OnFailed(fn func(error)) ObserverHandle {
	return t.Observe(EventFailed, func(e Event) { fn(e.Err) })
}

func (t *Task) OnCancelled(fn func(Snapshot)) ObserverHandle {
	return t.Observe(EventCancelled, func(e Event) { fn(e.Snapshot) })
}

func (t *Task) RemoveObserver(handle ObserverHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, o := range t.observers {
		if o.handle == handle {
			t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Task) RemoveAllObservers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = nil
}

// emitLocked queues an event carrying the current snapshot. Callers hold t.mu.
func (t *Task) emitLocked(typ EventType) {
	ev := Event{Type: typ, Snapshot: t.snapshotLocked()}
	t.queue = append(t.queue, ev)
	t.last = &ev

	select {
	case t.signal <- struct{}{}:
	default:
	}
}

// dispatch delivers queued events in order until the terminal event has been delivered.
func (t *Task) dispatch() {
	for range t.signal {
		t.mu.Lock()
		batch := t.queue
		t.queue = nil
		observers := make([]observer, len(t.observers))
		copy(observers, t.observers)
		t.mu.Unlock()

		for _, ev := range batch {
			for _, o := range observers {
				if o.all || o.typ == ev.Type {
					o.fn(ev)
				}
			}
			if ev.Type.isTerminal() {
				t.cancel()
				close(t.done)
				return
			}
		}
	}
}

// wait blocks while the task is created or paused.
func (t *Task) wait() error {
	for {
		t.mu.Lock()
		state := t.state
		gate := t.gate
		err := t.err
		t.mu.Unlock()

		if state.IsTerminal() {
			if err == nil {
				err = ErrCancelled
			}
			return err
		}

		select {
		case <-gate:
			if state == StateResumed {
				return nil
			}
		case <-t.ctx.Done():
			return t.ctx.Err()
		}
	}
}

func (t *Task) progress(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed += n
	if t.state == StateResumed {
		t.emitLocked(EventProgress)
	}
}

func (t *Task) rewind(pos int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = pos
}
