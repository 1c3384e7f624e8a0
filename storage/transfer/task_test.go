package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(testTimeout):
		t.Fatalf("task did not finish, state %s", task.State())
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
	}{
		{StateCreated, "created", false},
		{StateResumed, "resumed", false},
		{StatePaused, "paused", false},
		{StateSucceeded, "succeeded", true},
		{StateFailed, "failed", true},
		{StateCancelled, "cancelled", true},
		{State(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.state.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.state.String())
			}
			if tt.state.IsTerminal() != tt.terminal {
				t.Errorf("expected terminal %v", tt.terminal)
			}
		})
	}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected State
		event    EventType
	}{
		{name: "success", err: nil, expected: StateSucceeded, event: EventSucceeded},
		{name: "failure", err: errors.New("boom"), expected: StateFailed, event: EventFailed},
		{name: "context cancelled", err: context.Canceled, expected: StateCancelled, event: EventCancelled},
		{name: "transfer cancelled", err: ErrCancelled, expected: StateCancelled, event: EventCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, ctl := New(context.Background(), KindUpload, "a/b")
			log := &eventLog{}
			task.ObserveAll(log.add)

			ctl.Start()
			if got := ctl.Finish(tt.err); got != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
			waitDone(t, task)

			want := []EventType{EventResumed, tt.event}
			if got := log.types(); !equalTypes(got, want) {
				t.Errorf("expected events %v, got %v", want, got)
			}

			// a second Finish keeps the first outcome
			if got := ctl.Finish(errors.New("late")); got != tt.expected {
				t.Errorf("terminal state changed to %s", got)
			}
			if ctl.Context().Err() == nil {
				t.Error("expected the task context to be cancelled after the terminal event")
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	task, ctl := New(context.Background(), KindDownload, "x")

	if task.Pause() {
		t.Error("a created task cannot be paused")
	}
	if task.Resume() {
		t.Error("a created task cannot be resumed")
	}

	ctl.Start()
	if task.State() != StateResumed {
		t.Fatalf("expected resumed, got %s", task.State())
	}
	ctl.Start()

	if !task.Pause() || task.State() != StatePaused {
		t.Fatal("expected pause")
	}
	if task.Pause() {
		t.Error("pausing twice must be a no-op")
	}
	if !task.Resume() || task.State() != StateResumed {
		t.Fatal("expected resume")
	}

	if !task.Cancel() {
		t.Fatal("expected cancel")
	}
	waitDone(t, task)

	snap := task.Snapshot()
	if snap.State != StateCancelled || !errors.Is(snap.Err, ErrCancelled) {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if task.Resume() || task.Pause() || task.Cancel() {
		t.Error("no transitions out of a terminal state")
	}
	if ctl.Finish(nil) != StateCancelled {
		t.Error("finish must not override cancellation")
	}
}

func TestCancelBeforeStart(t *testing.T) {
	task, ctl := New(context.Background(), KindUpload, "x")

	var failed, cancelled int
	var mu sync.Mutex
	task.OnFailed(func(error) { mu.Lock(); failed++; mu.Unlock() })
	task.OnCancelled(func(Snapshot) { mu.Lock(); cancelled++; mu.Unlock() })

	task.Cancel()
	ctl.Start()

	if task.State() != StateCancelled {
		t.Fatalf("start must not leave a terminal state, got %s", task.State())
	}

	if _, err := ctl.Reader(bytes.NewReader([]byte("abc"))).Read(make([]byte, 3)); err == nil {
		t.Error("expected reads of a cancelled task to fail")
	}

	waitDone(t, task)

	mu.Lock()
	defer mu.Unlock()
	if failed != 0 || cancelled != 1 {
		t.Errorf("expected one cancelled event and no failure, got %d/%d", cancelled, failed)
	}
}

func TestMeteredReader(t *testing.T) {
	task, ctl := New(context.Background(), KindUpload, "x")
	data := bytes.Repeat([]byte("a"), 1000)
	ctl.SetTotal(int64(len(data)))

	var (
		mu       sync.Mutex
		progress [][2]int64
	)
	task.OnProgress(func(completed, total int64) {
		mu.Lock()
		progress = append(progress, [2]int64{completed, total})
		mu.Unlock()
	})

	ctl.Start()

	r := ctl.Reader(bytes.NewReader(data))
	seeker, ok := r.(io.Seeker)
	if !ok {
		t.Fatal("expected a seekable reader for a seekable source")
	}

	buf := make([]byte, 100)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if task.Snapshot().Completed != 100 {
		t.Errorf("expected 100 completed, got %d", task.Snapshot().Completed)
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if task.Snapshot().Completed != 0 {
		t.Errorf("expected rewind to reset progress, got %d", task.Snapshot().Completed)
	}

	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	if s := task.Snapshot(); s.Completed != 1000 || s.Fraction() != 1 {
		t.Errorf("expected complete transfer, got %d (%v)", s.Completed, s.Fraction())
	}

	ctl.Finish(nil)
	waitDone(t, task)

	mu.Lock()
	defer mu.Unlock()
	if len(progress) == 0 {
		t.Fatal("expected progress events")
	}
	if last := progress[len(progress)-1]; last != [2]int64{1000, 1000} {
		t.Errorf("expected last progress 1000/1000, got %v", last)
	}
}

func TestMeteredWriterBlocksWhilePaused(t *testing.T) {
	task, ctl := New(context.Background(), KindDownload, "x")
	ctl.Start()
	task.Pause()

	var out bytes.Buffer
	w := ctl.Writer(&out)

	written := make(chan error, 1)
	go func() {
		_, err := w.Write([]byte("hello"))
		written <- err
	}()

	select {
	case <-written:
		t.Fatal("write must block while paused")
	case <-time.After(50 * time.Millisecond):
	}

	task.Resume()

	select {
	case err := <-written:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("write did not resume")
	}

	if out.String() != "hello" {
		t.Errorf("expected hello, got %q", out.String())
	}
}

func TestCancelUnblocksPausedWriter(t *testing.T) {
	task, ctl := New(context.Background(), KindDownload, "x")
	ctl.Start()
	task.Pause()

	written := make(chan error, 1)
	go func() {
		_, err := ctl.Writer(io.Discard).Write([]byte("x"))
		written <- err
	}()

	task.Cancel()

	select {
	case err := <-written:
		if err == nil {
			t.Error("expected an error after cancel")
		}
	case <-time.After(testTimeout):
		t.Fatal("cancel did not unblock the writer")
	}
}

func TestObservers(t *testing.T) {
	task, ctl := New(context.Background(), KindUpload, "x")

	all := &eventLog{}
	removed := &eventLog{}
	task.ObserveAll(all.add)
	handle := task.ObserveAll(removed.add)
	task.RemoveObserver(handle)

	succeeded := make(chan Snapshot, 1)
	task.OnSucceeded(func(s Snapshot) { succeeded <- s })

	ctl.Start()
	task.Pause()
	task.Resume()
	ctl.Finish(nil)
	waitDone(t, task)

	want := []EventType{EventResumed, EventPaused, EventResumed, EventSucceeded}
	if got := all.types(); !equalTypes(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := removed.types(); len(got) != 0 {
		t.Errorf("removed observer received %v", got)
	}

	select {
	case s := <-succeeded:
		if s.State != StateSucceeded || s.Kind != KindUpload || s.Path != "x" || s.ID != task.ID() {
			t.Errorf("unexpected snapshot %+v", s)
		}
	default:
		t.Error("succeeded observer was not called before done")
	}

	late := make(chan Event, 1)
	task.Observe(EventFailed, func(ev Event) { late <- ev })
	select {
	case ev := <-late:
		t.Errorf("observer for a different terminal type received %v", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventsStream(t *testing.T) {
	task, ctl := New(context.Background(), KindUpload, "x")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	stream := task.Events(ctx, 16)

	ctl.Start()
	task.Pause()
	task.Resume()
	ctl.Finish(errors.New("broken pipe"))

	var got []EventType
	for ev := range stream {
		got = append(got, ev.Type)
		if ev.Type == EventFailed && ev.Err == nil {
			t.Error("failed event must carry the error")
		}
	}

	want := []EventType{EventResumed, EventPaused, EventResumed, EventFailed}
	if !equalTypes(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// a finished task replays only the terminal event
	var replay []EventType
	for ev := range task.Events(ctx) {
		replay = append(replay, ev.Type)
	}
	if !equalTypes(replay, []EventType{EventFailed}) {
		t.Errorf("expected terminal replay, got %v", replay)
	}
}

func TestEventsStreamDropsProgressForSlowReader(t *testing.T) {
	task, ctl := New(context.Background(), KindDownload, "x")

	succeeded := make(chan struct{})
	task.OnSucceeded(func(Snapshot) { close(succeeded) })

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	stream := task.Events(ctx)

	ctl.Start()
	if ev := <-stream; ev.Type != EventResumed {
		t.Fatalf("expected resumed first, got %s", ev.Type)
	}

	w := ctl.Writer(io.Discard)
	for range 100 {
		if _, err := w.Write([]byte("x")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	ctl.Finish(nil)

	select {
	case <-succeeded:
	case <-time.After(testTimeout):
		t.Fatal("an unread stream stalled the other observers")
	}

	var last Event
	for ev := range stream {
		last = ev
	}
	if last.Type != EventSucceeded {
		t.Errorf("expected the stream to end with succeeded, got %s", last.Type)
	}
	waitDone(t, task)
}
