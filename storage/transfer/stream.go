package transfer

import (
	"context"

	channels "github.com/finch-technologies/storage-manager/channel"
)

// Events streams the task's events until the terminal event, after which the channel is
// closed. Cancelling ctx stops the stream early. A task that already finished yields
// only its terminal event.
//
// Progress events are dropped when the reader is not keeping up. State changes are always
// delivered and hold up the task's other observers until they are read, so a reader that
// stops early must cancel ctx.
func (t *Task) Events(ctx context.Context, buffer ...int) <-chan Event {
	sctx, stop := context.WithCancel(ctx)
	sc := channels.New[Event](sctx, buffer...)

	t.ObserveAll(func(ev Event) {
		if ev.Type == EventProgress {
			sc.TryWrite(ev)
			return
		}

		// Writes fail fast once the stream is closed.
		if err := sc.Write(ev); err != nil {
			return
		}
		if ev.Type.isTerminal() {
			stop()
		}
	})

	return sc.Read()
}
