package events

import (
	"time"

	"github.com/finch-technologies/storage-manager/storage/transfer"
)

// TransferEvent is the message published for every transfer state change.
type TransferEvent struct {
	TaskId    string    `json:"taskId"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	Event     string    `json:"event"`
	State     string    `json:"state"`
	Completed int64     `json:"completed"`
	Total     int64     `json:"total"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func FromTransferEvent(ev transfer.Event) TransferEvent {
	msg := TransferEvent{
		TaskId:    ev.ID,
		Kind:      string(ev.Kind),
		Path:      ev.Path,
		Event:     string(ev.Type),
		State:     ev.State.String(),
		Completed: ev.Completed,
		Total:     ev.Total,
		Timestamp: time.Now().UTC(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}
