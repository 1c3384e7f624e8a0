package events

import (
	"context"
	"sync"
	"time"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/storage/transfer"
)

// Broker is the publishing side of a message broker.
type Broker interface {
	Publish(ctx context.Context, channel string, payload any) error
}

const (
	publishTimeout = 5 * time.Second
	// queueSize bounds the events waiting for the broker per task. Progress events may only
	// fill half of it; the rest is kept for state changes.
	queueSize = 64
)

// Publisher forwards transfer events to a broker channel. Each attached task gets its own
// worker, so a slow broker never holds up the task's other observers.
type Publisher struct {
	broker   Broker
	channel  string
	logger   log.LoggerInterface
	progress bool

	workers sync.WaitGroup
}

type PublisherOptions struct {
	// SkipProgress drops progress events and publishes only state changes.
	SkipProgress bool
	Logger       log.LoggerInterface
}

func NewPublisher(broker Broker, channel string, options ...PublisherOptions) *Publisher {
	p := &Publisher{
		broker:   broker,
		channel:  channel,
		logger:   log.Default(),
		progress: true,
	}

	if len(options) > 0 {
		opts := options[0]
		p.progress = !opts.SkipProgress
		if opts.Logger != nil {
			p.logger = opts.Logger
		}
	}

	return p
}

func (p *Publisher) Channel() string {
	return p.channel
}

// Attach publishes every event of task, in order. Publish failures are logged and
// otherwise ignored.
func (p *Publisher) Attach(task *transfer.Task) transfer.ObserverHandle {
	queue := make(chan TransferEvent, queueSize)

	p.workers.Add(1)
	go p.run(task, queue)

	return task.ObserveAll(func(ev transfer.Event) {
		if ev.Type != transfer.EventProgress {
			queue <- FromTransferEvent(ev)
			return
		}
		if !p.progress {
			return
		}

		if len(queue) >= queueSize/2 {
			p.logger.Debugf("dropping progress event for task %s, broker is behind", task.ID())
			return
		}
		queue <- FromTransferEvent(ev)
	})
}

// run publishes queued events until the task is done and the queue is drained.
func (p *Publisher) run(task *transfer.Task, queue <-chan TransferEvent) {
	defer p.workers.Done()

	for {
		select {
		case msg := <-queue:
			p.publish(msg)
		case <-task.Done():
			for {
				select {
				case msg := <-queue:
					p.publish(msg)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until every event of the finished attached tasks has been published.
func (p *Publisher) Wait() {
	p.workers.Wait()
}

func (p *Publisher) publish(msg TransferEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.broker.Publish(ctx, p.channel, msg); err != nil {
		p.logger.ErrorFields("failed to publish transfer event", map[string]any{
			"channel": p.channel,
			"taskId":  msg.TaskId,
			"event":   msg.Event,
			"error":   err.Error(),
		})
	}
}
