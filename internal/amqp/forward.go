package amqp

import (
	"context"

	"registro/internal/events"
	"registro/internal/log"
)

// Publisher sends change signals to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, collection string) error
}

// Forwarder relays bus signals to a Publisher from its own goroutine so that
// a slow broker never delays a mutation. Signals that arrive while the
// buffer is full are dropped with a warning.
type Forwarder struct {
	pub     Publisher
	logger  *log.Logger
	pending chan string
}

func NewForwarder(pub Publisher, buffer int, logger *log.Logger) *Forwarder {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = log.Default(log.ComponentAMQP)
	}
	return &Forwarder{
		pub:     pub,
		logger:  logger.WithComponent(log.ComponentAMQP),
		pending: make(chan string, buffer),
	}
}

// Attach subscribes the forwarder to every collection on bus.
func (f *Forwarder) Attach(bus *events.Bus) (detach func()) {
	return bus.Subscribe("", func(ev events.Changed) {
		select {
		case f.pending <- ev.Collection:
		default:
			f.logger.Warn("Change queue full, dropping signal", log.FieldCollection, ev.Collection)
		}
	})
}

// Run publishes queued signals until ctx is done.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case collection := <-f.pending:
			if err := f.pub.PublishChange(ctx, collection); err != nil {
				f.logger.ErrorContext(ctx, "Failed to publish change",
					log.FieldOperation, log.OpPublish,
					log.FieldCollection, collection,
					log.FieldError, err)
			}
		}
	}
}
