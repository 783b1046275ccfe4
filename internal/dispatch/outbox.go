// internal/dispatch/outbox.go
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Sink receives events after the state change they describe has been applied.
// Deliver must not call back into the dispatcher.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

const (
	DefaultOutboxSize = 1024
	deliverTimeout    = 3 * time.Second
	drainTimeout      = 5 * time.Second
)

// lane is one sink's private queue. A slow sink only ever backs up its own lane.
type lane struct {
	sink    Sink
	queue   chan Event
	dropped atomic.Uint64
}

// Outbox decouples state changes from delivery. Every sink gets its own
// queue and goroutine; each sink sees events in publish order.
type Outbox struct {
	lanes   []*lane
	log     *logrus.Entry
	stopped chan struct{}
	once    sync.Once
}

// NewOutbox creates an outbox with room for size pending events per sink.
func NewOutbox(size int, log *logrus.Entry, sinks ...Sink) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	o := &Outbox{log: log, stopped: make(chan struct{})}
	for _, s := range sinks {
		o.lanes = append(o.lanes, &lane{sink: s, queue: make(chan Event, size)})
	}
	return o
}

// Publish queues ev for every sink and never blocks: callers hold a room
// lane. A sink whose queue is full loses the event.
func (o *Outbox) Publish(ev Event) {
	select {
	case <-o.stopped:
		o.log.Warnf("Outbox stopped, dropping %s for room %s", ev.Kind(), ev.Room())
		return
	default:
	}
	for _, l := range o.lanes {
		select {
		case l.queue <- ev:
		default:
			l.dropped.Add(1)
			o.log.WithFields(logrus.Fields{
				"sink": l.sink.Name(),
				"room": ev.Room(),
				"kind": ev.Kind(),
			}).Warn("Sink queue full, event dropped")
		}
	}
}

// Dropped reports how many events the named sink lost to a full queue.
func (o *Outbox) Dropped(sink string) uint64 {
	for _, l := range o.lanes {
		if l.sink.Name() == sink {
			return l.dropped.Load()
		}
	}
	return 0
}

// Run delivers queued events until ctx is cancelled, then drains what each
// lane still holds within a bounded time.
func (o *Outbox) Run(ctx context.Context) error {
	defer o.once.Do(func() { close(o.stopped) })
	go func() {
		<-ctx.Done()
		o.once.Do(func() { close(o.stopped) })
	}()
	if len(o.lanes) == 0 {
		<-ctx.Done()
		return nil
	}
	var g errgroup.Group
	for _, l := range o.lanes {
		g.Go(func() error {
			o.runLane(ctx, l)
			return nil
		})
	}
	return g.Wait()
}

func (o *Outbox) runLane(ctx context.Context, l *lane) {
	for {
		select {
		case ev := <-l.queue:
			o.deliver(context.Background(), l.sink, ev)
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			for {
				select {
				case ev := <-l.queue:
					o.deliver(dctx, l.sink, ev)
				default:
					return
				}
			}
		}
	}
}

func (o *Outbox) deliver(ctx context.Context, s Sink, ev Event) {
	dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := s.Deliver(dctx, ev); err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"sink": s.Name(),
			"room": ev.Room(),
			"kind": ev.Kind(),
		}).Warn("Event delivery failed")
	}
}
