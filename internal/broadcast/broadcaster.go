package broadcast

import (
	"context"
	"expvar"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	publishedTotal = expvar.NewInt("broadcast_published_total")
	droppedTotal   = expvar.NewInt("broadcast_dropped_total")
	failuresTotal  = expvar.NewInt("broadcast_failures_total")
)

// Outcome tells the publisher what happened to an event. It is never an
// error: a queue mutation stays successful whatever the broadcast does.
type Outcome int

const (
	// Queued means every sink accepted the event.
	Queued Outcome = iota
	// Partial means at least one sink was backed up and skipped it.
	Partial
	// Dropped means no sink took the event.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case Partial:
		return "partial"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// DeliveryFailure describes one sink that could not take an event.
type DeliveryFailure struct {
	Sink  string
	Event Event
	Err   error
	At    time.Time
}

// Sink is a destination for events: the local hub, Redis or Kafka.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

type Options struct {
	// Buffer is the queue length per sink.
	Buffer         int
	Origin         string
	DeliverTimeout time.Duration
	OnFailure      func(DeliveryFailure)
	Logger         logrus.FieldLogger
}

// lane is one sink with its own queue, so a stalled export never holds up
// the live hub feed.
type lane struct {
	sink   Sink
	events chan Event
}

// Broadcaster fans events out to its sinks, one background goroutine per sink.
type Broadcaster struct {
	lanes     []*lane
	origin    string
	timeout   time.Duration
	onFailure func(DeliveryFailure)
	logger    logrus.FieldLogger

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	done    chan struct{}
}

func New(options Options, sinks ...Sink) *Broadcaster {
	buffer := options.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	timeout := options.DeliverTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &Broadcaster{
		origin:    options.Origin,
		timeout:   timeout,
		onFailure: options.OnFailure,
		logger:    logger,
		done:      make(chan struct{}),
	}
	for _, sink := range sinks {
		l := &lane{sink: sink, events: make(chan Event, buffer)}
		b.lanes = append(b.lanes, l)
		b.workers.Add(1)
		go b.run(l)
	}
	go func() {
		b.workers.Wait()
		close(b.done)
	}()
	return b
}

func (b *Broadcaster) Origin() string {
	return b.origin
}

// Publish enqueues event on every sink and returns at once.
func (b *Broadcaster) Publish(event Event) Outcome {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		droppedTotal.Add(1)
		return Dropped
	}
	if event.Origin == "" {
		event.Origin = b.origin
	}
	accepted := 0
	for _, l := range b.lanes {
		select {
		case l.events <- event:
			accepted++
		default:
			droppedTotal.Add(1)
			b.logger.WithFields(logrus.Fields{
				"sink":    l.sink.Name(),
				"type":    event.Type,
				"channel": event.Channel,
			}).Warn("sink queue full, event dropped")
		}
	}
	switch {
	case accepted == len(b.lanes):
		publishedTotal.Add(1)
		return Queued
	case accepted == 0:
		return Dropped
	default:
		publishedTotal.Add(1)
		return Partial
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (b *Broadcaster) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, l := range b.lanes {
			close(l.events)
		}
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "drain broadcaster")
	}
}

func (b *Broadcaster) run(l *lane) {
	defer b.workers.Done()
	for event := range l.events {
		b.deliver(l.sink, event)
	}
}

func (b *Broadcaster) deliver(sink Sink, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	err := sink.Deliver(ctx, event)
	cancel()
	if err == nil {
		return
	}
	failuresTotal.Add(1)
	failure := DeliveryFailure{Sink: sink.Name(), Event: event, Err: err, At: time.Now().UTC()}
	b.logger.WithFields(logrus.Fields{
		"sink":    failure.Sink,
		"type":    event.Type,
		"channel": event.Channel,
	}).WithError(err).Warn("broadcast delivery failed")
	if b.onFailure != nil {
		b.onFailure(failure)
	}
}
