package broadcast

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisSink publishes events on a pub/sub channel so other instances can
// forward them to their own realtime clients.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) Deliver(ctx context.Context, event Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

// Relay forwards events published by other instances into a local sink.
// Events carrying the local origin are skipped; they were already delivered.
type Relay struct {
	client  redis.UniversalClient
	channel string
	origin  string
	target  Sink
	logger  logrus.FieldLogger
}

func NewRelay(client redis.UniversalClient, channel, origin string, target Sink, logger logrus.FieldLogger) *Relay {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Relay{client: client, channel: channel, origin: origin, target: target, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis subscribe")
	}
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Relay) handle(ctx context.Context, data []byte) {
	event, err := DecodeEvent(data)
	if err != nil {
		r.logger.WithError(err).Warn("relay skipped malformed event")
		return
	}
	if event.Origin == r.origin {
		return
	}
	if err := r.target.Deliver(ctx, event); err != nil {
		r.logger.WithError(err).WithField("channel", event.Channel).Warn("relay delivery failed")
	}
}
