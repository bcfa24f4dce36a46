package broadcast

import (
	"context"

	"qms/walkin-service/internal/hub"
)

// HubSink writes events to the realtime clients connected to this process.
type HubSink struct {
	hub *hub.Hub
}

func NewHubSink(h *hub.Hub) *HubSink {
	return &HubSink{hub: h}
}

func (s *HubSink) Name() string {
	return "hub"
}

func (s *HubSink) Deliver(ctx context.Context, event Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}
	s.hub.Broadcast(data, event.Channel)
	return nil
}
