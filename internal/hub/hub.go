package hub

import (
	"encoding/json"
	"expvar"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	clientsGauge  = expvar.NewInt("hub_clients")
	droppedToSlow = expvar.NewInt("hub_dropped_total")
)

// Subscription is the set of channels a client listens to. An empty set
// receives every channel.
type Subscription struct {
	Channels map[string]struct{}
}

func (s Subscription) Matches(channel string) bool {
	if len(s.Channels) == 0 {
		return true
	}
	_, ok := s.Channels[channel]
	return ok
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  logrus.FieldLogger
}

type SubscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

func New(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	clientsGauge.Set(int64(len(h.clients)))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	clientsGauge.Set(int64(len(h.clients)))
}

// Apply updates the client's channel set from a subscribe or unsubscribe
// message. Unsubscribing without a channel clears the set.
func (h *Hub) Apply(client *Client, msg SubscribeMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	channels := make(map[string]struct{}, len(client.Subscription.Channels)+1)
	for channel := range client.Subscription.Channels {
		channels[channel] = struct{}{}
	}
	switch msg.Action {
	case "subscribe":
		channels[msg.Channel] = struct{}{}
	case "unsubscribe":
		if msg.Channel == "" {
			channels = nil
		} else {
			delete(channels, msg.Channel)
		}
	}
	client.Subscription = Subscription{Channels: channels}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast hands payload to every matching client without blocking. A client
// whose buffer is full misses the message.
func (h *Hub) Broadcast(payload []byte, channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.clients {
		if !client.Subscription.Matches(channel) {
			continue
		}
		select {
		case client.Send <- payload:
			delivered++
		default:
			droppedToSlow.Add(1)
			h.logger.WithFields(logrus.Fields{"client_id": client.ID, "channel": channel}).Warn("drop message for slow client")
		}
	}
	return delivered
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	msg.Channel = strings.TrimSpace(msg.Channel)
	if msg.Action == "subscribe" && !validChannel(msg.Channel) {
		return SubscribeMessage{}, false
	}
	return msg, true
}

func validChannel(channel string) bool {
	switch channel {
	case "queue", "statistics", "removed":
		return true
	}
	id, ok := strings.CutPrefix(channel, "entry:")
	return ok && id != ""
}
