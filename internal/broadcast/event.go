package broadcast

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	TypeSnapshot     = "queue.snapshot"
	TypeStatistics   = "queue.statistics"
	TypeEntryUpdated = "queue.entry.updated"
	TypeEntryRemoved = "queue.entry.removed"
)

const (
	ChannelQueue      = "queue"
	ChannelStatistics = "statistics"
	ChannelRemoved    = "removed"
)

func EntryChannel(entryID string) string {
	return "entry:" + entryID
}

// Event is the envelope written to every sink and to realtime clients.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Origin    string          `json:"origin,omitempty"`
}

type removedPayload struct {
	ID string `json:"id"`
}

func NewEvent(eventType, channel string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errors.Wrapf(err, "encode %s payload", eventType)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Channel:   channel,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func SnapshotEvent(snapshot any) (Event, error) {
	return NewEvent(TypeSnapshot, ChannelQueue, snapshot)
}

func StatisticsEvent(stats any) (Event, error) {
	return NewEvent(TypeStatistics, ChannelStatistics, stats)
}

func EntryUpdatedEvent(entryID string, entry any) (Event, error) {
	return NewEvent(TypeEntryUpdated, EntryChannel(entryID), entry)
}

func EntryRemovedEvent(entryID string) (Event, error) {
	return NewEvent(TypeEntryRemoved, ChannelRemoved, removedPayload{ID: entryID})
}

func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encode event")
	}
	return data, nil
}

func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, errors.Wrap(err, "decode event")
	}
	if event.Type == "" || event.Channel == "" {
		return Event{}, errors.New("event without type or channel")
	}
	return event, nil
}
