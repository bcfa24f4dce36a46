package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscribe(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
		want SubscribeMessage
	}{
		{"queue", `{"action":"subscribe","channel":"queue"}`, true, SubscribeMessage{Action: "subscribe", Channel: "queue"}},
		{"entry", `{"action":"subscribe","channel":" entry:abc "}`, true, SubscribeMessage{Action: "subscribe", Channel: "entry:abc"}},
		{"empty entry id", `{"action":"subscribe","channel":"entry:"}`, false, SubscribeMessage{}},
		{"unknown channel", `{"action":"subscribe","channel":"tickets"}`, false, SubscribeMessage{}},
		{"unsubscribe all", `{"action":"unsubscribe"}`, true, SubscribeMessage{Action: "unsubscribe"}},
		{"bad action", `{"action":"join","channel":"queue"}`, false, SubscribeMessage{}},
		{"not json", `hello`, false, SubscribeMessage{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseSubscribe([]byte(tc.raw))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBroadcastRespectsSubscriptions(t *testing.T) {
	h := New(nil)
	all := &Client{ID: "all", Send: make(chan []byte, 4)}
	stats := &Client{ID: "stats", Send: make(chan []byte, 4)}
	h.Register(all)
	h.Register(stats)
	h.Apply(stats, SubscribeMessage{Action: "subscribe", Channel: "statistics"})

	assert.Equal(t, 1, h.Broadcast([]byte("q"), "queue"))
	assert.Equal(t, 2, h.Broadcast([]byte("s"), "statistics"))

	require.Len(t, all.Send, 2)
	require.Len(t, stats.Send, 1)
	assert.Equal(t, "s", string(<-stats.Send))

	h.Apply(stats, SubscribeMessage{Action: "unsubscribe"})
	assert.Equal(t, 2, h.Broadcast([]byte("q2"), "queue"))
}

func TestBroadcastDropsForSlowClient(t *testing.T) {
	h := New(nil)
	slow := &Client{ID: "slow", Send: make(chan []byte, 1)}
	h.Register(slow)

	assert.Equal(t, 1, h.Broadcast([]byte("first"), "queue"))
	assert.Equal(t, 0, h.Broadcast([]byte("second"), "queue"))
	assert.Equal(t, "first", string(<-slow.Send))
}

func TestUnregisterClosesSendOnce(t *testing.T) {
	h := New(nil)
	client := &Client{ID: "c", Send: make(chan []byte, 1)}
	h.Register(client)
	assert.Equal(t, 1, h.ClientCount())

	h.Unregister(client)
	h.Unregister(client)
	assert.Equal(t, 0, h.ClientCount())
	_, open := <-client.Send
	assert.False(t, open)
}
