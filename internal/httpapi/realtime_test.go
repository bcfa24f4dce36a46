package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"qms/walkin-service/internal/hub"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketFeedHonoursSubscription(t *testing.T) {
	h := hub.New(nil)
	server := httptest.NewServer(NewHandler(fakeQueue{}, Options{Hub: h, Logger: logrus.New()}).Routes())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","channel":"statistics"}`)))
	// the subscription is applied asynchronously by the read loop
	require.Eventually(t, func() bool {
		return h.Broadcast([]byte("probe"), "queue") == 0
	}, time.Second, 10*time.Millisecond)

	h.Broadcast([]byte(`{"type":"queue.statistics"}`), "statistics")

	// probes delivered before the subscription landed arrive first
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var message []byte
	for {
		_, message, err = conn.ReadMessage()
		require.NoError(t, err)
		if string(message) != "probe" {
			break
		}
	}
	assert.JSONEq(t, `{"type":"queue.statistics"}`, string(message))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
