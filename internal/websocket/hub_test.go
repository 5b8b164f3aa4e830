package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, hub *Hub, userID int64) *websocket.Conn {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, userID)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.IsConnected(userID) }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_DuelNotifications(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	conn := dial(t, hub, 7)

	hub.DuelStarted(7, 100)
	hub.DuelStarted(8, 100) // 연결 없음, 버려짐
	hub.DuelFinished(7, 100)

	for _, expected := range []string{MessageDuelStarted, MessageDuelFinished} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type    string      `json:"type"`
			Payload DuelMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, expected, msg.Type)
		assert.Equal(t, int64(100), msg.Payload.DuelID)
	}
}

func TestHub_ReplacesConnection(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	first := dial(t, hub, 7)
	_ = dial(t, hub, 7)

	// 이전 연결은 서버가 닫는다
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
	assert.True(t, hub.IsConnected(7))
}
