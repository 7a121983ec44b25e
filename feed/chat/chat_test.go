package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-playground/assert/v2"
)

// a minimal stand-in for the chat backend: auth echo then message echo
func chatTestServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_, authBytes, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var auth envelope
		if err := json.Unmarshal(authBytes, &auth); err != nil {
			return
		}
		if auth.Type != "auth" || auth.Auth == nil || auth.Auth.Token == "" {
			ws.WriteJSON(&envelope{Type: "auth_error"})
			return
		}
		ws.WriteJSON(&envelope{Type: "auth_ok"})

		for {
			var frame envelope
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			switch frame.Type {
			case "ping":
				ws.WriteJSON(&envelope{Type: "pong"})
			case "message":
				frame.Message.Id = "m1"
				frame.Message.CreatedAt = time.Now()
				ws.WriteJSON(&frame)
			}
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func waitForConnected(t *testing.T, client *Client) {
	for i := 0; i < 100; i += 1 {
		if client.Connected() {
			return
		}
		update := client.ConnectChannel()
		if client.Connected() {
			return
		}
		select {
		case <-update:
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("chat client did not connect")
}

func TestChatSendReceive(t *testing.T) {
	server := chatTestServer(t)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClientWithDefaults(cancelCtx, server.URL, &ChatAuth{
		UserId: "u1",
		Token:  "tok",
	})
	defer client.Close()

	waitForConnected(t, client)

	received := make(chan *Message, 1)
	channel := client.Channel("messaging", "c1")
	unsub := channel.AddMessageCallback(func(message *Message) {
		received <- message
	})
	defer unsub()

	assert.Equal(t, channel.Send("hello"), nil)

	select {
	case message := <-received:
		assert.Equal(t, message.ChannelId, "c1")
		assert.Equal(t, message.UserId, "u1")
		assert.Equal(t, message.Text, "hello")
		assert.Equal(t, message.Id, "m1")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestChatChannelFilter(t *testing.T) {
	server := chatTestServer(t)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClientWithDefaults(cancelCtx, server.URL, &ChatAuth{
		UserId: "u1",
		Token:  "tok",
	})
	defer client.Close()

	waitForConnected(t, client)

	c1Messages := make(chan *Message, 2)
	unsub := client.Channel("messaging", "c1").AddMessageCallback(func(message *Message) {
		c1Messages <- message
	})
	defer unsub()

	// a message on another channel is not delivered to the c1 callback
	assert.Equal(t, client.Channel("messaging", "c2").Send("elsewhere"), nil)
	assert.Equal(t, client.Channel("messaging", "c1").Send("here"), nil)

	select {
	case message := <-c1Messages:
		assert.Equal(t, message.ChannelId, "c1")
		assert.Equal(t, message.Text, "here")
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestChatAuthRejected(t *testing.T) {
	server := chatTestServer(t)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// empty token is rejected by the backend
	client := NewClientWithDefaults(cancelCtx, server.URL, &ChatAuth{
		UserId: "u1",
	})
	defer client.Close()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, client.Connected(), false)
}
