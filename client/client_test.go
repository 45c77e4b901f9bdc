package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionHandlesAreIndependent(t *testing.T) {
	c := New("ws://unused")

	calls := 0
	handler := func(json.RawMessage) { calls++ }

	// The same function registered twice yields two subscriptions.
	sub1 := c.On(models.NameChatMessage, handler)
	sub2 := c.On(models.NameChatMessage, handler)

	c.dispatch(models.NameChatMessage, nil)
	assert.Equal(t, 2, calls)

	// Removing one handle leaves the other active.
	c.Off(sub1)
	c.dispatch(models.NameChatMessage, nil)
	assert.Equal(t, 3, calls)

	// Removing it again is a no-op.
	c.Off(sub1)
	c.Off(sub2)
	c.dispatch(models.NameChatMessage, nil)
	assert.Equal(t, 3, calls)
}

func TestDispatchOnlyMatchingEvent(t *testing.T) {
	c := New("ws://unused")

	var got []string
	c.On(models.NameUserTyping, func(json.RawMessage) { got = append(got, "typing") })
	c.On(models.NameChatMessage, func(json.RawMessage) { got = append(got, "chat") })

	c.dispatch(models.NameChatMessage, nil)
	assert.Equal(t, []string{"chat"}, got)
}

func TestEmitWithoutSession(t *testing.T) {
	c := New("ws://localhost:1/ws")

	assert.ErrorIs(t, c.SendMessage("alice", "hi", ""), ErrNotConnected)
	assert.ErrorIs(t, c.UpdateStatus(models.StatusAway), ErrNotConnected)
	assert.ErrorIs(t, c.JoinRoom("general"), ErrNotConnected)
	assert.ErrorIs(t, c.LeaveRoom("general"), ErrNotConnected)
	assert.ErrorIs(t, c.SetTyping("general", true), ErrNotConnected)
	assert.ErrorIs(t, c.CreateRoom("My Room", ""), ErrNotConnected)
	assert.False(t, c.Connected())
}

func TestDialReceiveAndEmit(t *testing.T) {
	upgrader := websocket.Upgrader{}
	inbound := make(chan models.Envelope, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		data, _ := json.Marshal(models.Welcome{Message: "hello", Server: "test", Timestamp: "now"})
		require.NoError(t, conn.WriteJSON(models.Envelope{Event: models.NameWelcome, Data: data}))

		var env models.Envelope
		if err := conn.ReadJSON(&env); err == nil {
			inbound <- env
		}
	}))
	defer srv.Close()

	c := New("ws" + strings.TrimPrefix(srv.URL, "http"))

	connected := make(chan struct{}, 1)
	welcome := make(chan models.Welcome, 1)
	c.On(EventConnect, func(json.RawMessage) { connected <- struct{}{} })
	c.On(models.NameWelcome, func(data json.RawMessage) {
		var w models.Welcome
		if err := json.Unmarshal(data, &w); err == nil {
			welcome <- w
		}
	})

	require.NoError(t, c.Dial())
	defer c.Close()
	assert.True(t, c.Connected())

	select {
	case <-connected:
	default:
		t.Fatal("connect event not fired during Dial")
	}

	select {
	case w := <-welcome:
		assert.Equal(t, "hello", w.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("welcome not received")
	}

	require.NoError(t, c.JoinRoom("general"))

	select {
	case env := <-inbound:
		assert.Equal(t, models.NameRoomJoin, env.Event)
		var join models.RoomJoinIn
		require.NoError(t, json.Unmarshal(env.Data, &join))
		assert.Equal(t, "general", join.Room)
	case <-time.After(2 * time.Second):
		t.Fatal("emitted event not received by server")
	}
}

func TestDisconnectEventOnServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := New("ws" + strings.TrimPrefix(srv.URL, "http"))
	disconnected := make(chan struct{}, 1)
	c.On(EventDisconnect, func(json.RawMessage) { disconnected <- struct{}{} })

	require.NoError(t, c.Dial())

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect event not fired")
	}
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.JoinRoom("general"), ErrNotConnected)
}
