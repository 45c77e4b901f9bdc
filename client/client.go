// Package client is a Go client for the chat relay. It mirrors the surface
// the browser front end consumes: connect/disconnect notifications, named
// event subscriptions, and an emit helper per event type.
package client

import (
	"encoding/json"
	"errors"
	"sync"

	"chat-relay/internal/models"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by every emit helper when no session exists,
// so callers can surface "not connected" instead of dropping silently.
var ErrNotConnected = errors.New("not connected")

// Synthetic events fired by the client itself, delivered through the same
// subscription surface as server events.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Handler receives the raw JSON payload of one event.
type Handler func(data json.RawMessage)

// Subscription is the handle returned by On and accepted by Off. Handles
// are unique per call, so registering the same function twice yields two
// independent subscriptions and removing one leaves the other active.
type Subscription struct {
	event string
	id    uint64
}

// Client is one relay session. All methods are safe for concurrent use.
type Client struct {
	url string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	nextSub   uint64
	subs      map[string]map[uint64]Handler

	writeMu sync.Mutex
}

func New(url string) *Client {
	return &Client{
		url:  url,
		subs: make(map[string]map[uint64]Handler),
	}
}

// Dial establishes the websocket session and starts the read loop.
// Subscribers to EventConnect are notified before Dial returns.
func (c *Client) Dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.dispatch(EventConnect, nil)
	go c.readLoop(conn)
	return nil
}

// Close tears the session down. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Connected reports whether a live session exists.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// On subscribes a handler to a named event and returns its handle.
func (c *Client) On(event string, h Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	sub := Subscription{event: event, id: c.nextSub}
	if c.subs[event] == nil {
		c.subs[event] = make(map[uint64]Handler)
	}
	c.subs[event][sub.id] = h
	return sub
}

// Off removes one subscription. Unknown or already-removed handles are a
// no-op.
func (c *Client) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if handlers, ok := c.subs[sub.event]; ok {
		delete(handlers, sub.id)
	}
}

// Emit sends a named event with an arbitrary payload.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	// gorilla connections allow one concurrent writer.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(models.Envelope{Event: event, Data: data})
}

// SendMessage sends a chat message; room may be empty for a global
// broadcast.
func (c *Client) SendMessage(user, text, room string) error {
	return c.Emit(models.NameChatMessage, models.ChatMessageIn{Text: text, User: user, Room: room})
}

// UpdateStatus announces a new presence status.
func (c *Client) UpdateStatus(status models.Status) error {
	return c.Emit(models.NameUserStatus, models.UserStatusIn{Status: status})
}

// JoinRoom joins a room, creating it implicitly on the server if needed.
func (c *Client) JoinRoom(room string) error {
	return c.Emit(models.NameRoomJoin, models.RoomJoinIn{Room: room})
}

// LeaveRoom leaves a room.
func (c *Client) LeaveRoom(room string) error {
	return c.Emit(models.NameRoomLeave, models.RoomLeaveIn{Room: room})
}

// SetTyping reports a typing state to a room.
func (c *Client) SetTyping(room string, isTyping bool) error {
	return c.Emit(models.NameUserTyping, models.UserTypingIn{Room: room, IsTyping: isTyping})
}

// CreateRoom registers a new room; the server derives the id from the name.
func (c *Client) CreateRoom(name, description string) error {
	return c.Emit(models.NameRoomCreate, models.RoomCreateIn{Name: name, Description: description})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()
			c.dispatch(EventDisconnect, nil)
			return
		}
		c.dispatch(env.Event, env.Data)
	}
}

// dispatch calls every handler subscribed to event, exactly once per
// subscription handle.
func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[event]))
	for _, h := range c.subs[event] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}
