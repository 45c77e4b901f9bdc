// Package relay turns inbound chat events into outbound deliveries. It owns
// the per-connection transports and leans on the registry for membership.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-relay/internal/metrics"
	"chat-relay/internal/models"
	"chat-relay/internal/registry"

	"github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog"
)

// ErrNotInitialized is returned by Broadcast before Start has been called.
var ErrNotInitialized = errors.New("relay not initialized")

// Sender is one connection's outbound transport. Send must be safe for
// concurrent use; the websocket adapter serializes writes internally.
type Sender interface {
	Send(env models.Envelope) error
	Close() error
}

const welcomeText = "Welcome to the chat relay"

// Default rooms seeded on Start.
var defaultRooms = []models.Room{
	{ID: "general", Name: "General", Description: "Open chat for everyone"},
	{ID: "support", Name: "Support", Description: "Get help with the product"},
	{ID: "random", Name: "Random", Description: "Casual off-topic chat"},
}

// Relay fans events out to the right audience. Construct one per process
// with New, call Start before accepting connections, and inject it into the
// transport handlers.
type Relay struct {
	reg *registry.Registry
	log zerolog.Logger

	mu      sync.RWMutex
	senders map[string]Sender
	started bool

	msgSuffix func() string
}

func New(reg *registry.Registry, log zerolog.Logger) *Relay {
	suffix, err := nanoid.CustomASCII("0123456789abcdefghijklmnopqrstuvwxyz", 9)
	if err != nil {
		// Alphabet and length are constants; this cannot fail at runtime.
		panic(err)
	}
	return &Relay{
		reg:       reg,
		log:       log.With().Str("component", "relay").Logger(),
		senders:   make(map[string]Sender),
		msgSuffix: suffix,
	}
}

// Start marks the relay ready and seeds the default rooms.
func (r *Relay) Start() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	for _, room := range defaultRooms {
		r.reg.CreateRoom(room)
	}
	r.log.Info().Int("defaultRooms", len(defaultRooms)).Msg("relay started")
}

// Shutdown closes every connected transport and clears the relay. Safe to
// call more than once.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	senders := r.senders
	r.senders = make(map[string]Sender)
	r.started = false
	r.mu.Unlock()

	for id, s := range senders {
		if err := s.Close(); err != nil {
			r.log.Debug().Err(err).Str("connId", id).Msg("close on shutdown")
		}
		r.reg.Unregister(id)
	}
	r.log.Info().Int("closed", len(senders)).Msg("relay shut down")
}

// Connect registers a new connection and greets it. A duplicate id is
// treated as a reconnection race: the old entry is dropped and the new
// registration wins.
func (r *Relay) Connect(id string, sender Sender) {
	if _, err := r.reg.Register(id); err != nil {
		if errors.Is(err, registry.ErrDuplicateConnection) {
			r.log.Warn().Str("connId", id).Msg("duplicate registration, replacing existing entry")
			r.Disconnect(id)
			if _, err := r.reg.Register(id); err != nil {
				r.log.Error().Err(err).Str("connId", id).Msg("re-register after duplicate")
				return
			}
		} else {
			r.log.Error().Err(err).Str("connId", id).Msg("register")
			return
		}
	}

	r.mu.Lock()
	r.senders[id] = sender
	r.mu.Unlock()

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	r.log.Info().Str("connId", id).Msg("client connected")

	r.deliver(id, models.NameWelcome, models.Welcome{
		Message:   welcomeText,
		Server:    "chat-relay",
		Timestamp: now(),
	})
}

// Disconnect removes the connection from the registry and drops its
// transport. Idempotent; shutdown races call this twice.
func (r *Relay) Disconnect(id string) {
	r.mu.Lock()
	sender, existed := r.senders[id]
	delete(r.senders, id)
	r.mu.Unlock()

	r.reg.Unregister(id)
	if !existed {
		return
	}
	_ = sender.Close()
	metrics.ConnectionsActive.Dec()
	r.log.Info().Str("connId", id).Msg("client disconnected")
}

// Broadcast injects a server-initiated announcement to every connection.
// This is the administrative side-channel; it fails when the relay has not
// been started yet so callers can report "not initialized" instead of
// silently dropping the announcement.
func (r *Relay) Broadcast(payload map[string]any) error {
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if !started {
		return ErrNotInitialized
	}

	if payload == nil {
		payload = make(map[string]any)
	}
	payload["timestamp"] = now()
	payload["source"] = "server"

	r.fanout(r.connectionIDs(), "", models.NameServerBroadcast, payload)
	metrics.AdminBroadcasts.Inc()
	return nil
}

// Stats reports live connection and room counts.
func (r *Relay) Stats() (connections, rooms int) {
	return r.reg.Count(), len(r.reg.Rooms())
}

func (r *Relay) connectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.senders))
	for id := range r.senders {
		ids = append(ids, id)
	}
	return ids
}

// fanout delivers one event to every id in the audience except exclude.
// A failed write is logged and skipped; the read loop notices the broken
// transport and runs the disconnect path.
func (r *Relay) fanout(audience []string, exclude, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("marshal outbound payload")
		return
	}
	env := models.Envelope{Event: event, Data: data}

	for _, id := range audience {
		if id == exclude {
			continue
		}
		r.mu.RLock()
		sender, ok := r.senders[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if err := sender.Send(env); err != nil {
			r.log.Warn().Err(err).Str("connId", id).Str("event", event).Msg("delivery failed")
			continue
		}
		metrics.Deliveries.WithLabelValues(event).Inc()
	}
}

// deliver sends one event to a single connection.
func (r *Relay) deliver(id, event string, payload any) {
	r.fanout([]string{id}, "", event, payload)
}

func (r *Relay) newMessageID() string {
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), r.msgSuffix())
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
