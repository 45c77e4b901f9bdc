package relay

import (
	"encoding/json"

	"chat-relay/internal/metrics"
	"chat-relay/internal/models"
)

// HandleEvent processes one inbound frame from the given connection. Events
// from a single connection arrive in transport order, so dispatch is FIFO
// per connection. A malformed frame is dropped with a warning; a panicking
// handler is recovered here so one bad event can never take the relay down.
func (r *Relay) HandleEvent(senderID string, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.EventsDropped.WithLabelValues("handler_panic").Inc()
			r.log.Error().Interface("panic", rec).Str("connId", senderID).Msg("event handler panicked")
		}
	}()

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.dropMalformed(senderID, "envelope", "not valid JSON")
		return
	}

	kind := models.ParseEventKind(env.Event)
	if kind == models.EventUnknown {
		metrics.EventsDropped.WithLabelValues("unknown_event").Inc()
		r.log.Warn().Str("connId", senderID).Str("event", env.Event).Msg("unknown event")
		return
	}
	metrics.EventsReceived.WithLabelValues(env.Event).Inc()

	// Every observed event counts as activity.
	r.reg.Touch(senderID)

	switch kind {
	case models.EventChatMessage:
		r.handleChatMessage(senderID, env.Data)
	case models.EventUserStatus:
		r.handleUserStatus(senderID, env.Data)
	case models.EventRoomJoin:
		r.handleRoomJoin(senderID, env.Data)
	case models.EventRoomLeave:
		r.handleRoomLeave(senderID, env.Data)
	case models.EventUserTyping:
		r.handleUserTyping(senderID, env.Data)
	case models.EventRoomCreate:
		r.handleRoomCreate(senderID, env.Data)
	case models.EventUnknown:
		// Handled above; kept so the switch stays exhaustive.
	}
}

// handleChatMessage assigns id and timestamp, then delivers to the whole
// server when no room is given, or to the room's current members (sender
// included) otherwise. An unknown room is an empty audience, not an error.
func (r *Relay) handleChatMessage(senderID string, data json.RawMessage) {
	var in models.ChatMessageIn
	if err := json.Unmarshal(data, &in); err != nil || in.Text == "" {
		r.dropMalformed(senderID, models.NameChatMessage, "missing text")
		return
	}
	if in.User == "" {
		in.User = "Anonymous"
	}

	msg := models.Message{
		ID:        r.newMessageID(),
		Text:      in.Text,
		User:      in.User,
		AuthorID:  senderID,
		Room:      in.Room,
		ReplyTo:   in.ReplyTo,
		Timestamp: now(),
	}

	audience := r.connectionIDs()
	if in.Room != "" {
		audience = r.reg.MembersOf(in.Room)
	}
	r.fanout(audience, "", models.NameChatMessage, msg)
}

func (r *Relay) handleUserStatus(senderID string, data json.RawMessage) {
	var in models.UserStatusIn
	if err := json.Unmarshal(data, &in); err != nil || !in.Status.Valid() {
		r.dropMalformed(senderID, models.NameUserStatus, "missing or invalid status")
		return
	}

	r.reg.SetStatus(senderID, in.Status)
	r.fanout(r.connectionIDs(), senderID, models.NameUserStatus, models.UserStatusOut{
		UserID:    senderID,
		Status:    in.Status,
		Timestamp: now(),
	})
}

func (r *Relay) handleRoomJoin(senderID string, data json.RawMessage) {
	var in models.RoomJoinIn
	if err := json.Unmarshal(data, &in); err != nil || in.Room == "" {
		r.dropMalformed(senderID, models.NameRoomJoin, "missing room")
		return
	}

	r.reg.JoinRoom(senderID, in.Room)
	r.log.Debug().Str("connId", senderID).Str("room", in.Room).Msg("joined room")
	r.fanout(r.reg.MembersOf(in.Room), senderID, models.NameRoomUserJoined, models.RoomPresenceOut{
		UserID:    senderID,
		Room:      in.Room,
		Timestamp: now(),
	})
}

func (r *Relay) handleRoomLeave(senderID string, data json.RawMessage) {
	var in models.RoomLeaveIn
	if err := json.Unmarshal(data, &in); err != nil || in.Room == "" {
		r.dropMalformed(senderID, models.NameRoomLeave, "missing room")
		return
	}

	r.reg.LeaveRoom(senderID, in.Room)
	r.log.Debug().Str("connId", senderID).Str("room", in.Room).Msg("left room")
	r.fanout(r.reg.MembersOf(in.Room), senderID, models.NameRoomUserLeft, models.RoomPresenceOut{
		UserID:    senderID,
		Room:      in.Room,
		Timestamp: now(),
	})
}

func (r *Relay) handleUserTyping(senderID string, data json.RawMessage) {
	var in models.UserTypingIn
	if err := json.Unmarshal(data, &in); err != nil || in.Room == "" {
		r.dropMalformed(senderID, models.NameUserTyping, "missing room")
		return
	}

	// Activity only; typing does not change announced status.
	r.fanout(r.reg.MembersOf(in.Room), senderID, models.NameUserTyping, models.UserTypingOut{
		UserID:    senderID,
		Room:      in.Room,
		IsTyping:  in.IsTyping,
		Timestamp: now(),
	})
}

// handleRoomCreate registers room metadata under the normalized id and
// announces it to everyone. Creating an existing id replaces its metadata
// (last create wins); clients tolerate duplicate room:created notifications.
func (r *Relay) handleRoomCreate(senderID string, data json.RawMessage) {
	var in models.RoomCreateIn
	if err := json.Unmarshal(data, &in); err != nil || in.Name == "" {
		r.dropMalformed(senderID, models.NameRoomCreate, "missing name")
		return
	}

	source := in.ID
	if source == "" {
		source = in.Name
	}
	roomID := models.NormalizeRoomID(source)
	if roomID == "" {
		r.dropMalformed(senderID, models.NameRoomCreate, "name normalizes to empty id")
		return
	}

	meta := models.Room{
		ID:          roomID,
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   senderID,
	}
	created := r.reg.CreateRoom(meta)
	r.log.Info().Str("connId", senderID).Str("room", roomID).Bool("created", created).Msg("room create")

	r.fanout(r.connectionIDs(), "", models.NameRoomCreated, models.RoomCreatedOut{
		Room:      meta,
		Timestamp: now(),
	})
}

func (r *Relay) dropMalformed(senderID, event, reason string) {
	metrics.EventsDropped.WithLabelValues("malformed").Inc()
	r.log.Warn().Str("connId", senderID).Str("event", event).Str("reason", reason).Msg("dropped malformed event")
}
