package models

import "encoding/json"

// EventKind enumerates every inbound event the relay understands.
// Dispatch is an exhaustive switch over this type rather than a map keyed
// by raw event-name strings.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventChatMessage
	EventUserStatus
	EventRoomJoin
	EventRoomLeave
	EventUserTyping
	EventRoomCreate
)

// Wire names of inbound and outbound events.
const (
	NameChatMessage     = "chat:message"
	NameUserStatus      = "user:status"
	NameRoomJoin        = "room:join"
	NameRoomLeave       = "room:leave"
	NameUserTyping      = "user:typing"
	NameRoomCreate      = "room:create"
	NameRoomCreated     = "room:created"
	NameRoomUserJoined  = "room:user-joined"
	NameRoomUserLeft    = "room:user-left"
	NameWelcome         = "welcome"
	NameServerBroadcast = "server:broadcast"
)

// ParseEventKind maps a wire event name to its kind. Unknown names map to
// EventUnknown; the relay drops those.
func ParseEventKind(name string) EventKind {
	switch name {
	case NameChatMessage:
		return EventChatMessage
	case NameUserStatus:
		return EventUserStatus
	case NameRoomJoin:
		return EventRoomJoin
	case NameRoomLeave:
		return EventRoomLeave
	case NameUserTyping:
		return EventUserTyping
	case NameRoomCreate:
		return EventRoomCreate
	default:
		return EventUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventChatMessage:
		return NameChatMessage
	case EventUserStatus:
		return NameUserStatus
	case EventRoomJoin:
		return NameRoomJoin
	case EventRoomLeave:
		return NameRoomLeave
	case EventUserTyping:
		return NameUserTyping
	case EventRoomCreate:
		return NameRoomCreate
	default:
		return "unknown"
	}
}

// Envelope is the framing for every event crossing the websocket, in both
// directions: a name plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. Required fields are validated by the relay; an event
// missing one is dropped.

type ChatMessageIn struct {
	Text    string `json:"text"`
	User    string `json:"user,omitempty"`
	Room    string `json:"room,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

type UserStatusIn struct {
	Status Status `json:"status"`
}

type RoomJoinIn struct {
	Room string `json:"room"`
}

type RoomLeaveIn struct {
	Room string `json:"room"`
}

type UserTypingIn struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

type RoomCreateIn struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Outbound payloads.

type Welcome struct {
	Message   string `json:"message"`
	Server    string `json:"server"`
	Timestamp string `json:"timestamp"`
}

type UserStatusOut struct {
	UserID    string `json:"userId"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
}

type RoomPresenceOut struct {
	UserID    string `json:"userId"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

type UserTypingOut struct {
	UserID    string `json:"userId"`
	Room      string `json:"room"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp string `json:"timestamp"`
}

type RoomCreatedOut struct {
	Room      Room   `json:"room"`
	Timestamp string `json:"timestamp"`
}
