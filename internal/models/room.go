package models

import "strings"

// Room is broadcast-scope metadata. Rooms are never deleted; a room with no
// members keeps its metadata.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty"`
}

// RoomInfo is a read view of a room for HTTP listings.
type RoomInfo struct {
	Room
	MemberCount int `json:"memberCount"`
}

// NormalizeRoomID derives a room id from a human name: lowercase, whitespace
// collapsed to "-", anything outside [a-z0-9-] stripped. Returns "" when
// nothing survives; callers treat that as malformed.
func NormalizeRoomID(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			pendingDash = b.Len() > 0
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			if pendingDash {
				b.WriteByte('-')
				pendingDash = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
