package models

// Status is a connection's announced presence.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusTyping  Status = "typing"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the known presence values.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusTyping, StatusOffline:
		return true
	}
	return false
}
