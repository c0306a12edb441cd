package models

import (
	"fmt"
	"strings"
)

// EventKind identifies whether a tool window was opened or closed
type EventKind string

// Event kind constants
const (
	EventOpened EventKind = "opened"
	EventClosed EventKind = "closed"
)

// TieRank orders kinds that share a timestamp: a close is always processed before an open.
func (k EventKind) TieRank() int {
	if k == EventClosed {
		return 0
	}
	return 1
}

// Valid reports whether k is one of the known event kinds
func (k EventKind) Valid() bool {
	return k == EventOpened || k == EventClosed
}

// ParseEventKind maps raw log values (open, opened, close, closed) onto an EventKind.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseEventKind(raw string) (EventKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "opened":
		return EventOpened, true
	case "close", "closed":
		return EventClosed, true
	default:
		return "", false
	}
}

// OpenType classifies how an interval began
type OpenType string

// Open type constants
const (
	OpenTypeNone   OpenType = ""
	OpenTypeManual OpenType = "manual"
	OpenTypeAuto   OpenType = "auto"
)

// OpenTypes returns the recognized open types in display order
func OpenTypes() []OpenType {
	return []OpenType{OpenTypeManual, OpenTypeAuto}
}

// ParseOpenType maps a raw value onto an OpenType. Unrecognized values yield OpenTypeNone.
func ParseOpenType(raw string) OpenType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "manual":
		return OpenTypeManual
	case "auto":
		return OpenTypeAuto
	default:
		return OpenTypeNone
	}
}

// Valid reports whether ot is manual or auto
func (ot OpenType) Valid() bool {
	return ot == OpenTypeManual || ot == OpenTypeAuto
}

// String returns the open type value, or "none" for OpenTypeNone
func (ot OpenType) String() string {
	if ot == OpenTypeNone {
		return "none"
	}
	return string(ot)
}

// Event is a single normalized tool window log entry.
// OpenType is only meaningful for EventOpened and is OpenTypeNone for EventClosed.
type Event struct {
	UserID    string    `json:"user_id"`
	Timestamp int64     `json:"timestamp"` // epoch milliseconds
	Kind      EventKind `json:"event"`
	OpenType  OpenType  `json:"open_type,omitempty"`
}

// NewOpened creates an opened event
func NewOpened(userID string, ts int64, ot OpenType) Event {
	return Event{UserID: userID, Timestamp: ts, Kind: EventOpened, OpenType: ot}
}

// NewClosed creates a closed event. Closed events never carry an open type.
func NewClosed(userID string, ts int64) Event {
	return Event{UserID: userID, Timestamp: ts, Kind: EventClosed, OpenType: OpenTypeNone}
}

// Less reports whether a sorts before b within one user's sequence,
// ordering by (timestamp, tie rank).
func Less(a, b Event) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Kind.TieRank() < b.Kind.TieRank()
}

// String returns a compact representation used in error messages
func (e Event) String() string {
	if e.Kind == EventOpened {
		return fmt.Sprintf("%s(t=%d, %s)", e.Kind, e.Timestamp, e.OpenType)
	}
	return fmt.Sprintf("%s(t=%d)", e.Kind, e.Timestamp)
}
