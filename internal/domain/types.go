package domain

import (
	"time"
)

// ============================================================================
// Reservation
// ============================================================================

// Reservation is an admitted booking of a room for the half-open interval
// [StartTime, EndTime). All instants are UTC.
type Reservation struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Overlaps reports whether [start, end) intersects the reservation with
// positive duration. Touching endpoints do not overlap.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return start.Before(r.EndTime) && r.StartTime.Before(end)
}

// CreateRequest is a candidate reservation as received from a transport.
type CreateRequest struct {
	RoomID    string    `json:"room_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ============================================================================
// Events
// ============================================================================

const (
	EventCreated   = "created"
	EventCancelled = "cancelled"
)

// Event is published after a reservation changes state.
type Event struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Reservation Reservation `json:"reservation"`
}

// ============================================================================
// Clock
// ============================================================================

// Clock supplies the current instant. Admission reads it on every call.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
