// Package storage holds the authoritative collection of reservations.
package storage

import (
	"time"

	"github.com/Zereker/reservation/internal/domain"
)

// ReservationStore defines the interval store used by admission.
// Every method returns copies; callers never hold references into the store.
type ReservationStore interface {
	// Insert allocates the next id, stamps created_at and appends the
	// reservation to its room. It performs no validation.
	Insert(roomID, title string, start, end time.Time) domain.Reservation

	// ListForResource returns the room's reservations in insertion order.
	// An unknown room yields an empty slice.
	ListForResource(roomID string) []domain.Reservation

	// Get looks up a single reservation.
	Get(roomID string, id int64) (domain.Reservation, bool)

	// Delete removes a reservation and reports whether one was removed.
	Delete(roomID string, id int64) bool

	// LockResource enters the room's critical section. The returned func
	// leaves it and must be called exactly once.
	LockResource(roomID string) (unlock func())

	// Stats reports store-wide counters.
	Stats() Stats
}

// Stats summarizes the store contents.
type Stats struct {
	Rooms        int   `json:"rooms"`
	Reservations int   `json:"reservations"`
	LastID       int64 `json:"last_id"`
}
