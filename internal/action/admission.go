package action

import (
	"github.com/pkg/errors"

	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/internal/storage"
)

// IntervalAction rejects candidates whose start is not strictly before end.
type IntervalAction struct{}

// NewIntervalAction creates an IntervalAction.
func NewIntervalAction() *IntervalAction {
	return &IntervalAction{}
}

func (a *IntervalAction) Name() string { return "interval" }

func (a *IntervalAction) Handle(c *domain.AdmitContext) {
	if !c.Request.StartTime.Before(c.Request.EndTime) {
		c.SetError(domain.ErrInvalidInterval)
	}
}

// FutureStartAction rejects candidates starting at or before the current
// instant. The clock is read on every call; near "now" the outcome is
// inherently racy.
type FutureStartAction struct {
	clock domain.Clock
}

// NewFutureStartAction creates a FutureStartAction reading clock.
func NewFutureStartAction(clock domain.Clock) *FutureStartAction {
	return &FutureStartAction{clock: clock}
}

func (a *FutureStartAction) Name() string { return "future_start" }

func (a *FutureStartAction) Handle(c *domain.AdmitContext) {
	c.Now = a.clock.Now()
	if !c.Request.StartTime.After(c.Now) {
		c.SetError(domain.ErrPastReservation)
	}
}

// ConflictAction enters the room's critical section, scans the existing
// reservations and runs the rest of the chain while still holding the lock.
type ConflictAction struct {
	store storage.ReservationStore
}

// NewConflictAction creates a ConflictAction over store.
func NewConflictAction(store storage.ReservationStore) *ConflictAction {
	return &ConflictAction{store: store}
}

func (a *ConflictAction) Name() string { return "conflict" }

func (a *ConflictAction) Handle(c *domain.AdmitContext) {
	if err := c.Err(); err != nil {
		c.SetError(err)
		return
	}

	unlock := a.store.LockResource(c.Request.RoomID)
	defer unlock()

	c.Existing = a.store.ListForResource(c.Request.RoomID)
	for i := range c.Existing {
		existing := c.Existing[i]
		if existing.Overlaps(c.Request.StartTime, c.Request.EndTime) {
			c.Conflict = &existing
			c.SetError(errors.WithMessagef(domain.ErrOverlapConflict, "conflicts with reservation %d", existing.ID))
			return
		}
	}

	c.Next()
}

// CommitAction stores the admitted candidate. It must run inside the
// critical section opened by ConflictAction.
type CommitAction struct {
	store storage.ReservationStore
}

// NewCommitAction creates a CommitAction over store.
func NewCommitAction(store storage.ReservationStore) *CommitAction {
	return &CommitAction{store: store}
}

func (a *CommitAction) Name() string { return "commit" }

func (a *CommitAction) Handle(c *domain.AdmitContext) {
	req := c.Request
	res := a.store.Insert(req.RoomID, req.Title, req.StartTime, req.EndTime)
	c.Reservation = &res
}

// PublishAction emits the created event. It runs inside the room's critical
// section, so events for one room leave in commit order.
type PublishAction struct {
	events *EventPublisher
}

// NewPublishAction creates a PublishAction. A nil publisher is a no-op.
func NewPublishAction(events *EventPublisher) *PublishAction {
	return &PublishAction{events: events}
}

func (a *PublishAction) Name() string { return "publish" }

func (a *PublishAction) Handle(c *domain.AdmitContext) {
	if c.Reservation != nil {
		a.events.Publish(domain.EventCreated, *c.Reservation)
	}
}
