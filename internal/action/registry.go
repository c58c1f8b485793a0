package action

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/internal/storage"
	"github.com/Zereker/reservation/pkg/log"
)

// Reservations 统一的预约操作入口
type Reservations struct {
	logger *slog.Logger
	store  storage.ReservationStore
	clock  domain.Clock
	events *EventPublisher
	chain  *domain.AdmissionChain
}

// Option configures Reservations.
type Option func(*Reservations)

// WithClock overrides the clock used by the pastness check.
func WithClock(clock domain.Clock) Option {
	return func(r *Reservations) {
		r.clock = clock
	}
}

// WithEvents enables event publishing.
func WithEvents(events *EventPublisher) Option {
	return func(r *Reservations) {
		r.events = events
	}
}

// NewReservations creates the admission service over store.
func NewReservations(store storage.ReservationStore, opts ...Option) *Reservations {
	r := &Reservations{
		logger: log.Logger("reservations"),
		store:  store,
		clock:  domain.SystemClock,
	}
	for _, opt := range opts {
		opt(r)
	}

	// 顺序即校验优先级
	r.chain = domain.NewAdmissionChain()
	r.chain.Use(NewIntervalAction())
	r.chain.Use(NewFutureStartAction(r.clock))
	r.chain.Use(NewConflictAction(store))
	r.chain.Use(NewCommitAction(store))
	r.chain.Use(NewPublishAction(r.events))

	return r
}

// Create admits req or reports why it was rejected.
func (r *Reservations) Create(ctx context.Context, req domain.CreateRequest) (domain.Reservation, error) {
	r.logger.Info("create",
		"room_id", req.RoomID,
		"start_time", req.StartTime,
		"end_time", req.EndTime,
	)

	c := domain.NewAdmitContext(ctx, req)
	r.chain.Run(c)

	res, err := c.Result()
	if err != nil {
		r.logger.Info("create rejected",
			"room_id", req.RoomID,
			"code", domain.ErrorCode(err),
			"error", err,
		)
		return domain.Reservation{}, err
	}

	r.logger.Info("create completed", "room_id", res.RoomID, "id", res.ID)

	return res, nil
}

// List returns the room's reservations in creation order.
func (r *Reservations) List(ctx context.Context, roomID string) []domain.Reservation {
	return r.store.ListForResource(roomID)
}

// Get returns a single reservation.
func (r *Reservations) Get(ctx context.Context, roomID string, id int64) (domain.Reservation, error) {
	res, ok := r.store.Get(roomID, id)
	if !ok {
		return domain.Reservation{}, errors.WithMessagef(domain.ErrNotFound, "room %s reservation %d", roomID, id)
	}
	return res, nil
}

// Cancel removes a reservation. Never-created and already-cancelled
// reservations both yield ErrNotFound.
func (r *Reservations) Cancel(ctx context.Context, roomID string, id int64) error {
	r.logger.Info("cancel", "room_id", roomID, "id", id)

	unlock := r.store.LockResource(roomID)
	defer unlock()

	res, found := r.store.Get(roomID, id)
	if !found || !r.store.Delete(roomID, id) {
		return errors.WithMessagef(domain.ErrNotFound, "room %s reservation %d", roomID, id)
	}

	// 持锁发布，同一房间的事件顺序与提交顺序一致
	r.events.Publish(domain.EventCancelled, res)
	return nil
}

// Stats reports store counters.
func (r *Reservations) Stats() storage.Stats {
	return r.store.Stats()
}

// Steps lists the admission steps in order.
func (r *Reservations) Steps() []string {
	return r.chain.Names()
}
