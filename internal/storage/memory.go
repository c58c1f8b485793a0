package storage

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/pkg/log"
)

// MemoryStore is the in-memory ReservationStore. It lives for the whole
// process; nothing is persisted.
type MemoryStore struct {
	logger *slog.Logger
	clock  domain.Clock

	mu     sync.RWMutex
	rooms  map[string][]*domain.Reservation
	lastID int64

	locks roomLocks
}

// 确保 MemoryStore 实现 ReservationStore 接口
var _ ReservationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store stamping created_at from clock.
func NewMemoryStore(clock domain.Clock) *MemoryStore {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &MemoryStore{
		logger: log.Logger("storage"),
		clock:  clock,
		rooms:  make(map[string][]*domain.Reservation),
	}
}

// Insert implements ReservationStore.
func (s *MemoryStore) Insert(roomID, title string, start, end time.Time) domain.Reservation {
	s.mu.Lock()
	s.lastID++
	res := &domain.Reservation{
		ID:        s.lastID,
		RoomID:    roomID,
		Title:     title,
		StartTime: start,
		EndTime:   end,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.rooms[roomID] = append(s.rooms[roomID], res)
	s.mu.Unlock()

	s.logger.Debug("inserted", "room_id", roomID, "id", res.ID)
	return *res
}

// ListForResource implements ReservationStore.
func (s *MemoryStore) ListForResource(roomID string) []domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// indexing a missing key must not create it
	held := s.rooms[roomID]
	out := make([]domain.Reservation, 0, len(held))
	for _, res := range held {
		out = append(out, *res)
	}
	return out
}

// Get implements ReservationStore.
func (s *MemoryStore) Get(roomID string, id int64) (domain.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, res := range s.rooms[roomID] {
		if res.ID == id {
			return *res, true
		}
	}
	return domain.Reservation{}, false
}

// Delete implements ReservationStore.
func (s *MemoryStore) Delete(roomID string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.rooms[roomID]
	if !ok {
		return false
	}

	idx := slices.IndexFunc(held, func(res *domain.Reservation) bool { return res.ID == id })
	if idx == -1 {
		return false
	}

	held = slices.Delete(held, idx, idx+1)
	if len(held) == 0 {
		delete(s.rooms, roomID)
	} else {
		s.rooms[roomID] = held
	}

	s.logger.Debug("deleted", "room_id", roomID, "id", id)
	return true
}

// LockResource implements ReservationStore.
func (s *MemoryStore) LockResource(roomID string) func() {
	return s.locks.lock(roomID)
}

// Stats implements ReservationStore.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Rooms: len(s.rooms), LastID: s.lastID}
	for _, held := range s.rooms {
		stats.Reservations += len(held)
	}
	return stats
}
