package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/reservation/internal/domain"
)

var testNow = time.Date(2030, 1, 20, 8, 0, 0, 0, time.UTC)

func newTestStore() *MemoryStore {
	return NewMemoryStore(domain.ClockFunc(func() time.Time { return testNow }))
}

func hour(h int) time.Time {
	return testNow.Add(time.Duration(h) * time.Hour)
}

func TestMemoryStoreInsert(t *testing.T) {
	t.Run("assigns ids and stamps created_at", func(t *testing.T) {
		s := newTestStore()

		res := s.Insert("room-101", "Weekly Sync", hour(1), hour(2))

		assert.Equal(t, int64(1), res.ID)
		assert.Equal(t, "room-101", res.RoomID)
		assert.Equal(t, "Weekly Sync", res.Title)
		assert.Equal(t, hour(1), res.StartTime)
		assert.Equal(t, hour(2), res.EndTime)
		assert.Equal(t, testNow, res.CreatedAt)
	})

	t.Run("ids increase across rooms and deletions", func(t *testing.T) {
		s := newTestStore()

		a := s.Insert("room-a", "a", hour(1), hour(2))
		b := s.Insert("room-b", "b", hour(1), hour(2))
		require.True(t, s.Delete("room-b", b.ID))
		c := s.Insert("room-b", "c", hour(1), hour(2))
		d := s.Insert("room-a", "d", hour(3), hour(4))

		assert.Equal(t, []int64{1, 2, 3, 4}, []int64{a.ID, b.ID, c.ID, d.ID})
		assert.Equal(t, int64(4), s.Stats().LastID)
	})

	t.Run("does not validate", func(t *testing.T) {
		s := newTestStore()

		s.Insert("room-101", "first", hour(1), hour(3))
		s.Insert("room-101", "overlapping", hour(2), hour(4))

		assert.Len(t, s.ListForResource("room-101"), 2)
	})
}

func TestMemoryStoreList(t *testing.T) {
	t.Run("insertion order", func(t *testing.T) {
		s := newTestStore()

		s.Insert("room-101", "late", hour(5), hour(6))
		s.Insert("room-101", "early", hour(1), hour(2))
		s.Insert("room-202", "other", hour(1), hour(2))

		list := s.ListForResource("room-101")
		require.Len(t, list, 2)
		assert.Equal(t, "late", list[0].Title)
		assert.Equal(t, "early", list[1].Title)
	})

	t.Run("unknown room is empty and not created", func(t *testing.T) {
		s := newTestStore()

		list := s.ListForResource("nowhere")

		assert.NotNil(t, list)
		assert.Empty(t, list)
		assert.Equal(t, 0, s.Stats().Rooms)
		_, ok := s.rooms["nowhere"]
		assert.False(t, ok)
	})

	t.Run("returns copies", func(t *testing.T) {
		s := newTestStore()
		s.Insert("room-101", "original", hour(1), hour(2))

		list := s.ListForResource("room-101")
		list[0].Title = "mutated"

		assert.Equal(t, "original", s.ListForResource("room-101")[0].Title)
	})
}

func TestMemoryStoreGetDelete(t *testing.T) {
	s := newTestStore()
	first := s.Insert("room-101", "first", hour(1), hour(2))
	second := s.Insert("room-101", "second", hour(2), hour(3))
	third := s.Insert("room-101", "third", hour(3), hour(4))

	t.Run("get", func(t *testing.T) {
		got, ok := s.Get("room-101", second.ID)
		require.True(t, ok)
		assert.Equal(t, second, got)

		_, ok = s.Get("room-202", second.ID)
		assert.False(t, ok, "lookup is room scoped")

		_, ok = s.Get("room-101", 99)
		assert.False(t, ok)
	})

	t.Run("delete keeps order of the rest", func(t *testing.T) {
		assert.True(t, s.Delete("room-101", second.ID))

		list := s.ListForResource("room-101")
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, third.ID, list[1].ID)
	})

	t.Run("delete miss reports false", func(t *testing.T) {
		assert.False(t, s.Delete("room-101", second.ID))
		assert.False(t, s.Delete("room-404", first.ID))
		assert.False(t, s.Delete("room-202", first.ID))
	})

	t.Run("last delete drops the room", func(t *testing.T) {
		require.True(t, s.Delete("room-101", first.ID))
		require.True(t, s.Delete("room-101", third.ID))

		assert.Equal(t, Stats{Rooms: 0, Reservations: 0, LastID: 3}, s.Stats())
		assert.Empty(t, s.ListForResource("room-101"))
	})
}

func TestMemoryStoreStats(t *testing.T) {
	s := newTestStore()
	s.Insert("room-a", "1", hour(1), hour(2))
	s.Insert("room-a", "2", hour(2), hour(3))
	s.Insert("room-b", "3", hour(1), hour(2))

	assert.Equal(t, Stats{Rooms: 2, Reservations: 3, LastID: 3}, s.Stats())
}

func TestMemoryStoreConcurrentInsert(t *testing.T) {
	s := newTestStore()

	const n = 100
	ids := make(chan int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := "room-a"
			if i%2 == 0 {
				room = "room-b"
			}
			ids <- s.Insert(room, "x", hour(i), hour(i+1)).ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, int64(n), s.Stats().LastID)
}

func TestLockResource(t *testing.T) {
	t.Run("same room is exclusive", func(t *testing.T) {
		s := newTestStore()

		unlock := s.LockResource("room-101")

		acquired := make(chan struct{})
		go func() {
			release := s.LockResource("room-101")
			close(acquired)
			release()
		}()

		select {
		case <-acquired:
			t.Fatal("second holder entered while the room was locked")
		case <-time.After(50 * time.Millisecond):
		}

		unlock()

		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second holder never entered")
		}
	})

	t.Run("different rooms do not block", func(t *testing.T) {
		s := newTestStore()

		unlock := s.LockResource("room-101")
		defer unlock()

		done := make(chan struct{})
		go func() {
			release := s.LockResource("room-202")
			release()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("room-202 blocked behind room-101")
		}
	})

	t.Run("entries are released", func(t *testing.T) {
		s := newTestStore()

		unlock := s.LockResource("room-101")
		assert.Equal(t, 1, s.locks.size())

		unlock()
		unlock() // second call is a no-op
		assert.Equal(t, 0, s.locks.size())
	})
}
