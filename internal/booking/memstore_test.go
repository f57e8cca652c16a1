package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avelsk/counselling-booking/internal/model"
)

var errInjected = errors.New("injected storage failure")

// memStore is an in-memory Store double. It serializes same-session
// work with a per-session mutex and rolls back all booking writes when
// the transaction callback fails, mirroring the MySQL store's contract.
// Rollback restores a whole-map snapshot, so failure-injection tests
// must not run concurrently with writes to other sessions.
type memStore struct {
	mu       sync.Mutex
	locks    map[uint64]*sync.Mutex
	sessions map[uint64]*model.Session
	bookings map[uint64]*model.Booking
	// history records every committed status a booking has held, in
	// order, so tests can assert the at-most-one-transition property.
	history map[uint64][]model.BookingStatus
	nextID  uint64
	now     time.Time

	failOnInsert    bool
	failOnSetStatus bool
	setStatusCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		locks:    make(map[uint64]*sync.Mutex),
		sessions: make(map[uint64]*model.Session),
		bookings: make(map[uint64]*model.Booking),
		history:  make(map[uint64][]model.BookingStatus),
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addSession(id uint64, totalSeats uint32) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &model.Session{ID: id, TherapistName: "Dr. Aline Verhoeven", StartsAt: s.now.Add(24 * time.Hour), TotalSeats: totalSeats}
	s.sessions[id] = sess
	return sess
}

// seedBooking inserts a booking directly, bypassing the engine. Each
// call advances the logical clock so creation timestamps are distinct
// and strictly ordered.
func (s *memStore) seedBooking(sessionID uint64, seats uint32, prio model.PriorityLevel, status model.BookingStatus) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.now = s.now.Add(time.Second)
	b := &model.Booking{
		ID:             s.nextID,
		SessionID:      sessionID,
		UserEmail:      "seed@example.com",
		SeatsRequested: seats,
		Status:         status,
		Priority:       prio,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	}
	s.bookings[b.ID] = b
	s.history[b.ID] = append(s.history[b.ID], status)
	return b
}

func (s *memStore) get(id uint64) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) confirmedSeats(sessionID uint64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum uint32
	for _, b := range s.bookings {
		if b.SessionID == sessionID && b.Status == model.BookingConfirmed {
			sum += b.SeatsRequested
		}
	}
	return sum
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *memStore) sessionLock(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *memStore) InSessionTx(ctx context.Context, sessionID uint64, fn func(tx Tx, sess *model.Session) error) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	sessCopy := *sess
	snapBookings := make(map[uint64]*model.Booking, len(s.bookings))
	for id, b := range s.bookings {
		cp := *b
		snapBookings[id] = &cp
	}
	snapHistory := make(map[uint64][]model.BookingStatus, len(s.history))
	for id, h := range s.history {
		snapHistory[id] = append([]model.BookingStatus(nil), h...)
	}
	s.mu.Unlock()

	if err := fn(&memTx{s: s}, &sessCopy); err != nil {
		s.mu.Lock()
		s.bookings = snapBookings
		s.history = snapHistory
		s.mu.Unlock()
		return err
	}
	return nil
}

type memTx struct {
	s *memStore
}

func (t *memTx) SumConfirmedSeats(ctx context.Context, sessionID uint64) (uint32, error) {
	return t.s.confirmedSeats(sessionID), nil
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.failOnInsert {
		return errInjected
	}
	t.s.nextID++
	t.s.now = t.s.now.Add(time.Second)
	b.ID = t.s.nextID
	b.CreatedAt = t.s.now
	b.UpdatedAt = t.s.now
	cp := *b
	t.s.bookings[b.ID] = &cp
	t.s.history[b.ID] = append(t.s.history[b.ID], b.Status)
	return nil
}

func (t *memTx) PendingBookings(ctx context.Context, sessionID uint64) ([]model.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	// Map iteration order is random, which doubles as a check that the
	// engine establishes the resolution order itself.
	var pending []model.Booking
	for _, b := range t.s.bookings {
		if b.SessionID == sessionID && b.Status == model.BookingPending {
			pending = append(pending, *b)
		}
	}
	return pending, nil
}

func (t *memTx) SetStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.setStatusCalls++
	if t.s.failOnSetStatus {
		return errInjected
	}
	b, ok := t.s.bookings[bookingID]
	if !ok {
		return errors.New("unknown booking id")
	}
	b.Status = status
	b.UpdatedAt = t.s.now
	t.s.history[bookingID] = append(t.s.history[bookingID], status)
	return nil
}
