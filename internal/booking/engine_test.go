package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelsk/counselling-booking/internal/model"
)

func input(sessionID uint64, seats uint32, prio model.PriorityLevel) CreateBookingInput {
	return CreateBookingInput{
		SessionID: sessionID,
		UserName:  "Test User",
		UserEmail: "user@example.com",
		Seats:     seats,
		Priority:  prio,
	}
}

// assertLegalHistory checks that a booking's committed status sequence
// never leaves a terminal state and transitions at most once:
// [PENDING], [CONFIRMED], [FAILED], [PENDING CONFIRMED] or
// [PENDING FAILED] are the only legal shapes.
func assertLegalHistory(t *testing.T, id uint64, hist []model.BookingStatus) {
	t.Helper()
	require.NotEmpty(t, hist, "booking %d has no recorded status", id)
	for i, st := range hist {
		if i == 0 {
			continue
		}
		prev := hist[i-1]
		assert.True(t, prev == model.BookingPending,
			"booking %d transitioned out of terminal status %s (history %v)", id, prev, hist)
		assert.True(t, st.Terminal(),
			"booking %d transitioned %s -> %s (history %v)", id, prev, st, hist)
	}
	assert.LessOrEqual(t, len(hist), 2, "booking %d changed status more than once: %v", id, hist)
}

func TestAdmitConfirmsWhenSeatsFit(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)

	b, promoted, err := eng.AdmitAndResolve(context.Background(), input(1, 3, ""))
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.PriorityNormal, b.Priority, "empty priority defaults to normal")
	assert.Empty(t, promoted)
	assert.Equal(t, uint32(3), store.confirmedSeats(1))
}

func TestAdmitQueuesWhenSeatsDoNotFit(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)
	ctx := context.Background()

	a, _, err := eng.AdmitAndResolve(ctx, input(1, 3, model.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, a.Status)

	// Only 2 seats remain; a request for 3 queues rather than failing,
	// and must not shrink to fit partially.
	b, promoted, err := eng.AdmitAndResolve(ctx, input(1, 3, model.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Empty(t, promoted)
	assert.Equal(t, uint32(3), store.confirmedSeats(1), "pending bookings hold no seats")
}

func TestAdmitEmergencyQueuesWhenFull(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)
	ctx := context.Background()

	a, _, err := eng.AdmitAndResolve(ctx, input(1, 5, model.PriorityNormal))
	require.NoError(t, err)
	require.Equal(t, model.BookingConfirmed, a.Status)

	// Priority influences backlog order only; it cannot displace an
	// already confirmed booking.
	b, _, err := eng.AdmitAndResolve(ctx, input(1, 1, model.PriorityEmergency))
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.BookingConfirmed, store.get(a.ID).Status)
}

func TestAdmitValidation(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)
	ctx := context.Background()

	_, _, err := eng.AdmitAndResolve(ctx, input(1, 0, model.PriorityNormal))
	assert.ErrorIs(t, err, ErrInvalidSeatCount)

	_, _, err = eng.AdmitAndResolve(ctx, input(1, 1, "critical"))
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, _, err = eng.AdmitAndResolve(ctx, input(99, 1, model.PriorityNormal))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Equal(t, 0, store.count(), "rejected requests persist nothing")
}

func TestAdmitUppercasePriorityAccepted(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)

	b, _, err := eng.AdmitAndResolve(context.Background(), input(1, 1, "EMERGENCY"))
	require.NoError(t, err)
	assert.Equal(t, model.PriorityEmergency, b.Priority)
}

func TestResolvePriorityBeatsArrivalOrder(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 4)
	store.seedBooking(1, 2, model.PriorityNormal, model.BookingConfirmed)
	older := store.seedBooking(1, 2, model.PriorityNormal, model.BookingPending)
	newer := store.seedBooking(1, 2, model.PriorityEmergency, model.BookingPending)
	eng := NewEngine(store)

	promoted, err := eng.Resolve(context.Background(), 1)
	require.NoError(t, err)

	// Two seats are free. The emergency booking wins them despite
	// arriving later; the older normal booking fails.
	require.Len(t, promoted, 1)
	assert.Equal(t, newer.ID, promoted[0].ID)
	assert.Equal(t, model.BookingConfirmed, store.get(newer.ID).Status)
	assert.Equal(t, model.BookingFailed, store.get(older.ID).Status)
	assert.Equal(t, uint32(4), store.confirmedSeats(1))
}

func TestResolveFIFOWithinSamePriority(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 3)
	store.seedBooking(1, 1, model.PriorityNormal, model.BookingConfirmed)
	first := store.seedBooking(1, 2, model.PriorityNormal, model.BookingPending)
	second := store.seedBooking(1, 2, model.PriorityNormal, model.BookingPending)
	eng := NewEngine(store)

	promoted, err := eng.Resolve(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, promoted, 1)
	assert.Equal(t, first.ID, promoted[0].ID)
	assert.Equal(t, model.BookingConfirmed, store.get(first.ID).Status)
	assert.Equal(t, model.BookingFailed, store.get(second.ID).Status)
}

func TestResolveVisitsEveryPending(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	store.seedBooking(1, 3, model.PriorityNormal, model.BookingConfirmed)
	big := store.seedBooking(1, 4, model.PriorityEmergency, model.BookingPending)
	small := store.seedBooking(1, 2, model.PriorityNormal, model.BookingPending)
	eng := NewEngine(store)

	promoted, err := eng.Resolve(context.Background(), 1)
	require.NoError(t, err)

	// The emergency booking does not fit, but it must not block the
	// smaller booking ranked after it.
	require.Len(t, promoted, 1)
	assert.Equal(t, small.ID, promoted[0].ID)
	assert.Equal(t, model.BookingFailed, store.get(big.ID).Status)
	assert.Equal(t, model.BookingConfirmed, store.get(small.ID).Status)
	assert.Equal(t, uint32(5), store.confirmedSeats(1))
}

func TestResolveIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 4)
	store.seedBooking(1, 2, model.PriorityNormal, model.BookingConfirmed)
	store.seedBooking(1, 2, model.PriorityNormal, model.BookingPending)
	store.seedBooking(1, 1, model.PriorityNormal, model.BookingPending)
	eng := NewEngine(store)
	ctx := context.Background()

	_, err := eng.Resolve(ctx, 1)
	require.NoError(t, err)
	writesAfterFirst := store.setStatusCalls

	promoted, err := eng.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, promoted)
	assert.Equal(t, writesAfterFirst, store.setStatusCalls,
		"a pass over a settled backlog must write nothing")
}

func TestAdmitTriggersBacklogResolution(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)
	ctx := context.Background()

	a, _, err := eng.AdmitAndResolve(ctx, input(1, 3, model.PriorityNormal))
	require.NoError(t, err)
	require.Equal(t, model.BookingConfirmed, a.Status)

	b, _, err := eng.AdmitAndResolve(ctx, input(1, 3, model.PriorityNormal))
	require.NoError(t, err)
	require.Equal(t, model.BookingPending, b.Status)

	// C fits directly and its confirmation triggers a pass that settles
	// B, which can no longer fit.
	c, promoted, err := eng.AdmitAndResolve(ctx, input(1, 1, model.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, c.Status)
	assert.Empty(t, promoted)
	assert.Equal(t, model.BookingFailed, store.get(b.ID).Status)
}

func TestAdmitRollsBackOnStorageFailure(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	eng := NewEngine(store)
	ctx := context.Background()

	a, _, err := eng.AdmitAndResolve(ctx, input(1, 3, model.PriorityNormal))
	require.NoError(t, err)
	_, _, err = eng.AdmitAndResolve(ctx, input(1, 3, model.PriorityNormal))
	require.NoError(t, err)
	before := store.count()

	// The next admission confirms and then hits an error while settling
	// the backlog. The whole transaction must vanish: neither the new
	// booking nor any backlog decision may survive.
	store.failOnSetStatus = true
	_, _, err = eng.AdmitAndResolve(ctx, input(1, 1, model.PriorityNormal))
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, before, store.count())
	assert.Equal(t, uint32(3), store.confirmedSeats(1))
	assert.Equal(t, model.BookingConfirmed, store.get(a.ID).Status)
}

func TestAdmitRollsBackOnInsertFailure(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 5)
	store.failOnInsert = true
	eng := NewEngine(store)

	_, _, err := eng.AdmitAndResolve(context.Background(), input(1, 2, model.PriorityNormal))
	require.Error(t, err)
	assert.Equal(t, 0, store.count())
}

func TestConcurrentAdmissionsNeverOversell(t *testing.T) {
	store := newMemStore()
	store.addSession(1, 10)
	eng := NewEngine(store)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(i)))
			in := input(1, uint32(1+rnd.Intn(3)), model.PriorityNormal)
			if i%7 == 0 {
				in.Priority = model.PriorityUrgent
			}
			in.UserEmail = fmt.Sprintf("user%d@example.com", i)
			_, _, err := eng.AdmitAndResolve(context.Background(), in)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.confirmedSeats(1), uint32(10))
	assert.Equal(t, workers, store.count(), "every request persists exactly one booking")

	store.mu.Lock()
	defer store.mu.Unlock()
	for id, hist := range store.history {
		assertLegalHistory(t, id, hist)
	}
}

func TestSortBacklogOrdering(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	pending := []model.Booking{
		{ID: 4, Priority: model.PriorityNormal, CreatedAt: t0},
		{ID: 3, Priority: model.PriorityNormal, CreatedAt: t0}, // same instant: id breaks the tie
		{ID: 2, Priority: model.PriorityUrgent, CreatedAt: t0.Add(time.Minute)},
		{ID: 1, Priority: model.PriorityEmergency, CreatedAt: t0.Add(2 * time.Minute)},
	}
	sortBacklog(pending)

	var got []uint64
	for _, b := range pending {
		got = append(got, b.ID)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, got)
}

func TestResolveUnknownSessionFails(t *testing.T) {
	eng := NewEngine(newMemStore())
	_, err := eng.Resolve(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
