package booking

import (
	"context"

	"github.com/avelsk/counselling-booking/internal/model"
)

// Store is the transactional storage collaborator of the engine. The
// MySQL implementation lives in internal/repository; tests provide an
// in-memory double.
type Store interface {
	// InSessionTx runs fn inside a transaction that holds the exclusive
	// lock for the given session. Acquiring the lock is the first
	// operation of the transaction, strictly before any capacity read,
	// so two admissions for the same session are fully serialized.
	// If fn returns an error every write made inside it is rolled back
	// and the error is propagated; otherwise the transaction commits.
	// It returns ErrSessionNotFound when the session does not exist.
	InSessionTx(ctx context.Context, sessionID uint64, fn func(tx Tx, sess *model.Session) error) error
}

// Tx is the locked, transaction-scoped view of a single session's
// bookings. All methods read and write only rows of the locked session.
type Tx interface {
	// SumConfirmedSeats returns the sum of seats_requested over all
	// CONFIRMED bookings of the session. This is the authoritative
	// used-capacity value; it is recomputed, never cached.
	SumConfirmedSeats(ctx context.Context, sessionID uint64) (uint32, error)

	// InsertBooking persists a new booking with its already-computed
	// status and fills in the generated ID and timestamps.
	InsertBooking(ctx context.Context, b *model.Booking) error

	// PendingBookings returns every PENDING booking of the session, in
	// no particular order. The engine establishes the resolution order.
	PendingBookings(ctx context.Context, sessionID uint64) ([]model.Booking, error)

	// SetStatus transitions one booking to the given status.
	SetStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error
}
