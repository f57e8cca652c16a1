package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelsk/counselling-booking/internal/booking"
	"github.com/avelsk/counselling-booking/internal/model"
)

// Store adapts the MySQL repositories to the engine's booking.Store
// contract. One Store instance is shared by all requests; each
// InSessionTx call runs on its own transaction.
type Store struct {
	db       *sql.DB
	sessions *SessionRepo
	bookings *BookingRepo
}

// NewStore builds a Store over the shared DB handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		sessions: NewSessionRepo(db),
		bookings: NewBookingRepo(db),
	}
}

// InSessionTx opens a transaction, locks the session row with
// SELECT ... FOR UPDATE before any other read, runs fn and commits.
// Any error from fn or from the lock acquisition rolls the whole
// transaction back, so no partial admission or resolution write is
// ever visible to other transactions.
func (s *Store) InSessionTx(ctx context.Context, sessionID uint64, fn func(tx booking.Tx, sess *model.Session) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := s.sessions.GetForUpdateTx(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return booking.ErrSessionNotFound
		}
		return fmt.Errorf("lock session %d: %w", sessionID, err)
	}
	if err := fn(&storeTx{tx: tx, bookings: s.bookings}, sess); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// storeTx is the transaction-scoped view handed to the engine. It
// forwards to the booking repository using the open *sql.Tx.
type storeTx struct {
	tx       *sql.Tx
	bookings *BookingRepo
}

func (t *storeTx) SumConfirmedSeats(ctx context.Context, sessionID uint64) (uint32, error) {
	return t.bookings.SumConfirmedSeatsTx(ctx, t.tx, sessionID)
}

func (t *storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.bookings.CreateTx(ctx, t.tx, b)
}

func (t *storeTx) PendingBookings(ctx context.Context, sessionID uint64) ([]model.Booking, error) {
	return t.bookings.ListPendingForUpdateTx(ctx, t.tx, sessionID)
}

func (t *storeTx) SetStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error {
	return t.bookings.UpdateStatusTx(ctx, t.tx, bookingID, status)
}
