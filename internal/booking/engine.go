package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/avelsk/counselling-booking/internal/model"
)

// Engine performs admissions and backlog resolution on top of a Store.
// It owns no state of its own; every decision is computed from the
// bookings table inside a per-session exclusive lock, so concurrent
// admissions for the same session serialize and the confirmed seat sum
// can never exceed the session capacity.
type Engine struct {
	store Store
}

// NewEngine returns an Engine bound to the given store.
func NewEngine(store Store) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	return &Engine{store: store}
}

// CreateBookingInput carries the validated-at-the-edge attributes of a
// new booking request. Priority defaults to normal when empty.
type CreateBookingInput struct {
	SessionID uint64
	UserID    *uint64
	UserName  string
	UserEmail string
	Seats     uint32
	Priority  model.PriorityLevel
	MoodScore *uint8
	UserNote  *string
}

func (in *CreateBookingInput) validate() error {
	if in.Seats == 0 {
		return ErrInvalidSeatCount
	}
	if in.Priority == "" {
		in.Priority = model.PriorityNormal
	}
	in.Priority = model.PriorityLevel(strings.ToLower(string(in.Priority)))
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, in.Priority)
	}
	return nil
}

// AdmitAndResolve admits one booking request and, when the admission is
// CONFIRMED, re-resolves the session's pending backlog, all inside a
// single transaction holding the session lock. It returns the persisted
// booking and any backlog bookings promoted to CONFIRMED in the same
// pass. On any error no write survives.
//
// The admission rule: the booking is CONFIRMED iff its seat count fits
// into totalSeats minus the confirmed sum read under the lock; otherwise
// it is created PENDING. A booking is never created as FAILED.
func (e *Engine) AdmitAndResolve(ctx context.Context, in CreateBookingInput) (*model.Booking, []model.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	var created *model.Booking
	var promoted []model.Booking
	err := e.store.InSessionTx(ctx, in.SessionID, func(tx Tx, sess *model.Session) error {
		used, err := tx.SumConfirmedSeats(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("sum confirmed seats: %w", err)
		}
		status := model.BookingPending
		if int64(in.Seats) <= int64(sess.TotalSeats)-int64(used) {
			status = model.BookingConfirmed
		}
		b := &model.Booking{
			SessionID:      sess.ID,
			UserID:         in.UserID,
			UserName:       in.UserName,
			UserEmail:      in.UserEmail,
			SeatsRequested: in.Seats,
			Status:         status,
			Priority:       in.Priority,
			MoodScore:      in.MoodScore,
			UserNote:       in.UserNote,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		created = b
		// The backlog is re-checked after every confirmation, not only
		// when capacity is released: the confirmed sum is derived state
		// and each pass re-validates it from the table.
		if status == model.BookingConfirmed {
			promoted, err = e.resolveBacklog(ctx, tx, sess)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, promoted, nil
}

// Resolve runs one backlog resolution pass for the session inside its
// own transaction and lock. Admissions trigger resolution themselves;
// this entry point exists for reconciliation, e.g. after restoring a
// database backup. A pass over an already-settled backlog writes nothing.
func (e *Engine) Resolve(ctx context.Context, sessionID uint64) ([]model.Booking, error) {
	var promoted []model.Booking
	err := e.store.InSessionTx(ctx, sessionID, func(tx Tx, sess *model.Session) error {
		var err error
		promoted, err = e.resolveBacklog(ctx, tx, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// resolveBacklog visits every PENDING booking of the locked session
// exactly once, in priority order with created_at then id as tie-breaks,
// and writes an explicit terminal decision for each: CONFIRMED when the
// full seat count still fits, FAILED otherwise. A booking that does not
// fit never blocks the evaluation of the bookings ranked after it.
func (e *Engine) resolveBacklog(ctx context.Context, tx Tx, sess *model.Session) ([]model.Booking, error) {
	used, err := tx.SumConfirmedSeats(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("sum confirmed seats: %w", err)
	}
	pending, err := tx.PendingBookings(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load pending bookings: %w", err)
	}
	sortBacklog(pending)

	var promoted []model.Booking
	for i := range pending {
		p := &pending[i]
		if int64(used)+int64(p.SeatsRequested) <= int64(sess.TotalSeats) {
			if err := tx.SetStatus(ctx, p.ID, model.BookingConfirmed); err != nil {
				return nil, fmt.Errorf("confirm booking %d: %w", p.ID, err)
			}
			used += p.SeatsRequested
			p.Status = model.BookingConfirmed
			promoted = append(promoted, *p)
		} else {
			if err := tx.SetStatus(ctx, p.ID, model.BookingFailed); err != nil {
				return nil, fmt.Errorf("fail booking %d: %w", p.ID, err)
			}
		}
	}
	return promoted, nil
}

// sortBacklog orders pending bookings into the resolution order:
// priority rank ascending (emergency first), then created_at ascending,
// then id ascending. The id makes the order a strict total order even
// when two bookings share a timestamp.
func sortBacklog(pending []model.Booking) {
	sort.Slice(pending, func(i, j int) bool {
		a, b := &pending[i], &pending[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
