package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avelsk/counselling-booking/internal/model"
)

// BookingRepo provides persistence for bookings. Methods with a Tx
// suffix execute inside a caller-owned transaction; the caller must
// commit or roll back. All status writes for a session happen inside
// the session's admission transaction, so the confirmed seat sum read
// there is always consistent with the rows it was derived from.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `id, session_id, user_id, user_name, user_email, seats_requested, status, priority_level, mood_score, user_note, created_at, updated_at`

func scanBooking(scan func(dest ...interface{}) error) (*model.Booking, error) {
	var b model.Booking
	var userID sql.NullInt64
	var mood sql.NullInt64
	var note sql.NullString
	err := scan(&b.ID, &b.SessionID, &userID, &b.UserName, &b.UserEmail, &b.SeatsRequested,
		&b.Status, &b.Priority, &mood, &note, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		b.UserID = &v
	}
	if mood.Valid {
		v := uint8(mood.Int64)
		b.MoodScore = &v
	}
	if note.Valid {
		v := note.String
		b.UserNote = &v
	}
	return &b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and queries the row back to populate the generated ID
// and timestamps. Status must already be computed by the engine.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (session_id, user_id, user_name, user_email, seats_requested, status, priority_level, mood_score, user_note)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.SessionID, b.UserID, b.UserName, b.UserEmail,
		b.SeatsRequested, string(b.Status), string(b.Priority), b.MoodScore, b.UserNote)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`
	got, err := scanBooking(tx.QueryRowContext(ctx, sel, b.ID).Scan)
	if err != nil {
		return err
	}
	*b = *got
	return nil
}

// SumConfirmedSeatsTx returns the sum of seats_requested over all
// CONFIRMED bookings of the session, read inside the transaction that
// holds the session lock.
func (r *BookingRepo) SumConfirmedSeatsTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(seats_requested), 0) FROM bookings WHERE session_id = ? AND status = 'CONFIRMED'`
	var sum uint32
	if err := tx.QueryRowContext(ctx, q, sessionID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// ListPendingForUpdateTx returns every PENDING booking of the session,
// locked for the remainder of the transaction. Order is unspecified;
// the engine sorts the backlog itself.
func (r *BookingRepo) ListPendingForUpdateTx(ctx context.Context, tx *sql.Tx, sessionID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE session_id = ? AND status = 'PENDING' FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// UpdateStatusTx transitions one booking to the given status within the
// transaction. The engine only ever calls this for PENDING bookings.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, string(status), bookingID)
	return err
}

// GetByID retrieves a booking by its ID. It returns ErrBookingNotFound
// when no row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListBySession returns all bookings for a session ordered by creation
// time descending (newest first). This is the display order, not the
// admission order. When no bookings exist, an empty slice is returned.
func (r *BookingRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE session_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// BookingDetail joins a booking with session information for customer
// listings.
type BookingDetail struct {
	model.Booking
	SessionStartsAt time.Time `json:"session_starts_at"`
	TherapistName   string    `json:"therapist_name"`
	SessionTopic    *string   `json:"session_topic"`
}

// ListByUserEmail returns all bookings created under the given email,
// joined with session details, ordered by session start time descending.
func (r *BookingRepo) ListByUserEmail(ctx context.Context, email string) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.session_id, b.user_id, b.user_name, b.user_email, b.seats_requested, b.status, b.priority_level, b.mood_score, b.user_note, b.created_at, b.updated_at,
	                  s.starts_at, s.therapist_name, s.topic
	           FROM bookings b
	           JOIN sessions s ON s.id = b.session_id
	           WHERE b.user_email = ?
	           ORDER BY s.starts_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		var userID, mood sql.NullInt64
		var note, topic sql.NullString
		if err := rows.Scan(&d.ID, &d.SessionID, &userID, &d.UserName, &d.UserEmail, &d.SeatsRequested,
			&d.Status, &d.Priority, &mood, &note, &d.CreatedAt, &d.UpdatedAt,
			&d.SessionStartsAt, &d.TherapistName, &topic); err != nil {
			return nil, err
		}
		if userID.Valid {
			v := uint64(userID.Int64)
			d.UserID = &v
		}
		if mood.Valid {
			v := uint8(mood.Int64)
			d.MoodScore = &v
		}
		if note.Valid {
			v := note.String
			d.UserNote = &v
		}
		if topic.Valid {
			v := topic.String
			d.SessionTopic = &v
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
