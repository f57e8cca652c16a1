package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avelsk/counselling-booking/internal/model"
)

// ErrSessionNotFound indicates that a session was not located in the DB.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepo manages persistence for counselling sessions. Sessions are
// created once and never mutated afterwards; the engine only ever reads
// them (under lock) to learn the seat capacity.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionCols = `id, therapist_name, specialization, starts_at, total_seats, topic, created_at, updated_at`

func scanSession(row *sql.Row) (*model.Session, error) {
	var s model.Session
	var spec, topic sql.NullString
	err := row.Scan(&s.ID, &s.TherapistName, &spec, &s.StartsAt, &s.TotalSeats, &topic, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if spec.Valid {
		v := spec.String
		s.Specialization = &v
	}
	if topic.Valid {
		v := topic.String
		s.Topic = &v
	}
	return &s, nil
}

// Create inserts a new session and populates the generated ID and the
// DB-default timestamps on the given struct.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `INSERT INTO sessions (therapist_name, specialization, starts_at, total_seats, topic) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.TherapistName, s.Specialization, s.StartsAt, s.TotalSeats, s.Topic)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
	got, err := scanSession(r.db.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// GetByID retrieves a session by its ID. It returns ErrSessionNotFound
// if there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
	return scanSession(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx reads the session row under an exclusive row lock held
// for the lifetime of the transaction. This is the serialization point
// for all admissions of the same session; it must be the first read of
// the admission transaction.
func (r *SessionRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ? FOR UPDATE`
	return scanSession(tx.QueryRowContext(ctx, q, id))
}

// ListWithAvailability returns all sessions ordered by start time
// ascending, each with its confirmed seat sum and remaining capacity.
// The counts are derived in SQL from CONFIRMED bookings; nothing is
// cached. When no sessions exist an empty slice is returned.
func (r *SessionRepo) ListWithAvailability(ctx context.Context) ([]model.SessionWithAvailability, error) {
	const q = `SELECT s.id, s.therapist_name, s.specialization, s.starts_at, s.total_seats, s.topic, s.created_at, s.updated_at,
	                  COALESCE(SUM(CASE WHEN b.status = 'CONFIRMED' THEN b.seats_requested ELSE 0 END), 0)
	           FROM sessions s
	           LEFT JOIN bookings b ON b.session_id = s.id
	           GROUP BY s.id
	           ORDER BY s.starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.SessionWithAvailability, 0)
	for rows.Next() {
		var sa model.SessionWithAvailability
		var spec, topic sql.NullString
		if err := rows.Scan(&sa.ID, &sa.TherapistName, &spec, &sa.StartsAt, &sa.TotalSeats, &topic, &sa.CreatedAt, &sa.UpdatedAt, &sa.BookedSeats); err != nil {
			return nil, err
		}
		if spec.Valid {
			v := spec.String
			sa.Specialization = &v
		}
		if topic.Valid {
			v := topic.String
			sa.Topic = &v
		}
		sa.AvailableSeats = int64(sa.TotalSeats) - int64(sa.BookedSeats)
		result = append(result, sa)
	}
	return result, rows.Err()
}

// GetWithAvailability returns a single session with derived seat counts.
// It returns ErrSessionNotFound when no row matches.
func (r *SessionRepo) GetWithAvailability(ctx context.Context, id uint64) (*model.SessionWithAvailability, error) {
	const q = `SELECT s.id, s.therapist_name, s.specialization, s.starts_at, s.total_seats, s.topic, s.created_at, s.updated_at,
	                  COALESCE(SUM(CASE WHEN b.status = 'CONFIRMED' THEN b.seats_requested ELSE 0 END), 0)
	           FROM sessions s
	           LEFT JOIN bookings b ON b.session_id = s.id
	           WHERE s.id = ?
	           GROUP BY s.id`
	var sa model.SessionWithAvailability
	var spec, topic sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(&sa.ID, &sa.TherapistName, &spec, &sa.StartsAt, &sa.TotalSeats, &topic, &sa.CreatedAt, &sa.UpdatedAt, &sa.BookedSeats)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if spec.Valid {
		v := spec.String
		sa.Specialization = &v
	}
	if topic.Valid {
		v := topic.String
		sa.Topic = &v
	}
	sa.AvailableSeats = int64(sa.TotalSeats) - int64(sa.BookedSeats)
	return &sa, nil
}
