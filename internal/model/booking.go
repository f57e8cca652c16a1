package model

import "time"

// BookingStatus is the closed set of states a booking can be in.
// PENDING is the only non-terminal state: a booking is created as
// CONFIRMED or PENDING, and a PENDING booking may transition exactly
// once more, to CONFIRMED or FAILED, during backlog resolution.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingFailed    BookingStatus = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingFailed:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingFailed
}

// PriorityLevel ranks competing bookings during backlog resolution.
// Emergency outranks urgent, which outranks normal. Priority is never
// consulted at initial admission, only when re-evaluating the backlog.
type PriorityLevel string

const (
	PriorityEmergency PriorityLevel = "emergency"
	PriorityUrgent    PriorityLevel = "urgent"
	PriorityNormal    PriorityLevel = "normal"
)

// Valid reports whether p is one of the known priority levels.
func (p PriorityLevel) Valid() bool {
	switch p {
	case PriorityEmergency, PriorityUrgent, PriorityNormal:
		return true
	}
	return false
}

// Rank returns the sort rank of the priority: lower sorts first.
// Unknown levels rank after normal so a bad row can never jump the queue.
func (p PriorityLevel) Rank() int {
	switch p {
	case PriorityEmergency:
		return 1
	case PriorityUrgent:
		return 2
	case PriorityNormal:
		return 3
	}
	return 4
}

// Booking is a claim on some seats of a Session. Seats are granted in
// full or not at all; SeatsRequested is immutable after creation.
//
// Fields:
//  ID             – primary key identifier.
//  SessionID      – session the booking competes for.
//  UserID         – account of the requester (nullable for guests).
//  UserName       – display name captured at booking time.
//  UserEmail      – email used for later retrieval of "my bookings".
//  SeatsRequested – number of seats claimed (full grant or none).
//  Status         – PENDING, CONFIRMED or FAILED.
//  Priority       – emergency, urgent or normal.
//  MoodScore      – optional self-reported mood at booking time (1-10).
//  UserNote       – optional free-form note for the counsellor.
//  CreatedAt      – creation timestamp; FIFO tie-break key.
//  UpdatedAt      – last update timestamp.
type Booking struct {
	ID             uint64        `json:"id"`              // bookings.id
	SessionID      uint64        `json:"session_id"`      // bookings.session_id
	UserID         *uint64       `json:"user_id"`         // bookings.user_id (nullable)
	UserName       string        `json:"user_name"`       // bookings.user_name
	UserEmail      string        `json:"user_email"`      // bookings.user_email
	SeatsRequested uint32        `json:"seats_requested"` // bookings.seats_requested
	Status         BookingStatus `json:"status"`          // bookings.status
	Priority       PriorityLevel `json:"priority_level"`  // bookings.priority_level
	MoodScore      *uint8        `json:"mood_score"`      // bookings.mood_score (nullable)
	UserNote       *string       `json:"user_note"`       // bookings.user_note (nullable)
	CreatedAt      time.Time     `json:"created_at"`      // bookings.created_at
	UpdatedAt      time.Time     `json:"updated_at"`      // bookings.updated_at
}
