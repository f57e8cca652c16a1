// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them.
package queue

// BookingConfirmedEvent is published whenever a booking reaches the
// CONFIRMED state, either at admission or by backlog promotion. It
// contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID      uint64 `json:"booking_id"`
	SessionID      uint64 `json:"session_id"`
	UserEmail      string `json:"user_email"`
	SeatsRequested uint32 `json:"seats_requested"`
	Priority       string `json:"priority_level"`
	TherapistName  string `json:"therapist_name"`
	StartsAt       string `json:"starts_at"`
	Promoted       bool   `json:"promoted"` // true when confirmed by backlog resolution
	ConfirmedAt    string `json:"confirmed_at"`
}
