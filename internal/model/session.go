package model

import "time"

// Session represents a scheduled counselling session led by a therapist.
// A session offers a fixed number of seats that bookings compete for.
// The seat capacity is set at creation time and never changes afterwards;
// all availability is derived from the bookings table, never stored.
//
// Fields:
//  ID             – primary key identifier.
//  TherapistName  – name of the counsellor leading the session.
//  Specialization – optional specialization of the therapist.
//  StartsAt       – when the session begins (UTC).
//  TotalSeats     – fixed seat capacity of the session.
//  Topic          – optional topic description.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Session struct {
	ID             uint64    `json:"id"`              // sessions.id
	TherapistName  string    `json:"therapist_name"`  // sessions.therapist_name
	Specialization *string   `json:"specialization"`  // sessions.specialization (nullable)
	StartsAt       time.Time `json:"starts_at"`       // sessions.starts_at
	TotalSeats     uint32    `json:"total_seats"`     // sessions.total_seats
	Topic          *string   `json:"topic"`           // sessions.topic (nullable)
	CreatedAt      time.Time `json:"created_at"`      // sessions.created_at
	UpdatedAt      time.Time `json:"updated_at"`      // sessions.updated_at
}

// SessionWithAvailability extends Session with seat counts derived from
// confirmed bookings. BookedSeats is the sum of seats_requested over
// CONFIRMED bookings; AvailableSeats is TotalSeats minus BookedSeats.
// These values are computed by the repository at read time and are for
// display only; the engine recomputes the sum under its own lock.
type SessionWithAvailability struct {
	Session
	BookedSeats    uint32 `json:"booked_seats"`
	AvailableSeats int64  `json:"available_seats"`
}
