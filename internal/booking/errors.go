// Package booking implements the admission and priority-resolution engine
// for counselling sessions. It decides, under a per-session exclusive lock,
// whether a new booking is confirmed immediately or queued, and re-evaluates
// the pending backlog after every confirmation.
package booking

import "errors"

// ErrSessionNotFound indicates the requested session does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidSeatCount is returned when a booking requests zero seats.
// Validation happens before any transaction is opened.
var ErrInvalidSeatCount = errors.New("seats_requested must be positive")

// ErrInvalidPriority is returned for an unrecognized priority level.
var ErrInvalidPriority = errors.New("unknown priority level")
