package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelsk/counselling-booking/internal/booking"
	"github.com/avelsk/counselling-booking/internal/model"
	"github.com/avelsk/counselling-booking/internal/queue"
	"github.com/avelsk/counselling-booking/internal/repository"
)

// BookingHandler exposes the booking endpoints. Admission and backlog
// resolution run inside the engine; the handler only validates input,
// attaches the requester identity and maps errors to HTTP statuses.
type BookingHandler struct {
	Engine   *booking.Engine
	Bookings *repository.BookingRepo
	Sessions *repository.SessionRepo
}

// NewBookingHandler constructs a BookingHandler. All dependencies must
// be non-nil.
func NewBookingHandler(engine *booking.Engine, bookings *repository.BookingRepo, sessions *repository.SessionRepo) *BookingHandler {
	if engine == nil || bookings == nil || sessions == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: engine, Bookings: bookings, Sessions: sessions}
}

type createBookingReq struct {
	SeatsRequested uint32  `json:"seats_requested"`
	PriorityLevel  string  `json:"priority_level"`
	MoodScore      *uint8  `json:"mood_score"`
	UserNote       *string `json:"user_note"`
}

// CreateBooking handles POST /v1/sessions/:id/bookings. It runs the
// admission engine for the authenticated user and returns 201 with the
// persisted booking (status CONFIRMED or PENDING). A request is never
// rejected for lack of capacity: it is queued as PENDING instead.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.MoodScore != nil && (*req.MoodScore < 1 || *req.MoodScore > 10) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "mood_score must be between 1 and 10"})
	}

	name, _ := c.Get("name").(string)
	if name == "" {
		name = email
	}

	in := booking.CreateBookingInput{
		SessionID: sessionID,
		UserID:    &userID,
		UserName:  name,
		UserEmail: email,
		Seats:     req.SeatsRequested,
		Priority:  model.PriorityLevel(req.PriorityLevel),
		MoodScore: req.MoodScore,
		UserNote:  req.UserNote,
	}
	created, promoted, err := h.Engine.AdmitAndResolve(c.Request().Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, booking.ErrInvalidSeatCount), errors.Is(err, booking.ErrInvalidPriority):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
		}
	}

	h.publishConfirmations(c.Request().Context(), sessionID, created, promoted)

	return c.JSON(http.StatusCreated, echo.Map{"item": created})
}

// publishConfirmations emits a booking.confirmed event for the new
// booking (when admitted directly) and for every backlog promotion of
// the same pass. The transaction has already committed; publish errors
// are logged inside the publisher and ignored here.
func (h *BookingHandler) publishConfirmations(ctx context.Context, sessionID uint64, created *model.Booking, promoted []model.Booking) {
	if created.Status != model.BookingConfirmed && len(promoted) == 0 {
		return
	}
	sess, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	event := func(b *model.Booking, wasPromoted bool) queue.BookingConfirmedEvent {
		return queue.BookingConfirmedEvent{
			BookingID:      b.ID,
			SessionID:      sess.ID,
			UserEmail:      b.UserEmail,
			SeatsRequested: b.SeatsRequested,
			Priority:       string(b.Priority),
			TherapistName:  sess.TherapistName,
			StartsAt:       sess.StartsAt.Format(time.RFC3339),
			Promoted:       wasPromoted,
			ConfirmedAt:    now,
		}
	}
	if created.Status == model.BookingConfirmed {
		_ = queue.PublishBookingConfirmed(ctx, event(created, false))
	}
	for i := range promoted {
		_ = queue.PublishBookingConfirmed(ctx, event(&promoted[i], true))
	}
}

// ListSessionBookings handles GET /v1/sessions/:id/bookings (ADMIN).
// It returns all bookings of a session ordered by creation time
// descending: the display order, not the admission order.
func (h *BookingHandler) ListSessionBookings(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if _, err := h.Sessions.GetByID(c.Request().Context(), sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items, err := h.Bookings.ListBySession(c.Request().Context(), sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListMyBookings handles GET /v1/my-bookings. It returns all bookings
// created under the authenticated user's email, joined with session
// details, newest session first.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUserEmail(c.Request().Context(), email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetBooking handles GET /v1/bookings/:id. A booking is visible to its
// owner (matched by email) and to admins; anyone else receives 403.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	email, err := getUserEmail(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
	}
	role, _ := c.Get("role").(string)
	if b.UserEmail != email && role != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": b})
}
