package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelsk/counselling-booking/internal/model"
	"github.com/avelsk/counselling-booking/internal/repository"
)

// SessionHandler exposes CRUD-lite endpoints for counselling sessions.
// Sessions are immutable after creation: there is no update or delete,
// because the engine's no-oversell invariant assumes a fixed capacity.
type SessionHandler struct {
	Sessions *repository.SessionRepo
}

// NewSessionHandler constructs a SessionHandler. The repository must be
// non-nil.
func NewSessionHandler(sessions *repository.SessionRepo) *SessionHandler {
	if sessions == nil {
		panic("nil repository passed to NewSessionHandler")
	}
	return &SessionHandler{Sessions: sessions}
}

type createSessionReq struct {
	TherapistName  string  `json:"therapist_name"`
	Specialization *string `json:"specialization"`
	StartsAt       string  `json:"starts_at"` // RFC3339
	TotalSeats     uint32  `json:"total_seats"`
	Topic          *string `json:"topic"`
}

// CreateSession handles POST /v1/sessions (ADMIN). It creates a new
// counselling session with a fixed seat capacity. Returns 201 with the
// created session.
func (h *SessionHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.TherapistName = strings.TrimSpace(req.TherapistName)
	if req.TherapistName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "therapist_name is required"})
	}
	if req.TotalSeats == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be positive"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}

	s := &model.Session{
		TherapistName:  req.TherapistName,
		Specialization: req.Specialization,
		StartsAt:       startsAt.UTC(),
		TotalSeats:     req.TotalSeats,
		Topic:          req.Topic,
	}
	if err := h.Sessions.Create(c.Request().Context(), s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create session"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": s})
}

// ListSessions handles GET /v1/sessions. It returns all sessions with
// derived booked/available seat counts, ordered by start time.
func (h *SessionHandler) ListSessions(c echo.Context) error {
	items, err := h.Sessions.ListWithAvailability(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load sessions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSession handles GET /v1/sessions/:id. It returns one session with
// derived seat counts, or 404 when it does not exist.
func (h *SessionHandler) GetSession(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	item, err := h.Sessions.GetWithAvailability(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load session"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}
