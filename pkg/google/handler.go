package google

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finora/finora/internal/rest"
	"github.com/finora/finora/pkg/upcoming"
	"github.com/finora/finora/pkg/user"
)

type CalendarItemDto struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
}

type ExportedEventDto struct {
	EventId       string `json:"eventId"`
	ObligationUid string `json:"obligationId"`
	Date          string `json:"date"`
	Summary       string `json:"summary"`
}

type ExportResultDto struct {
	CalendarId string             `json:"calendarId"`
	Exported   int                `json:"exported"`
	Events     []ExportedEventDto `json:"events"`
}

type Handler struct {
	service  Service
	upcoming *upcoming.Handler
}

func NewHandler(s Service, upcomingHandler *upcoming.Handler) *Handler {
	return &Handler{service: s, upcoming: upcomingHandler}
}

// ListCalendars godoc
// @Summary List Google calendars of the current user
// @Tags Google
// @Produce json
// @Success 200 {array} CalendarItemDto
// @Failure 403 "Google authorization required"
// @Router /api/integrations/google/calendars [get]
// @Security XUserId
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.service.ListCalendars(r.Context())
	if err != nil {
		writeGoogleError(w, err)
		return
	}

	calendarItems := make([]CalendarItemDto, 0, len(calendars))
	for _, c := range calendars {
		calendarItems = append(calendarItems, toCalendarItemDto(c))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(calendarItems); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ExportUpcoming godoc
// @Summary Export upcoming payments to Google Calendar
// @Description Inserts one all-day event per upcoming payment of the next N days
// @Tags Google
// @Produce json
// @Param calendarId query string true "Target calendar"
// @Param days query int false "Horizon in days"
// @Param date query string false "Reference date YYYY-MM-DD"
// @Success 200 {object} ExportResultDto
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 "Google authorization required"
// @Router /api/upcoming/export/google [post]
// @Security XUserId
func (h *Handler) ExportUpcoming(w http.ResponseWriter, r *http.Request) {
	calendarId := r.URL.Query().Get("calendarId")
	if calendarId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing calendarId parameter", "")
		return
	}

	result, ok := h.upcoming.Resolve(w, r)
	if !ok {
		return
	}

	exported, err := h.service.ExportUpcoming(r.Context(), calendarId, result)
	if err != nil {
		writeGoogleError(w, err)
		return
	}

	events := make([]ExportedEventDto, 0, len(exported))
	for _, e := range exported {
		events = append(events, ExportedEventDto{
			EventId:       e.EventId,
			ObligationUid: e.ObligationUid,
			Date:          e.Date.String(),
			Summary:       e.Summary,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ExportResultDto{CalendarId: calendarId, Exported: len(events), Events: events}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeGoogleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, ErrUnauthenticated):
		rest.WriteError(w, http.StatusForbidden, "Google authorization required", "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Google Calendar request failed", err.Error())
	}
}

func toCalendarItemDto(ci CalendarItem) CalendarItemDto {
	return CalendarItemDto{
		Id:      ci.ID,
		Summary: ci.Summary,
	}
}
