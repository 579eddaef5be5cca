package upcoming

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/finora/finora/internal/rest"
	"github.com/finora/finora/pkg/recurrence"
	"github.com/finora/finora/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type UpcomingDTO struct {
	ReferenceDate string          `json:"referenceDate"`
	HorizonDays   int             `json:"horizonDays"`
	EndDate       string          `json:"endDate"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Items         []ItemDTO       `json:"items"`
}

type ItemDTO struct {
	Id             string          `json:"id"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	NextOccurrence string          `json:"nextOccurrence"`
	DaysLeft       int             `json:"daysLeft"`
	Category       *CategoryDTO    `json:"category,omitempty"`
}

type CategoryDTO struct {
	Id    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type Handler struct {
	service     Service
	csvRenderer Renderer
}

func NewHandler(service Service, csvRenderer Renderer) *Handler {
	return &Handler{service: service, csvRenderer: csvRenderer}
}

// GetUpcoming godoc
// @Summary Upcoming recurring expenses
// @Description Next occurrence of every active recurring expense falling within the next N days
// @Tags Upcoming
// @Produce json
// @Produce text/csv
// @Param days query int false "Horizon in days (default 30)"
// @Param date query string false "Reference date YYYY-MM-DD (default today in the user's timezone)"
// @Success 200 {object} UpcomingDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid horizon or date"
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/upcoming [get]
// @Security XUserId
func (h *Handler) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	result, ok := h.Resolve(w, r)
	if !ok {
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		body, err := h.csvRenderer.Render(result)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="upcoming-`+result.Window.ReferenceDate.String()+`.csv"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			log.Errorf("failed to write csv response: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ToDTO(result)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Resolve parses days and date from the query and computes the projection. On failure it has
// already written the error response.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) (Upcoming, bool) {
	query := r.URL.Query()

	horizonDays := h.service.DefaultHorizonDays()
	if raw := query.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid days parameter", "days must be an integer")
			return Upcoming{}, false
		}
		horizonDays = parsed
	}

	var result Upcoming
	var err error
	if raw := query.Get("date"); raw != "" {
		referenceDate, parseErr := recurrence.ParseCalendarDate(raw)
		if parseErr != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid date parameter", "date must be in YYYY-MM-DD format")
			return Upcoming{}, false
		}
		result, err = h.service.GetUpcomingAt(r.Context(), referenceDate, horizonDays)
	} else {
		result, err = h.service.GetUpcoming(r.Context(), horizonDays)
	}

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNoUser):
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
		case errors.Is(err, ErrInvalidHorizon):
			rest.WriteError(w, http.StatusBadRequest, "Invalid days parameter", err.Error())
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return Upcoming{}, false
	}
	return result, true
}

func ToDTO(u Upcoming) UpcomingDTO {
	items := make([]ItemDTO, 0, len(u.Projection.Items))
	for _, item := range u.Projection.Items {
		dto := ItemDTO{
			Id:             item.Obligation.ID.String(),
			Description:    item.Obligation.Description,
			Amount:         item.Obligation.Amount,
			NextOccurrence: item.NextOccurrence.String(),
			DaysLeft:       u.Window.ReferenceDate.DaysBetween(item.NextOccurrence),
		}
		if c := item.Obligation.Category; c != nil {
			dto.Category = &CategoryDTO{Id: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon}
		}
		items = append(items, dto)
	}
	return UpcomingDTO{
		ReferenceDate: u.Window.ReferenceDate.String(),
		HorizonDays:   u.Window.HorizonDays,
		EndDate:       u.Window.End().String(),
		TotalAmount:   u.Projection.TotalAmount,
		Items:         items,
	}
}
