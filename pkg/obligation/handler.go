package obligation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/finora/finora/internal/rest"
	"github.com/finora/finora/pkg/recurrence"
	"github.com/finora/finora/pkg/user"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type RecurringExpenseDTO struct {
	Id           string           `json:"id,omitempty"`
	Description  string           `json:"description"`
	Amount       decimal.Decimal  `json:"amount"`
	Active       *bool            `json:"active,omitempty"`
	Type         string           `json:"type"`
	StartDate    string           `json:"start_date,omitempty"`
	Frequency    string           `json:"frequency,omitempty"`
	Transactions []TransactionDTO `json:"transactions"`
	Category     *CategoryDTO     `json:"category,omitempty"`
}

type TransactionDTO struct {
	Date string `json:"date"`
}

type CategoryDTO struct {
	Id    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListExpenses godoc
// @Summary List recurring expenses
// @Tags Recurring
// @Produce json
// @Param active query bool false "Only active expenses"
// @Success 200 {array} RecurringExpenseDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid active filter"
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/recurring [get]
// @Security XUserId
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	onlyActive := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid active filter", "active must be true or false")
			return
		}
		onlyActive = parsed
	}

	expenses, err := h.service.ListExpenses(r.Context(), onlyActive)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dtos := make([]RecurringExpenseDTO, 0, len(expenses))
	for _, e := range expenses {
		dtos = append(dtos, ExpenseToDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetExpense godoc
// @Summary Get a recurring expense
// @Tags Recurring
// @Produce json
// @Param uid path string true "Expense UID"
// @Success 200 {object} RecurringExpenseDTO
// @Failure 404 {object} rest.ErrorResponse "Not found"
// @Router /api/recurring/{uid} [get]
// @Security XUserId
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUid(w, r)
	if !ok {
		return
	}
	expense, err := h.service.GetExpense(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpenseToDTO(expense))
}

// CreateExpense godoc
// @Summary Create a recurring expense
// @Tags Recurring
// @Accept json
// @Produce json
// @Param expense body RecurringExpenseDTO true "Recurring expense"
// @Success 201 {object} RecurringExpenseDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/recurring [post]
// @Security XUserId
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	expense, ok := decodeExpense(w, r)
	if !ok {
		return
	}
	log.Tracef("Creating recurring expense: %+v", expense)

	created, err := h.service.CreateExpense(r.Context(), expense)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ExpenseToDTO(created))
}

// UpdateExpense godoc
// @Summary Update a recurring expense
// @Tags Recurring
// @Accept json
// @Produce json
// @Param uid path string true "Expense UID"
// @Param expense body RecurringExpenseDTO true "Recurring expense"
// @Success 200 {object} RecurringExpenseDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Not found"
// @Router /api/recurring/{uid} [put]
// @Security XUserId
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUid(w, r)
	if !ok {
		return
	}
	expense, ok := decodeExpense(w, r)
	if !ok {
		return
	}
	expense.Uid = uid

	updated, err := h.service.UpdateExpense(r.Context(), expense)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpenseToDTO(updated))
}

// DeleteExpense godoc
// @Summary Delete a recurring expense
// @Tags Recurring
// @Param uid path string true "Expense UID"
// @Success 204 "No Content"
// @Failure 404 {object} rest.ErrorResponse "Not found"
// @Router /api/recurring/{uid} [delete]
// @Security XUserId
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathUid(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteExpense(r.Context(), uid); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories godoc
// @Summary List categories
// @Tags Recurring
// @Produce json
// @Success 200 {array} CategoryDTO
// @Router /api/category [get]
// @Security XUserId
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, categoryToDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory godoc
// @Summary Create a category
// @Tags Recurring
// @Accept json
// @Produce json
// @Param category body CategoryDTO true "Category"
// @Success 201 {object} CategoryDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/category [post]
// @Security XUserId
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var dto CategoryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	created, err := h.service.CreateCategory(r.Context(), Category{Name: dto.Name, Color: dto.Color, Icon: dto.Icon})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryToDTO(created))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
	case errors.Is(err, ErrInvalidExpense), errors.Is(err, ErrCategoryNotFound):
		rest.WriteError(w, http.StatusBadRequest, "Invalid recurring expense", err.Error())
	case errors.Is(err, ErrInvalidCategory):
		rest.WriteError(w, http.StatusBadRequest, "Invalid category", err.Error())
	case errors.Is(err, ErrExpenseNotFound):
		rest.WriteError(w, http.StatusNotFound, "Recurring expense not found", "")
	default:
		log.Errorf("recurring expense request failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeExpense(w http.ResponseWriter, r *http.Request) (RecurringExpense, bool) {
	var dto RecurringExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return RecurringExpense{}, false
	}
	expense, err := DTOToExpense(dto)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid recurring expense", err.Error())
		return RecurringExpense{}, false
	}
	return expense, true
}

func pathUid(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uid, err := uuid.Parse(mux.Vars(r)["uid"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid expense id", "id must be a UUID")
		return uuid.Nil, false
	}
	return uid, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// DTOToExpense converts the wire payload into a RecurringExpense. Only date formats are checked
// here; an unknown type is kept as is. Missing active defaults to true.
func DTOToExpense(dto RecurringExpenseDTO) (RecurringExpense, error) {
	expense := RecurringExpense{
		Description: dto.Description,
		Amount:      dto.Amount,
		Active:      dto.Active == nil || *dto.Active,
		Type:        ExpenseType(dto.Type),
		Frequency:   recurrence.Frequency(dto.Frequency),
	}
	if dto.Id != "" {
		uid, err := uuid.Parse(dto.Id)
		if err != nil {
			return RecurringExpense{}, fmt.Errorf("invalid id %q", dto.Id)
		}
		expense.Uid = uid
	}
	if dto.StartDate != "" {
		d, err := ParseWireDate(dto.StartDate)
		if err != nil {
			return RecurringExpense{}, err
		}
		expense.StartDate = &d
	}
	for _, t := range dto.Transactions {
		d, err := ParseWireDate(t.Date)
		if err != nil {
			return RecurringExpense{}, err
		}
		expense.ScheduledDates = append(expense.ScheduledDates, d)
	}
	if dto.Category != nil {
		expense.Category = &Category{Id: dto.Category.Id, Name: dto.Category.Name, Color: dto.Category.Color, Icon: dto.Category.Icon}
	}
	return expense, nil
}

func ExpenseToDTO(e RecurringExpense) RecurringExpenseDTO {
	active := e.Active
	dto := RecurringExpenseDTO{
		Id:           e.Uid.String(),
		Description:  e.Description,
		Amount:       e.Amount,
		Active:       &active,
		Type:         string(e.Type),
		Frequency:    string(e.Frequency),
		Transactions: make([]TransactionDTO, 0, len(e.ScheduledDates)),
	}
	if e.StartDate != nil {
		dto.StartDate = e.StartDate.String()
	}
	for _, d := range e.ScheduledDates {
		dto.Transactions = append(dto.Transactions, TransactionDTO{Date: d.String()})
	}
	if e.Category != nil {
		c := categoryToDTO(*e.Category)
		dto.Category = &c
	}
	return dto
}

func categoryToDTO(c Category) CategoryDTO {
	return CategoryDTO{Id: c.Id, Name: c.Name, Color: c.Color, Icon: c.Icon}
}

// ParseWireDate accepts YYYY-MM-DD and timestamps starting with it (2025-01-05T00:00:00Z). The
// calendar day is taken as written, without shifting by the timestamp's offset.
func ParseWireDate(s string) (recurrence.CalendarDate, error) {
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	return recurrence.ParseCalendarDate(s)
}
