package obligation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/finora/finora/internal/event_bus"
	"github.com/finora/finora/pkg/recurrence"
	"github.com/finora/finora/pkg/user"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxDescriptionLength = 200

var (
	ErrInvalidExpense   = errors.New("invalid recurring expense")
	ErrExpenseNotFound  = errors.New("recurring expense not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidCategory  = errors.New("invalid category")
)

type Service interface {
	ListExpenses(ctx context.Context, onlyActive bool) ([]RecurringExpense, error)
	GetExpense(ctx context.Context, uid uuid.UUID) (RecurringExpense, error)
	CreateExpense(ctx context.Context, expense RecurringExpense) (RecurringExpense, error)
	UpdateExpense(ctx context.Context, expense RecurringExpense) (RecurringExpense, error)
	DeleteExpense(ctx context.Context, uid uuid.UUID) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)
}

// Reader loads the obligations of a given user without a user in context. Used by background jobs.
type Reader interface {
	ActiveObligations(ctx context.Context, userId int) ([]recurrence.Obligation, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
}

func NewService(repo Repository, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, eventBus: eventBus}
}

func (s *ServiceImpl) ListExpenses(ctx context.Context, onlyActive bool) ([]RecurringExpense, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListExpenses(ctx, userId, onlyActive)
}

func (s *ServiceImpl) ActiveObligations(ctx context.Context, userId int) ([]recurrence.Obligation, error) {
	expenses, err := s.repo.ListExpenses(ctx, userId, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list obligations of user %d: %w", userId, err)
	}
	return ToObligations(expenses), nil
}

func (s *ServiceImpl) GetExpense(ctx context.Context, uid uuid.UUID) (RecurringExpense, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return RecurringExpense{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetExpense(ctx, userId, uid)
}

func (s *ServiceImpl) CreateExpense(ctx context.Context, expense RecurringExpense) (RecurringExpense, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return RecurringExpense{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.prepare(ctx, userId, &expense); err != nil {
		return RecurringExpense{}, err
	}

	stored, err := s.repo.StoreExpense(ctx, userId, expense)
	if err != nil {
		return RecurringExpense{}, err
	}
	log.Debugf("Created recurring expense %s for user %d", stored.Uid, userId)
	s.publishChange(ctx, userId, stored.Uid, event_bus.ObligationCreated)
	return stored, nil
}

func (s *ServiceImpl) UpdateExpense(ctx context.Context, expense RecurringExpense) (RecurringExpense, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return RecurringExpense{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.prepare(ctx, userId, &expense); err != nil {
		return RecurringExpense{}, err
	}

	updated, err := s.repo.UpdateExpense(ctx, userId, expense)
	if err != nil {
		return RecurringExpense{}, err
	}
	s.publishChange(ctx, userId, updated.Uid, event_bus.ObligationUpdated)
	return updated, nil
}

func (s *ServiceImpl) DeleteExpense(ctx context.Context, uid uuid.UUID) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.repo.DeleteExpense(ctx, userId, uid); err != nil {
		return err
	}
	s.publishChange(ctx, userId, uid, event_bus.ObligationDeleted)
	return nil
}

func (s *ServiceImpl) ListCategories(ctx context.Context) ([]Category, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListCategories(ctx, userId)
}

func (s *ServiceImpl) CreateCategory(ctx context.Context, category Category) (Category, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Category{}, fmt.Errorf("failed to get current user: %w", err)
	}
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return Category{}, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	return s.repo.StoreCategory(ctx, userId, category)
}

// prepare validates the expense for writing, drops fields that do not apply to its type and
// resolves the category against the user's categories.
func (s *ServiceImpl) prepare(ctx context.Context, userId int, expense *RecurringExpense) error {
	expense.Description = strings.TrimSpace(expense.Description)
	if err := Validate(*expense); err != nil {
		return err
	}

	switch expense.Type {
	case Subscription:
		expense.ScheduledDates = nil
	case Installment:
		expense.StartDate = nil
		expense.Frequency = ""
		expense.ScheduledDates = slices.Clone(expense.ScheduledDates)
		slices.SortFunc(expense.ScheduledDates, recurrence.CalendarDate.Compare)
		expense.ScheduledDates = slices.Compact(expense.ScheduledDates)
	}

	if expense.Category == nil || expense.Category.Id == 0 {
		expense.Category = nil
		return nil
	}
	categories, err := s.repo.ListCategories(ctx, userId)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(categories, func(c Category) bool { return c.Id == expense.Category.Id })
	if idx < 0 {
		return fmt.Errorf("%w: id %d", ErrCategoryNotFound, expense.Category.Id)
	}
	expense.Category = &categories[idx]
	return nil
}

// Validate checks an expense before it is written. Stored records are never re-validated:
// the projector tolerates malformed ones.
func Validate(expense RecurringExpense) error {
	if expense.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidExpense)
	}
	if utf8.RuneCountInString(expense.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description must be at most %d characters", ErrInvalidExpense, maxDescriptionLength)
	}
	if !expense.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidExpense)
	}

	switch expense.Type {
	case Subscription:
		if expense.StartDate == nil {
			return fmt.Errorf("%w: subscription requires a start date", ErrInvalidExpense)
		}
		if !expense.Frequency.IsValid() {
			return fmt.Errorf("%w: unknown frequency %q", ErrInvalidExpense, expense.Frequency)
		}
	case Installment:
		if len(expense.ScheduledDates) == 0 {
			return fmt.Errorf("%w: installment requires at least one scheduled date", ErrInvalidExpense)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidExpense, expense.Type)
	}
	return nil
}

func (s *ServiceImpl) publishChange(ctx context.Context, userId int, uid uuid.UUID, change event_bus.ObligationChangeKind) {
	if s.eventBus == nil {
		return
	}
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.ObligationChangedType, event_bus.ObligationChanged{
		UserId:        userId,
		ObligationUid: uid,
		Change:        change,
	}))
	if err != nil {
		log.Warnf("failed to publish obligation change for user %d: %v", userId, err)
	}
}
