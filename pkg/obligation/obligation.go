package obligation

import (
	"github.com/finora/finora/pkg/recurrence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpenseType string

const (
	Installment  ExpenseType = "installment"
	Subscription ExpenseType = "subscription"
)

func (t ExpenseType) IsValid() bool {
	return t == Installment || t == Subscription
}

type Category struct {
	Id    int
	Name  string
	Color string
	Icon  string
}

// RecurringExpense is a stored recurring obligation of a user. StartDate and Frequency are only
// meaningful for subscriptions and ScheduledDates only for installments.
type RecurringExpense struct {
	Id             int
	Uid            uuid.UUID
	Description    string
	Amount         decimal.Decimal
	Active         bool
	Type           ExpenseType
	StartDate      *recurrence.CalendarDate
	Frequency      recurrence.Frequency
	ScheduledDates []recurrence.CalendarDate
	Category       *Category
}

// ToObligation normalizes the stored record into the projector's model. A record with an
// unknown type, or a subscription without a start date, gets a nil Kind.
func (e RecurringExpense) ToObligation() recurrence.Obligation {
	o := recurrence.Obligation{
		ID:          e.Uid,
		Description: e.Description,
		Amount:      e.Amount,
		Active:      e.Active,
	}

	switch e.Type {
	case Subscription:
		if e.StartDate != nil {
			o.Kind = recurrence.Subscription{StartDate: *e.StartDate, Frequency: e.Frequency}
		}
	case Installment:
		o.Kind = recurrence.Installment{ScheduledDates: e.ScheduledDates}
	}

	if e.Category != nil {
		o.Category = &recurrence.CategoryRef{
			ID:    e.Category.Id,
			Name:  e.Category.Name,
			Color: e.Category.Color,
			Icon:  e.Category.Icon,
		}
	}
	return o
}

func ToObligations(expenses []RecurringExpense) []recurrence.Obligation {
	obligations := make([]recurrence.Obligation, 0, len(expenses))
	for _, e := range expenses {
		obligations = append(obligations, e.ToObligation())
	}
	return obligations
}
