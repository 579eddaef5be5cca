package recurrence

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

func (f Frequency) IsValid() bool {
	return f == Monthly || f == Yearly
}

// months returns the period length in months, or 0 for an unknown frequency.
func (f Frequency) months() int {
	switch f {
	case Monthly:
		return 1
	case Yearly:
		return 12
	default:
		return 0
	}
}

// Kind is the schedule of an obligation. It is either a Subscription or an Installment.
type Kind interface {
	isKind()
}

// Subscription recurs every period from its anchor date, without a fixed end.
type Subscription struct {
	StartDate CalendarDate
	Frequency Frequency
}

// Installment is a finite payment plan with an enumerated set of due dates.
type Installment struct {
	ScheduledDates []CalendarDate
}

func (Subscription) isKind() {}
func (Installment) isKind()  {}

// CategoryRef is only used for display.
type CategoryRef struct {
	ID    int
	Name  string
	Color string
	Icon  string
}

type Obligation struct {
	ID          uuid.UUID
	Description string
	Amount      decimal.Decimal
	Active      bool
	Kind        Kind
	Category    *CategoryRef
}

// Window is the closed interval [ReferenceDate, ReferenceDate + HorizonDays].
type Window struct {
	ReferenceDate CalendarDate
	HorizonDays   int
}

func (w Window) End() CalendarDate {
	return w.ReferenceDate.AddDays(w.HorizonDays)
}

func (w Window) Contains(d CalendarDate) bool {
	return !d.Before(w.ReferenceDate) && !d.After(w.End())
}

type Occurrence struct {
	Obligation     Obligation
	NextOccurrence CalendarDate
}

type Projection struct {
	Items       []Occurrence
	TotalAmount decimal.Decimal
}

func (p Projection) IsEmpty() bool {
	return len(p.Items) == 0
}
