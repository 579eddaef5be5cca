package recurrence

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

var ErrNegativeHorizon = errors.New("horizon days must not be negative")

// Project returns the active obligations whose next occurrence falls inside the window,
// ordered by that date (ties keep input order), together with the sum of their amounts.
// Records without a computable next occurrence are left out; only an invalid window is an error.
func Project(obligations []Obligation, window Window) (Projection, error) {
	if window.HorizonDays < 0 {
		return Projection{}, fmt.Errorf("%w: %d", ErrNegativeHorizon, window.HorizonDays)
	}

	items := make([]Occurrence, 0, len(obligations))
	for _, o := range obligations {
		if !o.Active {
			continue
		}
		next, ok := NextOccurrence(o, window.ReferenceDate)
		if !ok || !window.Contains(next) {
			continue
		}
		items = append(items, Occurrence{Obligation: o, NextOccurrence: next})
	}

	slices.SortStableFunc(items, func(a, b Occurrence) int {
		return a.NextOccurrence.Compare(b.NextOccurrence)
	})

	return Projection{Items: items, TotalAmount: Total(items)}, nil
}

// Total sums the amounts of the given occurrences.
func Total(items []Occurrence) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Obligation.Amount)
	}
	return total
}

// NextOccurrence returns the first occurrence of o on or after reference. The activity flag is
// not consulted. ok is false when the schedule has no such date or cannot be interpreted.
func NextOccurrence(o Obligation, reference CalendarDate) (CalendarDate, bool) {
	switch kind := o.Kind.(type) {
	case Subscription:
		return kind.nextOnOrAfter(reference)
	case Installment:
		return kind.nextOnOrAfter(reference)
	default:
		return CalendarDate{}, false
	}
}

func (s Subscription) nextOnOrAfter(reference CalendarDate) (CalendarDate, bool) {
	if !s.StartDate.Before(reference) {
		return s.StartDate, true
	}
	period := s.Frequency.months()
	if period == 0 {
		return CalendarDate{}, false
	}

	// Whole periods that fit before the reference month; each shift is taken from the anchor.
	monthsApart := (reference.Year-s.StartDate.Year)*12 + int(reference.Month) - int(s.StartDate.Month)
	steps := monthsApart / period
	candidate := s.StartDate.AddMonthsClamped(steps * period)
	if candidate.Before(reference) {
		candidate = s.StartDate.AddMonthsClamped((steps + 1) * period)
	}
	return candidate, true
}

func (i Installment) nextOnOrAfter(reference CalendarDate) (CalendarDate, bool) {
	var next CalendarDate
	found := false
	for _, d := range i.ScheduledDates {
		if d.Before(reference) {
			continue
		}
		if !found || d.Before(next) {
			next = d
			found = true
		}
	}
	return next, found
}
