package upcoming

import (
	"testing"
	"time"

	"github.com/finora/finora/pkg/recurrence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvRendererImpl_Render(t *testing.T) {
	renderer := NewCsvRenderer()
	reference := recurrence.NewCalendarDate(2025, time.March, 1)

	t.Run("empty projection renders header and zero total", func(t *testing.T) {
		out, err := renderer.Render(Upcoming{
			Window:     recurrence.Window{ReferenceDate: reference, HorizonDays: 7},
			Projection: recurrence.Projection{TotalAmount: decimal.Zero},
		})

		require.NoError(t, err)
		assert.Equal(t, "Date,Description,Category,Amount,Days left\nTotal,,,0.00,\n", out)
	})

	t.Run("descriptions are quoted when needed", func(t *testing.T) {
		rent := monthly("Rent, flat 4", "1800.5", recurrence.NewCalendarDate(2025, time.January, 1))
		out, err := renderer.Render(Upcoming{
			Window: recurrence.Window{ReferenceDate: reference, HorizonDays: 7},
			Projection: recurrence.Projection{
				Items:       []recurrence.Occurrence{{Obligation: rent, NextOccurrence: reference}},
				TotalAmount: rent.Amount,
			},
		})

		require.NoError(t, err)
		assert.Contains(t, out, "2025-03-01,\"Rent, flat 4\",,1800.50,0\n")
		assert.Contains(t, out, "Total,,,1800.50,\n")
	})
}
