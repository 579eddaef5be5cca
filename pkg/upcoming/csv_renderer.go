package upcoming

import (
	"bytes"
	"encoding/csv"
	"strconv"

	log "github.com/sirupsen/logrus"
)

type Renderer interface {
	Render(u Upcoming) (string, error)
}

type CsvRendererImpl struct{}

func NewCsvRenderer() *CsvRendererImpl {
	return &CsvRendererImpl{}
}

// Render writes a header row, one row per occurrence in date order and a closing total row.
func (r *CsvRendererImpl) Render(u Upcoming) (string, error) {
	rows := make([][]string, 0, len(u.Projection.Items)+2)
	rows = append(rows, []string{"Date", "Description", "Category", "Amount", "Days left"})
	for _, item := range u.Projection.Items {
		category := ""
		if item.Obligation.Category != nil {
			category = item.Obligation.Category.Name
		}
		rows = append(rows, []string{
			item.NextOccurrence.String(),
			item.Obligation.Description,
			category,
			item.Obligation.Amount.StringFixed(2),
			strconv.Itoa(u.Window.ReferenceDate.DaysBetween(item.NextOccurrence)),
		})
	}
	rows = append(rows, []string{"Total", "", "", u.Projection.TotalAmount.StringFixed(2), ""})

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	if err := writer.WriteAll(rows); err != nil {
		log.Errorf("Error writing upcoming csv: %v", err)
		return "", err
	}
	return b.String(), nil
}
