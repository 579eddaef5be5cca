package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/finora/finora/pkg/recurrence"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

var ErrUnauthenticated = errors.New("user is unauthenticated, authentication is required")

// ExportedEvent is an occurrence written to a Google calendar.
type ExportedEvent struct {
	EventId       string
	ObligationUid string
	Date          recurrence.CalendarDate
	Summary       string
}

type Calendar struct {
	service    *gcal.Service
	calendarId string
}

func newGoogleCalendar(service *gcal.Service, calendarId string) *Calendar {
	return &Calendar{service: service, calendarId: calendarId}
}

// AddOccurrences inserts one all-day event per occurrence and stops at the first failure,
// returning the events written so far.
func (c *Calendar) AddOccurrences(ctx context.Context, occurrences []recurrence.Occurrence) ([]ExportedEvent, error) {
	exported := make([]ExportedEvent, 0, len(occurrences))
	for _, occ := range occurrences {
		event := occurrenceToEvent(occ)
		log.Debugf("Adding event %q on %s to calendar %s", event.Summary, event.Start.Date, c.calendarId)

		result, err := c.service.Events.Insert(c.calendarId, event).Context(ctx).Do()
		if err != nil {
			err := fmt.Errorf("unable to insert event in Google Calendar: %w", err)
			log.Error(err)
			return exported, err
		}
		exported = append(exported, ExportedEvent{
			EventId:       result.Id,
			ObligationUid: occ.Obligation.ID.String(),
			Date:          occ.NextOccurrence,
			Summary:       event.Summary,
		})
	}
	return exported, nil
}

func eventSummary(o recurrence.Obligation) string {
	return fmt.Sprintf("%s (%s)", o.Description, o.Amount.StringFixed(2))
}

// occurrenceToEvent builds an all-day event. Google treats the end date as exclusive.
func occurrenceToEvent(occ recurrence.Occurrence) *gcal.Event {
	return &gcal.Event{
		Summary:      eventSummary(occ.Obligation),
		Description:  "Recurring payment " + occ.Obligation.ID.String(),
		Start:        &gcal.EventDateTime{Date: occ.NextOccurrence.String()},
		End:          &gcal.EventDateTime{Date: occ.NextOccurrence.AddDays(1).String()},
		Transparency: "transparent",
	}
}
