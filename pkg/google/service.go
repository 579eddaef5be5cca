package google

import (
	"context"
	"fmt"

	"github.com/finora/finora/pkg/upcoming"
	"github.com/finora/finora/pkg/user"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type CalendarItem struct {
	ID      string
	Summary string
}

type Service interface {
	ListCalendars(ctx context.Context) ([]CalendarItem, error)
	ExportUpcoming(ctx context.Context, calendarId string, u upcoming.Upcoming) ([]ExportedEvent, error)
}

type ServiceImpl struct {
	auth    *GoogleAuth
	options []option.ClientOption
}

// NewService creates the Google service. Extra client options are appended to the authorized
// HTTP client, e.g. a custom endpoint.
func NewService(auth *GoogleAuth, options ...option.ClientOption) *ServiceImpl {
	return &ServiceImpl{
		auth:    auth,
		options: options,
	}
}

func (s *ServiceImpl) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	googleService, err := s.prepareGoogleService(ctx, userId)
	if err != nil {
		return nil, err
	}
	calendars, err := googleService.CalendarList.List().Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to retrieve calendars from Google Calendar: %w", err)
		log.Error(err)
		return nil, err
	}
	googleCalendars := make([]CalendarItem, 0, len(calendars.Items))
	for _, cal := range calendars.Items {
		googleCalendars = append(googleCalendars, CalendarItem{
			ID:      cal.Id,
			Summary: cal.Summary,
		})
	}
	return googleCalendars, nil
}

func (s *ServiceImpl) ExportUpcoming(ctx context.Context, calendarId string, u upcoming.Upcoming) ([]ExportedEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	googleService, err := s.prepareGoogleService(ctx, userId)
	if err != nil {
		return nil, err
	}
	exported, err := newGoogleCalendar(googleService, calendarId).AddOccurrences(ctx, u.Projection.Items)
	if err != nil {
		return exported, err
	}
	log.Infof("Exported %d upcoming payments of user %d to calendar %s", len(exported), userId, calendarId)
	return exported, nil
}

func (s *ServiceImpl) prepareGoogleService(ctx context.Context, userId int) (*calendar.Service, error) {
	client, err := s.auth.getClient(ctx, userId)
	if err != nil {
		err := fmt.Errorf("unable to retrieve Google auth client: %w", err)
		log.Error(err)
		return nil, err
	}
	if client == nil {
		log.Debug("user is unauthenticated, authentication is required")
		return nil, ErrUnauthenticated
	}
	options := append([]option.ClientOption{option.WithHTTPClient(client)}, s.options...)
	service, err := calendar.NewService(ctx, options...)
	if err != nil {
		err := fmt.Errorf("unable to retrieve Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}

	return service, nil
}
