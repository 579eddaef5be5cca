package upcoming

import (
	"context"
	"errors"
	"fmt"

	"github.com/finora/finora/internal/config"
	"github.com/finora/finora/internal/event_bus"
	"github.com/finora/finora/internal/utils"
	"github.com/finora/finora/pkg/obligation"
	"github.com/finora/finora/pkg/recurrence"
	"github.com/finora/finora/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidHorizon = errors.New("invalid horizon")

// Upcoming is a projection together with the window it was computed for.
type Upcoming struct {
	Window     recurrence.Window
	Projection recurrence.Projection
}

type Service interface {
	// GetUpcoming projects the current user's obligations from today, in the user's timezone.
	GetUpcoming(ctx context.Context, horizonDays int) (Upcoming, error)
	// GetUpcomingAt projects the current user's obligations from an explicit reference date.
	GetUpcomingAt(ctx context.Context, referenceDate recurrence.CalendarDate, horizonDays int) (Upcoming, error)
	// ProjectForUser projects the obligations of u from today in u's timezone. Used by jobs
	// running without a user in context.
	ProjectForUser(ctx context.Context, u user.User, horizonDays int) (Upcoming, error)
	DefaultHorizonDays() int
}

type ServiceImpl struct {
	obligations obligation.Reader
	clock       utils.Clock
	cfg         config.Upcoming
	cache       *projectionCache
}

func NewService(obligations obligation.Reader, clock utils.Clock, cfg config.Upcoming) *ServiceImpl {
	return &ServiceImpl{
		obligations: obligations,
		clock:       clock,
		cfg:         cfg,
		cache:       newProjectionCache(),
	}
}

// SubscribeToChanges drops cached projections of a user whenever one of their obligations changes.
func (s *ServiceImpl) SubscribeToChanges(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.ObligationChangedType, func(e event_bus.EventT[event_bus.ObligationChanged]) error {
		log.Debugf("Invalidating upcoming projections of user %d after %s of %s", e.Data.UserId, e.Data.Change, e.Data.ObligationUid)
		s.cache.invalidate(e.Data.UserId)
		return nil
	})
}

func (s *ServiceImpl) DefaultHorizonDays() int {
	return s.cfg.DefaultHorizonDays
}

func (s *ServiceImpl) GetUpcoming(ctx context.Context, horizonDays int) (Upcoming, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return Upcoming{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.ProjectForUser(ctx, currentUser, horizonDays)
}

func (s *ServiceImpl) GetUpcomingAt(ctx context.Context, referenceDate recurrence.CalendarDate, horizonDays int) (Upcoming, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Upcoming{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.project(ctx, userId, referenceDate, horizonDays)
}

func (s *ServiceImpl) ProjectForUser(ctx context.Context, u user.User, horizonDays int) (Upcoming, error) {
	today := recurrence.DateOf(utils.NowIn(s.clock, u.Settings.Location()))
	return s.project(ctx, u.Id, today, horizonDays)
}

func (s *ServiceImpl) project(ctx context.Context, userId int, referenceDate recurrence.CalendarDate, horizonDays int) (Upcoming, error) {
	horizonDays, err := s.boundHorizon(horizonDays)
	if err != nil {
		return Upcoming{}, err
	}
	window := recurrence.Window{ReferenceDate: referenceDate, HorizonDays: horizonDays}

	key := cacheKey{userId: userId, referenceDate: referenceDate, horizonDays: horizonDays}
	if cached, ok := s.cache.get(key); ok {
		log.Tracef("Upcoming projection cache hit for user %d", userId)
		return cached, nil
	}
	generation := s.cache.generation(userId)

	obligations, err := s.obligations.ActiveObligations(ctx, userId)
	if err != nil {
		log.Errorf("failed to load obligations of user %d: %v", userId, err)
		return Upcoming{}, err
	}

	projection, err := recurrence.Project(obligations, window)
	if err != nil {
		return Upcoming{}, fmt.Errorf("%w: %w", ErrInvalidHorizon, err)
	}
	log.Debugf("Projected %d of %d obligations for user %d in [%s, %s]",
		len(projection.Items), len(obligations), userId, window.ReferenceDate, window.End())

	result := Upcoming{Window: window, Projection: projection}
	if !s.cache.put(key, generation, result) {
		log.Debugf("Obligations of user %d changed while projecting, result not cached", userId)
	}
	return result, nil
}

func (s *ServiceImpl) boundHorizon(horizonDays int) (int, error) {
	if horizonDays < 0 {
		return 0, fmt.Errorf("%w: %d days, must not be negative", ErrInvalidHorizon, horizonDays)
	}
	if s.cfg.MaxHorizonDays > 0 && horizonDays > s.cfg.MaxHorizonDays {
		log.Debugf("Capping horizon of %d days to %d", horizonDays, s.cfg.MaxHorizonDays)
		return s.cfg.MaxHorizonDays, nil
	}
	return horizonDays, nil
}
