package upcoming

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finora/finora/internal/config"
	"github.com/finora/finora/internal/event_bus"
	"github.com/finora/finora/internal/utils"
	"github.com/finora/finora/pkg/recurrence"
	"github.com/finora/finora/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readerStub struct {
	byUser map[int][]recurrence.Obligation
	calls  map[int]int
	err    error
}

func newReaderStub() *readerStub {
	return &readerStub{byUser: map[int][]recurrence.Obligation{}, calls: map[int]int{}}
}

func (r *readerStub) ActiveObligations(_ context.Context, userId int) ([]recurrence.Obligation, error) {
	r.calls[userId]++
	if r.err != nil {
		return nil, r.err
	}
	return r.byUser[userId], nil
}

// blockingReader returns what it held when a load started, after the test releases it.
type blockingReader struct {
	mu          sync.Mutex
	obligations []recurrence.Obligation
	started     chan struct{}
	release     chan struct{}
	blockOnce   sync.Once
}

func newBlockingReader() *blockingReader {
	return &blockingReader{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingReader) ActiveObligations(_ context.Context, _ int) ([]recurrence.Obligation, error) {
	r.mu.Lock()
	snapshot := r.obligations
	r.mu.Unlock()

	r.blockOnce.Do(func() {
		close(r.started)
		<-r.release
	})
	return snapshot, nil
}

func (r *blockingReader) set(obligations ...recurrence.Obligation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obligations = obligations
}

var testCfg = config.Upcoming{DefaultHorizonDays: 30, MaxHorizonDays: 366}

var warsawUser = user.User{
	Id:       1,
	Uid:      "user-1",
	Username: "anna",
	Settings: user.Settings{Timezone: "Europe/Warsaw", Currency: "PLN"},
}

func monthly(description, amount string, start recurrence.CalendarDate) recurrence.Obligation {
	return recurrence.Obligation{
		ID:          uuid.New(),
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Active:      true,
		Kind:        recurrence.Subscription{StartDate: start, Frequency: recurrence.Monthly},
	}
}

func setup(now time.Time) (*ServiceImpl, *readerStub, *utils.MockClock) {
	reader := newReaderStub()
	clock := utils.NewMockClock(now)
	return NewService(reader, clock, testCfg), reader, clock
}

func TestServiceImpl_ReferenceDateInUserTimezone(t *testing.T) {
	// given
	service, reader, _ := setup(time.Date(2025, time.January, 14, 23, 30, 0, 0, time.UTC))
	reader.byUser[warsawUser.Id] = []recurrence.Obligation{
		monthly("Gym", "120", recurrence.NewCalendarDate(2024, time.December, 15)),
	}
	ctx := user.WithUser(context.Background(), warsawUser)

	// when
	result, err := service.GetUpcoming(ctx, 0)

	// then
	require.NoError(t, err)
	assert.Equal(t, recurrence.NewCalendarDate(2025, time.January, 15), result.Window.ReferenceDate)
	require.Len(t, result.Projection.Items, 1)
	assert.Equal(t, recurrence.NewCalendarDate(2025, time.January, 15), result.Projection.Items[0].NextOccurrence)
	assert.True(t, decimal.NewFromInt(120).Equal(result.Projection.TotalAmount))
}

func TestServiceImpl_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	service, _, _ := setup(time.Date(2025, time.January, 14, 23, 30, 0, 0, time.UTC))
	u := warsawUser
	u.Settings.Timezone = "Mars/Olympus"

	result, err := service.ProjectForUser(context.Background(), u, 10)

	require.NoError(t, err)
	assert.Equal(t, recurrence.NewCalendarDate(2025, time.January, 14), result.Window.ReferenceDate)
	assert.True(t, result.Projection.IsEmpty())
}

func TestServiceImpl_GetUpcomingAt(t *testing.T) {
	// given
	service, reader, _ := setup(time.Date(2030, time.June, 1, 12, 0, 0, 0, time.UTC))
	reader.byUser[warsawUser.Id] = []recurrence.Obligation{
		monthly("Streaming", "15.99", recurrence.NewCalendarDate(2025, time.January, 10)),
		monthly("Phone", "40.01", recurrence.NewCalendarDate(2025, time.January, 20)),
	}
	ctx := user.WithUser(context.Background(), warsawUser)

	// when
	result, err := service.GetUpcomingAt(ctx, recurrence.NewCalendarDate(2025, time.February, 5), 10)

	// then
	require.NoError(t, err)
	assert.Equal(t, recurrence.NewCalendarDate(2025, time.February, 15), result.Window.End())
	require.Len(t, result.Projection.Items, 1)
	assert.Equal(t, "Streaming", result.Projection.Items[0].Obligation.Description)
	assert.True(t, decimal.RequireFromString("15.99").Equal(result.Projection.TotalAmount))
}

func TestServiceImpl_Horizon(t *testing.T) {
	service, reader, _ := setup(time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC))
	reader.byUser[warsawUser.Id] = []recurrence.Obligation{
		monthly("Insurance", "80", recurrence.NewCalendarDate(2024, time.December, 20)),
	}
	ctx := user.WithUser(context.Background(), warsawUser)

	t.Run("negative horizon is rejected", func(t *testing.T) {
		_, err := service.GetUpcoming(ctx, -1)
		assert.ErrorIs(t, err, ErrInvalidHorizon)
	})

	t.Run("horizon above maximum is capped", func(t *testing.T) {
		result, err := service.GetUpcoming(ctx, 5000)
		require.NoError(t, err)
		assert.Equal(t, testCfg.MaxHorizonDays, result.Window.HorizonDays)
		require.Len(t, result.Projection.Items, 1)
		assert.Equal(t, recurrence.NewCalendarDate(2025, time.January, 20), result.Projection.Items[0].NextOccurrence)
	})
}

func TestServiceImpl_NoUserInContext(t *testing.T) {
	service, _, _ := setup(time.Now())

	_, err := service.GetUpcoming(context.Background(), 30)
	assert.ErrorIs(t, err, user.ErrNoUser)

	_, err = service.GetUpcomingAt(context.Background(), recurrence.NewCalendarDate(2025, time.January, 1), 30)
	assert.ErrorIs(t, err, user.ErrNoUser)
}

func TestServiceImpl_ReaderFailure(t *testing.T) {
	service, reader, _ := setup(time.Now())
	reader.err = errors.New("connection refused")

	_, err := service.ProjectForUser(context.Background(), warsawUser, 30)

	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, service.cache.size(warsawUser.Id))
}

func TestServiceImpl_Cache(t *testing.T) {
	t.Run("same window is served from cache", func(t *testing.T) {
		service, reader, _ := setup(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))

		_, err := service.ProjectForUser(context.Background(), warsawUser, 30)
		require.NoError(t, err)
		_, err = service.ProjectForUser(context.Background(), warsawUser, 30)
		require.NoError(t, err)

		assert.Equal(t, 1, reader.calls[warsawUser.Id])
	})

	t.Run("new day drops older entries", func(t *testing.T) {
		service, reader, clock := setup(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))

		_, err := service.ProjectForUser(context.Background(), warsawUser, 30)
		require.NoError(t, err)
		_, err = service.ProjectForUser(context.Background(), warsawUser, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, service.cache.size(warsawUser.Id))

		clock.Advance(24 * time.Hour)
		_, err = service.ProjectForUser(context.Background(), warsawUser, 30)
		require.NoError(t, err)

		assert.Equal(t, 3, reader.calls[warsawUser.Id])
		assert.Equal(t, 1, service.cache.size(warsawUser.Id))
	})

	t.Run("change event invalidates only the affected user", func(t *testing.T) {
		// given
		service, reader, _ := setup(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC))
		bus := event_bus.NewEventBus()
		unsubscribe := service.SubscribeToChanges(bus)
		defer unsubscribe()
		other := user.User{Id: 2, Uid: "user-2", Settings: user.Settings{Timezone: "UTC"}}

		_, err := service.ProjectForUser(context.Background(), warsawUser, 30)
		require.NoError(t, err)
		_, err = service.ProjectForUser(context.Background(), other, 30)
		require.NoError(t, err)

		// when
		reader.byUser[warsawUser.Id] = []recurrence.Obligation{
			monthly("New gym", "99", recurrence.NewCalendarDate(2025, time.March, 10)),
		}
		err = bus.Publish(event_bus.NewEvent(context.Background(), event_bus.ObligationChangedType, event_bus.ObligationChanged{
			UserId:        warsawUser.Id,
			ObligationUid: uuid.New(),
			Change:        event_bus.ObligationCreated,
		}))
		require.NoError(t, err)

		// then
		assert.Zero(t, service.cache.size(warsawUser.Id))
		assert.Equal(t, 1, service.cache.size(other.Id))

		result, err := service.ProjectForUser(context.Background(), warsawUser, 30)
		require.NoError(t, err)
		require.Len(t, result.Projection.Items, 1)
		assert.Equal(t, "New gym", result.Projection.Items[0].Obligation.Description)
		assert.Equal(t, 2, reader.calls[warsawUser.Id])
		assert.Equal(t, 1, reader.calls[other.Id])
	})
}

func TestServiceImpl_ChangeDuringLoadIsNotCached(t *testing.T) {
	// given
	reader := newBlockingReader()
	service := NewService(reader, utils.NewMockClock(time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)), testCfg)
	bus := event_bus.NewEventBus()
	unsubscribe := service.SubscribeToChanges(bus)
	defer unsubscribe()
	ctx := user.WithUser(context.Background(), warsawUser)

	type outcome struct {
		result Upcoming
		err    error
	}
	firstLoad := make(chan outcome, 1)
	go func() {
		result, err := service.GetUpcoming(ctx, 30)
		firstLoad <- outcome{result, err}
	}()
	<-reader.started

	// when
	reader.set(monthly("New gym", "99", recurrence.NewCalendarDate(2025, time.March, 10)))
	err := bus.Publish(event_bus.NewEvent(ctx, event_bus.ObligationChangedType, event_bus.ObligationChanged{
		UserId:        warsawUser.Id,
		ObligationUid: uuid.New(),
		Change:        event_bus.ObligationCreated,
	}))
	require.NoError(t, err)
	close(reader.release)

	// then
	first := <-firstLoad
	require.NoError(t, first.err)
	assert.Empty(t, first.result.Projection.Items)
	assert.Zero(t, service.cache.size(warsawUser.Id))

	result, err := service.GetUpcoming(ctx, 30)
	require.NoError(t, err)
	require.Len(t, result.Projection.Items, 1)
	assert.Equal(t, "New gym", result.Projection.Items[0].Obligation.Description)
	assert.Equal(t, 1, service.cache.size(warsawUser.Id))
}
