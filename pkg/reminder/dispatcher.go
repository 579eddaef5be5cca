package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/finora/finora/internal/config"
	"github.com/finora/finora/pkg/upcoming"
	"github.com/finora/finora/pkg/user"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type UserLister interface {
	GetAllUsers(ctx context.Context) ([]user.User, error)
}

type Dispatcher struct {
	users     UserLister
	upcoming  upcoming.Service
	publisher Publisher
	cfg       config.Reminders
}

func NewDispatcher(users UserLister, upcomingService upcoming.Service, publisher Publisher, cfg config.Reminders) *Dispatcher {
	return &Dispatcher{users: users, upcoming: upcomingService, publisher: publisher, cfg: cfg}
}

// Run publishes a reminder for every occurrence due within the reminder horizon of every user.
// A failing user does not stop the others; their errors are joined. It returns the number of
// messages published.
func (d *Dispatcher) Run(ctx context.Context) (int, error) {
	users, err := d.users.GetAllUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var published atomic.Int64
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	if d.cfg.Concurrency > 0 {
		g.SetLimit(d.cfg.Concurrency)
	}
	for _, u := range users {
		g.Go(func() error {
			count, err := d.remindUser(gctx, u)
			published.Add(int64(count))
			if err != nil {
				log.Errorf("Reminders for user %d failed: %v", u.Id, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %d: %w", u.Id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	total := int(published.Load())
	log.Infof("Published %d reminders for %d users", total, len(users))
	return total, errors.Join(errs...)
}

func (d *Dispatcher) remindUser(ctx context.Context, u user.User) (int, error) {
	result, err := d.upcoming.ProjectForUser(ctx, u, d.cfg.HorizonDays)
	if err != nil {
		return 0, err
	}

	count := 0
	var errs []error
	for _, item := range result.Projection.Items {
		msg := Message{
			UserUid:       u.Uid,
			ObligationUid: item.Obligation.ID,
			Description:   item.Obligation.Description,
			Amount:        item.Obligation.Amount,
			DueDate:       item.NextOccurrence,
			DaysLeft:      result.Window.ReferenceDate.DaysBetween(item.NextOccurrence),
		}
		if err := d.publisher.Publish(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("publish reminder for %s: %w", item.Obligation.ID, err))
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

// Schedule registers Run on c using a standard five-field cron spec.
func (d *Dispatcher) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := d.Run(context.Background()); err != nil {
			log.Warnf("Reminder run finished with errors: %v", err)
		}
	})
}
