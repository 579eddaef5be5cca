package app

import (
	"github.com/finora/finora/internal/amqp"
	"github.com/finora/finora/internal/config"
	"github.com/finora/finora/internal/event_bus"
	"github.com/finora/finora/internal/utils"
	"github.com/finora/finora/pkg/google"
	"github.com/finora/finora/pkg/obligation"
	"github.com/finora/finora/pkg/reminder"
	"github.com/finora/finora/pkg/upcoming"
	"github.com/finora/finora/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	UserService user.Service
	UserHandler *user.Handler

	ObligationService *obligation.ServiceImpl
	ObligationHandler *obligation.Handler

	UpcomingService *upcoming.ServiceImpl
	CsvRenderer     *upcoming.CsvRendererImpl
	UpcomingHandler *upcoming.Handler

	GoogleAuth    *google.GoogleAuth
	GoogleService google.Service
	GoogleHandler *google.Handler

	// AmqpClient and ReminderDispatcher are nil when reminders are disabled.
	AmqpClient         *amqp.Client
	ReminderDispatcher *reminder.Dispatcher

	unsubscribe []func()
}

type repositories struct {
	users       user.Repo
	obligations obligation.Repository
	googleAuth  google.AuthRepository
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := wire(repositories{
		users:       user.NewUserRepo(db),
		obligations: obligation.NewRepository(db),
		googleAuth:  google.NewAuthRepository(db),
	}, cfg, utils.SystemClock{})

	if !cfg.RemindersActive() {
		log.Info("Payment reminders are disabled")
		return deps
	}
	client, err := amqp.NewClient(cfg.Amqp)
	if err != nil {
		log.Warnf("Failed to initialize AMQP client, continuing without reminders: %v", err)
		return deps
	}
	deps.AmqpClient = client
	deps.ReminderDispatcher = reminder.NewDispatcher(
		deps.UserService,
		deps.UpcomingService,
		reminder.NewBrokerPublisher(client),
		cfg.Reminders,
	)
	return deps
}

func wire(repos repositories, cfg config.Application, clock utils.Clock) *Dependencies {
	deps := &Dependencies{Clock: clock}
	deps.EventBus = event_bus.NewEventBus()

	deps.UserService = user.NewUserService(repos.users)
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.ObligationService = obligation.NewService(repos.obligations, deps.EventBus)
	deps.ObligationHandler = obligation.NewHandler(deps.ObligationService)

	deps.UpcomingService = upcoming.NewService(deps.ObligationService, deps.Clock, cfg.Upcoming)
	deps.unsubscribe = append(deps.unsubscribe, deps.UpcomingService.SubscribeToChanges(deps.EventBus))
	deps.CsvRenderer = upcoming.NewCsvRenderer()
	deps.UpcomingHandler = upcoming.NewHandler(deps.UpcomingService, deps.CsvRenderer)

	deps.GoogleAuth = google.NewGoogleAuth(repos.googleAuth, cfg)
	deps.GoogleService = google.NewService(deps.GoogleAuth)
	deps.GoogleHandler = google.NewHandler(deps.GoogleService, deps.UpcomingHandler)

	return deps
}

// Close releases connections held by the dependencies.
func (d *Dependencies) Close() {
	for _, unsubscribe := range d.unsubscribe {
		unsubscribe()
	}
	if d.AmqpClient != nil {
		if err := d.AmqpClient.Close(); err != nil {
			log.Warnf("failed to close AMQP client: %v", err)
		}
	}
}
