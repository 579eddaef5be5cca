package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/finora/finora/internal/config"
	"github.com/finora/finora/internal/database"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

// Application wires configuration, database, router, scheduler and server lifecycle.
type Application struct {
	cfg       config.Application
	db        *pgxpool.Pool
	deps      *Dependencies
	router    *mux.Router
	scheduler *cron.Cron
	srv       *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, cfg config.Application) (*Application, error) {
	ConfigureLogging(cfg.Log)

	if err := database.Migrate(cfg.Database); err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	deps := BuildDependencies(db, cfg)
	r := NewRouter(deps)

	scheduler := cron.New()
	if deps.ReminderDispatcher != nil {
		if _, err := deps.ReminderDispatcher.Schedule(scheduler, cfg.Reminders.Schedule); err != nil {
			deps.Close()
			db.Close()
			return nil, fmt.Errorf("failed to schedule reminders: %w", err)
		}
		log.Infof("Payment reminders scheduled at %q", cfg.Reminders.Schedule)
	}

	srv := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, deps: deps, router: r, scheduler: scheduler, srv: srv}, nil
}

// NewRouter builds the router with middleware and all API routes.
func NewRouter(deps *Dependencies) *mux.Router {
	r := mux.NewRouter()
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)
	return r
}

// ConfigureLogging switches logrus to JSON output when requested.
func ConfigureLogging(cfg config.Log) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// Run starts the scheduler and the HTTP server and blocks until ctx is cancelled or the server
// fails. On return the server is drained and all resources are released.
func (a *Application) Run(ctx context.Context) error {
	defer a.db.Close()
	defer a.deps.Close()

	a.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-serverErr:
		runErr = err
	}

	stopped := a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("failed to shut down server: %v", err)
		runErr = errors.Join(runErr, err)
	}

	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
		log.Warn("Reminder job still running after shutdown timeout")
	}
	return runErr
}
