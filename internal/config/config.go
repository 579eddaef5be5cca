package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "FINORA_"

type Application struct {
	Host      string    `koanf:"host"`
	Port      int       `koanf:"port"`
	Log       Log       `koanf:"log"`
	Google    Google    `koanf:"google"`
	Database  Database  `koanf:"db"`
	Upcoming  Upcoming  `koanf:"upcoming"`
	Reminders Reminders `koanf:"reminders"`
	Amqp      Amqp      `koanf:"amqp"`
}

type Log struct {
	Format string `koanf:"format"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`

	// MaxConns caps the pgx pool size.
	MaxConns int32 `koanf:"maxconns"`
}

type Upcoming struct {
	DefaultHorizonDays int `koanf:"defaulthorizondays"`
	MaxHorizonDays     int `koanf:"maxhorizondays"`
}

type Reminders struct {
	Enabled     bool   `koanf:"enabled"`
	Schedule    string `koanf:"schedule"`
	HorizonDays int    `koanf:"horizondays"`
	Concurrency int    `koanf:"concurrency"`
}

type Amqp struct {
	Url      string `koanf:"url"`
	Exchange string `koanf:"exchange"`
	Queue    string `koanf:"queue"`
}

// RemindersActive reports whether the reminder job should be scheduled.
func (a Application) RemindersActive() bool {
	return a.Reminders.Enabled && a.Amqp.Url != ""
}

func Defaults() Application {
	return Application{
		Host: "http://localhost:3000",
		Port: 8181,
		Log: Log{
			Format: "text",
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "finora",
			Pass:     "",
			Name:     "finora",
			Schema:   "finora",
			MaxConns: 10,
		},
		Upcoming: Upcoming{
			DefaultHorizonDays: 30,
			MaxHorizonDays:     366,
		},
		Reminders: Reminders{
			Enabled:     true,
			Schedule:    "0 7 * * *",
			HorizonDays: 3,
			Concurrency: 4,
		},
		Amqp: Amqp{
			Exchange: "finora",
			Queue:    "obligation.due",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	if err := app.Validate(); err != nil {
		return Application{}, err
	}

	return app, nil
}

// Validate reports every invalid setting at once.
func (a Application) Validate() error {
	var errs []error

	if a.Port < 1 || a.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", a.Port))
	}
	if a.Log.Format != "text" && a.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", a.Log.Format))
	}
	if a.Database.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("db.maxconns must be at least 1, got %d", a.Database.MaxConns))
	}
	if a.Upcoming.MaxHorizonDays < 0 {
		errs = append(errs, fmt.Errorf("upcoming.maxhorizondays must not be negative, got %d", a.Upcoming.MaxHorizonDays))
	}
	if a.Upcoming.DefaultHorizonDays < 0 || a.Upcoming.DefaultHorizonDays > a.Upcoming.MaxHorizonDays {
		errs = append(errs, fmt.Errorf("upcoming.defaulthorizondays must be between 0 and %d, got %d",
			a.Upcoming.MaxHorizonDays, a.Upcoming.DefaultHorizonDays))
	}
	if a.Reminders.Enabled {
		if _, err := cron.ParseStandard(a.Reminders.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("reminders.schedule %q is invalid: %w", a.Reminders.Schedule, err))
		}
		if a.Reminders.HorizonDays < 0 {
			errs = append(errs, fmt.Errorf("reminders.horizondays must not be negative, got %d", a.Reminders.HorizonDays))
		}
		if a.Reminders.Concurrency < 1 {
			errs = append(errs, fmt.Errorf("reminders.concurrency must be at least 1, got %d", a.Reminders.Concurrency))
		}
	}
	if a.Amqp.Url != "" {
		u, err := url.Parse(a.Amqp.Url)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			errs = append(errs, fmt.Errorf("amqp.url must use the amqp or amqps scheme"))
		}
	}

	return errors.Join(errs...)
}
