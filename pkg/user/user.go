package user

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	Settings    Settings
}

type Settings struct {
	// Timezone is an IANA name. It decides which calendar day is "today" for the user.
	Timezone string
	Currency string
}

// Location resolves the user's timezone, falling back to UTC when it is empty or unknown.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q, falling back to UTC", s.Timezone)
		return time.UTC
	}
	return loc
}
