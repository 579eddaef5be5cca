package event_bus

import "github.com/google/uuid"

const ObligationChangedType EventType = "obligation.changed"

type ObligationChangeKind string

const (
	ObligationCreated ObligationChangeKind = "created"
	ObligationUpdated ObligationChangeKind = "updated"
	ObligationDeleted ObligationChangeKind = "deleted"
)

// ObligationChanged is published after a recurring obligation of a user was written.
type ObligationChanged struct {
	UserId        int
	ObligationUid uuid.UUID
	Change        ObligationChangeKind
}
