package reminder

import (
	"context"

	"github.com/finora/finora/pkg/recurrence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Message announces a single upcoming payment of a user.
type Message struct {
	UserUid       string                  `json:"userUid"`
	ObligationUid uuid.UUID               `json:"obligationUid"`
	Description   string                  `json:"description"`
	Amount        decimal.Decimal         `json:"amount"`
	DueDate       recurrence.CalendarDate `json:"dueDate"`
	DaysLeft      int                     `json:"daysLeft"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// JSONSender is satisfied by the AMQP client.
type JSONSender interface {
	PublishJSON(ctx context.Context, payload any) error
}

// BrokerPublisher publishes reminder messages as JSON through a message broker.
type BrokerPublisher struct {
	sender JSONSender
}

func NewBrokerPublisher(sender JSONSender) *BrokerPublisher {
	return &BrokerPublisher{sender: sender}
}

func (p *BrokerPublisher) Publish(ctx context.Context, msg Message) error {
	return p.sender.PublishJSON(ctx, msg)
}
