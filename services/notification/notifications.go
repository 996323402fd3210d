package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
)

// Event is the fire-and-forget payload emitted on every ledger operation
// and order status change.
type Event struct {
	Kind        string `json:"kind"`
	AccountID   int64  `json:"account_id,omitempty"`
	ShopID      int64  `json:"shop_id,omitempty"`
	ReferenceID string `json:"reference_id"`
	Amount      string `json:"amount,omitempty"`
	Description string `json:"description,omitempty"`
}

func KindWallet(op string) string {
	return "wallet." + op
}

func KindOrder(status string) string {
	return "order." + status
}

type EventPublisher interface {
	Publish(topic string, event any) error
}

// Dispatcher persists a notification row and publishes the event to the
// broker. Both happen off the request path; a delivery failure is logged
// and never rolls back the operation that produced the event.
type Dispatcher struct {
	store     db.DB
	publisher EventPublisher
	topic     string
	logger    *logging.Logger
}

func NewDispatcher(store db.DB, publisher EventPublisher, topic string, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

func (d *Dispatcher) Notify(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if d.store != nil {
			payload, _ := json.Marshal(event)
			_, err := d.store.ExecContext(ctx, `
				INSERT INTO notifications (account_id, kind, payload)
				VALUES ($1, $2, $3)
			`, event.AccountID, event.Kind, payload)
			if err != nil {
				d.logger.Error(fmt.Sprintf("could not persist notification %s: %v", event.Kind, err))
			}
		}

		if d.publisher != nil {
			if err := d.publisher.Publish(d.topic, event); err != nil {
				d.logger.Error(fmt.Sprintf("could not publish notification %s: %v", event.Kind, err))
			}
		}
	}()
}
