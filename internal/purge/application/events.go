package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Routing keys for purge events.
const (
	EventItemDeleted  = "tweet.deleted"
	EventRunCompleted = "purge.completed"
	EventRunAborted   = "purge.aborted"
)

// Event is the envelope published for every purge event.
type Event struct {
	EventID    uuid.UUID `json:"event_id"`
	RoutingKey string    `json:"routing_key"`
	RunID      string    `json:"run_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// eventEmitter publishes events and never fails the caller.
type eventEmitter struct {
	publisher eventbus.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func (e eventEmitter) emit(ctx context.Context, runID, routingKey string, payload any) {
	if e.publisher == nil {
		return
	}
	body, err := json.Marshal(Event{
		EventID:    uuid.New(),
		RoutingKey: routingKey,
		RunID:      runID,
		OccurredAt: e.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		e.logger.Warn("event encode failed", "routing_key", routingKey, "error", err)
		return
	}
	if err := e.publisher.Publish(context.WithoutCancel(ctx), routingKey, body); err != nil {
		e.logger.Warn("event publish failed", "routing_key", routingKey, "error", err)
	}
}
