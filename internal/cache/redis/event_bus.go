package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// eventChannel is the Pub/Sub channel carrying committed loan events.
const eventChannel = "flashlend:events"

// EventBus implements domain.EventBus on Redis Pub/Sub so every instance's
// websocket clients see loan events committed anywhere in the fleet.
type EventBus struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client, logger *slog.Logger) *EventBus {
	return &EventBus{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "event_bus")),
	}
}

var _ domain.EventBus = (*EventBus)(nil)

type wireEvent struct {
	ID        string    `json:"id"`
	Borrower  domain.ID `json:"borrower"`
	Kind      string    `json:"kind"`
	Event     string    `json:"event"`
	Amount    uint64    `json:"amount"`
	Fee       uint64    `json:"fee"`
	Profit    uint64    `json:"profit"`
	CreatedAt time.Time `json:"created_at"`
}

// Publish sends a committed loan event to the fleet-wide channel.
func (b *EventBus) Publish(ctx context.Context, event domain.LoanEvent) error {
	payload, err := json.Marshal(wireEvent{
		ID:        event.ID,
		Borrower:  event.Borrower,
		Kind:      string(event.Kind),
		Event:     event.Event,
		Amount:    event.Amount,
		Fee:       event.Fee,
		Profit:    event.Profit,
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", event.ID, err)
	}
	if err := b.rdb.Publish(ctx, eventChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish event %s: %w", event.ID, err)
	}
	return nil
}

// Subscribe returns a channel of loan events published anywhere in the
// fleet. The subscription closes with the context; malformed payloads are
// logged and skipped.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan domain.LoanEvent, error) {
	pubsub := b.rdb.Subscribe(ctx, eventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", eventChannel, err)
	}

	out := make(chan domain.LoanEvent)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var we wireEvent
				if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
					b.logger.Warn("dropping malformed event payload", slog.String("error", err.Error()))
					continue
				}
				ev := domain.LoanEvent{
					ID:        we.ID,
					Borrower:  we.Borrower,
					Kind:      domain.LoanKind(we.Kind),
					Event:     we.Event,
					Amount:    we.Amount,
					Fee:       we.Fee,
					Profit:    we.Profit,
					CreatedAt: we.CreatedAt,
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
