package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
)

// EventsExchange is the topic exchange system events are mirrored onto for
// external consumers.
const EventsExchange = "events"

// PublishSystemEvent marshals e and publishes it under a routing key equal
// to its Type, so a consumer can bind to e.g. "amount_diff_collision"
// without parsing the body.
func PublishSystemEvent(ctx context.Context, producer ProducerRepository, e *systemevent.SystemEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return producer.Publish(ctx, EventsExchange, e.Type, body)
}
