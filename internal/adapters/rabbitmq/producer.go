// Package rabbitmq publishes operational events (collisions, collision
// exhaustion) onto an exchange for external consumers, grounded on the
// teacher's components/consumer/internal/adapters/rabbitmq producer, with
// the tracer spans and lib-commons header propagation dropped since this
// repository doesn't wire OpenTelemetry (see DESIGN.md).
package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
	"github.com/shiftpay/usdt-gateway/pkg/mrabbitmq"
)

// ProducerRepository publishes messages to the events exchange.
type ProducerRepository interface {
	Publish(ctx context.Context, exchange, key string, message []byte) error
}

// ProducerRabbitMQRepository is the amqp091-go implementation of
// ProducerRepository.
type ProducerRabbitMQRepository struct {
	conn   *mrabbitmq.RabbitMQConnection
	logger mlog.Logger
}

// NewProducerRabbitMQ returns a ProducerRepository backed by conn.
func NewProducerRabbitMQ(conn *mrabbitmq.RabbitMQConnection, logger mlog.Logger) *ProducerRabbitMQRepository {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &ProducerRabbitMQRepository{conn: conn, logger: logger}
}

// Publish sends message to exchange under key as a persistent, JSON
// message, the same publish shape the teacher's producer uses.
func (p *ProducerRabbitMQRepository) Publish(ctx context.Context, exchange, key string, message []byte) error {
	ch, err := p.conn.GetChannel(ctx)
	if err != nil {
		return err
	}

	p.logger.Infof("publishing to exchange %s key %s", exchange, key)

	err = ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         message,
	})
	if err != nil {
		p.logger.Errorf("failed to publish message: %s", err)
		return err
	}

	return nil
}
