// Package mrabbitmq owns the RabbitMQ connection used by the system-event
// producer in the poller and gateway, the same role common/mrabbitmq plays
// for the teacher's services. It targets
// github.com/rabbitmq/amqp091-go, the maintained successor to the
// streadway/amqp client the teacher's older services used.
package mrabbitmq

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

// RabbitMQConnection is a hub for the service's RabbitMQ connection.
type RabbitMQConnection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	conn      *amqp.Connection
	channel   *amqp.Channel
	Connected bool
}

// Connect opens the AMQP connection and a channel on it.
func (rc *RabbitMQConnection) Connect() error {
	if rc.Logger == nil {
		rc.Logger = mlog.NoneLogger{}
	}

	rc.Logger.Info("connecting to rabbitmq...")

	conn, err := amqp.Dial(rc.ConnectionStringSource)
	if err != nil {
		rc.Connected = false
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		rc.Connected = false
		return err
	}

	if ch == nil {
		rc.Connected = false
		return errors.New("mrabbitmq: nil channel returned by rabbitmq")
	}

	rc.conn = conn
	rc.channel = ch
	rc.Connected = true

	rc.Logger.Info("connected to rabbitmq")

	return nil
}

// GetChannel returns the open channel, connecting lazily if necessary.
func (rc *RabbitMQConnection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	if !rc.Connected {
		if err := rc.Connect(); err != nil {
			return nil, err
		}
	}

	return rc.channel, nil
}

// Close tears down the channel and connection.
func (rc *RabbitMQConnection) Close() error {
	if rc.channel != nil {
		if err := rc.channel.Close(); err != nil {
			return err
		}
	}

	if rc.conn != nil {
		return rc.conn.Close()
	}

	return nil
}
