package rabbitmq

import (
	"context"

	postgressystemevent "github.com/shiftpay/usdt-gateway/internal/adapters/postgres/systemevent"
	"github.com/shiftpay/usdt-gateway/internal/domain/systemevent"
	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

// MirroringSystemEventRepository persists a SystemEvent and then mirrors it
// onto the events exchange, so invoice and matcher escalations are both
// durably recorded and observable to external consumers without either
// caller knowing about RabbitMQ.
type MirroringSystemEventRepository struct {
	repo     postgressystemevent.Repository
	producer ProducerRepository
	logger   mlog.Logger
}

// NewMirroringSystemEventRepository returns a Repository that writes
// through to repo and best-effort publishes to producer.
func NewMirroringSystemEventRepository(repo postgressystemevent.Repository, producer ProducerRepository, logger mlog.Logger) *MirroringSystemEventRepository {
	if logger == nil {
		logger = mlog.NoneLogger{}
	}

	return &MirroringSystemEventRepository{repo: repo, producer: producer, logger: logger}
}

// Create persists e and publishes it. A publish failure is logged, not
// returned: the durable row is the source of truth, the exchange mirror is
// a best-effort fan-out for external consumers.
func (r *MirroringSystemEventRepository) Create(ctx context.Context, e *systemevent.SystemEvent) error {
	if err := r.repo.Create(ctx, e); err != nil {
		return err
	}

	if r.producer == nil {
		return nil
	}

	if err := PublishSystemEvent(ctx, r.producer, e); err != nil {
		r.logger.Warnf("failed to mirror system event %s to rabbitmq: %v", e.ID, err)
	}

	return nil
}
