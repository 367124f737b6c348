package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. It is used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, identityID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("identity_id", identityID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishIdentityRegistered logs identity.registered events.
func (p *StubPublisher) PublishIdentityRegistered(_ context.Context, event domain.IdentityRegisteredEvent) error {
	p.logEvent(EventIdentityRegistered, event.IdentityID, event.RegisteredAt,
		zap.String("role", string(event.Role)),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("phone", logger.MaskPhone(event.Phone)),
		zap.String("method", event.Method),
	)
	return nil
}

// PublishLoginSucceeded logs identity.login events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logEvent(EventLoginSucceeded, event.IdentityID, event.At,
		zap.String("role", string(event.Role)),
		zap.String("method", event.Method),
	)
	return nil
}

// PublishPasswordChanged logs identity.password_changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.IdentityID, event.ChangedAt, zap.String("changed_by", event.ChangedBy))
	return nil
}

// PublishRoleChanged logs identity.role_changed events.
func (p *StubPublisher) PublishRoleChanged(_ context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(EventRoleChanged, event.IdentityID, event.ChangedAt,
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

// PublishIdentityDeleted logs identity.deleted events.
func (p *StubPublisher) PublishIdentityDeleted(_ context.Context, event domain.IdentityDeletedEvent) error {
	p.logEvent(EventIdentityDeleted, event.IdentityID, event.DeletedAt, zap.String("deleted_by", event.DeletedBy))
	return nil
}

// PublishOrderPlaced logs order.placed events.
func (p *StubPublisher) PublishOrderPlaced(_ context.Context, event domain.OrderPlacedEvent) error {
	p.logEvent(EventOrderPlaced, event.IdentityID, event.PlacedAt,
		zap.String("order_id", event.OrderID),
		zap.Float64("total_amount", event.TotalAmount),
		zap.Int("item_count", event.ItemCount),
	)
	return nil
}

// PublishOrderStatusChanged logs order.status_changed events.
func (p *StubPublisher) PublishOrderStatusChanged(_ context.Context, event domain.OrderStatusChangedEvent) error {
	p.logEvent(EventOrderStatusChanged, "", event.ChangedAt,
		zap.String("order_id", event.OrderID),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
