package port

import (
	"context"

	"github.com/arklim/learnstore/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error
	PublishIdentityDeleted(ctx context.Context, event domain.IdentityDeletedEvent) error
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error
}
