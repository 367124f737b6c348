package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/repository"
)

const alertLimit = 5

// Alerts lists what an admin should look at first.
type Alerts struct {
	LowStock     []domain.Product
	RecentOrders []domain.Order
}

// AdminService backs the storefront admin panel.
type AdminService struct {
	identities port.IdentityRepository
	products   port.ProductCatalog
	orders     port.OrderRepository
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(identities port.IdentityRepository, products port.ProductCatalog, orders port.OrderRepository, events port.EventPublisher, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		identities: identities,
		products:   products,
		orders:     orders,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *AdminService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Dashboard counts users, products and orders.
func (s *AdminService) Dashboard(ctx context.Context) (domain.DashboardCounts, error) {
	users, err := s.identities.Count(ctx)
	if err != nil {
		return domain.DashboardCounts{}, fmt.Errorf("count users: %w", err)
	}
	products, err := s.products.Count(ctx)
	if err != nil {
		return domain.DashboardCounts{}, fmt.Errorf("count products: %w", err)
	}
	orders, err := s.orders.Count(ctx)
	if err != nil {
		return domain.DashboardCounts{}, fmt.Errorf("count orders: %w", err)
	}
	return domain.DashboardCounts{Users: users, Products: products, Orders: orders}, nil
}

// ListUsers returns every identity, newest first.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	users, err := s.identities.List(ctx, port.IdentityFilter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes an identity. Admins cannot remove their own account.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return invalidInput("you cannot delete your own account")
	}
	if err := s.identities.Delete(ctx, id); err != nil {
		return translateRepoError("delete user", err)
	}

	if s.events != nil {
		event := domain.IdentityDeletedEvent{
			EventID:    uuid.NewString(),
			IdentityID: id,
			DeletedBy:  actorID,
			DeletedAt:  s.now().UTC(),
		}
		if err := s.events.PublishIdentityDeleted(ctx, event); err != nil {
			s.logger.Warn("publish identity deleted event failed", zap.String("identity_id", id), zap.Error(err))
		}
	}
	return nil
}

// ToggleRole switches an admin to user and anyone else to admin. Admins cannot demote themselves.
func (s *AdminService) ToggleRole(ctx context.Context, actorID, id string) (domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return domain.Identity{}, translateRepoError("load user", err)
	}

	to := domain.RoleAdmin
	if identity.Role == domain.RoleAdmin {
		if id == actorID {
			return domain.Identity{}, fmt.Errorf("%w: you cannot demote yourself", ErrForbidden)
		}
		to = domain.RoleUser
	}

	now := s.now().UTC()
	if err := s.identities.UpdateRole(ctx, id, identity.Role, to, now); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return domain.Identity{}, fmt.Errorf("%w: role was changed concurrently", ErrConflict)
		}
		return domain.Identity{}, translateRepoError("update role", err)
	}

	if s.events != nil {
		event := domain.RoleChangedEvent{
			EventID:    uuid.NewString(),
			IdentityID: id,
			From:       identity.Role,
			To:         to,
			ChangedBy:  actorID,
			ChangedAt:  now,
		}
		if err := s.events.PublishRoleChanged(ctx, event); err != nil {
			s.logger.Warn("publish role changed event failed", zap.String("identity_id", id), zap.Error(err))
		}
	}

	identity.Role = to
	identity.UpdatedAt = now
	return *identity, nil
}

// ListOrders returns every order, newest first.
func (s *AdminService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order to status.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, actorID, id string, status domain.OrderStatus) error {
	if !status.Valid() {
		return invalidInput("unknown order status %q", status)
	}

	previous, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return translateRepoError("update order status", err)
	}

	if s.events != nil && previous != status {
		event := domain.OrderStatusChangedEvent{
			EventID:   uuid.NewString(),
			OrderID:   id,
			From:      previous,
			To:        status,
			ChangedBy: actorID,
			ChangedAt: s.now().UTC(),
		}
		if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Warn("publish order status event failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	return nil
}

// DeleteOrder removes an order.
func (s *AdminService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return translateRepoError("delete order", err)
	}
	return nil
}

// Alerts returns up to five low-stock products and the five newest orders.
func (s *AdminService) Alerts(ctx context.Context) (Alerts, error) {
	lowStock, err := s.products.ListLowStock(ctx, domain.LowStockThreshold, alertLimit)
	if err != nil {
		return Alerts{}, fmt.Errorf("list low stock products: %w", err)
	}
	recent, err := s.orders.List(ctx, alertLimit)
	if err != nil {
		return Alerts{}, fmt.Errorf("list recent orders: %w", err)
	}
	return Alerts{LowStock: lowStock, RecentOrders: recent}, nil
}
