package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
)

// OrderLine is one requested product and quantity.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// PlaceOrderInput captures a customer's checkout.
type PlaceOrderInput struct {
	Lines           []OrderLine
	ShippingAddress string
}

// OrderService places orders and lists a customer's order history.
type OrderService struct {
	orders   port.OrderRepository
	products port.ProductCatalog
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(orders port.OrderRepository, products port.ProductCatalog, events port.EventPublisher, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:   orders,
		products: products,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *OrderService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Place creates a pending order. Prices are captured from the catalog at order time and
// repeated lines for one product are merged.
func (s *OrderService) Place(ctx context.Context, identityID string, input PlaceOrderInput) (domain.Order, error) {
	if len(input.Lines) == 0 {
		return domain.Order{}, invalidInput("an order needs at least one product")
	}

	quantities := make(map[string]int, len(input.Lines))
	ids := make([]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return domain.Order{}, invalidInput("product is required")
		}
		if line.Quantity <= 0 {
			return domain.Order{}, invalidInput("quantity must be positive")
		}
		if _, seen := quantities[id]; !seen {
			ids = append(ids, id)
		}
		quantities[id] += line.Quantity
	}

	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]domain.OrderItem, 0, len(ids))
	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		items = append(items, domain.OrderItem{
			ProductID:    product.ID,
			Name:         product.Name,
			Quantity:     quantities[id],
			PriceAtOrder: product.Price,
		})
	}

	now := s.now().UTC()
	order, err := s.orders.Create(ctx, domain.Order{
		IdentityID:      identityID,
		Items:           items,
		TotalAmount:     domain.OrderTotal(items),
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return domain.Order{}, translateRepoError("create order", err)
	}

	if s.events != nil {
		event := domain.OrderPlacedEvent{
			EventID:     uuid.NewString(),
			OrderID:     order.ID,
			IdentityID:  identityID,
			TotalAmount: order.TotalAmount,
			ItemCount:   len(order.Items),
			PlacedAt:    now,
		}
		if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
			s.logger.Warn("publish order placed event failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	return order, nil
}

// MyOrders returns the caller's orders newest first. No orders at all is ErrNotFound.
func (s *OrderService) MyOrders(ctx context.Context, identityID string) ([]domain.Order, error) {
	orders, err := s.orders.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: no orders found for this user", ErrNotFound)
	}
	return orders, nil
}
