package port

import (
	"context"

	"github.com/arklim/learnstore/internal/core/domain"
)

// CourseCatalog reads courses. Catalog maintenance happens outside this service.
type CourseCatalog interface {
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	GetCourses(ctx context.Context, ids []string) ([]domain.Course, error)
}

// ProductCatalog reads products. Catalog maintenance happens outside this service.
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)
	ListLowStock(ctx context.Context, threshold int, limit int64) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
}

// OrderRepository exposes persistence behavior for orders.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// ListByIdentity returns the orders of one identity, newest first.
	ListByIdentity(ctx context.Context, identityID string) ([]domain.Order, error)
	// List returns all orders newest first; limit <= 0 means no limit.
	List(ctx context.Context, limit int64) ([]domain.Order, error)
	// UpdateStatus sets the status and returns the status it replaced.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.OrderStatus, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}
