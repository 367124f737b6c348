package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/repository"
)

type orderDocument struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty"`
	IdentityID      primitive.ObjectID  `bson:"user"`
	Items           []orderItemDocument `bson:"items"`
	TotalAmount     float64             `bson:"totalAmount"`
	ShippingAddress string              `bson:"shippingAddress"`
	Status          string              `bson:"status"`
	CreatedAt       time.Time           `bson:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at"`
}

type orderItemDocument struct {
	ProductID    primitive.ObjectID `bson:"product"`
	Name         string             `bson:"name"`
	Quantity     int                `bson:"quantity"`
	PriceAtOrder float64            `bson:"priceAtOrder"`
}

// OrderRepository implements port.OrderRepository on the orders collection.
type OrderRepository struct {
	col *mongo.Collection
}

// NewOrderRepository wires a Mongo-backed order repository.
func NewOrderRepository(col *mongo.Collection) *OrderRepository {
	return &OrderRepository{col: col}
}

// EnsureIndexes indexes orders by owner and recency.
func (r *OrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

// Create inserts order and returns it with its generated id.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	owner, err := parseObjectID(order.IdentityID)
	if err != nil {
		return domain.Order{}, err
	}

	doc := orderDocument{
		ID:              primitive.NewObjectID(),
		IdentityID:      owner,
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		pid, err := parseObjectID(item.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:    pid,
			Name:         item.Name,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		})
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", translateError(err))
	}
	return doc.toDomain(), nil
}

// GetByID loads a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	var doc orderDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		err = translateError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find order: %w", err)
	}

	order := doc.toDomain()
	return &order, nil
}

// ListByIdentity returns the orders placed by identityID, newest first.
func (r *OrderRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.Order, error) {
	owner, err := parseObjectID(identityID)
	if err != nil {
		return []domain.Order{}, nil
	}
	return r.find(ctx, bson.M{"user": owner}, newestFirst(0))
}

// List returns all orders newest first.
func (r *OrderRepository) List(ctx context.Context, limit int64) ([]domain.Order, error) {
	return r.find(ctx, bson.M{}, newestFirst(limit))
}

// UpdateStatus sets status and returns the previous one.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.OrderStatus, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return "", repository.ErrNotFound
	}

	var before orderDocument
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		err = translateError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("update order status: %w", err)
	}

	return domain.OrderStatus(before.Status), nil
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Count returns the number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Order, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (d orderDocument) toDomain() domain.Order {
	order := domain.Order{
		ID:              d.ID.Hex(),
		IdentityID:      d.IdentityID.Hex(),
		TotalAmount:     d.TotalAmount,
		ShippingAddress: d.ShippingAddress,
		Status:          domain.OrderStatus(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    item.ProductID.Hex(),
			Name:         item.Name,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		})
	}
	return order
}

var _ port.OrderRepository = (*OrderRepository)(nil)
