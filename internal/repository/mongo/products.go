package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
)

type productDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Stock       int                `bson:"stock"`
	Category    string             `bson:"category"`
	State       string             `bson:"state"`
	Image       string             `bson:"image"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// ProductRepository reads the products collection.
type ProductRepository struct {
	col *mongo.Collection
}

// NewProductRepository wires a Mongo-backed product catalog.
func NewProductRepository(col *mongo.Collection) *ProductRepository {
	return &ProductRepository{col: col}
}

// GetProducts loads every product whose id is in ids. Unknown ids are skipped.
func (r *ProductRepository) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	oids := parseObjectIDs(ids)
	if len(oids) == 0 {
		return []domain.Product{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, nil)
}

// ListLowStock returns products with stock below threshold, lowest stock first.
func (r *ProductRepository) ListLowStock(ctx context.Context, threshold int, limit int64) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stock", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, bson.M{"stock": bson.M{"$lt": threshold}}, opts)
}

// Count returns the number of catalog products.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Product, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}

	cursor, err := r.col.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Product{
			ID:          d.ID.Hex(),
			Name:        d.Name,
			Description: d.Description,
			Price:       d.Price,
			Stock:       d.Stock,
			Category:    d.Category,
			State:       d.State,
			Image:       d.Image,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}

var _ port.ProductCatalog = (*ProductRepository)(nil)
