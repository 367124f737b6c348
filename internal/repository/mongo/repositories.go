package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arklim/learnstore/internal/repository"
)

const (
	identitiesCollection = "users"
	coursesCollection    = "courses"
	productsCollection   = "products"
	ordersCollection     = "orders"
)

// Repositories groups the Mongo-backed repository implementations of one deployment.
type Repositories struct {
	Identities *IdentityRepository
	Courses    *CourseRepository
	Products   *ProductRepository
	Orders     *OrderRepository
}

// NewRepositories wires all repositories backed by the provided database.
func NewRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Identities: NewIdentityRepository(db.Collection(identitiesCollection)),
		Courses:    NewCourseRepository(db.Collection(coursesCollection)),
		Products:   NewProductRepository(db.Collection(productsCollection)),
		Orders:     NewOrderRepository(db.Collection(ordersCollection)),
	}
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func (r *Repositories) EnsureIndexes(ctx context.Context) error {
	if err := r.Identities.EnsureIndexes(ctx); err != nil {
		return err
	}
	return r.Orders.EnsureIndexes(ctx)
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	default:
		return err
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", repository.ErrInvalidID, id)
	}
	return oid, nil
}

// parseObjectIDs skips ids that cannot be object ids; they cannot match any document.
func parseObjectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func newestFirst(limit int64) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}
