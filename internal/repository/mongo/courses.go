package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/repository"
)

type courseDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Thumbnail   string             `bson:"thumbnail"`
	Instructor  struct {
		Name   string `bson:"name"`
		Bio    string `bson:"bio"`
		Avatar string `bson:"avatar"`
	} `bson:"instructor"`
	Modules []struct {
		ID      string `bson:"id"`
		Title   string `bson:"title"`
		Lessons []struct {
			ID          string `bson:"id"`
			Title       string `bson:"title"`
			Description string `bson:"description"`
			VideoURL    string `bson:"videoUrl"`
		} `bson:"lessons"`
	} `bson:"modules"`
}

// CourseRepository reads the courses collection.
type CourseRepository struct {
	col *mongo.Collection
}

// NewCourseRepository wires a Mongo-backed course catalog.
func NewCourseRepository(col *mongo.Collection) *CourseRepository {
	return &CourseRepository{col: col}
}

// GetCourse loads a single course.
func (r *CourseRepository) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	var doc courseDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		err = translateError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}

	course := doc.toDomain()
	return &course, nil
}

// GetCourses loads every course whose id is in ids. Unknown ids are skipped.
func (r *CourseRepository) GetCourses(ctx context.Context, ids []string) ([]domain.Course, error) {
	oids := parseObjectIDs(ids)
	if len(oids) == 0 {
		return []domain.Course{}, nil
	}

	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("find courses: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []courseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}

	out := make([]domain.Course, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (d courseDocument) toDomain() domain.Course {
	course := domain.Course{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Thumbnail:   d.Thumbnail,
		Instructor: domain.Instructor{
			Name:   d.Instructor.Name,
			Bio:    d.Instructor.Bio,
			Avatar: d.Instructor.Avatar,
		},
	}
	for _, m := range d.Modules {
		module := domain.CourseModule{ID: m.ID, Title: m.Title}
		for _, l := range m.Lessons {
			module.Lessons = append(module.Lessons, domain.Lesson{
				ID:          l.ID,
				Title:       l.Title,
				Description: l.Description,
				VideoURL:    l.VideoURL,
			})
		}
		course.Modules = append(course.Modules, module)
	}
	return course
}

var _ port.CourseCatalog = (*CourseRepository)(nil)
