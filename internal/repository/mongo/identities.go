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

type identityDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Name         string               `bson:"name"`
	Email        string               `bson:"email,omitempty"`
	Phone        string               `bson:"phone,omitempty"`
	PasswordHash string               `bson:"password_hash,omitempty"`
	Role         string               `bson:"role"`
	Avatar       string               `bson:"avatar,omitempty"`
	Notes        string               `bson:"notes,omitempty"`
	OTP          *challengeDocument   `bson:"otp,omitempty"`
	Enrollments  []enrollmentDocument `bson:"enrolled_courses,omitempty"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

type challengeDocument struct {
	CodeHash  string    `bson:"code_hash"`
	IssuedAt  time.Time `bson:"issued_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type enrollmentDocument struct {
	CourseID          primitive.ObjectID `bson:"course_id"`
	Progress          int                `bson:"progress"`
	CompletedLectures []string           `bson:"completed_lectures"`
	EnrolledAt        time.Time          `bson:"enrolled_at"`
}

// listingProjection keeps secrets out of bulk reads.
var listingProjection = bson.M{"password_hash": 0, "otp": 0}

// IdentityRepository implements port.IdentityRepository on the users collection.
type IdentityRepository struct {
	col *mongo.Collection
}

// NewIdentityRepository wires a Mongo-backed identity repository.
func NewIdentityRepository(col *mongo.Collection) *IdentityRepository {
	return &IdentityRepository{col: col}
}

// EnsureIndexes creates sparse unique indexes on email and phone.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create identity indexes: %w", err)
	}
	return nil
}

// Create inserts a new identity and returns it with its generated id.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	doc := newIdentityDocument(identity)
	doc.ID = primitive.NewObjectID()

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return domain.Identity{}, fmt.Errorf("insert identity: %w", translateError(err))
	}

	return doc.toDomain(), nil
}

// GetByID loads an identity by its hex object id.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByLogin loads the identity whose email or phone equals the login identifier.
func (r *IdentityRepository) GetByLogin(ctx context.Context, login domain.LoginID) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{loginField(login): login.Value})
}

// List returns identities newest first, without password hashes and challenges.
func (r *IdentityRepository) List(ctx context.Context, filter port.IdentityFilter) ([]domain.Identity, error) {
	opts := newestFirst(filter.Limit).SetProjection(listingProjection)

	cursor, err := r.col.Find(ctx, roleFilter(filter.Roles), opts)
	if err != nil {
		return nil, fmt.Errorf("find identities: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []identityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode identities: %w", err)
	}

	out := make([]domain.Identity, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// Count returns the number of identities holding one of roles (all identities when empty).
func (r *IdentityRepository) Count(ctx context.Context, roles ...domain.Role) (int64, error) {
	n, err := r.col.CountDocuments(ctx, roleFilter(roles))
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// UpsertChallenge sets the challenge on the identity owning login, creating it from defaults when absent.
// The login field itself is populated from the equality filter on insert.
func (r *IdentityRepository) UpsertChallenge(ctx context.Context, login domain.LoginID, challenge domain.OTPChallenge, defaults domain.Identity) (domain.Identity, bool, error) {
	at := challenge.IssuedAt
	avatar := defaults.Avatar
	if avatar == "" {
		avatar = domain.DefaultAvatar
	}

	filter := bson.M{loginField(login): login.Value}
	update := bson.M{
		"$set": bson.M{
			"otp":        newChallengeDocument(challenge),
			"updated_at": at,
		},
		"$setOnInsert": bson.M{
			"name":       defaults.Name,
			"role":       string(defaults.Role),
			"avatar":     avatar,
			"created_at": at,
		},
	}

	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("upsert challenge: %w", translateError(err))
	}

	identity, err := r.findOne(ctx, filter)
	if err != nil {
		return domain.Identity{}, false, err
	}

	return *identity, res.UpsertedID != nil, nil
}

// SetChallenge overwrites the challenge of an existing identity.
func (r *IdentityRepository) SetChallenge(ctx context.Context, id string, challenge domain.OTPChallenge) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"otp":        newChallengeDocument(challenge),
			"updated_at": challenge.IssuedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ConsumeChallenge is the compare-and-clear step of OTP verification. The filter only matches
// while the stored digest equals codeHash and the challenge is unexpired, so at most one caller
// can clear a given challenge.
func (r *IdentityRepository) ConsumeChallenge(ctx context.Context, id string, codeHash string, at time.Time) (bool, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return false, nil
	}

	filter := bson.M{
		"_id":            oid,
		"otp.code_hash":  codeHash,
		"otp.expires_at": bson.M{"$gt": at},
	}
	update := bson.M{
		"$unset": bson.M{"otp": ""},
		"$set":   bson.M{"updated_at": at},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// ClaimCredential stores the claim only while the identity has no credential.
func (r *IdentityRepository) ClaimCredential(ctx context.Context, id string, claim domain.CredentialClaim, at time.Time) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}

	filter := bson.M{
		"_id": oid,
		"$or": bson.A{
			bson.M{"password_hash": bson.M{"$exists": false}},
			bson.M{"password_hash": ""},
		},
	}
	set := bson.M{"password_hash": claim.PasswordHash, "updated_at": at}
	if claim.Name != "" {
		set["name"] = claim.Name
	}
	if claim.Phone != "" {
		set["phone"] = claim.Phone
	}
	if claim.Role != "" {
		set["role"] = string(claim.Role)
	}

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("claim credential: %w", translateError(err))
	}
	if res.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"password_hash": passwordHash, "updated_at": at},
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Update applies patch and returns the updated identity. Empty email or phone values unset
// the field so the sparse unique indexes keep ignoring it.
func (r *IdentityRepository) Update(ctx context.Context, id string, patch domain.IdentityPatch, at time.Time) (*domain.Identity, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	oid, err := parseObjectID(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}

	set := bson.M{"updated_at": at}
	unset := bson.M{}
	assign := func(field string, value *string) {
		if value == nil {
			return
		}
		if *value == "" {
			unset[field] = ""
			return
		}
		set[field] = *value
	}
	assign("name", patch.Name)
	assign("email", patch.Email)
	assign("phone", patch.Phone)
	assign("avatar", patch.Avatar)
	assign("notes", patch.Notes)
	assign("password_hash", patch.PasswordHash)

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var doc identityDocument
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("update identity: %w", translateError(err))
	}

	identity := doc.toDomain()
	return &identity, nil
}

// UpdateRole changes the role only while the stored role equals from.
func (r *IdentityRepository) UpdateRole(ctx context.Context, id string, from, to domain.Role, at time.Time) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "role": string(from)},
		bson.M{"$set": bson.M{"role": string(to), "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

// Delete removes the identity when its role is one of roles.
func (r *IdentityRepository) Delete(ctx context.Context, id string, roles ...domain.Role) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}

	filter := roleFilter(roles)
	filter["_id"] = oid

	res, err := r.col.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddEnrollment pushes enrollment unless the identity is already enrolled in the course.
func (r *IdentityRepository) AddEnrollment(ctx context.Context, id string, enrollment domain.Enrollment) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}
	courseID, err := parseObjectID(enrollment.CourseID)
	if err != nil {
		return err
	}

	doc := enrollmentDocument{
		CourseID:          courseID,
		Progress:          enrollment.Progress,
		CompletedLectures: []string{},
		EnrolledAt:        enrollment.EnrolledAt,
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "enrolled_courses.course_id": bson.M{"$ne": courseID}},
		bson.M{
			"$push": bson.M{"enrolled_courses": doc},
			"$set":  bson.M{"updated_at": enrollment.EnrolledAt},
		},
	)
	if err != nil {
		return fmt.Errorf("add enrollment: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

// CompleteLecture records lectureID on the matching enrollment and stores the new progress.
func (r *IdentityRepository) CompleteLecture(ctx context.Context, id, courseID, lectureID string, progress int) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return repository.ErrNotFound
	}
	courseOID, err := parseObjectID(courseID)
	if err != nil {
		return repository.ErrPreconditionFailed
	}

	filter := bson.M{
		"_id": oid,
		"enrolled_courses": bson.M{"$elemMatch": bson.M{
			"course_id":          courseOID,
			"completed_lectures": bson.M{"$ne": lectureID},
		}},
	}
	update := bson.M{
		"$addToSet": bson.M{"enrolled_courses.$.completed_lectures": lectureID},
		"$set":      bson.M{"enrolled_courses.$.progress": progress},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("complete lecture: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	var doc identityDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		err = translateError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	identity := doc.toDomain()
	return &identity, nil
}

func loginField(login domain.LoginID) string {
	if login.Kind == domain.LoginKindPhone {
		return "phone"
	}
	return "email"
}

func roleFilter(roles []domain.Role) bson.M {
	if len(roles) == 0 {
		return bson.M{}
	}
	values := make(bson.A, 0, len(roles))
	for _, role := range roles {
		values = append(values, string(role))
	}
	return bson.M{"role": bson.M{"$in": values}}
}

func newChallengeDocument(c domain.OTPChallenge) challengeDocument {
	return challengeDocument{
		CodeHash:  c.CodeHash,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	}
}

func newIdentityDocument(identity domain.Identity) identityDocument {
	doc := identityDocument{
		Name:         identity.Name,
		Email:        identity.Email,
		Phone:        identity.Phone,
		PasswordHash: identity.PasswordHash,
		Role:         string(identity.Role),
		Avatar:       identity.Avatar,
		Notes:        identity.Notes,
		CreatedAt:    identity.CreatedAt,
		UpdatedAt:    identity.UpdatedAt,
	}
	if doc.Avatar == "" {
		doc.Avatar = domain.DefaultAvatar
	}
	if identity.Challenge != nil {
		ch := newChallengeDocument(*identity.Challenge)
		doc.OTP = &ch
	}
	return doc
}

func (d identityDocument) toDomain() domain.Identity {
	identity := domain.Identity{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		Avatar:       d.Avatar,
		Notes:        d.Notes,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.OTP != nil {
		identity.Challenge = &domain.OTPChallenge{
			CodeHash:  d.OTP.CodeHash,
			IssuedAt:  d.OTP.IssuedAt,
			ExpiresAt: d.OTP.ExpiresAt,
		}
	}
	for _, e := range d.Enrollments {
		identity.Enrollments = append(identity.Enrollments, domain.Enrollment{
			CourseID:            e.CourseID.Hex(),
			Progress:            e.Progress,
			CompletedLectureIDs: append([]string(nil), e.CompletedLectures...),
			EnrolledAt:          e.EnrolledAt,
		})
	}
	return identity
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
