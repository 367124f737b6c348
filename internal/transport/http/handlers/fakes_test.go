package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/repository"
)

// memoryIdentityRepo mirrors the conditional-write semantics of the Mongo repository.
type memoryIdentityRepo struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]domain.Identity
	getErr error
}

func newMemoryIdentityRepo() *memoryIdentityRepo {
	return &memoryIdentityRepo{byID: make(map[string]domain.Identity)}
}

func (r *memoryIdentityRepo) nextID() string {
	r.seq++
	return fmt.Sprintf("%024x", r.seq)
}

func (r *memoryIdentityRepo) put(identity domain.Identity) domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity.ID == "" {
		identity.ID = r.nextID()
	}
	r.byID[identity.ID] = identity
	return identity
}

func (r *memoryIdentityRepo) get(id string) domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

func (r *memoryIdentityRepo) findLocked(login domain.LoginID) (domain.Identity, bool) {
	for _, identity := range r.byID {
		if login.Kind == domain.LoginKindEmail && identity.Email == login.Value {
			return identity, true
		}
		if login.Kind == domain.LoginKindPhone && identity.Phone == login.Value {
			return identity, true
		}
	}
	return domain.Identity{}, false
}

func (r *memoryIdentityRepo) duplicateLocked(identity domain.Identity) bool {
	for id, other := range r.byID {
		if id == identity.ID {
			continue
		}
		if identity.Email != "" && other.Email == identity.Email {
			return true
		}
		if identity.Phone != "" && other.Phone == identity.Phone {
			return true
		}
	}
	return false
}

func (r *memoryIdentityRepo) Create(_ context.Context, identity domain.Identity) (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.duplicateLocked(identity) {
		return domain.Identity{}, repository.ErrDuplicate
	}
	identity.ID = r.nextID()
	r.byID[identity.ID] = identity
	return identity, nil
}

func (r *memoryIdentityRepo) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	identity, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func (r *memoryIdentityRepo) GetByLogin(_ context.Context, login domain.LoginID) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	identity, ok := r.findLocked(login)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func (r *memoryIdentityRepo) List(_ context.Context, filter port.IdentityFilter) ([]domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Identity, 0, len(r.byID))
	for _, identity := range r.byID {
		if len(filter.Roles) > 0 && !identity.Principal().HasRole(filter.Roles...) {
			continue
		}
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryIdentityRepo) Count(ctx context.Context, roles ...domain.Role) (int64, error) {
	all, _ := r.List(ctx, port.IdentityFilter{Roles: roles})
	return int64(len(all)), nil
}

func (r *memoryIdentityRepo) UpsertChallenge(_ context.Context, login domain.LoginID, challenge domain.OTPChallenge, defaults domain.Identity) (domain.Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.findLocked(login)
	created := !ok
	if created {
		identity = defaults
		identity.ID = r.nextID()
		identity.CreatedAt = challenge.IssuedAt
		if login.Kind == domain.LoginKindEmail {
			identity.Email = login.Value
		} else {
			identity.Phone = login.Value
		}
	}
	c := challenge
	identity.Challenge = &c
	identity.UpdatedAt = challenge.IssuedAt
	r.byID[identity.ID] = identity
	return identity, created, nil
}

func (r *memoryIdentityRepo) SetChallenge(_ context.Context, id string, challenge domain.OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c := challenge
	identity.Challenge = &c
	r.byID[id] = identity
	return nil
}

func (r *memoryIdentityRepo) ConsumeChallenge(_ context.Context, id string, codeHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok || identity.Challenge == nil {
		return false, nil
	}
	if identity.Challenge.CodeHash != codeHash || !identity.Challenge.ExpiresAt.After(at) {
		return false, nil
	}
	identity.Challenge = nil
	r.byID[id] = identity
	return true, nil
}

func (r *memoryIdentityRepo) ClaimCredential(_ context.Context, id string, claim domain.CredentialClaim, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok || identity.PasswordHash != "" {
		return repository.ErrPreconditionFailed
	}
	if claim.Name != "" {
		identity.Name = claim.Name
	}
	if claim.Phone != "" {
		identity.Phone = claim.Phone
	}
	if claim.Role != "" {
		identity.Role = claim.Role
	}
	identity.PasswordHash = claim.PasswordHash
	if r.duplicateLocked(identity) {
		return repository.ErrDuplicate
	}
	identity.UpdatedAt = at
	r.byID[id] = identity
	return nil
}

func (r *memoryIdentityRepo) UpdatePassword(_ context.Context, id string, passwordHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = at
	r.byID[id] = identity
	return nil
}

func (r *memoryIdentityRepo) Update(_ context.Context, id string, patch domain.IdentityPatch, at time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil {
		identity.Name = *patch.Name
	}
	if patch.Email != nil {
		identity.Email = *patch.Email
	}
	if patch.Phone != nil {
		identity.Phone = *patch.Phone
	}
	if patch.Avatar != nil {
		identity.Avatar = *patch.Avatar
	}
	if patch.Notes != nil {
		identity.Notes = *patch.Notes
	}
	if patch.PasswordHash != nil {
		identity.PasswordHash = *patch.PasswordHash
	}
	if r.duplicateLocked(identity) {
		return nil, repository.ErrDuplicate
	}
	identity.UpdatedAt = at
	r.byID[id] = identity
	return &identity, nil
}

func (r *memoryIdentityRepo) UpdateRole(_ context.Context, id string, from, to domain.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok || identity.Role != from {
		return repository.ErrPreconditionFailed
	}
	identity.Role = to
	identity.UpdatedAt = at
	r.byID[id] = identity
	return nil
}

func (r *memoryIdentityRepo) Delete(_ context.Context, id string, roles ...domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok || (len(roles) > 0 && !identity.Principal().HasRole(roles...)) {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memoryIdentityRepo) AddEnrollment(_ context.Context, id string, enrollment domain.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return repository.ErrPreconditionFailed
	}
	if _, enrolled := identity.Enrollment(enrollment.CourseID); enrolled {
		return repository.ErrPreconditionFailed
	}
	identity.Enrollments = append(identity.Enrollments, enrollment)
	r.byID[id] = identity
	return nil
}

func (r *memoryIdentityRepo) CompleteLecture(_ context.Context, id, courseID, lectureID string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return repository.ErrPreconditionFailed
	}
	for i, e := range identity.Enrollments {
		if e.CourseID != courseID {
			continue
		}
		if e.HasCompleted(lectureID) {
			return repository.ErrPreconditionFailed
		}
		e.CompletedLectureIDs = append(e.CompletedLectureIDs, lectureID)
		e.Progress = progress
		identity.Enrollments[i] = e
		r.byID[id] = identity
		return nil
	}
	return repository.ErrPreconditionFailed
}

var _ port.IdentityRepository = (*memoryIdentityRepo)(nil)

type fixedCodes struct {
	codes []string
	calls int
	err   error
}

func (g *fixedCodes) Generate() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code, nil
}

type recordingDispatcher struct {
	mu          sync.Mutex
	unavailable map[domain.LoginKind]bool
	err         error
	sent        []port.Message
	channels    []domain.LoginKind
}

func (d *recordingDispatcher) Available(channel domain.LoginKind) bool {
	return !d.unavailable[channel]
}

func (d *recordingDispatcher) Dispatch(_ context.Context, channel domain.LoginKind, msg port.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	d.channels = append(d.channels, channel)
	return nil
}

// plainHasher keeps passwords readable so assertions stay simple.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("unknown hash format")
	}
	return encoded == "hashed:"+password, nil
}

type lengthPolicy struct{ min int }

func (p lengthPolicy) Validate(password string, _ ...string) error {
	if len(password) < p.min {
		return fmt.Errorf("password must be at least %d characters", p.min)
	}
	return nil
}

type stubCourses struct {
	courses map[string]domain.Course
}

func (c stubCourses) GetCourse(_ context.Context, id string) (*domain.Course, error) {
	course, ok := c.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &course, nil
}

func (c stubCourses) GetCourses(_ context.Context, ids []string) ([]domain.Course, error) {
	out := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		if course, ok := c.courses[id]; ok {
			out = append(out, course)
		}
	}
	return out, nil
}

type stubProducts struct {
	products []domain.Product
	total    int64
}

func (p stubProducts) GetProducts(_ context.Context, ids []string) ([]domain.Product, error) {
	var out []domain.Product
	for _, product := range p.products {
		for _, id := range ids {
			if product.ID == id {
				out = append(out, product)
			}
		}
	}
	return out, nil
}

func (p stubProducts) ListLowStock(_ context.Context, threshold int, limit int64) ([]domain.Product, error) {
	var out []domain.Product
	for _, product := range p.products {
		if product.Stock < threshold && int64(len(out)) < limit {
			out = append(out, product)
		}
	}
	return out, nil
}

func (p stubProducts) Count(context.Context) (int64, error) { return p.total, nil }

type memoryOrders struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (o *memoryOrders) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order.ID = fmt.Sprintf("order-%d", len(o.orders)+1)
	o.orders = append(o.orders, order)
	return order, nil
}

func (o *memoryOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	for _, order := range o.orders {
		if order.ID == id {
			return &order, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (o *memoryOrders) ListByIdentity(_ context.Context, identityID string) ([]domain.Order, error) {
	var out []domain.Order
	for i := len(o.orders) - 1; i >= 0; i-- {
		if o.orders[i].IdentityID == identityID {
			out = append(out, o.orders[i])
		}
	}
	return out, nil
}

func (o *memoryOrders) List(_ context.Context, limit int64) ([]domain.Order, error) {
	var out []domain.Order
	for i := len(o.orders) - 1; i >= 0; i-- {
		if limit > 0 && int64(len(out)) == limit {
			break
		}
		out = append(out, o.orders[i])
	}
	return out, nil
}

func (o *memoryOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (domain.OrderStatus, error) {
	for i, order := range o.orders {
		if order.ID == id {
			previous := order.Status
			o.orders[i].Status = status
			return previous, nil
		}
	}
	return "", repository.ErrNotFound
}

func (o *memoryOrders) Delete(_ context.Context, id string) error {
	for i, order := range o.orders {
		if order.ID == id {
			o.orders = append(o.orders[:i], o.orders[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (o *memoryOrders) Count(context.Context) (int64, error) { return int64(len(o.orders)), nil }
