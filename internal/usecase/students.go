package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/repository"
)

// StudentInput carries the fields a teacher sets on a student account. Empty fields are left
// untouched on update.
type StudentInput struct {
	Name   string
	Email  string
	Phone  string
	Notes  string
	Avatar string
}

// EnrolledCourse pairs an enrollment with the catalog entry it refers to.
// Course is nil when the course has since been removed from the catalog.
type EnrolledCourse struct {
	Enrollment domain.Enrollment
	Course     *domain.Course
}

// StudentProfile is the student's own view of their account.
type StudentProfile struct {
	Identity domain.Identity
	Courses  []EnrolledCourse
}

// StudentService covers the teacher-run student directory and the student's own enrollment flow.
type StudentService struct {
	identities port.IdentityRepository
	courses    port.CourseCatalog
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewStudentService constructs a StudentService.
func NewStudentService(identities port.IdentityRepository, courses port.CourseCatalog, events port.EventPublisher, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		identities: identities,
		courses:    courses,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *StudentService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListStudents returns every identity with the user role, newest first.
func (s *StudentService) ListStudents(ctx context.Context) ([]domain.Identity, error) {
	students, err := s.identities.List(ctx, port.IdentityFilter{Roles: []domain.Role{domain.RoleUser}})
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// GetStudent returns the student with id. Identities with other roles are not found.
func (s *StudentService) GetStudent(ctx context.Context, id string) (domain.Identity, error) {
	return s.loadStudent(ctx, id)
}

// CreateStudent registers a credential-less student that later signs in with a one-time password.
func (s *StudentService) CreateStudent(ctx context.Context, input StudentInput) (domain.Identity, error) {
	name := strings.TrimSpace(input.Name)
	email, phone, err := parseContacts(input.Email, input.Phone)
	if err != nil {
		return domain.Identity{}, err
	}
	if name == "" || (email == "" && phone == "") {
		return domain.Identity{}, invalidInput("name and at least one of email or phone are required")
	}

	avatar := strings.TrimSpace(input.Avatar)
	if avatar == "" {
		avatar = domain.DefaultAvatar
	}

	now := s.now().UTC()
	created, err := s.identities.Create(ctx, domain.Identity{
		Name:      name,
		Email:     email,
		Phone:     phone,
		Role:      domain.RoleUser,
		Avatar:    avatar,
		Notes:     strings.TrimSpace(input.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Identity{}, translateRepoError("create student", err)
	}

	return created, nil
}

// UpdateStudent applies the non-empty fields of input to a student.
func (s *StudentService) UpdateStudent(ctx context.Context, id string, input StudentInput) (domain.Identity, error) {
	if _, err := s.loadStudent(ctx, id); err != nil {
		return domain.Identity{}, err
	}

	patch, err := buildPatch(input)
	if err != nil {
		return domain.Identity{}, err
	}

	return s.apply(ctx, id, patch)
}

// DeleteStudent removes a student. Teachers and admins cannot be removed this way.
func (s *StudentService) DeleteStudent(ctx context.Context, actorID, id string) error {
	if err := s.identities.Delete(ctx, id, domain.RoleUser); err != nil {
		return translateRepoError("delete student", err)
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

// Profile returns the student with their enrolled courses resolved from the catalog.
func (s *StudentService) Profile(ctx context.Context, id string) (StudentProfile, error) {
	student, err := s.loadStudent(ctx, id)
	if err != nil {
		return StudentProfile{}, err
	}

	ids := make([]string, 0, len(student.Enrollments))
	for _, e := range student.Enrollments {
		ids = append(ids, e.CourseID)
	}

	byID := make(map[string]domain.Course, len(ids))
	if len(ids) > 0 {
		courses, err := s.courses.GetCourses(ctx, ids)
		if err != nil {
			return StudentProfile{}, fmt.Errorf("load enrolled courses: %w", err)
		}
		for _, c := range courses {
			byID[c.ID] = c
		}
	}

	profile := StudentProfile{Identity: student, Courses: make([]EnrolledCourse, 0, len(student.Enrollments))}
	for _, e := range student.Enrollments {
		entry := EnrolledCourse{Enrollment: e}
		if c, ok := byID[e.CourseID]; ok {
			course := c
			entry.Course = &course
		}
		profile.Courses = append(profile.Courses, entry)
	}

	return profile, nil
}

// UpdateProfile applies the student's own non-empty name, email, phone and avatar.
func (s *StudentService) UpdateProfile(ctx context.Context, id string, input StudentInput) (domain.Identity, error) {
	if _, err := s.loadStudent(ctx, id); err != nil {
		return domain.Identity{}, err
	}

	input.Notes = ""
	patch, err := buildPatch(input)
	if err != nil {
		return domain.Identity{}, err
	}

	return s.apply(ctx, id, patch)
}

// Enroll adds courseID to the student's enrollments.
func (s *StudentService) Enroll(ctx context.Context, id, courseID string) ([]domain.Enrollment, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, invalidInput("courseId is required")
	}

	student, err := s.loadStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := student.Enrollment(courseID); ok {
		return nil, invalidInput("already enrolled in this course")
	}

	if _, err := s.courses.GetCourse(ctx, courseID); err != nil {
		return nil, translateRepoError("load course", err)
	}

	enrollment := domain.Enrollment{
		CourseID:   courseID,
		EnrolledAt: s.now().UTC(),
	}
	if err := s.identities.AddEnrollment(ctx, id, enrollment); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, invalidInput("already enrolled in this course")
		}
		return nil, translateRepoError("enroll", err)
	}

	return append(student.Enrollments, enrollment), nil
}

// CompleteLecture marks lectureID as completed and recomputes the course progress.
func (s *StudentService) CompleteLecture(ctx context.Context, id, courseID, lectureID string) (domain.Enrollment, error) {
	courseID = strings.TrimSpace(courseID)
	lectureID = strings.TrimSpace(lectureID)
	if courseID == "" || lectureID == "" {
		return domain.Enrollment{}, invalidInput("courseId and lectureId are required")
	}

	student, err := s.loadStudent(ctx, id)
	if err != nil {
		return domain.Enrollment{}, err
	}

	enrollment, ok := student.Enrollment(courseID)
	if !ok {
		return domain.Enrollment{}, invalidInput("not enrolled in this course")
	}
	if enrollment.HasCompleted(lectureID) {
		return domain.Enrollment{}, invalidInput("lecture already marked as complete")
	}

	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Enrollment{}, translateRepoError("load course", err)
	}
	if !course.HasLesson(lectureID) {
		return domain.Enrollment{}, invalidInput("lecture does not belong to this course")
	}

	completed := append(append([]string{}, enrollment.CompletedLectureIDs...), lectureID)
	progress := course.Progress(len(completed))

	if err := s.identities.CompleteLecture(ctx, id, courseID, lectureID, progress); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return domain.Enrollment{}, invalidInput("lecture already marked as complete")
		}
		return domain.Enrollment{}, translateRepoError("complete lecture", err)
	}

	enrollment.CompletedLectureIDs = completed
	enrollment.Progress = progress
	return enrollment, nil
}

func (s *StudentService) loadStudent(ctx context.Context, id string) (domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return domain.Identity{}, translateRepoError("load student", err)
	}
	if identity.Role != domain.RoleUser {
		return domain.Identity{}, ErrNotFound
	}
	return *identity, nil
}

func (s *StudentService) apply(ctx context.Context, id string, patch domain.IdentityPatch) (domain.Identity, error) {
	if patch.IsEmpty() {
		return s.loadStudent(ctx, id)
	}
	updated, err := s.identities.Update(ctx, id, patch, s.now().UTC())
	if err != nil {
		return domain.Identity{}, translateRepoError("update student", err)
	}
	return *updated, nil
}

// buildPatch keeps only the non-empty fields of input.
func buildPatch(input StudentInput) (domain.IdentityPatch, error) {
	email, phone, err := parseContacts(input.Email, input.Phone)
	if err != nil {
		return domain.IdentityPatch{}, err
	}

	var patch domain.IdentityPatch
	patch.Name = nonEmpty(input.Name)
	patch.Email = nonEmpty(email)
	patch.Phone = nonEmpty(phone)
	patch.Notes = nonEmpty(input.Notes)
	patch.Avatar = nonEmpty(input.Avatar)
	return patch, nil
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
