package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noor-academy/school-api/internal/models"
	"github.com/noor-academy/school-api/pkg/database"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) (bool, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type enrollmentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

// EnrollRequest holds payload for enrolling a student in a course.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	CourseID  string `json:"course_id" validate:"required,uuid"`
	Notes     string `json:"notes"`
}

// UpdateEnrollmentRequest holds payload for moving an enrollment through its
// lifecycle.
type UpdateEnrollmentRequest struct {
	Status     string   `json:"status" validate:"required,oneof=enrolled completed cancelled suspended"`
	FinalGrade *float64 `json:"final_grade" validate:"omitempty,min=0,max=100"`
	Notes      string   `json:"notes"`
}

// EnrollmentService manages the enrollment lifecycle. Every transition that
// can change a course's enrolled population schedules an asynchronous recount
// of the cached current_students value; the recount never gates the write.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  enrollmentStudentRepository
	courses   enrollmentCourseRepository
	counter   *CourseCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentRepository, courses enrollmentCourseRepository, counter *CourseCounter, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		courses:   courses,
		counter:   counter,
		validator: validate,
		logger:    logger,
	}
}

// List returns enrollments and pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment with context by ID.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// ListActiveByStudent returns a student's enrolled-status enrollments.
func (s *EnrollmentService) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student enrollments")
	}
	return enrollments, nil
}

// Enroll places a student into a course. A cancelled enrollment for the same
// pair is re-activated in place; any other existing pair is a duplicate. The
// capacity check here is advisory; the unique pair constraint is the real
// backstop under concurrency.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is not active")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status != models.CourseStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is not active")
	}
	if course.CurrentStudents >= course.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is full")
	}

	existing, err := s.repo.FindByPair(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if existing != nil {
		if existing.Status != models.EnrollmentStatusCancelled {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "student already enrolled in course")
		}
		existing.Status = models.EnrollmentStatusEnrolled
		existing.EnrollmentDate = time.Now().UTC()
		existing.CompletionDate = nil
		existing.FinalGrade = nil
		if req.Notes != "" {
			existing.Notes = req.Notes
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-activate enrollment")
		}
		s.scheduleRecount(req.CourseID)
		return existing, nil
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Status:    models.EnrollmentStatusEnrolled,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "student already enrolled in course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.scheduleRecount(req.CourseID)
	return enrollment, nil
}

// UpdateStatus moves an enrollment through its lifecycle. Completing an
// enrollment stamps the completion date and optional final grade; any other
// target clears both so a re-opened enrollment carries no stale result.
// Recounts fire whenever the enrolled population could have changed.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollment := detail.Enrollment
	previous := enrollment.Status

	next := models.EnrollmentStatus(req.Status)
	enrollment.Status = next
	if req.Notes != "" {
		enrollment.Notes = req.Notes
	}
	if next == models.EnrollmentStatusCompleted {
		now := time.Now().UTC()
		enrollment.CompletionDate = &now
		enrollment.FinalGrade = req.FinalGrade
	} else {
		enrollment.CompletionDate = nil
		enrollment.FinalGrade = nil
	}

	if err := s.repo.Update(ctx, &enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	if previous != next && (previous == models.EnrollmentStatusEnrolled || next == models.EnrollmentStatusEnrolled) {
		s.scheduleRecount(enrollment.CourseID)
	}
	return &enrollment, nil
}

// Delete removes an enrollment row entirely and recounts the course.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	s.scheduleRecount(detail.CourseID)
	return nil
}

func (s *EnrollmentService) scheduleRecount(courseID string) {
	if s.counter == nil {
		return
	}
	s.counter.Schedule(courseID)
}
