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
	"github.com/noor-academy/school-api/pkg/sequence"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	MaxCode(ctx context.Context) (string, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) (bool, error)
	ListAvailable(ctx context.Context) ([]models.CourseDetail, error)
	Stats(ctx context.Context) (*models.CourseStats, error)
}

// CreateCourseRequest holds payload for creating courses.
type CreateCourseRequest struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	Category      string    `json:"category" validate:"required,oneof=quran tajweed fiqh arabic seerah aqeedah ethics"`
	Level         string    `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	TeacherID     string    `json:"teacher_id" validate:"required,uuid"`
	DurationWeeks int       `json:"duration_weeks" validate:"required,min=1"`
	Price         float64   `json:"price" validate:"min=0"`
	ScheduleDays  []string  `json:"schedule_days" validate:"required,min=1"`
	ScheduleTime  string    `json:"schedule_time" validate:"required"`
	MaxStudents   int       `json:"max_students" validate:"required,min=1"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

// UpdateCourseRequest holds payload for updating courses.
type UpdateCourseRequest struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	Category      string    `json:"category" validate:"required,oneof=quran tajweed fiqh arabic seerah aqeedah ethics"`
	Level         string    `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	TeacherID     string    `json:"teacher_id" validate:"required,uuid"`
	DurationWeeks int       `json:"duration_weeks" validate:"required,min=1"`
	Price         float64   `json:"price" validate:"min=0"`
	ScheduleDays  []string  `json:"schedule_days" validate:"required,min=1"`
	ScheduleTime  string    `json:"schedule_time" validate:"required"`
	MaxStudents   int       `json:"max_students" validate:"required,min=1"`
	Status        string    `json:"status" validate:"required,oneof=active inactive completed"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

// CourseService handles course use-cases, including code allocation.
type CourseService struct {
	repo      courseRepository
	teachers  teacherRepository
	counter   *CourseCounter
	allocator sequence.Allocator
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// SetMetrics attaches the metrics recorder. Optional.
func (s *CourseService) SetMetrics(m *MetricsService) { s.metrics = m }

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, teachers teacherRepository, counter *CourseCounter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:      repo,
		teachers:  teachers,
		counter:   counter,
		allocator: sequence.NewAllocator("CRS", 3),
		validator: validate,
		logger:    logger,
	}
}

// List returns courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return courses, pagination, nil
}

// Get returns one course by ID with teacher context.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// ListAvailable returns active courses with open seats.
func (s *CourseService) ListAvailable(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	return courses, nil
}

// Create registers a new course with the next sequential code, retrying the
// allocation once when a concurrent writer takes the same code.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	course := &models.Course{
		Title:         req.Title,
		Description:   req.Description,
		Category:      models.CourseCategory(req.Category),
		Level:         models.StudentLevel(req.Level),
		TeacherID:     req.TeacherID,
		DurationWeeks: req.DurationWeeks,
		Price:         req.Price,
		ScheduleDays:  req.ScheduleDays,
		ScheduleTime:  req.ScheduleTime,
		MaxStudents:   req.MaxStudents,
		Status:        models.CourseStatusActive,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	}

	for attempt := 0; attempt < 2; attempt++ {
		maxCode, err := s.repo.MaxCode(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read course codes")
		}
		code, err := s.allocator.Next(maxCode)
		if err != nil {
			return nil, err
		}
		course.Code = code
		course.ID = ""

		err = s.repo.Create(ctx, course)
		if err == nil {
			if attempt == 0 {
				s.metrics.RecordCodeAllocation("course", "ok")
			} else {
				s.metrics.RecordCodeAllocation("course", "retried")
			}
			return course, nil
		}
		if database.IsUniqueViolation(err, "courses_code_key") && attempt == 0 {
			s.logger.Warn("course code collision, retrying", zap.String("code", code))
			continue
		}
		s.metrics.RecordCodeAllocation("course", "failed")
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "course already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.metrics.RecordCodeAllocation("course", "failed")
	return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "course code allocation lost twice")
}

// Update modifies an existing course. The code and cached student count are
// immutable here; the count only moves through the counter.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	course := detail.Course
	course.Title = req.Title
	course.Description = req.Description
	course.Category = models.CourseCategory(req.Category)
	course.Level = models.StudentLevel(req.Level)
	course.TeacherID = req.TeacherID
	course.DurationWeeks = req.DurationWeeks
	course.Price = req.Price
	course.ScheduleDays = req.ScheduleDays
	course.ScheduleTime = req.ScheduleTime
	course.MaxStudents = req.MaxStudents
	course.Status = models.CourseStatus(req.Status)
	course.StartDate = req.StartDate
	course.EndDate = req.EndDate

	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	if s.counter != nil && req.MaxStudents != detail.MaxStudents {
		// capacity changed; refresh the cached count against the new guard
		s.counter.Schedule(course.ID)
	}
	return &course, nil
}

// Delete removes a course. Enrollment rows cascade at the schema level.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return nil
}

// Stats returns the aggregated course overview.
func (s *CourseService) Stats(ctx context.Context) (*models.CourseStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate courses")
	}
	return stats, nil
}
