package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noor-academy/school-api/internal/models"
	"github.com/noor-academy/school-api/pkg/database"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
	"github.com/noor-academy/school-api/pkg/sequence"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	MaxCode(ctx context.Context) (string, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) (bool, error)
	CountActiveCourses(ctx context.Context, teacherID string) (int, error)
	Stats(ctx context.Context) (*models.TeacherStats, error)
}

// CreateTeacherRequest holds payload for creating teachers.
type CreateTeacherRequest struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization" validate:"required"`
}

// UpdateTeacherRequest holds payload for updating teachers.
type UpdateTeacherRequest struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=active inactive"`
}

// TeacherService handles teacher use-cases, including code allocation.
type TeacherService struct {
	repo      teacherRepository
	allocator sequence.Allocator
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// SetMetrics attaches the metrics recorder. Optional.
func (s *TeacherService) SetMetrics(m *MetricsService) { s.metrics = m }

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{
		repo:      repo,
		allocator: sequence.NewAllocator("T", 3),
		validator: validate,
		logger:    logger,
	}
}

// List returns teachers and pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return teachers, pagination, nil
}

// Get returns one teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher with the next sequential code, retrying the
// allocation once when a concurrent writer takes the same code.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher := &models.Teacher{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		Status:         models.TeacherStatusActive,
	}

	for attempt := 0; attempt < 2; attempt++ {
		maxCode, err := s.repo.MaxCode(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read teacher codes")
		}
		code, err := s.allocator.Next(maxCode)
		if err != nil {
			return nil, err
		}
		teacher.Code = code
		teacher.ID = ""

		err = s.repo.Create(ctx, teacher)
		if err == nil {
			if attempt == 0 {
				s.metrics.RecordCodeAllocation("teacher", "ok")
			} else {
				s.metrics.RecordCodeAllocation("teacher", "retried")
			}
			return teacher, nil
		}
		if database.IsUniqueViolation(err, "teachers_code_key") && attempt == 0 {
			s.logger.Warn("teacher code collision, retrying", zap.String("code", code))
			continue
		}
		s.metrics.RecordCodeAllocation("teacher", "failed")
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "teacher email already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.metrics.RecordCodeAllocation("teacher", "failed")
	return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "teacher code allocation lost twice")
}

// Update modifies an existing teacher. The code is immutable.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	teacher.Name = req.Name
	teacher.Email = req.Email
	teacher.Phone = req.Phone
	teacher.Specialization = req.Specialization
	teacher.Status = models.TeacherStatus(req.Status)

	if err := s.repo.Update(ctx, teacher); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "teacher email already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Delete removes a teacher unless active courses still reference them.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	active, err := s.repo.CountActiveCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher courses")
	}
	if active > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "teacher still has active courses")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return nil
}

// Stats returns the aggregated teacher overview.
func (s *TeacherService) Stats(ctx context.Context) (*models.TeacherStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate teachers")
	}
	return stats, nil
}
