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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	MaxCode(ctx context.Context) (string, error)
	Create(ctx context.Context, student *models.Student) error
	CreateBatch(ctx context.Context, students []models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*models.StudentStats, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Name        string     `json:"name" validate:"required"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Phone       string     `json:"phone"`
	ClassName   string     `json:"class_name"`
	Level       string     `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	JoinDate    *time.Time `json:"join_date"`
	FatherName  string     `json:"father_name"`
	MotherName  string     `json:"mother_name"`
	ParentPhone string     `json:"parent_phone"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	ClassName   string `json:"class_name"`
	Level       string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Status      string `json:"status" validate:"required,oneof=active inactive suspended"`
	FatherName  string `json:"father_name"`
	MotherName  string `json:"mother_name"`
	ParentPhone string `json:"parent_phone"`
}

// StudentService handles student use-cases, including code allocation.
type StudentService struct {
	repo      studentRepository
	allocator sequence.Allocator
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// SetMetrics attaches the metrics recorder. Optional; all recording calls
// are no-ops while unset.
func (s *StudentService) SetMetrics(m *MetricsService) { s.metrics = m }

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		allocator: sequence.NewAllocator("S", 3),
		validator: validate,
		logger:    logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return students, pagination, nil
}

// Get returns one student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student with the next sequential code. A concurrent
// writer can win the same code; the unique constraint surfaces that and the
// allocation is retried exactly once against the fresh maximum.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		ClassName:   req.ClassName,
		Level:       models.StudentLevel(req.Level),
		Status:      models.StudentStatusActive,
		FatherName:  req.FatherName,
		MotherName:  req.MotherName,
		ParentPhone: req.ParentPhone,
	}
	if req.JoinDate != nil {
		student.JoinDate = *req.JoinDate
	}

	if err := s.createWithCode(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *StudentService) createWithCode(ctx context.Context, student *models.Student) error {
	for attempt := 0; attempt < 2; attempt++ {
		maxCode, err := s.repo.MaxCode(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student codes")
		}
		code, err := s.allocator.Next(maxCode)
		if err != nil {
			return err
		}
		student.Code = code
		student.ID = ""

		err = s.repo.Create(ctx, student)
		if err == nil {
			if attempt == 0 {
				s.metrics.RecordCodeAllocation("student", "ok")
			} else {
				s.metrics.RecordCodeAllocation("student", "retried")
			}
			return nil
		}
		if database.IsUniqueViolation(err, "students_code_key") && attempt == 0 {
			s.logger.Warn("student code collision, retrying", zap.String("code", code))
			continue
		}
		s.metrics.RecordCodeAllocation("student", "failed")
		if database.IsUniqueViolation(err, "") {
			return appErrors.Clone(appErrors.ErrDuplicateKey, "student already exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.metrics.RecordCodeAllocation("student", "failed")
	return appErrors.Clone(appErrors.ErrDuplicateKey, "student code allocation lost twice")
}

// BulkImport creates many students in one call, allocating a contiguous code
// run up front. All rows go through one transaction; any failure rolls the
// whole import back so the client never holds a partially applied batch.
func (s *StudentService) BulkImport(ctx context.Context, reqs []CreateStudentRequest) ([]models.Student, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no students to import")
	}
	for i := range reqs {
		if err := s.validator.Struct(reqs[i]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
		}
	}

	maxCode, err := s.repo.MaxCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student codes")
	}
	codes, err := s.allocator.NextN(maxCode, len(reqs))
	if err != nil {
		return nil, err
	}

	students := make([]models.Student, len(reqs))
	for i, req := range reqs {
		student := models.Student{
			Code:        codes[i],
			Name:        req.Name,
			Email:       req.Email,
			Phone:       req.Phone,
			ClassName:   req.ClassName,
			Level:       models.StudentLevel(req.Level),
			Status:      models.StudentStatusActive,
			FatherName:  req.FatherName,
			MotherName:  req.MotherName,
			ParentPhone: req.ParentPhone,
		}
		if req.JoinDate != nil {
			student.JoinDate = *req.JoinDate
		}
		students[i] = student
	}

	if err := s.repo.CreateBatch(ctx, students); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "duplicate student during import")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import students")
	}
	return students, nil
}

// Update modifies an existing student. The code is immutable.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	student.Name = req.Name
	student.Email = req.Email
	student.Phone = req.Phone
	student.ClassName = req.ClassName
	student.Level = models.StudentLevel(req.Level)
	student.Status = models.StudentStatus(req.Status)
	student.FatherName = req.FatherName
	student.MotherName = req.MotherName
	student.ParentPhone = req.ParentPhone

	if err := s.repo.Update(ctx, student); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "student email already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

// Stats returns the aggregated student overview.
func (s *StudentService) Stats(ctx context.Context) (*models.StudentStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate students")
	}
	return stats, nil
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizeSize(size int) int {
	if size <= 0 || size > 100 {
		return 10
	}
	return size
}
