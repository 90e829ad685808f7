package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noor-academy/school-api/internal/models"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.GradeDetail, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) (bool, error)
	StudentSummary(ctx context.Context, studentID string) ([]models.GradeCourseSummary, error)
}

// CreateGradeRequest holds payload for recording grades.
type CreateGradeRequest struct {
	StudentID string     `json:"student_id" validate:"required,uuid"`
	CourseID  string     `json:"course_id" validate:"required,uuid"`
	ExamType  string     `json:"exam_type" validate:"required,oneof=written oral project participation memorization"`
	Title     string     `json:"title" validate:"required"`
	Score     float64    `json:"score" validate:"min=0"`
	MaxScore  float64    `json:"max_score" validate:"required,gt=0,gtefield=Score"`
	GradeDate *time.Time `json:"grade_date"`
	Notes     string     `json:"notes"`
}

// UpdateGradeRequest holds payload for correcting grades.
type UpdateGradeRequest struct {
	ExamType  string     `json:"exam_type" validate:"required,oneof=written oral project participation memorization"`
	Title     string     `json:"title" validate:"required"`
	Score     float64    `json:"score" validate:"min=0"`
	MaxScore  float64    `json:"max_score" validate:"required,gt=0,gtefield=Score"`
	GradeDate *time.Time `json:"grade_date"`
	Notes     string     `json:"notes"`
}

// GradeWithBand pairs a grade with its fixed performance band.
type GradeWithBand struct {
	models.Grade
	Band string `json:"band"`
}

// GradeService handles grade use-cases.
type GradeService struct {
	repo      gradeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs the grade service.
func NewGradeService(repo gradeRepository, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, validator: validate, logger: logger}
}

// List returns grades and pagination metadata.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error) {
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return grades, pagination, nil
}

// Get returns one grade with context by ID.
func (s *GradeService) Get(ctx context.Context, id string) (*models.GradeDetail, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// Create records a new grade and returns it with its band.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest, gradedBy string) (*GradeWithBand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	grade := &models.Grade{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		ExamType:  models.ExamType(req.ExamType),
		Title:     req.Title,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		Notes:     req.Notes,
		GradedBy:  gradedBy,
	}
	if req.GradeDate != nil {
		grade.GradeDate = *req.GradeDate
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}
	return &GradeWithBand{Grade: *grade, Band: grade.Band()}, nil
}

// Update corrects an existing grade.
func (s *GradeService) Update(ctx context.Context, id string, req UpdateGradeRequest) (*GradeWithBand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	grade := detail.Grade
	grade.ExamType = models.ExamType(req.ExamType)
	grade.Title = req.Title
	grade.Score = req.Score
	grade.MaxScore = req.MaxScore
	grade.Notes = req.Notes
	if req.GradeDate != nil {
		grade.GradeDate = *req.GradeDate
	}
	if err := s.repo.Update(ctx, &grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	return &GradeWithBand{Grade: grade, Band: grade.Band()}, nil
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
	}
	return nil
}

// StudentSummary returns per-course averages for one student.
func (s *GradeService) StudentSummary(ctx context.Context, studentID string) ([]models.GradeCourseSummary, error) {
	summary, err := s.repo.StudentSummary(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise grades")
	}
	return summary, nil
}
