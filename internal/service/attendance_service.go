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

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	Create(ctx context.Context, record *models.Attendance) error
	CreateBatch(ctx context.Context, records []models.Attendance) error
	Update(ctx context.Context, record *models.Attendance) error
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context, startDate, endDate *time.Time) (*models.AttendanceStats, error)
}

// MarkAttendanceRequest records one student's presence on one date.
type MarkAttendanceRequest struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	CourseID  string    `json:"course_id" validate:"required,uuid"`
	Date      time.Time `json:"date" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     string    `json:"notes"`
}

// BulkAttendanceRequest records a whole course session in one call.
type BulkAttendanceRequest struct {
	CourseID string                `json:"course_id" validate:"required,uuid"`
	Date     time.Time             `json:"date" validate:"required"`
	Records  []BulkAttendanceEntry `json:"records" validate:"required,min=1,dive"`
}

// BulkAttendanceEntry is one student's mark inside a bulk request.
type BulkAttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes     string `json:"notes"`
}

// UpdateAttendanceRequest corrects an existing mark.
type UpdateAttendanceRequest struct {
	Status string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes  string `json:"notes"`
}

// AttendanceService handles attendance use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, validator: validate, logger: logger}
}

// List returns attendance records and pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return records, pagination, nil
}

// Get returns one attendance record with context.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	return record, nil
}

// Mark records one student's attendance. A second mark for the same student,
// course, and day is a duplicate.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest, recordedBy string) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	record := &models.Attendance{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		Date:       req.Date,
		Status:     models.AttendanceStatus(req.Status),
		Notes:      req.Notes,
		RecordedBy: recordedBy,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "attendance already recorded for this day")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return record, nil
}

// MarkBulk records a full session. The batch is transactional: a single
// duplicate mark rejects the whole call.
func (s *AttendanceService) MarkBulk(ctx context.Context, req BulkAttendanceRequest, recordedBy string) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	records := make([]models.Attendance, 0, len(req.Records))
	for _, entry := range req.Records {
		records = append(records, models.Attendance{
			StudentID:  entry.StudentID,
			CourseID:   req.CourseID,
			Date:       req.Date,
			Status:     models.AttendanceStatus(entry.Status),
			Notes:      entry.Notes,
			RecordedBy: recordedBy,
		})
	}
	if err := s.repo.CreateBatch(ctx, records); err != nil {
		if database.IsUniqueViolation(err, "") {
			return 0, appErrors.Clone(appErrors.ErrDuplicateKey, "attendance already recorded for this day")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance batch")
	}
	return len(records), nil
}

// Update corrects an existing attendance mark.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	record := detail.Attendance
	record.Status = models.AttendanceStatus(req.Status)
	record.Notes = req.Notes
	if err := s.repo.Update(ctx, &record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	return &record, nil
}

// Delete removes an attendance record.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return nil
}

// Stats returns the attendance rollup for an optional date span.
func (s *AttendanceService) Stats(ctx context.Context, startDate, endDate *time.Time) (*models.AttendanceStats, error) {
	stats, err := s.repo.Stats(ctx, startDate, endDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	return stats, nil
}
