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

type followupRepository interface {
	List(ctx context.Context, filter models.FollowupFilter) ([]models.FollowupDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FollowupDetail, error)
	Create(ctx context.Context, followup *models.ParentFollowup) error
	Update(ctx context.Context, followup *models.ParentFollowup) error
	Delete(ctx context.Context, id string) (bool, error)
	ListOverdue(ctx context.Context) ([]models.FollowupDetail, error)
	Stats(ctx context.Context) (*models.FollowupStats, error)
}

// CreateFollowupRequest holds payload for opening a parent follow-up.
type CreateFollowupRequest struct {
	StudentID     string     `json:"student_id" validate:"required,uuid"`
	Type          string     `json:"type" validate:"required,oneof=call sms meeting report alert"`
	Subject       string     `json:"subject" validate:"required"`
	Message       string     `json:"message" validate:"required"`
	Priority      string     `json:"priority" validate:"required,oneof=low medium high urgent"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	Attachments   []string   `json:"attachments"`
	Notes         string     `json:"notes"`
}

// UpdateFollowupRequest holds payload for updating a follow-up.
type UpdateFollowupRequest struct {
	Type          string     `json:"type" validate:"required,oneof=call sms meeting report alert"`
	Subject       string     `json:"subject" validate:"required"`
	Message       string     `json:"message" validate:"required"`
	Priority      string     `json:"priority" validate:"required,oneof=low medium high urgent"`
	Status        string     `json:"status" validate:"required,oneof=pending completed cancelled postponed"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	Attachments   []string   `json:"attachments"`
	Notes         string     `json:"notes"`
}

// CompleteFollowupRequest closes a follow-up with the parent's response.
type CompleteFollowupRequest struct {
	Response string `json:"response" validate:"required"`
}

// FollowupService handles parent follow-up use-cases.
type FollowupService struct {
	repo      followupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFollowupService constructs the follow-up service.
func NewFollowupService(repo followupRepository, validate *validator.Validate, logger *zap.Logger) *FollowupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowupService{repo: repo, validator: validate, logger: logger}
}

// List returns follow-ups and pagination metadata.
func (s *FollowupService) List(ctx context.Context, filter models.FollowupFilter) ([]models.FollowupDetail, *models.Pagination, error) {
	followups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list followups")
	}
	pagination := &models.Pagination{Page: normalizePage(filter.Page), PageSize: normalizeSize(filter.PageSize), TotalCount: total}
	return followups, pagination, nil
}

// Get returns one follow-up with context by ID.
func (s *FollowupService) Get(ctx context.Context, id string) (*models.FollowupDetail, error) {
	followup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "followup not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load followup")
	}
	return followup, nil
}

// Create opens a new follow-up assigned to the acting user.
func (s *FollowupService) Create(ctx context.Context, req CreateFollowupRequest, assignedTo string) (*models.ParentFollowup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid followup payload")
	}

	followup := &models.ParentFollowup{
		StudentID:     req.StudentID,
		Type:          models.FollowupType(req.Type),
		Subject:       req.Subject,
		Message:       req.Message,
		Priority:      models.FollowupPriority(req.Priority),
		Status:        models.FollowupPending,
		ScheduledDate: req.ScheduledDate,
		AssignedTo:    assignedTo,
		Attachments:   req.Attachments,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, followup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create followup")
	}
	return followup, nil
}

// Update modifies an existing follow-up.
func (s *FollowupService) Update(ctx context.Context, id string, req UpdateFollowupRequest) (*models.ParentFollowup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid followup payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	followup := detail.ParentFollowup
	followup.Type = models.FollowupType(req.Type)
	followup.Subject = req.Subject
	followup.Message = req.Message
	followup.Priority = models.FollowupPriority(req.Priority)
	followup.Status = models.FollowupStatus(req.Status)
	followup.ScheduledDate = req.ScheduledDate
	followup.Attachments = req.Attachments
	followup.Notes = req.Notes

	if err := s.repo.Update(ctx, &followup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update followup")
	}
	return &followup, nil
}

// Complete closes a follow-up, stamping the response and completion time.
func (s *FollowupService) Complete(ctx context.Context, id string, req CompleteFollowupRequest) (*models.ParentFollowup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid followup payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Status == models.FollowupCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "followup already completed")
	}

	now := time.Now().UTC()
	followup := detail.ParentFollowup
	followup.Status = models.FollowupCompleted
	followup.CompletedDate = &now
	followup.Response = req.Response
	followup.ResponseDate = &now

	if err := s.repo.Update(ctx, &followup); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete followup")
	}
	return &followup, nil
}

// Delete removes a follow-up.
func (s *FollowupService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete followup")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "followup not found")
	}
	return nil
}

// ListOverdue returns pending follow-ups past their scheduled date.
func (s *FollowupService) ListOverdue(ctx context.Context) ([]models.FollowupDetail, error) {
	followups, err := s.repo.ListOverdue(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue followups")
	}
	return followups, nil
}

// Stats returns the follow-up rollup.
func (s *FollowupService) Stats(ctx context.Context) (*models.FollowupStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate followups")
	}
	return stats, nil
}
