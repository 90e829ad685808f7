package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noor-academy/school-api/internal/models"
)

// FollowupRepository manages persistence for parent follow-up records.
type FollowupRepository struct {
	db *sqlx.DB
}

// NewFollowupRepository constructs a FollowupRepository.
func NewFollowupRepository(db *sqlx.DB) *FollowupRepository {
	return &FollowupRepository{db: db}
}

const followupColumns = `f.id, f.student_id, f.type, f.subject, f.message, f.priority, f.status,
        f.scheduled_date, f.completed_date, f.response, f.response_date, f.assigned_to,
        f.attachments, f.notes, f.created_at, f.updated_at`

const followupJoins = `FROM parent_followups f
        JOIN students s ON s.id = f.student_id
        LEFT JOIN users u ON u.id = f.assigned_to`

// List returns follow-ups with display context matching the provided filters.
func (r *FollowupRepository) List(ctx context.Context, filter models.FollowupFilter) ([]models.FollowupDetail, int, error) {
	base := followupJoins
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(f.subject) LIKE $%d OR LOWER(s.name) LIKE $%d)",
			len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("f.assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("f.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("f.priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        COALESCE(u.name, '') AS assignee_name %s ORDER BY f.created_at DESC LIMIT %d OFFSET %d`,
		followupColumns, base, size, offset)

	var followups []models.FollowupDetail
	if err := r.db.SelectContext(ctx, &followups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list followups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count followups: %w", err)
	}
	return followups, total, nil
}

// FindByID fetches a follow-up with context by ID.
func (r *FollowupRepository) FindByID(ctx context.Context, id string) (*models.FollowupDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        COALESCE(u.name, '') AS assignee_name %s WHERE f.id = $1`, followupColumns, followupJoins)
	var followup models.FollowupDetail
	if err := r.db.GetContext(ctx, &followup, query, id); err != nil {
		return nil, err
	}
	return &followup, nil
}

// Create inserts a new follow-up record.
func (r *FollowupRepository) Create(ctx context.Context, followup *models.ParentFollowup) error {
	if followup.ID == "" {
		followup.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	followup.CreatedAt = now
	followup.UpdatedAt = now
	const query = `INSERT INTO parent_followups (id, student_id, type, subject, message, priority, status,
        scheduled_date, completed_date, response, response_date, assigned_to, attachments, notes, created_at, updated_at)
        VALUES (:id, :student_id, :type, :subject, :message, :priority, :status,
        :scheduled_date, :completed_date, :response, :response_date, :assigned_to, :attachments, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, followup); err != nil {
		return err
	}
	return nil
}

// Update modifies an existing follow-up.
func (r *FollowupRepository) Update(ctx context.Context, followup *models.ParentFollowup) error {
	followup.UpdatedAt = time.Now().UTC()
	const query = `UPDATE parent_followups SET type = :type, subject = :subject, message = :message,
        priority = :priority, status = :status, scheduled_date = :scheduled_date,
        completed_date = :completed_date, response = :response, response_date = :response_date,
        assigned_to = :assigned_to, attachments = :attachments, notes = :notes, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, followup); err != nil {
		return err
	}
	return nil
}

// Delete removes a follow-up row, reporting whether a row was removed.
func (r *FollowupRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parent_followups WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete followup: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete followup: %w", err)
	}
	return affected > 0, nil
}

// ListOverdue returns pending follow-ups whose scheduled date has passed.
func (r *FollowupRepository) ListOverdue(ctx context.Context) ([]models.FollowupDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        COALESCE(u.name, '') AS assignee_name %s
        WHERE f.status = $1 AND f.scheduled_date IS NOT NULL AND f.scheduled_date < $2
        ORDER BY f.scheduled_date`, followupColumns, followupJoins)
	var followups []models.FollowupDetail
	if err := r.db.SelectContext(ctx, &followups, query, models.FollowupPending, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("list overdue followups: %w", err)
	}
	return followups, nil
}

// ListRecentByStudent returns a student's latest follow-ups with context.
func (r *FollowupRepository) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.FollowupDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        COALESCE(u.name, '') AS assignee_name %s
        WHERE f.student_id = $1 ORDER BY f.created_at DESC LIMIT %d`, followupColumns, followupJoins, limit)
	var followups []models.FollowupDetail
	if err := r.db.SelectContext(ctx, &followups, query, studentID); err != nil {
		return nil, fmt.Errorf("recent student followups: %w", err)
	}
	return followups, nil
}

// Stats aggregates follow-ups by status and counts open high-priority work.
func (r *FollowupRepository) Stats(ctx context.Context) (*models.FollowupStats, error) {
	stats := &models.FollowupStats{}

	if err := r.db.SelectContext(ctx, &stats.ByStatus,
		`SELECT status AS label, COUNT(*) AS count FROM parent_followups GROUP BY status`); err != nil {
		return nil, fmt.Errorf("group followups by status: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.HighPriority,
		`SELECT COUNT(*) FROM parent_followups WHERE priority = $1 AND status = $2`,
		models.PriorityHigh, models.FollowupPending); err != nil {
		return nil, fmt.Errorf("count high priority followups: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.Urgent,
		`SELECT COUNT(*) FROM parent_followups WHERE priority = $1 AND status = $2`,
		models.PriorityUrgent, models.FollowupPending); err != nil {
		return nil, fmt.Errorf("count urgent followups: %w", err)
	}
	return stats, nil
}
