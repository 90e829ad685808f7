package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noor-academy/school-api/internal/models"
)

// TeacherRepository manages persistence for teacher records.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherColumns = `id, code, name, email, phone, specialization, status, created_at, updated_at`

// List returns teachers matching the provided filters.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(code) LIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Specialization != "" {
		conditions = append(conditions, fmt.Sprintf("specialization = $%d", len(args)+1))
		args = append(args, filter.Specialization)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", teacherColumns, base, column, order, size, offset)

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// MaxCode returns the largest issued teacher code, or empty when no teacher
// exists.
func (r *TeacherRepository) MaxCode(ctx context.Context) (string, error) {
	const query = `SELECT code FROM teachers ORDER BY code DESC LIMIT 1`
	var code string
	if err := r.db.GetContext(ctx, &code, query); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("max teacher code: %w", err)
	}
	return code, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, code, name, email, phone, specialization, status, created_at, updated_at)
        VALUES (:id, :code, :name, :email, :phone, :specialization, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return err
	}
	return nil
}

// Update modifies an existing teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET name = :name, email = :email, phone = :phone,
        specialization = :specialization, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return err
	}
	return nil
}

// Delete removes a teacher row, reporting whether a row was removed.
func (r *TeacherRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete teacher: %w", err)
	}
	return affected > 0, nil
}

// CountActiveCourses counts active courses assigned to the teacher. Used to
// refuse deleting a teacher who still owns running courses.
func (r *TeacherRepository) CountActiveCourses(ctx context.Context, teacherID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM courses WHERE teacher_id = $1 AND status = $2`, teacherID, models.CourseStatusActive)
	if err != nil {
		return 0, fmt.Errorf("count teacher courses: %w", err)
	}
	return count, nil
}

// Stats aggregates the teacher collection for the stats overview.
func (r *TeacherRepository) Stats(ctx context.Context) (*models.TeacherStats, error) {
	stats := &models.TeacherStats{}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM teachers`); err != nil {
		return nil, fmt.Errorf("count teachers: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.Active, `SELECT COUNT(*) FROM teachers WHERE status = $1`, models.TeacherStatusActive); err != nil {
		return nil, fmt.Errorf("count active teachers: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.BySpecialization,
		`SELECT specialization AS label, COUNT(*) AS count FROM teachers GROUP BY specialization ORDER BY count DESC`); err != nil {
		return nil, fmt.Errorf("group teachers by specialization: %w", err)
	}
	return stats, nil
}
