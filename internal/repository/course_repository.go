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

// CourseRepository manages persistence for course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `c.id, c.code, c.title, c.description, c.category, c.level, c.teacher_id,
        c.duration_weeks, c.price, c.schedule_days, c.schedule_time, c.max_students,
        c.current_students, c.status, c.start_date, c.end_date, c.created_at, c.updated_at`

// List returns courses with teacher context matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := "FROM courses c LEFT JOIN teachers t ON t.id = c.teacher_id"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(c.code) LIKE $%d)",
			len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("c.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"title":      "c.title",
		"code":       "c.code",
		"start_date": "c.start_date",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "c.created_at"
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

	query := fmt.Sprintf("SELECT %s, t.name AS teacher_name, t.email AS teacher_email %s ORDER BY %s %s LIMIT %d OFFSET %d",
		courseColumns, base, column, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a course with teacher context by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.name AS teacher_name, t.email AS teacher_email
        FROM courses c LEFT JOIN teachers t ON t.id = c.teacher_id WHERE c.id = $1`, courseColumns)
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// MaxCode returns the largest issued course code, or empty when no course
// exists.
func (r *CourseRepository) MaxCode(ctx context.Context) (string, error) {
	const query = `SELECT code FROM courses ORDER BY code DESC LIMIT 1`
	var code string
	if err := r.db.GetContext(ctx, &code, query); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("max course code: %w", err)
	}
	return code, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, title, description, category, level, teacher_id, duration_weeks, price,
        schedule_days, schedule_time, max_students, current_students, status, start_date, end_date, created_at, updated_at)
        VALUES (:id, :code, :title, :description, :category, :level, :teacher_id, :duration_weeks, :price,
        :schedule_days, :schedule_time, :max_students, :current_students, :status, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return err
	}
	return nil
}

// Update modifies an existing course. current_students is deliberately left
// out; it is only written through UpdateCurrentStudents.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, category = :category,
        level = :level, teacher_id = :teacher_id, duration_weeks = :duration_weeks, price = :price,
        schedule_days = :schedule_days, schedule_time = :schedule_time, max_students = :max_students,
        status = :status, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return err
	}
	return nil
}

// UpdateCurrentStudents writes the recomputed enrolled count for a course.
// The write is guarded so the cached count can never exceed the capacity; a
// zero-row update against an existing course means the guard rejected it.
func (r *CourseRepository) UpdateCurrentStudents(ctx context.Context, courseID string, count int) (bool, error) {
	const query = `UPDATE courses SET current_students = $2, updated_at = $3
        WHERE id = $1 AND $2 <= max_students`
	res, err := r.db.ExecContext(ctx, query, courseID, count, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update course student count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update course student count: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a course row, reporting whether a row was removed.
func (r *CourseRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	return affected > 0, nil
}

// ListAvailable returns active courses that still have open seats.
func (r *CourseRepository) ListAvailable(ctx context.Context) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.name AS teacher_name, t.email AS teacher_email
        FROM courses c LEFT JOIN teachers t ON t.id = c.teacher_id
        WHERE c.status = $1 AND c.current_students < c.max_students
        ORDER BY c.start_date`, courseColumns)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, models.CourseStatusActive); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// ListByTeacher returns all courses assigned to one teacher.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s, t.name AS teacher_name, t.email AS teacher_email
        FROM courses c LEFT JOIN teachers t ON t.id = c.teacher_id
        WHERE c.teacher_id = $1 ORDER BY c.start_date DESC`, courseColumns)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	return courses, nil
}

// Stats aggregates the course collection for the stats overview.
func (r *CourseRepository) Stats(ctx context.Context) (*models.CourseStats, error) {
	stats := &models.CourseStats{}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM courses`); err != nil {
		return nil, fmt.Errorf("count courses: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.Active, `SELECT COUNT(*) FROM courses WHERE status = $1`, models.CourseStatusActive); err != nil {
		return nil, fmt.Errorf("count active courses: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByCategory,
		`SELECT category AS label, COUNT(*) AS count FROM courses GROUP BY category ORDER BY count DESC`); err != nil {
		return nil, fmt.Errorf("group courses by category: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByLevel,
		`SELECT level AS label, COUNT(*) AS count FROM courses GROUP BY level`); err != nil {
		return nil, fmt.Errorf("group courses by level: %w", err)
	}
	return stats, nil
}
