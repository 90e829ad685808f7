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

// EnrollmentRepository manages persistence for enrollment records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.enrollment_date, e.status,
        e.completion_date, e.final_grade, e.notes, e.created_at, e.updated_at`

const enrollmentJoins = `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id`

// List returns enrollments with student and course context.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := enrollmentJoins
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"status":          "e.status",
		"created_at":      "e.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "e.enrollment_date"
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

	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, c.code AS course_code %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentColumns, base, column, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID fetches an enrollment with context by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, c.code AS course_code %s WHERE e.id = $1`, enrollmentColumns, enrollmentJoins)
	var enrollment models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByPair fetches the enrollment for a (student, course) pair regardless of
// status, or nil when none exists.
func (r *EnrollmentRepository) FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, enrollment_date, status, completion_date, final_grade, notes, created_at, updated_at
        FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find enrollment pair: %w", err)
	}
	return &enrollment, nil
}

// Create inserts a new enrollment. The (student_id, course_id) unique
// constraint backstops concurrent duplicate enrolls.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrollment_date, status, completion_date, final_grade, notes, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :enrollment_date, :status, :completion_date, :final_grade, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return err
	}
	return nil
}

// Update modifies an enrollment's status, completion fields, and notes.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, completion_date = :completion_date,
        final_grade = :final_grade, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return err
	}
	return nil
}

// Delete removes an enrollment row, reporting whether a row was removed.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return affected > 0, nil
}

// CountEnrolled counts enrollments in enrolled status for a course. This is
// the source of truth the cached courses.current_students is recomputed from.
func (r *EnrollmentRepository) CountEnrolled(ctx context.Context, courseID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`,
		courseID, models.EnrollmentStatusEnrolled)
	if err != nil {
		return 0, fmt.Errorf("count enrolled: %w", err)
	}
	return count, nil
}

// ListActiveByStudent returns a student's enrolled-status enrollments with
// course context.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, c.code AS course_code %s
        WHERE e.student_id = $1 AND e.status = $2 ORDER BY e.enrollment_date DESC`,
		enrollmentColumns, enrollmentJoins)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// CountByStatus groups all enrollments by status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context) ([]models.BucketCount, error) {
	var buckets []models.BucketCount
	err := r.db.SelectContext(ctx, &buckets,
		`SELECT status AS label, COUNT(*) AS count FROM enrollments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("group enrollments by status: %w", err)
	}
	return buckets, nil
}
