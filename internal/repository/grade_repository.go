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

// GradeRepository manages persistence for grade records.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = `g.id, g.student_id, g.course_id, g.exam_type, g.title, g.score, g.max_score,
        g.grade_date, g.notes, g.graded_by, g.created_at, g.updated_at`

const gradeJoins = `FROM grades g
        JOIN students s ON s.id = g.student_id
        JOIN courses c ON c.id = g.course_id
        LEFT JOIN users u ON u.id = g.graded_by`

// List returns grades with display context matching the provided filters.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	base := gradeJoins
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("g.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("g.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ExamType != "" {
		conditions = append(conditions, fmt.Sprintf("g.exam_type = $%d", len(args)+1))
		args = append(args, filter.ExamType)
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
        c.title AS course_title, COALESCE(u.name, '') AS grader_name %s
        ORDER BY g.grade_date DESC LIMIT %d OFFSET %d`, gradeColumns, base, size, offset)

	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// FindByID fetches a grade with context by ID.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, COALESCE(u.name, '') AS grader_name %s WHERE g.id = $1`,
		gradeColumns, gradeJoins)
	var grade models.GradeDetail
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Create inserts a new grade record.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now
	if grade.GradeDate.IsZero() {
		grade.GradeDate = now
	}
	const query = `INSERT INTO grades (id, student_id, course_id, exam_type, title, score, max_score, grade_date, notes, graded_by, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :exam_type, :title, :score, :max_score, :grade_date, :notes, :graded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return err
	}
	return nil
}

// Update modifies an existing grade.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET exam_type = :exam_type, title = :title, score = :score,
        max_score = :max_score, grade_date = :grade_date, notes = :notes, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return err
	}
	return nil
}

// Delete removes a grade row, reporting whether a row was removed.
func (r *GradeRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete grade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete grade: %w", err)
	}
	return affected > 0, nil
}

// StudentSummary averages a student's percentage scores per course.
func (r *GradeRepository) StudentSummary(ctx context.Context, studentID string) ([]models.GradeCourseSummary, error) {
	const query = `SELECT g.course_id, c.title AS course_title,
        ROUND(AVG(g.score / NULLIF(g.max_score, 0) * 100)::numeric, 2) AS average_score,
        COUNT(*) AS total_exams
        FROM grades g JOIN courses c ON c.id = g.course_id
        WHERE g.student_id = $1
        GROUP BY g.course_id, c.title ORDER BY c.title`
	var summary []models.GradeCourseSummary
	if err := r.db.SelectContext(ctx, &summary, query, studentID); err != nil {
		return nil, fmt.Errorf("student grade summary: %w", err)
	}
	return summary, nil
}

// ListRecentByTeacher returns the latest grades across a teacher's courses.
func (r *GradeRepository) ListRecentByTeacher(ctx context.Context, teacherID string, limit int) ([]models.GradeDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, COALESCE(u.name, '') AS grader_name %s
        WHERE c.teacher_id = $1 ORDER BY g.grade_date DESC LIMIT %d`, gradeColumns, gradeJoins, limit)
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, teacherID); err != nil {
		return nil, fmt.Errorf("recent teacher grades: %w", err)
	}
	return grades, nil
}

// ListRecentByStudent returns a student's latest grades with context.
func (r *GradeRepository) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.GradeDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, COALESCE(u.name, '') AS grader_name %s
        WHERE g.student_id = $1 ORDER BY g.grade_date DESC LIMIT %d`, gradeColumns, gradeJoins, limit)
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("recent student grades: %w", err)
	}
	return grades, nil
}
