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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, code, name, email, phone, class_name, level, status, join_date,
        father_name, mother_name, parent_phone, created_at, updated_at`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(code) LIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.ClassName != "" {
		conditions = append(conditions, fmt.Sprintf("class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":       "name",
		"code":       "code",
		"join_date":  "join_date",
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// MaxCode returns the lexicographically largest issued student code, or empty
// when no student exists.
func (r *StudentRepository) MaxCode(ctx context.Context) (string, error) {
	const query = `SELECT code FROM students ORDER BY code DESC LIMIT 1`
	var code string
	if err := r.db.GetContext(ctx, &code, query); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("max student code: %w", err)
	}
	return code, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	if student.JoinDate.IsZero() {
		student.JoinDate = now
	}
	const query = `INSERT INTO students (id, code, name, email, phone, class_name, level, status, join_date, father_name, mother_name, parent_phone, created_at, updated_at)
        VALUES (:id, :code, :name, :email, :phone, :class_name, :level, :status, :join_date, :father_name, :mother_name, :parent_phone, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return err
	}
	return nil
}

// CreateBatch inserts a run of students in one transaction. Any duplicate
// code or email rolls the whole batch back.
func (r *StudentRepository) CreateBatch(ctx context.Context, students []models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student import: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO students (id, code, name, email, phone, class_name, level, status, join_date, father_name, mother_name, parent_phone, created_at, updated_at)
        VALUES (:id, :code, :name, :email, :phone, :class_name, :level, :status, :join_date, :father_name, :mother_name, :parent_phone, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = uuid.NewString()
		}
		students[i].CreatedAt = now
		students[i].UpdatedAt = now
		if students[i].JoinDate.IsZero() {
			students[i].JoinDate = now
		}
		if _, err := tx.NamedExecContext(ctx, query, &students[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, phone = :phone, class_name = :class_name,
        level = :level, status = :status, father_name = :father_name, mother_name = :mother_name,
        parent_phone = :parent_phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return err
	}
	return nil
}

// Delete removes a student row, reporting whether a row was removed.
func (r *StudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	return affected > 0, nil
}

// Stats aggregates the student collection for the stats overview.
func (r *StudentRepository) Stats(ctx context.Context) (*models.StudentStats, error) {
	stats := &models.StudentStats{}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM students`); err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	if err := r.db.GetContext(ctx, &stats.Active, `SELECT COUNT(*) FROM students WHERE status = $1`, models.StudentStatusActive); err != nil {
		return nil, fmt.Errorf("count active students: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByClass, `SELECT class_name AS label, COUNT(*) AS count FROM students GROUP BY class_name ORDER BY class_name`); err != nil {
		return nil, fmt.Errorf("group students by class: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByLevel, `SELECT level AS label, COUNT(*) AS count FROM students GROUP BY level`); err != nil {
		return nil, fmt.Errorf("group students by level: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByStatus, `SELECT status AS label, COUNT(*) AS count FROM students GROUP BY status`); err != nil {
		return nil, fmt.Errorf("group students by status: %w", err)
	}
	return stats, nil
}
