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

// AttendanceRepository manages persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `a.id, a.student_id, a.course_id, a.date, a.status, a.notes,
        a.recorded_by, a.created_at, a.updated_at`

const attendanceJoins = `FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN courses c ON c.id = a.course_id
        LEFT JOIN users u ON u.id = a.recorded_by`

// List returns attendance records with display context. A Date filter selects
// the half-open range [date, date+24h); StartDate/EndDate span whole days
// inclusively.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := attendanceJoins
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Date != nil {
		day := filter.Date.Truncate(24 * time.Hour)
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d AND a.date < $%d", len(args)+1, len(args)+2))
		args = append(args, day, day.Add(24*time.Hour))
	} else {
		if filter.StartDate != nil {
			conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
			args = append(args, filter.StartDate.Truncate(24*time.Hour))
		}
		if filter.EndDate != nil {
			conditions = append(conditions, fmt.Sprintf("a.date < $%d", len(args)+1))
			args = append(args, filter.EndDate.Truncate(24*time.Hour).Add(24*time.Hour))
		}
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
        c.title AS course_title, COALESCE(u.name, '') AS recorder_name %s
        ORDER BY a.date DESC, s.name LIMIT %d OFFSET %d`, attendanceColumns, base, size, offset)

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// FindByID fetches an attendance record with context by ID.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, COALESCE(u.name, '') AS recorder_name %s WHERE a.id = $1`,
		attendanceColumns, attendanceJoins)
	var record models.AttendanceDetail
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts one attendance record. The (student_id, course_id, date)
// unique constraint rejects duplicate marks for the same day.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	record.Date = record.Date.Truncate(24 * time.Hour)
	const query = `INSERT INTO attendance (id, student_id, course_id, date, status, notes, recorded_by, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :date, :status, :notes, :recorded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return err
	}
	return nil
}

// CreateBatch inserts a day's attendance for a whole course in one
// transaction. Any duplicate mark rolls the batch back.
func (r *AttendanceRepository) CreateBatch(ctx context.Context, records []models.Attendance) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance batch: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO attendance (id, student_id, course_id, date, status, notes, recorded_by, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :date, :status, :notes, :recorded_by, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
		records[i].Date = records[i].Date.Truncate(24 * time.Hour)
		if _, err := tx.NamedExecContext(ctx, query, &records[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Update modifies an attendance record's status and notes.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.Attendance) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance SET status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return err
	}
	return nil
}

// Delete removes an attendance row, reporting whether a row was removed.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	return affected > 0, nil
}

// ListRecentByStudent returns a student's latest attendance marks.
func (r *AttendanceRepository) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.AttendanceDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, COALESCE(u.name, '') AS recorder_name %s
        WHERE a.student_id = $1 ORDER BY a.date DESC LIMIT %d`, attendanceColumns, attendanceJoins, limit)
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("recent student attendance: %w", err)
	}
	return records, nil
}

// ListRecentByTeacher returns the latest marks across a teacher's courses.
func (r *AttendanceRepository) ListRecentByTeacher(ctx context.Context, teacherID string, limit int) ([]models.AttendanceDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.code AS student_code,
        c.title AS course_title, COALESCE(u.name, '') AS recorder_name %s
        WHERE c.teacher_id = $1 ORDER BY a.date DESC LIMIT %d`, attendanceColumns, attendanceJoins, limit)
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, teacherID); err != nil {
		return nil, fmt.Errorf("recent teacher attendance: %w", err)
	}
	return records, nil
}

// Stats aggregates attendance, optionally bounded by an inclusive day span.
func (r *AttendanceRepository) Stats(ctx context.Context, startDate, endDate *time.Time) (*models.AttendanceStats, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if startDate != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, startDate.Truncate(24*time.Hour))
	}
	if endDate != nil {
		conditions = append(conditions, fmt.Sprintf("date < $%d", len(args)+1))
		args = append(args, endDate.Truncate(24*time.Hour).Add(24*time.Hour))
	}
	where := strings.Join(conditions, " AND ")

	stats := &models.AttendanceStats{}
	if err := r.db.GetContext(ctx, &stats.TotalRecords,
		fmt.Sprintf("SELECT COUNT(*) FROM attendance WHERE %s", where), args...); err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}

	presentArgs := append(append([]interface{}{}, args...), models.AttendancePresent)
	if err := r.db.GetContext(ctx, &stats.PresentRecords,
		fmt.Sprintf("SELECT COUNT(*) FROM attendance WHERE %s AND status = $%d", where, len(args)+1), presentArgs...); err != nil {
		return nil, fmt.Errorf("count present attendance: %w", err)
	}

	if err := r.db.SelectContext(ctx, &stats.Distribution,
		fmt.Sprintf("SELECT status AS label, COUNT(*) AS count FROM attendance WHERE %s GROUP BY status", where), args...); err != nil {
		return nil, fmt.Errorf("group attendance by status: %w", err)
	}

	if stats.TotalRecords > 0 {
		stats.AttendanceRate = int(float64(stats.PresentRecords) / float64(stats.TotalRecords) * 100)
	}
	return stats, nil
}
