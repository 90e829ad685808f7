package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noor-academy/school-api/internal/models"
)

// ReportRepository runs the read-only SQL rollups behind the reports API.
// Everything here aggregates live tables; nothing is written.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs a ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// AverageGradePercent returns the overall average percentage score across all
// grades, rounded to a whole number. Zero when no grades exist.
func (r *ReportRepository) AverageGradePercent(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(ROUND(AVG(score / NULLIF(max_score, 0) * 100)), 0) FROM grades`
	var avg int
	if err := r.db.GetContext(ctx, &avg, query); err != nil {
		return 0, fmt.Errorf("average grade: %w", err)
	}
	return avg, nil
}

// NewStudentsSince counts students who joined on or after the given time.
func (r *ReportRepository) NewStudentsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM students WHERE join_date >= $1`, since); err != nil {
		return 0, fmt.Errorf("count new students: %w", err)
	}
	return count, nil
}

// DailyAttendance rolls attendance up per day over the last n days.
func (r *ReportRepository) DailyAttendance(ctx context.Context, days int) ([]models.DailyAttendancePoint, error) {
	if days <= 0 {
		days = 30
	}
	const query = `SELECT to_char(date, 'YYYY-MM-DD') AS bucket,
        COUNT(*) FILTER (WHERE status = 'present') AS present,
        COUNT(*) AS total
        FROM attendance WHERE date >= $1
        GROUP BY bucket ORDER BY bucket`
	since := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	var points []models.DailyAttendancePoint
	if err := r.db.SelectContext(ctx, &points, query, since); err != nil {
		return nil, fmt.Errorf("daily attendance: %w", err)
	}
	for i := range points {
		if points[i].Total > 0 {
			points[i].Rate = int(float64(points[i].Present) / float64(points[i].Total) * 100)
		}
	}
	return points, nil
}

// MonthlyAttendance rolls attendance rates up per month over the last n
// months.
func (r *ReportRepository) MonthlyAttendance(ctx context.Context, months int) ([]models.MonthlyRatePoint, error) {
	if months <= 0 {
		months = 12
	}
	const query = `SELECT to_char(date, 'YYYY-MM') AS bucket,
        COALESCE(ROUND(COUNT(*) FILTER (WHERE status = 'present') * 100.0 / NULLIF(COUNT(*), 0)), 0) AS rate
        FROM attendance WHERE date >= $1
        GROUP BY bucket ORDER BY bucket`
	since := time.Now().UTC().AddDate(0, -months, 0)
	var points []models.MonthlyRatePoint
	if err := r.db.SelectContext(ctx, &points, query, since); err != nil {
		return nil, fmt.Errorf("monthly attendance: %w", err)
	}
	return points, nil
}

// AttendanceByCourse rolls attendance rates up per course.
func (r *ReportRepository) AttendanceByCourse(ctx context.Context) ([]models.CourseRatePoint, error) {
	const query = `SELECT c.title AS course,
        COALESCE(ROUND(COUNT(*) FILTER (WHERE a.status = 'present') * 100.0 / NULLIF(COUNT(*), 0)), 0) AS rate
        FROM attendance a JOIN courses c ON c.id = a.course_id
        GROUP BY c.title ORDER BY c.title`
	var points []models.CourseRatePoint
	if err := r.db.SelectContext(ctx, &points, query); err != nil {
		return nil, fmt.Errorf("attendance by course: %w", err)
	}
	return points, nil
}

// GradeDistribution buckets all grades into the fixed performance bands on
// percentage score: 90+ excellent, 80-89 very good, 70-79 good, 60-69
// acceptable, below 60 fail.
func (r *ReportRepository) GradeDistribution(ctx context.Context) ([]models.BucketCount, error) {
	const query = `SELECT band AS label, COUNT(*) AS count FROM (
        SELECT CASE
            WHEN score / NULLIF(max_score, 0) * 100 >= 90 THEN 'excellent'
            WHEN score / NULLIF(max_score, 0) * 100 >= 80 THEN 'very good'
            WHEN score / NULLIF(max_score, 0) * 100 >= 70 THEN 'good'
            WHEN score / NULLIF(max_score, 0) * 100 >= 60 THEN 'acceptable'
            ELSE 'fail'
        END AS band FROM grades
        ) banded GROUP BY band`
	var buckets []models.BucketCount
	if err := r.db.SelectContext(ctx, &buckets, query); err != nil {
		return nil, fmt.Errorf("grade distribution: %w", err)
	}
	return buckets, nil
}

// GradeAveragesByCourse averages percentage scores per course.
func (r *ReportRepository) GradeAveragesByCourse(ctx context.Context) ([]models.CourseAveragePoint, error) {
	const query = `SELECT c.title AS course,
        COALESCE(ROUND(AVG(g.score / NULLIF(g.max_score, 0) * 100)), 0) AS average
        FROM grades g JOIN courses c ON c.id = g.course_id
        GROUP BY c.title ORDER BY c.title`
	var points []models.CourseAveragePoint
	if err := r.db.SelectContext(ctx, &points, query); err != nil {
		return nil, fmt.Errorf("grade averages by course: %w", err)
	}
	return points, nil
}

// MonthlyGradeAverages averages percentage scores per month over the last n
// months.
func (r *ReportRepository) MonthlyGradeAverages(ctx context.Context, months int) ([]models.MonthlyAveragePoint, error) {
	if months <= 0 {
		months = 12
	}
	const query = `SELECT to_char(grade_date, 'YYYY-MM') AS bucket,
        COALESCE(ROUND(AVG(score / NULLIF(max_score, 0) * 100)), 0) AS average
        FROM grades WHERE grade_date >= $1
        GROUP BY bucket ORDER BY bucket`
	since := time.Now().UTC().AddDate(0, -months, 0)
	var points []models.MonthlyAveragePoint
	if err := r.db.SelectContext(ctx, &points, query, since); err != nil {
		return nil, fmt.Errorf("monthly grade averages: %w", err)
	}
	return points, nil
}

// GradeSummary returns the overall grade aggregate within an optional span.
func (r *ReportRepository) GradeSummary(ctx context.Context, startDate, endDate *time.Time) (*models.GradeSummary, error) {
	where, args := dateSpan("grade_date", startDate, endDate)
	query := fmt.Sprintf(`SELECT COALESCE(ROUND(AVG(score / NULLIF(max_score, 0) * 100)::numeric, 2), 0) AS average_score,
        COUNT(*) AS total_exams FROM grades WHERE %s`, where)
	var summary models.GradeSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("grade summary: %w", err)
	}
	return &summary, nil
}

// GroupByColumn groups a table over one whitelisted column within an optional
// span on dateColumn. Feeds the comprehensive report.
func (r *ReportRepository) GroupByColumn(ctx context.Context, table, column, dateColumn string, startDate, endDate *time.Time) ([]models.BucketCount, error) {
	allowed := map[string]map[string]string{
		"students":         {"status": "created_at", "level": "created_at", "class_name": "created_at"},
		"teachers":         {"status": "created_at", "specialization": "created_at"},
		"courses":          {"status": "created_at", "category": "created_at"},
		"attendance":       {"status": "date"},
		"enrollments":      {"status": "enrollment_date"},
		"parent_followups": {"status": "created_at", "type": "created_at"},
	}
	columns, ok := allowed[table]
	if !ok {
		return nil, fmt.Errorf("group by: unknown table %q", table)
	}
	defaultDate, ok := columns[column]
	if !ok {
		return nil, fmt.Errorf("group by: unknown column %q for %q", column, table)
	}
	if dateColumn == "" {
		dateColumn = defaultDate
	}

	where, args := dateSpan(dateColumn, startDate, endDate)
	query := fmt.Sprintf("SELECT %s AS label, COUNT(*) AS count FROM %s WHERE %s GROUP BY %s ORDER BY count DESC",
		column, table, where, column)
	var buckets []models.BucketCount
	if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
		return nil, fmt.Errorf("group %s by %s: %w", table, column, err)
	}
	return buckets, nil
}

// StudentAttendanceRate returns one student's present percentage.
func (r *ReportRepository) StudentAttendanceRate(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COALESCE(ROUND(COUNT(*) FILTER (WHERE status = 'present') * 100.0 / NULLIF(COUNT(*), 0)), 0)
        FROM attendance WHERE student_id = $1`
	var rate int
	if err := r.db.GetContext(ctx, &rate, query, studentID); err != nil {
		return 0, fmt.Errorf("student attendance rate: %w", err)
	}
	return rate, nil
}

// StudentAverageGrade returns one student's average percentage score.
func (r *ReportRepository) StudentAverageGrade(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COALESCE(ROUND(AVG(score / NULLIF(max_score, 0) * 100)), 0)
        FROM grades WHERE student_id = $1`
	var avg int
	if err := r.db.GetContext(ctx, &avg, query, studentID); err != nil {
		return 0, fmt.Errorf("student average grade: %w", err)
	}
	return avg, nil
}

// TeacherStudentCount counts distinct enrolled students across a teacher's
// courses.
func (r *ReportRepository) TeacherStudentCount(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.student_id)
        FROM enrollments e JOIN courses c ON c.id = e.course_id
        WHERE c.teacher_id = $1 AND e.status = 'enrolled'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("teacher student count: %w", err)
	}
	return count, nil
}

func dateSpan(column string, startDate, endDate *time.Time) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	if startDate != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", column, len(args)+1))
		args = append(args, *startDate)
	}
	if endDate != nil {
		conditions = append(conditions, fmt.Sprintf("%s < $%d", column, len(args)+1))
		args = append(args, endDate.Truncate(24*time.Hour).Add(24*time.Hour))
	}
	return strings.Join(conditions, " AND "), args
}
