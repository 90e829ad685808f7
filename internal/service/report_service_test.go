package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

type memoryCache struct {
	entries map[string][]byte
	hits    int
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.entries = make(map[string][]byte)
	return nil
}

type stubReportRepo struct{}

func (stubReportRepo) AverageGradePercent(ctx context.Context) (int, error) { return 82, nil }
func (stubReportRepo) NewStudentsSince(ctx context.Context, since time.Time) (int, error) {
	return 4, nil
}
func (stubReportRepo) DailyAttendance(ctx context.Context, days int) ([]models.DailyAttendancePoint, error) {
	return []models.DailyAttendancePoint{{Date: "2026-03-10", Present: 18, Total: 20, Rate: 90}}, nil
}
func (stubReportRepo) MonthlyAttendance(ctx context.Context, months int) ([]models.MonthlyRatePoint, error) {
	return []models.MonthlyRatePoint{{Month: "2026-03", Rate: 88}}, nil
}
func (stubReportRepo) AttendanceByCourse(ctx context.Context) ([]models.CourseRatePoint, error) {
	return nil, nil
}
func (stubReportRepo) GradeDistribution(ctx context.Context) ([]models.BucketCount, error) {
	return []models.BucketCount{{Label: models.BandExcellent, Count: 3}}, nil
}
func (stubReportRepo) GradeAveragesByCourse(ctx context.Context) ([]models.CourseAveragePoint, error) {
	return nil, nil
}
func (stubReportRepo) MonthlyGradeAverages(ctx context.Context, months int) ([]models.MonthlyAveragePoint, error) {
	return nil, nil
}
func (stubReportRepo) GradeSummary(ctx context.Context, startDate, endDate *time.Time) (*models.GradeSummary, error) {
	return &models.GradeSummary{AverageScore: 82.5, TotalExams: 10}, nil
}
func (stubReportRepo) GroupByColumn(ctx context.Context, table, column, dateColumn string, startDate, endDate *time.Time) ([]models.BucketCount, error) {
	return []models.BucketCount{{Label: "active", Count: 1}}, nil
}
func (stubReportRepo) StudentAttendanceRate(ctx context.Context, studentID string) (int, error) {
	return 91, nil
}
func (stubReportRepo) StudentAverageGrade(ctx context.Context, studentID string) (int, error) {
	return 85, nil
}
func (stubReportRepo) TeacherStudentCount(ctx context.Context, teacherID string) (int, error) {
	return 12, nil
}

type stubStatsStudents struct{}

func (stubStatsStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, Code: "S001"}, nil
}
func (stubStatsStudents) Stats(ctx context.Context) (*models.StudentStats, error) {
	return &models.StudentStats{Total: 30, Active: 25, ByClass: []models.BucketCount{{Label: "1A", Count: 10}}}, nil
}

type stubStatsTeachers struct{}

func (stubStatsTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	return &models.Teacher{ID: id, Code: "T001"}, nil
}
func (stubStatsTeachers) Stats(ctx context.Context) (*models.TeacherStats, error) {
	return &models.TeacherStats{Total: 5, Active: 5}, nil
}

type stubStatsCourses struct{}

func (stubStatsCourses) ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseDetail, error) {
	return []models.CourseDetail{{Course: models.Course{ID: "c1", Status: models.CourseStatusActive}}}, nil
}
func (stubStatsCourses) Stats(ctx context.Context) (*models.CourseStats, error) {
	return &models.CourseStats{Total: 8, Active: 6}, nil
}

type stubStatsAttendance struct{}

func (stubStatsAttendance) Stats(ctx context.Context, startDate, endDate *time.Time) (*models.AttendanceStats, error) {
	return &models.AttendanceStats{TotalRecords: 100, PresentRecords: 88, AttendanceRate: 88}, nil
}
func (stubStatsAttendance) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.AttendanceDetail, error) {
	return nil, nil
}
func (stubStatsAttendance) ListRecentByTeacher(ctx context.Context, teacherID string, limit int) ([]models.AttendanceDetail, error) {
	return nil, nil
}

type stubStatsGrades struct{}

func (stubStatsGrades) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.GradeDetail, error) {
	return nil, nil
}
func (stubStatsGrades) ListRecentByTeacher(ctx context.Context, teacherID string, limit int) ([]models.GradeDetail, error) {
	return nil, nil
}

type stubStatsFollowups struct{}

func (stubStatsFollowups) Stats(ctx context.Context) (*models.FollowupStats, error) {
	return &models.FollowupStats{HighPriority: 2, Urgent: 1}, nil
}

type stubStatsEnrollments struct{}

func (stubStatsEnrollments) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{{Enrollment: models.Enrollment{ID: "e1", Status: models.EnrollmentStatusEnrolled}}}, nil
}
func (stubStatsEnrollments) CountByStatus(ctx context.Context) ([]models.BucketCount, error) {
	return nil, nil
}

func newTestReportService(cache reportCache) *ReportService {
	return NewReportService(ReportServiceDeps{
		Reports:     stubReportRepo{},
		Students:    stubStatsStudents{},
		Teachers:    stubStatsTeachers{},
		Courses:     stubStatsCourses{},
		Attendance:  stubStatsAttendance{},
		Grades:      stubStatsGrades{},
		Followups:   stubStatsFollowups{},
		Enrollments: stubStatsEnrollments{},
		Cache:       cache,
		CacheTTL:    time.Minute,
	})
}

func TestReportServiceOverviewCachesResult(t *testing.T) {
	cache := newMemoryCache()
	svc := newTestReportService(cache)

	report, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 30, report.TotalStudents)
	assert.Equal(t, 88, report.AttendanceRate)
	assert.Equal(t, 82, report.AverageGrade)
	assert.Equal(t, 1, cache.sets)

	again, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, report.TotalStudents, again.TotalStudents)
	assert.Equal(t, 1, cache.hits)
}

func TestReportServiceWorksWithoutCache(t *testing.T) {
	svc := newTestReportService(nil)

	report, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 5, report.TotalTeachers)
}

func TestReportServiceStudentsReport(t *testing.T) {
	svc := newTestReportService(newMemoryCache())

	report, _, err := svc.Students(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.NewStudentsThisMonth)
	require.Len(t, report.ByClass, 1)
	assert.Equal(t, "1A", report.ByClass[0].Label)
}

func TestReportServiceStudentDashboard(t *testing.T) {
	svc := newTestReportService(nil)

	dashboard, err := svc.StudentDashboard(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 91, dashboard.AttendanceRate)
	assert.Equal(t, 85, dashboard.AverageGrade)
	assert.Equal(t, 1, dashboard.ActiveCourses)
}

func TestReportServiceComprehensive(t *testing.T) {
	svc := newTestReportService(nil)

	report, err := svc.Comprehensive(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 82.5, report.Grades.AverageScore)
	require.Len(t, report.Students, 1)
}

func TestReportServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := newTestReportService(nil)

	_, err := svc.Export(context.Background(), "overview", "xlsx")
	require.Error(t, err)
}
