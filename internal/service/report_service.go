package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noor-academy/school-api/internal/models"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
	"github.com/noor-academy/school-api/pkg/export"
	"github.com/noor-academy/school-api/pkg/storage"
)

type reportRepository interface {
	AverageGradePercent(ctx context.Context) (int, error)
	NewStudentsSince(ctx context.Context, since time.Time) (int, error)
	DailyAttendance(ctx context.Context, days int) ([]models.DailyAttendancePoint, error)
	MonthlyAttendance(ctx context.Context, months int) ([]models.MonthlyRatePoint, error)
	AttendanceByCourse(ctx context.Context) ([]models.CourseRatePoint, error)
	GradeDistribution(ctx context.Context) ([]models.BucketCount, error)
	GradeAveragesByCourse(ctx context.Context) ([]models.CourseAveragePoint, error)
	MonthlyGradeAverages(ctx context.Context, months int) ([]models.MonthlyAveragePoint, error)
	GradeSummary(ctx context.Context, startDate, endDate *time.Time) (*models.GradeSummary, error)
	GroupByColumn(ctx context.Context, table, column, dateColumn string, startDate, endDate *time.Time) ([]models.BucketCount, error)
	StudentAttendanceRate(ctx context.Context, studentID string) (int, error)
	StudentAverageGrade(ctx context.Context, studentID string) (int, error)
	TeacherStudentCount(ctx context.Context, teacherID string) (int, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type reportStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Stats(ctx context.Context) (*models.StudentStats, error)
}

type reportTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Stats(ctx context.Context) (*models.TeacherStats, error)
}

type reportCourseRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseDetail, error)
	Stats(ctx context.Context) (*models.CourseStats, error)
}

type reportAttendanceRepository interface {
	Stats(ctx context.Context, startDate, endDate *time.Time) (*models.AttendanceStats, error)
	ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.AttendanceDetail, error)
	ListRecentByTeacher(ctx context.Context, teacherID string, limit int) ([]models.AttendanceDetail, error)
}

type reportGradeRepository interface {
	ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.GradeDetail, error)
	ListRecentByTeacher(ctx context.Context, teacherID string, limit int) ([]models.GradeDetail, error)
}

type reportFollowupRepository interface {
	Stats(ctx context.Context) (*models.FollowupStats, error)
}

type reportEnrollmentRepository interface {
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	CountByStatus(ctx context.Context) ([]models.BucketCount, error)
}

// ExportResult describes a rendered report file and its signed download token.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportService assembles read-only rollups over every collection. Results
// are cached in Redis under reports:* keys; a cold cache recomputes from SQL.
type ReportService struct {
	reports     reportRepository
	students    reportStudentRepository
	teachers    reportTeacherRepository
	courses     reportCourseRepository
	attendance  reportAttendanceRepository
	grades      reportGradeRepository
	followups   reportFollowupRepository
	enrollments reportEnrollmentRepository

	cache    reportCache
	cacheTTL time.Duration

	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner

	logger  *zap.Logger
	metrics *MetricsService
}

// SetMetrics attaches the metrics recorder. Optional.
func (s *ReportService) SetMetrics(m *MetricsService) { s.metrics = m }

// ReportServiceDeps bundles the collaborators for NewReportService.
type ReportServiceDeps struct {
	Reports     reportRepository
	Students    reportStudentRepository
	Teachers    reportTeacherRepository
	Courses     reportCourseRepository
	Attendance  reportAttendanceRepository
	Grades      reportGradeRepository
	Followups   reportFollowupRepository
	Enrollments reportEnrollmentRepository
	Cache       reportCache
	CacheTTL    time.Duration
	Storage     *storage.LocalStorage
	Signer      *storage.SignedURLSigner
	Logger      *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(deps ReportServiceDeps) *ReportService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 5 * time.Minute
	}
	return &ReportService{
		reports:     deps.Reports,
		students:    deps.Students,
		teachers:    deps.Teachers,
		courses:     deps.Courses,
		attendance:  deps.Attendance,
		grades:      deps.Grades,
		followups:   deps.Followups,
		enrollments: deps.Enrollments,
		cache:       deps.Cache,
		cacheTTL:    deps.CacheTTL,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		storage:     deps.Storage,
		signer:      deps.Signer,
		logger:      deps.Logger,
	}
}

// Overview returns the dashboard rollup. The second return reports a cache
// hit.
func (s *ReportService) Overview(ctx context.Context) (*models.OverviewReport, bool, error) {
	const key = "reports:overview"
	var cached models.OverviewReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	report := &models.OverviewReport{}

	studentStats, err := s.students.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate students")
	}
	report.TotalStudents = studentStats.Total
	report.ActiveStudents = studentStats.Active

	teacherStats, err := s.teachers.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate teachers")
	}
	report.TotalTeachers = teacherStats.Total
	report.ActiveTeachers = teacherStats.Active

	courseStats, err := s.courses.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate courses")
	}
	report.TotalCourses = courseStats.Total
	report.ActiveCourses = courseStats.Active

	attendanceStats, err := s.attendance.Stats(ctx, nil, nil)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	report.AttendanceRate = attendanceStats.AttendanceRate

	avg, err := s.reports.AverageGradePercent(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to average grades")
	}
	report.AverageGrade = avg

	followupStats, err := s.followups.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate followups")
	}
	report.Followups = *followupStats

	s.cacheSet(ctx, key, report)
	return report, false, nil
}

// Students returns the student population rollup.
func (s *ReportService) Students(ctx context.Context) (*models.StudentsReport, bool, error) {
	const key = "reports:students"
	var cached models.StudentsReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	stats, err := s.students.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate students")
	}
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	newThisMonth, err := s.reports.NewStudentsSince(ctx, monthStart)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count new students")
	}

	report := &models.StudentsReport{
		ByClass:              stats.ByClass,
		ByLevel:              stats.ByLevel,
		ByStatus:             stats.ByStatus,
		NewStudentsThisMonth: newThisMonth,
	}
	s.cacheSet(ctx, key, report)
	return report, false, nil
}

// Attendance returns the attendance trend rollups.
func (s *ReportService) Attendance(ctx context.Context, days, months int) (*models.AttendanceReport, bool, error) {
	key := fmt.Sprintf("reports:attendance:%d:%d", days, months)
	var cached models.AttendanceReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	daily, err := s.reports.DailyAttendance(ctx, days)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll up daily attendance")
	}
	monthly, err := s.reports.MonthlyAttendance(ctx, months)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll up monthly attendance")
	}
	byCourse, err := s.reports.AttendanceByCourse(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to roll up attendance by course")
	}

	report := &models.AttendanceReport{Daily: daily, Monthly: monthly, ByCourse: byCourse}
	s.cacheSet(ctx, key, report)
	return report, false, nil
}

// Grades returns the grade rollups.
func (s *ReportService) Grades(ctx context.Context, months int) (*models.GradesReport, bool, error) {
	key := fmt.Sprintf("reports:grades:%d", months)
	var cached models.GradesReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	distribution, err := s.reports.GradeDistribution(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bucket grades")
	}
	byCourse, err := s.reports.GradeAveragesByCourse(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to average grades by course")
	}
	trends, err := s.reports.MonthlyGradeAverages(ctx, months)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to trend grades")
	}

	report := &models.GradesReport{Distribution: distribution, ByCourse: byCourse, Trends: trends}
	s.cacheSet(ctx, key, report)
	return report, false, nil
}

// Comprehensive groups every collection over an optional date range. Not
// cached: the span makes keys unbounded.
func (s *ReportService) Comprehensive(ctx context.Context, startDate, endDate *time.Time) (*models.ComprehensiveReport, error) {
	report := &models.ComprehensiveReport{StartDate: startDate, EndDate: endDate}

	var err error
	if report.Students, err = s.reports.GroupByColumn(ctx, "students", "status", "", startDate, endDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group students")
	}
	if report.Teachers, err = s.reports.GroupByColumn(ctx, "teachers", "status", "", startDate, endDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group teachers")
	}
	if report.Courses, err = s.reports.GroupByColumn(ctx, "courses", "status", "", startDate, endDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group courses")
	}
	if report.Attendance, err = s.reports.GroupByColumn(ctx, "attendance", "status", "", startDate, endDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group attendance")
	}
	if report.Followups, err = s.reports.GroupByColumn(ctx, "parent_followups", "status", "", startDate, endDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group followups")
	}
	if report.Enrollments, err = s.reports.GroupByColumn(ctx, "enrollments", "status", "", startDate, endDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group enrollments")
	}

	summary, err := s.reports.GradeSummary(ctx, startDate, endDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise grades")
	}
	report.Grades = *summary
	return report, nil
}

// StudentDashboard aggregates one student's recent activity.
func (s *ReportService) StudentDashboard(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	dashboard := &models.StudentDashboard{Student: student}
	if dashboard.AttendanceRate, err = s.reports.StudentAttendanceRate(ctx, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rate attendance")
	}
	if dashboard.AverageGrade, err = s.reports.StudentAverageGrade(ctx, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to average grades")
	}
	if dashboard.ActiveEnrollments, err = s.enrollments.ListActiveByStudent(ctx, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	dashboard.ActiveCourses = len(dashboard.ActiveEnrollments)
	if dashboard.RecentAttendance, err = s.attendance.ListRecentByStudent(ctx, studentID, 5); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	if dashboard.RecentGrades, err = s.grades.ListRecentByStudent(ctx, studentID, 5); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return dashboard, nil
}

// TeacherDashboard aggregates one teacher's courses and recent activity.
func (s *ReportService) TeacherDashboard(ctx context.Context, teacherID string) (*models.TeacherDashboard, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}

	dashboard := &models.TeacherDashboard{Teacher: teacher}
	if dashboard.Courses, err = s.courses.ListByTeacher(ctx, teacherID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	for _, course := range dashboard.Courses {
		if course.Status == models.CourseStatusActive {
			dashboard.ActiveCourses++
		}
	}
	if dashboard.TotalStudents, err = s.reports.TeacherStudentCount(ctx, teacherID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if dashboard.RecentAttendance, err = s.attendance.ListRecentByTeacher(ctx, teacherID, 5); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	if dashboard.RecentGrades, err = s.grades.ListRecentByTeacher(ctx, teacherID, 5); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return dashboard, nil
}

// Export renders a report as CSV or PDF, stores the file, and returns a
// signed download token.
func (s *ReportService) Export(ctx context.Context, reportType, format string) (*ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}

	dataset, title, err := s.buildDataset(ctx, reportType)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case "csv":
		payload, err = s.csv.Render(*dataset)
	case "pdf":
		payload, err = s.pdf.Render(*dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	jobID := strconv.FormatInt(time.Now().UnixNano(), 36)
	fileName := fmt.Sprintf("reports/%s-%s.%s", reportType, time.Now().UTC().Format("20060102-150405"), format)
	if _, err := s.storage.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(jobID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &ExportResult{FileName: fileName, Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *ReportService) ResolveDownload(token string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return s.storage.Path(relPath), nil
}

// InvalidateCache drops every cached report. Called after bulk writes.
func (s *ReportService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}

func (s *ReportService) buildDataset(ctx context.Context, reportType string) (*export.Dataset, string, error) {
	switch reportType {
	case "overview":
		report, _, err := s.Overview(ctx)
		if err != nil {
			return nil, "", err
		}
		dataset := &export.Dataset{
			Headers: []string{"Metric", "Value"},
			Rows: []map[string]string{
				{"Metric": "Total Students", "Value": strconv.Itoa(report.TotalStudents)},
				{"Metric": "Active Students", "Value": strconv.Itoa(report.ActiveStudents)},
				{"Metric": "Total Teachers", "Value": strconv.Itoa(report.TotalTeachers)},
				{"Metric": "Active Teachers", "Value": strconv.Itoa(report.ActiveTeachers)},
				{"Metric": "Total Courses", "Value": strconv.Itoa(report.TotalCourses)},
				{"Metric": "Active Courses", "Value": strconv.Itoa(report.ActiveCourses)},
				{"Metric": "Attendance Rate", "Value": strconv.Itoa(report.AttendanceRate) + "%"},
				{"Metric": "Average Grade", "Value": strconv.Itoa(report.AverageGrade) + "%"},
			},
		}
		return dataset, "School Overview", nil
	case "students":
		report, _, err := s.Students(ctx)
		if err != nil {
			return nil, "", err
		}
		dataset := &export.Dataset{Headers: []string{"Group", "Label", "Count"}}
		for _, b := range report.ByClass {
			dataset.Rows = append(dataset.Rows, map[string]string{"Group": "class", "Label": b.Label, "Count": strconv.Itoa(b.Count)})
		}
		for _, b := range report.ByLevel {
			dataset.Rows = append(dataset.Rows, map[string]string{"Group": "level", "Label": b.Label, "Count": strconv.Itoa(b.Count)})
		}
		for _, b := range report.ByStatus {
			dataset.Rows = append(dataset.Rows, map[string]string{"Group": "status", "Label": b.Label, "Count": strconv.Itoa(b.Count)})
		}
		return dataset, "Students Report", nil
	case "attendance":
		report, _, err := s.Attendance(ctx, 30, 12)
		if err != nil {
			return nil, "", err
		}
		dataset := &export.Dataset{Headers: []string{"Date", "Present", "Total", "Rate"}}
		for _, p := range report.Daily {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Date":    p.Date,
				"Present": strconv.Itoa(p.Present),
				"Total":   strconv.Itoa(p.Total),
				"Rate":    strconv.Itoa(p.Rate) + "%",
			})
		}
		return dataset, "Attendance Report", nil
	case "grades":
		report, _, err := s.Grades(ctx, 12)
		if err != nil {
			return nil, "", err
		}
		dataset := &export.Dataset{Headers: []string{"Band", "Count"}}
		for _, b := range report.Distribution {
			dataset.Rows = append(dataset.Rows, map[string]string{"Band": b.Label, "Count": strconv.Itoa(b.Count)})
		}
		return dataset, "Grades Report", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown report type")
	}
}

func (s *ReportService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(ctx, key, dest); err != nil {
		if err != appErrors.ErrCacheMiss {
			s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
		return false
	}
	s.metrics.RecordCacheOperation(true)
	return true
}

func (s *ReportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
