package models

import "time"

// OverviewReport is the top-level dashboard rollup.
type OverviewReport struct {
	TotalStudents  int           `json:"total_students"`
	ActiveStudents int           `json:"active_students"`
	TotalTeachers  int           `json:"total_teachers"`
	ActiveTeachers int           `json:"active_teachers"`
	TotalCourses   int           `json:"total_courses"`
	ActiveCourses  int           `json:"active_courses"`
	AttendanceRate int           `json:"attendance_rate"`
	AverageGrade   int           `json:"average_grade"`
	Followups      FollowupStats `json:"followups"`
}

// StudentsReport groups the student population for charting.
type StudentsReport struct {
	ByClass              []BucketCount `json:"by_class"`
	ByLevel              []BucketCount `json:"by_level"`
	ByStatus             []BucketCount `json:"by_status"`
	NewStudentsThisMonth int           `json:"new_students_this_month"`
}

// DailyAttendancePoint is one day's attendance rollup.
type DailyAttendancePoint struct {
	Date    string `db:"bucket" json:"date"`
	Present int    `db:"present" json:"present"`
	Total   int    `db:"total" json:"total"`
	Rate    int    `json:"rate"`
}

// MonthlyRatePoint is one month's rate rollup.
type MonthlyRatePoint struct {
	Month string `db:"bucket" json:"month"`
	Rate  int    `json:"rate"`
}

// CourseRatePoint carries a per-course percentage.
type CourseRatePoint struct {
	Course string `db:"course" json:"course"`
	Rate   int    `json:"rate"`
}

// AttendanceReport bundles the attendance trend rollups.
type AttendanceReport struct {
	Daily    []DailyAttendancePoint `json:"daily"`
	Monthly  []MonthlyRatePoint     `json:"monthly"`
	ByCourse []CourseRatePoint      `json:"by_course"`
}

// CourseAveragePoint carries a per-course score average.
type CourseAveragePoint struct {
	Course  string `db:"course" json:"course"`
	Average int    `db:"average" json:"average"`
}

// MonthlyAveragePoint carries a per-month score average.
type MonthlyAveragePoint struct {
	Month   string `db:"bucket" json:"month"`
	Average int    `db:"average" json:"average"`
}

// GradesReport bundles the grade rollups.
type GradesReport struct {
	Distribution []BucketCount         `json:"distribution"`
	ByCourse     []CourseAveragePoint  `json:"by_course"`
	Trends       []MonthlyAveragePoint `json:"trends"`
}

// ComprehensiveReport groups every collection over an optional date range.
type ComprehensiveReport struct {
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	Students    []BucketCount `json:"students"`
	Teachers    []BucketCount `json:"teachers"`
	Courses     []BucketCount `json:"courses"`
	Attendance  []BucketCount `json:"attendance"`
	Grades      GradeSummary  `json:"grades"`
	Followups   []BucketCount `json:"followups"`
	Enrollments []BucketCount `json:"enrollments"`
}

// GradeSummary is the overall grade aggregate.
type GradeSummary struct {
	AverageScore float64 `db:"average_score" json:"average_score"`
	TotalExams   int     `db:"total_exams" json:"total_exams"`
}

// StudentDashboard aggregates one student's recent activity.
type StudentDashboard struct {
	Student           *Student           `json:"student"`
	AttendanceRate    int                `json:"attendance_rate"`
	AverageGrade      int                `json:"average_grade"`
	ActiveCourses     int                `json:"active_courses"`
	RecentAttendance  []AttendanceDetail `json:"recent_attendance"`
	RecentGrades      []GradeDetail      `json:"recent_grades"`
	ActiveEnrollments []EnrollmentDetail `json:"active_enrollments"`
	RecentFollowups   []FollowupDetail   `json:"recent_followups"`
}

// TeacherDashboard aggregates one teacher's courses and recent activity.
type TeacherDashboard struct {
	Teacher          *Teacher           `json:"teacher"`
	ActiveCourses    int                `json:"active_courses"`
	TotalStudents    int                `json:"total_students"`
	Courses          []CourseDetail     `json:"courses"`
	RecentAttendance []AttendanceDetail `json:"recent_attendance"`
	RecentGrades     []GradeDetail      `json:"recent_grades"`
}

// SystemMetrics is a lightweight process snapshot served next to the Prometheus endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	RecountJobs              uint64    `json:"recount_jobs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
