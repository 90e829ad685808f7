package models

import "time"

// AttendanceStatus enumerates the fixed attendance outcomes.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// Attendance records one student's presence in one course on one date.
// (student_id, course_id, date) is unique.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Notes      string           `db:"notes" json:"notes"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail enriches Attendance with display context.
type AttendanceDetail struct {
	Attendance
	StudentName  string `db:"student_name" json:"student_name"`
	StudentCode  string `db:"student_code" json:"student_code"`
	CourseTitle  string `db:"course_title" json:"course_title"`
	RecorderName string `db:"recorder_name" json:"recorder_name"`
}

// AttendanceFilter provides filters for listing attendance records. Date
// selects the half-open day range [Date 00:00, Date+1 00:00); StartDate and
// EndDate select an inclusive day span.
type AttendanceFilter struct {
	StudentID string
	CourseID  string
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	Status    AttendanceStatus
	Page      int
	PageSize  int
}

// AttendanceStats summarises attendance for the stats overview.
type AttendanceStats struct {
	TotalRecords   int           `json:"total_records"`
	PresentRecords int           `json:"present_records"`
	AttendanceRate int           `json:"attendance_rate"`
	Distribution   []BucketCount `json:"distribution"`
}
