package models

import (
	"time"

	"github.com/lib/pq"
)

// CourseCategory enumerates the taught subjects.
type CourseCategory string

// CourseStatus captures the lifecycle of a course.
type CourseStatus string

const (
	CategoryQuran   CourseCategory = "quran"
	CategoryTajweed CourseCategory = "tajweed"
	CategoryFiqh    CourseCategory = "fiqh"
	CategoryArabic  CourseCategory = "arabic"
	CategorySeerah  CourseCategory = "seerah"
	CategoryAqeedah CourseCategory = "aqeedah"
	CategoryEthics  CourseCategory = "ethics"

	CourseStatusActive    CourseStatus = "active"
	CourseStatusInactive  CourseStatus = "inactive"
	CourseStatusCompleted CourseStatus = "completed"
)

// Course represents a taught course. CurrentStudents is a denormalised count
// of enrolled-status enrollments maintained by the enrollment lifecycle; it is
// a cache over the enrollments table, not a source of truth.
type Course struct {
	ID              string         `db:"id" json:"id"`
	Code            string         `db:"code" json:"code"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	Category        CourseCategory `db:"category" json:"category"`
	Level           StudentLevel   `db:"level" json:"level"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	DurationWeeks   int            `db:"duration_weeks" json:"duration_weeks"`
	Price           float64        `db:"price" json:"price"`
	ScheduleDays    pq.StringArray `db:"schedule_days" json:"schedule_days"`
	ScheduleTime    string         `db:"schedule_time" json:"schedule_time"`
	MaxStudents     int            `db:"max_students" json:"max_students"`
	CurrentStudents int            `db:"current_students" json:"current_students"`
	Status          CourseStatus   `db:"status" json:"status"`
	StartDate       time.Time      `db:"start_date" json:"start_date"`
	EndDate         time.Time      `db:"end_date" json:"end_date"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with the assigned teacher's name.
type CourseDetail struct {
	Course
	TeacherName  *string `db:"teacher_name" json:"teacher_name,omitempty"`
	TeacherEmail *string `db:"teacher_email" json:"teacher_email,omitempty"`
}

// CourseFilter encapsulates search parameters for listing courses.
type CourseFilter struct {
	Search    string
	Category  CourseCategory
	Level     StudentLevel
	Status    CourseStatus
	TeacherID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CourseStats summarises the course collection.
type CourseStats struct {
	Total      int           `json:"total"`
	Active     int           `json:"active"`
	ByCategory []BucketCount `json:"by_category"`
	ByLevel    []BucketCount `json:"by_level"`
}
