package models

import "time"

// TeacherStatus captures the administrative state of a teacher.
type TeacherStatus string

const (
	TeacherStatusActive   TeacherStatus = "active"
	TeacherStatusInactive TeacherStatus = "inactive"
)

// Teacher represents an instructor. Code is the sequential identifier
// (T001, T002, ...).
type Teacher struct {
	ID             string        `db:"id" json:"id"`
	Code           string        `db:"code" json:"code"`
	Name           string        `db:"name" json:"name"`
	Email          string        `db:"email" json:"email"`
	Phone          string        `db:"phone" json:"phone"`
	Specialization string        `db:"specialization" json:"specialization"`
	Status         TeacherStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// TeacherFilter encapsulates search parameters for listing teachers.
type TeacherFilter struct {
	Search         string
	Specialization string
	Status         TeacherStatus
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// TeacherStats summarises the teacher collection.
type TeacherStats struct {
	Total            int           `json:"total"`
	Active           int           `json:"active"`
	BySpecialization []BucketCount `json:"by_specialization"`
}
