package models

import "time"

// StudentLevel classifies a student's study level.
type StudentLevel string

// StudentStatus captures the administrative state of a student.
type StudentStatus string

const (
	LevelBeginner     StudentLevel = "beginner"
	LevelIntermediate StudentLevel = "intermediate"
	LevelAdvanced     StudentLevel = "advanced"

	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusSuspended StudentStatus = "suspended"
)

// Student represents a learner registered in the school. Code is the
// sequential human-readable identifier (S001, S002, ...) assigned once at
// creation and never reused.
type Student struct {
	ID           string        `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	Name         string        `db:"name" json:"name"`
	Email        string        `db:"email" json:"email"`
	Phone        string        `db:"phone" json:"phone"`
	ClassName    string        `db:"class_name" json:"class_name"`
	Level        StudentLevel  `db:"level" json:"level"`
	Status       StudentStatus `db:"status" json:"status"`
	JoinDate     time.Time     `db:"join_date" json:"join_date"`
	FatherName   string        `db:"father_name" json:"father_name"`
	MotherName   string        `db:"mother_name" json:"mother_name"`
	ParentPhone  string        `db:"parent_phone" json:"parent_phone"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
// Search matches name, email, or code case-insensitively.
type StudentFilter struct {
	Search    string
	ClassName string
	Level     StudentLevel
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentStats summarises the student collection for the stats overview.
type StudentStats struct {
	Total    int           `json:"total"`
	Active   int           `json:"active"`
	ByClass  []BucketCount `json:"by_class"`
	ByLevel  []BucketCount `json:"by_level"`
	ByStatus []BucketCount `json:"by_status"`
}

// BucketCount is a generic (label, count) aggregation row.
type BucketCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}
