package models

import (
	"time"

	"github.com/lib/pq"
)

// FollowupType enumerates the parent contact channels.
type FollowupType string

// FollowupPriority ranks the urgency of a follow-up.
type FollowupPriority string

// FollowupStatus captures the state of a follow-up.
type FollowupStatus string

const (
	FollowupCall    FollowupType = "call"
	FollowupSMS     FollowupType = "sms"
	FollowupMeeting FollowupType = "meeting"
	FollowupReport  FollowupType = "report"
	FollowupAlert   FollowupType = "alert"

	PriorityLow    FollowupPriority = "low"
	PriorityMedium FollowupPriority = "medium"
	PriorityHigh   FollowupPriority = "high"
	PriorityUrgent FollowupPriority = "urgent"

	FollowupPending   FollowupStatus = "pending"
	FollowupCompleted FollowupStatus = "completed"
	FollowupCancelled FollowupStatus = "cancelled"
	FollowupPostponed FollowupStatus = "postponed"
)

// ParentFollowup records one contact with a student's parent. Attachments
// are stored as path references only.
type ParentFollowup struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	Type          FollowupType     `db:"type" json:"type"`
	Subject       string           `db:"subject" json:"subject"`
	Message       string           `db:"message" json:"message"`
	Priority      FollowupPriority `db:"priority" json:"priority"`
	Status        FollowupStatus   `db:"status" json:"status"`
	ScheduledDate *time.Time       `db:"scheduled_date" json:"scheduled_date,omitempty"`
	CompletedDate *time.Time       `db:"completed_date" json:"completed_date,omitempty"`
	Response      string           `db:"response" json:"response"`
	ResponseDate  *time.Time       `db:"response_date" json:"response_date,omitempty"`
	AssignedTo    string           `db:"assigned_to" json:"assigned_to"`
	Attachments   pq.StringArray   `db:"attachments" json:"attachments"`
	Notes         string           `db:"notes" json:"notes"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// FollowupDetail enriches ParentFollowup with display context.
type FollowupDetail struct {
	ParentFollowup
	StudentName  string `db:"student_name" json:"student_name"`
	StudentCode  string `db:"student_code" json:"student_code"`
	AssigneeName string `db:"assignee_name" json:"assignee_name"`
}

// FollowupFilter provides filters for listing follow-ups.
type FollowupFilter struct {
	Search     string
	StudentID  string
	AssignedTo string
	Type       FollowupType
	Priority   FollowupPriority
	Status     FollowupStatus
	Page       int
	PageSize   int
}

// FollowupStats aggregates follow-ups by status with priority counts.
type FollowupStats struct {
	ByStatus     []BucketCount `json:"by_status"`
	HighPriority int           `json:"high_priority"`
	Urgent       int           `json:"urgent"`
}
