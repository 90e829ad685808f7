package models

import "time"

// ExamType enumerates the assessment kinds.
type ExamType string

const (
	ExamWritten       ExamType = "written"
	ExamOral          ExamType = "oral"
	ExamProject       ExamType = "project"
	ExamParticipation ExamType = "participation"
	ExamMemorization  ExamType = "memorization"
)

// Grade band labels. Bands are inclusive on their lower bound.
const (
	BandExcellent  = "excellent"
	BandVeryGood   = "very good"
	BandGood       = "good"
	BandAcceptable = "acceptable"
	BandFail       = "fail"
)

// GradeBand maps a score to its fixed band: >=90 excellent, 80-89 very good,
// 70-79 good, 60-69 acceptable, below 60 fail.
func GradeBand(score float64) string {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 80:
		return BandVeryGood
	case score >= 70:
		return BandGood
	case score >= 60:
		return BandAcceptable
	default:
		return BandFail
	}
}

// Grade records one assessment result for a student in a course.
type Grade struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	ExamType  ExamType  `db:"exam_type" json:"exam_type"`
	Title     string    `db:"title" json:"title"`
	Score     float64   `db:"score" json:"score"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	GradeDate time.Time `db:"grade_date" json:"grade_date"`
	Notes     string    `db:"notes" json:"notes"`
	GradedBy  string    `db:"graded_by" json:"graded_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Band returns the fixed band for the grade's percentage score.
func (g Grade) Band() string {
	if g.MaxScore <= 0 {
		return BandFail
	}
	return GradeBand(g.Score / g.MaxScore * 100)
}

// GradeDetail enriches Grade with display context.
type GradeDetail struct {
	Grade
	StudentName string `db:"student_name" json:"student_name"`
	StudentCode string `db:"student_code" json:"student_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	GraderName  string `db:"grader_name" json:"grader_name"`
}

// GradeFilter provides filters for listing grades.
type GradeFilter struct {
	StudentID string
	CourseID  string
	ExamType  ExamType
	Page      int
	PageSize  int
}

// GradeCourseSummary aggregates a student's grades within one course.
type GradeCourseSummary struct {
	CourseID     string  `db:"course_id" json:"course_id"`
	CourseTitle  string  `db:"course_title" json:"course_title"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	TotalExams   int     `db:"total_exams" json:"total_exams"`
}
