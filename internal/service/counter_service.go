package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noor-academy/school-api/pkg/jobs"
)

type counterEnrollmentRepository interface {
	CountEnrolled(ctx context.Context, courseID string) (int, error)
}

type counterCourseRepository interface {
	UpdateCurrentStudents(ctx context.Context, courseID string, count int) (bool, error)
}

// CourseCounter keeps courses.current_students in sync with the enrollments
// table. Recounts run on a background queue; scheduling one is best-effort
// and never fails the enrollment write that triggered it.
type CourseCounter struct {
	enrollments counterEnrollmentRepository
	courses     counterCourseRepository
	queue       *jobs.Queue
	logger      *zap.Logger
	metrics     *MetricsService
}

// SetMetrics attaches the metrics recorder. Optional.
func (c *CourseCounter) SetMetrics(m *MetricsService) { c.metrics = m }

// NewCourseCounter constructs the counter and its backing queue.
func NewCourseCounter(enrollments counterEnrollmentRepository, courses counterCourseRepository, cfg jobs.QueueConfig, logger *zap.Logger) *CourseCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CourseCounter{
		enrollments: enrollments,
		courses:     courses,
		logger:      logger,
	}
	cfg.Logger = logger
	c.queue = jobs.NewQueue("course-counters", c.handle, cfg)
	return c
}

// Start begins consuming recount jobs.
func (c *CourseCounter) Start(ctx context.Context) {
	c.queue.Start(ctx)
}

// Stop drains the workers.
func (c *CourseCounter) Stop() {
	c.queue.Stop()
}

// Schedule enqueues a recount for the course. Failures are logged and
// swallowed; a stale cached count self-heals on the next enrollment change.
func (c *CourseCounter) Schedule(courseID string) {
	job := jobs.Job{
		ID:      fmt.Sprintf("recount-%s", courseID),
		Type:    "course.recount",
		Payload: courseID,
	}
	if err := c.queue.Enqueue(job); err != nil {
		c.logger.Warn("recount not scheduled",
			zap.String("course_id", courseID),
			zap.Error(err))
	}
}

// Recount synchronously recomputes and persists one course's enrolled count.
func (c *CourseCounter) Recount(ctx context.Context, courseID string) error {
	count, err := c.enrollments.CountEnrolled(ctx, courseID)
	if err != nil {
		c.metrics.RecordRecount("failed")
		return fmt.Errorf("recount course %s: %w", courseID, err)
	}
	ok, err := c.courses.UpdateCurrentStudents(ctx, courseID, count)
	if err != nil {
		c.metrics.RecordRecount("failed")
		return fmt.Errorf("persist count for course %s: %w", courseID, err)
	}
	if !ok {
		// Either the course is gone or the count exceeds max_students. Both
		// are deterministic, so retrying the job would not help.
		c.metrics.RecordRecount("rejected")
		c.logger.Error("enrolled count rejected",
			zap.String("course_id", courseID),
			zap.Int("count", count))
		return nil
	}
	c.metrics.RecordRecount("ok")
	return nil
}

func (c *CourseCounter) handle(ctx context.Context, job jobs.Job) error {
	courseID, ok := job.Payload.(string)
	if !ok {
		c.logger.Error("recount job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return c.Recount(ctx, courseID)
}
