package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/pkg/jobs"
)

type mockCounterEnrollments struct {
	counts map[string]int
	err    error
}

func (m *mockCounterEnrollments) CountEnrolled(ctx context.Context, courseID string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[courseID], nil
}

type mockCounterCourses struct {
	mu       sync.Mutex
	written  map[string]int
	rejected bool
	err      error
}

func (m *mockCounterCourses) UpdateCurrentStudents(ctx context.Context, courseID string, count int) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.rejected {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.written == nil {
		m.written = make(map[string]int)
	}
	m.written[courseID] = count
	return true, nil
}

func (m *mockCounterCourses) count(courseID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written[courseID]
}

func TestCourseCounterRecount(t *testing.T) {
	enrollments := &mockCounterEnrollments{counts: map[string]int{"course-1": 7}}
	courses := &mockCounterCourses{}
	counter := NewCourseCounter(enrollments, courses, jobs.QueueConfig{}, nil)

	err := counter.Recount(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 7, courses.written["course-1"])
}

func TestCourseCounterRecountPropagatesCountFailure(t *testing.T) {
	enrollments := &mockCounterEnrollments{err: errors.New("db down")}
	courses := &mockCounterCourses{}
	counter := NewCourseCounter(enrollments, courses, jobs.QueueConfig{}, nil)

	err := counter.Recount(context.Background(), "course-1")
	require.Error(t, err)
	assert.Empty(t, courses.written)
}

func TestCourseCounterRecountSwallowsGuardRejection(t *testing.T) {
	enrollments := &mockCounterEnrollments{counts: map[string]int{"course-1": 50}}
	courses := &mockCounterCourses{rejected: true}
	counter := NewCourseCounter(enrollments, courses, jobs.QueueConfig{}, nil)

	// deterministic rejection must not bounce back into the retry loop
	err := counter.Recount(context.Background(), "course-1")
	require.NoError(t, err)
}

func TestCourseCounterScheduleProcessesJob(t *testing.T) {
	enrollments := &mockCounterEnrollments{counts: map[string]int{"course-1": 3}}
	courses := &mockCounterCourses{}
	counter := NewCourseCounter(enrollments, courses, jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	counter.Start(ctx)
	counter.Schedule("course-1")

	require.Eventually(t, func() bool {
		return courses.count("course-1") == 3
	}, time.Second, 10*time.Millisecond)
	counter.Stop()
}

func TestCourseCounterScheduleBeforeStartIsSwallowed(t *testing.T) {
	enrollments := &mockCounterEnrollments{}
	courses := &mockCounterCourses{}
	counter := NewCourseCounter(enrollments, courses, jobs.QueueConfig{}, nil)

	// must not panic or block; the enqueue failure is logged only
	counter.Schedule("course-1")
	assert.Empty(t, courses.written)
}
