package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	byID    map[string]models.Enrollment
	byPair  map[string]models.Enrollment
	updates []models.Enrollment
	creates []models.Enrollment
}

func pairKey(studentID, courseID string) string { return studentID + "/" + courseID }

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.byID[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if e, ok := m.byPair[pairKey(studentID, courseID)]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "created"
	m.creates = append(m.creates, *enrollment)
	return nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	m.updates = append(m.updates, *enrollment)
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := m.byID[id]
	delete(m.byID, id)
	return ok, nil
}

func (m *mockEnrollmentRepo) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type mockEnrollmentStudents struct {
	students map[string]models.Student
}

func (m *mockEnrollmentStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentCourses struct {
	courses map[string]models.CourseDetail
}

func (m *mockEnrollmentCourses) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

const (
	studentUUID = "6a6f5c80-61cb-4a3e-9f6a-1f2d3c4b5a69"
	courseUUID  = "7b7e6d91-72dc-4b4f-8e7b-2e3f4d5c6b7a"
)

func activeFixtures() (*mockEnrollmentStudents, *mockEnrollmentCourses) {
	students := &mockEnrollmentStudents{students: map[string]models.Student{
		studentUUID: {ID: studentUUID, Code: "S001", Status: models.StudentStatusActive},
	}}
	courses := &mockEnrollmentCourses{courses: map[string]models.CourseDetail{
		courseUUID: {Course: models.Course{
			ID:              courseUUID,
			Code:            "CRS001",
			Status:          models.CourseStatusActive,
			MaxStudents:     20,
			CurrentStudents: 5,
		}},
	}}
	return students, courses
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentUUID, CourseID: courseUUID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	require.Len(t, repo.creates, 1)
}

func TestEnrollmentServiceEnrollDuplicatePair(t *testing.T) {
	repo := &mockEnrollmentRepo{byPair: map[string]models.Enrollment{
		pairKey(studentUUID, courseUUID): {ID: "existing", Status: models.EnrollmentStatusEnrolled},
	}}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentUUID, CourseID: courseUUID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateKey.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.creates)
}

func TestEnrollmentServiceEnrollReactivatesCancelled(t *testing.T) {
	repo := &mockEnrollmentRepo{byPair: map[string]models.Enrollment{
		pairKey(studentUUID, courseUUID): {ID: "existing", StudentID: studentUUID, CourseID: courseUUID, Status: models.EnrollmentStatusCancelled},
	}}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentUUID, CourseID: courseUUID})
	require.NoError(t, err)
	assert.Equal(t, "existing", enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.Nil(t, enrollment.CompletionDate)
	require.Len(t, repo.updates, 1)
	assert.Empty(t, repo.creates)
}

func TestEnrollmentServiceEnrollFullCourse(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students, courses := activeFixtures()
	course := courses.courses[courseUUID]
	course.CurrentStudents = course.MaxStudents
	courses.courses[courseUUID] = course
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentUUID, CourseID: courseUUID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "course is full", appErr.Message)
}

func TestEnrollmentServiceEnrollInactiveStudent(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students, courses := activeFixtures()
	student := students.students[studentUUID]
	student.Status = models.StudentStatusSuspended
	students.students[studentUUID] = student
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: studentUUID, CourseID: courseUUID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateStatusCompletes(t *testing.T) {
	repo := &mockEnrollmentRepo{byID: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: studentUUID, CourseID: courseUUID, Status: models.EnrollmentStatusEnrolled},
	}}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	grade := 92.5
	enrollment, err := svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentRequest{Status: "completed", FinalGrade: &grade})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	require.NotNil(t, enrollment.CompletionDate)
	require.NotNil(t, enrollment.FinalGrade)
	assert.Equal(t, 92.5, *enrollment.FinalGrade)
}

func TestEnrollmentServiceUpdateStatusClearsCompletionOnReopen(t *testing.T) {
	completed := time.Now().UTC()
	grade := 88.0
	repo := &mockEnrollmentRepo{byID: map[string]models.Enrollment{
		"e1": {
			ID:             "e1",
			StudentID:      studentUUID,
			CourseID:       courseUUID,
			Status:         models.EnrollmentStatusCompleted,
			CompletionDate: &completed,
			FinalGrade:     &grade,
			Notes:          "finished strong",
		},
	}}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	enrollment, err := svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentRequest{Status: "suspended"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusSuspended, enrollment.Status)
	assert.Nil(t, enrollment.CompletionDate)
	assert.Nil(t, enrollment.FinalGrade)
	assert.Equal(t, "finished strong", enrollment.Notes)
}

func TestEnrollmentServiceUpdateStatusRejectsUnknown(t *testing.T) {
	repo := &mockEnrollmentRepo{byID: map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentStatusEnrolled},
	}}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentRequest{Status: "graduated"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDeleteMissing(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students, courses := activeFixtures()
	svc := NewEnrollmentService(repo, students, courses, nil, nil, nil)

	err := svc.Delete(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
