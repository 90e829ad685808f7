package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.Student
	maxCodes   []string
	createErrs []error
	batchErr   error
	creates    int
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) MaxCode(ctx context.Context) (string, error) {
	if len(m.maxCodes) == 0 {
		return "", nil
	}
	code := m.maxCodes[0]
	if len(m.maxCodes) > 1 {
		m.maxCodes = m.maxCodes[1:]
	}
	return code, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	m.creates++
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) CreateBatch(ctx context.Context, students []models.Student) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	for i := range students {
		if students[i].ID == "" {
			students[i].ID = students[i].Code
		}
		m.students[students[i].ID] = students[i]
		m.creates++
	}
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.students[id]; !ok {
		return false, nil
	}
	delete(m.students, id)
	return true, nil
}

func (m *mockStudentRepo) Stats(ctx context.Context) (*models.StudentStats, error) {
	return &models.StudentStats{Total: len(m.students)}, nil
}

func TestStudentServiceCreateAssignsFirstCode(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Ahmed Hassan", Level: "beginner"})
	require.NoError(t, err)
	assert.Equal(t, "S001", student.Code)
	assert.Equal(t, models.StudentStatusActive, student.Status)
}

func TestStudentServiceCreateContinuesSequence(t *testing.T) {
	repo := &mockStudentRepo{maxCodes: []string{"S041"}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Ahmed Hassan", Level: "beginner"})
	require.NoError(t, err)
	assert.Equal(t, "S042", student.Code)
}

func TestStudentServiceCreateRetriesOnceOnCodeCollision(t *testing.T) {
	collision := &pq.Error{Code: "23505", Constraint: "students_code_key"}
	repo := &mockStudentRepo{
		maxCodes:   []string{"S009", "S010"},
		createErrs: []error{collision},
	}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Ahmed Hassan", Level: "beginner"})
	require.NoError(t, err)
	assert.Equal(t, "S011", student.Code)
	assert.Equal(t, 1, repo.creates)
}

func TestStudentServiceCreateGivesUpAfterSecondCollision(t *testing.T) {
	collision := &pq.Error{Code: "23505", Constraint: "students_code_key"}
	repo := &mockStudentRepo{
		maxCodes:   []string{"S009"},
		createErrs: []error{collision, collision},
	}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Ahmed Hassan", Level: "beginner"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateKey.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateCorruptMaxCode(t *testing.T) {
	repo := &mockStudentRepo{maxCodes: []string{"BOGUS"}}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Ahmed Hassan", Level: "beginner"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDataIntegrity.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.creates)
}

func TestStudentServiceCreateValidatesPayload(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Level: "beginner"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceBulkImportAllocatesRun(t *testing.T) {
	repo := &mockStudentRepo{maxCodes: []string{"S007"}}
	svc := NewStudentService(repo, nil, nil)

	created, err := svc.BulkImport(context.Background(), []CreateStudentRequest{
		{Name: "One", Level: "beginner"},
		{Name: "Two", Level: "intermediate"},
		{Name: "Three", Level: "advanced"},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "S008", created[0].Code)
	assert.Equal(t, "S009", created[1].Code)
	assert.Equal(t, "S010", created[2].Code)
}

func TestStudentServiceBulkImportAtomicOnFailure(t *testing.T) {
	repo := &mockStudentRepo{
		maxCodes: []string{"S007"},
		batchErr: &pq.Error{Code: "23505", Constraint: "students_email_key"},
	}
	svc := NewStudentService(repo, nil, nil)

	created, err := svc.BulkImport(context.Background(), []CreateStudentRequest{
		{Name: "One", Level: "beginner"},
		{Name: "Two", Level: "intermediate"},
		{Name: "Three", Level: "advanced"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateKey.Code, appErrors.FromError(err).Code)
	assert.Nil(t, created)
	assert.Empty(t, repo.students)
	assert.Equal(t, 0, repo.creates)
}

func TestStudentServiceDeleteMissing(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	err := svc.Delete(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
