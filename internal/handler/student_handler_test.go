package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
	"github.com/noor-academy/school-api/internal/service"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type fakeStudentRepo struct {
	students map[string]models.Student
	listed   []models.Student
	maxCode  string
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return f.listed, len(f.listed), nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) MaxCode(ctx context.Context) (string, error) {
	return f.maxCode, nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if f.students == nil {
		f.students = make(map[string]models.Student)
	}
	f.students[student.ID] = *student
	return nil
}

func (f *fakeStudentRepo) CreateBatch(ctx context.Context, students []models.Student) error {
	if f.students == nil {
		f.students = make(map[string]models.Student)
	}
	for i := range students {
		f.students[students[i].ID] = students[i]
	}
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	f.students[student.ID] = *student
	return nil
}

func (f *fakeStudentRepo) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := f.students[id]
	delete(f.students, id)
	return ok, nil
}

func (f *fakeStudentRepo) Stats(ctx context.Context) (*models.StudentStats, error) {
	return &models.StudentStats{Total: len(f.students)}, nil
}

func newStudentTestHandler(repo *fakeStudentRepo) *StudentHandler {
	return NewStudentHandler(service.NewStudentService(repo, nil, nil))
}

func TestStudentHandlerCreateAssignsCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentTestHandler(&fakeStudentRepo{maxCode: "S041"})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"name": "Ahmed Hassan", "level": "beginner"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	var student models.Student
	require.NoError(t, json.Unmarshal(envelope.Data, &student))
	assert.Equal(t, "S042", student.Code)
}

func TestStudentHandlerCreateRejectsBadLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentTestHandler(&fakeStudentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"name": "Ahmed Hassan", "level": "expert"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerGetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentTestHandler(&fakeStudentRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/no-such-id", nil)
	c.Params = gin.Params{{Key: "id", Value: "no-such-id"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandlerListPaginates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentTestHandler(&fakeStudentRepo{listed: []models.Student{
		{ID: "s1", Code: "S001", Name: "Ahmed Hassan"},
		{ID: "s2", Code: "S002", Name: "Sara Ali"},
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students?page=1&limit=20", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.EqualValues(t, 2, envelope.Pagination["total_count"])
}
