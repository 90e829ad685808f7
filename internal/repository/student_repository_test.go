package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "code", "name", "email", "phone", "class_name", "level", "status", "join_date",
		"father_name", "mother_name", "parent_phone", "created_at", "updated_at"}).
		AddRow("id-1", "S001", "Ahmed Hassan", "ahmed@example.com", "0100000000", "1A", "beginner", "active", now,
			"Hassan", "Fatima", "0100000001", now, now)
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT id, code, name, email, phone, class_name, level, status, join_date").
		WillReturnRows(studentRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM students WHERE 1=1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`LOWER\(name\) LIKE \$1 OR LOWER\(email\) LIKE \$1 OR LOWER\(code\) LIKE \$1`).
		WithArgs("%ahmed%").
		WillReturnRows(studentRows())
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%ahmed%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "Ahmed"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S001", students[0].Code)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryMaxCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT code FROM students ORDER BY code DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("S042"))

	code, err := repo.MaxCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S042", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryMaxCodeEmptyTable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT code FROM students ORDER BY code DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	code, err := repo.MaxCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Code: "S001", Name: "Ahmed Hassan", Level: models.LevelBeginner, Status: models.StudentStatusActive}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	students := []models.Student{
		{Code: "S001", Name: "Ahmed Hassan", Level: models.LevelBeginner, Status: models.StudentStatusActive},
		{Code: "S002", Name: "Sara Ali", Level: models.LevelBeginner, Status: models.StudentStatusActive},
	}
	err := repo.CreateBatch(context.Background(), students)
	require.NoError(t, err)
	assert.NotEmpty(t, students[0].ID)
	assert.NotEmpty(t, students[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_email_key"})
	mock.ExpectRollback()

	students := []models.Student{
		{Code: "S001", Name: "Ahmed Hassan", Level: models.LevelBeginner, Status: models.StudentStatusActive},
		{Code: "S002", Name: "Sara Ali", Level: models.LevelBeginner, Status: models.StudentStatusActive},
	}
	err := repo.CreateBatch(context.Background(), students)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students WHERE id").
		WithArgs("no-such-id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
