package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRepositoryUpdateCurrentStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(`UPDATE courses SET current_students = \$2`).
		WithArgs("course-1", 12, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateCurrentStudents(context.Background(), "course-1", 12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateCurrentStudentsGuardRejects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	// count above max_students matches no row
	mock.ExpectExec(`UPDATE courses SET current_students = \$2`).
		WithArgs("course-1", 999, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateCurrentStudents(context.Background(), "course-1", 999)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryMaxCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT code FROM courses ORDER BY code DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("CRS007"))

	code, err := repo.MaxCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CRS007", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
