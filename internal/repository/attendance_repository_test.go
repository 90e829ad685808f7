package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
)

func attendanceRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "student_id", "course_id", "date", "status", "notes", "recorded_by",
		"created_at", "updated_at", "student_name", "student_code", "course_title", "recorder_name"}).
		AddRow("att-1", "student-1", "course-1", now, "present", "", "user-1", now, now,
			"Ahmed Hassan", "S001", "Quran Recitation", "Admin")
}

func TestAttendanceRepositoryListByDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// a single date filter becomes the half-open range [day, day+24h)
	mock.ExpectQuery(`a\.date >= \$1 AND a\.date < \$2`).
		WithArgs(day, day.Add(24*time.Hour)).
		WillReturnRows(attendanceRows())
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(day, day.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{Date: &day})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "S001", records[0].StudentCode)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCreateBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	records := []models.Attendance{
		{StudentID: "student-1", CourseID: "course-1", Date: time.Now(), Status: models.AttendancePresent},
		{StudentID: "student-2", CourseID: "course-1", Date: time.Now(), Status: models.AttendanceAbsent},
	}
	err := repo.CreateBatch(context.Background(), records)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))
	mock.ExpectQuery(`AND status = \$1`).
		WithArgs(models.AttendancePresent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
			AddRow("present", 30).AddRow("absent", 8).AddRow("late", 2))

	stats, err := repo.Stats(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 40, stats.TotalRecords)
	assert.Equal(t, 30, stats.PresentRecords)
	assert.Equal(t, 75, stats.AttendanceRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
