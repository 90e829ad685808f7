package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeBandBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		band  string
	}{
		{100, BandExcellent},
		{90, BandExcellent},
		{89.9, BandVeryGood},
		{80, BandVeryGood},
		{79.5, BandGood},
		{70, BandGood},
		{69, BandAcceptable},
		{60, BandAcceptable},
		{59.9, BandFail},
		{0, BandFail},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.band, GradeBand(tc.score), "score %.1f", tc.score)
	}
}

func TestGradeBandUsesPercentage(t *testing.T) {
	g := Grade{Score: 45, MaxScore: 50}
	assert.Equal(t, BandExcellent, g.Band())

	g = Grade{Score: 30, MaxScore: 50}
	assert.Equal(t, BandAcceptable, g.Band())

	g = Grade{Score: 10, MaxScore: 0}
	assert.Equal(t, BandFail, g.Band())
}

func TestEnrollmentStatusValid(t *testing.T) {
	assert.True(t, EnrollmentStatusEnrolled.Valid())
	assert.True(t, EnrollmentStatusCancelled.Valid())
	assert.False(t, EnrollmentStatus("graduated").Valid())
}

func TestAttendanceStatusValid(t *testing.T) {
	assert.True(t, AttendancePresent.Valid())
	assert.False(t, AttendanceStatus("missing").Valid())
}
