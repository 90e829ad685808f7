package sequence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

func TestAllocatorStartsAtOne(t *testing.T) {
	a := NewAllocator("S", 3)

	code, err := a.Next("")
	require.NoError(t, err)
	assert.Equal(t, "S001", code)
}

func TestAllocatorSerialSequenceHasNoGaps(t *testing.T) {
	a := NewAllocator("S", 3)

	last := ""
	for i := 1; i <= 25; i++ {
		code, err := a.Next(last)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("S%03d", i), code)
		last = code
	}
}

func TestAllocatorPrefixes(t *testing.T) {
	cases := []struct {
		prefix string
		max    string
		want   string
	}{
		{"S", "S003", "S004"},
		{"T", "T002", "T003"},
		{"CRS", "CRS001", "CRS002"},
		{"CRS", "", "CRS001"},
		{"S", "S099", "S100"},
	}
	for _, tc := range cases {
		a := NewAllocator(tc.prefix, 3)
		code, err := a.Next(tc.max)
		require.NoError(t, err)
		assert.Equal(t, tc.want, code)
	}
}

func TestAllocatorRejectsCorruptMaxCode(t *testing.T) {
	a := NewAllocator("S", 3)

	for _, corrupt := range []string{"X004", "S0x4", "SABC", "004"} {
		_, err := a.Next(corrupt)
		require.Error(t, err, corrupt)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrDataIntegrity.Code, appErr.Code, corrupt)
	}
}

func TestAllocatorRejectsExhaustedSequence(t *testing.T) {
	a := NewAllocator("T", 3)

	_, err := a.Next("T999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDataIntegrity.Code, appErrors.FromError(err).Code)
}

func TestAllocatorNextN(t *testing.T) {
	a := NewAllocator("S", 3)

	codes, err := a.NextN("S002", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"S003", "S004", "S005"}, codes)
}
