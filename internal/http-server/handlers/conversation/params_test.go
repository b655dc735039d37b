package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("", false)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseTime("2026-03-04T05:06:07.089+02:00", false)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 3, 4, 3, 6, 7, 89_000_000, time.UTC).Equal(got))

	got, err = parseTime("2026-03-04", false)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).Equal(got))

	got, err = parseTime("2026-03-04", true)
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 3, 4, 23, 59, 59, 999_000_000, time.UTC).Equal(got))

	_, err = parseTime("04/03/2026", false)
	assert.Error(t, err)
}
