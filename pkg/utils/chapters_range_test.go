package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

func TestParseChaptersRange(t *testing.T) {
	r, err := ParseChaptersRange("1-4,8,11")
	require.NoError(t, err)

	var selected []int
	for i := 0; i < 12; i++ {
		if r.Contains(i) {
			selected = append(selected, i+1)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 8, 11}, selected)
	assert.Equal(t, 6, r.Size(12))
	assert.Equal(t, 5, r.Size(10))
	assert.Equal(t, "1-4,8,11", r.String())
}

func TestParseChaptersRangeAll(t *testing.T) {
	for _, s := range []string{"", "all", "ALL", "  "} {
		r, err := ParseChaptersRange(s)
		require.NoError(t, err, s)
		assert.True(t, r.IsAll())
		assert.True(t, r.Contains(0))
		assert.True(t, r.Contains(999))
		assert.Equal(t, 7, r.Size(7))
	}
}

func TestParseChaptersRangeSpaces(t *testing.T) {
	r, err := ParseChaptersRange("3 1 2")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Size(10))
	assert.False(t, r.Contains(3))
	assert.Equal(t, "1,2,3", r.String())
}

func TestParseChaptersRangeInvalid(t *testing.T) {
	for _, s := range []string{"0", "-1", "1-0", "5-3", "abc", "1-x", "2,,0"} {
		_, err := ParseChaptersRange(s)
		assert.ErrorIs(t, err, data.ErrInvalidArgument, s)
	}
}
