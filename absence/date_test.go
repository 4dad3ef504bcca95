package absence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-07-10")
	require.NoError(t, err)
	assert.True(t, got.Equal(NewDate(2025, time.July, 10)))

	_, err = ParseDate("10/07/2025")
	assert.Error(t, err)
}

func TestRangesOverlap(t *testing.T) {
	day := func(n int) Date { return NewDate(2025, time.July, n) }

	cases := []struct {
		name           string
		a1, a2, b1, b2 int
		want           bool
	}{
		{"identical", 10, 12, 10, 12, true},
		{"same single day", 10, 10, 10, 10, true},
		{"b inside a", 10, 14, 11, 12, true},
		{"shared boundary day", 10, 12, 12, 14, true},
		{"adjacent days", 10, 12, 13, 14, false},
		{"disjoint", 1, 3, 20, 22, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RangesOverlap(day(tc.a1), day(tc.a2), day(tc.b1), day(tc.b2))
			assert.Equal(t, tc.want, got)
			// Overlap is symmetric in its two ranges.
			assert.Equal(t, tc.want, RangesOverlap(day(tc.b1), day(tc.b2), day(tc.a1), day(tc.a2)))
		})
	}
}

func TestDateContains(t *testing.T) {
	d := NewDate(2025, time.July, 10)
	assert.True(t, d.Contains(time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, d.Contains(time.Date(2025, time.July, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, d.Contains(time.Date(2025, time.July, 11, 0, 0, 0, 0, time.UTC)))
}

func TestDaysBetween(t *testing.T) {
	from := NewDate(2025, time.July, 10)
	assert.Equal(t, 0, DaysBetween(from, from))
	assert.Equal(t, 2, DaysBetween(from, from.AddDays(2)))
	assert.Equal(t, -2, DaysBetween(from.AddDays(2), from))
}
