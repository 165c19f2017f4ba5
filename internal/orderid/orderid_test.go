package orderid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDate(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"monday of week 9 2024", time.Date(2024, 2, 26, 9, 0, 0, 0, time.UTC), "0924"},
		{"sunday of week 9 2024", time.Date(2024, 3, 3, 23, 59, 0, 0, time.UTC), "0924"},
		{"first week of 2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "0124"},
		{"friday still in week 53 of 2020", time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC), "5321"},
		{"december date in ISO week 1", time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC), "0124"},
		{"single digit week padded", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), "1025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForDate(tt.date, 0))
		})
	}
}

func TestForDateIsStable(t *testing.T) {
	d := time.Date(2024, 2, 26, 9, 0, 0, 0, time.UTC)
	first := Current(d)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Current(d))
	}
}

func TestOffsetMatchesSevenDaysEarlier(t *testing.T) {
	start := time.Date(2023, 12, 1, 6, 30, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		d := start.Add(time.Duration(i) * 37 * time.Hour)
		assert.Equal(t, ForDate(d.AddDate(0, 0, -7), 0), ForDate(d, 1), d.String())
		assert.Equal(t, ForDate(d, 1), Previous(d))
	}
}

func TestForDateUsesUTC(t *testing.T) {
	// 23:30 on Sunday in New York is already Monday in UTC.
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("timezone database unavailable")
	}
	local := time.Date(2024, 3, 3, 23, 30, 0, 0, ny)
	assert.Equal(t, "1024", Current(local))
	assert.Equal(t, Current(local.UTC()), Current(local))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("0924"))
	assert.True(t, Valid("5321"))
	assert.False(t, Valid("0024"))
	assert.False(t, Valid("5424"))
	assert.False(t, Valid("924"))
	assert.False(t, Valid("ab24"))
}
