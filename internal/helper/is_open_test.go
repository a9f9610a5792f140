package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-queue/internal/models"
)

func TestParseOpeningHours(t *testing.T) {
	h, err := ParseOpeningHours("07:30-14:00")
	require.NoError(t, err)
	assert.Equal(t, models.OpeningHours{Open: "07:30:00", Close: "14:00:00"}, h)

	_, err = ParseOpeningHours("07:30")
	assert.Error(t, err)

	_, err = ParseOpeningHours("25:00-26:00")
	assert.Error(t, err)
}

func TestIsOpenAt(t *testing.T) {
	loc := time.FixedZone("clinic", 3*3600)
	day := models.OpeningHours{Open: "08:00", Close: "14:00"}
	night := models.OpeningHours{Open: "22:00", Close: "02:00"}

	tests := []struct {
		name  string
		hours models.OpeningHours
		at    time.Time
		want  bool
	}{
		{"before open", day, time.Date(2026, 3, 1, 7, 59, 0, 0, loc), false},
		{"at open", day, time.Date(2026, 3, 1, 8, 0, 0, 0, loc), true},
		{"midday", day, time.Date(2026, 3, 1, 11, 0, 0, 0, loc), true},
		{"at close", day, time.Date(2026, 3, 1, 14, 0, 0, 0, loc), false},
		{"overnight late", night, time.Date(2026, 3, 1, 23, 0, 0, 0, loc), true},
		{"overnight early", night, time.Date(2026, 3, 2, 1, 0, 0, 0, loc), true},
		{"overnight gap", night, time.Date(2026, 3, 2, 12, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOpenAt(tt.at, tt.hours))
		})
	}
}

func TestOperatingDay(t *testing.T) {
	loc := time.FixedZone("clinic", 3*3600)
	at := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", OperatingDay(at, loc))
	assert.Equal(t, "2026-03-01", OperatingDay(at, time.UTC))
}
