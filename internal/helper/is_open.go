package helper

import (
	"fmt"
	"strings"
	"time"

	"clinic-queue/internal/models"
)

const dayLayout = "2006-01-02"

// OperatingDay is the calendar day of t in the clinic timezone. Queue numbers
// restart every operating day.
func OperatingDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dayLayout)
}

// ParseOpeningHours reads "HH:MM-HH:MM" (seconds optional).
func ParseOpeningHours(s string) (models.OpeningHours, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return models.OpeningHours{}, fmt.Errorf("opening hours %q: want HH:MM-HH:MM", s)
	}

	hours := models.OpeningHours{
		Open:  normalizeClock(parts[0]),
		Close: normalizeClock(parts[1]),
	}
	for _, v := range []string{hours.Open, hours.Close} {
		if _, err := time.Parse("15:04:05", v); err != nil {
			return models.OpeningHours{}, fmt.Errorf("opening hours %q: %w", s, err)
		}
	}
	return hours, nil
}

// IsOpenAt reports whether now falls inside the window, evaluated in now's
// location. A window whose close is before its open runs past midnight.
func IsOpenAt(now time.Time, hours models.OpeningHours) bool {
	loc := now.Location()
	layout := "15:04:05"

	openTime, err := time.ParseInLocation(layout, normalizeClock(hours.Open), loc)
	if err != nil {
		return false
	}
	closeTime, err := time.ParseInLocation(layout, normalizeClock(hours.Close), loc)
	if err != nil {
		return false
	}

	openTime = time.Date(
		now.Year(), now.Month(), now.Day(),
		openTime.Hour(), openTime.Minute(), openTime.Second(),
		0, loc,
	)
	closeTime = time.Date(
		now.Year(), now.Month(), now.Day(),
		closeTime.Hour(), closeTime.Minute(), closeTime.Second(),
		0, loc,
	)

	// e.g. open 22:00, close 02:00
	if closeTime.Before(openTime) {
		closeTime = closeTime.Add(24 * time.Hour)
		if now.Before(openTime) {
			openTime = openTime.Add(-24 * time.Hour)
			closeTime = closeTime.Add(-24 * time.Hour)
		}
	}

	return !now.Before(openTime) && now.Before(closeTime)
}

func normalizeClock(v string) string {
	v = strings.TrimSpace(v)
	if strings.Count(v, ":") == 1 {
		v += ":00"
	}
	return v
}
