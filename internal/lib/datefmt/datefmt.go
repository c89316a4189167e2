// Package datefmt converts backend schedule dates into display strings.
package datefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	InvalidDate = "Invalid Date"
	InvalidTime = "Invalid Time"

	dateLayout        = "2006-01-02"
	displayDateLayout = "Mon, 02 Jan, 2006"
	displayTimeLayout = "3:04 pm"
)

var ErrInvalidTime = errors.New("invalid 12-hour time")

type Display struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// FormatScheduleDate renders "2025-01-06" + "05:00 AM" as
// {"Mon, 06 Jan, 2025", "5:00 am"}. Any parse failure yields the
// Invalid Date / Invalid Time pair.
func FormatScheduleDate(dateStr, timeStr string) Display {
	t, err := ParseSchedule(dateStr, timeStr, time.Local)
	if err != nil {
		return Display{Date: InvalidDate, Time: InvalidTime}
	}

	return Display{
		Date: t.Format(displayDateLayout),
		Time: t.Format(displayTimeLayout),
	}
}

// ParseSchedule combines a YYYY-MM-DD date with a 12-hour "hh:mm AM" time.
func ParseSchedule(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(dateStr), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	hours, minutes, err := To24Hour(timeStr)
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hours, minutes, 0, 0, loc), nil
}

// To24Hour converts "05:00 PM" into 17, 0. PM adds 12 unless the hour is
// already 12 or more; 12 AM becomes 0.
func To24Hour(timeStr string) (int, int, error) {
	parts := strings.Fields(timeStr)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, timeStr)
	}

	clock := strings.Split(parts[0], ":")
	if len(clock) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, timeStr)
	}

	hours, err := strconv.Atoi(clock[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, timeStr)
	}

	minutes, err := strconv.Atoi(clock[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, timeStr)
	}

	switch strings.ToLower(parts[1]) {
	case "pm":
		if hours < 12 {
			hours += 12
		}
	case "am":
		if hours == 12 {
			hours = 0
		}
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, timeStr)
	}

	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, 0, fmt.Errorf("%w: %q out of range", ErrInvalidTime, timeStr)
	}

	return hours, minutes, nil
}
