/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DaysPerWeek = 7
	HoursPerDay = 24

	// maxDisplayHour bounds the extended late-night view, which shows the
	// early hours of the following day as 24..47.
	maxDisplayHour = 2*HoursPerDay - 1
)

// ErrInvalidSlot is returned for a day or hour outside the weekly grid.
var ErrInvalidSlot = errors.New("invalid schedule slot")

var dayNames = [DaysPerWeek]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// DayIndex converts t's weekday to the Monday=0 convention used by blocks.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % DaysPerWeek
}

// DayName returns the English name for a Monday=0 day index.
func DayName(day int) string {
	if day < 0 || day >= DaysPerWeek {
		return ""
	}
	return dayNames[day]
}

// NormalizeSlot folds display hours of 24 and above onto the following day.
func NormalizeSlot(day, hour int) (int, int, error) {
	if day < 0 || day >= DaysPerWeek || hour < 0 || hour > maxDisplayHour {
		return 0, 0, fmt.Errorf("%w: day %d hour %d", ErrInvalidSlot, day, hour)
	}
	if hour >= HoursPerDay {
		return (day + 1) % DaysPerWeek, hour - HoursPerDay, nil
	}
	return day, hour, nil
}

// ClockLabel renders a 12-hour time such as "9:05 PM".
func ClockLabel(hour, minute int) string {
	suffix := "AM"
	if hour%HoursPerDay >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}
