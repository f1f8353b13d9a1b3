package services

import (
	"testing"
	"time"
)

func TestHolidayCalendar_Weekends(t *testing.T) {
	c := NewHolidayCalendar("")
	if c.Country() != "NONE" {
		t.Errorf("Country() = %q, expected NONE", c.Country())
	}

	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if !c.IsHoliday(saturday) {
		t.Error("Saturday should be a holiday")
	}
	if c.IsHoliday(tuesday) {
		t.Error("Tuesday should not be a holiday")
	}
}

func TestHolidayCalendar_CountryHolidays(t *testing.T) {
	tests := []struct {
		country string
		date    time.Time
		holiday bool
	}{
		{"US", time.Date(2026, 7, 3, 12, 0, 0, 0, time.UTC), true}, // Independence Day observed (Friday)
		{"US", time.Date(2026, 7, 7, 12, 0, 0, 0, time.UTC), false},
		{"gb", time.Date(2026, 12, 25, 12, 0, 0, 0, time.UTC), true},
		{"CN", time.Date(2024, 10, 1, 12, 0, 0, 0, time.Local), true},
		{"XX", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			c := NewHolidayCalendar(tt.country)
			if got := c.IsHoliday(tt.date); got != tt.holiday {
				t.Errorf("IsHoliday(%s) = %v, expected %v", tt.date.Format("2006-01-02"), got, tt.holiday)
			}
		})
	}
}
