package services

import (
	"strings"
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/us"
)

// HolidayCalendar flags study sessions that fall on a weekend or a public holiday of
// the configured country. "NONE" checks weekends only; "CN" uses the lunar-go tables,
// which also know the make-up workdays.
type HolidayCalendar struct {
	country   string
	calendars map[string]*cal.BusinessCalendar
}

func NewHolidayCalendar(country string) *HolidayCalendar {
	c := &HolidayCalendar{
		country:   strings.ToUpper(strings.TrimSpace(country)),
		calendars: make(map[string]*cal.BusinessCalendar),
	}
	if c.country == "" {
		c.country = "NONE"
	}
	c.add("US", us.Holidays...)
	c.add("GB", gb.Holidays...)
	c.add("DE", de.Holidays...)
	c.add("FR", fr.Holidays...)
	c.add("JP", jp.Holidays...)
	c.add("AU", au.HolidaysNSW...)
	c.add("CA", ca.Holidays...)
	c.add("NZ", nz.Holidays...)
	c.add("IT", it.Holidays...)
	c.add("ES", es.Holidays...)
	c.add("NL", nl.Holidays...)
	return c
}

func (c *HolidayCalendar) add(code string, holidays ...*cal.Holiday) {
	bc := cal.NewBusinessCalendar()
	bc.Name = code
	bc.AddHoliday(holidays...)
	c.calendars[code] = bc
}

func (c *HolidayCalendar) Country() string {
	return c.country
}

// IsHoliday reports whether t is a day off in the configured country.
func (c *HolidayCalendar) IsHoliday(t time.Time) bool {
	return !c.isWorkday(t)
}

func (c *HolidayCalendar) isWorkday(t time.Time) bool {
	switch c.country {
	case "CN":
		solar := calendar.NewSolarFromDate(t)
		if h := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay()); h != nil {
			return h.IsWork()
		}
		return !cal.IsWeekend(t)
	case "NONE":
		return !cal.IsWeekend(t)
	}

	bc, ok := c.calendars[c.country]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return bc.IsWorkday(t)
}

// SupportedCountries lists the accepted holiday_country codes.
func (c *HolidayCalendar) SupportedCountries() []string {
	codes := []string{"NONE", "CN"}
	for code := range c.calendars {
		codes = append(codes, code)
	}
	return codes
}
