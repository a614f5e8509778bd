package services

import (
	"strings"
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/us"
)

// SLACalendar computes response deadlines in business days for the
// configured country. "CN" uses the official adjusted-workday calendar;
// "NONE" and unknown codes skip weekends only.
type SLACalendar struct {
	country   string
	days      map[string]int
	calendars map[string]*cal.BusinessCalendar
}

func NewSLACalendar(cfg *config.SLAConfig) *SLACalendar {
	s := &SLACalendar{
		country:   "NONE",
		days:      map[string]int{models.PriorityHigh: 1, models.PriorityMedium: 3, models.PriorityLow: 5},
		calendars: make(map[string]*cal.BusinessCalendar),
	}
	if cfg != nil {
		if cfg.Country != "" {
			s.country = strings.ToUpper(cfg.Country)
		}
		if cfg.HighDays > 0 {
			s.days[models.PriorityHigh] = cfg.HighDays
		}
		if cfg.MediumDays > 0 {
			s.days[models.PriorityMedium] = cfg.MediumDays
		}
		if cfg.LowDays > 0 {
			s.days[models.PriorityLow] = cfg.LowDays
		}
	}

	s.calendars["US"] = newBusinessCalendar("United States", us.Holidays...)
	s.calendars["GB"] = newBusinessCalendar("United Kingdom", gb.Holidays...)
	s.calendars["IE"] = newBusinessCalendar("Ireland", ie.Holidays...)
	s.calendars["CA"] = newBusinessCalendar("Canada", ca.Holidays...)
	s.calendars["AU"] = newBusinessCalendar("Australia", au.HolidaysNSW...)
	s.calendars["NZ"] = newBusinessCalendar("New Zealand", nz.Holidays...)
	s.calendars["DE"] = newBusinessCalendar("Germany", de.Holidays...)
	s.calendars["FR"] = newBusinessCalendar("France", fr.Holidays...)
	s.calendars["IT"] = newBusinessCalendar("Italy", it.Holidays...)
	s.calendars["ES"] = newBusinessCalendar("Spain", es.Holidays...)
	s.calendars["NL"] = newBusinessCalendar("Netherlands", nl.Holidays...)
	s.calendars["JP"] = newBusinessCalendar("Japan", jp.Holidays...)
	return s
}

func newBusinessCalendar(name string, holidays ...*cal.Holiday) *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.Name = name
	c.AddHoliday(holidays...)
	return c
}

func (s *SLACalendar) Country() string { return s.country }

func (s *SLACalendar) IsWorkday(t time.Time) bool {
	switch s.country {
	case "CN":
		solar := calendar.NewSolarFromDate(t)
		if holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay()); holiday != nil {
			return holiday.IsWork()
		}
		return !cal.IsWeekend(t)
	case "NONE":
		return !cal.IsWeekend(t)
	}

	if c, ok := s.calendars[s.country]; ok {
		return c.IsWorkday(t)
	}
	return !cal.IsWeekend(t)
}

// AddBusinessDays moves forward n workdays, keeping the time of day.
func (s *SLACalendar) AddBusinessDays(from time.Time, n int) time.Time {
	t := from
	for added := 0; added < n; {
		t = t.AddDate(0, 0, 1)
		if s.IsWorkday(t) {
			added++
		}
	}
	return t
}

// DueDate returns when a complaint of the given priority should be answered.
// Unknown priorities get the Low allowance.
func (s *SLACalendar) DueDate(createdAt time.Time, priority string) time.Time {
	days, ok := s.days[priority]
	if !ok {
		days = s.days[models.PriorityLow]
	}
	return s.AddBusinessDays(createdAt, days)
}
