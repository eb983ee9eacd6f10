package holiday

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/us"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

// DefaultCountry is the public-holiday calendar used when none is configured.
const DefaultCountry = "FR"

var countries = map[string][]*cal.Holiday{
	"FR": fr.Holidays,
	"GB": gb.Holidays,
	"US": us.Holidays,
}

// Countries returns the supported country codes.
func Countries() []string {
	codes := make([]string, 0, len(countries))
	for c := range countries {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Calendar answers holiday lookups for one country, plus any extra days
// added from other sources. Years are computed on first use.
type Calendar struct {
	country string
	rules   []*cal.Holiday

	mu    sync.Mutex
	years map[int]map[timesheet.DayKey]string
	extra map[timesheet.DayKey]string
}

// New returns the calendar for a country code. An empty code means no
// public holidays at all.
func New(country string) (*Calendar, error) {
	code := strings.ToUpper(strings.TrimSpace(country))
	c := &Calendar{
		country: code,
		years:   make(map[int]map[timesheet.DayKey]string),
		extra:   make(map[timesheet.DayKey]string),
	}
	if code == "" {
		return c, nil
	}

	rules, ok := countries[code]
	if !ok {
		return nil, fmt.Errorf("unsupported holiday country %q (supported: %s)", country, strings.Join(Countries(), ", "))
	}
	c.rules = rules
	return c, nil
}

func (c *Calendar) Country() string {
	return c.country
}

// AddDays registers extra non-working days. Existing names are kept.
func (c *Calendar) AddDays(days map[timesheet.DayKey]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for d, name := range days {
		if _, ok := c.extra[d]; !ok {
			c.extra[d] = name
		}
	}
}

// Holiday implements timesheet.HolidayCalendar.
func (c *Calendar) Holiday(day timesheet.DayKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.yearLocked(day.Year)[day]; ok {
		return name, true
	}
	name, ok := c.extra[day]
	return name, ok
}

// Year returns the public holidays of a year.
func (c *Calendar) Year(year int) map[timesheet.DayKey]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.yearLocked(year)
	out := make(map[timesheet.DayKey]string, len(src))
	for d, name := range src {
		out[d] = name
	}
	return out
}

func (c *Calendar) yearLocked(year int) map[timesheet.DayKey]string {
	if days, ok := c.years[year]; ok {
		return days
	}

	days := make(map[timesheet.DayKey]string, len(c.rules))
	for _, h := range c.rules {
		actual, _ := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		days[timesheet.NewDayKey(actual)] = h.Name
	}
	c.years[year] = days
	return days
}
