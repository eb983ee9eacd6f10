package timesheet

import (
	"time"
)

// Range is an inclusive span of calendar dates with From <= To.
type Range struct {
	From DayKey `json:"from"`
	To   DayKey `json:"to"`
}

// ParseRange parses two YYYY-MM-DD strings into a Range.
func ParseRange(from, to string) (Range, error) {
	f, err := ParseDayKey(from)
	if err != nil {
		return Range{}, &InvalidRangeError{From: from, To: to, Reason: "unparseable from_date", Err: err}
	}
	t, err := ParseDayKey(to)
	if err != nil {
		return Range{}, &InvalidRangeError{From: from, To: to, Reason: "unparseable to_date", Err: err}
	}
	return NewRange(f, t)
}

func NewRange(from, to DayKey) (Range, error) {
	if from.After(to) {
		return Range{}, &InvalidRangeError{
			From:   from.String(),
			To:     to.String(),
			Reason: "from_date is after to_date",
		}
	}
	return Range{From: from, To: to}, nil
}

// MonthRange returns the calendar month containing t.
func MonthRange(t time.Time) Range {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return Range{From: NewDayKey(first), To: NewDayKey(last)}
}

// Days returns the number of dates in the range.
func (r Range) Days() int {
	return DaysBetween(r.From, r.To) + 1
}

func (r Range) Contains(k DayKey) bool {
	return !k.Before(r.From) && !k.After(r.To)
}

func (r Range) String() string {
	return r.From.String() + ".." + r.To.String()
}

// HolidayCalendar answers whether a date is a public holiday.
type HolidayCalendar interface {
	Holiday(day DayKey) (name string, ok bool)
}

// NoHolidays is a HolidayCalendar without any holiday.
type NoHolidays struct{}

func (NoHolidays) Holiday(DayKey) (string, bool) { return "", false }

// Date is one generated calendar date with its non-working tags.
type Date struct {
	Day         DayKey
	Weekend     bool
	Holiday     bool
	HolidayName string
}

// Dates returns every date of r in ascending order, tagged with weekend and holiday flags.
func Dates(r Range, holidays HolidayCalendar) []Date {
	if holidays == nil {
		holidays = NoHolidays{}
	}

	n := r.Days()
	dates := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		day := r.From.AddDays(i)
		d := Date{Day: day, Weekend: day.IsWeekend()}
		if name, ok := holidays.Holiday(day); ok {
			d.Holiday = true
			d.HolidayName = name
		}
		dates = append(dates, d)
	}
	return dates
}

// Kind returns the pre-populated kind of the date. Weekends take precedence over holidays.
func (d Date) Kind() Kind {
	switch {
	case d.Weekend:
		return KindWeekend
	case d.Holiday:
		return KindHoliday
	default:
		return KindEmpty
	}
}
