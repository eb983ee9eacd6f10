package timesheet

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// DateLayout is the wire format for calendar dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// DisplayLayout is the format used in spreadsheets and JSON records (DD/MM/YYYY).
const DisplayLayout = "02/01/2006"

// DayKey is a calendar date without time-of-day or zone. Two keys for the
// same date are always equal, whatever zone the source timestamp was in.
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDayKey returns the calendar date of t in t's own location.
func NewDayKey(t time.Time) DayKey {
	y, m, d := t.Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// ParseDayKey parses a YYYY-MM-DD string.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return DayKey{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return NewDayKey(t), nil
}

// Time returns midnight UTC of the date. UTC keeps day arithmetic free of DST shifts.
func (k DayKey) Time() time.Time {
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, time.UTC)
}

func (k DayKey) AddDays(n int) DayKey {
	return NewDayKey(k.Time().AddDate(0, 0, n))
}

func (k DayKey) Weekday() time.Weekday {
	return k.Time().Weekday()
}

// IsWeekend reports whether the date falls on a Saturday or Sunday.
func (k DayKey) IsWeekend() bool {
	wd := k.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Compare returns -1, 0 or +1 depending on calendar order.
func (k DayKey) Compare(o DayKey) int {
	switch {
	case k.Year != o.Year:
		return cmpInt(k.Year, o.Year)
	case k.Month != o.Month:
		return cmpInt(int(k.Month), int(o.Month))
	default:
		return cmpInt(k.Day, o.Day)
	}
}

func (k DayKey) Before(o DayKey) bool { return k.Compare(o) < 0 }
func (k DayKey) After(o DayKey) bool  { return k.Compare(o) > 0 }

func (k DayKey) IsZero() bool { return k == DayKey{} }

// DaysBetween returns the number of calendar days from a to b (negative if b is before a).
func DaysBetween(a, b DayKey) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

func (k DayKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// Display formats the date as DD/MM/YYYY.
func (k DayKey) Display() string {
	return fmt.Sprintf("%02d/%02d/%04d", k.Day, int(k.Month), k.Year)
}

func (k DayKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DayKey) UnmarshalText(data []byte) error {
	parsed, err := ParseDayKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// JSONSchema describes the text form of a DayKey.
func (DayKey) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Format:      "date",
		Description: "Calendar date formatted YYYY-MM-DD",
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
