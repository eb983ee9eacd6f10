package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

// resolveRange turns the --from/--to flags into a range. Both empty means the
// current month; an empty --to means today.
func resolveRange(from, to string, now time.Time) (timesheet.Range, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return timesheet.MonthRange(now), nil
	}
	if from == "" {
		return timesheet.Range{}, &timesheet.InvalidRangeError{To: to, Reason: "--to requires --from"}
	}

	start, err := parseDay(from, now)
	if err != nil {
		return timesheet.Range{}, &timesheet.InvalidRangeError{From: from, To: to, Reason: "unparseable --from", Err: err}
	}
	end := timesheet.NewDayKey(now)
	if to != "" {
		end, err = parseDay(to, now)
		if err != nil {
			return timesheet.Range{}, &timesheet.InvalidRangeError{From: from, To: to, Reason: "unparseable --to", Err: err}
		}
	}
	return timesheet.NewRange(start, end)
}

// parseDay accepts YYYY-MM-DD or a natural expression relative to now
// ("yesterday", "last monday", "2 weeks ago"). Natural expressions must
// resolve to today or earlier.
func parseDay(s string, now time.Time) (timesheet.DayKey, error) {
	if day, err := timesheet.ParseDayKey(s); err == nil {
		return day, nil
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return timesheet.DayKey{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	// naturaldate hands back the reference time when it recognizes nothing
	if t.Equal(now) && !isNowWord(s) {
		return timesheet.DayKey{}, fmt.Errorf("unrecognized date %q", s)
	}
	day := timesheet.NewDayKey(t)
	if day.After(timesheet.NewDayKey(now)) {
		return timesheet.DayKey{}, fmt.Errorf("date %q is in the future (%s)", s, day)
	}
	return day, nil
}

func isNowWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "now", "today", "right now":
		return true
	}
	return false
}
