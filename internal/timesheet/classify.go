package timesheet

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// OffMarker is the note that marks time off.
const OffMarker = "OFF"

type Kind string

const (
	KindEmpty   Kind = "EMPTY"
	KindWeekend Kind = "WEEKEND"
	KindHoliday Kind = "HOLIDAY"
	KindWork    Kind = "WORK"
)

// Status is the day-level label shown to users.
type Status string

const (
	StatusWeekend Status = "weekend"
	StatusHoliday Status = "holiday"
	StatusEmpty   Status = "empty"
	StatusOff     Status = "off"
	StatusHalfOff Status = "half_off"
	StatusWork    Status = "work"
)

// HalfDayPolicy decides whether the OFF rule is applied per client group
// or once across all notes of the day.
type HalfDayPolicy string

const (
	PerClient HalfDayPolicy = "per_client"
	WholeDay  HalfDayPolicy = "whole_day"
)

// DefaultHalfDayPolicy is used when no policy is configured.
const DefaultHalfDayPolicy = WholeDay

func ParseHalfDayPolicy(s string) (HalfDayPolicy, error) {
	switch HalfDayPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultHalfDayPolicy, nil
	case PerClient:
		return PerClient, nil
	case WholeDay:
		return WholeDay, nil
	default:
		return "", fmt.Errorf("unknown half-day policy %q (want %q or %q)", s, PerClient, WholeDay)
	}
}

// ClientDay is the classification of one client group on one day.
type ClientDay struct {
	Key      string   `json:"key"`
	Duration float64  `json:"duration"`
	AllOff   bool     `json:"all_off"`
	HasOff   bool     `json:"has_off"`
	Notes    []string `json:"notes"`
	Entries  []Entry  `json:"-"`
}

// DayRecord is the classified result for one date.
type DayRecord struct {
	Date        DayKey               `json:"date"`
	Kind        Kind                 `json:"kind"`
	HolidayName string               `json:"holiday_name,omitempty"`
	Clients     map[string]ClientDay `json:"clients,omitempty"`
	Entries     []Entry              `json:"-"` // all entries of the day, in input order
	Duration    float64              `json:"duration"`
	Status      Status               `json:"status"`
}

// ClientKeys returns the client keys of the day in ascending order.
func (d DayRecord) ClientKeys() []string {
	keys := make([]string, 0, len(d.Clients))
	for k := range d.Clients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClientsInOrder returns the client groups sorted by key.
func (d DayRecord) ClientsInOrder() []ClientDay {
	keys := d.ClientKeys()
	out := make([]ClientDay, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.Clients[k])
	}
	return out
}

// Classify classifies every day of an aggregation.
func Classify(agg *Aggregation, policy HalfDayPolicy) []DayRecord {
	records := make([]DayRecord, 0, len(agg.Days))
	for _, day := range agg.Days {
		records = append(records, ClassifyDay(day, policy))
	}
	return records
}

// ClassifyDay turns one day's entry list into its DayRecord.
func ClassifyDay(day DayEntries, policy HalfDayPolicy) DayRecord {
	rec := DayRecord{Date: day.Date.Day, Kind: day.Kind}

	switch day.Kind {
	case KindWeekend:
		rec.Status = StatusWeekend
		return rec
	case KindHoliday:
		rec.HolidayName = day.Date.HolidayName
		rec.Status = StatusHoliday
		return rec
	}

	if len(day.Entries) == 0 {
		rec.Kind = KindEmpty
		rec.Status = StatusEmpty
		return rec
	}

	rec.Kind = KindWork
	rec.Entries = day.Entries
	rec.Clients = groupByClient(day.Entries)

	switch policy {
	case WholeDay:
		notes := make([]string, 0, len(day.Entries))
		for _, e := range day.Entries {
			notes = append(notes, e.Note)
		}
		allOff, hasOff := OffFlags(notes)
		rec.Duration = DurationFor(allOff, hasOff)
		rec.Status = statusFor(allOff, hasOff)
	default:
		// a day bills at most one day, however many groups it has
		allOff, halfOff := true, false
		var sum float64
		for _, c := range rec.Clients {
			sum += c.Duration
			allOff = allOff && c.AllOff
			halfOff = halfOff || c.Duration == 0.5
		}
		rec.Duration = math.Min(sum, 1)
		switch {
		case allOff:
			rec.Status = StatusOff
		case halfOff:
			rec.Status = StatusHalfOff
		default:
			rec.Status = StatusWork
		}
	}

	return rec
}

func groupByClient(entries []Entry) map[string]ClientDay {
	groups := make(map[string]ClientDay)
	for _, e := range entries {
		key := e.Key()
		g := groups[key]
		g.Key = key
		g.Notes = append(g.Notes, e.Note)
		g.Entries = append(g.Entries, e)
		groups[key] = g
	}
	for key, g := range groups {
		g.AllOff, g.HasOff = OffFlags(g.Notes)
		g.Duration = DurationFor(g.AllOff, g.HasOff)
		groups[key] = g
	}
	return groups
}

// IsOffNote reports whether a note is the OFF marker, ignoring surrounding whitespace.
func IsOffNote(note string) bool {
	return strings.TrimSpace(note) == OffMarker
}

// OffFlags returns whether every note is OFF and whether at least one is.
// An empty note list is neither.
func OffFlags(notes []string) (allOff, hasOff bool) {
	if len(notes) == 0 {
		return false, false
	}
	allOff = true
	for _, n := range notes {
		if IsOffNote(n) {
			hasOff = true
		} else {
			allOff = false
		}
	}
	return allOff, hasOff
}

// DurationFor maps the OFF flags onto the fixed {0, 0.5, 1} scale.
func DurationFor(allOff, hasOff bool) float64 {
	switch {
	case allOff:
		return 0
	case hasOff:
		return 0.5
	default:
		return 1
	}
}

func statusFor(allOff, hasOff bool) Status {
	switch {
	case allOff:
		return StatusOff
	case hasOff:
		return StatusHalfOff
	default:
		return StatusWork
	}
}
