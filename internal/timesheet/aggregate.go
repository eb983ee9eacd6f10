package timesheet

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// DefaultSpecialProjects are the internal/overhead projects tagged as "[Name]" in notes.
var DefaultSpecialProjects = []string{"CI", "DevOps"}

// Event is one time-tracking entry as consumed by the aggregator.
type Event struct {
	Day     string // YYYY-MM-DD
	Project string
	Client  string
	Note    string
}

// Entry is an event attached to a day: its computed prefix and note, plus
// the project and client names kept for labelling.
type Entry struct {
	Prefix  string `json:"prefix"`
	Note    string `json:"note"`
	Project string `json:"project,omitempty"`
	Client  string `json:"client,omitempty"`
}

// Key returns the client key of the entry: the prefix with its brackets stripped.
func (e Entry) Key() string {
	if len(e.Prefix) >= 2 && e.Prefix[0] == '[' && e.Prefix[len(e.Prefix)-1] == ']' {
		return e.Prefix[1 : len(e.Prefix)-1]
	}
	return e.Prefix
}

type DayEntries struct {
	Date    Date
	Kind    Kind
	Entries []Entry
}

type AggregateOptions struct {
	SpecialProjects []string
	Logger          *slog.Logger
}

// Aggregation holds one entry list per date of the range, in ascending date order.
type Aggregation struct {
	Days    []DayEntries
	Dropped int
	index   map[DayKey]int
}

// Day returns the entry list for a date.
func (a *Aggregation) Day(k DayKey) (DayEntries, bool) {
	i, ok := a.index[k]
	if !ok {
		return DayEntries{}, false
	}
	return a.Days[i], true
}

// Aggregate buckets events by calendar day. Weekend and holiday dates are
// pre-populated from dates and keep no entries; events dated on them, or
// outside the range, are dropped. Events keep their input order.
func Aggregate(dates []Date, events []Event, opts AggregateOptions) (*Aggregation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	special := opts.SpecialProjects
	if special == nil {
		special = DefaultSpecialProjects
	}

	agg := &Aggregation{
		Days:  make([]DayEntries, len(dates)),
		index: make(map[DayKey]int, len(dates)),
	}
	for i, d := range dates {
		agg.Days[i] = DayEntries{Date: d, Kind: d.Kind()}
		agg.index[d.Day] = i
	}

	for i, ev := range events {
		day, err := ParseDayKey(ev.Day)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		idx, ok := agg.index[day]
		if !ok {
			logger.Debug("dropping event outside range", "day", ev.Day, "project", ev.Project)
			agg.Dropped++
			continue
		}
		if kind := agg.Days[idx].Kind; kind == KindWeekend || kind == KindHoliday {
			logger.Debug("dropping event on non-working day", "day", ev.Day, "kind", kind)
			agg.Dropped++
			continue
		}

		agg.Days[idx].Entries = append(agg.Days[idx].Entries, Entry{
			Prefix:  prefixFor(ev.Project, special),
			Note:    ev.Note,
			Project: ev.Project,
			Client:  ev.Client,
		})
	}

	return agg, nil
}

func prefixFor(project string, special []string) string {
	if slices.Contains(special, project) {
		return "[" + project + "]"
	}
	return ""
}
