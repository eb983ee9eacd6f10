package timesheet

import (
	"fmt"
	"log/slog"
)

type Options struct {
	SpecialProjects []string
	Policy          HalfDayPolicy
	Logger          *slog.Logger
}

// Build runs the whole classification for a range: date generation,
// aggregation and per-day classification. It returns one record per date
// of r, or an error and no records.
func Build(r Range, holidays HolidayCalendar, events []Event, opts Options) ([]DayRecord, error) {
	if r.From.After(r.To) {
		return nil, &InvalidRangeError{From: r.From.String(), To: r.To.String(), Reason: "from_date is after to_date"}
	}

	policy := opts.Policy
	if policy == "" {
		policy = DefaultHalfDayPolicy
	}

	agg, err := Aggregate(Dates(r, holidays), events, AggregateOptions{
		SpecialProjects: opts.SpecialProjects,
		Logger:          opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating events: %w", err)
	}

	if opts.Logger != nil {
		opts.Logger.Debug("aggregated events", "range", r.String(), "events", len(events), "dropped", agg.Dropped)
	}

	return Classify(agg, policy), nil
}
