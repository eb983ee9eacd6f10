package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/christopherklint97/imputr/internal/anomaly"
	"github.com/christopherklint97/imputr/internal/export"
	"github.com/christopherklint97/imputr/internal/timely"
	"github.com/christopherklint97/imputr/internal/timesheet"
)

// EventSource returns every event of an account between two inclusive
// YYYY-MM-DD dates. *timely.Client implements it.
type EventSource interface {
	FetchEvents(ctx context.Context, accountID, since, upto string) ([]timely.Event, error)
}

type Request struct {
	AccountID    string
	Range        timesheet.Range
	ClientFilter []string // client names to keep; empty keeps everything
}

type Options struct {
	SpecialProjects []string
	Policy          timesheet.HalfDayPolicy
	Export          export.Options
	Sigma           float64
	Now             func() time.Time
}

// Generator runs the timesheet pipeline: fetch, filter, aggregate and
// classify, then detect or format.
type Generator struct {
	source   EventSource
	holidays timesheet.HolidayCalendar
	opts     Options
	logger   *slog.Logger
}

func NewGenerator(source EventSource, holidays timesheet.HolidayCalendar, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if holidays == nil {
		holidays = timesheet.NoHolidays{}
	}
	return &Generator{source: source, holidays: holidays, opts: opts, logger: logger}
}

// Result is the classified timesheet of one run.
type Result struct {
	Range    timesheet.Range
	Days     []timesheet.DayRecord
	Fetched  int
	Filtered int
}

// Build fetches the events of the request and classifies every day of its range.
func (g *Generator) Build(ctx context.Context, req Request) (*Result, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() {
		return nil, &timesheet.InvalidRangeError{From: req.Range.From.String(), To: req.Range.To.String(), Reason: "range is not set"}
	}
	if req.Range.From.After(req.Range.To) {
		return nil, &timesheet.InvalidRangeError{From: req.Range.From.String(), To: req.Range.To.String(), Reason: "from_date is after to_date"}
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return nil, errors.New("account ID is empty: set timely.account_id in config or TIMELY_ACCOUNT_ID env var")
	}

	start := time.Now()
	raw, err := g.source.FetchEvents(ctx, req.AccountID, req.Range.From.String(), req.Range.To.String())
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}

	kept := FilterByClient(raw, req.ClientFilter)
	g.logger.Debug("fetched events", "account", req.AccountID, "range", req.Range.String(),
		"events", len(raw), "kept", len(kept), "elapsed", time.Since(start))

	days, err := timesheet.Build(req.Range, g.holidays, ToTimesheet(kept), timesheet.Options{
		SpecialProjects: g.opts.SpecialProjects,
		Policy:          g.opts.Policy,
		Logger:          g.logger,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Range:    req.Range,
		Days:     days,
		Fetched:  len(raw),
		Filtered: len(raw) - len(kept),
	}, nil
}

// Analyze builds the request and runs the anomaly detector over it.
func (g *Generator) Analyze(ctx context.Context, req Request) (anomaly.Result, error) {
	res, err := g.Build(ctx, req)
	if err != nil {
		return anomaly.Result{}, err
	}
	return g.Detect(res), nil
}

func (g *Generator) Detect(res *Result) anomaly.Result {
	return anomaly.Detect(anomaly.FromRecords(res.Range, res.Days), anomaly.Options{
		Sigma: g.opts.Sigma,
		Now:   g.opts.Now,
	})
}

func (g *Generator) Records(res *Result) []export.Record {
	return export.Records(res.Days, g.opts.Export)
}

func (g *Generator) Rows(res *Result) []export.Row {
	return export.Rows(res.Days, g.opts.Export)
}

// FilterByClient keeps the events whose client name is in names. An empty
// filter keeps every event.
func FilterByClient(events []timely.Event, names []string) []timely.Event {
	want := normalizeFilter(names)
	if len(want) == 0 {
		return events
	}
	kept := make([]timely.Event, 0, len(events))
	for _, ev := range events {
		if slices.Contains(want, ev.ClientName()) {
			kept = append(kept, ev)
		}
	}
	return kept
}

// normalizeFilter splits comma separated values and drops blanks.
func normalizeFilter(names []string) []string {
	var out []string
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if part = strings.TrimSpace(part); part != "" && !slices.Contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}

func ToTimesheet(events []timely.Event) []timesheet.Event {
	out := make([]timesheet.Event, len(events))
	for i, ev := range events {
		out[i] = timesheet.Event{
			Day:     ev.Day,
			Project: ev.Project.Name,
			Client:  ev.ClientName(),
			Note:    ev.Note,
		}
	}
	return out
}
