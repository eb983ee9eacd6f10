package anomaly

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

const (
	// DefaultSigma is the number of standard deviations outside which a work day is an outlier.
	DefaultSigma = 2.0

	minDayHours = 0.0
	maxDayHours = 24.0

	// longest note that can still be a bare OFF marker
	offNoteMaxLen = 3
)

// GroupSample is one client group of a day, as seen by the detector.
type GroupSample struct {
	Client string
	AllOff bool
	HasOff bool
	Notes  []string
}

// DaySample is one day of the analysed series.
type DaySample struct {
	Date    timesheet.DayKey
	Hours   float64
	Weekend bool
	Holiday bool
	Groups  []GroupSample
}

type Input struct {
	Range timesheet.Range
	Days  []DaySample
}

type Options struct {
	Sigma float64
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Sigma <= 0 {
		o.Sigma = DefaultSigma
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FromRecords adapts classified day records to detector input. Hours are the
// policy-resolved day durations.
func FromRecords(r timesheet.Range, records []timesheet.DayRecord) Input {
	in := Input{Range: r, Days: make([]DaySample, 0, len(records))}
	for _, rec := range records {
		d := DaySample{
			Date:    rec.Date,
			Hours:   rec.Duration,
			Weekend: rec.Kind == timesheet.KindWeekend,
			Holiday: rec.Kind == timesheet.KindHoliday,
		}
		for _, c := range rec.ClientsInOrder() {
			d.Groups = append(d.Groups, GroupSample{
				Client: c.Key,
				AllOff: c.AllOff,
				HasOff: c.HasOff,
				Notes:  c.Notes,
			})
		}
		in.Days = append(in.Days, d)
	}
	return in
}

// Detect runs every rule over the series. Rules are independent: one day can
// show up under several anomaly types.
func Detect(in Input, opts Options) Result {
	opts = opts.withDefaults()

	days := make([]DaySample, len(in.Days))
	copy(days, in.Days)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	var work []float64
	var total float64
	for _, d := range days {
		total += d.Hours
		if d.Hours > 0 {
			work = append(work, d.Hours)
		}
	}
	mean := Mean(work)
	sd := StdDev(work)
	today := timesheet.NewDayKey(opts.Now())

	res := Result{
		Anomalies:    []Anomaly{},
		Incoherences: []Anomaly{},
	}
	emptyDays := 0

	for _, d := range days {
		if a, ok := checkImpossible(d); ok {
			res.Anomalies = append(res.Anomalies, a)
		}
		if a, ok := checkOutlier(d, mean, sd, opts.Sigma); ok {
			res.Anomalies = append(res.Anomalies, a)
		}
		if d.Hours == 0 && !d.Weekend && !d.Holiday {
			emptyDays++
			if a, ok := checkEmptyDay(d, today); ok {
				res.Anomalies = append(res.Anomalies, a)
			}
		}
		res.Incoherences = append(res.Incoherences, checkIncoherences(d)...)
	}

	res.Gaps = FindGaps(days)
	res.Weekly = WeeklyPattern(days)

	res.Summary = Summary{
		Period: Period{
			From: in.Range.From,
			To:   in.Range.To,
			Days: in.Range.Days(),
		},
		ActiveDays:   len(work),
		EmptyDays:    emptyDays,
		MeanHours:    round(mean, 2),
		StdDevHours:  round(sd, 2),
		TotalHours:   round(total, 2),
		Incoherences: len(res.Incoherences),
		Gaps:         len(res.Gaps),
	}
	for _, a := range res.Anomalies {
		switch a.Severity {
		case SeverityError:
			res.Summary.Anomalies.Error++
		case SeverityWarning:
			res.Summary.Anomalies.Warning++
		case SeverityInfo:
			res.Summary.Anomalies.Info++
		}
	}

	return res
}

func checkImpossible(d DaySample) (Anomaly, bool) {
	if d.Hours >= minDayHours && d.Hours <= maxDayHours {
		return Anomaly{}, false
	}
	return Anomaly{
		Type:     TypeImpossibleHours,
		Severity: SeverityError,
		Date:     d.Date,
		Message:  fmt.Sprintf("%s: %g hours is outside [%g, %g]", d.Date, d.Hours, minDayHours, maxDayHours),
		Details:  ImpossibleDetails{Hours: d.Hours, Min: minDayHours, Max: maxDayHours},
	}, true
}

func checkOutlier(d DaySample, mean, sd, sigma float64) (Anomaly, bool) {
	if sd <= 0 || d.Hours <= 0 {
		return Anomaly{}, false
	}
	lower := mean - sigma*sd
	upper := mean + sigma*sd

	details := OutlierDetails{
		Hours:        d.Hours,
		Mean:         round(mean, 2),
		StdDev:       round(sd, 2),
		Lower:        round(lower, 2),
		Upper:        round(upper, 2),
		DeviationPct: round(deviationPct(d.Hours, mean), 1),
	}

	switch {
	case d.Hours < lower:
		return Anomaly{
			Type:     TypeUnderActivity,
			Severity: SeverityWarning,
			Date:     d.Date,
			Message:  fmt.Sprintf("%s: %g is below the usual range (%.1f%% from mean %.2f)", d.Date, d.Hours, details.DeviationPct, details.Mean),
			Details:  details,
		}, true
	case d.Hours > upper:
		return Anomaly{
			Type:     TypeOverActivity,
			Severity: SeverityInfo,
			Date:     d.Date,
			Message:  fmt.Sprintf("%s: %g is above the usual range (+%.1f%% from mean %.2f)", d.Date, d.Hours, details.DeviationPct, details.Mean),
			Details:  details,
		}, true
	}
	return Anomaly{}, false
}

func deviationPct(v, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return (v - mean) / mean * 100
}

func checkEmptyDay(d DaySample, today timesheet.DayKey) (Anomaly, bool) {
	if d.Date.After(today) {
		return Anomaly{}, false
	}
	for _, g := range d.Groups {
		if g.AllOff {
			return Anomaly{}, false
		}
	}

	details := EmptyDayDetails{Weekday: d.Date.Weekday().String(), Groups: len(d.Groups)}
	if len(d.Groups) == 0 {
		return Anomaly{
			Type:     TypeEmptyDay,
			Severity: SeverityWarning,
			Date:     d.Date,
			Message:  fmt.Sprintf("%s (%s): no time entry on a working day", d.Date, details.Weekday),
			Details:  details,
		}, true
	}
	return Anomaly{
		Type:     TypeSuspectDay,
		Severity: SeverityInfo,
		Date:     d.Date,
		Message:  fmt.Sprintf("%s (%s): %d entry group(s) but no time counted", d.Date, details.Weekday, len(d.Groups)),
		Details:  details,
	}, true
}

func checkIncoherences(d DaySample) []Anomaly {
	var out []Anomaly
	for _, g := range d.Groups {
		details := IncoherenceDetails{Notes: g.Notes, AllOff: g.AllOff, HasOff: g.HasOff}

		if g.AllOff && hasLongNote(g.Notes) {
			out = append(out, Anomaly{
				Type:     TypeOffWithNotes,
				Severity: SeverityWarning,
				Date:     d.Date,
				Client:   g.Client,
				Message:  fmt.Sprintf("%s: %s is marked off but carries work notes", d.Date, clientName(g.Client)),
				Details:  details,
			})
		}
		if g.HasOff && !hasOffNote(g.Notes) {
			out = append(out, Anomaly{
				Type:     TypeHalfDayWithoutOff,
				Severity: SeverityWarning,
				Date:     d.Date,
				Client:   g.Client,
				Message:  fmt.Sprintf("%s: %s is a half day but has no OFF note", d.Date, clientName(g.Client)),
				Details:  details,
			})
		}
	}
	return out
}

func hasLongNote(notes []string) bool {
	for _, n := range notes {
		if len(strings.TrimSpace(n)) > offNoteMaxLen {
			return true
		}
	}
	return false
}

func hasOffNote(notes []string) bool {
	for _, n := range notes {
		if timesheet.IsOffNote(n) {
			return true
		}
	}
	return false
}

func clientName(key string) string {
	if key == "" {
		return "default client"
	}
	return key
}

// FindGaps returns the runs of missing dates between consecutive dates that
// have at least one client group. Dates without data at either end of the
// series are not gaps.
func FindGaps(days []DaySample) []Gap {
	var known []timesheet.DayKey
	holidays := make(map[timesheet.DayKey]bool)
	for _, d := range days {
		if len(d.Groups) > 0 {
			known = append(known, d.Date)
		}
		if d.Holiday {
			holidays[d.Date] = true
		}
	}
	sort.Slice(known, func(i, j int) bool { return known[i].Before(known[j]) })

	gaps := []Gap{}
	for i := 1; i < len(known); i++ {
		missing := timesheet.DaysBetween(known[i-1], known[i]) - 1
		if missing <= 0 {
			continue
		}
		start, end := known[i-1].AddDays(1), known[i].AddDays(-1)
		working := 0
		for d := start; !d.After(end); d = d.AddDays(1) {
			if !d.IsWeekend() && !holidays[d] {
				working++
			}
		}
		gaps = append(gaps, Gap{
			Start:       start,
			End:         end,
			LengthDays:  missing,
			WorkingDays: working,
		})
	}
	return gaps
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// WeeklyPattern groups work-day hours by weekday, Monday first.
func WeeklyPattern(days []DaySample) []WeekdayStats {
	byDay := make(map[time.Weekday][]float64)
	for _, d := range days {
		if d.Hours > 0 {
			wd := d.Date.Weekday()
			byDay[wd] = append(byDay[wd], d.Hours)
		}
	}

	stats := []WeekdayStats{}
	for _, wd := range weekdayOrder {
		values := byDay[wd]
		if len(values) == 0 {
			continue
		}
		lo, hi := bounds(values)
		stats = append(stats, WeekdayStats{
			Weekday: wd.String(),
			Mean:    round(Mean(values), 2),
			Min:     lo,
			Max:     hi,
			Count:   len(values),
		})
	}
	return stats
}
