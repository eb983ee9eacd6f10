package anomaly

import (
	"testing"
	"time"

	"github.com/christopherklint97/imputr/internal/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) timesheet.DayKey {
	k, err := timesheet.ParseDayKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func fixedNow(s string) func() time.Time {
	return func() time.Time { return day(s).Time() }
}

func workGroup(notes ...string) []GroupSample {
	allOff, hasOff := timesheet.OffFlags(notes)
	return []GroupSample{{Client: "", AllOff: allOff, HasOff: hasOff, Notes: notes}}
}

// series builds consecutive days starting at start, one per value, each with a work group.
func series(start string, values ...float64) Input {
	from := day(start)
	in := Input{Range: timesheet.Range{From: from, To: from.AddDays(len(values) - 1)}}
	for i, v := range values {
		in.Days = append(in.Days, DaySample{Date: from.AddDays(i), Hours: v, Groups: workGroup("work")})
	}
	return in
}

func byType(anomalies []Anomaly, typ Type) []Anomaly {
	var out []Anomaly
	for _, a := range anomalies {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestMeanStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-9)

	lo, hi := bounds([]float64{0.5, 1, 0.5, 1.5})
	assert.Equal(t, 0.5, lo)
	assert.Equal(t, 1.5, hi)
	lo, hi = bounds(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
	assert.Equal(t, 194.1, round(194.12, 1))
}

func TestImpossibleAndOverActivity(t *testing.T) {
	in := series("2024-06-03", 8, 8, 8, 8, 8, 8, 8, 8, 8, 30)
	res := Detect(in, Options{Now: fixedNow("2024-07-01")})

	require.Len(t, res.Anomalies, 2)

	impossible := res.Anomalies[0]
	assert.Equal(t, TypeImpossibleHours, impossible.Type)
	assert.Equal(t, SeverityError, impossible.Severity)
	assert.Equal(t, day("2024-06-12"), impossible.Date)
	assert.Equal(t, ImpossibleDetails{Hours: 30, Min: 0, Max: 24}, impossible.Details)

	over := res.Anomalies[1]
	assert.Equal(t, TypeOverActivity, over.Type)
	assert.Equal(t, SeverityInfo, over.Severity)
	details, ok := over.Details.(OutlierDetails)
	require.True(t, ok)
	assert.Equal(t, 10.2, details.Mean)
	assert.Equal(t, 6.96, details.StdDev)
	assert.Equal(t, 194.1, details.DeviationPct)

	assert.Equal(t, 10, res.Summary.ActiveDays)
	assert.Equal(t, 10.2, res.Summary.MeanHours)
	assert.Equal(t, 6.96, res.Summary.StdDevHours)
	assert.Equal(t, 102.0, res.Summary.TotalHours)
	assert.Equal(t, SeverityCounts{Error: 1, Info: 1}, res.Summary.Anomalies)
}

func TestUnderActivity(t *testing.T) {
	in := series("2024-06-03", 8, 8, 8, 8, 8, 8, 8, 8, 8, 1)
	res := Detect(in, Options{Now: fixedNow("2024-07-01")})

	under := byType(res.Anomalies, TypeUnderActivity)
	require.Len(t, under, 1)
	assert.Equal(t, SeverityWarning, under[0].Severity)
	assert.Equal(t, day("2024-06-12"), under[0].Date)
	assert.Equal(t, -86.3, under[0].Details.(OutlierDetails).DeviationPct)
	assert.Empty(t, byType(res.Anomalies, TypeOverActivity))
}

func TestNoOutliersWithoutSpread(t *testing.T) {
	res := Detect(series("2024-06-03", 1, 1, 1, 1), Options{Now: fixedNow("2024-07-01")})
	assert.Empty(t, res.Anomalies)
	assert.Equal(t, 0.0, res.Summary.StdDevHours)
}

func TestSigmaOption(t *testing.T) {
	in := series("2024-06-03", 1, 1, 1, 1, 0.5)
	assert.Empty(t, byType(Detect(in, Options{Now: fixedNow("2024-07-01")}).Anomalies, TypeUnderActivity))
	assert.Len(t, byType(Detect(in, Options{Sigma: 1, Now: fixedNow("2024-07-01")}).Anomalies, TypeUnderActivity), 1)
}

func TestEmptyWeekdayFromPipeline(t *testing.T) {
	r, err := timesheet.ParseRange("2024-06-01", "2024-06-03")
	require.NoError(t, err)
	records, err := timesheet.Build(r, nil, nil, timesheet.Options{})
	require.NoError(t, err)

	require.Equal(t, timesheet.KindWeekend, records[0].Kind)
	require.Equal(t, timesheet.KindWeekend, records[1].Kind)
	require.Equal(t, timesheet.KindEmpty, records[2].Kind)

	res := Detect(FromRecords(r, records), Options{Now: fixedNow("2024-06-10")})
	require.Len(t, res.Anomalies, 1)
	a := res.Anomalies[0]
	assert.Equal(t, TypeEmptyDay, a.Type)
	assert.Equal(t, SeverityWarning, a.Severity)
	assert.Equal(t, day("2024-06-03"), a.Date)
	assert.Equal(t, EmptyDayDetails{Weekday: "Monday", Groups: 0}, a.Details)

	assert.Equal(t, Period{From: r.From, To: r.To, Days: 3}, res.Summary.Period)
	assert.Equal(t, 1, res.Summary.EmptyDays)
	assert.Equal(t, 0, res.Summary.ActiveDays)
}

func TestEmptyDayInFutureIsIgnored(t *testing.T) {
	in := Input{
		Range: timesheet.Range{From: day("2024-06-03"), To: day("2024-06-04")},
		Days: []DaySample{
			{Date: day("2024-06-03")},
			{Date: day("2024-06-04")},
		},
	}
	res := Detect(in, Options{Now: fixedNow("2024-06-03")})
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, day("2024-06-03"), res.Anomalies[0].Date, "today is still checked")
}

func TestSuspectAndOffDays(t *testing.T) {
	in := Input{
		Range: timesheet.Range{From: day("2024-06-03"), To: day("2024-06-05")},
		Days: []DaySample{
			{Date: day("2024-06-03"), Groups: []GroupSample{{Client: "CI", Notes: []string{"pending"}}}},
			{Date: day("2024-06-04"), Groups: workGroup("OFF")},
			{Date: day("2024-06-05"), Holiday: true},
		},
	}
	res := Detect(in, Options{Now: fixedNow("2024-07-01")})

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, TypeSuspectDay, res.Anomalies[0].Type)
	assert.Equal(t, SeverityInfo, res.Anomalies[0].Severity)
	assert.Equal(t, EmptyDayDetails{Weekday: "Monday", Groups: 1}, res.Anomalies[0].Details)
	assert.Equal(t, 2, res.Summary.EmptyDays)
}

func TestIncoherences(t *testing.T) {
	in := Input{
		Range: timesheet.Range{From: day("2024-06-03"), To: day("2024-06-04")},
		Days: []DaySample{
			{Date: day("2024-06-03"), Groups: []GroupSample{
				{Client: "Acme", AllOff: true, HasOff: true, Notes: []string{"OFF", "deployed release"}},
			}},
			{Date: day("2024-06-04"), Hours: 0.5, Groups: []GroupSample{
				{Client: "CI", HasOff: true, Notes: []string{"off in the afternoon"}},
			}},
		},
	}
	res := Detect(in, Options{Now: fixedNow("2024-07-01")})

	require.Len(t, res.Incoherences, 2)
	assert.Equal(t, TypeOffWithNotes, res.Incoherences[0].Type)
	assert.Equal(t, "Acme", res.Incoherences[0].Client)
	assert.Equal(t, TypeHalfDayWithoutOff, res.Incoherences[1].Type)
	assert.Equal(t, "CI", res.Incoherences[1].Client)
	assert.Equal(t, IncoherenceDetails{Notes: []string{"off in the afternoon"}, HasOff: true}, res.Incoherences[1].Details)
	assert.Equal(t, 2, res.Summary.Incoherences)
}

func TestHalfDayWithOffNoteIsCoherent(t *testing.T) {
	r, err := timesheet.ParseRange("2024-06-03", "2024-06-05")
	require.NoError(t, err)
	events := []timesheet.Event{
		{Day: "2024-06-03", Project: "Backend", Client: "Acme", Note: "OFF"},
		{Day: "2024-06-04", Project: "Backend", Client: "Acme", Note: "OFF"},
		{Day: "2024-06-04", Project: "Backend", Client: "Acme", Note: "Fixed bug X"},
		{Day: "2024-06-05", Project: "Backend", Client: "Acme", Note: "OFF"},
		{Day: "2024-06-05", Project: "Backend", Client: "Acme", Note: "Long detailed investigation into root cause of outage lasting several paragraphs"},
	}
	records, err := timesheet.Build(r, nil, events, timesheet.Options{})
	require.NoError(t, err)

	assert.Equal(t, 0.0, records[0].Duration)
	assert.True(t, records[0].Clients[""].AllOff)
	assert.Equal(t, 0.5, records[1].Duration)
	assert.True(t, records[1].Clients[""].HasOff)
	assert.Equal(t, 0.5, records[2].Duration)

	res := Detect(FromRecords(r, records), Options{Now: fixedNow("2024-07-01")})
	assert.Empty(t, res.Incoherences)
	assert.Empty(t, res.Anomalies, "off day is not flagged as empty")
}

func TestFindGaps(t *testing.T) {
	in := Input{Days: []DaySample{
		{Date: day("2024-06-12"), Groups: workGroup("a")},
		{Date: day("2024-06-03"), Groups: workGroup("a")},
		{Date: day("2024-06-04"), Groups: workGroup("a")},
		{Date: day("2024-06-05")},
		{Date: day("2024-06-07"), Groups: workGroup("OFF")},
	}}

	gaps := FindGaps(in.Days)
	require.Len(t, gaps, 2)
	assert.Equal(t, Gap{Start: day("2024-06-05"), End: day("2024-06-06"), LengthDays: 2, WorkingDays: 2}, gaps[0])
	assert.Equal(t, Gap{Start: day("2024-06-08"), End: day("2024-06-11"), LengthDays: 4, WorkingDays: 2}, gaps[1])

	for _, g := range gaps {
		for _, d := range in.Days {
			if len(d.Groups) == 0 {
				continue
			}
			inside := !d.Date.Before(g.Start) && !d.Date.After(g.End)
			assert.False(t, inside, "gap %v spans %s which has data", g, d.Date)
		}
	}
}

func TestFindGapsOverNonWorkingDays(t *testing.T) {
	days := []DaySample{
		{Date: day("2024-05-07"), Groups: workGroup("a")},
		{Date: day("2024-05-08"), Holiday: true},
		{Date: day("2024-05-10"), Groups: workGroup("a")},
		{Date: day("2024-05-13"), Groups: workGroup("a")},
	}

	gaps := FindGaps(days)
	require.Len(t, gaps, 2)
	assert.Equal(t, 2, gaps[0].LengthDays)
	assert.Equal(t, 1, gaps[0].WorkingDays, "the holiday is not a working day")
	assert.Equal(t, 2, gaps[1].LengthDays)
	assert.Equal(t, 0, gaps[1].WorkingDays, "a plain weekend")
}

func TestFindGapsNone(t *testing.T) {
	assert.Empty(t, FindGaps(nil))
	assert.Empty(t, FindGaps(series("2024-06-03", 1, 1, 1).Days))
}

func TestWeeklyPattern(t *testing.T) {
	in := Input{Days: []DaySample{
		{Date: day("2024-06-03"), Hours: 1},   // Monday
		{Date: day("2024-06-04"), Hours: 0.5}, // Tuesday
		{Date: day("2024-06-10"), Hours: 0.5}, // Monday
		{Date: day("2024-06-11")},             // Tuesday, not a work day
		{Date: day("2024-06-07"), Hours: 1},   // Friday
	}}

	weekly := WeeklyPattern(in.Days)
	require.Len(t, weekly, 3)
	assert.Equal(t, WeekdayStats{Weekday: "Monday", Mean: 0.75, Min: 0.5, Max: 1, Count: 2}, weekly[0])
	assert.Equal(t, WeekdayStats{Weekday: "Tuesday", Mean: 0.5, Min: 0.5, Max: 0.5, Count: 1}, weekly[1])
	assert.Equal(t, "Friday", weekly[2].Weekday)
}

func TestDetectOrdersByDate(t *testing.T) {
	in := Input{
		Range: timesheet.Range{From: day("2024-06-03"), To: day("2024-06-05")},
		Days: []DaySample{
			{Date: day("2024-06-05")},
			{Date: day("2024-06-03")},
			{Date: day("2024-06-04"), Hours: 1, Groups: workGroup("a")},
		},
	}
	res := Detect(in, Options{Now: fixedNow("2024-07-01")})
	require.Len(t, res.Anomalies, 2)
	assert.Equal(t, day("2024-06-03"), res.Anomalies[0].Date)
	assert.Equal(t, day("2024-06-05"), res.Anomalies[1].Date)
}
