package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/imputr/internal/anomaly"
	"github.com/christopherklint97/imputr/internal/export"
	"github.com/christopherklint97/imputr/internal/timely"
	"github.com/christopherklint97/imputr/internal/timesheet"
)

type fakeSource struct {
	events []timely.Event
	err    error
	calls  int
	since  string
	upto   string
}

func (f *fakeSource) FetchEvents(_ context.Context, _ string, since, upto string) ([]timely.Event, error) {
	f.calls++
	f.since, f.upto = since, upto
	return f.events, f.err
}

func event(day, project, client, note string) timely.Event {
	ev := timely.Event{Day: day, Note: note, Project: timely.Project{Name: project}}
	if client != "" {
		ev.Project.Client = &timely.ProjectClient{Name: client}
	}
	return ev
}

func mustRange(t *testing.T, from, to string) timesheet.Range {
	t.Helper()
	r, err := timesheet.ParseRange(from, to)
	require.NoError(t, err)
	return r
}

func TestBuildFetchesRangeAndClassifies(t *testing.T) {
	src := &fakeSource{events: []timely.Event{
		event("2024-06-03", "Backend", "Acme", "OFF"),
		event("2024-06-03", "Backend", "Acme", "morning work"),
		event("2024-06-04", "CI", "Acme", "pipelines"),
		event("2024-06-01", "Backend", "Acme", "saturday"),
	}}
	gen := NewGenerator(src, nil, Options{}, nil)

	res, err := gen.Build(context.Background(), Request{AccountID: "acc", Range: mustRange(t, "2024-06-01", "2024-06-04")})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", src.since)
	assert.Equal(t, "2024-06-04", src.upto)
	assert.Equal(t, 4, res.Fetched)

	require.Len(t, res.Days, 4)
	assert.Equal(t, timesheet.StatusWeekend, res.Days[0].Status)
	assert.Equal(t, 0.5, res.Days[2].Duration)
	assert.Equal(t, timesheet.StatusHalfOff, res.Days[2].Status)
	assert.Equal(t, []string{"CI"}, res.Days[3].ClientKeys())

	rows := gen.Rows(res)
	assert.Equal(t, "0.5", rows[2].Duration)
	assert.Equal(t, "[CI] pipelines", rows[3].Notes)

	records := gen.Records(res)
	assert.Equal(t, timesheet.StatusHalfOff, records[2].Type)
}

func TestBuildClientFilter(t *testing.T) {
	src := &fakeSource{events: []timely.Event{
		event("2024-06-03", "Backend", "Acme", "a"),
		event("2024-06-03", "Web", "Globex", "b"),
		event("2024-06-03", "Internal", "", "c"),
	}}
	gen := NewGenerator(src, nil, Options{Export: export.Options{}}, nil)

	res, err := gen.Build(context.Background(), Request{
		AccountID:    "acc",
		Range:        mustRange(t, "2024-06-03", "2024-06-03"),
		ClientFilter: []string{"Globex, Initech"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Filtered)
	require.Len(t, res.Days[0].Entries, 1)
	assert.Equal(t, "b", res.Days[0].Entries[0].Note)
}

func TestFilterByClient(t *testing.T) {
	events := []timely.Event{event("2024-06-03", "P", "Acme", "a"), event("2024-06-03", "P", "", "b")}

	assert.Len(t, FilterByClient(events, nil), 2)
	assert.Len(t, FilterByClient(events, []string{" ", ""}), 2)
	assert.Len(t, FilterByClient(events, []string{"Acme"}), 1)
	assert.Empty(t, FilterByClient(events, []string{"acme"}), "names match exactly")
}

func TestBuildErrors(t *testing.T) {
	upstream := &timely.UpstreamFetchError{Op: "list events", Status: 503}
	gen := NewGenerator(&fakeSource{err: upstream}, nil, Options{}, nil)
	r := mustRange(t, "2024-06-03", "2024-06-07")

	_, err := gen.Build(context.Background(), Request{AccountID: "acc", Range: r})
	var upErr *timely.UpstreamFetchError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 503, upErr.Status)

	_, err = gen.Build(context.Background(), Request{AccountID: "acc", Range: timesheet.Range{From: r.To, To: r.From}})
	var rangeErr *timesheet.InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))

	_, err = gen.Build(context.Background(), Request{Range: r})
	assert.Error(t, err)
}

func TestBuildFailsOnMalformedDay(t *testing.T) {
	src := &fakeSource{events: []timely.Event{event("03/06/2024", "P", "Acme", "a")}}
	gen := NewGenerator(src, nil, Options{}, nil)

	_, err := gen.Build(context.Background(), Request{AccountID: "acc", Range: mustRange(t, "2024-06-03", "2024-06-03")})
	assert.Error(t, err)
}

func TestAnalyzeFlagsEmptyMonday(t *testing.T) {
	gen := NewGenerator(&fakeSource{}, nil, Options{
		Now: func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) },
	}, nil)

	res, err := gen.Analyze(context.Background(), Request{AccountID: "acc", Range: mustRange(t, "2024-06-01", "2024-06-03")})
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, anomaly.TypeEmptyDay, res.Anomalies[0].Type)
	assert.Equal(t, "2024-06-03", res.Anomalies[0].Date.String())
	assert.Equal(t, 1, res.Summary.EmptyDays)
}
