package holiday

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	ical "github.com/emersion/go-ical"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

// LoadICS reads an iCalendar feed from a URL or file path and returns every
// day covered by its events, named after the event summary. Multi-day
// events cover each day from DTSTART up to, not including, DTEND.
func LoadICS(ctx context.Context, source string) (map[timesheet.DayKey]string, error) {
	var r io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		r = f
	}
	defer r.Close()

	return decodeDays(r)
}

func decodeDays(r io.Reader) (map[timesheet.DayKey]string, error) {
	dec := ical.NewDecoder(r)
	days := make(map[timesheet.DayKey]string)

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			start, err := event.DateTimeStart(nil)
			if err != nil {
				continue // skip malformed events
			}
			first := timesheet.NewDayKey(start)
			last := first
			if end, err := event.DateTimeEnd(nil); err == nil && !end.IsZero() {
				// DTEND is exclusive
				if endDay := timesheet.NewDayKey(end.Add(-1)); endDay.After(first) {
					last = endDay
				}
			}

			summary, _ := event.Props.Text(ical.PropSummary)
			for d := first; !d.After(last); d = d.AddDays(1) {
				days[d] = summary
			}
		}
	}

	return days, nil
}
