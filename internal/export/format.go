package export

import (
	"sort"
	"strconv"
	"strings"

	"github.com/christopherklint97/imputr/internal/timesheet"
)

// DefaultLocationLabel is written in the location column of billable days.
const DefaultLocationLabel = "Remote"

const groupSeparator = "\n---\n"

type Options struct {
	// ClientLabel names the untagged client group. When empty the distinct
	// client names of the group's events are used instead.
	ClientLabel   string
	LocationLabel string
	SortNotes     bool
}

func (o Options) location() string {
	if o.LocationLabel == "" {
		return DefaultLocationLabel
	}
	return o.LocationLabel
}

// Record is one day of the JSON output.
type Record struct {
	Date        string           `json:"date" jsonschema:"description=Day formatted DD/MM/YYYY"`
	Client      string           `json:"client" jsonschema:"description=Billable client labels joined with commas"`
	Project     string           `json:"project" jsonschema:"description=Project names of the day joined with commas"`
	Duration    float64          `json:"duration" jsonschema:"description=Worked fraction of the day"`
	Description string           `json:"description"`
	Type        timesheet.Status `json:"type" jsonschema:"enum=weekend,enum=holiday,enum=empty,enum=off,enum=half_off,enum=work"`
	Holiday     string           `json:"holiday,omitempty"`
}

// Row is one spreadsheet line. Columns are fixed: date, duration, client, location, notes.
type Row struct {
	Date     string
	Duration string
	Client   string
	Location string
	Notes    string
}

func (r Row) Cells() []string {
	return []string{r.Date, r.Duration, r.Client, r.Location, r.Notes}
}

// Records renders one JSON record per day, in the order given.
func Records(days []timesheet.DayRecord, opts Options) []Record {
	records := make([]Record, 0, len(days))
	for _, d := range days {
		rec := Record{
			Date:     d.Date.Display(),
			Duration: d.Duration,
			Type:     d.Status,
		}

		switch d.Kind {
		case timesheet.KindWeekend:
			rec.Description = string(timesheet.KindWeekend)
		case timesheet.KindHoliday:
			rec.Description = string(timesheet.KindHoliday)
			rec.Holiday = d.HolidayName
		case timesheet.KindWork:
			groups := d.ClientsInOrder()
			rec.Client = strings.Join(billableLabels(groups, opts), ", ")
			rec.Project = strings.Join(projects(groups), ", ")

			blocks := make([]string, 0, len(groups))
			for _, g := range groups {
				blocks = append(blocks, strings.Join(prefixedNotes(g.Entries, opts.SortNotes), "\n"))
			}
			rec.Description = strings.Join(blocks, groupSeparator)
		}

		records = append(records, rec)
	}
	return records
}

// Rows renders one spreadsheet row per day. Notes keep the order in which
// events were received unless SortNotes is set.
func Rows(days []timesheet.DayRecord, opts Options) []Row {
	rows := make([]Row, 0, len(days))
	for _, d := range days {
		row := Row{
			Date:     d.Date.Display(),
			Duration: FormatDuration(d.Duration),
		}

		switch d.Kind {
		case timesheet.KindWeekend, timesheet.KindHoliday:
			row.Duration = "0"
			row.Notes = string(d.Kind)
		case timesheet.KindWork:
			row.Notes = strings.Join(prefixedNotes(d.Entries, opts.SortNotes), "\n\n")

			if d.Duration > 0 {
				row.Location = opts.location()
				if opts.ClientLabel != "" {
					row.Client = opts.ClientLabel
				} else {
					row.Client = strings.Join(billableLabels(d.ClientsInOrder(), opts), ", ")
				}
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// FormatDuration renders a duration as a plain numeral ("0", "0.5", "1", "1.5").
func FormatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

func prefixedNotes(entries []timesheet.Entry, sorted bool) []string {
	notes := make([]string, 0, len(entries))
	for _, e := range entries {
		note := e.Note
		if e.Prefix != "" {
			note = e.Prefix + " " + note
		}
		notes = append(notes, note)
	}
	if sorted {
		sort.Strings(notes)
	}
	return notes
}

func billableLabels(groups []timesheet.ClientDay, opts Options) []string {
	var labels []string
	for _, g := range groups {
		if g.Duration <= 0 {
			continue
		}
		if label := groupLabel(g, opts); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func groupLabel(g timesheet.ClientDay, opts Options) string {
	if g.Key != "" {
		return g.Key
	}
	if opts.ClientLabel != "" {
		return opts.ClientLabel
	}
	return strings.Join(distinct(g.Entries, func(e timesheet.Entry) string { return e.Client }), ", ")
}

func projects(groups []timesheet.ClientDay) []string {
	var entries []timesheet.Entry
	for _, g := range groups {
		entries = append(entries, g.Entries...)
	}
	return distinct(entries, func(e timesheet.Entry) string { return e.Project })
}

func distinct(entries []timesheet.Entry, field func(timesheet.Entry) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		v := field(e)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
