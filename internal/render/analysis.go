package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/christopherklint97/imputr/internal/anomaly"
	"github.com/christopherklint97/imputr/internal/report"
	"github.com/christopherklint97/imputr/internal/timesheet"
)

// Analysis writes a terminal report of an analysis result.
func Analysis(w io.Writer, res anomaly.Result) error {
	var sb strings.Builder
	s := res.Summary

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Analysis %s to %s (%d days)", s.Period.From, s.Period.To, s.Period.Days)))
	sb.WriteString("\n")

	sb.WriteString(boxStyle.Render(strings.Join([]string{
		fmt.Sprintf("Active days   %d", s.ActiveDays),
		fmt.Sprintf("Empty days    %d", s.EmptyDays),
		fmt.Sprintf("Total         %s", formatFloat(s.TotalHours)),
		fmt.Sprintf("Mean          %s  (sd %s)", formatFloat(s.MeanHours), formatFloat(s.StdDevHours)),
		fmt.Sprintf("Anomalies     %s  %s  %s",
			errorStyle.Render(fmt.Sprintf("%d error", s.Anomalies.Error)),
			warningStyle.Render(fmt.Sprintf("%d warning", s.Anomalies.Warning)),
			infoStyle.Render(fmt.Sprintf("%d info", s.Anomalies.Info))),
		fmt.Sprintf("Incoherences  %d", s.Incoherences),
		fmt.Sprintf("Gaps          %d", s.Gaps),
	}, "\n")))
	sb.WriteString("\n\n")

	findings := append(append([]anomaly.Anomaly{}, res.Anomalies...), res.Incoherences...)
	if len(findings) == 0 {
		sb.WriteString(successStyle.Render("No anomalies found."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(subtitleStyle.Render("Findings"))
		sb.WriteString("\n")
		sb.WriteString(findingsTable(findings).Render())
		sb.WriteString("\n")
	}

	if len(res.Gaps) > 0 {
		sb.WriteString("\n")
		sb.WriteString(subtitleStyle.Render("Gaps"))
		sb.WriteString("\n")
		for _, g := range res.Gaps {
			line := fmt.Sprintf("  %s to %s  ", g.Start, g.End)
			if g.WorkingDays == 0 {
				sb.WriteString(dimStyle.Render(line + fmt.Sprintf("(%d days, weekend or holidays only)", g.LengthDays)))
			} else {
				sb.WriteString(line + warningStyle.Render(fmt.Sprintf("(%d days, %d working)", g.LengthDays, g.WorkingDays)))
			}
			sb.WriteString("\n")
		}
	}

	if len(res.Weekly) > 0 {
		sb.WriteString("\n")
		sb.WriteString(subtitleStyle.Render("Weekly pattern"))
		sb.WriteString("\n")
		sb.WriteString(weeklyTable(res.Weekly).Render())
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func findingsTable(findings []anomaly.Anomaly) *table.Table {
	rows := make([][]string, 0, len(findings))
	severities := make([]anomaly.Severity, 0, len(findings))
	for _, a := range findings {
		rows = append(rows, []string{a.Date.String(), string(a.Severity), string(a.Type), a.Message})
		severities = append(severities, a.Severity)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("DATE", "SEVERITY", "TYPE", "MESSAGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(severities) {
				return severityStyle(severities[row]).Padding(0, 1)
			}
			return cellStyle
		})
}

func weeklyTable(stats []anomaly.WeekdayStats) *table.Table {
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, []string{st.Weekday, strconv.Itoa(st.Count), formatFloat(st.Mean), formatFloat(st.Min), formatFloat(st.Max)})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("WEEKDAY", "DAYS", "MEAN", "MIN", "MAX").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func severityStyle(s anomaly.Severity) lipgloss.Style {
	switch s {
	case anomaly.SeverityError:
		return errorStyle
	case anomaly.SeverityWarning:
		return warningStyle
	default:
		return infoStyle
	}
}

// Written reports a generated timesheet file.
func Written(w io.Writer, path string, res *report.Result) error {
	counts := make(map[timesheet.Status]int)
	var total float64
	for _, d := range res.Days {
		counts[d.Status]++
		total += d.Duration
	}

	var sb strings.Builder
	sb.WriteString(successStyle.Render(fmt.Sprintf("Wrote %d days to %s", len(res.Days), path)))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("%s  %s days worked  %d work  %d half-off  %d off  %d empty  %d holiday",
		res.Range, formatFloat(total),
		counts[timesheet.StatusWork], counts[timesheet.StatusHalfOff], counts[timesheet.StatusOff],
		counts[timesheet.StatusEmpty], counts[timesheet.StatusHoliday])))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
