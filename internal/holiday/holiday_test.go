package holiday

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

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

func TestFrenchHolidays(t *testing.T) {
	c, err := New("fr")
	require.NoError(t, err)
	assert.Equal(t, "FR", c.Country())

	for _, d := range []string{"2024-01-01", "2024-04-01", "2024-05-01", "2024-05-08", "2024-07-14", "2024-08-15", "2024-11-11", "2024-12-25"} {
		_, ok := c.Holiday(day(d))
		assert.True(t, ok, "%s should be a holiday", d)
	}
	for _, d := range []string{"2024-07-15", "2024-12-26", "2024-06-03"} {
		_, ok := c.Holiday(day(d))
		assert.False(t, ok, "%s should not be a holiday", d)
	}

	// Easter Monday moves with the year
	_, ok := c.Holiday(day("2025-04-21"))
	assert.True(t, ok)
	assert.NotEmpty(t, c.Year(2025))
}

func TestUnsupportedCountry(t *testing.T) {
	_, err := New("XX")
	assert.Error(t, err)
}

func TestNoCountry(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	_, ok := c.Holiday(day("2024-12-25"))
	assert.False(t, ok)
}

func TestAddDays(t *testing.T) {
	c, err := New("FR")
	require.NoError(t, err)

	c.AddDays(map[timesheet.DayKey]string{day("2024-06-10"): "Company day"})
	name, ok := c.Holiday(day("2024-06-10"))
	assert.True(t, ok)
	assert.Equal(t, "Company day", name)

	c.AddDays(map[timesheet.DayKey]string{day("2024-06-10"): "Other"})
	name, _ = c.Holiday(day("2024-06-10"))
	assert.Equal(t, "Company day", name)
}

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//imputr//test//EN
BEGIN:VEVENT
UID:1@test
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240610
DTEND;VALUE=DATE:20240612
SUMMARY:Company retreat
END:VEVENT
BEGIN:VEVENT
UID:2@test
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240617
DTEND;VALUE=DATE:20240618
SUMMARY:Bridge day
END:VEVENT
END:VCALENDAR
`

func TestLoadICSFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "days.ics")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(sampleICS, "\n", "\r\n")), 0644))

	days, err := LoadICS(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, map[timesheet.DayKey]string{
		day("2024-06-10"): "Company retreat",
		day("2024-06-11"): "Company retreat",
		day("2024-06-17"): "Bridge day",
	}, days)
}

func TestLoadICSMissingFile(t *testing.T) {
	_, err := LoadICS(context.Background(), filepath.Join(t.TempDir(), "missing.ics"))
	assert.Error(t, err)
}
