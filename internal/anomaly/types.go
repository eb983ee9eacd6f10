package anomaly

import (
	"github.com/christopherklint97/imputr/internal/timesheet"
)

// Type tags an anomaly. The set is closed.
type Type string

const (
	TypeImpossibleHours   Type = "heures_impossibles"
	TypeUnderActivity     Type = "sous_activite"
	TypeOverActivity      Type = "sur_activite"
	TypeEmptyDay          Type = "jour_vide"
	TypeSuspectDay        Type = "jour_suspect"
	TypeOffWithNotes      Type = "off_avec_notes"
	TypeHalfDayWithoutOff Type = "demi_journee_sans_off"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Details is the diagnostic payload of an anomaly. Only the types in this
// package implement it.
type Details interface {
	isDetails()
}

// ImpossibleDetails accompanies TypeImpossibleHours.
type ImpossibleDetails struct {
	Hours float64 `json:"hours"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// OutlierDetails accompanies TypeUnderActivity and TypeOverActivity.
type OutlierDetails struct {
	Hours        float64 `json:"hours"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stddev"`
	Lower        float64 `json:"lower_bound"`
	Upper        float64 `json:"upper_bound"`
	DeviationPct float64 `json:"deviation_pct"`
}

// EmptyDayDetails accompanies TypeEmptyDay and TypeSuspectDay.
type EmptyDayDetails struct {
	Weekday string `json:"weekday"`
	Groups  int    `json:"groups"`
}

// IncoherenceDetails accompanies TypeOffWithNotes and TypeHalfDayWithoutOff.
type IncoherenceDetails struct {
	Notes  []string `json:"notes"`
	AllOff bool     `json:"all_off"`
	HasOff bool     `json:"has_off"`
}

func (ImpossibleDetails) isDetails()  {}
func (OutlierDetails) isDetails()     {}
func (EmptyDayDetails) isDetails()    {}
func (IncoherenceDetails) isDetails() {}

type Anomaly struct {
	Type     Type             `json:"type"`
	Severity Severity         `json:"severity"`
	Date     timesheet.DayKey `json:"date"`
	Client   string           `json:"client,omitempty"`
	Message  string           `json:"message"`
	Details  Details          `json:"details"`
}

// Gap is a run of consecutive dates without data between two dates that have some.
type Gap struct {
	Start      timesheet.DayKey `json:"start"`
	End        timesheet.DayKey `json:"end"`
	LengthDays int              `json:"length_days"`
	// dates of the gap that are neither weekend nor holiday
	WorkingDays int `json:"working_days"`
}

type WeekdayStats struct {
	Weekday string  `json:"weekday"`
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

type Period struct {
	From timesheet.DayKey `json:"from"`
	To   timesheet.DayKey `json:"to"`
	Days int              `json:"days"`
}

type SeverityCounts struct {
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
}

type Summary struct {
	Period       Period         `json:"period"`
	ActiveDays   int            `json:"active_days"`
	EmptyDays    int            `json:"empty_days"`
	MeanHours    float64        `json:"mean_hours"`
	StdDevHours  float64        `json:"stddev_hours"`
	TotalHours   float64        `json:"total_hours"`
	Anomalies    SeverityCounts `json:"anomalies"`
	Incoherences int            `json:"incoherences"`
	Gaps         int            `json:"gaps"`
}

// Result is the output of one analysis run.
type Result struct {
	Summary      Summary        `json:"summary"`
	Anomalies    []Anomaly      `json:"anomalies"`
	Incoherences []Anomaly      `json:"incoherences"`
	Gaps         []Gap          `json:"gaps"`
	Weekly       []WeekdayStats `json:"weekly_stats"`
}
