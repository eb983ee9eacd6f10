package timesheet

import "fmt"

// InvalidRangeError is returned when a requested date range is malformed or inverted.
type InvalidRangeError struct {
	From   string
	To     string
	Reason string
	Err    error
}

func (e *InvalidRangeError) Error() string {
	msg := fmt.Sprintf("invalid date range %s..%s: %s", e.From, e.To, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRangeError) Unwrap() error {
	return e.Err
}
