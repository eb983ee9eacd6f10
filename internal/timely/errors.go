package timely

import "fmt"

// UpstreamFetchError reports that the Timely API was unreachable or
// answered with a non-success status. Status is 0 for transport failures.
type UpstreamFetchError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("timely %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("timely %s (status %d): %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("timely %s (status %d): %s", e.Op, e.Status, e.Body)
	}
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// AuthenticationError reports that no valid access token could be obtained.
type AuthenticationError struct {
	Status int
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	msg := "timely authentication failed"
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
