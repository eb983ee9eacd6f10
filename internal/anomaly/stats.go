package anomaly

import "github.com/montanaflynn/stats"

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// StdDev returns the sample standard deviation, or 0 with fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0
	}
	return sd
}

// bounds returns the smallest and largest value; both are 0 for an empty slice.
func bounds(values []float64) (lo, hi float64) {
	lo, err := stats.Min(values)
	if err != nil {
		return 0, 0
	}
	hi, _ = stats.Max(values)
	return lo, hi
}

func round(v float64, places int) float64 {
	r, err := stats.Round(v, places)
	if err != nil {
		return v
	}
	return r
}
