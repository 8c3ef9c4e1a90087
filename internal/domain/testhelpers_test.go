package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

func climOf(v Variable, values ...float64) MonthlyClimatology {
	c := MonthlyClimatology{Variable: v}
	copy(c.Values[:], values)
	for m := range c.Counts {
		c.Counts[m] = 1
	}
	return c
}

func months(values func(m int) float64) []float64 {
	out := make([]float64, MonthsPerYear)
	for m := range out {
		out[m] = values(m + 1)
	}
	return out
}

func monthlyTimes(startYear, years int) []time.Time {
	out := make([]time.Time, 0, years*MonthsPerYear)
	for y := 0; y < years; y++ {
		for m := time.January; m <= time.December; m++ {
			out = append(out, time.Date(startYear+y, m, 16, 0, 0, 0, 0, time.UTC))
		}
	}
	return out
}

func clockworkAt(t time.Time) clockwork.Clock {
	return clockwork.NewFakeClockAt(t)
}
