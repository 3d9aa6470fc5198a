package timeline

import "time"

// HoursPerDay is the number of buckets in an HourlyHistogram.
const HoursPerDay = 24

// HourlyHistogram counts events per local hour of day.
type HourlyHistogram [HoursPerDay]int

// BucketByHour builds a histogram of the instants using the calendar's zone.
func (c Calendar) BucketByHour(instants []time.Time) HourlyHistogram {
	var h HourlyHistogram
	for _, t := range instants {
		h[c.Hour(t)]++
	}
	return h
}

// Total returns the sum of all buckets.
func (h HourlyHistogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Peak returns the busiest hour and its count. Ties resolve to the earliest
// hour; an empty histogram reports hour 0 with count 0.
func (h HourlyHistogram) Peak() (hour, count int) {
	for i, n := range h {
		if n > count {
			hour, count = i, n
		}
	}
	return hour, count
}

// Slice returns the buckets as a slice.
func (h HourlyHistogram) Slice() []int {
	out := make([]int, HoursPerDay)
	copy(out, h[:])
	return out
}
