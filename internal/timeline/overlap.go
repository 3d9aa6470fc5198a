package timeline

import (
	"sort"
	"time"
)

// Interval is a span of time owned by one party. A nil End means the interval
// is still open.
type Interval struct {
	ID    string
	Owner string
	Start time.Time
	End   *time.Time
}

// Overlap reports two intervals of the same owner that share time.
type Overlap struct {
	Owner    string
	FirstID  string
	SecondID string
}

// DetectOverlaps finds every pair of intervals with the same owner whose spans
// intersect. Open intervals extend to asOf. Intervals that merely touch, where
// one ends exactly when the next starts, do not overlap. Pairs are ordered by
// owner and then by start time.
func DetectOverlaps(intervals []Interval, asOf time.Time) []Overlap {
	byOwner := make(map[string][]Interval)
	for _, iv := range intervals {
		byOwner[iv.Owner] = append(byOwner[iv.Owner], iv)
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var overlaps []Overlap
	for _, owner := range owners {
		group := byOwner[owner]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Start.Before(group[j].Start)
		})
		for i := range group {
			end := endOf(group[i], asOf)
			for j := i + 1; j < len(group) && group[j].Start.Before(end); j++ {
				if group[i].Start.Before(endOf(group[j], asOf)) {
					overlaps = append(overlaps, Overlap{Owner: owner, FirstID: group[i].ID, SecondID: group[j].ID})
				}
			}
		}
	}
	return overlaps
}

func endOf(iv Interval, asOf time.Time) time.Time {
	if iv.End != nil {
		return *iv.End
	}
	if asOf.Before(iv.Start) {
		return iv.Start
	}
	return asOf
}
