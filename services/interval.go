package services

import (
	"fmt"
	"sort"
)

// Interval is a [Start, End) time range expressed in minutes of the day,
// e.g. {540, 780} is 09:00-13:00.
type Interval struct {
	Start int
	End   int
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s - %s", FormatMinute(iv.Start), FormatMinute(iv.End))
}

func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// carve cuts [start, end) out of iv. It reports false when iv does not fully
// cover the requested range, otherwise it returns the 0-2 leftover pieces.
func carve(iv Interval, start, end int) ([]Interval, bool) {
	if start >= end || start < iv.Start || end > iv.End {
		return nil, false
	}
	var leftovers []Interval
	if iv.Start < start {
		leftovers = append(leftovers, Interval{Start: iv.Start, End: start})
	}
	if end < iv.End {
		leftovers = append(leftovers, Interval{Start: end, End: iv.End})
	}
	return leftovers, true
}

// coalesce unions overlapping and touching intervals into the minimal set of
// maximal disjoint intervals, ordered by start time. Touching counts as
// overlapping: {540,600} and {600,660} become {540,660}. Idempotent.
func coalesce(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
