package energy

import (
	"sort"
	"time"
)

// Point is one window of integrated energy.
type Point struct {
	Start int64
	Label string
	KWh   float64
}

// WindowFunc maps a timestamp onto its window start and display label.
type WindowFunc func(ts int64) (start int64, label string)

// HourWindow buckets timestamps into clock hours in loc.
func HourWindow(loc *time.Location) WindowFunc {
	return func(ts int64) (int64, string) {
		t := time.Unix(ts, 0).In(loc)
		start := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
		return start.Unix(), start.Format("15:04")
	}
}

// DayWindow buckets timestamps into calendar days in loc. Day boundaries
// sit at local midnight, not UTC truncation.
func DayWindow(loc *time.Location) WindowFunc {
	return func(ts int64) (int64, string) {
		t := time.Unix(ts, 0).In(loc)
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		return start.Unix(), start.Format("2006-01-02")
	}
}

// GroupByWindow integrates a filtered series window by window, sorted
// ascending by window start. Windows left with fewer than two samples are
// dropped entirely rather than reported as zero.
func GroupByWindow(samples []Sample, window WindowFunc, filter Filter) []Point {
	prepared := prepare(samples, filter)
	if len(prepared) < 2 {
		return nil
	}

	groups := make(map[int64][]Sample)
	labels := make(map[int64]string)
	for _, s := range prepared {
		start, label := window(s.Timestamp)
		groups[start] = append(groups[start], s)
		labels[start] = label
	}

	starts := make([]int64, 0, len(groups))
	for start := range groups {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	points := make([]Point, 0, len(starts))
	for _, start := range starts {
		group := groups[start]
		if len(group) < 2 {
			continue
		}
		points = append(points, Point{
			Start: start,
			Label: labels[start],
			KWh:   Integrate(group),
		})
	}
	return points
}
