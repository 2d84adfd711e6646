package energy

import "sort"

// Sample is a single instantaneous power observation.
type Sample struct {
	Timestamp int64 // unix seconds
	Watts     float64
}

// Filter optionally remaps a power value before integration. Returning
// false drops the sample from the series.
type Filter func(watts float64) (float64, bool)

// ConsumptionOnly keeps non-negative power draw.
func ConsumptionOnly(watts float64) (float64, bool) {
	if watts < 0 {
		return 0, false
	}
	return watts, true
}

// FeedInOnly keeps negative power (grid export) as a positive magnitude.
func FeedInOnly(watts float64) (float64, bool) {
	if watts >= 0 {
		return 0, false
	}
	return -watts, true
}

// MinuteStart floors a timestamp to its minute boundary.
func MinuteStart(ts int64) int64 {
	return ts / 60 * 60
}

// Normalize sorts samples ascending by timestamp and collapses runs of
// equal timestamps down to their last element. Duplicate timestamps are
// overwrites: the sample recorded later wins.
func Normalize(samples []Sample) []Sample {
	if len(samples) == 0 {
		return nil
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s.Timestamp == out[len(out)-1].Timestamp {
			out[len(out)-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// Integrate computes trapezoidal energy in kWh over a time-sorted series.
// Fewer than two samples integrate to zero.
func Integrate(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	var wattSeconds float64
	for i := 1; i < len(samples); i++ {
		dt := float64(samples[i].Timestamp - samples[i-1].Timestamp)
		wattSeconds += (samples[i-1].Watts + samples[i].Watts) / 2 * dt
	}
	return wattSeconds / 3600 / 1000
}

// TotalEnergy filters, normalizes, and integrates the whole series as one
// run. Used for exact range totals.
func TotalEnergy(samples []Sample, filter Filter) float64 {
	return Integrate(prepare(samples, filter))
}

func prepare(samples []Sample, filter Filter) []Sample {
	normalized := Normalize(samples)
	if filter == nil {
		return normalized
	}
	out := make([]Sample, 0, len(normalized))
	for _, s := range normalized {
		watts, ok := filter(s.Watts)
		if !ok {
			continue
		}
		out = append(out, Sample{Timestamp: s.Timestamp, Watts: watts})
	}
	return out
}
