// Package project estimates full-year totals for the current,
// still-accumulating year. The estimate assumes the missing months behave
// like the same months of recent years: it is a deterministic convenience
// for keeping year-series charts comparable, not a validated forecast.
package project

// Totals indexes observed counts by group, year and month. The group is
// whatever dimension the caller segments on ("" for an unsegmented series).
type Totals map[string]map[int]map[int]float64

// Add accumulates n into the (group, year, month) cell.
func (t Totals) Add(group string, year, month int, n float64) {
	years, ok := t[group]
	if !ok {
		years = make(map[int]map[int]float64)
		t[group] = years
	}
	months, ok := years[year]
	if !ok {
		months = make(map[int]float64)
		years[year] = months
	}
	months[month] += n
}

// DefaultLookbackYears is the trailing window used to estimate missing months.
const DefaultLookbackYears = 5

// Complete returns the projected full-year total per group for currentYear.
//
// For each group the partial total is the sum of observed months. The missing
// months (those after lastObservedMonth) are estimated as the mean, across the
// trailing lookbackYears prior years, of those same months' sums; when no
// prior year inside the window has data the window widens to all prior years.
// A group with no history at all keeps its partial total unchanged. With
// lastObservedMonth == 12 there is nothing to estimate and the partial totals
// come back as-is.
func Complete(t Totals, currentYear, lastObservedMonth, lookbackYears int) map[string]float64 {
	if lookbackYears <= 0 {
		lookbackYears = DefaultLookbackYears
	}

	out := make(map[string]float64, len(t))
	for group, years := range t {
		var partial float64
		for month, n := range years[currentYear] {
			if month <= lastObservedMonth {
				partial += n
			}
		}
		out[group] = partial + missingEstimate(years, currentYear, lastObservedMonth, lookbackYears)
	}
	return out
}

func missingEstimate(years map[int]map[int]float64, currentYear, lastObservedMonth, lookbackYears int) float64 {
	if lastObservedMonth >= 12 {
		return 0
	}

	sum, n := tailSums(years, currentYear-lookbackYears, currentYear, lastObservedMonth)
	if n == 0 {
		// Empty window: fall back to every available prior year.
		sum, n = tailSums(years, minYear(years), currentYear, lastObservedMonth)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// tailSums sums the months strictly after lastObservedMonth for each year in
// [from, to), returning the total and the number of years that had any data
// in that tail.
func tailSums(years map[int]map[int]float64, from, to, lastObservedMonth int) (float64, int) {
	var sum float64
	var n int
	for year := from; year < to; year++ {
		months, ok := years[year]
		if !ok {
			continue
		}
		var tail float64
		seen := false
		for month, v := range months {
			if month > lastObservedMonth {
				tail += v
				seen = true
			}
		}
		if seen {
			sum += tail
			n++
		}
	}
	return sum, n
}

func minYear(years map[int]map[int]float64) int {
	min := 0
	for y := range years {
		if min == 0 || y < min {
			min = y
		}
	}
	return min
}
