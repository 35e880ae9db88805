// Package rates joins aggregated incident counts against population figures
// and computes per-100k-resident rates.
package rates

import (
	"sort"

	"github.com/sells-group/crime-observatory/internal/dataset"
)

// Rated is a municipality or region with its count, denominator and rate.
type Rated struct {
	Key        string
	Name       string
	Count      int
	Population int
	Rate       float64
}

// PerCapita computes the rate per 100,000 residents. A zero or negative
// population yields 0, never infinity: downstream consumers render the value
// directly.
func PerCapita(count, population int) float64 {
	if population <= 0 {
		return 0
	}
	return float64(count) / float64(population) * 100_000
}

// Join left-joins counts onto the population table by normalized key. Every
// population row is retained, with zero count where no incidents matched.
// Counts for keys absent from the population table are dropped: population
// coverage is authoritative for the denominator. Results come back sorted by
// municipality name.
func Join(counts map[string]int, pop map[string]dataset.PopulationRecord) []Rated {
	out := make([]Rated, 0, len(pop))
	for key, pr := range pop {
		c := counts[key]
		out = append(out, Rated{
			Key:        key,
			Name:       pr.Municipality,
			Count:      c,
			Population: pr.Population,
			Rate:       PerCapita(c, pr.Population),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByRegion aggregates counts and populations per AIS region before dividing.
// The region rate is sum(counts)/sum(populations), not the mean of member
// municipality rates. Every region in the table appears in the result even
// with zero activity.
func ByRegion(counts map[string]int, pop map[string]dataset.PopulationRecord, regions *dataset.RegionTable) []Rated {
	byAIS := make(map[string]*Rated)
	for _, ais := range regions.Regions() {
		byAIS[ais] = &Rated{Key: ais, Name: ais}
	}

	for key, pr := range pop {
		ais := pr.AIS
		if ais == "" {
			continue
		}
		r, ok := byAIS[ais]
		if !ok {
			r = &Rated{Key: ais, Name: ais}
			byAIS[ais] = r
		}
		r.Population += pr.Population
		r.Count += counts[key]
	}

	out := make([]Rated, 0, len(byAIS))
	for _, r := range byAIS {
		r.Rate = PerCapita(r.Count, r.Population)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MaxRate returns the largest rate in rs, used to scale choropleth legends.
func MaxRate(rs []Rated) float64 {
	var max float64
	for _, r := range rs {
		if r.Rate > max {
			max = r.Rate
		}
	}
	return max
}

// StateRate computes the statewide rate from the full municipality join:
// total counts over total population, per 100k.
func StateRate(rs []Rated) float64 {
	var count, popTotal int
	for _, r := range rs {
		count += r.Count
		popTotal += r.Population
	}
	return PerCapita(count, popTotal)
}
