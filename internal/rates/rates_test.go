package rates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crime-observatory/internal/dataset"
)

func TestPerCapita(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		count      int
		population int
		want       float64
	}{
		{name: "exact", count: 5, population: 100_000, want: 5.0},
		{name: "small town", count: 5, population: 50_000, want: 10.0},
		{name: "zero population", count: 7, population: 0, want: 0},
		{name: "negative population", count: 7, population: -1, want: 0},
		{name: "zero count", count: 0, population: 10_000, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PerCapita(tt.count, tt.population))
		})
	}
}

func testPopulation() map[string]dataset.PopulationRecord {
	return map[string]dataset.PopulationRecord{
		"ALFA":  {Municipality: "Alfa", Key: "ALFA", Population: 100_000, AIS: "AIS 09"},
		"BRAVO": {Municipality: "Bravo", Key: "BRAVO", Population: 50_000, AIS: "AIS 09"},
		"DELTA": {Municipality: "Delta", Key: "DELTA", Population: 0, AIS: "AIS 10"},
	}
}

func TestJoinRetainsAllPopulationRows(t *testing.T) {
	t.Parallel()

	counts := map[string]int{
		"ALFA":     5,
		"BRAVO":    5,
		"FANTASMA": 99, // not in population: dropped
	}

	got := Join(counts, testPopulation())
	require.Len(t, got, 3)

	// Sorted by name.
	assert.Equal(t, "Alfa", got[0].Name)
	assert.Equal(t, 5.0, got[0].Rate)
	assert.Equal(t, "Bravo", got[1].Name)
	assert.Equal(t, 10.0, got[1].Rate)

	// Zero-population municipality keeps rate 0, never infinity.
	assert.Equal(t, "Delta", got[2].Name)
	assert.Equal(t, 0.0, got[2].Rate)
}

func TestByRegionAggregatesBeforeDividing(t *testing.T) {
	t.Parallel()

	regions := regionTable(t)
	counts := map[string]int{"ALFA": 5, "BRAVO": 5}

	got := ByRegion(counts, testPopulation(), regions)

	var ais09 *Rated
	for i := range got {
		if got[i].Key == "AIS 09" {
			ais09 = &got[i]
		}
	}
	require.NotNil(t, ais09)
	assert.Equal(t, 10, ais09.Count)
	assert.Equal(t, 150_000, ais09.Population)

	// 10/150000*1e5 ≈ 6.67 — not the 7.5 a mean of member rates would give.
	assert.InDelta(t, 6.6667, ais09.Rate, 0.001)
}

func TestByRegionKeepsEmptyRegions(t *testing.T) {
	t.Parallel()

	got := ByRegion(nil, testPopulation(), regionTable(t))

	keys := make([]string, len(got))
	for i, r := range got {
		keys[i] = r.Key
	}
	// Every region in the fixed table renders, even with no data at all.
	assert.Greater(t, len(keys), 2)
	for _, r := range got {
		if r.Count == 0 {
			assert.Equal(t, 0.0, r.Rate)
		}
	}
}

func TestMaxRateAndStateRate(t *testing.T) {
	t.Parallel()

	rs := Join(map[string]int{"ALFA": 5, "BRAVO": 5}, testPopulation())
	assert.Equal(t, 10.0, MaxRate(rs))
	assert.InDelta(t, 6.6667, StateRate(rs), 0.001)
}

// regionTable loads the embedded table; the fixture municipalities are not in
// it, so their AIS codes come straight from the population records.
func regionTable(t *testing.T) *dataset.RegionTable {
	t.Helper()
	regions, err := dataset.LoadRegions()
	require.NoError(t, err)
	return regions
}
