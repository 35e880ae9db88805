package charts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendTrendLinearSeries(t *testing.T) {
	t.Parallel()

	c := Chart{
		Labels:   []string{"2020", "2021", "2022"},
		Datasets: []Dataset{{Label: "Total", Data: []float64{10, 20, 30}}},
	}

	got, err := ExtendTrend(c, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"2020", "2021", "2022", "2023" + TrendSuffix, "2024" + TrendSuffix}, got.Labels)
	require.Len(t, got.Datasets, 1)
	assert.InDelta(t, 40.0, got.Datasets[0].Data[3], 1e-9)
	assert.InDelta(t, 50.0, got.Datasets[0].Data[4], 1e-9)
}

func TestExtendTrendClampsNegative(t *testing.T) {
	t.Parallel()

	c := Chart{
		Labels:   []string{"2020", "2021", "2022"},
		Datasets: []Dataset{{Label: "Total", Data: []float64{20, 10, 0}}},
	}

	got, err := ExtendTrend(c, 3)
	require.NoError(t, err)
	for _, v := range got.Datasets[0].Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestExtendTrendFitsProjectedFinalYear(t *testing.T) {
	t.Parallel()

	// The final year arrives completed by the projection, at its full-year
	// total and with the projected label. The fit treats it as a regular
	// point: extension continues the 10/year climb instead of dipping toward
	// a partial count.
	c := Chart{
		Labels:   []string{"2022", "2023", "2024" + ProjectedSuffix},
		Datasets: []Dataset{{Label: "Total", Data: []float64{10, 20, 30}}},
	}

	got, err := ExtendTrend(c, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"2022", "2023", "2024" + ProjectedSuffix, "2025" + TrendSuffix}, got.Labels)
	assert.InDelta(t, 40.0, got.Datasets[0].Data[3], 1e-9)
}

func TestExtendTrendNonYearAxis(t *testing.T) {
	t.Parallel()

	c := Chart{Labels: []string{"ARMA DE FOGO"}, Datasets: []Dataset{{Label: "Total", Data: []float64{1}}}}
	_, err := ExtendTrend(c, 1)
	assert.Error(t, err)
}

func TestExtendTrendZeroHorizon(t *testing.T) {
	t.Parallel()

	c := Chart{Labels: []string{"2020"}, Datasets: []Dataset{{Label: "Total", Data: []float64{1}}}}
	got, err := ExtendTrend(c, 0)
	require.NoError(t, err)
	assert.Equal(t, c.Labels, got.Labels)
}

func TestExtendTrendFlatFallback(t *testing.T) {
	t.Parallel()

	// Single observation: slope degenerates, extension holds the mean.
	c := Chart{Labels: []string{"2022"}, Datasets: []Dataset{{Label: "Total", Data: []float64{7}}}}
	got, err := ExtendTrend(c, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 7}, got.Datasets[0].Data)
}
